// Package ratelimit provides keyed token-bucket limiters.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"sellerdesk/pkg/logger"
)

const (
	// DefaultCleanupInterval is how often idle limiters are dropped by Run.
	DefaultCleanupInterval = 5 * time.Minute
	// DefaultIdleTTL is how long an unused limiter is kept.
	DefaultIdleTTL = 10 * time.Minute
)

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Keyed holds one token bucket per key (user, seller, token...).
type Keyed struct {
	mu       sync.Mutex
	limiters map[string]*limiterEntry
	limit    rate.Limit
	burst    int
	idleTTL  time.Duration
	now      func() time.Time
}

// NewPerMinute creates a limiter allowing perMinute events per key with the given burst.
func NewPerMinute(perMinute, burst int) *Keyed {
	return &Keyed{
		limiters: make(map[string]*limiterEntry),
		limit:    rate.Limit(float64(perMinute) / 60.0),
		burst:    burst,
		idleTTL:  DefaultIdleTTL,
		now:      time.Now,
	}
}

func (k *Keyed) entry(key string) *limiterEntry {
	now := k.now()
	e, ok := k.limiters[key]
	if !ok {
		e = &limiterEntry{limiter: rate.NewLimiter(k.limit, k.burst)}
		k.limiters[key] = e
	}
	e.lastSeen = now
	return e
}

// Allow consumes one token for key. When the bucket is empty it returns
// false and how long until a token is available.
func (k *Keyed) Allow(key string) (bool, time.Duration) {
	k.mu.Lock()
	defer k.mu.Unlock()

	now := k.now()
	r := k.entry(key).limiter.ReserveN(now, 1)
	if !r.OK() {
		return false, time.Minute
	}
	if delay := r.DelayFrom(now); delay > 0 {
		r.CancelAt(now)
		return false, delay
	}
	return true, 0
}

// Remaining returns the whole tokens currently available for key.
func (k *Keyed) Remaining(key string) int {
	k.mu.Lock()
	defer k.mu.Unlock()

	e, ok := k.limiters[key]
	if !ok {
		return k.burst
	}
	n := int(e.limiter.TokensAt(k.now()))
	if n < 0 {
		return 0
	}
	return n
}

// Sweep drops limiters unused since before now-idleTTL.
func (k *Keyed) Sweep(now time.Time) int {
	k.mu.Lock()
	defer k.mu.Unlock()

	removed := 0
	for key, e := range k.limiters {
		if now.Sub(e.lastSeen) > k.idleTTL {
			delete(k.limiters, key)
			removed++
		}
	}
	return removed
}

// Run sweeps idle limiters until ctx is done.
func (k *Keyed) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultCleanupInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case t := <-ticker.C:
			if n := k.Sweep(t); n > 0 {
				logger.Debug(ctx, "dropped idle rate limiters", "count", n)
			}
		}
	}
}
