// Package numerator issues human-readable sequential numbers such as
// BLK-2026-00042, backed by the sys_sequences table.
package numerator

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
)

// Strategy defines how numbers are reserved.
type Strategy int

const (
	// StrategyStrict bumps the counter in the database for every number.
	// No gaps, one round trip per call.
	StrategyStrict Strategy = iota

	// StrategyCached reserves a range per round trip and hands numbers out
	// from memory. A restart leaves a gap.
	StrategyCached
)

// Options tunes a single call.
type Options struct {
	Strategy Strategy
	// RangeSize is the reservation size for StrategyCached. Default is 50.
	RangeSize int64
}

// DefaultOptions returns strict numbering.
func DefaultOptions() *Options {
	return &Options{Strategy: StrategyStrict}
}

// Config describes a number series.
type Config struct {
	Prefix      string // e.g. "BLK"
	IncludeYear bool
	PadWidth    int    // default 5
	ResetPeriod string // "year", "month" or "never"
}

// DefaultConfig returns a yearly series PREFIX-YYYY-NNNNN.
func DefaultConfig(prefix string) Config {
	return Config{
		Prefix:      prefix,
		IncludeYear: true,
		PadWidth:    5,
		ResetPeriod: "year",
	}
}

// Querier is the subset of pgx used by the service.
// *pgxpool.Pool and pgx.Tx both satisfy it.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type cachedRange struct {
	current int64
	max     int64
}

// Service issues numbers. It is safe for concurrent use.
type Service struct {
	querier Querier

	cacheMu sync.Mutex
	ranges  map[string]*cachedRange
}

// New creates a numerator over querier.
func New(querier Querier) *Service {
	return &Service{
		querier: querier,
		ranges:  make(map[string]*cachedRange),
	}
}

const upsertIncrement = `
	INSERT INTO sys_sequences (key, current_val)
	VALUES ($1, $2)
	ON CONFLICT (key) DO UPDATE SET current_val = sys_sequences.current_val + $2
	RETURNING current_val`

// GetNextNumber returns the next number of the series for period.
func (s *Service) GetNextNumber(ctx context.Context, cfg Config, opts *Options, period time.Time) (string, error) {
	if s == nil || s.querier == nil {
		return "", fmt.Errorf("numerator service is not initialized")
	}
	if opts == nil {
		opts = DefaultOptions()
	}

	key := buildKey(cfg, period)

	var (
		num int64
		err error
	)
	switch opts.Strategy {
	case StrategyCached:
		num, err = s.nextCached(ctx, key, opts.RangeSize)
	default:
		num, err = s.nextStrict(ctx, key)
	}
	if err != nil {
		return "", err
	}

	return formatNumber(cfg, period, num), nil
}

func (s *Service) nextStrict(ctx context.Context, key string) (int64, error) {
	var num int64
	if err := s.querier.QueryRow(ctx, upsertIncrement, key, int64(1)).Scan(&num); err != nil {
		return 0, fmt.Errorf("strict next %s: %w", key, err)
	}
	return num, nil
}

// nextCached serves from the in-memory range and reserves a new one when
// it is exhausted. current_val in the table is the last reserved number,
// so a reservation of n returning m owns (m-n, m].
func (s *Service) nextCached(ctx context.Context, key string, size int64) (int64, error) {
	if size <= 0 {
		size = 50
	}

	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()

	rng, ok := s.ranges[key]
	if !ok {
		rng = &cachedRange{}
		s.ranges[key] = rng
	}

	if rng.current >= rng.max {
		var newMax int64
		if err := s.querier.QueryRow(ctx, upsertIncrement, key, size).Scan(&newMax); err != nil {
			return 0, fmt.Errorf("reserve range %s: %w", key, err)
		}
		rng.current = newMax - size
		rng.max = newMax
	}

	rng.current++
	return rng.current, nil
}

// SetNextNumber overwrites the counter so the next strict number is value+1.
// Any cached range for the series is dropped.
func (s *Service) SetNextNumber(ctx context.Context, cfg Config, period time.Time, value int64) error {
	key := buildKey(cfg, period)

	var result int64
	err := s.querier.QueryRow(ctx, `
		INSERT INTO sys_sequences (key, current_val)
		VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET current_val = $2
		RETURNING current_val`, key, value).Scan(&result)

	s.cacheMu.Lock()
	delete(s.ranges, key)
	s.cacheMu.Unlock()

	if err != nil {
		return fmt.Errorf("set next %s: %w", key, err)
	}
	return nil
}

func buildKey(cfg Config, period time.Time) string {
	switch cfg.ResetPeriod {
	case "month":
		return fmt.Sprintf("%s_%s", cfg.Prefix, period.Format("2006_01"))
	case "year":
		return fmt.Sprintf("%s_%s", cfg.Prefix, period.Format("2006"))
	default:
		return cfg.Prefix
	}
}

func formatNumber(cfg Config, period time.Time, num int64) string {
	width := cfg.PadWidth
	if width == 0 {
		width = 5
	}
	if cfg.IncludeYear {
		return fmt.Sprintf("%s-%s-%0*d", cfg.Prefix, period.Format("2006"), width, num)
	}
	return fmt.Sprintf("%s-%0*d", cfg.Prefix, width, num)
}

// ParseNumber extracts the numeric tail of a formatted number, or -1.
func ParseNumber(formatted string) int64 {
	i := strings.LastIndex(formatted, "-")
	if i < 0 {
		return -1
	}
	num, err := strconv.ParseInt(formatted[i+1:], 10, 64)
	if err != nil {
		return -1
	}
	return num
}
