package context

import (
	"context"
	"strings"

	"github.com/google/uuid"
)

// TraceContext carries request correlation identifiers.
type TraceContext struct {
	TraceID   string
	SpanID    string
	RequestID string
}

type traceContextKey struct{}

// WithTrace adds TraceContext to context.
func WithTrace(ctx context.Context, trace *TraceContext) context.Context {
	return context.WithValue(ctx, traceContextKey{}, trace)
}

// GetTrace returns TraceContext from context.
func GetTrace(ctx context.Context) *TraceContext {
	if v, ok := ctx.Value(traceContextKey{}).(*TraceContext); ok {
		return v
	}
	return nil
}

// NewTraceContext creates a TraceContext with generated IDs.
// Trace and span IDs use the W3C hex widths (32 and 16).
func NewTraceContext() *TraceContext {
	return &TraceContext{
		TraceID:   newHexID(),
		SpanID:    newHexID()[:16],
		RequestID: uuid.NewString(),
	}
}

func newHexID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}
