package logger

import (
	"context"
	"time"
)

// contextKey is a private type for context keys to avoid collisions
type contextKey struct{}

// logContextKey is the key for LogContext in context.Context
var logContextKey = contextKey{}

// LogContext holds request-scoped logging context for a single compile
// operation as it moves from the caller through the registry, the worker,
// and the store.
type LogContext struct {
	TraceID      string    // correlation id for an end-to-end compile (usually the operation's uuid)
	SpanID       string    // id of the current step within that compile (queued, compiling, committing)
	RequestName  string    // the asset request name being compiled
	CompilerName string    // name of the compiler handling the request
	TargetStore  string    // branch identifier (engine version + configuration) the result is stored under
	StartTime    time.Time // for duration calculation
}

// WithContext returns a new context with the given LogContext
func WithContext(ctx context.Context, lc *LogContext) context.Context {
	return context.WithValue(ctx, logContextKey, lc)
}

// FromContext retrieves the LogContext from context, or nil if not present
func FromContext(ctx context.Context) *LogContext {
	if ctx == nil {
		return nil
	}
	lc, _ := ctx.Value(logContextKey).(*LogContext)
	return lc
}

// NewLogContext creates a new LogContext for a compile request.
func NewLogContext(requestName string) *LogContext {
	return &LogContext{
		RequestName: requestName,
		StartTime:   time.Now(),
	}
}

// Clone creates a copy of the LogContext
func (lc *LogContext) Clone() *LogContext {
	if lc == nil {
		return nil
	}
	return &LogContext{
		TraceID:      lc.TraceID,
		SpanID:       lc.SpanID,
		RequestName:  lc.RequestName,
		CompilerName: lc.CompilerName,
		TargetStore:  lc.TargetStore,
		StartTime:    lc.StartTime,
	}
}

// WithCompiler returns a copy with the compiler name set
func (lc *LogContext) WithCompiler(name string) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.CompilerName = name
	}
	return clone
}

// WithTargetStore returns a copy with the target store branch set
func (lc *LogContext) WithTargetStore(branch string) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.TargetStore = branch
	}
	return clone
}

// WithTrace returns a copy with trace info set
func (lc *LogContext) WithTrace(traceID, spanID string) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.TraceID = traceID
		clone.SpanID = spanID
	}
	return clone
}

// DurationMs returns the duration since StartTime in milliseconds
func (lc *LogContext) DurationMs() float64 {
	if lc == nil || lc.StartTime.IsZero() {
		return 0
	}
	return float64(time.Since(lc.StartTime).Microseconds()) / 1000.0
}
