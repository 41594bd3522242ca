package logger

import (
	"context"
	"time"
)

type contextKey struct{}

var logContextKey = contextKey{}

// LogContext carries per-instance fields that the *Ctx helpers prepend to
// every record.
type LogContext struct {
	TraceID   string
	SpanID    string
	Instance  string // instance id, the work directory's uuid
	Phase     string // orchestrator state name
	PID       int    // pid of the supervised server, 0 when not running
	StartTime time.Time
}

// WithContext stores lc in ctx.
func WithContext(ctx context.Context, lc *LogContext) context.Context {
	return context.WithValue(ctx, logContextKey, lc)
}

// FromContext returns the LogContext in ctx, or nil.
func FromContext(ctx context.Context) *LogContext {
	if ctx == nil {
		return nil
	}
	lc, _ := ctx.Value(logContextKey).(*LogContext)
	return lc
}

// NewLogContext starts a LogContext for the given instance.
func NewLogContext(instance string) *LogContext {
	return &LogContext{
		Instance:  instance,
		StartTime: time.Now(),
	}
}

// Clone returns a shallow copy. A nil receiver yields nil.
func (lc *LogContext) Clone() *LogContext {
	if lc == nil {
		return nil
	}
	c := *lc
	return &c
}

// WithPhase returns a copy with Phase set.
func (lc *LogContext) WithPhase(phase string) *LogContext {
	c := lc.Clone()
	if c != nil {
		c.Phase = phase
	}
	return c
}

// WithPID returns a copy with PID set.
func (lc *LogContext) WithPID(pid int) *LogContext {
	c := lc.Clone()
	if c != nil {
		c.PID = pid
	}
	return c
}

// WithTrace returns a copy with trace and span ids set.
func (lc *LogContext) WithTrace(traceID, spanID string) *LogContext {
	c := lc.Clone()
	if c != nil {
		c.TraceID = traceID
		c.SpanID = spanID
	}
	return c
}

// Elapsed returns milliseconds since StartTime.
func (lc *LogContext) Elapsed() float64 {
	if lc == nil || lc.StartTime.IsZero() {
		return 0
	}
	return Duration(lc.StartTime)
}
