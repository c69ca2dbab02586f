package logger

import (
	"context"
	"time"
)

type contextKey struct{}

// LogContext carries request-scoped fields that the *Ctx functions add to
// every record.
type LogContext struct {
	TraceID   string
	SpanID    string
	Op        string // READ, WRITE
	Minor     int    // -1 when unknown
	ClientIP  string
	Seq       uint32
	StartTime time.Time
}

// NewLogContext starts a context for a request from clientIP.
func NewLogContext(clientIP string) *LogContext {
	return &LogContext{
		ClientIP:  clientIP,
		Minor:     -1,
		StartTime: time.Now(),
	}
}

// WithContext stores lc in ctx.
func WithContext(ctx context.Context, lc *LogContext) context.Context {
	return context.WithValue(ctx, contextKey{}, lc)
}

// FromContext returns the LogContext stored in ctx, or nil.
func FromContext(ctx context.Context) *LogContext {
	if ctx == nil {
		return nil
	}
	lc, _ := ctx.Value(contextKey{}).(*LogContext)
	return lc
}

// Clone returns a copy of lc.
func (lc *LogContext) Clone() *LogContext {
	if lc == nil {
		return nil
	}
	c := *lc
	return &c
}

// WithRequest returns a copy describing a decoded request.
func (lc *LogContext) WithRequest(op string, minor uint8, seq uint32) *LogContext {
	c := lc.Clone()
	if c != nil {
		c.Op = op
		c.Minor = int(minor)
		c.Seq = seq
	}
	return c
}

// WithTrace returns a copy carrying the trace and span ids.
func (lc *LogContext) WithTrace(traceID, spanID string) *LogContext {
	c := lc.Clone()
	if c != nil {
		c.TraceID = traceID
		c.SpanID = spanID
	}
	return c
}

// DurationMs returns the time since StartTime in milliseconds.
func (lc *LogContext) DurationMs() float64 {
	if lc == nil || lc.StartTime.IsZero() {
		return 0
	}
	return Duration(lc.StartTime)
}

func (lc *LogContext) fields() []any {
	f := make([]any, 0, 12)
	if lc.TraceID != "" {
		f = append(f, KeyTraceID, lc.TraceID)
	}
	if lc.SpanID != "" {
		f = append(f, KeySpanID, lc.SpanID)
	}
	if lc.Op != "" {
		f = append(f, KeyOp, lc.Op)
	}
	if lc.Minor >= 0 {
		f = append(f, KeyMinor, lc.Minor)
	}
	if lc.ClientIP != "" {
		f = append(f, KeyClientIP, lc.ClientIP)
	}
	if lc.Op != "" {
		f = append(f, KeySeq, lc.Seq)
	}
	return f
}
