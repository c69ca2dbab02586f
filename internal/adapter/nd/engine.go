package nd

import (
	"context"
	"time"

	"github.com/marmos91/ndd/internal/logger"
	"github.com/marmos91/ndd/internal/protocol/nd"
	"github.com/marmos91/ndd/internal/telemetry"
	"github.com/marmos91/ndd/pkg/metrics"
	"github.com/marmos91/ndd/pkg/minor"
)

// Replier sends reply datagrams. *Conn implements it.
type Replier interface {
	Reply(req *Request, size int, errno nd.Errno) error
}

// Engine carries out validated requests against the minor table and
// produces their replies.
//
// An Engine owns a single fragment buffer and is not safe for concurrent
// use; the server loop handles one request at a time.
type Engine struct {
	registry *minor.Registry
	replier  Replier
	metrics  metrics.NDMetrics

	frag [nd.MaxData]byte
}

// NewEngine creates an engine. m may be nil.
func NewEngine(registry *minor.Registry, replier Replier, m metrics.NDMetrics) *Engine {
	return &Engine{
		registry: registry,
		replier:  replier,
		metrics:  m,
	}
}

func (e *Engine) recordRequest(op string, id uint8, errno nd.Errno, start time.Time) {
	if e.metrics != nil {
		e.metrics.RecordRequest(op, id, errno.String(), time.Since(start))
	}
}

func (e *Engine) recordBytes(direction string, id uint8, n int) {
	if e.metrics != nil && n > 0 {
		e.metrics.RecordBytes(direction, id, n)
	}
}

func (e *Engine) recordFragments(op string, n int) {
	if e.metrics != nil {
		e.metrics.RecordFragments(op, n)
	}
}

func (e *Engine) recordSuppressed(reason string) {
	if e.metrics != nil {
		e.metrics.RecordSuppressed(reason)
	}
}

// lookup returns the minor addressed by req. Validation guarantees it
// exists whenever the active error is ErrNone.
func (e *Engine) lookup(req *Request) (*minor.Minor, bool) {
	return e.registry.Lookup(req.Minor)
}

// withTrace copies the active span ids into the request's log context.
func withTrace(ctx context.Context) context.Context {
	lc := logger.FromContext(ctx)
	if lc == nil || !telemetry.IsEnabled() {
		return ctx
	}
	return logger.WithContext(ctx, lc.WithTrace(telemetry.TraceID(ctx), telemetry.SpanID(ctx)))
}
