// Package nd implements the ND server loop: receive a datagram, validate
// it against the minor table, dispatch it to the transfer engine, repeat.
package nd

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	ndadapter "github.com/marmos91/ndd/internal/adapter/nd"
	"github.com/marmos91/ndd/internal/logger"
	"github.com/marmos91/ndd/internal/protocol/nd"
	"github.com/marmos91/ndd/pkg/adapter"
	"github.com/marmos91/ndd/pkg/metrics"
	"github.com/marmos91/ndd/pkg/minor"
)

var _ adapter.Adapter = (*Adapter)(nil)

// Adapter is the server context: the raw endpoint, the minor registry,
// metrics and the transfer engine. It is built once at startup and serves
// one request at a time until stopped.
type Adapter struct {
	config   Config
	registry *minor.Registry
	metrics  metrics.NDMetrics

	mu      sync.Mutex
	cancel  context.CancelFunc
	stopped bool
	done    chan struct{}

	// Ready is closed once the endpoint is open and the loop is running.
	Ready chan struct{}

	running   atomic.Bool
	served    atomic.Uint64
	dropped   atomic.Uint64
	startedAt atomic.Int64
}

// New creates an adapter serving the minors in registry. m may be nil.
// An Adapter serves once; create a new one to serve again.
func New(cfg Config, registry *minor.Registry, m metrics.NDMetrics) *Adapter {
	return &Adapter{
		config:   cfg.withDefaults(),
		registry: registry,
		metrics:  m,
		done:     make(chan struct{}),
		Ready:    make(chan struct{}),
	}
}

func (a *Adapter) Protocol() string { return "ND" }

// Running reports whether the loop is serving.
func (a *Adapter) Running() bool { return a.running.Load() }

// Served returns the number of requests dispatched so far.
func (a *Adapter) Served() uint64 { return a.served.Load() }

// Dropped returns the number of datagrams discarded before dispatch.
func (a *Adapter) Dropped() uint64 { return a.dropped.Load() }

// StartedAt returns when the loop started, or the zero time.
func (a *Adapter) StartedAt() time.Time {
	ns := a.startedAt.Load()
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns)
}

// Serve opens the raw endpoint and runs the loop. It needs CAP_NET_RAW.
func (a *Adapter) Serve(ctx context.Context) error {
	conn, err := ndadapter.Listen(a.config.BindAddress, a.config.Protocol, a.config.PollInterval)
	if err != nil {
		close(a.done)
		return err
	}
	return a.serve(ctx, conn)
}

// ServeConn runs the loop on an already open endpoint.
func (a *Adapter) ServeConn(ctx context.Context, pc ndadapter.PacketConn) error {
	return a.serve(ctx, ndadapter.NewConn(pc, a.config.PollInterval))
}

func (a *Adapter) serve(ctx context.Context, conn *ndadapter.Conn) error {
	ctx, cancel := context.WithCancel(ctx)
	a.mu.Lock()
	if a.stopped {
		a.mu.Unlock()
		cancel()
		_ = conn.Close()
		close(a.done)
		return nil
	}
	a.cancel = cancel
	a.mu.Unlock()

	defer func() {
		cancel()
		a.running.Store(false)
		if err := conn.Close(); err != nil {
			logger.Debug("Error closing ND endpoint", logger.Err(err))
		}
		close(a.done)
	}()

	engine := ndadapter.NewEngine(a.registry, conn, a.metrics)

	a.startedAt.Store(time.Now().UnixNano())
	a.running.Store(true)
	close(a.Ready)

	logger.Info("ND server listening",
		"bind_address", a.config.BindAddress,
		"protocol", a.config.Protocol,
		"minors", a.registry.Len())

	for {
		req, err := conn.Receive(ctx)
		switch {
		case err == nil:
		case errors.Is(err, nd.ErrStopped):
			logger.Info("ND server stopped", "served", a.served.Load())
			return nil
		case errors.Is(err, nd.ErrShortPacket):
			a.drop("short", err)
			continue
		default:
			logger.Error("ND receive failed", logger.Err(err))
			return err
		}

		if err := a.dispatch(ctx, engine, req); err != nil {
			return fmt.Errorf("serve %s: %w", req.Op, err)
		}
	}
}

// dispatch validates req and hands it to the engine. Validation failures
// are not returned: the engine reports them to the client.
func (a *Adapter) dispatch(ctx context.Context, engine *ndadapter.Engine, req *ndadapter.Request) error {
	// Replies looping back (e.g. over lo) are not requests.
	if req.Op&nd.FlagDone != 0 {
		a.drop("reply", nil)
		return nil
	}
	if !req.Op.IsRead() && !req.Op.IsWrite() {
		a.drop("unknown_op", fmt.Errorf("op %s from %s", req.Op, req.Src))
		return nil
	}

	lc := logger.NewLogContext(req.Src.String()).WithRequest(req.Op.Code().String(), req.Minor, req.Seq)
	ctx = logger.WithContext(ctx, lc)

	errno := nd.Validate(req.Packet, a.registry)
	if errno != nd.ErrNone {
		logger.DebugCtx(ctx, "Request rejected",
			logger.KeyBlkno, req.Blkno,
			logger.KeyBcount, req.Bcount,
			logger.KeyErrno, errno.String())
	}

	a.served.Add(1)
	if req.Op.IsRead() {
		return engine.ServeRead(ctx, req, errno)
	}
	return engine.ServeWrite(ctx, req, errno)
}

func (a *Adapter) drop(reason string, err error) {
	a.dropped.Add(1)
	if a.metrics != nil {
		a.metrics.RecordDropped(reason)
	}
	if err != nil {
		logger.Debug("Datagram dropped", "reason", reason, logger.Err(err))
	}
}

// Stop cancels the loop and waits for it to exit. It is safe to call
// before Serve, concurrently with it, and more than once.
func (a *Adapter) Stop(ctx context.Context) error {
	a.mu.Lock()
	a.stopped = true
	cancel := a.cancel
	a.mu.Unlock()

	if cancel == nil {
		// Not serving yet; a later Serve returns immediately.
		return nil
	}
	cancel()

	select {
	case <-a.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("ND server did not stop: %w", ctx.Err())
	}
}
