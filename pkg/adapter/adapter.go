package adapter

import "context"

// Adapter is a protocol server managed by the daemon.
//
// Lifecycle:
//  1. Creation with protocol-specific configuration and the minor registry
//  2. Serve() opens the endpoint and blocks until shutdown
//  3. Stop() initiates shutdown and waits for Serve() to return
//
// Stop may be called concurrently with Serve and more than once.
type Adapter interface {
	// Serve runs the protocol server until ctx is cancelled, Stop is
	// called or an unrecoverable error occurs. A clean shutdown returns nil.
	Serve(ctx context.Context) error

	// Stop initiates shutdown and waits for Serve to return or ctx to
	// expire, whichever comes first.
	Stop(ctx context.Context) error

	// Protocol returns the protocol name for logging and metrics.
	Protocol() string
}
