// Package adapter provides the TCP server plumbing shared by the bank's
// client-facing protocols.
//
// BaseAdapter owns the listener, bounds concurrent connections, tracks them
// for graceful shutdown and recovers handler panics. Protocol packages such
// as teller embed it and implement ConnectionFactory.
package adapter

import "context"

// Adapter is a protocol server managed by the bankd process.
//
// Lifecycle:
//  1. The adapter is created with its configuration and collaborators.
//  2. Serve starts the listener and blocks until shutdown.
//  3. Stop initiates graceful shutdown; it may run concurrently with Serve.
type Adapter interface {
	// Serve blocks until ctx is cancelled or the listener fails. It returns
	// nil on graceful shutdown.
	Serve(ctx context.Context) error

	// Stop initiates graceful shutdown and waits for active connections,
	// bounded by ctx. It is idempotent.
	Stop(ctx context.Context) error

	// Protocol returns the adapter name for logs and metrics.
	Protocol() string

	// Port returns the configured TCP port.
	Port() int

	// MapError translates a domain error into what the client is told.
	// Returns nil for errors the client must not see in detail.
	MapError(err error) ProtocolError
}
