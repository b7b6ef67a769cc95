// Package teller serves the interactive banking protocol over TCP.
//
// Each connection walks through role selection, credentials and session
// admission, then runs the menu of the authenticated role until the user
// logs out or disconnects. All business rules live in the banking package;
// this package only parses input and formats replies.
package teller

import (
	"context"
	"net"
	"time"

	"github.com/marmos91/bankd/pkg/adapter"
	"github.com/marmos91/bankd/pkg/banking"
	"github.com/marmos91/bankd/pkg/session"
)

// Protocol is the adapter name used in logs and metric labels.
const Protocol = "teller"

const (
	DefaultPort           = 8080
	DefaultMaxConnections = 256
)

// Config configures the teller adapter.
type Config struct {
	adapter.BaseConfig
}

// DefaultConfig returns the settings used when none are configured.
func DefaultConfig() Config {
	return Config{BaseConfig: adapter.BaseConfig{
		Port:            DefaultPort,
		MaxConnections:  DefaultMaxConnections,
		ShutdownTimeout: 30 * time.Second,
	}}
}

// Adapter accepts teller connections.
type Adapter struct {
	*adapter.BaseAdapter

	svc      *banking.Service
	auth     adapter.Authenticator
	sessions *session.Registry
}

var _ adapter.Adapter = (*Adapter)(nil)

// Option customizes an Adapter.
type Option func(*Adapter)

// WithMetrics records connection metrics. A nil recorder is ignored.
func WithMetrics(m adapter.MetricsRecorder) Option {
	return func(a *Adapter) {
		if m != nil {
			a.Metrics = m
		}
	}
}

// WithAuthenticator replaces the login check, which defaults to svc.
func WithAuthenticator(auth adapter.Authenticator) Option {
	return func(a *Adapter) {
		a.auth = auth
	}
}

// New creates a teller adapter. Call Serve to start listening.
func New(cfg Config, svc *banking.Service, sessions *session.Registry, opts ...Option) *Adapter {
	a := &Adapter{
		BaseAdapter: adapter.NewBaseAdapter(cfg.BaseConfig, Protocol),
		svc:         svc,
		auth:        svc,
		sessions:    sessions,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Serve listens and serves clients until ctx is cancelled or Stop is called.
func (a *Adapter) Serve(ctx context.Context) error {
	return a.ServeWithFactory(ctx, a, nil, nil)
}

// NewConnection implements adapter.ConnectionFactory.
func (a *Adapter) NewConnection(conn net.Conn, connID string) adapter.ConnectionHandler {
	return newConnection(a, conn, connID)
}

// Sessions returns the registry admitting logins.
func (a *Adapter) Sessions() *session.Registry {
	return a.sessions
}
