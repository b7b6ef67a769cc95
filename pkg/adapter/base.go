package adapter

import (
	"context"
	"fmt"
	"net"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/marmos91/bankd/internal/logger"
)

// ConnectionHandler serves one accepted connection. Serve blocks until the
// client leaves or ctx is cancelled.
type ConnectionHandler interface {
	Serve(ctx context.Context)
}

// ConnectionFactory creates a handler for an accepted connection. connID is
// unique for the lifetime of the process.
type ConnectionFactory interface {
	NewConnection(conn net.Conn, connID string) ConnectionHandler
}

// BaseConfig holds the listener settings shared by every adapter.
type BaseConfig struct {
	// BindAddress is the IP address to bind to. Empty binds all interfaces.
	BindAddress string

	// Port is the TCP port to listen on. 0 picks a free port.
	Port int

	// MaxConnections bounds concurrently served connections. Further clients
	// wait in the kernel backlog until a slot frees. 0 means unlimited.
	MaxConnections int

	// IdleTimeout closes a connection whose client sends nothing for this
	// long. 0 disables it.
	IdleTimeout time.Duration

	// ShutdownTimeout is how long Stop waits for connections to finish
	// before closing them.
	ShutdownTimeout time.Duration

	// MetricsLogInterval logs the connection count periodically. 0 disables.
	MetricsLogInterval time.Duration
}

// MetricsRecorder records connection lifecycle metrics. Nil disables them.
type MetricsRecorder interface {
	RecordConnectionAccepted()
	RecordConnectionClosed()
	RecordConnectionForceClosed()
	SetActiveConnections(count int32)
}

// OnConnectionClose runs when a connection's goroutine exits, before its
// slot is released.
type OnConnectionClose func(connID string)

// BaseAdapter runs a TCP accept loop with a bounded number of concurrent
// connections and graceful shutdown. Adapters embed it and supply a
// ConnectionFactory.
//
// All exported methods are safe for concurrent use. Stop may be called more
// than once.
type BaseAdapter struct {
	Config BaseConfig

	// Metrics is optional.
	Metrics MetricsRecorder

	protocolName string

	listener   net.Listener
	listenerMu sync.RWMutex

	// ListenerReady is closed once the listener accepts connections.
	ListenerReady chan struct{}

	// Shutdown is closed when shutdown starts.
	Shutdown     chan struct{}
	shutdownOnce sync.Once

	// ShutdownCtx is passed to every handler and cancelled on shutdown.
	ShutdownCtx    context.Context
	CancelRequests context.CancelFunc

	activeConns sync.WaitGroup

	// ConnCount is the number of connections being served.
	ConnCount atomic.Int32

	// ActiveConnections maps connection id to net.Conn.
	ActiveConnections sync.Map

	// connSemaphore holds one token per served connection; nil when
	// MaxConnections is 0.
	connSemaphore chan struct{}
}

// NewBaseAdapter returns a stopped adapter. Call ServeWithFactory to start.
func NewBaseAdapter(config BaseConfig, protocol string) *BaseAdapter {
	var connSemaphore chan struct{}
	if config.MaxConnections > 0 {
		connSemaphore = make(chan struct{}, config.MaxConnections)
		logger.Debug(protocol+" connection limit", "max_connections", config.MaxConnections)
	} else {
		logger.Debug(protocol+" connection limit", "max_connections", "unlimited")
	}

	shutdownCtx, cancelRequests := context.WithCancel(context.Background())

	return &BaseAdapter{
		Config:         config,
		protocolName:   protocol,
		Shutdown:       make(chan struct{}),
		connSemaphore:  connSemaphore,
		ShutdownCtx:    shutdownCtx,
		CancelRequests: cancelRequests,
		ListenerReady:  make(chan struct{}),
	}
}

// ServeWithFactory listens and serves until ctx is cancelled or Stop is
// called.
//
// preAccept may veto a connection right after accept (return false to close
// it). onClose runs when a connection ends. Both are optional.
//
// Returns nil on graceful shutdown, or an error if the listener cannot be
// created or connections had to be force-closed.
func (b *BaseAdapter) ServeWithFactory(
	ctx context.Context,
	factory ConnectionFactory,
	preAccept func(net.Conn) bool,
	onClose OnConnectionClose,
) error {
	listenAddr := net.JoinHostPort(b.Config.BindAddress, fmt.Sprint(b.Config.Port))
	listener, err := net.Listen("tcp", listenAddr)
	if err != nil {
		return fmt.Errorf("failed to create %s listener on %s: %w", b.protocolName, listenAddr, err)
	}

	b.listenerMu.Lock()
	b.listener = listener
	b.listenerMu.Unlock()
	close(b.ListenerReady)

	logger.Info(b.protocolName+" server listening", "address", listener.Addr().String())

	go func() {
		select {
		case <-ctx.Done():
			logger.Info(b.protocolName+" shutdown signal received", logger.KeyError, ctx.Err())
			b.initiateShutdown()
		case <-b.Shutdown:
		}
	}()

	if b.Config.MetricsLogInterval > 0 {
		go b.logMetrics(ctx)
	}

	for {
		// A slot is taken before Accept, so excess clients queue in the
		// backlog instead of being accepted and starved.
		if b.connSemaphore != nil {
			select {
			case b.connSemaphore <- struct{}{}:
			case <-b.Shutdown:
				return b.gracefulShutdown()
			}
		}

		tcpConn, err := b.listener.Accept()
		if err != nil {
			b.releaseSlot()
			select {
			case <-b.Shutdown:
				return b.gracefulShutdown()
			default:
				logger.Debug("Error accepting "+b.protocolName+" connection", logger.KeyError, err)
				continue
			}
		}

		if tcp, ok := tcpConn.(*net.TCPConn); ok {
			if err := tcp.SetNoDelay(true); err != nil {
				logger.Debug("Failed to set TCP_NODELAY", logger.KeyError, err)
			}
		}

		if preAccept != nil && !preAccept(tcpConn) {
			_ = tcpConn.Close()
			b.releaseSlot()
			continue
		}

		connID := uuid.NewString()
		b.activeConns.Add(1)
		current := b.ConnCount.Add(1)
		b.ActiveConnections.Store(connID, tcpConn)

		if b.Metrics != nil {
			b.Metrics.RecordConnectionAccepted()
			b.Metrics.SetActiveConnections(current)
		}
		logger.Debug(b.protocolName+" connection accepted",
			logger.KeyConnectionID, connID, "address", tcpConn.RemoteAddr().String(), logger.KeyActive, current)

		handler := factory.NewConnection(tcpConn, connID)
		go b.serveConn(connID, tcpConn, handler, onClose)
	}
}

func (b *BaseAdapter) serveConn(connID string, conn net.Conn, handler ConnectionHandler, onClose OnConnectionClose) {
	defer func() {
		if onClose != nil {
			onClose(connID)
		}
		b.ActiveConnections.Delete(connID)
		_ = conn.Close()

		b.activeConns.Done()
		remaining := b.ConnCount.Add(-1)
		b.releaseSlot()

		if b.Metrics != nil {
			b.Metrics.RecordConnectionClosed()
			b.Metrics.SetActiveConnections(remaining)
		}
		logger.Debug(b.protocolName+" connection closed", logger.KeyConnectionID, connID, logger.KeyActive, remaining)
	}()

	// A panicking handler must not take the server down. Handlers release
	// their own resources in deferred calls, which run before this one.
	defer func() {
		if r := recover(); r != nil {
			logger.Error(b.protocolName+" connection handler panicked",
				logger.KeyConnectionID, connID, "panic", r, "stack", string(debug.Stack()))
		}
	}()

	handler.Serve(b.ShutdownCtx)
}

func (b *BaseAdapter) releaseSlot() {
	if b.connSemaphore != nil {
		<-b.connSemaphore
	}
}

// initiateShutdown closes the listener, interrupts blocked reads and
// cancels ShutdownCtx. Safe to call repeatedly.
func (b *BaseAdapter) initiateShutdown() {
	b.shutdownOnce.Do(func() {
		logger.Debug(b.protocolName + " shutdown initiated")
		close(b.Shutdown)

		b.listenerMu.Lock()
		if b.listener != nil {
			if err := b.listener.Close(); err != nil {
				logger.Debug("Error closing "+b.protocolName+" listener", logger.KeyError, err)
			}
		}
		b.listenerMu.Unlock()

		b.interruptBlockingReads()
		b.CancelRequests()
	})
}

// interruptBlockingReads sets a short read deadline on every connection so
// handlers blocked on a client read notice the shutdown.
func (b *BaseAdapter) interruptBlockingReads() {
	deadline := time.Now().Add(100 * time.Millisecond)

	b.ActiveConnections.Range(func(key, value any) bool {
		if conn, ok := value.(net.Conn); ok {
			if err := conn.SetReadDeadline(deadline); err != nil {
				logger.Debug("Error setting shutdown deadline on connection",
					logger.KeyConnectionID, key, logger.KeyError, err)
			}
		}
		return true
	})
}

// gracefulShutdown waits up to ShutdownTimeout for connections to finish
// and force-closes the rest.
func (b *BaseAdapter) gracefulShutdown() error {
	active := b.ConnCount.Load()
	logger.Info(b.protocolName+" graceful shutdown: waiting for active connections",
		logger.KeyActive, active, "timeout", b.Config.ShutdownTimeout)

	done := make(chan struct{})
	go func() {
		b.activeConns.Wait()
		close(done)
	}()

	select {
	case <-done:
		logger.Info(b.protocolName + " graceful shutdown complete")
		return nil

	case <-time.After(b.Config.ShutdownTimeout):
		remaining := b.ConnCount.Load()
		logger.Warn(b.protocolName+" shutdown timeout exceeded, forcing closure",
			logger.KeyActive, remaining, "timeout", b.Config.ShutdownTimeout)
		b.forceCloseConnections()
		return fmt.Errorf("%s shutdown timeout: %d connections force-closed", b.protocolName, remaining)
	}
}

func (b *BaseAdapter) forceCloseConnections() {
	closed := 0
	b.ActiveConnections.Range(func(key, value any) bool {
		conn := value.(net.Conn)
		if err := conn.Close(); err != nil {
			logger.Debug("Error force-closing connection", logger.KeyConnectionID, key, logger.KeyError, err)
			return true
		}
		closed++
		if b.Metrics != nil {
			b.Metrics.RecordConnectionForceClosed()
		}
		return true
	})
	if closed > 0 {
		logger.Info("Force-closed connections", "count", closed)
	}
}

// Stop starts shutdown and waits for connections to finish, bounded by ctx
// or, when ctx is nil, by ShutdownTimeout.
func (b *BaseAdapter) Stop(ctx context.Context) error {
	b.initiateShutdown()

	if ctx == nil {
		return b.gracefulShutdown()
	}

	done := make(chan struct{})
	go func() {
		b.activeConns.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		logger.Warn(b.protocolName+" shutdown context cancelled",
			logger.KeyActive, b.ConnCount.Load(), logger.KeyError, ctx.Err())
		return ctx.Err()
	}
}

func (b *BaseAdapter) logMetrics(ctx context.Context) {
	ticker := time.NewTicker(b.Config.MetricsLogInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-b.Shutdown:
			return
		case <-ticker.C:
			logger.Info(b.protocolName+" metrics", "active_connections", b.ConnCount.Load())
		}
	}
}

// GetActiveConnections returns the number of connections being served.
func (b *BaseAdapter) GetActiveConnections() int32 {
	return b.ConnCount.Load()
}

// GetListenerAddr blocks until the listener is ready and returns its
// address.
func (b *BaseAdapter) GetListenerAddr() string {
	<-b.ListenerReady

	b.listenerMu.RLock()
	defer b.listenerMu.RUnlock()

	if b.listener == nil {
		return ""
	}
	return b.listener.Addr().String()
}

// Port returns the configured TCP port.
func (b *BaseAdapter) Port() int {
	return b.Config.Port
}

// Protocol returns the adapter name used in logs.
func (b *BaseAdapter) Protocol() string {
	return b.protocolName
}
