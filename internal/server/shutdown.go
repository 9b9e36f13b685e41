// Package server provides server lifecycle management including graceful
// shutdown of the query API.
package server

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"
)

// ShutdownManager coordinates signal handling and resource cleanup.
// Registered closers run in reverse registration order, so the HTTP
// server (registered last) stops accepting work before the stores behind
// it are released.
type ShutdownManager struct {
	shutdownTimeout time.Duration

	shutdownCh   chan struct{}
	shutdownOnce sync.Once

	closers   []io.Closer
	closersMu sync.Mutex
}

// NewShutdownManager creates a shutdown manager. A zero timeout selects
// 30 seconds.
func NewShutdownManager(shutdownTimeout time.Duration) *ShutdownManager {
	if shutdownTimeout == 0 {
		shutdownTimeout = 30 * time.Second
	}
	return &ShutdownManager{
		shutdownTimeout: shutdownTimeout,
		shutdownCh:      make(chan struct{}),
	}
}

// RegisterCloser adds a closer to run during shutdown. Closers run in
// reverse order of registration.
func (sm *ShutdownManager) RegisterCloser(closer io.Closer) {
	sm.closersMu.Lock()
	defer sm.closersMu.Unlock()
	sm.closers = append(sm.closers, closer)
}

// ListenForSignals blocks until SIGTERM, SIGINT, or context cancellation,
// then runs the shutdown sequence.
func (sm *ShutdownManager) ListenForSignals(ctx context.Context) error {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	defer signal.Stop(sigCh)

	select {
	case sig := <-sigCh:
		return sm.Shutdown(ctx, fmt.Sprintf("received signal: %v", sig))
	case <-ctx.Done():
		return sm.Shutdown(context.Background(), "context cancelled")
	case <-sm.shutdownCh:
		return nil
	}
}

// Shutdown runs every registered closer once, bounded by the shutdown
// timeout. The first close error is returned; later closers still run.
func (sm *ShutdownManager) Shutdown(ctx context.Context, reason string) error {
	var shutdownErr error

	sm.shutdownOnce.Do(func() {
		close(sm.shutdownCh)

		_, cancel := context.WithTimeout(ctx, sm.shutdownTimeout)
		defer cancel()

		sm.closersMu.Lock()
		closers := sm.closers
		sm.closersMu.Unlock()

		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i].Close(); err != nil && shutdownErr == nil {
				shutdownErr = fmt.Errorf("close failed: %w", err)
			}
		}
	})

	return shutdownErr
}

// ShutdownCh returns a channel closed when shutdown begins.
func (sm *ShutdownManager) ShutdownCh() <-chan struct{} {
	return sm.shutdownCh
}

// GracefulHTTPServer runs an http.Server under the shutdown manager.
type GracefulHTTPServer struct {
	server   *http.Server
	shutdown *ShutdownManager
}

// NewGracefulHTTPServer wraps server with graceful shutdown support.
func NewGracefulHTTPServer(server *http.Server, shutdown *ShutdownManager) *GracefulHTTPServer {
	return &GracefulHTTPServer{server: server, shutdown: shutdown}
}

// ListenAndServe serves until the server fails or shutdown begins. The
// shutdown manager drains and closes the server.
func (gs *GracefulHTTPServer) ListenAndServe() error {
	gs.shutdown.RegisterCloser(&httpServerCloser{server: gs.server})

	errCh := make(chan error, 1)
	go func() {
		if err := gs.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-gs.shutdown.ShutdownCh():
		return <-errCh
	}
}

type httpServerCloser struct {
	server *http.Server
}

func (c *httpServerCloser) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return c.server.Shutdown(ctx)
}

// CloserFunc adapts a function to io.Closer.
type CloserFunc func() error

// Close calls the underlying function.
func (f CloserFunc) Close() error {
	return f()
}
