// Package ws serves and dials the game protocol over websockets.
package ws

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/cory-johannsen/connect4/internal/config"
	"github.com/cory-johannsen/connect4/internal/protocol"
)

// ConnHandler drives a single client connection until it ends.
type ConnHandler interface {
	HandleConn(ctx context.Context, conn protocol.Conn) error
}

// Acceptor upgrades HTTP requests on / and /ws to websocket connections and
// dispatches each to a ConnHandler. Extra HTTP routes may be mounted with Handle.
type Acceptor struct {
	cfg      config.NetworkConfig
	handler  ConnHandler
	logger   *zap.Logger
	router   *mux.Router
	upgrader websocket.Upgrader

	server   *http.Server
	listener net.Listener
	wg       sync.WaitGroup
	quit     chan struct{}
	connMu   sync.Mutex
	mu       sync.Mutex
	running  bool
}

// NewAcceptor creates a websocket acceptor with the given configuration.
//
// Precondition: cfg must have a valid port; handler and logger must be non-nil.
// Postcondition: Returns an Acceptor ready to be started with ListenAndServe.
func NewAcceptor(cfg config.NetworkConfig, handler ConnHandler, logger *zap.Logger) *Acceptor {
	a := &Acceptor{
		cfg:     cfg,
		handler: handler,
		logger:  logger,
		router:  mux.NewRouter(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  cfg.ReadBufferSize,
			WriteBufferSize: cfg.WriteBufferSize,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		quit: make(chan struct{}),
	}
	a.router.HandleFunc("/", a.serveWebsocket)
	a.router.HandleFunc("/ws", a.serveWebsocket)
	return a
}

// Handle mounts an HTTP handler for GET requests on path.
//
// Precondition: Must be called before ListenAndServe.
func (a *Acceptor) Handle(path string, h http.Handler) {
	a.router.Handle(path, h).Methods(http.MethodGet)
}

// Router exposes the underlying router, mainly for httptest servers.
func (a *Acceptor) Router() http.Handler { return a.router }

// ListenAndServe binds the configured address and serves until Stop is called.
//
// Precondition: The acceptor must not already be running.
// Postcondition: The listener is closed when this method returns.
func (a *Acceptor) ListenAndServe() error {
	start := time.Now()

	listener, err := net.Listen("tcp", a.cfg.Addr())
	if err != nil {
		return fmt.Errorf("listening on %s: %w", a.cfg.Addr(), err)
	}

	server := &http.Server{Handler: a.router, ReadHeaderTimeout: 10 * time.Second}

	a.mu.Lock()
	a.listener = listener
	a.server = server
	a.running = true
	a.mu.Unlock()

	a.logger.Info("websocket acceptor listening",
		zap.String("addr", listener.Addr().String()),
		zap.Duration("startup", time.Since(start)),
	)

	if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serving on %s: %w", listener.Addr(), err)
	}
	return nil
}

func (a *Acceptor) serveWebsocket(w http.ResponseWriter, r *http.Request) {
	raw, err := a.upgrader.Upgrade(w, r, nil)
	if err != nil {
		a.logger.Debug("websocket upgrade failed",
			zap.String("remote_addr", r.RemoteAddr),
			zap.Error(err),
		)
		return
	}

	a.connMu.Lock()
	select {
	case <-a.quit:
		a.connMu.Unlock()
		_ = raw.Close()
		return
	default:
	}
	a.wg.Add(1)
	a.connMu.Unlock()
	defer a.wg.Done()

	a.handleConn(NewConn(raw, a.cfg.ReadTimeout, a.cfg.WriteTimeout))
}

// handleConn runs the handler for a single upgraded connection.
func (a *Acceptor) handleConn(conn *Conn) {
	start := time.Now()
	addr := conn.RemoteAddr()

	a.logger.Info("client connected",
		zap.String("remote_addr", addr),
	)
	defer conn.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Shutdown cancels the handler and unblocks any pending read.
	go func() {
		select {
		case <-a.quit:
			cancel()
			_ = conn.Close()
		case <-ctx.Done():
		}
	}()

	if err := a.handler.HandleConn(ctx, conn); err != nil {
		a.logger.Debug("connection ended",
			zap.String("remote_addr", addr),
			zap.Error(err),
			zap.Duration("duration", time.Since(start)),
		)
	} else {
		a.logger.Info("connection ended cleanly",
			zap.String("remote_addr", addr),
			zap.Duration("duration", time.Since(start)),
		)
	}
}

// Stop closes the listener, disconnects every client and waits for their
// handlers to return.
//
// Postcondition: All connections are closed and goroutines have exited.
func (a *Acceptor) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.running {
		return
	}
	a.running = false

	a.connMu.Lock()
	close(a.quit)
	a.connMu.Unlock()
	if a.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = a.server.Shutdown(ctx)
		cancel()
	}
	a.wg.Wait()

	a.logger.Info("websocket acceptor stopped")
}

// Addr returns the actual listening address, or empty string if not yet listening.
func (a *Acceptor) Addr() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.listener != nil {
		return a.listener.Addr().String()
	}
	return ""
}

// IsRunning returns whether the acceptor is currently accepting connections.
func (a *Acceptor) IsRunning() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.running
}
