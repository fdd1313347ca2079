// Package feed serves monitor snapshots over HTTP and WebSocket for
// out-of-process consumers such as status-bar widgets.
package feed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/pi-chan/claudeye/internal/logging"
	"github.com/pi-chan/claudeye/internal/model"
)

var feedLog = logging.ForComponent(logging.CompFeed)

// DefaultListenAddr is used when Config.ListenAddr is empty.
const DefaultListenAddr = "127.0.0.1:7420"

// Source is what the feed needs from the monitor.
type Source interface {
	Current() model.Snapshot
	Subscribe(ctx context.Context) <-chan model.Snapshot
	Activate(ctx context.Context, paneID string) error
}

// Config defines runtime options for the feed server.
type Config struct {
	ListenAddr string
	// ReadOnly disables POST /activate.
	ReadOnly bool
}

// Server wraps an HTTP server exposing the snapshot feed.
type Server struct {
	cfg        Config
	source     Source
	httpServer *http.Server
	baseCtx    context.Context
	cancelBase context.CancelFunc
}

// NewServer creates a feed server with its routes.
func NewServer(cfg Config, src Source) *Server {
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = DefaultListenAddr
	}
	s := &Server{cfg: cfg, source: src}
	s.baseCtx, s.cancelBase = context.WithCancel(context.Background())

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /snapshot", s.handleSnapshot)
	mux.HandleFunc("GET /ws", s.handleWS)
	mux.HandleFunc("POST /activate/{pane}", s.handleActivate)

	s.httpServer = &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           withRecover(mux),
		BaseContext:       func(_ net.Listener) context.Context { return s.baseCtx },
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

// Addr returns the listen address.
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// Handler returns the configured HTTP handler (used by tests).
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start listens and serves until Shutdown. Returns nil on graceful shutdown.
func (s *Server) Start() error {
	feedLog.Info("feed_listening", slog.String("addr", s.cfg.ListenAddr))
	err := s.httpServer.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the server, closing open WebSocket streams.
func (s *Server) Shutdown(ctx context.Context) error {
	s.cancelBase()

	err := s.httpServer.Shutdown(ctx)
	if err == nil {
		return nil
	}
	// Hijacked WebSocket connections are not tracked by Shutdown.
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		if closeErr := s.httpServer.Close(); closeErr != nil {
			return fmt.Errorf("graceful shutdown timed out and force close failed: %w", closeErr)
		}
		return nil
	}
	return err
}

func withRecover(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				feedLog.Error("panic",
					slog.String("recover", fmt.Sprintf("%v", rec)),
					slog.String("path", r.URL.Path))
				http.Error(w, "internal server error", http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}
