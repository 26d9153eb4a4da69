// Package devserver exposes the state of a development run over HTTP:
// a JSON status snapshot per extension unit and an SSE stream that
// pings whenever any unit's state changes.
package devserver

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/leapstack-labs/extdev/internal/watch"
)

// Config holds dev server construction options.
type Config struct {
	// Port to listen on.
	Port int
	// Statuses returns the current per-unit status snapshot.
	Statuses func() []watch.Status
	// Logger is the structured logger (optional, discard if nil).
	Logger *slog.Logger
}

// Server serves the status API for one development run.
type Server struct {
	port     int
	statuses func() []watch.Status
	logger   *slog.Logger
	notifier *notifier
}

// NewServer creates a dev status server.
func NewServer(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Server{
		port:     cfg.Port,
		statuses: cfg.Statuses,
		logger:   logger,
		notifier: newNotifier(),
	}
}

// Notify pings every connected SSE client. Wire it to the
// orchestrator's OnStatus hook.
func (s *Server) Notify(watch.Status) {
	s.notifier.broadcast()
}

// Serve starts the server and blocks until the context is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	addr := fmt.Sprintf("127.0.0.1:%d", s.port)
	s.logger.Info("status server listening", "addr", "http://"+addr)

	eg, egctx := errgroup.WithContext(ctx)

	r := chi.NewMux()
	r.Use(middleware.Recoverer)
	r.Get("/api/status", s.handleStatus)
	r.Get("/events", s.handleEvents)

	srv := &http.Server{
		Addr:    addr,
		Handler: r,
		BaseContext: func(_ net.Listener) context.Context {
			return egctx
		},
		ReadHeaderTimeout: 10 * time.Second,
	}

	eg.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("status server: %w", err)
		}
		return nil
	})

	eg.Go(func() error {
		<-egctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return eg.Wait()
}

// handleStatus writes the per-unit status snapshot as JSON.
func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	if err := json.NewEncoder(w).Encode(s.statuses()); err != nil {
		s.logger.Error("encode status", "error", err)
	}
}

// handleEvents streams SSE pings; clients re-fetch /api/status on each.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "SSE not supported", http.StatusInternalServerError)
		return
	}

	ch := s.notifier.subscribe()
	defer s.notifier.unsubscribe(ch)

	_, _ = fmt.Fprint(w, "data: connected\n\n")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-ch:
			_, _ = fmt.Fprint(w, "data: update\n\n")
			flusher.Flush()
		}
	}
}
