package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"vidmerge/internal/config"
	"vidmerge/internal/logging"
	"vidmerge/internal/merge"
	"vidmerge/internal/videos"
)

// Merger runs merge requests. *merge.Orchestrator satisfies it.
type Merger interface {
	Merge(ctx context.Context, req merge.Request) (merge.Result, error)
}

// Options tunes the server.
type Options struct {
	MaxUploadBytes    int64
	ReadHeaderTimeout time.Duration
	ShutdownTimeout   time.Duration
}

// OptionsFromConfig extracts server options from cfg.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		MaxUploadBytes:    cfg.MaxUploadBytes(),
		ReadHeaderTimeout: time.Duration(cfg.Server.ReadHeaderTimeoutSeconds) * time.Second,
		ShutdownTimeout:   time.Duration(cfg.Server.ShutdownTimeoutSeconds) * time.Second,
	}
}

// Server wires the routes to the video service and the merge pipeline.
type Server struct {
	videos *videos.Service
	merger Merger
	opts   Options
	logger *slog.Logger
	mux    *http.ServeMux
}

// New constructs a Server.
func New(svc *videos.Service, merger Merger, opts Options, logger *slog.Logger) *Server {
	if opts.ReadHeaderTimeout <= 0 {
		opts.ReadHeaderTimeout = 5 * time.Second
	}
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = 10 * time.Second
	}
	s := &Server{
		videos: svc,
		merger: merger,
		opts:   opts,
		logger: logging.NewComponentLogger(logger, "api-server"),
		mux:    http.NewServeMux(),
	}
	s.mux.HandleFunc("POST /videos", s.handleUpload)
	s.mux.HandleFunc("GET /videos/{id}", s.handleVideo)
	s.mux.HandleFunc("GET /videos/merge/{ids...}", s.handleMerge)
	s.mux.HandleFunc("GET /healthz", s.handleHealth)
	return s
}

// Handler returns the routed handler with request-id and access logging.
func (s *Server) Handler() http.Handler {
	return s.withRequestID(s.mux)
}

// Serve accepts connections on listener until ctx is cancelled, then shuts
// down gracefully. In-flight requests get ShutdownTimeout to finish.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: s.opts.ReadHeaderTimeout,
		IdleTimeout:       60 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(listener)
	}()
	s.logger.Info("api server listening",
		logging.String(logging.FieldEventType, "api_listening"),
		logging.String("address", listener.Addr().String()),
	)

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("api serve: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.opts.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		_ = srv.Close()
		return fmt.Errorf("api shutdown: %w", err)
	}
	s.logger.Info("api server stopped", logging.String(logging.FieldEventType, "api_stopped"))
	return nil
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response", logging.Error(err))
	}
}
