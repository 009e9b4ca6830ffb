// Package server handles HTTP endpoints and request routing.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"line-comicbot/pipeline"
	"line-comicbot/pkg/gallery"

	"github.com/google/uuid"
)

const shutdownTimeout = 30 * time.Second

// Dispatcher hands a classified job to background processing.
type Dispatcher interface {
	Dispatch(ctx context.Context, job pipeline.Job) error
}

// Gallery lists stored objects.
type Gallery interface {
	ListAll(ctx context.Context) ([]gallery.BlobMeta, error)
}

// Server handles HTTP requests.
type Server struct {
	dispatcher    Dispatcher
	gallery       Gallery
	logger        *slog.Logger
	limiter       *rateLimiter
	newID         func() string
	channelSecret string
	filesDir      string
}

// Config holds server configuration.
type Config struct {
	Dispatcher Dispatcher
	Gallery    Gallery
	Logger     *slog.Logger
	// ChannelSecret verifies webhook signatures. Empty rejects every delivery.
	ChannelSecret string
	// FilesDir is served under /files/ when the local storage backend is used.
	FilesDir string
	// GalleryLimit caps gallery requests per client IP per minute. 0 disables it.
	GalleryLimit int
}

// New creates a new HTTP server handler.
func New(cfg *Config) *Server {
	s := &Server{
		dispatcher:    cfg.Dispatcher,
		gallery:       cfg.Gallery,
		logger:        cfg.Logger,
		newID:         uuid.NewString,
		channelSecret: cfg.ChannelSecret,
		filesDir:      cfg.FilesDir,
	}
	if cfg.GalleryLimit > 0 {
		s.limiter = newRateLimiter(cfg.GalleryLimit, time.Minute)
	}
	return s
}

// Handler returns the routed endpoints.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/webhook", s.handleWebhook)
	mux.HandleFunc("/api/images", s.handleImages)
	mux.HandleFunc("/health", s.handleHealth)
	if s.filesDir != "" {
		mux.Handle("/files/", http.StripPrefix("/files/", http.FileServer(http.Dir(s.filesDir))))
	}
	return mux
}

// Run serves on port until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, port string) error {
	// Configure server with timeouts to prevent resource exhaustion
	server := &http.Server{
		Addr:              ":" + port,
		Handler:           s.Handler(),
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Starting HTTP server", "port", port)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("listen: %w", err)
	case <-ctx.Done():
	}

	s.logger.Info("Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("listen: %w", err)
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, s.logger, http.StatusOK, map[string]string{"status": "healthy"})
}
