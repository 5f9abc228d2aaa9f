package server

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Snapshotter yields the next displayed frame.
type Snapshotter interface {
	Capture(ctx context.Context) (*image.NRGBA, error)
}

// PreviewServer exposes the latest frame and the receiver metrics over HTTP.
type PreviewServer struct {
	addr            string
	snapshots       Snapshotter
	gatherer        prometheus.Gatherer
	snapshotTimeout time.Duration
	logger          *slog.Logger

	httpServer *http.Server
	listener   net.Listener
}

// NewPreviewServer creates a server; call Start to listen.
func NewPreviewServer(addr string, snapshots Snapshotter, gatherer prometheus.Gatherer, snapshotTimeout time.Duration, logger *slog.Logger) *PreviewServer {
	if logger == nil {
		logger = slog.Default()
	}
	return &PreviewServer{
		addr:            addr,
		snapshots:       snapshots,
		gatherer:        gatherer,
		snapshotTimeout: snapshotTimeout,
		logger:          logger,
	}
}

// Handler returns the router.
func (s *PreviewServer) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok\n"))
	})
	r.Get("/snapshot.png", s.handleSnapshot)
	if s.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}
	return r
}

// Start listens on addr and serves in the background.
func (s *PreviewServer) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return errors.Wrapf(err, "failed to listen on %s", s.addr)
	}
	s.listener = ln
	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := s.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.logger.Error("Preview server stopped", "error", err.Error())
		}
	}()
	s.logger.Info("Preview server listening", "addr", ln.Addr().String())
	return nil
}

// Addr returns the bound address once started.
func (s *PreviewServer) Addr() string {
	if s.listener == nil {
		return s.addr
	}
	return s.listener.Addr().String()
}

// Stop shuts the server down, forcing close after a short grace period.
func (s *PreviewServer) Stop() error {
	if s.httpServer == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Warn("Preview server shutdown error", "error", err.Error())
		return s.httpServer.Close()
	}
	return nil
}

func (s *PreviewServer) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	if s.snapshots == nil {
		http.Error(w, "snapshots disabled", http.StatusNotFound)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.snapshotTimeout)
	defer cancel()

	img, err := s.snapshots.Capture(ctx)
	if err != nil {
		http.Error(w, "no surface is being displayed", http.StatusServiceUnavailable)
		return
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		s.logger.Error("Failed to encode snapshot", "error", err.Error())
		http.Error(w, "encode failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.Write(buf.Bytes())
}
