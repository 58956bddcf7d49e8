package metrics

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
)

// Server exposes a registry over HTTP. When scrapeWait is positive each scrape
// first asks the poll loop for a fresh cycle (via Scrapes) and waits up to
// scrapeWait for it to finish, so the exposition reflects the files as of the
// request.
type Server struct {
	server     *http.Server
	listener   net.Listener
	scrapes    chan chan struct{}
	scrapeWait time.Duration
	log        *log.Entry
}

func NewServer(addr, path string, registry *prometheus.Registry, scrapeWait time.Duration) (*Server, error) {
	if registry == nil {
		return nil, fmt.Errorf("registry cannot be nil")
	}
	if path == "" {
		path = "/metrics"
	}

	s := &Server{
		scrapes:    make(chan chan struct{}),
		scrapeWait: scrapeWait,
		log:        log.WithField("component", "metrics-server"),
	}

	handler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
		ErrorLog:          s.log,
		ErrorHandling:     promhttp.ContinueOnError,
	})

	mux := http.NewServeMux()
	mux.Handle(path, s.syncScrape(handler))
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy","service":"logcount"}`))
	})

	s.server = &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s, nil
}

// Scrapes delivers one channel per scrape request; the receiver closes it once
// a cycle has completed.
func (s *Server) Scrapes() <-chan chan struct{} {
	return s.scrapes
}

// Start binds the listen address and serves in the background.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.server.Addr, err)
	}
	s.listener = ln

	go func() {
		s.log.Infof("Starting metrics server on %s", ln.Addr())
		if err := s.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.log.WithError(err).Error("Metrics server error")
		}
	}()
	return nil
}

// Addr returns the bound address, useful when listening on port 0.
func (s *Server) Addr() string {
	if s.listener == nil {
		return s.server.Addr
	}
	return s.listener.Addr().String()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		s.log.WithError(err).Warn("Metrics server shutdown error")
		return err
	}
	s.log.Info("Metrics server shut down")
	return nil
}

func (s *Server) syncScrape(next http.Handler) http.Handler {
	if s.scrapeWait <= 0 {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		timer := time.NewTimer(s.scrapeWait)
		defer timer.Stop()

		done := make(chan struct{})
		select {
		case s.scrapes <- done:
			select {
			case <-done:
			case <-timer.C:
			case <-r.Context().Done():
				return
			}
		case <-timer.C:
		case <-r.Context().Done():
			return
		}
		next.ServeHTTP(w, r)
	})
}
