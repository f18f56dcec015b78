package observability

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"
)

// Server provides HTTP endpoints for metrics and health
type Server struct {
	httpServer *http.Server
	health     *HealthChecker
}

// NewServer creates a new observability server listening on port
func NewServer(port int, health *HealthChecker) *Server {
	if health == nil {
		health = NewHealthChecker()
	}
	s := &Server{health: health}
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      s.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	return s
}

// Handler returns the server's routes
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", s.health.HealthHandler())
	mux.HandleFunc("/health/live", LivenessHandler())
	mux.HandleFunc("/health/ready", s.health.ReadinessHandler())
	mux.Handle("/metrics", MetricsHandler())

	return mux
}

// Start serves until Shutdown is called. It returns nil after a graceful
// shutdown.
func (s *Server) Start() error {
	return ignoreClosed(s.httpServer.ListenAndServe())
}

// Serve is like Start but accepts connections on l
func (s *Server) Serve(l net.Listener) error {
	return ignoreClosed(s.httpServer.Serve(l))
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func ignoreClosed(err error) error {
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}
