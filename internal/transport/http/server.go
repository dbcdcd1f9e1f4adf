package httptransport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"
)

// ServerConfig holds listener and timeout settings for one HTTP surface.
type ServerConfig struct {
	Name              string
	Address           string
	ReadTimeout       time.Duration
	ReadHeaderTimeout time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	MaxHeaderBytes    int
	ShutdownTimeout   time.Duration
}

// DefaultServerConfig returns the timeouts every progression binary serves with.
func DefaultServerConfig(name, address string) ServerConfig {
	return ServerConfig{
		Name:              name,
		Address:           address,
		ReadTimeout:       5 * time.Second,
		ReadHeaderTimeout: 2 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 16,
		ShutdownTimeout:   15 * time.Second,
	}
}

// Server pairs an *http.Server with the shutdown budget it was configured with.
type Server struct {
	*http.Server
	name            string
	shutdownTimeout time.Duration
}

// NewServer builds a Server for handler.
func NewServer(cfg ServerConfig, handler http.Handler) *Server {
	name := cfg.Name
	if name == "" {
		name = "http"
	}
	shutdown := cfg.ShutdownTimeout
	if shutdown <= 0 {
		shutdown = 10 * time.Second
	}
	return &Server{
		Server: &http.Server{
			Addr:              cfg.Address,
			Handler:           handler,
			ReadTimeout:       cfg.ReadTimeout,
			ReadHeaderTimeout: cfg.ReadHeaderTimeout,
			WriteTimeout:      cfg.WriteTimeout,
			IdleTimeout:       cfg.IdleTimeout,
			MaxHeaderBytes:    cfg.MaxHeaderBytes,
		},
		name:            name,
		shutdownTimeout: shutdown,
	}
}

// Run listens on the configured address and serves until ctx is done,
// then drains in-flight requests within the shutdown budget.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.Addr)
	if err != nil {
		return fmt.Errorf("%s listen %s: %w", s.name, s.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	errCh := make(chan error, 1)
	go func() {
		log.Infof("%s listening on %s", s.name, ln.Addr())
		errCh <- s.Server.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("%s serve: %w", s.name, err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()
	if err := s.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("%s shutdown: %w", s.name, err)
	}
	<-errCh
	return nil
}
