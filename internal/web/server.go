// Package web implements the TLS listener bootstrap and static file serving
// for the HTTPS development server.
package web

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/arhuman/devserve/internal/config"
	"go.uber.org/zap"
)

// Server terminates TLS with the provisioned credential bundle and delegates
// request handling to a static file handler rooted at the document root.
type Server struct {
	config   *config.ServeConfig
	logger   *zap.Logger
	httpSrv  *http.Server
	listener net.Listener
}

// NewServer builds a server from the configuration. The credential bundle
// must already exist; a missing or malformed bundle is an error.
func NewServer(cfg *config.ServeConfig, logger *zap.Logger) (*Server, error) {
	// The bundle holds key then certificate, so the same file serves as both
	cert, err := tls.LoadX509KeyPair(cfg.CertFile, cfg.CertFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load credential bundle %s: %w", cfg.CertFile, err)
	}

	s := &Server{
		config: cfg,
		logger: logger,
	}
	s.httpSrv = &http.Server{
		Handler:      s.loggingMiddleware(s.fileHandler()),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
		TLSConfig: &tls.Config{
			Certificates: []tls.Certificate{cert},
		},
	}
	return s, nil
}

// Start binds the network listener and wraps it in TLS. It returns without
// accepting connections; call Serve to run the accept loop.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.config.Addr())
	if err != nil {
		return fmt.Errorf("failed to bind %s: %w", s.config.Addr(), err)
	}
	s.listener = tls.NewListener(ln, s.httpSrv.TLSConfig)

	s.logger.Info("Listener bound",
		zap.String("address", ln.Addr().String()),
		zap.String("root", s.config.Root))
	return nil
}

// Addr returns the bound listener address, or nil before Start
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Serve runs the accept loop until ctx is cancelled, then drains in-flight
// connections within the configured grace period. Start must have been
// called first.
func (s *Server) Serve(ctx context.Context) error {
	if s.listener == nil {
		return errors.New("server not started")
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.httpSrv.Serve(s.listener)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info("Shutting down", zap.Duration("grace", s.config.ShutdownGrace))
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownGrace)
	defer cancel()
	if err := s.httpSrv.Shutdown(shutdownCtx); err != nil {
		s.logger.Warn("Forcing close after grace period", zap.Error(err))
		return s.httpSrv.Close()
	}
	return nil
}
