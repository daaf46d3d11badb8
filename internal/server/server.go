package server

import (
	"context"
	"errors"
	"net"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/BioHazard786/Warpcall/internal/config"
	"github.com/BioHazard786/Warpcall/internal/relay"
)

// Server is the relay process: the hub plus its HTTP listener.
type Server struct {
	cfg *config.ServerConfig
	hub *relay.Hub
	srv *http.Server
}

// New builds a relay server from cfg.
func New(cfg *config.ServerConfig) *Server {
	hub := relay.NewHub(relay.NewRegistry())
	return &Server{
		cfg: cfg,
		hub: hub,
		srv: &http.Server{
			Addr:    cfg.ListenAddr,
			Handler: NewRouter(hub),
		},
	}
}

// Run serves until ctx is cancelled, then shuts down within the configured
// timeout and closes every relay connection.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.ListenAddr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	go s.hub.Run()

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", ln.Addr().String()).Msg("starting signaling server")
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		s.hub.Stop()
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	err := s.srv.Shutdown(shutdownCtx)
	s.hub.Stop()
	if err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
		return err
	}
	log.Info().Msg("server exited")
	return nil
}
