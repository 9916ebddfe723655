package server

import (
	"context"
	"errors"
	"net"
	"net/http"

	"github.com/discord-voice-bridge/internal/logging"
)

// Server owns the bridge's HTTP listener.
type Server struct {
	srv *http.Server
}

func New(addr string, handler http.Handler) *Server {
	return &Server{srv: &http.Server{Addr: addr, Handler: handler}}
}

// Start binds the listener and serves in the background. Bind errors are
// returned directly; later serve errors are logged.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return err
	}
	logging.Infow("web server listening", "addr", ln.Addr().String())
	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Errorw("web server error", "error", err)
		}
	}()
	return nil
}

// Shutdown stops accepting requests and waits for active ones until ctx
// ends. Hijacked websockets are not tracked and must be closed by their
// owners.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
