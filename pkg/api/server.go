package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/arkaiv/arkaiv/pkg/logger"
)

// Server wraps http.Server with start and graceful shutdown.
type Server struct {
	srv *http.Server
	log logger.Logger
}

func NewServer(addr string, handler http.Handler, readTimeout, writeTimeout time.Duration, log logger.Logger) *Server {
	if log == nil {
		log = logger.NewNop()
	}
	return &Server{
		srv: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadTimeout:       readTimeout,
			ReadHeaderTimeout: readTimeout,
			WriteTimeout:      writeTimeout,
		},
		log: log,
	}
}

// Start blocks until the server stops. A graceful shutdown is not an error.
func (s *Server) Start() error {
	s.log.Info("Starting HTTP server", logger.String("address", s.srv.Addr))
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("Shutting down HTTP server")
	return s.srv.Shutdown(ctx)
}
