package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/arkaiv/arkaiv/pkg/api"
	"github.com/arkaiv/arkaiv/pkg/logger"
)

func newServeCmd(a *app) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the REST API and run the digest schedule",
		Long: `Serve starts the HTTP API and the cron schedule that compiles one digest per day.
It shuts down gracefully on SIGINT or SIGTERM.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if addr != "" {
				a.cfg.HTTP.Addr = addr
			}
			return a.serve(cmd.Context())
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides http.addr)")
	return cmd
}

func (a *app) serve(parent context.Context) error {
	if a.cfg.HTTP.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := a.runtime(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err := rt.Close(); err != nil {
			a.log.Error("Failed to close runtime", logger.Error(err))
		}
	}()

	sched := rt.Scheduler()
	sched.Start()
	a.log.Info("Next digest run", logger.Time("at", sched.Next()))

	srv := api.NewServer(a.cfg.HTTP.Addr, rt.Router(), a.cfg.HTTP.ReadTimeout, a.cfg.HTTP.WriteTimeout, a.log)
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	var serveErr error
	select {
	case <-ctx.Done():
		a.log.Info("Shutdown signal received")
	case serveErr = <-errCh:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.HTTP.ShutdownTimeout)
	defer cancel()
	return errors.Join(serveErr, srv.Shutdown(shutdownCtx), sched.Stop(shutdownCtx))
}
