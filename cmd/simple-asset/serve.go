package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/tendant/simple-asset/pkg/simpleasset/api"
	"github.com/tendant/simple-asset/pkg/simpleasset/monitor"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP server",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger := slog.Default()

	rt, err := serverConfig.Build(ctx, logger)
	if err != nil {
		return fmt.Errorf("failed to build service: %w", err)
	}

	var pending *monitor.PendingMonitor
	if serverConfig.PendingCheckInterval > 0 && serverConfig.PendingStaleAfter > 0 {
		pending, err = monitor.New(rt.Service, monitor.Config{
			Interval:   serverConfig.PendingCheckInterval,
			StaleAfter: serverConfig.PendingStaleAfter,
			Logger:     logger,
			Metrics:    rt.Metrics,
		})
		if err == nil {
			err = pending.Start(context.WithoutCancel(ctx))
		}
		if err != nil {
			_ = rt.Close(context.Background())
			return err
		}
	}

	httpServer := &http.Server{
		Addr: fmt.Sprintf(":%s", serverConfig.Port),
		Handler: api.NewRouter(api.RouterConfig{
			Service:      rt.Service,
			Logger:       logger,
			JWTSecret:    serverConfig.JWTSecret,
			Gatherer:     rt.Registry,
			MaxBodyBytes: serverConfig.MaxRequestBytes,
		}),
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("simple-asset server starting",
			"port", serverConfig.Port,
			"env", serverConfig.Environment,
			"auth", serverConfig.JWTSecret != "")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	var runErr error
	select {
	case err := <-serveErr:
		if err != nil {
			runErr = fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
	}
	logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), serverConfig.ShutdownTimeout)
	defer cancel()

	// Stop taking requests first so no new uploads are dispatched, then let
	// in-flight uploads reach a terminal state.
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}
	if pending != nil {
		pending.Stop()
	}
	if err := rt.Close(shutdownCtx); err != nil {
		logger.Error("background uploads did not drain", "error", err)
		return errors.Join(runErr, err)
	}

	logger.Info("server exiting")
	return runErr
}
