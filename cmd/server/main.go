package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"login-service/internal/factory"
	"login-service/internal/util"

	"github.com/samber/oops"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 30 * time.Second

func main() {
	// Initialize factory (which loads config and initializes all clients)
	f, err := factory.NewFactory()
	if err != nil {
		util.Fatal("Failed to initialize factory", util.ErrorField(err))
	}

	cfg := f.Config()

	router, err := f.Router()
	if err != nil {
		f.Close()
		util.Fatal("Failed to build router", util.ErrorField(err))
	}

	// Create HTTP server with configured timeouts
	server := &http.Server{
		Addr:         cfg.GetServerAddress(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		util.Info("Server started",
			util.String("environment", cfg.Environment),
			util.String("address", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return oops.Code("SERVER_FAILED").With("address", server.Addr).Wrapf(err, "http server stopped")
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		util.Info("Shutdown requested, draining connections", util.Duration("timeout", shutdownTimeout))

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return oops.Code("SERVER_SHUTDOWN_FAILED").Wrapf(err, "failed to shutdown server gracefully")
		}
		util.Info("Server shutdown completed")
		return nil
	})

	err = g.Wait()
	f.Close()
	if err != nil {
		util.Error("Server exited with error", util.ErrorField(err))
		os.Exit(1)
	}
}
