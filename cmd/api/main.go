package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"postfolio/internal/app"
	"postfolio/internal/observability"
)

func main() {
	logger := observability.NewLogger()

	runtime, err := app.Build(app.Options{LoadDotEnv: true, Logger: logger})
	if err != nil {
		logger.Error("bootstrap_failed", map[string]any{"error": err})
		os.Exit(1)
	}
	defer func() {
		if err := runtime.Close(); err != nil {
			logger.Error("shutdown_close_failed", map[string]any{"error": err})
		}
	}()

	server := &http.Server{
		Addr:              runtime.Addr,
		Handler:           runtime.Handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	logger.Info("server_start", map[string]any{"addr": runtime.Addr})
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server_failed", map[string]any{"error": err})
		os.Exit(1)
	}
}
