package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"lucentpay-checkout/internal/app"
	"lucentpay-checkout/internal/config"
	"lucentpay-checkout/pkg/logger"
	"lucentpay-checkout/pkg/validator"
)

func main() {
	logger.Init()
	// Flush buffered error reports before the process exits
	defer func() {
		if err := logger.Close(); err != nil {
			logger.Error(err, "Failed to flush error reporter", nil)
		}
	}()

	if err := godotenv.Load(); err != nil {
		logger.Info("No .env file found, using environment variables", nil)
	}

	cfg := config.New()
	logger.SetLevel(cfg.LogLevel)
	if cfg.IsProduction() {
		logger.UseJSON()
	}
	if err := logger.InitSentry(cfg.SentryDSN, cfg.Environment); err != nil {
		logger.Warn("Error reporting disabled", map[string]interface{}{"reason": err.Error()})
	}

	logger.Info("Starting LucentPay checkout service", map[string]interface{}{
		"environment": cfg.Environment,
	})

	if err := cfg.Validate(); err != nil {
		logger.Warn("Configuration incomplete, checkout will be unavailable", map[string]interface{}{
			"reason": err.Error(),
		})
	}

	validator.Init()

	application, err := app.New(cfg, app.Options{})
	if err != nil {
		logger.Error(err, "Failed to initialize application", nil)
		exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	serverErr := make(chan error, 1)
	go func() {
		if err := application.Run(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error(err, "Failed to start server", nil)
			serverErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("Shutting down server...", nil)
	case err := <-serverErr:
		logger.Error(err, "Server error occurred, initiating shutdown", nil)
		stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := application.Shutdown(shutdownCtx); err != nil {
		logger.Error(err, "Server forced to shutdown", nil)
		exit(1)
	}

	logger.Info("Server exited gracefully", nil)
}

var (
	flushLogs = logger.Close
	osExit    = os.Exit
)

// exit flushes pending error reports first; os.Exit skips deferred calls.
func exit(code int) {
	if err := flushLogs(); err != nil {
		logger.Warn("Failed to flush error reporter", map[string]interface{}{"reason": err.Error()})
	}
	osExit(code)
}
