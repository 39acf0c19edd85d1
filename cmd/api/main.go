package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/itsadi-24/smart-note/internal/config"
	"github.com/itsadi-24/smart-note/internal/container"
	"github.com/itsadi-24/smart-note/internal/logger"
)

const (
	shutdownTimeout = 30 * time.Second
	// writeHeadroom lets a handler whose request deadline just expired still
	// write its response before the connection's write deadline.
	writeHeadroom = 5 * time.Second
)

func main() {
	if err := config.LoadDotEnv(); err != nil {
		logger.WithError(err).Fatal("Failed to load .env")
	}

	// Setup structured logging
	logCloser, err := logger.Setup(config.LogSettingsFromEnv())
	if err != nil {
		logger.WithError(err).Fatal("Failed to open log file")
	}
	defer logCloser.Close()
	gin.SetMode(gin.ReleaseMode)

	// Load configuration
	cfg, err := config.LoadFromEnv()
	if err != nil {
		logger.WithError(err).Error("Failed to load config")
		logCloser.Close()
		os.Exit(1)
	}

	// Initialize dependency injection container. The model client keeps the
	// context it was created with, so it must not be a short-lived one.
	c, err := container.NewContainer(context.Background(), cfg)
	if err != nil {
		logger.WithError(err).Error("Failed to initialize Gemini client")
		logCloser.Close()
		os.Exit(1)
	}

	server := &http.Server{
		Addr:              cfg.ServerAddress(),
		Handler:           c.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.RequestTimeout,
		WriteTimeout:      cfg.RequestTimeout + writeHeadroom,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.WithFields(logrus.Fields{
			"address": cfg.ServerAddress(),
			"variant": cfg.Variant.Name,
			"timeout": cfg.RequestTimeout.String(),
		}).Info("Starting HTTP server")

		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	// Wait for interrupt signal or a listener failure
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	exitCode := 0
	select {
	case sig := <-quit:
		logger.WithField("signal", sig.String()).Info("Shutting down server...")
	case err := <-serverErr:
		logger.WithError(err).Error("Failed to start server")
		exitCode = 1
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.WithError(err).Error("Server forced to shutdown")
		exitCode = 1
	}
	if err := c.Close(); err != nil {
		logger.WithError(err).Warn("Error releasing resources")
	}

	logger.Info("Server exited")
	if exitCode != 0 {
		logCloser.Close()
		os.Exit(exitCode)
	}
}
