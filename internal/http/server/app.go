package server

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/pablopda/linux-speech-tools/internal/config"
	"github.com/pablopda/linux-speech-tools/internal/http/middleware"
	"github.com/pablopda/linux-speech-tools/internal/http/routes"
	"github.com/pablopda/linux-speech-tools/internal/metrics"
)

// App is the speech service: HTTP server plus the services behind it.
type App struct {
	server   *Server
	cfg      *config.Config
	services *routes.Services
}

// NewApp wires the application from cfg.
func NewApp(cfg *config.Config) (*App, error) {
	middleware.InitZerologWithConfig(&cfg.Log)
	if cfg.Log.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	services, err := routes.InitializeServices(cfg, metrics.GlobalMetrics)
	if err != nil {
		return nil, fmt.Errorf("initialize services: %w", err)
	}

	router, err := routes.SetupRoutes(cfg, services, middleware.AccessLogger())
	if err != nil {
		services.Close()
		return nil, fmt.Errorf("setup routes: %w", err)
	}

	return &App{
		server:   New(cfg, router),
		cfg:      cfg,
		services: services,
	}, nil
}

// Start runs the server until it fails or the process receives SIGINT or
// SIGTERM, then shuts down gracefully.
func (a *App) Start() error {
	errChan := make(chan error, 1)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	go func() {
		logrus.Infof("Starting speech service on port %d", a.cfg.Server.Port)
		errChan <- a.server.Start()
	}()

	select {
	case err := <-errChan:
		a.services.Close()
		return err
	case sig := <-quit:
		logrus.WithField("signal", sig.String()).Info("Received shutdown signal")

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := a.server.Shutdown(ctx); err != nil {
			logrus.WithError(err).Error("Server shutdown failed")
		}

		logrus.Info("Closing services")
		a.services.Close()

		logrus.Info("Server stopped gracefully")
		return nil
	}
}
