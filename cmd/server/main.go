// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"projector-service/internal/catalog"
	"projector-service/internal/config"
	"projector-service/internal/driver"
	"projector-service/internal/routes"
	"projector-service/internal/service"
	"projector-service/internal/utils"
)

// Application represents the main application
type Application struct {
	config *config.Config
	logger *zap.Logger
	server *http.Server

	catalog        *catalog.Catalog
	driverRegistry *driver.Registry
	eventBus       *service.EventBus

	// Services
	projectorService *service.ProjectorService
	pollerService    *service.PollerService

	router *routes.Router
}

// @title Projector Service API
// @version 1.0.0
// @description Control service for ESC/VP.net projectors
// @BasePath /api/v1
func main() {
	configPath := flag.String("config", os.Getenv("PROJECTOR_SERVICE_CONFIG"), "Configuration file path")
	flag.Parse()

	// Initialize application
	app, err := NewApplication(*configPath)
	if err != nil {
		fmt.Printf("Failed to initialize application: %v\n", err)
		os.Exit(1)
	}

	// Start the application
	if err := app.Start(); err != nil {
		app.logger.Fatal("Failed to start application", zap.Error(err))
	}
}

// NewApplication creates a new application instance
func NewApplication(configPath string) (*Application, error) {
	// Load configuration
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	// Initialize logger
	logger, err := utils.NewLogger(&cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	serviceLogger := utils.NewServiceLogger(logger, "projector-service")
	serviceLogger.LogServiceStart(cfg.App.Version, cfg)

	app := &Application{
		config: cfg,
		logger: logger,
	}

	if err := app.initializeCatalog(); err != nil {
		return nil, fmt.Errorf("failed to load catalog: %w", err)
	}

	app.initializeDriverRegistry()

	if err := app.initializeServices(); err != nil {
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	app.initializeServer()

	return app, nil
}

// initializeCatalog loads the built-in catalog or the configured override
func (app *Application) initializeCatalog() error {
	var (
		cat *catalog.Catalog
		err error
	)
	if app.config.Catalog.Path != "" {
		cat, err = catalog.LoadFile(app.config.Catalog.Path)
	} else {
		cat, err = catalog.Default()
	}
	if err != nil {
		return err
	}

	app.catalog = cat
	app.logger.Info("Catalog loaded",
		zap.String("path", app.config.Catalog.Path),
		zap.Int("properties", len(cat.AllProperties())),
	)
	return nil
}

// initializeDriverRegistry sets up projector driver registry
func (app *Application) initializeDriverRegistry() {
	app.driverRegistry = driver.NewRegistry(app.logger)
	driver.RegisterDefaultDrivers(app.driverRegistry, app.logger)

	app.logger.Info("Driver registry initialized successfully",
		zap.Strings("brands", app.driverRegistry.SupportedBrands()),
	)
}

// initializeServices creates service instances
func (app *Application) initializeServices() error {
	app.eventBus = service.NewEventBus(app.logger)

	projectorService, err := service.NewProjectorService(
		app.config,
		app.catalog,
		app.driverRegistry,
		app.eventBus,
		app.logger,
	)
	if err != nil {
		return err
	}
	app.projectorService = projectorService

	app.pollerService = service.NewPollerService(
		app.projectorService,
		app.config.Polling,
		app.logger,
	)

	app.logger.Info("Services initialized successfully",
		zap.Int("projectors", len(app.projectorService.ListProjectors())),
	)
	return nil
}

// initializeServer sets up HTTP server and routes
func (app *Application) initializeServer() {
	app.router = routes.NewRouter(
		app.config,
		app.logger,
		app.catalog,
		app.projectorService,
		app.eventBus,
	)

	app.server = &http.Server{
		Addr:         app.config.GetServerAddr(),
		Handler:      app.router.SetupRouter(),
		ReadTimeout:  app.config.Server.ReadTimeout,
		WriteTimeout: app.config.Server.WriteTimeout,
		IdleTimeout:  app.config.Server.IdleTimeout,
	}

	app.logger.Info("HTTP server initialized",
		zap.String("address", app.config.GetServerAddr()),
	)
}

// startBackgroundServices starts the event bus and the pollers
func (app *Application) startBackgroundServices() {
	go app.eventBus.Start()
	app.pollerService.Start(context.Background())

	app.logger.Info("Background services started")
}

// waitForShutdown waits for shutdown signal and performs graceful shutdown
func (app *Application) waitForShutdown() {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	sig := <-quit
	app.logger.Info("Received shutdown signal", zap.String("signal", sig.String()))

	app.shutdown()
}

// shutdown performs graceful shutdown
func (app *Application) shutdown() {
	serviceLogger := utils.NewServiceLogger(app.logger, "projector-service")
	serviceLogger.LogServiceStop("shutdown signal received")

	timeout := app.config.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("HTTP server shutdown error", zap.Error(err))
	} else {
		app.logger.Info("HTTP server stopped")
	}

	app.pollerService.Stop()
	app.router.Close()
	app.projectorService.Close()
	app.eventBus.Stop()

	app.logger.Info("Application shutdown completed")

	if err := utils.CloseLogger(app.logger); err != nil {
		fmt.Printf("Logger close error: %v\n", err)
	}
}

// Start serves HTTP until a shutdown signal arrives
func (app *Application) Start() error {
	go func() {
		app.logger.Info("Starting HTTP server",
			zap.String("address", app.server.Addr),
		)

		if err := app.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			app.logger.Fatal("Failed to start HTTP server", zap.Error(err))
		}
	}()

	app.startBackgroundServices()

	app.waitForShutdown()

	return nil
}
