package app

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/roadwatch/roadwatch/internal/controllers/status"
	"github.com/roadwatch/roadwatch/internal/feed"
	"github.com/roadwatch/roadwatch/internal/log"
	"github.com/roadwatch/roadwatch/internal/managers"
	"github.com/roadwatch/roadwatch/pkg/config"
	"go.uber.org/zap"
)

// App represents the main application
type App struct {
	configProvider config.ConfigProvider
	logger         *zap.SugaredLogger
}

// New creates a new application instance
func New(configProvider config.ConfigProvider, logger *zap.SugaredLogger) *App {
	return &App{
		configProvider: configProvider,
		logger:         logger,
	}
}

// Run starts the application and blocks until shutdown
func (a *App) Run(ctx context.Context) error {
	var wg sync.WaitGroup

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	cfgData, err := a.configProvider.LoadConfig()
	if err != nil {
		return err
	}

	// Initialize the sink manager
	sinkManager, err := managers.NewSinkManager(ctx, &wg, a.configProvider)
	if err != nil {
		return err
	}

	// Initialize the engine runner
	runner, err := managers.NewEngineRunner(ctx, &wg, a.configProvider, sinkManager.GetEventDistributor(), a.logger)
	if err != nil {
		return err
	}

	// Load the hazard catalog before positions start flowing; a session
	// without hazards is useless
	loader, err := feed.NewLoader(cfgData.Feed, runner)
	if err != nil {
		return err
	}
	if err := loader.Start(ctx, &wg); err != nil {
		return err
	}

	if err := runner.Start(); err != nil {
		return err
	}

	// Initialize the source manager
	sm, err := managers.NewSourceManager(ctx, &wg, a.configProvider, runner.GetSampleDistributor(), a.logger)
	if err != nil {
		return err
	}
	go sm.StartPositionSources()

	// Initialize the controller manager
	cm, err := managers.NewControllerManager(ctx, &wg, a.configProvider, status.Dependencies{
		Engine:     runner,
		Feed:       loader,
		Subscriber: sinkManager,
	}, a.logger)
	if err != nil {
		return err
	}
	err = cm.StartControllers()
	if err != nil {
		return err
	}

	log.Info("Application started successfully")

	// Set up signal handling
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	// Wait for shutdown signal
	select {
	case <-sigs:
		log.Info("shutdown signal received, initiating graceful shutdown...")
	case <-ctx.Done():
		log.Info("context cancelled, shutting down...")
	}

	// Cancel context to signal all goroutines to stop
	cancel()

	// Wait for all workers to terminate
	log.Info("waiting for all workers to terminate...")
	wg.Wait()
	log.Info("shutdown complete")

	return nil
}
