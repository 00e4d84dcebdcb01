package main

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	importhandler "github.com/vendalink/orderhub/internal/domain/import/handler"
	importparser "github.com/vendalink/orderhub/internal/domain/import/parser"
	importrepo "github.com/vendalink/orderhub/internal/domain/import/repository"
	importservice "github.com/vendalink/orderhub/internal/domain/import/service"

	"github.com/vendalink/orderhub/pkg/config"
	"github.com/vendalink/orderhub/pkg/cron"
	"github.com/vendalink/orderhub/pkg/db"
	"github.com/vendalink/orderhub/pkg/metrics"
	"github.com/vendalink/orderhub/pkg/storage"
)

// Dependencies holds all application dependencies
type Dependencies struct {
	Config  *config.Config
	DB      *db.DB
	Logger  *slog.Logger
	Metrics *metrics.Metrics

	ImportRepo    importrepo.ImportRepository
	ImportService *importservice.ImportService
	ImportHandler *importhandler.ImportHandler
	FileStorage   storage.Storage
	Scheduler     *cron.Scheduler
}

// InitDependencies initializes all application dependencies
func InitDependencies(cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config: cfg,
		Logger: logger,
	}

	if err := deps.initDatabase(); err != nil {
		return nil, fmt.Errorf("failed to init database: %w", err)
	}

	if err := deps.initServices(); err != nil {
		return nil, fmt.Errorf("failed to init services: %w", err)
	}

	logger.Info("all dependencies initialized successfully")

	return deps, nil
}

// initDatabase initializes the database connection and runs migrations
func (d *Dependencies) initDatabase() error {
	database, err := db.New(db.Config{
		DSN:             d.Config.Database.DSN(),
		MaxConns:        25,
		MinConns:        5,
		MaxConnLifetime: 5 * time.Minute,
		MaxConnIdleTime: 10 * time.Minute,
	}, d.Logger)
	if err != nil {
		return err
	}

	d.DB = database

	if err := d.DB.RunMigrations(); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	d.Logger.Info("database connected and migrations completed successfully")
	return nil
}

// initServices wires the import pipeline end to end
func (d *Dependencies) initServices() error {
	d.ImportRepo = importrepo.NewPostgresImportRepository(d.DB.Pool)

	fileStorage, err := storage.New(&storage.Config{LocalPath: d.Config.Import.UploadDir})
	if err != nil {
		return fmt.Errorf("failed to init file storage: %w", err)
	}
	d.FileStorage = fileStorage

	d.Metrics = metrics.New(prometheus.DefaultRegisterer)

	detector := importparser.NewDetector(d.Logger)
	d.ImportService = importservice.NewImportService(d.ImportRepo, detector, d.Logger).
		WithFileStorage(d.FileStorage).
		WithMetrics(d.Metrics)

	d.ImportHandler = importhandler.NewImportHandler(d.ImportService, d.Logger)

	d.Scheduler = cron.NewScheduler(d.ImportRepo, d.Config.Import.StaleJobTimeout, d.Logger)

	d.Logger.Info("services initialized")
	return nil
}

// Cleanup closes all resources
func (d *Dependencies) Cleanup() {
	if d.Scheduler != nil {
		<-d.Scheduler.Stop().Done()
	}
	if d.DB != nil {
		d.DB.Close()
	}
	d.Logger.Info("cleanup completed")
}
