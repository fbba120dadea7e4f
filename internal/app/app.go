// Package app wires configuration, storage and services into one graph shared
// by the HTTP server and the CLI.
package app

import (
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/jengzang/zone-density/internal/config"
	"github.com/jengzang/zone-density/internal/database"
	"github.com/jengzang/zone-density/internal/density"
	"github.com/jengzang/zone-density/internal/ingest"
	"github.com/jengzang/zone-density/internal/repository"
	"github.com/jengzang/zone-density/internal/service"
)

// App holds the wired dependencies
type App struct {
	Config  *config.Config
	Logger  *zap.Logger
	DB      *sql.DB
	Repos   service.Repositories
	Density *service.DensityService
	Imports *service.ImportService
}

// New opens the database and builds the services
func New(cfg *config.Config, logger *zap.Logger) (*App, error) {
	db, err := database.Open(database.Config{Path: cfg.Database.Path}, logger)
	if err != nil {
		return nil, err
	}

	engine, err := density.NewEngine(density.Config{
		Radius:           cfg.Density.Radius,
		DefaultRecordCRS: cfg.Density.DefaultRecordCRS,
		Join: density.JoinOptions{
			Workers:   cfg.Density.Workers,
			ChunkSize: cfg.Density.ChunkSize,
		},
	}, logger)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("invalid density configuration: %w", err)
	}

	repos := service.Repositories{
		Zones:   repository.NewZoneRepository(db),
		Records: repository.NewRecordRepository(db),
		Runs:    repository.NewRunRepository(db),
		Counts:  repository.NewCountRepository(db),
	}

	return &App{
		Config:  cfg,
		Logger:  logger,
		DB:      db,
		Repos:   repos,
		Density: service.NewDensityService(repos, engine, cfg.Density.CacheTTL, logger),
		Imports: service.NewImportService(repos.Zones, repos.Records, logger),
	}, nil
}

// CSVOptions maps the ingest configuration onto reader options
func (a *App) CSVOptions() ingest.CSVOptions {
	ic := a.Config.Ingest
	return ingest.CSVOptions{
		IDColumn:   ic.IDColumn,
		XColumn:    ic.XColumn,
		YColumn:    ic.YColumn,
		CRSColumn:  ic.CRSColumn,
		TimeColumn: ic.TimeColumn,
		BatchSize:  ic.BatchSize,
	}
}

// Close stops background runs and closes the database
func (a *App) Close() error {
	a.Density.Close()
	_ = a.Logger.Sync()
	return a.DB.Close()
}
