// Package main is the entry point for the Ballast capital allocation service.
// It keeps funds distributed across registered strategies according to their
// configured target weights, and exposes an HTTP API for inspecting the
// portfolio and triggering rebalances.
//
// Startup sequence:
//  1. Load configuration from environment variables
//  2. Initialize structured logging
//  3. Open and migrate the config and portfolio databases
//  4. Wire the ledger, registry, valuation, and rebalancing services
//  5. Register scheduled jobs (snapshots, maintenance, optional backups)
//  6. Start the HTTP server and wait for a shutdown signal
//
// The service uses a 2-database architecture:
// - config.db: Strategy registrations and rebalance settings
// - portfolio.db: Account balances, rebalance runs, allocation snapshots
package main

import (
	"context"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/aristath/ballast/internal/config"
	"github.com/aristath/ballast/internal/database"
	"github.com/aristath/ballast/internal/domain"
	"github.com/aristath/ballast/internal/events"
	"github.com/aristath/ballast/internal/modules/history"
	"github.com/aristath/ballast/internal/modules/rebalancing"
	"github.com/aristath/ballast/internal/modules/registry"
	"github.com/aristath/ballast/internal/modules/settings"
	"github.com/aristath/ballast/internal/modules/valuation"
	"github.com/aristath/ballast/internal/reliability"
	"github.com/aristath/ballast/internal/scheduler"
	"github.com/aristath/ballast/internal/server"
	"github.com/aristath/ballast/internal/strategies"
	"github.com/aristath/ballast/pkg/logger"
)

const shutdownTimeout = 30 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		// Use fallback logger if config fails
		fallbackLog := logger.New(logger.Config{Level: "info", Pretty: true})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
	})
	logger.SetGlobalLogger(log)

	log.Info().
		Str("vault", cfg.VaultID).
		Str("asset", cfg.AssetID).
		Bool("dev_mode", cfg.DevMode).
		Msg("Starting Ballast")

	// Databases. The portfolio database carries the fund-movement ledger
	// and gets the stricter durability profile.
	configDB, err := database.New(database.Config{
		Path:    filepath.Join(cfg.DataDir, "config.db"),
		Profile: database.ProfileStandard,
		Name:    "config",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open config database")
	}
	defer configDB.Close()

	portfolioDB, err := database.New(database.Config{
		Path:    filepath.Join(cfg.DataDir, "portfolio.db"),
		Profile: database.ProfileLedger,
		Name:    "portfolio",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open portfolio database")
	}
	defer portfolioDB.Close()

	for _, db := range []*database.DB{configDB, portfolioDB} {
		if err := db.Migrate(); err != nil {
			log.Fatal().Err(err).Str("database", db.Name()).Msg("Failed to migrate database")
		}
	}

	bus := events.NewBus(log)

	// Ledger and strategy registry. Every registered strategy moves funds
	// through the same book, so withdrawals and deposits stay conserved.
	book := strategies.NewBook(portfolioDB.Conn(), log)
	factory := func(rec domain.StrategyRecord) (domain.Strategy, error) {
		return strategies.NewLedgerStrategy(rec.ID, book), nil
	}

	registryRepo := registry.NewRepository(configDB.Conn(), log)
	reg := registry.NewService(cfg.VaultID, cfg.AssetID, registryRepo, bus, log)
	if err := reg.Load(factory); err != nil {
		log.Fatal().Err(err).Msg("Failed to load registered strategies")
	}

	// Rebalancing pipeline: valuation -> analysis -> planner -> execution
	valuator := valuation.NewService(reg, log)
	settingsRepo := settings.NewRepository(configDB.Conn(), log)
	rebalanceConfig := rebalancing.NewConfigStore(settingsRepo, bus, log)
	runs := history.NewRepository(portfolioDB.Conn(), log)
	rebalancer := rebalancing.NewService(
		reg, valuator, rebalanceConfig, runs, bus,
		strategies.HoldingAccount, log,
	)

	// Background jobs. Rebalancing is deliberately absent here; it only
	// runs when an admin triggers it over HTTP.
	sched := scheduler.New(log)

	snapshotJob := scheduler.NewSnapshotJob(rebalancer, runs, bus, log)
	if err := sched.AddJob(cfg.SnapshotSchedule, snapshotJob); err != nil {
		log.Fatal().Err(err).Msg("Failed to schedule snapshot job")
	}

	maintenanceJob := scheduler.NewMaintenanceJob([]*database.DB{configDB, portfolioDB}, runs, log)
	if err := sched.AddJob("@daily", maintenanceJob); err != nil {
		log.Fatal().Err(err).Msg("Failed to schedule maintenance job")
	}

	if cfg.Backup.Enabled {
		s3Client, err := reliability.NewS3Client(context.Background(), cfg.Backup, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize backup storage client")
		}

		backupSvc := reliability.NewBackupService(s3Client, map[string]*database.DB{
			"config":    configDB,
			"portfolio": portfolioDB,
		}, cfg.DataDir, log)

		backupJob := reliability.NewBackupJob(backupSvc, bus, cfg.Backup.KeepCount, log)
		if err := sched.AddJob(cfg.Backup.Schedule, backupJob); err != nil {
			log.Fatal().Err(err).Msg("Failed to schedule backup job")
		}
	} else {
		log.Info().Msg("Backups disabled (no bucket configured)")
	}

	sched.Start()

	srv := server.New(server.Config{
		Log:         log,
		Cfg:         cfg,
		ConfigDB:    configDB,
		PortfolioDB: portfolioDB,
		Registry:    reg,
		Rebalancing: rebalancer,
		Runs:        runs,
		Factory:     factory,
		EventBus:    bus,
	})

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- srv.Start()
	}()
	log.Info().Int("port", cfg.Port).Msg("HTTP server started")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-serverErr:
		if err != nil {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	case <-ctx.Done():
		log.Info().Msg("Shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	sched.Stop()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server shutdown failed")
	}

	log.Info().Msg("Ballast stopped")
}
