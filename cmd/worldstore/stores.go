package main

import (
	"context"
	"fmt"

	"github.com/R3E-Network/worldstore/internal/config"
	"github.com/R3E-Network/worldstore/internal/logging"
	"github.com/R3E-Network/worldstore/internal/platform/migrations"
	"github.com/R3E-Network/worldstore/internal/storage"
	"github.com/R3E-Network/worldstore/internal/storage/memory"
	"github.com/R3E-Network/worldstore/internal/storage/postgres"
)

type stores struct {
	world   storage.WorldStore
	players storage.PlayerStore
	env     storage.EnvStore
	health  storage.HealthChecker
}

// openStores connects to PostgreSQL when a DSN is configured and falls back
// to in-memory stores otherwise. The returned cleanup closes the pool.
func openStores(ctx context.Context, cfg *config.Config, logger *logging.Logger) (*stores, func(), error) {
	if cfg.Database.DSN == "" {
		logger.Warn("DATABASE_DSN not set; using in-memory storage, data will not survive a restart")
		mem := memory.New()
		return &stores{
			world:   mem.World(),
			players: mem.Players(),
			env:     mem.Env(),
			health:  mem,
		}, func() {}, nil
	}

	db, err := postgres.Open(ctx, cfg.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("open database: %w", err)
	}

	if cfg.Database.AutoMigrate {
		if err := migrations.Up(db.DB, logger); err != nil {
			db.Close()
			return nil, nil, err
		}
	}

	pg := postgres.New(db)
	cleanup := func() {
		if err := pg.Close(); err != nil {
			logger.WithError(err).Warn("Failed to close database")
		}
	}
	return &stores{
		world:   pg.World(),
		players: pg.Players(),
		env:     pg.Env(),
		health:  pg,
	}, cleanup, nil
}
