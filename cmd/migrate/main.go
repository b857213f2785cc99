package main

import (
	"context"

	"go.uber.org/zap"

	"github.com/fabriclens/engine/internal/store"
	"github.com/fabriclens/engine/pkg/config"
	"github.com/fabriclens/engine/pkg/database"
	"github.com/fabriclens/engine/pkg/logger"
)

func main() {
	cfg := config.MustLoad()

	log, err := logger.Init(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	log.Info("running migrations")

	db, err := database.OpenPostgres(context.Background(), cfg.DatabaseURL)
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}

	// Snapshot rows use gen_random_uuid defaults.
	if err := db.Exec(`CREATE EXTENSION IF NOT EXISTS "pgcrypto"`).Error; err != nil {
		log.Fatal("failed to create pgcrypto extension", zap.Error(err))
	}

	if err := store.Migrate(db); err != nil {
		log.Fatal("migration failed", zap.Error(err))
	}

	log.Info("migrations completed")
}
