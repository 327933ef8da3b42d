package main

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/lib/pq"

	"rewards-ledger/internal/config"
	"rewards-ledger/internal/database"
	"rewards-ledger/internal/logger"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		bootLog := logger.New("info")
		bootLog.Fatal().Err(err).Msg("Failed to load config")
	}
	log := logger.New(cfg.Log.Level)

	// Tables first, then the constraints and triggers on top of them
	if err := database.Connect(cfg.GetDSN()); err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	if err := database.AutoMigrate(); err != nil {
		log.Fatal().Err(err).Msg("Failed to migrate models")
	}

	db, err := sql.Open("postgres", cfg.GetDSN())
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open database")
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to ping database")
	}

	applied, err := database.ApplySQLMigrations(ctx, db)
	if err != nil {
		log.Fatal().Err(err).Strs("applied", applied).Msg("Migration failed")
	}

	log.Info().Strs("applied", applied).Msg("Migrations applied successfully")
}
