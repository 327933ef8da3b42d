package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"

	"rewards-ledger/internal/config"
	"rewards-ledger/internal/database"
	"rewards-ledger/internal/logger"
	"rewards-ledger/internal/models"
	"rewards-ledger/internal/repository"
	"rewards-ledger/internal/services"
)

// import loads a JSON array of legacy account documents. Referrers should
// appear before the accounts they referred so the linkage can be resolved.
func main() {
	path := flag.String("file", "accounts.json", "legacy account export")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		bootLog := logger.New("info")
		bootLog.Fatal().Err(err).Msg("Failed to load configuration")
	}
	log := logger.New(cfg.Log.Level)

	raw, err := os.ReadFile(*path)
	if err != nil {
		log.Fatal().Err(err).Str("file", *path).Msg("Failed to read export")
	}
	var docs []models.LegacyAccountDocument
	if err := json.Unmarshal(raw, &docs); err != nil {
		log.Fatal().Err(err).Msg("Failed to parse export")
	}

	if err := database.Connect(cfg.GetDSN()); err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	if err := database.AutoMigrate(); err != nil {
		log.Fatal().Err(err).Msg("Failed to run migrations")
	}

	store := services.NewStore(repository.NewRepository(database.GetDB()))
	accounts := services.NewAccountService(store, cfg.App.StellarNetwork, log)

	ctx := context.Background()
	imported, skipped, failed := 0, 0, 0
	for i := range docs {
		result, err := accounts.ImportLegacy(ctx, &docs[i])
		if err != nil {
			failed++
			log.Error().Err(err).Str("legacy_id", docs[i].ID).Msg("Import failed")
			continue
		}
		if result.Skipped {
			skipped++
			continue
		}
		imported++
		log.Debug().
			Str("account_id", result.AccountID).
			Bool("code_reissued", result.CodeReissued).
			Int64("opening_balance", result.OpeningBalance).
			Msg("Account imported")
	}

	log.Info().Int("imported", imported).Int("skipped", skipped).Int("failed", failed).Msg("Legacy import finished")
	if failed > 0 {
		os.Exit(1)
	}
}
