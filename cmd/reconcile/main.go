package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"
	"time"

	"rewards-ledger/internal/config"
	"rewards-ledger/internal/database"
	"rewards-ledger/internal/logger"
	"rewards-ledger/internal/repository"
	"rewards-ledger/internal/services"
)

// reconcile runs one reconciliation pass and prints the report. With
// -account it audits a single account's points and referral counters instead.
func main() {
	accountID := flag.String("account", "", "reconcile a single account")
	timeout := flag.Duration("timeout", 10*time.Minute, "maximum run time")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		bootLog := logger.New("info")
		bootLog.Fatal().Err(err).Msg("Failed to load configuration")
	}
	log := logger.New(cfg.Log.Level)

	if err := database.Connect(cfg.GetDSN()); err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}

	store := services.NewStore(repository.NewRepository(database.GetDB()))
	referralService := services.NewReferralService(store, nil, services.ReferralConfig{
		MaxAttempts:    cfg.Referral.MaxAttempts,
		AttemptTimeout: cfg.Referral.StoreTimeout,
	}, log)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	var out interface{}
	if *accountID != "" {
		points, err := services.NewPointsService(store, cfg.Referral.MaxAttempts, log).Reconcile(ctx, *accountID)
		if err != nil {
			log.Fatal().Err(err).Str("account_id", *accountID).Msg("Points audit failed")
		}
		stats, err := referralService.RecomputeReferralStats(ctx, *accountID)
		if err != nil {
			log.Fatal().Err(err).Str("account_id", *accountID).Msg("Referral recompute failed")
		}
		out = map[string]interface{}{"points": points, "referral_stats": stats}
	} else {
		report, err := referralService.ReconcileAll(ctx, cfg.Reconcile.BatchSize)
		if err != nil {
			log.Fatal().Err(err).Msg("Reconciliation failed")
		}
		out = report
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		log.Fatal().Err(err).Msg("Failed to write report")
	}
}
