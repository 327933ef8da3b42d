package database

import (
	"embed"
	"fmt"
	"io/fs"
	"sort"

	"github.com/rs/zerolog/log"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"rewards-ledger/internal/models"
)

// Migrations holds Postgres-only constraints that AutoMigrate cannot express
//
//go:embed migrations/*.sql
var Migrations embed.FS

var DB *gorm.DB

// Connect establishes a connection to the PostgreSQL database
func Connect(dsn string) error {
	var err error

	DB, err = gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Error),
		TranslateError: true,
	})

	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	log.Info().Msg("Database connection established")
	return nil
}

// AutoMigrate runs automatic migrations for all models on the global connection
func AutoMigrate() error {
	if err := MigrateModels(DB); err != nil {
		return err
	}
	log.Info().Msg("Database migrations completed")
	return nil
}

// MigrateModels creates or updates the tables of every model on db
func MigrateModels(db *gorm.DB) error {
	ledgerModels := []interface{}{
		&models.Account{},
		&models.PointsTransaction{},
		&models.ReferralRepair{},
	}
	for _, model := range ledgerModels {
		if err := db.AutoMigrate(model); err != nil {
			return fmt.Errorf("migration failed for %T: %w", model, err)
		}
	}

	// Demo progress is not on the referral path; a failure here is not fatal
	if err := db.AutoMigrate(&models.DemoProgress{}); err != nil {
		log.Warn().Err(err).Msg("Migration issue for demo progress")
	}
	return nil
}

// MigrationFiles returns the embedded SQL migration names in apply order
func MigrationFiles() ([]string, error) {
	names, err := fs.Glob(Migrations, "migrations/*.sql")
	if err != nil {
		return nil, err
	}
	sort.Strings(names)
	return names, nil
}

// GetDB returns the database instance
func GetDB() *gorm.DB {
	return DB
}
