package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	for _, key := range []string{
		"DB_HOST", "DB_PORT", "DB_USER", "DB_PASSWORD", "DB_NAME", "DB_SSL_MODE",
		"SERVER_PORT", "FRONTEND_URL", "JWT_SECRET", "STELLAR_NETWORK",
		"REFERRAL_MAX_ATTEMPTS", "REFERRAL_STORE_TIMEOUT",
		"RECONCILE_INTERVAL", "RECONCILE_BATCH_SIZE",
		"REDIS_URL", "REDIS_STATS_TTL", "LOG_LEVEL",
	} {
		t.Setenv(key, "")
	}
}

func TestLoad(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("JWT_SECRET", "secret")

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "localhost", cfg.Database.Host)
		assert.Equal(t, "rewards_ledger", cfg.Database.DBName)
		assert.Equal(t, "8080", cfg.Server.Port)
		assert.Equal(t, "testnet", cfg.App.StellarNetwork)
		assert.Equal(t, 3, cfg.Referral.MaxAttempts)
		assert.Equal(t, 5*time.Second, cfg.Referral.StoreTimeout)
		assert.Equal(t, 10*time.Minute, cfg.Reconcile.Interval)
		assert.Equal(t, 100, cfg.Reconcile.BatchSize)
		assert.Equal(t, "", cfg.Redis.URL)
		assert.Equal(t, "info", cfg.Log.Level)
	})

	t.Run("overrides", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("JWT_SECRET", "secret")
		t.Setenv("STELLAR_NETWORK", "public")
		t.Setenv("REFERRAL_MAX_ATTEMPTS", "5")
		t.Setenv("REFERRAL_STORE_TIMEOUT", "250ms")
		t.Setenv("RECONCILE_INTERVAL", "1m")
		t.Setenv("REDIS_URL", "redis://localhost:6379/0")
		t.Setenv("LOG_LEVEL", "debug")

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "public", cfg.App.StellarNetwork)
		assert.Equal(t, 5, cfg.Referral.MaxAttempts)
		assert.Equal(t, 250*time.Millisecond, cfg.Referral.StoreTimeout)
		assert.Equal(t, time.Minute, cfg.Reconcile.Interval)
		assert.Equal(t, "redis://localhost:6379/0", cfg.Redis.URL)
		assert.Equal(t, "debug", cfg.Log.Level)
	})

	t.Run("missing jwt secret", func(t *testing.T) {
		clearEnv(t)

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "JWT_SECRET is required")
	})

	t.Run("invalid values", func(t *testing.T) {
		cases := map[string]string{
			"STELLAR_NETWORK":        "mainnet",
			"REFERRAL_MAX_ATTEMPTS":  "0",
			"REFERRAL_STORE_TIMEOUT": "soon",
			"RECONCILE_INTERVAL":     "10ms",
			"LOG_LEVEL":              "verbose",
		}
		for key, value := range cases {
			clearEnv(t)
			t.Setenv("JWT_SECRET", "secret")
			t.Setenv(key, value)

			_, err := Load()
			assert.Error(t, err, key)
		}
	})
}

func TestGetDSN(t *testing.T) {
	cfg := &Config{Database: DatabaseConfig{
		Host: "db", Port: "5433", User: "app", Password: "pw", DBName: "ledger", SSLMode: "require",
	}}
	assert.Equal(t, "host=db port=5433 user=app password=pw dbname=ledger sslmode=require", cfg.GetDSN())
}
