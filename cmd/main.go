package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"rewards-ledger/internal/auth"
	"rewards-ledger/internal/cache"
	"rewards-ledger/internal/config"
	"rewards-ledger/internal/database"
	"rewards-ledger/internal/handlers"
	"rewards-ledger/internal/jobs"
	"rewards-ledger/internal/logger"
	"rewards-ledger/internal/repository"
	"rewards-ledger/internal/services"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		bootLog := logger.New("info")
		bootLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(cfg.Log.Level)

	// Initialize JWT
	auth.SetSigningKey(cfg.App.JWTSecret)

	// Connect to database
	if err := database.Connect(cfg.GetDSN()); err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}

	// Run migrations
	if err := database.AutoMigrate(); err != nil {
		log.Fatal().Err(err).Msg("Failed to run migrations")
	}

	// Optional Redis stats cache
	var statsCache services.StatsCache
	if cfg.Redis.URL != "" {
		redisCache, err := cache.NewStatsCache(cfg.Redis.URL, cfg.Redis.StatsTTL, log)
		if err != nil {
			log.Warn().Err(err).Msg("Redis unavailable, serving referral stats from the database")
		} else {
			statsCache = redisCache
			defer redisCache.Close()
		}
	}

	// Initialize services
	store := services.NewStore(repository.NewRepository(database.GetDB()))
	accountService := services.NewAccountService(store, cfg.App.StellarNetwork, log)
	pointsService := services.NewPointsService(store, cfg.Referral.MaxAttempts, log)
	demoService := services.NewDemoService(store, cfg.Referral.MaxAttempts, log)
	referralService := services.NewReferralService(store, statsCache, services.ReferralConfig{
		MaxAttempts:    cfg.Referral.MaxAttempts,
		AttemptTimeout: cfg.Referral.StoreTimeout,
	}, log)

	// Start reconciliation job
	reconcileJob := jobs.NewReconcileJob(referralService, cfg.Reconcile.Interval, cfg.Reconcile.BatchSize, log)
	if err := reconcileJob.Start(); err != nil {
		log.Fatal().Err(err).Msg("Failed to start reconciliation job")
	}

	// Set up Gin router
	if os.Getenv("GIN_MODE") == "release" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())

	// CORS middleware
	allowedOrigins := []string{
		"http://localhost:3000", // Next.js dev server
		"http://127.0.0.1:3000",
	}
	if cfg.Server.FrontendURL != "" {
		allowedOrigins = append(allowedOrigins, cfg.Server.FrontendURL)
	}

	router.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "PATCH"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "Accept", "X-Requested-With"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
			"time":   time.Now().Format(time.RFC3339),
		})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	handlers.RegisterRoutes(router, &handlers.Handlers{
		Auth:     handlers.NewAuthHandler(accountService, referralService, log),
		Account:  handlers.NewAccountHandler(accountService),
		Referral: handlers.NewReferralHandler(referralService),
		Points:   handlers.NewPointsHandler(pointsService),
		Demo:     handlers.NewDemoHandler(demoService),
	})

	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: router,
	}

	go func() {
		log.Info().Str("port", cfg.Server.Port).Msg("Server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	if err := reconcileJob.Stop(); err != nil {
		log.Error().Err(err).Msg("Failed to stop reconciliation job")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}
