package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/skridlevsky/commitboard/internal/activity"
	"github.com/skridlevsky/commitboard/internal/api"
	"github.com/skridlevsky/commitboard/internal/app"
	"github.com/skridlevsky/commitboard/internal/config"
	"github.com/skridlevsky/commitboard/internal/logging"
)

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("Configuration error: %v", err)
	}

	log := logging.New(cfg.LogLevel, cfg.Env)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		log.WithError(err).Fatal("Failed to initialize")
	}
	// NOTE: a.Close() called explicitly in shutdown sequence below, no defer

	a.Janitor.Run(ctx)

	routerCfg := &api.RouterConfig{
		Database:     a.Database,
		Activity:     a.Aggregator,
		CORSOrigins:  cfg.CORSOrigins,
		AllowAllCORS: cfg.IsDevelopment(),
		Logger:       log,

		GlobalRateLimit: cfg.GlobalRateLimit,
		FeedRateLimit:   cfg.FeedRateLimit,
	}

	var warmer *activity.Warmer
	if cfg.WarmInterval > 0 {
		warmer = activity.NewWarmer(a.Aggregator, a.Cache, cfg.WarmInterval, log.WithField("component", "warmer"))
		warmer.Run(ctx)
		routerCfg.Warmer = warmer
	}

	routerResult := api.NewRouter(routerCfg)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      routerResult.Router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second, // Must exceed a cold aggregation with Discord's 10s timeout
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.WithField("port", cfg.Port).Info("Starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("Server failed")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	if warmer != nil {
		warmer.Stop()
	}

	log.Info("Stopping rate limiters...")
	routerResult.RateLimiters.Stop()

	// Cancel context to stop all services
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Fatal("Server forced to shutdown")
	}

	log.Info("Closing database connection...")
	a.Close()

	log.Info("Server exited")
}
