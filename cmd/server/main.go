/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the ledger engine server. Handles configuration,
  dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration (.env + environment)
  2. Configure logging
  3. Open the database and run migrations
  4. Bootstrap the business clock, optionally seed the demo book
  5. Create API handler and router
  6. Start the BOD scheduler when enabled
  7. Start server with graceful shutdown

CONFIGURATION (environment, .env supported):
  DB_DRIVER             sqlite | mysql | postgres (default: sqlite)
  DB_PATH               SQLite file path (default: ledger.db)
  DATABASE_URL          DSN for mysql/postgres
  HTTP_ADDR             Listen address (default: :8080)
  REPORTS_DIR           Where Job 7 writes reports (default: reports)
  LOG_LEVEL             logrus level (default: info)
  DEFAULT_SYSTEM_DATE   Seeds System_Date when the parameter is absent
  SEED_DEMO_DATA        Load the demo book on first start
  BOD_SCHEDULE_ENABLED  Run BOD on a timer (default: false)
  BOD_SCHEDULE_INTERVAL Scheduler tick (default: 1m)

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop the BOD scheduler
  2. Stop accepting new connections
  3. Wait for active requests to complete (30s timeout)
  4. Close database connection
  5. Exit

SEE ALSO:
  - api/server.go: Router configuration
  - api/handlers.go: HTTP handlers
  - store/sqlstore/sqlstore.go: Database implementation
*/
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/warp/ledger-engine/api"
	"github.com/warp/ledger-engine/config"
	"github.com/warp/ledger-engine/ledger"
	"github.com/warp/ledger-engine/store/sqlstore"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("configuration invalid")
	}

	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	log := logrus.WithField("component", "server")

	// Initialize store
	store, err := sqlstore.Open(cfg.DBDriver, cfg.DSN())
	if err != nil {
		log.WithError(err).Fatal("opening database failed")
	}
	defer store.Close()

	// Initialize handler
	handler := api.NewHandler(store, cfg.ReportsDir)
	ctx := context.Background()

	// Bootstrap the business clock on first start
	if _, err := handler.Clock.Now(ctx); err != nil {
		if !errors.Is(err, ledger.ErrSystemDateNotSet) {
			log.WithError(err).Fatal("reading System_Date failed")
		}
		if cfg.DefaultSystemDate.IsZero() {
			log.Warn("System_Date not configured; set it via POST /api/admin/set-system-date")
		} else if err := handler.Clock.Set(ctx, cfg.DefaultSystemDate, "bootstrap"); err != nil {
			log.WithError(err).Fatal("seeding System_Date failed")
		}
	}

	// Optionally load the demo book
	if cfg.SeedDemoData {
		date := cfg.DefaultSystemDate
		if d, err := handler.Clock.Now(ctx); err == nil {
			date = d
		}
		if date.IsZero() {
			log.Warn("SEED_DEMO_DATA set but no system date available, skipping seed")
		} else if err := api.Seed(ctx, store, date); err != nil {
			log.WithError(err).Fatal("seeding demo book failed")
		}
	}

	// BOD scheduler (no-op unless enabled)
	scheduler := api.NewBODScheduler(handler.BOD)
	scheduler.Enabled = cfg.BODScheduleEnabled
	scheduler.CheckInterval = cfg.BODScheduleInterval
	scheduler.Start()
	defer scheduler.Stop()

	// Create router
	router := api.NewRouter(handler)

	// Create server
	server := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.WithField("addr", cfg.HTTPAddr).Info("server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("server failed")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Fatal("server forced to shutdown")
	}

	log.Info("server stopped")
}
