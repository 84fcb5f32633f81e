/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the visit compliance API server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration (.env, environment, then flags)
  2. Initialize structured logger
  3. Initialize SQLite store
  4. Create API handler and start the price audit job
  5. Configure HTTP router
  6. Start server with graceful shutdown

COMMAND-LINE FLAGS (override environment):
  -port            HTTP server port (PORT, default 8080)
  -db              SQLite database path (DB_PATH, default visits.db)
                   Use ":memory:" for in-memory database
  -log-level       debug | info | warn | error (LOG_LEVEL)
  -log-pretty      Console instead of JSON logs (LOG_PRETTY)
  -audit-schedule  Cron spec for the price audit, "off" disables
                   (PRICE_AUDIT_SCHEDULE, default @hourly)

ENVIRONMENT ONLY:
  CORS_ORIGINS     Comma-separated allowed origins
  UPCOMING_LIMIT   Upcoming visits on the promoter dashboard (default 5)
  DEFAULT_PERIOD   week | month, dashboard window when none is requested

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Stop the audit job, waiting for a running audit
  4. Close database connection

EXAMPLES:
  ./server -db="./data/visits.db"
  ./server -db=":memory:" -log-pretty -audit-schedule=off
  PRICE_AUDIT_SCHEDULE="0 6 * * 1-5" ./server

SEE ALSO:
  - config/config.go: Configuration loading
  - api/server.go: Router configuration
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/warp/visit-engine/api"
	"github.com/warp/visit-engine/config"
	"github.com/warp/visit-engine/logger"
	"github.com/warp/visit-engine/store/sqlite"
)

// openStore is swapped in tests to observe the store's lifecycle.
var openStore = sqlite.New

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}
	cfg.BindFlags(flag.CommandLine)
	flag.Parse()
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(logger.Config{Level: cfg.LogLevel, Pretty: cfg.LogPretty})
	logger.SetGlobalLogger(log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err = run(ctx, cfg, log)
	stop()
	if err != nil {
		log.Error().Err(err).Msg("Server exited")
		os.Exit(1)
	}
}

// run serves until ctx is cancelled. Every resource it opens is released
// before it returns, including on startup failures.
func run(ctx context.Context, cfg *config.Config, log zerolog.Logger) error {
	store, err := openStore(cfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("open database %s: %w", cfg.DatabasePath, err)
	}
	defer store.Close()

	handler := api.NewHandler(store, log)
	handler.DefaultPeriod = cfg.DefaultPeriod
	handler.Assembler.UpcomingLimit = cfg.UpcomingLimit

	handler.Audit.Schedule = cfg.PriceAuditSchedule
	if err := handler.Audit.Start(); err != nil {
		return fmt.Errorf("start price audit: %w", err)
	}
	defer handler.Audit.Stop()

	router := api.NewRouter(handler, cfg.CORSOrigins)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info().Int("port", cfg.Port).Str("db", cfg.DatabasePath).Msg("Server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	select {
	case err := <-serveErr:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server stopped")
	return nil
}
