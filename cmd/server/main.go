/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the receivables engine server. Handles
  configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration (environment / .env)
  2. Initialize SQLite store
  3. Build the balance cache and start the background refresher
  4. Configure HTTP router
  5. Start server with graceful shutdown

CONFIGURATION (environment variables):
  APP_PORT               HTTP server port (default: 8080)
  DB_PATH                SQLite database path (default: receivables.db)
                         Use ":memory:" for an in-memory database
  CACHE_REFRESH_SECONDS  Background cache rebuild interval (default: 300)
  CORS_ALLOWED_ORIGINS   Allowed frontend origins

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Stop the cache refresher
  4. Close database connection
  5. Exit

EXAMPLES:
  # Run with file database
  DB_PATH=./data/receivables.db ./server

  # Run with in-memory database
  DB_PATH=":memory:" ./server

SEE ALSO:
  - api/server.go: Router configuration
  - api/handlers.go: HTTP handlers
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/warp/receivables-engine/api"
	"github.com/warp/receivables-engine/cache"
	"github.com/warp/receivables-engine/config"
	"github.com/warp/receivables-engine/store/sqlite"
)

func main() {
	cfg := config.Load()

	log, err := newLogger(cfg.App.Env)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	// Initialize store
	store, err := sqlite.New(cfg.App.DBPath)
	if err != nil {
		log.Fatal("failed to initialize database", zap.Error(err))
	}
	defer store.Close()

	// Balance cache, warmed on boot and kept warm by the refresher.
	balances := cache.New(store.FetchByCustomer, log)
	if cfg.Cache.RefreshInterval > 0 {
		refresher := cache.NewRefresher(balances, store, cfg.Cache.RefreshInterval, log)
		refresher.Start()
		defer refresher.Stop()
	} else {
		// No periodic refresh; still warm the cache once.
		if grouped, err := store.AllByCustomer(context.Background()); err == nil {
			balances.UpdateMany(grouped)
		}
	}

	// Handler and router
	handler := api.NewHandler(store, balances, log)
	router := api.NewRouter(handler, cfg.CORS.AllowedOrigins)

	// Create server
	server := &http.Server{
		Addr:         ":" + cfg.App.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info("server starting",
			zap.String("addr", "http://localhost:"+cfg.App.Port),
			zap.String("db", cfg.App.DBPath),
			zap.Duration("cache_refresh", cfg.Cache.RefreshInterval))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("server failed", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatal("server forced to shutdown", zap.Error(err))
	}

	log.Info("server stopped")
}

func newLogger(env string) (*zap.Logger, error) {
	if env == "production" {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}
