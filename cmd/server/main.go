/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the EconToolBox account server. Handles
  configuration, dependency wiring, and graceful shutdown.

STARTUP SEQUENCE:
  1. Parse environment config and command-line flags
  2. Open the selected persistence gateway (memory, yaml or sqlite)
  3. Load stored accounts into the registry
  4. Start the worker pool, autosave sweeper and HTTP router
  5. Serve until SIGINT/SIGTERM

CONFIGURATION:
  Environment (overridden by flags when set):
    ECO_PORT        HTTP server port (default: 8080)
    ECO_STORE       memory | yaml | sqlite (default: yaml)
    ECO_DATA_DIR    YAML data directory (default: ./data)
    ECO_DB          SQLite database path (default: eco.db)
    ECO_WORKERS     Worker pool size (default: 4)

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Stop the sweeper, run a final sweep, drain the worker pool

SEE ALSO:
  - api/server.go: Router configuration
  - store/yaml, store/sqlite: Gateway implementations
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/EconToolBox/EconToolBox/account"
	memstore "github.com/EconToolBox/EconToolBox/account/store"
	"github.com/EconToolBox/EconToolBox/api"
	"github.com/EconToolBox/EconToolBox/store/sqlite"
	"github.com/EconToolBox/EconToolBox/store/yaml"
)

type config struct {
	Port    int    `env:"ECO_PORT" envDefault:"8080"`
	Store   string `env:"ECO_STORE" envDefault:"yaml"`
	DataDir string `env:"ECO_DATA_DIR" envDefault:"./data"`
	DBPath  string `env:"ECO_DB" envDefault:"eco.db"`
	Workers int    `env:"ECO_WORKERS" envDefault:"4"`
}

func main() {
	var cfg config
	if err := env.Parse(&cfg); err != nil {
		log.Fatalf("Failed to parse environment: %v", err)
	}

	flag.IntVar(&cfg.Port, "port", cfg.Port, "HTTP server port")
	flag.StringVar(&cfg.Store, "store", cfg.Store, "persistence store: memory, yaml or sqlite")
	flag.StringVar(&cfg.DataDir, "data", cfg.DataDir, "YAML data directory")
	flag.StringVar(&cfg.DBPath, "db", cfg.DBPath, "SQLite database path")
	flag.IntVar(&cfg.Workers, "workers", cfg.Workers, "worker pool size")
	flag.Parse()

	pool := account.NewPool(cfg.Workers)
	defer pool.Close()

	gateway, accounts, err := openGateway(cfg, pool)
	if err != nil {
		log.Fatalf("Failed to initialize store: %v", err)
	}

	registry := account.NewRegistry()
	for _, acc := range accounts {
		registry.Register(acc)
	}
	log.Printf("Loaded %d accounts from %s store", registry.Size(), cfg.Store)

	currencies := account.NewCurrencyRegistry()
	coordinator := account.NewCoordinator(pool, nil)

	handler := api.NewHandler(registry, currencies, coordinator, gateway, pool, nil)
	router := api.NewRouter(handler)

	sweeper := api.NewAutosaveSweeper(registry, gateway, nil)
	sweeper.Start()
	defer sweeper.Stop()

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Server starting on http://localhost:%d/api", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	// Final sweep so nothing committed in memory is lost on the way out.
	if failures := sweeper.Sweep(context.Background()); failures > 0 {
		log.Printf("Warning: %d accounts failed to persist on shutdown", failures)
	}

	log.Println("Server stopped")
}

// openGateway builds the configured gateway and loads any stored accounts.
func openGateway(cfg config, pool *account.Pool) (account.Gateway, []account.Account, error) {
	switch cfg.Store {
	case "memory":
		return memstore.NewMemory(), nil, nil
	case "yaml":
		gw, err := yaml.New(cfg.DataDir, pool)
		if err != nil {
			return nil, nil, err
		}
		accounts, err := gw.LoadAll(context.Background())
		if err != nil {
			return nil, nil, err
		}
		return gw, accounts, nil
	case "sqlite":
		gw, err := sqlite.New(cfg.DBPath, pool)
		if err != nil {
			return nil, nil, err
		}
		accounts, err := gw.LoadAll(context.Background())
		if err != nil {
			return nil, nil, err
		}
		return gw, accounts, nil
	}
	return nil, nil, fmt.Errorf("unknown store %q", cfg.Store)
}
