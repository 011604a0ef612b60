/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the payroll engine server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Parse command-line flags and load config (YAML, .env, PAYROLL_*)
  2. Initialize the store (SQLite or memory) and seed standard brackets
  3. Build the tax-table cache over the configured raw source
  4. Create the engine, API handler and router
  5. Start the tax-table refresh scheduler
  6. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -config  YAML config file (optional)
  -port    HTTP server port (overrides config)
  -db      SQLite database path (overrides config)
           Use ":memory:" for an in-memory database

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop the refresh scheduler
  2. Stop accepting new connections
  3. Wait for active requests to complete (30s timeout)
  4. Close database connection

EXAMPLES:
  ./server -config=./payroll.yaml
  PAYROLL_TAX_TABLE_SOURCE=xlsx PAYROLL_TAX_TABLE_PATH=./月額表.xlsx ./server -db=":memory:"

SEE ALSO:
  - config/config.go: Configuration layers
  - api/server.go: Router configuration
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/warp/payroll-engine/api"
	"github.com/warp/payroll-engine/config"
	"github.com/warp/payroll-engine/engine"
	"github.com/warp/payroll-engine/factory"
	"github.com/warp/payroll-engine/observability"
	"github.com/warp/payroll-engine/store/memory"
	"github.com/warp/payroll-engine/store/sqlite"
	"github.com/warp/payroll-engine/withholding"
)

// backend is what the server needs from a store driver.
type backend interface {
	engine.Store
	engine.DailyCountSource
	withholding.RawTableSource
}

func main() {
	// Flags
	configPath := flag.String("config", "", "YAML config file")
	port := flag.Int("port", 0, "HTTP server port (overrides config)")
	dbPath := flag.String("db", "", "SQLite database path (overrides config)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logrus.WithError(err).Fatal("failed to load config")
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}
	if *dbPath != "" {
		cfg.Store.Path = *dbPath
	}

	logger, err := config.NewLogger(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		logrus.WithError(err).Fatal("failed to configure logging")
	}
	log := config.Module(logger, "server")

	engineCfg, doc, err := cfg.Engine()
	if err != nil {
		log.WithError(err).Fatal("invalid payroll document")
	}

	// Initialize store
	store, closer, err := openStore(context.Background(), cfg.Store, doc)
	if err != nil {
		log.WithError(err).Fatal("failed to initialize store")
	}
	defer closer.Close()

	// Tax table cache
	metrics := observability.NewMetrics(prometheus.DefaultRegisterer)
	var source withholding.RawTableSource = store
	if cfg.TaxTable.Source == config.SourceXLSX {
		source = withholding.XLSXSource{Path: cfg.TaxTable.Path, Sheet: cfg.TaxTable.Sheet}
	}
	cache := withholding.NewTableCache(source,
		withholding.WithTTL(cfg.TaxTable.TTL.Std()),
		withholding.WithObserver(metrics),
		withholding.WithLogger(config.Module(logger, "withholding")),
	)

	eng := engine.New(store, cache, engineCfg,
		engine.WithDailyCounts(store),
		engine.WithLogger(config.Module(logger, "engine")),
	)

	handler := api.NewHandler(eng, store, metrics, config.Module(logger, "api"))
	router := api.NewRouter(handler, cfg.Server.CORSOrigins)

	scheduler := api.NewTableRefreshScheduler(eng, cfg.TaxTable.RefreshInterval.Std(), config.Module(logger, "scheduler"))
	scheduler.Start()

	// Create server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.WithFields(logrus.Fields{
			"port":         cfg.Server.Port,
			"store":        cfg.Store.Driver,
			"table_source": cfg.TaxTable.Source,
		}).Info("server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("server failed")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")
	scheduler.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.WithError(err).Error("server forced to shutdown")
	}

	log.Info("server stopped")
}

// openStore opens the configured driver and seeds the standard brackets
// from the payroll document when it carries any.
func openStore(ctx context.Context, sc config.StoreConfig, doc *factory.Document) (backend, io.Closer, error) {
	switch sc.Driver {
	case config.DriverMemory:
		m := memory.New()
		if len(doc.Standards) > 0 {
			m.SetStandardBrackets(doc.Standards)
		}
		return m, io.NopCloser(nil), nil

	case config.DriverSQLite:
		s, err := sqlite.New(sc.Path)
		if err != nil {
			return nil, nil, err
		}
		if len(doc.Standards) > 0 {
			if err := s.SetStandardBrackets(ctx, doc.Standards); err != nil {
				s.Close()
				return nil, nil, fmt.Errorf("seed standard brackets: %w", err)
			}
		}
		return s, s, nil

	default:
		return nil, nil, fmt.Errorf("unknown store driver: %q", sc.Driver)
	}
}
