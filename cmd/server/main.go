/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the office points engine server. Handles
  configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Parse command-line flags
  2. Initialize logging (zap, with optional file rotation)
  3. Initialize SQLite store (or memory with -db=":memory:")
  4. Load rate table and achievement catalog (TOML overrides)
  5. Wire ledger -> achievement engine -> points engine -> reconciler
  6. Start HTTP server and the reconciliation scheduler
  7. Graceful shutdown on SIGINT/SIGTERM

COMMAND-LINE FLAGS:
  -port            HTTP server port (default: 8080)
  -db              SQLite database path (default: points.db)
  -rates           Optional TOML rate table override
  -catalog         Optional TOML achievement catalog override
  -redis           Optional Redis address for the balance cache
  -log-file        Optional log file (rotated); stdout when empty
  -reconcile-every Reconciliation sweep interval (default: 1h)

EXAMPLES:
  ./server -db="./data/points.db"
  ./server -db=":memory:" -port=3000
  ./server -redis=localhost:6379 -rates=./config/rates.toml

SEE ALSO:
  - api/server.go: Router configuration
  - points/engine.go: The credit pipeline
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/officebrew/points-engine/achievements"
	"github.com/officebrew/points-engine/api"
	"github.com/officebrew/points-engine/cache"
	"github.com/officebrew/points-engine/ledger"
	"github.com/officebrew/points-engine/level"
	"github.com/officebrew/points-engine/metrics"
	"github.com/officebrew/points-engine/points"
	"github.com/officebrew/points-engine/rates"
	"github.com/officebrew/points-engine/reconcile"
	"github.com/officebrew/points-engine/store/sqlite"
)

func main() {
	// Flags
	port := flag.Int("port", 8080, "HTTP server port")
	dbPath := flag.String("db", "points.db", "SQLite database path")
	ratesPath := flag.String("rates", "", "TOML rate table override")
	catalogPath := flag.String("catalog", "", "TOML achievement catalog override")
	redisAddr := flag.String("redis", "", "Redis address for the balance cache")
	logFile := flag.String("log-file", "", "log file path (rotated); stdout when empty")
	reconcileEvery := flag.Duration("reconcile-every", time.Hour, "reconciliation sweep interval")
	flag.Parse()

	logger := newLogger(*logFile)
	defer logger.Sync()

	// Store
	store, err := sqlite.New(*dbPath)
	if err != nil {
		logger.Fatal("failed to initialize database", zap.Error(err))
	}
	defer store.Close()

	// Rate table
	table := rates.Defaults()
	if *ratesPath != "" {
		if table, err = rates.LoadFile(*ratesPath); err != nil {
			logger.Fatal("failed to load rate table", zap.Error(err))
		}
	}
	rateSource := rates.NewSource(table)

	// Achievement catalog
	catalog := achievements.MustDefaultCatalog()
	if *catalogPath != "" {
		if catalog, err = achievements.LoadFile(*catalogPath); err != nil {
			logger.Fatal("failed to load achievement catalog", zap.Error(err))
		}
	}

	// Balance cache
	var balanceCache cache.BalanceCache = cache.NewMemory(30 * time.Second)
	if *redisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: *redisAddr})
		if err := client.Ping(context.Background()).Err(); err != nil {
			logger.Fatal("failed to reach redis", zap.Error(err))
		}
		balanceCache = cache.NewRedis(client, 30*time.Second)
		logger.Info("using redis balance cache", zap.String("addr", *redisAddr))
	}

	// Engine wiring
	m := metrics.New()
	levels := level.DefaultConfig()

	// One lock registry for everything that writes the ledger, so the
	// reconciler's sweeps serialize with live appends per user.
	locks := ledger.NewUserLocks()

	led := ledger.New(ledger.Options{
		Store:  store,
		Levels: levels.LevelFunc(),
		Locks:  locks,
		Logger: logger.Named("ledger"),
	})

	stats := points.NewStatsService(store)

	rarityLookup := rarityFromSource{src: rateSource}
	achieveEngine := achievements.NewEngine(achievements.EngineOptions{
		Catalog: catalog,
		Stats:   stats,
		Unlocks: store,
		Credit:  led,
		Rarity:  rarityLookup,
		Logger:  logger.Named("achievements"),
	})

	engine := points.NewEngine(points.EngineOptions{
		Ledger:  led,
		Events:  store,
		Rates:   rateSource,
		Achieve: achieveEngine,
		Stats:   stats,
		Cache:   balanceCache,
		Levels:  levels,
		Metrics: m,
		Logger:  logger.Named("points"),
	})

	reconciler := reconcile.New(reconcile.Options{
		Store:   store,
		Catalog: catalog,
		Rarity:  rarityLookup,
		Levels:  levels,
		Cache:   balanceCache,
		Metrics: m,
		Locks:   locks,
		Logger:  logger.Named("reconcile"),
	})

	scheduler := reconcile.NewScheduler(reconciler, *reconcileEvery, logger.Named("scheduler"))
	scheduler.Start()
	defer scheduler.Stop()

	// HTTP server
	handler := api.NewHandler(engine, reconciler, rateSource, catalog, logger.Named("api"))
	router := api.NewRouter(handler, m)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", *port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server starting", zap.Int("port", *port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Fatal("server forced to shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}

// rarityFromSource resolves achievement rewards against the live rate
// table so admin updates apply to future unlocks immediately.
type rarityFromSource struct {
	src *rates.Source
}

func (r rarityFromSource) AchievementXP(rarity string) int64 {
	return r.src.Current().AchievementXP(rarity)
}

// newLogger builds the process logger: JSON to a rotated file when
// -log-file is set, console to stdout otherwise.
func newLogger(path string) *zap.Logger {
	if path == "" {
		logger, err := zap.NewProduction()
		if err != nil {
			panic(err)
		}
		return logger
	}
	writer := zapcore.AddSync(&lumberjack.Logger{
		Filename:   path,
		MaxSize:    100, // megabytes
		MaxBackups: 5,
		MaxAge:     30, // days
		Compress:   true,
	})
	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()),
		writer,
		zap.InfoLevel,
	)
	return zap.New(core, zap.AddCaller())
}
