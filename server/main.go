package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"collabcanvas/config"
	"collabcanvas/logging"
)

func main() {
	logger := logging.New(logging.LevelInfo)
	cfg, err := config.Load(logger, "collabcanvas")
	if err != nil {
		logger.Error("Failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}
	logger = logging.New(logging.ParseLevel(cfg.Log.Level)).With(slog.String("service", "relay"))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var (
		roster RosterStore = newMemRoster()
		bus    Bus         = newMemBus()
	)
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Error("Could not connect to Redis", slog.String("addr", cfg.Redis.Addr), slog.Any("error", err))
			os.Exit(1)
		}
		defer rdb.Close()
		roster, bus = &redisRoster{rdb: rdb}, &redisBus{rdb: rdb}
		logger.Info("Connected to Redis")
	} else {
		logger.Warn("No Redis address configured, relaying within this process only")
	}

	dbpool, err := pgxpool.New(ctx, cfg.Database.URL)
	if err != nil {
		logger.Error("Unable to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()
	items := &pgItemStore{pool: dbpool}
	if err := items.ensureSchema(ctx); err != nil {
		logger.Error("Unable to prepare database schema", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("Connected to PostgreSQL")

	app := NewApp(ctx, logger, cfg, roster, bus, items)

	shutdown, err := advertise(cfg, logger)
	if err != nil {
		logger.Warn("mDNS advertisement unavailable", slog.Any("error", err))
	} else {
		defer shutdown()
	}

	if err := app.Run(); err != nil {
		logger.Error("Relay run failed", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("Relay shut down successfully")
}
