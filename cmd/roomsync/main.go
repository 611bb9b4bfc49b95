package main

import (
	"context"
	"database/sql"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog/log"

	"hostel_availability/internal/adapters/catalog"
	"hostel_availability/internal/adapters/observability"
	redisad "hostel_availability/internal/adapters/redis"
	"hostel_availability/internal/app"
	"hostel_availability/internal/domain"
	"hostel_availability/internal/shared"
	mysqlrepo "hostel_availability/internal/storage/mysql"
)

func main() {
	cfg := shared.Load()

	// 1) initialize global logger (console in dev, JSON otherwise)
	log.Logger = observability.NewLogger(cfg.AppEnv, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info().
		Str("base", cfg.CatalogBase).
		Int("workers", cfg.SyncWorkers).
		Int("hostels", len(cfg.SyncHostelIDs)).
		Msg("room sync starting")
	if len(cfg.SyncHostelIDs) == 0 {
		log.Warn().Msg("SYNC_HOSTEL_IDS is empty, nothing to do")
		return
	}

	db, err := sql.Open("mysql", cfg.MySQLDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("sql.Open failed")
	}
	defer db.Close()
	if err := db.PingContext(ctx); err != nil {
		log.Fatal().Err(err).Msg("db.Ping failed")
	}
	log.Info().Msg("db ping ok")

	repo := mysqlrepo.New(db)

	client, err := catalog.New(cfg.CatalogBase, cfg.CatalogKey, cfg.CatalogRPS)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize catalog client")
	}

	// the API caches month grids; evict them when rooms change
	var cache domain.Cache
	rc := redisad.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
	if err := rc.Ping(ctx); err != nil {
		log.Warn().Err(err).Msg("redis unavailable, skipping calendar eviction")
	} else {
		cache = rc
		defer rc.Close()
	}

	res := app.NewCatalogService(client, repo, cache).SyncAll(ctx, cfg.SyncHostelIDs, cfg.SyncWorkers)
	log.Info().Int64("rooms", res.Rooms).Int64("failed", res.Failed).Msg("room sync completed")
	if res.Failed > 0 {
		stop()
		_ = db.Close()
		os.Exit(1)
	}
}
