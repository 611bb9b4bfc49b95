package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog/log"

	"hostel_availability/internal/adapters/catalog"
	"hostel_availability/internal/adapters/events"
	server "hostel_availability/internal/adapters/http_server"
	"hostel_availability/internal/adapters/observability"
	redisad "hostel_availability/internal/adapters/redis"
	"hostel_availability/internal/app"
	"hostel_availability/internal/domain"
	"hostel_availability/internal/shared"
	"hostel_availability/internal/storage/memory"
	mysqlrepo "hostel_availability/internal/storage/mysql"
)

func main() {
	cfg := shared.Load()

	// set global logger (console in dev, JSON otherwise)
	log.Logger = observability.NewLogger(cfg.AppEnv, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reg := observability.InitRegistry()
	observability.Serve(cfg.MetricsAddr, reg)

	store := openStore(ctx, cfg)

	var cache domain.Cache
	rc := redisad.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
	if err := rc.Ping(ctx); err != nil {
		log.Warn().Err(err).Str("addr", cfg.RedisAddr).Msg("redis unavailable, calendar cache disabled")
	} else {
		cache = rc
		defer rc.Close()
	}

	var pub domain.EventPublisher = events.Nop{}
	if cfg.AMQPURL != "" {
		p := events.NewPublisher(cfg.AMQPURL)
		defer p.Close()
		pub = p
	}

	h := &server.Handlers{
		Q:        app.NewQueryService(store, cache, cfg.CacheTTL, cfg.CalendarFanout),
		Avail:    app.NewAvailabilityService(store, cache),
		Resolver: app.NewResolver(store),
		Bookings: app.NewBookingService(store, cache, pub),
		Access:   app.NewAccess(store),
	}

	// http
	srv := server.New(cfg.RequestTimeout)
	srv.Mount("/metrics", observability.MetricsHandler(reg))
	srv.MountHandlers(h, []byte(cfg.JWTSecret))

	httpSrv := &http.Server{Addr: cfg.HTTPAddr, Handler: srv.Mux(), ReadHeaderTimeout: 5 * time.Second}
	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Str("store", cfg.Store).Msg("API listening")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("http server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown failed")
	}
}

func openStore(ctx context.Context, cfg shared.Config) domain.CalendarStore {
	if cfg.Store == "memory" {
		return seedMemory(ctx, cfg)
	}
	db, err := sql.Open("mysql", cfg.MySQLDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("sql.Open failed")
	}
	if err := db.PingContext(ctx); err != nil {
		log.Fatal().Err(err).Msg("db.Ping failed")
	}
	log.Info().Msg("database connection ok")
	return mysqlrepo.New(db)
}

// seedMemory fills a fresh in-memory store from the catalog backend. Calendars
// start fully AVAILABLE and are lost on restart.
func seedMemory(ctx context.Context, cfg shared.Config) domain.CalendarStore {
	if len(cfg.SyncHostelIDs) == 0 {
		log.Fatal().Msg("STORE=memory needs SYNC_HOSTEL_IDS to seed hostels")
	}
	client, err := catalog.New(cfg.CatalogBase, cfg.CatalogKey, cfg.CatalogRPS)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize catalog client")
	}

	st := memory.New()
	res := app.NewCatalogService(client, st, nil).SyncAll(ctx, cfg.SyncHostelIDs, cfg.SyncWorkers)
	l := log.Info()
	if res.Failed > 0 {
		l = log.Warn()
	}
	l.Int64("rooms", res.Rooms).Int64("failed", res.Failed).Msg("in-memory store seeded; data is lost on restart")
	return st
}
