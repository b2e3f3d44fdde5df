package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"clevertap-sync/internal/auth"
	"clevertap-sync/internal/clevertap"
	"clevertap-sync/internal/config"
	"clevertap-sync/internal/connections"
	"clevertap-sync/internal/events"
	"clevertap-sync/internal/httpapi"
	"clevertap-sync/internal/mapping"
	"clevertap-sync/internal/metrics"
	"clevertap-sync/internal/migrations"
	"clevertap-sync/internal/syncer"
	"clevertap-sync/pkg/logger"
	"clevertap-sync/pkg/utils"

	"github.com/gin-gonic/gin"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	// Root context that cancels on shutdown
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}

	log := logger.New(cfg.App.Env)
	slog.SetDefault(log)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	authManager, err := auth.NewManager(cfg.Auth)
	if err != nil {
		log.Error("auth init failed", "err", err)
		os.Exit(1)
	}

	regions := clevertap.Default()
	if cfg.CleverTap.RegionsFile != "" {
		regions, err = clevertap.LoadRegionTable(cfg.CleverTap.RegionsFile)
		if err != nil {
			log.Error("region table load failed", "err", err, "path", cfg.CleverTap.RegionsFile)
			os.Exit(1)
		}
	}

	db, err := utils.OpenPostgres(rootCtx, "pgx", cfg.PostgresDSN(), utils.PostgresPoolConfig{Workers: cfg.Sync.Workers})
	if err != nil {
		log.Error("postgres init failed", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := migrations.Up(rootCtx, db); err != nil {
		log.Error("migrations failed", "err", err)
		os.Exit(1)
	}
	version, err := migrations.Version(rootCtx, db)
	if err != nil {
		log.Error("schema version failed", "err", err)
		os.Exit(1)
	}
	schema, err := events.DiscoverSchema(rootCtx, db, version)
	if err != nil {
		log.Error("event schema discovery failed", "err", err)
		os.Exit(1)
	}
	log.Info("event schema loaded", "version", schema.Version, "reference_columns", schema.Columns())

	clientOpts := []clevertap.Option{clevertap.WithLogger(log)}
	if cfg.RedisEnabled() {
		rdb, err := utils.OpenRedis(rootCtx, utils.RedisConfig{Addr: cfg.RedisAddr()})
		if err != nil {
			log.Error("redis init failed", "err", err)
			os.Exit(1)
		}
		defer rdb.Close()
		clientOpts = append(clientOpts, clevertap.WithLimiter(clevertap.NewRedisLimiter(rdb, cfg.Sync.MaxInflight)))
	} else {
		log.Info("redis not configured, dispatch concurrency cap disabled")
	}

	m := metrics.New(prometheus.DefaultRegisterer)

	configRepo := mapping.NewPostgresRepo(db)
	eventRepo := events.NewPostgresRepo(db, schema)
	connSvc := connections.NewService(connections.NewPostgresRepo(db), regions)

	engine := syncer.New(syncer.Deps{
		Resolver:    mapping.NewResolver(configRepo, log),
		Connections: connSvc,
		Dispatcher:  clevertap.NewClient(cfg.CleverTap.Timeout, clientOpts...),
		Events:      events.NewLogger(eventRepo, schema, log, m),
	},
		syncer.WithConnectionName(cfg.CleverTap.Connection),
		syncer.WithWorkers(cfg.Sync.Workers),
		syncer.WithMetrics(m),
		syncer.WithLogger(log),
	)

	h := httpapi.Handlers{
		Engine:      engine,
		Configs:     mapping.NewService(configRepo),
		Connections: connSvc,
		Events:      events.NewService(eventRepo),
		Regions:     regions,
	}

	// Gin router
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(log, "/healthz", "/readyz", "/metrics"))

	registerRoutes(r, h, db, auth.RequireAccessToken(authManager))

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		// Batches dispatch up to 1000 records against a 20s per-call timeout.
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("api listening", "addr", srv.Addr, "env", cfg.App.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", "err", err)
			stop()
		}
	}()

	<-rootCtx.Done()
	log.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "err", err)
	}
}
