package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"hcadmin/internal/app"
	"hcadmin/internal/audit"
	"hcadmin/internal/cache"
	"hcadmin/internal/config"
	"hcadmin/internal/database"
	"hcadmin/internal/handlers"
	"hcadmin/internal/jobs"
	"hcadmin/internal/log"
	"hcadmin/internal/messages"
	"hcadmin/internal/ratelimit"
	"hcadmin/internal/server"
	"hcadmin/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := log.New(cfg.Environment, cfg.LogLevel)

	ctx := context.Background()

	redisClient, err := cache.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		if cfg.Environment == "production" {
			logger.Fatal().Err(err).Msg("failed to connect redis")
		}
		logger.Warn().Err(err).Msg("redis unavailable, using in-process grants and rate limits")
		redisClient = nil
	}

	var dbPool *pgxpool.Pool
	var stores app.Stores
	if cfg.Postgres.DSN == "" {
		if cfg.Environment == "production" {
			logger.Fatal().Msg("postgres.dsn is required in production")
		}
		logger.Warn().Msg("no postgres dsn configured, using in-memory stores")
		stores = app.MemoryStores(redisClient)
	} else {
		dbPool, err = database.NewPostgresPool(ctx, cfg.Postgres)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect postgres")
		}
		if cfg.Postgres.AutoMigrate {
			if err := database.Migrate(ctx, dbPool); err != nil {
				logger.Fatal().Err(err).Msg("migration failed")
			}
		}
		stores = app.PostgresStores(dbPool, redisClient)
	}

	objectStore, err := storage.NewObjectStore(cfg.Storage)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to init object store")
	}
	if err := objectStore.EnsureBuckets(ctx); err != nil {
		logger.Warn().Err(err).Msg("ensure buckets failed")
	}

	publisher, closePublisher := auditPublisher(cfg, logger)
	defer closePublisher()

	services, err := app.NewServices(cfg, stores, publisher, objectStore, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build services")
	}

	var limiter ratelimit.Limiter = ratelimit.NewMemoryLimiter(cfg.RateLimit.Window, cfg.RateLimit.MaxRequests)
	if redisClient != nil {
		limiter = ratelimit.NewRedisLimiter(redisClient, "public", cfg.RateLimit.Window, cfg.RateLimit.MaxRequests)
	}

	handlerSet := handlers.NewHandlerSet(logger, cfg, handlers.Services{
		Auth:     services.Auth,
		Reset:    services.Reset,
		Sessions: services.Sessions,
		Uploads:  services.Uploads,
		Users:    stores.Users,
		Catalog:  messages.NewCatalog(redisClient, stores.Messages, logger),
		Limiter:  limiter,
		Health:   healthChecks(dbPool, redisClient, objectStore),
	})
	httpServer, err := server.NewHTTPServer(cfg, logger, handlerSet)
	if err != nil {
		logger.Fatal().Err(err).Msg("http server init failed")
	}

	var scheduler *jobs.Scheduler
	if redisClient != nil {
		scheduler = jobs.NewScheduler(jobs.NewStreamEnqueuer(redisClient, cfg.Worker.Stream), logger)
		if err := scheduler.Start(); err != nil {
			logger.Error().Err(err).Msg("scheduler start failed")
		}
	}

	go func() {
		if err := httpServer.Start(); err != nil {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	waitForShutdown(logger, httpServer, scheduler, dbPool, redisClient)
}

func auditPublisher(cfg *config.AppConfig, logger zerolog.Logger) (audit.Publisher, func()) {
	if len(cfg.Audit.Brokers) == 0 {
		return audit.NewLogPublisher(logger), func() {}
	}
	kafkaPublisher := audit.NewKafkaPublisher(cfg.Audit.Brokers, cfg.Audit.Topic, logger)
	return kafkaPublisher, func() {
		if err := kafkaPublisher.Close(); err != nil {
			logger.Error().Err(err).Msg("audit publisher close error")
		}
	}
}

func healthChecks(db *pgxpool.Pool, redisClient *redis.Client, objects *storage.ObjectStore) []handlers.HealthCheck {
	checks := []handlers.HealthCheck{{Name: "storage", Ping: objects.Ping}}
	if db != nil {
		checks = append(checks, handlers.HealthCheck{Name: "database", Ping: db.Ping})
	}
	if redisClient != nil {
		checks = append(checks, handlers.HealthCheck{Name: "cache", Ping: func(ctx context.Context) error {
			return cache.Ping(ctx, redisClient)
		}})
	}
	return checks
}

func waitForShutdown(logger zerolog.Logger, srv *server.HTTPServer, scheduler *jobs.Scheduler, db *pgxpool.Pool, redisClient *redis.Client) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}

	if scheduler != nil {
		select {
		case <-scheduler.Stop().Done():
		case <-shutdownCtx.Done():
		}
	}

	if db != nil {
		db.Close()
	}
	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			logger.Error().Err(err).Msg("redis close error")
		}
	}

	logger.Info().Msg("server exited cleanly")
}
