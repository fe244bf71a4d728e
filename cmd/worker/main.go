package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"hcadmin/internal/app"
	"hcadmin/internal/audit"
	"hcadmin/internal/cache"
	"hcadmin/internal/config"
	"hcadmin/internal/database"
	"hcadmin/internal/log"
	"hcadmin/internal/queue"
	"hcadmin/internal/tasks"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := log.New(cfg.Environment, cfg.LogLevel).With().Str("app", "worker").Logger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Postgres.DSN == "" {
		logger.Fatal().Msg("postgres.dsn is required for the worker")
	}
	dbPool, err := database.NewPostgresPool(ctx, cfg.Postgres)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect postgres")
	}
	defer dbPool.Close()

	client, err := cache.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis connection failed")
	}
	defer client.Close()

	var publisher audit.Publisher = audit.NewLogPublisher(logger)
	if len(cfg.Audit.Brokers) > 0 {
		kafkaPublisher := audit.NewKafkaPublisher(cfg.Audit.Brokers, cfg.Audit.Topic, logger)
		defer kafkaPublisher.Close()
		publisher = kafkaPublisher
	}

	services, err := app.NewServices(cfg, app.PostgresStores(dbPool, client), publisher, nil, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build services")
	}

	processor := tasks.NewProcessor(services.Sessions, cfg.Security.SessionIdleTimeout, logger)
	consumer := queue.NewConsumer(client, queue.Options{
		Stream:        cfg.Worker.Stream,
		Group:         cfg.Worker.Group,
		Consumer:      cfg.Worker.Consumer,
		ClaimInterval: cfg.Worker.ClaimInterval,
		MaxDeliveries: cfg.Worker.MaxDeliveries,
	}, processor, logger)

	logger.Info().Str("stream", cfg.Worker.Stream).Str("group", cfg.Worker.Group).Msg("worker starting")
	if err := consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error().Err(err).Msg("consumer stopped unexpectedly")
	}
	logger.Info().Msg("worker exited")
}
