package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/go-chi/chi/v5"
	goredis "github.com/redis/go-redis/v9"

	"pgfnsync/internal/automation/dedup"
	"pgfnsync/internal/automation/engine"
	"pgfnsync/internal/automation/handler"
	autometrics "pgfnsync/internal/automation/metrics"
	"pgfnsync/internal/crm"
	"pgfnsync/internal/enrichment"
	"pgfnsync/internal/platform/config"
	"pgfnsync/internal/platform/events"
	"pgfnsync/internal/platform/logger"
	"pgfnsync/internal/platform/metrics"
	"pgfnsync/internal/platform/middleware"
	"pgfnsync/internal/platform/redis"
	"pgfnsync/internal/registry/client"
	regmetrics "pgfnsync/internal/registry/metrics"
)

const serviceName = "pgfn-automation"

// buildRuntime wires the production dependencies from the environment.
func buildRuntime(ctx context.Context) (*runtime, error) {
	cfg, err := config.FromEnv()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	log, logCloser, err := logger.New(cfg.Logging)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(log)

	var closers []func()
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	closers = append(closers, func() { _ = logCloser.Close() })
	fail := func(err error) (*runtime, error) {
		closeAll()
		return nil, err
	}

	crmClient, err := crm.New(cfg.Bitrix, crm.WithLogger(log))
	if err != nil {
		return fail(err)
	}
	registry, err := client.New(cfg.Registry,
		client.WithLogger(log),
		client.WithMetrics(regmetrics.NewClient()),
	)
	if err != nil {
		return fail(err)
	}

	var rdb *goredis.Client
	if cfg.Automation.DedupStore == dedup.KindRedis {
		c, err := redis.New(ctx, cfg.Redis)
		if err != nil {
			return fail(err)
		}
		rdb = c.Client
		closers = append(closers, func() { _ = c.Close() })
	}
	store, err := dedup.New(cfg.Automation.DedupStore, rdb, cfg.Automation.DedupTTL)
	if err != nil {
		return fail(err)
	}

	publisher, err := events.New(ctx, cfg.Kafka, log)
	if err != nil {
		return fail(fmt.Errorf("create event publisher: %w", err))
	}
	closers = append(closers, func() {
		if err := publisher.Close(); err != nil {
			log.Warn("failed to flush event publisher", "error", err)
		}
	})

	metrics.NewProcess(serviceName, Version)
	eng, err := engine.New(engine.ConfigFrom(&cfg), crmClient, registry, enrichment.NewMapper(cfg.Bitrix.Fields),
		engine.WithLogger(log),
		engine.WithMetrics(autometrics.New()),
		engine.WithDedup(store),
		engine.WithEventPublisher(publisher),
	)
	if err != nil {
		return fail(err)
	}

	monitor, err := handler.New(eng, handler.Info{
		Service:  serviceName,
		Version:  Version,
		Pipeline: cfg.Bitrix.TargetPipeline,
		Stages:   cfg.Bitrix.TargetStages,
	}, handler.WithLogger(log))
	if err != nil {
		return fail(err)
	}
	r := chi.NewRouter()
	r.Use(middleware.Standard(log)...)
	monitor.Register(r)

	return &runtime{
		cfg:     cfg,
		logger:  log,
		engine:  eng,
		monitor: r,
		close:   closeAll,
	}, nil
}
