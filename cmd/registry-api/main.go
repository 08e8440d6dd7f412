// Command registry-api serves PGFN tax-debt lookups from Postgres and
// writes them to CRM contacts on webhook calls.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"

	"pgfnsync/internal/crm"
	"pgfnsync/internal/enrichment"
	"pgfnsync/internal/platform/config"
	"pgfnsync/internal/platform/events"
	"pgfnsync/internal/platform/httpserver"
	"pgfnsync/internal/platform/logger"
	"pgfnsync/internal/platform/metrics"
	"pgfnsync/internal/platform/middleware"
	"pgfnsync/internal/platform/postgres"
	"pgfnsync/internal/platform/redis"
	"pgfnsync/internal/registry/api/cache"
	"pgfnsync/internal/registry/api/handler"
	"pgfnsync/internal/registry/api/service"
	"pgfnsync/internal/registry/api/store"
	regmetrics "pgfnsync/internal/registry/metrics"
)

const serviceName = "pgfn-registry-api"

var version = "dev"

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.FromEnv()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log, closeLog, err := logger.New(cfg.Logging)
	if err != nil {
		return err
	}
	defer closeLog.Close()
	slog.SetDefault(log)

	db, err := postgres.Open(ctx, cfg.RegistryAPI.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	apiMetrics := regmetrics.NewAPI()
	metrics.NewProcess(serviceName, version)

	publisher, err := events.New(ctx, cfg.Kafka, log)
	if err != nil {
		return fmt.Errorf("create event publisher: %w", err)
	}
	defer publisher.Close()

	opts := []service.Option{
		service.WithLogger(log),
		service.WithMetrics(apiMetrics),
		service.WithEventPublisher(publisher),
	}

	rdb, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	if rdb != nil {
		defer rdb.Close()
		opts = append(opts, service.WithCache(cache.NewRedis(rdb.Client, cfg.RegistryAPI.CacheTTL)))
		log.InfoContext(ctx, "lookup cache enabled", "ttl", cfg.RegistryAPI.CacheTTL)
	}

	if cfg.Bitrix.APIURL != "" {
		contacts, err := crm.New(cfg.Bitrix, crm.WithLogger(log))
		if err != nil {
			return err
		}
		opts = append(opts, service.WithContactUpdater(contacts, enrichment.NewMapper(cfg.Bitrix.Fields)))
	} else {
		log.WarnContext(ctx, "BITRIX_API_URL not set, webhook updates disabled")
	}

	svc, err := service.New(store.NewPostgres(db), opts...)
	if err != nil {
		return err
	}
	h, err := handler.New(svc, handler.WithLogger(log), handler.WithMetrics(apiMetrics))
	if err != nil {
		return err
	}

	r := chi.NewRouter()
	r.Use(middleware.Standard(log)...)
	h.Register(r)

	log.InfoContext(ctx, "starting registry api", "version", version, "addr", cfg.RegistryAPI.Addr)
	return httpserver.Serve(ctx, httpserver.New(cfg.RegistryAPI.Addr, r), log)
}
