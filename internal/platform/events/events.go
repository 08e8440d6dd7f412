// Package events builds the process-wide enrichment event publisher.
package events

import (
	"context"
	"log/slog"
	"time"

	"pgfnsync/internal/platform/config"
	audit "pgfnsync/pkg/platform/audit"
	"pgfnsync/pkg/platform/audit/publisher"
	"pgfnsync/pkg/platform/audit/publishers/kafka"
	"pgfnsync/pkg/platform/audit/publishers/logsink"
)

const bufferSize = 1024

// Publisher is an async publisher plus whatever its sink needs released.
type Publisher struct {
	*publisher.Publisher
	sink interface {
		Close(ctx context.Context) error
	}
}

// New publishes to Kafka when brokers are configured, otherwise to logger.
func New(ctx context.Context, cfg config.KafkaConfig, logger *slog.Logger) (*Publisher, error) {
	var (
		sink audit.Store = logsink.New(logger)
		p    Publisher
	)
	if len(cfg.Brokers) > 0 {
		k, err := kafka.New(ctx, kafka.Config{
			Brokers:  cfg.Brokers,
			Topic:    cfg.Topic,
			ClientID: cfg.ClientID,
		})
		if err != nil {
			return nil, err
		}
		sink = k
		p.sink = k
		logger.InfoContext(ctx, "publishing events to kafka", "brokers", cfg.Brokers, "topic", cfg.Topic)
	}
	p.Publisher = publisher.NewPublisher(sink,
		publisher.WithAsyncBuffer(bufferSize),
		publisher.WithLogger(logger),
	)
	return &p, nil
}

// Close drains queued events, then flushes the sink.
func (p *Publisher) Close() error {
	p.Publisher.Close()
	if p.sink == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return p.sink.Close(ctx)
}
