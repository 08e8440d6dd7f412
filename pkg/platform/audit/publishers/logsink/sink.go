// Package logsink writes audit events to a structured logger. It is the
// default sink when no broker is configured.
package logsink

import (
	"context"
	"log/slog"

	audit "pgfnsync/pkg/platform/audit"
)

type Sink struct {
	logger *slog.Logger
}

func New(logger *slog.Logger) *Sink {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sink{logger: logger}
}

func (s *Sink) Append(ctx context.Context, event audit.Event) error {
	s.logger.InfoContext(ctx, "audit event",
		"event_id", event.ID,
		"category", event.Category,
		"action", event.Action,
		"execution_id", event.ExecutionID,
		"deal_id", event.DealID,
		"taxpayer_id", event.TaxpayerID,
		"reason", event.Reason,
		"duration_ms", event.DurationMS,
	)
	return nil
}
