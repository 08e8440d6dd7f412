package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"pgfnsync/internal/crm"
)

// startOfDay is local midnight of the day containing t.
func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// discover lists today's candidates across the configured stages, drops the
// ones already processed and caps the rest at MaxRecordsPerCycle.
func (e *Engine) discover(ctx context.Context, logger *slog.Logger) ([]crm.Deal, error) {
	since := startOfDay(e.now())
	logger.InfoContext(ctx, "discovering deals",
		"pipeline", e.cfg.Pipeline,
		"stages", e.cfg.Stages,
		"since", since.Format(time.RFC3339),
	)

	start := e.now()
	deals, err := e.crm.ListCandidates(ctx, e.cfg.Pipeline, e.cfg.Stages, since)
	e.metrics.ObserveAPI("crm", e.now().Sub(start))
	if err != nil {
		return nil, fmt.Errorf("list candidates: %w", err)
	}

	ids := make([]string, len(deals))
	for i, d := range deals {
		ids[i] = d.ID
	}
	seen, err := e.dedup.Seen(ctx, ids)
	if err != nil {
		// The completeness check still guards against rewriting finished deals.
		logger.WarnContext(ctx, "processed set unavailable, treating all deals as new", "error", err)
		seen = map[string]bool{}
	}

	fresh := make([]crm.Deal, 0, len(deals))
	var processedIDs, withTaxpayer, withoutTaxpayer []string
	for _, d := range deals {
		if seen[d.ID] {
			processedIDs = append(processedIDs, d.ID)
			continue
		}
		fresh = append(fresh, d)
		if d.TaxpayerID != "" {
			withTaxpayer = append(withTaxpayer, d.ID)
		} else {
			withoutTaxpayer = append(withoutTaxpayer, d.ID)
		}
	}
	logger.InfoContext(ctx, "deals partitioned",
		"total", len(deals),
		"new", len(fresh),
		"already_processed", len(processedIDs),
	)
	if len(processedIDs) > 0 {
		logger.DebugContext(ctx, "already processed deals", "deal_ids", processedIDs)
	}
	if len(fresh) > 0 {
		logger.DebugContext(ctx, "new deals",
			"with_taxpayer_id", withTaxpayer,
			"without_taxpayer_id", withoutTaxpayer,
		)
	}

	if limit := e.cfg.MaxRecordsPerCycle; len(fresh) > limit {
		logger.WarnContext(ctx, "truncating deals to per-cycle limit",
			"found", len(fresh),
			"limit", limit,
		)
		fresh = fresh[:limit]
	}
	return fresh, nil
}
