package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"pgfnsync/internal/automation/metrics"
	"pgfnsync/internal/automation/stats"
	"pgfnsync/internal/crm"
	audit "pgfnsync/pkg/platform/audit"
)

// processRecord runs one deal through the enrichment steps, stopping at the
// first skip or failure. The returned error is non-nil only for failures.
func (e *Engine) processRecord(ctx context.Context, logger *slog.Logger, deal crm.Deal) error {
	start := e.now()
	e.stats.RecordAttempt()
	logger = logger.With("deal_id", deal.ID)
	logger.DebugContext(ctx, "processing deal", "title", deal.Title, "stage", deal.StageID)

	existing, err := e.crm.GetRecordFields(ctx, deal.ID, e.mapper.Keys().Required())
	if err != nil {
		return e.fail(ctx, logger, deal, "", start, fmt.Errorf("read deal fields: %w", err))
	}
	if e.mapper.IsComplete(existing) {
		e.skip(ctx, logger, deal, "", start, stats.SkipAlreadyComplete)
		return nil
	}
	logger.DebugContext(ctx, "deal needs enrichment", "missing_fields", e.mapper.MissingFields(existing))

	taxpayerID, err := e.resolveTaxpayerID(ctx, deal)
	if err != nil {
		return e.fail(ctx, logger, deal, "", start, fmt.Errorf("resolve taxpayer id: %w", err))
	}
	if taxpayerID == "" {
		e.skip(ctx, logger, deal, "", start, stats.SkipNoTaxpayerID)
		return nil
	}
	logger = logger.With("taxpayer_id", taxpayerID)
	e.stats.RecordTaxpayer(taxpayerID)

	callStart := e.now()
	result, err := e.registry.Lookup(ctx, taxpayerID)
	e.observeAPI(stats.APIRegistry, e.now().Sub(callStart))
	if err != nil {
		return e.fail(ctx, logger, deal, taxpayerID, start, fmt.Errorf("registry lookup: %w", err))
	}
	if !result.HasRecord() {
		e.skip(ctx, logger, deal, taxpayerID, start, stats.SkipInvalidRegistryData)
		return nil
	}

	fields := e.mapper.Map(*result.Record, result.EntityName)

	callStart = e.now()
	ok, err := e.crm.WriteFields(ctx, deal.ID, fields)
	e.observeAPI(stats.APICRM, e.now().Sub(callStart))
	if err != nil {
		return e.fail(ctx, logger, deal, taxpayerID, start, fmt.Errorf("write deal fields: %w", err))
	}
	if !ok {
		return e.fail(ctx, logger, deal, taxpayerID, start, ErrWriteRejected)
	}

	if err := e.dedup.Mark(ctx, deal.ID); err != nil {
		logger.WarnContext(ctx, "failed to mark deal processed", "error", err)
	}

	elapsed := e.now().Sub(start)
	e.stats.RecordSuccess(elapsed)
	e.metrics.IncrementRecord(metrics.OutcomeSucceeded, "")
	e.metrics.ObserveRecord(elapsed)
	logger.InfoContext(ctx, "deal enriched",
		"fields", len(fields),
		"duration_ms", elapsed.Milliseconds(),
	)
	e.emit(ctx, logger, audit.Event{
		Action:      string(audit.EventDealEnriched),
		ExecutionID: e.ExecutionID(),
		DealID:      deal.ID,
		TaxpayerID:  taxpayerID,
		Fields:      fields,
		DurationMS:  elapsed.Milliseconds(),
	})
	return nil
}

// resolveTaxpayerID prefers the deal's own field and falls back to the
// related company. An empty result means neither holds one.
func (e *Engine) resolveTaxpayerID(ctx context.Context, deal crm.Deal) (string, error) {
	if deal.TaxpayerID != "" {
		return deal.TaxpayerID, nil
	}
	if !deal.HasCompany() || e.cfg.CompanyTaxpayerField == "" {
		return "", nil
	}
	callStart := e.now()
	id, err := e.crm.GetRelatedEntityField(ctx, deal.CompanyID, e.cfg.CompanyTaxpayerField)
	e.observeAPI(stats.APICRM, e.now().Sub(callStart))
	return id, err
}

func (e *Engine) observeAPI(api stats.API, d time.Duration) {
	e.stats.AddAPITime(api, d)
	e.metrics.ObserveAPI(string(api), d)
}

func (e *Engine) skip(ctx context.Context, logger *slog.Logger, deal crm.Deal, taxpayerID string, start time.Time, reason stats.SkipReason) {
	elapsed := e.now().Sub(start)
	e.stats.RecordSkip(reason)
	e.metrics.IncrementRecord(metrics.OutcomeSkipped, string(reason))
	logger.InfoContext(ctx, "deal skipped",
		"reason", string(reason),
		"duration_ms", elapsed.Milliseconds(),
	)
	e.emit(ctx, logger, audit.Event{
		Action:      string(audit.EventDealSkipped),
		ExecutionID: e.ExecutionID(),
		DealID:      deal.ID,
		TaxpayerID:  taxpayerID,
		Reason:      string(reason),
		DurationMS:  elapsed.Milliseconds(),
	})
}

func (e *Engine) fail(ctx context.Context, logger *slog.Logger, deal crm.Deal, taxpayerID string, start time.Time, err error) error {
	elapsed := e.now().Sub(start)
	e.stats.RecordFailure(deal.ID, err)
	e.metrics.IncrementRecord(metrics.OutcomeFailed, "")
	e.metrics.ObserveRecord(elapsed)
	logger.ErrorContext(ctx, "deal processing failed",
		"error", err,
		"duration_ms", elapsed.Milliseconds(),
	)
	e.emit(ctx, logger, audit.Event{
		Action:      string(audit.EventDealFailed),
		ExecutionID: e.ExecutionID(),
		DealID:      deal.ID,
		TaxpayerID:  taxpayerID,
		Reason:      err.Error(),
		DurationMS:  elapsed.Milliseconds(),
	})
	return fmt.Errorf("deal %s: %w", deal.ID, err)
}
