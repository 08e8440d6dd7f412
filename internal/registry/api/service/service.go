// Package service answers taxpayer lookups from the PGFN tables and formats
// them in CRM-field shape.
package service

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"pgfnsync/internal/enrichment"
	"pgfnsync/internal/registry/metrics"
	"pgfnsync/internal/registry/models"
	"pgfnsync/pkg/domain"
	dErrors "pgfnsync/pkg/domain-errors"
	audit "pgfnsync/pkg/platform/audit"
	"pgfnsync/pkg/platform/sentinel"
)

const (
	flagYes = "SIM"
	flagNo  = "NÃO"
)

type Service struct {
	store    Store
	cache    Cache
	contacts ContactUpdater
	mapper   *enrichment.Mapper
	events   EventPublisher
	metrics  *metrics.APIMetrics
	logger   *slog.Logger
	now      func() time.Time
}

type Option func(*Service)

// WithCache serves repeated lookups from c.
func WithCache(c Cache) Option {
	return func(s *Service) {
		s.cache = c
	}
}

// WithContactUpdater enables the webhook path, writing mapped fields to CRM contacts.
func WithContactUpdater(c ContactUpdater, mapper *enrichment.Mapper) Option {
	return func(s *Service) {
		s.contacts = c
		s.mapper = mapper
	}
}

func WithEventPublisher(p EventPublisher) Option {
	return func(s *Service) {
		s.events = p
	}
}

func WithMetrics(m *metrics.APIMetrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

func New(store Store, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("store is required")
	}
	s := &Service{
		store:  store,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	if s.contacts != nil && s.mapper == nil {
		return nil, errors.New("field mapper is required with a contact updater")
	}
	return s, nil
}

// FormatRecord renders an aggregate the way the CRM fields expect it.
// Active execution requires both an active installment and an outstanding balance.
func FormatRecord(a models.Aggregate) models.Record {
	return models.Record{
		TotalActiveDebt:    domain.FormatBRL(a.TotalOutstanding),
		ActiveExecution:    flag(a.ActiveInstallments > 0 && a.TotalOutstanding > 0),
		PartnerLiability:   flag(a.PartnerLiability),
		ContestTransaction: flag(a.Contest),
		InstallmentsLast5Y: strconv.FormatInt(a.TotalInstallments, 10),
		ActiveInstallments: strconv.FormatInt(a.ActiveInstallments, 10),
		TotalInstallment:   domain.FormatBRL(a.TotalInstallment),
		TotalOutstanding:   domain.FormatBRL(a.TotalOutstanding),
		BenefitTransaction: flag(a.Benefit),
	}
}

func flag(v bool) string {
	if v {
		return flagYes
	}
	return flagNo
}

func parseTaxpayerID(raw string) (domain.TaxpayerID, error) {
	id, err := domain.ParseTaxpayerID(raw)
	if err != nil {
		return "", dErrors.New(dErrors.CodeBadRequest, "cnpj is required")
	}
	return id, nil
}

// Lookup returns the formatted tax-debt record for raw, which may be masked.
func (s *Service) Lookup(ctx context.Context, raw string) (*models.LookupResponse, error) {
	start := s.now()
	id, err := parseTaxpayerID(raw)
	if err != nil {
		return nil, err
	}
	logger := s.logger.With("taxpayer_id", id.String())

	if cached := s.fromCache(ctx, logger, id); cached != nil {
		cached.ExecutionTimeMS = s.now().Sub(start).Milliseconds()
		cached.Timestamp = s.now()
		return cached, nil
	}

	agg, err := s.aggregate(ctx, id)
	if err != nil {
		return nil, err
	}
	record := FormatRecord(*agg)
	company := s.company(ctx, logger, id)

	resp := &models.LookupResponse{
		Success:         true,
		TaxpayerID:      id.Formatted(),
		Record:          &record,
		Company:         company,
		ExecutionTimeMS: s.now().Sub(start).Milliseconds(),
		Timestamp:       s.now(),
	}
	logger.InfoContext(ctx, "lookup served",
		"installments", agg.TotalInstallments,
		"duration_ms", resp.ExecutionTimeMS,
	)

	if s.cache != nil {
		if err := s.cache.Set(ctx, id.String(), resp); err != nil {
			logger.WarnContext(ctx, "failed to cache lookup", "error", err)
		}
	}
	return resp, nil
}

// Raw returns the unformatted aggregate.
func (s *Service) Raw(ctx context.Context, raw string) (*models.Aggregate, error) {
	id, err := parseTaxpayerID(raw)
	if err != nil {
		return nil, err
	}
	return s.aggregate(ctx, id)
}

// SyncContact looks up req.TaxpayerID and writes the mapped fields to the
// CRM contact req.ID.
func (s *Service) SyncContact(ctx context.Context, req models.WebhookRequest) (*models.WebhookData, error) {
	start := s.now()
	if strings.TrimSpace(req.TaxpayerID) == "" || strings.TrimSpace(req.ID) == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "cnpj and id are required")
	}
	if s.contacts == nil {
		return nil, dErrors.New(dErrors.CodeUnavailable, "crm is not configured")
	}
	id, err := parseTaxpayerID(req.TaxpayerID)
	if err != nil {
		return nil, err
	}
	logger := s.logger.With("taxpayer_id", id.String(), "contact_id", req.ID)

	agg, err := s.aggregate(ctx, id)
	if err != nil {
		return nil, err
	}
	record := FormatRecord(*agg)
	entityName := ""
	if c := s.company(ctx, logger, id); c != nil {
		entityName = c.Name
	}
	fields := s.mapper.Map(record, entityName)

	ok, err := s.contacts.UpdateContactFields(ctx, req.ID, fields)
	if err != nil {
		logger.ErrorContext(ctx, "contact update failed", "error", err)
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to update crm contact")
	}
	if !ok {
		logger.ErrorContext(ctx, "contact update rejected")
		return nil, dErrors.New(dErrors.CodeUnavailable, "crm rejected contact update")
	}

	elapsed := s.now().Sub(start)
	logger.InfoContext(ctx, "contact updated", "duration_ms", elapsed.Milliseconds())
	if s.events != nil {
		err := s.events.Emit(ctx, audit.Event{
			Action:     string(audit.EventContactUpdated),
			DealID:     req.ID,
			TaxpayerID: id.String(),
			Fields:     fields,
			DurationMS: elapsed.Milliseconds(),
		})
		if err != nil {
			logger.WarnContext(ctx, "failed to emit event", "error", err)
		}
	}

	return &models.WebhookData{
		ContactID:       req.ID,
		TaxpayerID:      req.TaxpayerID,
		Record:          record,
		ExecutionTimeMS: elapsed.Milliseconds(),
	}, nil
}

// Health checks the database.
func (s *Service) Health(ctx context.Context) error {
	if err := s.store.Health(ctx); err != nil {
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "database unavailable")
	}
	return nil
}

func (s *Service) aggregate(ctx context.Context, id domain.TaxpayerID) (*models.Aggregate, error) {
	start := time.Now()
	agg, err := s.store.Aggregate(ctx, id.String(), id.Formatted())
	s.metrics.ObserveQuery(start)
	if err != nil {
		s.logger.ErrorContext(ctx, "aggregation query failed", "taxpayer_id", id.String(), "error", err)
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to query tax debt")
	}
	return agg, nil
}

// company looks up the entity name. Failures only cost the name.
func (s *Service) company(ctx context.Context, logger *slog.Logger, id domain.TaxpayerID) *models.Company {
	c, err := s.store.Company(ctx, id.String(), id.Formatted())
	if err != nil {
		if !errors.Is(err, sentinel.ErrNotFound) {
			logger.WarnContext(ctx, "company lookup failed", "error", err)
		}
		return nil
	}
	return c
}

func (s *Service) fromCache(ctx context.Context, logger *slog.Logger, id domain.TaxpayerID) *models.LookupResponse {
	if s.cache == nil {
		return nil
	}
	resp, err := s.cache.Get(ctx, id.String())
	if err != nil {
		if !errors.Is(err, sentinel.ErrNotFound) {
			logger.WarnContext(ctx, "cache read failed", "error", err)
		}
		s.metrics.IncrementCacheMiss()
		return nil
	}
	s.metrics.IncrementCacheHit()
	logger.DebugContext(ctx, "lookup served from cache")
	return resp
}
