package engine

//go:generate mockgen -source=ports.go -destination=mocks/mocks.go -package=mocks CRM,Registry,EventPublisher

import (
	"context"
	"time"

	"pgfnsync/internal/crm"
	"pgfnsync/internal/registry/models"
	audit "pgfnsync/pkg/platform/audit"
)

// CRM is the subset of the Bitrix client the engine drives.
type CRM interface {
	ListCandidates(ctx context.Context, pipeline int, stages []string, since time.Time) ([]crm.Deal, error)
	GetRecordFields(ctx context.Context, id string, keys []string) (map[string]string, error)
	GetRelatedEntityField(ctx context.Context, companyID, key string) (string, error)
	WriteFields(ctx context.Context, id string, fields map[string]string) (bool, error)
	HealthCheck(ctx context.Context) error
}

// Registry looks up tax-debt records by taxpayer id.
type Registry interface {
	Lookup(ctx context.Context, taxpayerID string) (*models.LookupResult, error)
	Health(ctx context.Context) error
}

// EventPublisher receives enrichment outcome events.
type EventPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}
