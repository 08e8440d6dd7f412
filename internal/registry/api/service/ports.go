package service

//go:generate mockgen -source=ports.go -destination=mocks/mocks.go -package=mocks Store,Cache,ContactUpdater

import (
	"context"

	"pgfnsync/internal/registry/models"
	audit "pgfnsync/pkg/platform/audit"
)

// Store reads tax-debt data for a taxpayer, queried by both id forms.
type Store interface {
	Aggregate(ctx context.Context, clean, formatted string) (*models.Aggregate, error)
	Company(ctx context.Context, clean, formatted string) (*models.Company, error)
	Health(ctx context.Context) error
}

// Cache holds formatted lookups. Get returns sentinel.ErrNotFound on a miss.
type Cache interface {
	Get(ctx context.Context, taxpayerID string) (*models.LookupResponse, error)
	Set(ctx context.Context, taxpayerID string, resp *models.LookupResponse) error
}

// ContactUpdater writes fields onto a CRM contact.
type ContactUpdater interface {
	UpdateContactFields(ctx context.Context, id string, fields map[string]string) (bool, error)
}

type EventPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}
