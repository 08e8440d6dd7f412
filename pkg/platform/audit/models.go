package audit

import (
	"context"
	"time"
)

// EventCategory classifies events by their primary purpose so sinks can
// route or retain them differently.
type EventCategory string

const (
	// CategoryEnrichment covers record outcomes of the reconciliation loop.
	CategoryEnrichment EventCategory = "enrichment"

	// CategoryOperations covers lifecycle events useful for operational visibility.
	CategoryOperations EventCategory = "operations"
)

type AuditEvent string

const (
	EventDealEnriched AuditEvent = "deal_enriched"
	EventDealFailed   AuditEvent = "deal_failed"
	EventDealSkipped  AuditEvent = "deal_skipped"

	EventCycleCompleted AuditEvent = "cycle_completed"
	EventContactUpdated AuditEvent = "contact_updated"
)

var eventCategories = map[AuditEvent]EventCategory{
	EventDealEnriched:   CategoryEnrichment,
	EventDealFailed:     CategoryEnrichment,
	EventDealSkipped:    CategoryEnrichment,
	EventContactUpdated: CategoryEnrichment,
	EventCycleCompleted: CategoryOperations,
}

// Category returns the EventCategory for this event.
// Unknown events default to CategoryOperations.
func (e AuditEvent) Category() EventCategory {
	if cat, ok := eventCategories[e]; ok {
		return cat
	}
	return CategoryOperations
}

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	ID          string            `json:"id"`
	Category    EventCategory     `json:"category"`
	Action      string            `json:"action"`
	Timestamp   time.Time         `json:"timestamp"`
	ExecutionID string            `json:"execution_id,omitempty"`
	DealID      string            `json:"deal_id,omitempty"`
	TaxpayerID  string            `json:"taxpayer_id,omitempty"`
	Reason      string            `json:"reason,omitempty"`
	Fields      map[string]string `json:"fields,omitempty"`
	DurationMS  int64             `json:"duration_ms,omitempty"`
}

// Store persists or forwards events.
type Store interface {
	Append(ctx context.Context, event Event) error
}
