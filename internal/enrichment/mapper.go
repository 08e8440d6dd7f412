// Package enrichment maps registry records onto CRM custom fields.
package enrichment

import (
	"math"
	"strconv"
	"strings"

	"pgfnsync/internal/registry/models"
	"pgfnsync/pkg/domain"
)

const (
	defaultMoney = "0.00"
	defaultFlag  = "NÃO"
	defaultCount = "0"
)

// FieldSet is a CRM field key → value map ready to be written.
type FieldSet map[string]string

// Mapper converts registry records into field sets. It holds only the key
// layout and performs no I/O.
type Mapper struct {
	keys FieldKeys
}

func NewMapper(keys FieldKeys) *Mapper {
	return &Mapper{keys: keys}
}

// Keys returns the field layout the mapper writes.
func (m *Mapper) Keys() FieldKeys {
	return m.keys
}

// Map builds the nine registry-derived fields, plus the entity name when one is known.
func (m *Mapper) Map(record models.Record, entityName string) FieldSet {
	fs := FieldSet{
		m.keys.TotalActiveDebt:    money(record.TotalActiveDebt),
		m.keys.ActiveExecution:    flag(record.ActiveExecution),
		m.keys.PartnerLiability:   flag(record.PartnerLiability),
		m.keys.ContestTransaction: flag(record.ContestTransaction),
		m.keys.InstallmentsLast5Y: count(record.InstallmentsLast5Y),
		m.keys.ActiveInstallments: count(record.ActiveInstallments),
		m.keys.TotalInstallment:   money(record.TotalInstallment),
		m.keys.TotalOutstanding:   money(record.TotalOutstanding),
		m.keys.BenefitTransaction: flag(record.BenefitTransaction),
	}
	if entityName != "" && m.keys.EntityName != "" {
		fs[m.keys.EntityName] = entityName
	}
	return fs
}

// IsComplete reports whether existing already holds every registry-derived
// field with a well-formed value. The entity name is not considered.
func (m *Mapper) IsComplete(existing map[string]string) bool {
	for _, key := range m.keys.Required() {
		if strings.TrimSpace(existing[key]) == "" {
			return false
		}
	}
	for _, key := range m.keys.Boolean() {
		if !IsFlagToken(existing[key]) {
			return false
		}
	}
	return true
}

// MissingFields lists the registry-derived keys that are empty in existing.
func (m *Mapper) MissingFields(existing map[string]string) []string {
	var missing []string
	for _, key := range m.keys.Required() {
		if strings.TrimSpace(existing[key]) == "" {
			missing = append(missing, key)
		}
	}
	return missing
}

// IsFlagToken accepts SIM, NÃO, 1 and 0 in any case.
func IsFlagToken(v string) bool {
	switch strings.ToUpper(strings.TrimSpace(v)) {
	case "SIM", "NÃO", "1", "0":
		return true
	default:
		return false
	}
}

func money(v string) string {
	if n := domain.NormalizeBRL(v); n != "" {
		return n
	}
	return defaultMoney
}

func flag(v string) string {
	if v = strings.TrimSpace(v); v != "" {
		return v
	}
	return defaultFlag
}

func count(v string) string {
	v = strings.TrimSpace(v)
	if n, err := strconv.Atoi(v); err == nil {
		if n < 0 {
			return defaultCount
		}
		return strconv.Itoa(n)
	}
	if f, err := strconv.ParseFloat(v, 64); err == nil && f >= 0 && !math.IsInf(f, 0) {
		return strconv.FormatInt(int64(f), 10)
	}
	return defaultCount
}
