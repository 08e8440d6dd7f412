// Package models holds the wire and domain shapes of the PGFN lookup service.
package models

import (
	"encoding/json"
	"strings"
	"time"
)

// Record is the registry-derived tax-debt data for one taxpayer, already
// formatted in CRM-field shape by the lookup service.
type Record struct {
	TotalActiveDebt    string `json:"total_divida_ativa"`
	ActiveExecution    string `json:"execucao_fiscal_ativa"`
	PartnerLiability   string `json:"cpf_socio_responde"`
	ContestTransaction string `json:"transacao_impugnacao"`
	InstallmentsLast5Y string `json:"parcelamentos_5_anos"`
	ActiveInstallments string `json:"parcelamentos_ativos"`
	TotalInstallment   string `json:"total_parcelado"`
	TotalOutstanding   string `json:"total_saldo_devedor"`
	BenefitTransaction string `json:"possui_transacao_beneficio"`
}

// Company identifies the taxpayer entity found alongside the debt data.
type Company struct {
	Name         string `json:"nome,omitempty"`
	Municipality string `json:"municipio,omitempty"`
	State        string `json:"uf,omitempty"`
}

// LookupResponse is the body of GET /api/cnpj/{cnpj}.
type LookupResponse struct {
	Success         bool      `json:"success"`
	Error           string    `json:"error,omitempty"`
	TaxpayerID      string    `json:"cnpj_consultado,omitempty"`
	Record          *Record   `json:"dados_receita,omitempty"`
	Company         *Company  `json:"empresa,omitempty"`
	ExecutionTimeMS int64     `json:"execution_time_ms"`
	Timestamp       time.Time `json:"timestamp"`
}

// LookupResult is what the client hands to the engine. Record is nil when the
// service answered successfully but carried no debt payload.
type LookupResult struct {
	TaxpayerID string
	Record     *Record
	EntityName string
	Duration   time.Duration
}

// HasRecord reports whether the lookup produced usable data.
func (r *LookupResult) HasRecord() bool {
	return r != nil && r.Record != nil
}

// Aggregate is the tax-debt rollup across the installment tables for one
// taxpayer, before any formatting.
type Aggregate struct {
	TotalInstallments  int64   `json:"total_parcelamentos"`
	ActiveInstallments int64   `json:"parcelamentos_ativos"`
	TotalInstallment   float64 `json:"total_parcelado"`
	TotalOutstanding   float64 `json:"total_saldo_devedor"`
	PartnerLiability   bool    `json:"tem_responsabilidade_socio"`
	Contest            bool    `json:"tem_impugnacao"`
	Benefit            bool    `json:"tem_beneficio"`
}

// RawResponse is the body of GET /test/{cnpj}.
type RawResponse struct {
	Success    bool       `json:"success"`
	TaxpayerID string     `json:"cnpj"`
	Data       *Aggregate `json:"data"`
}

// WebhookRequest is the body of POST /webhook/pgfn. ID is the CRM contact id.
type WebhookRequest struct {
	TaxpayerID string `json:"cnpj"`
	ID         string `json:"id"`
}

// UnmarshalJSON accepts the contact id as a JSON string or number.
func (r *WebhookRequest) UnmarshalJSON(data []byte) error {
	var raw struct {
		TaxpayerID string          `json:"cnpj"`
		ID         json.RawMessage `json:"id"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	r.TaxpayerID = raw.TaxpayerID
	r.ID = ""
	if len(raw.ID) == 0 || string(raw.ID) == "null" {
		return nil
	}
	var id string
	if err := json.Unmarshal(raw.ID, &id); err == nil {
		r.ID = strings.TrimSpace(id)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(raw.ID, &n); err != nil {
		return err
	}
	r.ID = n.String()
	return nil
}

// WebhookData echoes what was written to the contact.
type WebhookData struct {
	ContactID       string `json:"deal_id"`
	TaxpayerID      string `json:"cnpj"`
	Record          Record `json:"dados_receita"`
	ExecutionTimeMS int64  `json:"execution_time_ms"`
}

// WebhookResponse is the body returned by POST /webhook/pgfn.
type WebhookResponse struct {
	Success bool         `json:"success"`
	Message string       `json:"message,omitempty"`
	Data    *WebhookData `json:"data,omitempty"`
}
