package crm

import "time"

// Deal is a CRM deal that may need enrichment. Only the fields the engine
// reads are decoded.
type Deal struct {
	ID         string
	Title      string
	TaxpayerID string // direct CNPJ field, may be empty
	CompanyID  string // related company, "" or "0" when none
	StageID    string
	CreatedAt  time.Time
}

// HasCompany reports whether the deal references a related company.
func (d Deal) HasCompany() bool {
	return d.CompanyID != "" && d.CompanyID != "0"
}
