package domain

import (
	"strings"

	dErrors "pgfnsync/pkg/domain-errors"
)

// TaxpayerID is a Brazilian taxpayer identifier (CNPJ or CPF) holding digits only.
// Invariant: values built by ParseTaxpayerID contain only ASCII digits.
type TaxpayerID string

const (
	cpfLength  = 11
	cnpjLength = 14
)

// CleanTaxpayerID strips every non-digit character ("44.718.903/0001-88" → "44718903000188").
func CleanTaxpayerID(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// ParseTaxpayerID cleans raw input and rejects values without any digit.
// Length is not enforced here; the registry decides what it knows about.
func ParseTaxpayerID(raw string) (TaxpayerID, error) {
	cleaned := CleanTaxpayerID(raw)
	if cleaned == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "taxpayer id must contain digits")
	}
	return TaxpayerID(cleaned), nil
}

func (t TaxpayerID) String() string {
	return string(t)
}

// IsNil reports whether the id is empty.
func (t TaxpayerID) IsNil() bool {
	return t == ""
}

// IsCNPJ reports whether the id has the 14 digits of a company identifier.
func (t TaxpayerID) IsCNPJ() bool {
	return len(t) == cnpjLength
}

// IsCPF reports whether the id has the 11 digits of an individual identifier.
func (t TaxpayerID) IsCPF() bool {
	return len(t) == cpfLength
}

// IsValid reports whether the id has a CPF or CNPJ length.
func (t TaxpayerID) IsValid() bool {
	return t.IsCPF() || t.IsCNPJ()
}

// Formatted renders the registry's masked form: 00.000.000/0000-00 for CNPJ and
// 000.000.000-00 for CPF. Other lengths are returned unchanged.
func (t TaxpayerID) Formatted() string {
	s := string(t)
	switch {
	case t.IsCNPJ():
		return s[0:2] + "." + s[2:5] + "." + s[5:8] + "/" + s[8:12] + "-" + s[12:14]
	case t.IsCPF():
		return s[0:3] + "." + s[3:6] + "." + s[6:9] + "-" + s[9:11]
	default:
		return s
	}
}
