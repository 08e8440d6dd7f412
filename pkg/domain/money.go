package domain

import (
	"math"
	"strconv"
	"strings"
)

// NormalizeBRL turns a pt-BR currency string into a dot-decimal string without
// thousands separators: "R$ 1.234,56" → "1234.56". The symbol, spaces and dots
// are dropped and the decimal comma becomes a dot. Empty input yields "".
func NormalizeBRL(value string) string {
	var b strings.Builder
	b.Grow(len(value))
	for _, r := range value {
		switch r {
		case 'R', '$', '.', ' ', '\t', '\n', '\u00a0':
			continue
		default:
			b.WriteRune(r)
		}
	}
	return strings.Replace(b.String(), ",", ".", 1)
}

// FormatBRL renders an amount as the registry publishes it: "R$1.234,56".
// Negative amounts keep their sign after the symbol.
func FormatBRL(amount float64) string {
	cents := int64(math.Round(math.Abs(amount) * 100))
	whole := strconv.FormatInt(cents/100, 10)
	frac := cents % 100

	var b strings.Builder
	b.WriteString("R$")
	if amount < 0 && cents > 0 {
		b.WriteByte('-')
	}
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(r)
	}
	b.WriteByte(',')
	if frac < 10 {
		b.WriteByte('0')
	}
	b.WriteString(strconv.FormatInt(frac, 10))
	return b.String()
}
