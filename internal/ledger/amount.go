package ledger

import (
	"fmt"
	"strings"

	"papertrade/internal/apperr"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Client amounts are limited to maxScale fractional digits and maxIntDigits
// integer digits.
const (
	maxScale     = 18
	maxIntDigits = 18
)

// ParseAmount converts a stored balance field to a decimal. An empty string
// is treated as zero, matching fields that were never written.
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, apperr.Validation("amount", "invalid decimal amount")
	}
	return d, nil
}

// FormatAmount renders a decimal in the canonical text form used for storage.
// ParseAmount(FormatAmount(d)) always equals d.
func FormatAmount(d decimal.Decimal) string {
	return d.String()
}

func requirePositive(field string, v decimal.NullDecimal) (decimal.Decimal, error) {
	if !v.Valid {
		return decimal.Zero, apperr.Validation(field, field+" is required")
	}
	if !v.Decimal.IsPositive() {
		return decimal.Zero, apperr.Validation(field, field+" must be positive")
	}
	// Bounds read the exponent only; nothing is rescaled here.
	exp := int64(v.Decimal.Exponent())
	if exp < -maxScale {
		return decimal.Zero, apperr.Validation(field, fmt.Sprintf("%s allows at most %d decimal places", field, maxScale))
	}
	if int64(v.Decimal.NumDigits())+exp > maxIntDigits {
		return decimal.Zero, apperr.Validation(field, field+" is too large")
	}
	return v.Decimal, nil
}

func requireText(field, v string) (string, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return "", apperr.Validation(field, field+" is required")
	}
	return v, nil
}
