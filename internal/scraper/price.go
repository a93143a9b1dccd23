package scraper

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// ParsePrice normalizes raw price text ("$1,299.00", "1.299,00", "39.99")
// into a decimal. Everything except digits, '.' and ',' is stripped, then
// the thousands separator is resolved: when both separators appear, the
// rightmost one is the decimal point.
func ParsePrice(text string) (decimal.Decimal, error) {
	var b strings.Builder
	for _, r := range text {
		if (r >= '0' && r <= '9') || r == '.' || r == ',' {
			b.WriteRune(r)
		}
	}
	clean := b.String()
	if clean == "" {
		return decimal.Zero, fmt.Errorf("no numeric content in %q", text)
	}

	lastDot := strings.LastIndex(clean, ".")
	lastComma := strings.LastIndex(clean, ",")

	switch {
	case lastDot >= 0 && lastComma >= 0:
		if lastComma > lastDot {
			// European form: 1.299,00
			clean = strings.ReplaceAll(clean, ".", "")
			clean = strings.Replace(clean, ",", ".", 1)
		} else {
			// US form: 1,299.00
			clean = strings.ReplaceAll(clean, ",", "")
		}
	case lastComma >= 0:
		// A single comma followed by exactly two digits is a decimal
		// point; anything else is a thousands separator.
		if strings.Count(clean, ",") == 1 && len(clean)-lastComma-1 == 2 {
			clean = strings.Replace(clean, ",", ".", 1)
		} else {
			clean = strings.ReplaceAll(clean, ",", "")
		}
	case strings.Count(clean, ".") > 1:
		// Multiple dots: all are thousands separators (1.234.567)
		clean = strings.ReplaceAll(clean, ".", "")
	}

	d, err := decimal.NewFromString(clean)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse price %q: %w", text, err)
	}
	if d.IsNegative() {
		return decimal.Zero, fmt.Errorf("negative price %q", text)
	}
	return d, nil
}

// ComputeDiscount returns round(100*(original-price)/original, 2), or nil
// unless original strictly exceeds price.
func ComputeDiscount(price, original decimal.Decimal) *decimal.Decimal {
	if !original.GreaterThan(price) || !original.IsPositive() {
		return nil
	}
	d := original.Sub(price).Div(original).Mul(hundred).Round(2)
	return &d
}
