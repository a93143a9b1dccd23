package scraper

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestParsePrice(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"$1,299.00", "1299"},
		{"1.299,00", "1299"},
		{"39.99", "39.99"},
		{"€ 1.234,56", "1234.56"},
		{"1,299", "1299"},
		{"12,99", "12.99"},
		{"1.234.567", "1234567"},
		{"MXN 549", "549"},
		{"US$ 2,449.99", "2449.99"},
	}

	for _, tt := range tests {
		got, err := ParsePrice(tt.input)
		if err != nil {
			t.Errorf("ParsePrice(%q) error: %v", tt.input, err)
			continue
		}
		want, _ := decimal.NewFromString(tt.want)
		if !got.Equal(want) {
			t.Errorf("ParsePrice(%q) = %s, want %s", tt.input, got, want)
		}
	}
}

func TestParsePriceNoNumbers(t *testing.T) {
	if _, err := ParsePrice("see price in cart"); err == nil {
		t.Error("expected error for text with no numeric content")
	}
	if _, err := ParsePrice(""); err == nil {
		t.Error("expected error for empty text")
	}
}

func TestComputeDiscount(t *testing.T) {
	price := decimal.NewFromInt(100)
	original := decimal.NewFromInt(125)

	got := ComputeDiscount(price, original)
	if got == nil {
		t.Fatal("expected a discount")
	}
	if got.String() != "20" {
		t.Errorf("discount = %s, want 20", got)
	}
}

func TestComputeDiscountRounding(t *testing.T) {
	price := decimal.RequireFromString("99.99")
	original := decimal.RequireFromString("129.99")

	got := ComputeDiscount(price, original)
	if got == nil {
		t.Fatal("expected a discount")
	}
	if got.String() != "23.08" {
		t.Errorf("discount = %s, want 23.08", got)
	}
}

func TestComputeDiscountNilCases(t *testing.T) {
	hundred := decimal.NewFromInt(100)

	if d := ComputeDiscount(hundred, hundred); d != nil {
		t.Errorf("equal prices should yield no discount, got %s", d)
	}
	if d := ComputeDiscount(hundred, decimal.NewFromInt(80)); d != nil {
		t.Errorf("original below price should yield no discount, got %s", d)
	}
	if d := ComputeDiscount(hundred, decimal.Zero); d != nil {
		t.Errorf("zero original should yield no discount, got %s", d)
	}
}
