// Package scraper implements platform-specific price extraction.
//
// Each supported platform implements the Scraper interface. Adapters are
// stateless across calls: everything they need (delays, timeouts, the
// User-Agent pool) is injected through Options at construction time.
package scraper

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/pricetrace/pricetrace/internal/config"
)

// Availability describes whether a product can currently be purchased.
type Availability string

const (
	Available   Availability = "available"
	OutOfStock  Availability = "out_of_stock"
	Unavailable Availability = "unavailable"
	UnknownAvailability Availability = "unknown"
)

// Result is the outcome of a single product extraction. It is transient:
// the orchestrator maps it into a price record, it is never persisted as-is.
type Result struct {
	// Name and Price are essential; an extraction without both fails.
	Name  string
	Price decimal.Decimal

	// OriginalPrice is the pre-discount price, present only when it
	// strictly exceeds Price.
	OriginalPrice *decimal.Decimal

	// DiscountPercent is derived from OriginalPrice, rounded to 2 places.
	DiscountPercent *decimal.Decimal

	Currency     string
	ImageURL     string
	Availability Availability

	// ProductID is the platform-native identifier (ASIN, ML item id, ...).
	ProductID string
}

// Scraper is the capability contract every platform adapter implements.
type Scraper interface {
	// Platform returns the platform tag ("amazon", "mercadolibre", ...).
	Platform() string

	// ExtractProductID derives the platform-native product id from a URL.
	// It is a pure function: the same URL always yields the same id.
	// Returns ErrProductID when no pattern matches.
	ExtractProductID(rawURL string) (string, error)

	// Scrape fetches and extracts product data. Expected failure modes
	// (network errors, blocks, missing fields) are returned as typed
	// errors, never panics.
	Scrape(ctx context.Context, rawURL string) (*Result, error)
}

// Options carries the injected configuration shared by all adapters.
type Options struct {
	Delay      time.Duration
	Timeout    time.Duration
	UserAgents []string
}

// OptionsFromConfig maps scraper configuration into adapter options.
func OptionsFromConfig(cfg config.ScraperConfig) Options {
	return Options{
		Delay:      cfg.RequestDelay,
		Timeout:    cfg.RequestTimeout,
		UserAgents: cfg.UserAgents,
	}
}

// ClassifyAvailability maps free-form availability text to an enum value.
// Matching is keyword-based and covers the Spanish variants MercadoLibre
// pages use.
func ClassifyAvailability(text string) Availability {
	t := strings.ToLower(text)
	switch {
	case strings.Contains(t, "out of stock"),
		strings.Contains(t, "unavailable"),
		strings.Contains(t, "agotado"),
		strings.Contains(t, "sin stock"),
		strings.Contains(t, "no disponible"):
		return OutOfStock
	case strings.Contains(t, "in stock"),
		strings.Contains(t, "available"),
		strings.Contains(t, "disponible"):
		return Available
	default:
		return UnknownAvailability
	}
}
