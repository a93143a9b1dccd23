package scraper

import (
	"log/slog"
	"strings"
)

// registration binds URL tokens to the adapter that handles them. Entries
// are consulted in declaration order; the first token match wins.
type registration struct {
	platform string
	tokens   []string
	scraper  Scraper
}

// Registry resolves product URLs to platform adapters.
type Registry struct {
	entries []registration
	logger  *slog.Logger
}

// NewRegistry builds the registry with all supported platform adapters.
// Adapters share one page client so the politeness delay and UA pool apply
// uniformly to markup fetches.
func NewRegistry(opts Options, logger *slog.Logger) *Registry {
	pages := NewClient(opts, logger)
	return &Registry{
		entries: []registration{
			{
				platform: "mercadolibre",
				tokens:   []string{"mercadolibre", "mercadolivre"},
				scraper:  NewMercadoLibre(opts, pages, logger),
			},
			{
				platform: "amazon",
				tokens:   []string{"amazon"},
				scraper:  NewAmazon(pages, logger),
			},
		},
		logger: logger.With("component", "scraper_registry"),
	}
}

// Resolve returns the adapter for a URL, or ErrNoScraper when no platform
// token matches.
func (r *Registry) Resolve(rawURL string) (Scraper, error) {
	lower := strings.ToLower(rawURL)
	for _, entry := range r.entries {
		for _, token := range entry.tokens {
			if strings.Contains(lower, token) {
				return entry.scraper, nil
			}
		}
	}
	r.logger.Debug("no scraper for URL", "url", rawURL)
	return nil, ErrNoScraper
}

// DetectPlatform returns the platform tag for a URL, or "" when
// unrecognized. Same URL always yields the same tag.
func (r *Registry) DetectPlatform(rawURL string) string {
	s, err := r.Resolve(rawURL)
	if err != nil {
		return ""
	}
	return s.Platform()
}
