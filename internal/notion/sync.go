package notion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/pricetrace/pricetrace/internal/store"
)

// SyncReport summarizes one synchronization pass.
type SyncReport struct {
	Total   int      `json:"total"`
	Synced  int      `json:"synced"`
	Failed  int      `json:"failed"`
	Skipped int      `json:"skipped"`
	Errors  []string `json:"errors,omitempty"`
}

// History is the read surface the syncer needs from the store.
type History interface {
	ActiveProducts() ([]store.Product, error)
	LatestPrice(productID uint) (*store.PricePoint, error)
	LowestPrice(productID uint) (*store.PricePoint, error)
	SetNotionPageID(id uint, pageID string) error
}

// Syncer pushes product state to Notion after scraping passes. Every
// failure is isolated: one product's sync error never stops the pass, and
// no sync error ever reaches the price store.
type Syncer struct {
	client  *Client
	history History
	logger  *slog.Logger
}

// NewSyncer wires the Notion client to the price history.
func NewSyncer(client *Client, history History, logger *slog.Logger) *Syncer {
	return &Syncer{
		client:  client,
		history: history,
		logger:  logger.With("component", "notion_syncer"),
	}
}

// SyncAll mirrors every active product. Products with no recorded prices
// are skipped, not failed.
func (s *Syncer) SyncAll(ctx context.Context) *SyncReport {
	report := &SyncReport{}

	products, err := s.history.ActiveProducts()
	if err != nil {
		report.Errors = append(report.Errors, fmt.Sprintf("list products: %v", err))
		return report
	}
	report.Total = len(products)

	s.logger.Info("starting notion sync", "products", report.Total)
	for i := range products {
		p := &products[i]
		if err := s.SyncProduct(ctx, p); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				report.Skipped++
				continue
			}
			report.Failed++
			report.Errors = append(report.Errors, fmt.Sprintf("%s: %v", p.Name, err))
			s.logger.Error("notion sync failed", "product", p.Name, "error", err)
			continue
		}
		report.Synced++
	}

	s.logger.Info("notion sync complete", "synced", report.Synced, "total", report.Total, "failed", report.Failed)
	return report
}

// SyncProduct mirrors one product: latest price, all-time lowest price and
// its date. The returned page id is persisted back onto the product so
// the next sync can address the page directly.
func (s *Syncer) SyncProduct(ctx context.Context, p *store.Product) error {
	latest, err := s.history.LatestPrice(p.ID)
	if err != nil {
		return err // ErrNotFound means no history yet; caller skips
	}
	lowest, err := s.history.LowestPrice(p.ID)
	if err != nil {
		return err
	}

	pageID, err := s.client.SyncProduct(ctx, SyncInput{
		Name:          p.Name,
		Platform:      p.Platform,
		URL:           p.URL,
		CurrentPrice:  latest.Price,
		Currency:      p.Currency,
		LowestPrice:   lowest.Price,
		LowestPriceAt: lowest.ScrapedAt,
		LastUpdate:    latest.ScrapedAt,
		PageID:        p.NotionPageID,
	})
	if err != nil {
		return err
	}

	if pageID != "" && pageID != p.NotionPageID {
		if err := s.history.SetNotionPageID(p.ID, pageID); err != nil {
			s.logger.Warn("could not persist notion page id", "product", p.Name, "error", err)
		}
		p.NotionPageID = pageID
	}
	return nil
}

// Archive archives the remote page for a product about to be deleted.
// Best-effort: a remote failure must not block local deletion.
func (s *Syncer) Archive(ctx context.Context, pageID string) error {
	if pageID == "" {
		return nil
	}
	return s.client.ArchivePage(ctx, pageID)
}
