package job

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/pricetrace/pricetrace/internal/config"
	"github.com/pricetrace/pricetrace/internal/notion"
	"github.com/pricetrace/pricetrace/internal/scraper"
	"github.com/pricetrace/pricetrace/internal/store"
)

// Repository is the store surface the runner consumes.
type Repository interface {
	ActiveProducts() ([]store.Product, error)
	Product(id uint) (*store.Product, error)
	ProductByURL(url string) (*store.Product, error)
	CreateProduct(p *store.Product) error
	UpdateProduct(id uint, fields map[string]any) error
	AppendPrice(productID uint, point *store.PricePoint) error
	DeleteProduct(id uint) error
}

// Resolver maps product URLs to platform adapters.
type Resolver interface {
	Resolve(rawURL string) (scraper.Scraper, error)
}

// Syncer is the external sync collaborator. All calls are best-effort from
// the runner's point of view.
type Syncer interface {
	SyncAll(ctx context.Context) *notion.SyncReport
	SyncProduct(ctx context.Context, p *store.Product) error
	Archive(ctx context.Context, pageID string) error
}

// Runner executes scraping passes. Batch and on-demand runs share one
// extraction-and-persistence path.
type Runner struct {
	repo     Repository
	scrapers Resolver
	retrier  *scraper.Retrier
	syncer   Syncer // nil when external sync is disabled
	logger   *slog.Logger
}

// NewRunner wires the orchestrator. syncer may be nil.
func NewRunner(repo Repository, scrapers Resolver, retrier *scraper.Retrier, syncer Syncer, logger *slog.Logger) *Runner {
	return &Runner{
		repo:     repo,
		scrapers: scrapers,
		retrier:  retrier,
		syncer:   syncer,
		logger:   logger.With("component", "job_runner"),
	}
}

// RunBatch scrapes every active product in isolation: one product's
// failure is recorded and the loop continues. Succeeded+Failed always
// equals Total. External sync runs afterward as a best-effort step whose
// outcome lands in the report but never touches already-written records.
func (r *Runner) RunBatch(ctx context.Context) *Report {
	report := &Report{}

	products, err := r.repo.ActiveProducts()
	if err != nil {
		report.Errors = append(report.Errors, fmt.Sprintf("list products: %v", err))
		r.logger.Error("batch aborted, store unavailable", "error", err)
		return report
	}
	report.Total = len(products)

	r.logger.Info("starting batch run", "products", report.Total)
	start := time.Now()

	for i := range products {
		p := &products[i]
		if _, err := r.scrapeAndRecord(ctx, p); err != nil {
			report.Failed++
			report.Errors = append(report.Errors, describeFailure(p, err))
			r.logger.Error("product scrape failed", "product", p.Name, "platform", p.Platform, "error", err)
			continue
		}
		report.Succeeded++
		r.logger.Info("product scraped", "product", p.Name, "platform", p.Platform)
	}

	r.logger.Info("batch run complete",
		"total", report.Total,
		"succeeded", report.Succeeded,
		"failed", report.Failed,
		"duration", time.Since(start),
	)

	if r.syncer != nil {
		report.NotionSync = r.syncer.SyncAll(ctx)
	}
	return report
}

// RunSingle refreshes one product through the same path as the batch.
func (r *Runner) RunSingle(ctx context.Context, productID uint) (*scraper.Result, error) {
	p, err := r.repo.Product(productID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("product %d: %w", productID, store.ErrNotFound)
		}
		return nil, err
	}

	result, err := r.scrapeAndRecord(ctx, p)
	if err != nil {
		if errors.Is(err, scraper.ErrNoScraper) {
			return nil, fmt.Errorf("no scraper available for %s: %w", p.URL, scraper.ErrNoScraper)
		}
		return nil, fmt.Errorf("extraction failed for %s: %w", p.Name, err)
	}

	if r.syncer != nil {
		if err := r.syncer.SyncProduct(ctx, p); err != nil && !errors.Is(err, store.ErrNotFound) {
			r.logger.Warn("notion sync failed for product", "product", p.Name, "error", err)
		}
	}
	return result, nil
}

// Track starts following a new product: resolve, scrape once, create the
// product and its first price point.
func (r *Runner) Track(ctx context.Context, rawURL string) (*store.Product, error) {
	if err := config.ValidateURL(rawURL); err != nil {
		return nil, err
	}
	if existing, err := r.repo.ProductByURL(rawURL); err == nil {
		return nil, fmt.Errorf("product already tracked as %q (id %d)", existing.Name, existing.ID)
	}

	s, err := r.scrapers.Resolve(rawURL)
	if err != nil {
		return nil, err
	}

	result, err := r.scrape(ctx, s, rawURL)
	if err != nil {
		return nil, fmt.Errorf("extraction failed for %s: %w", rawURL, err)
	}

	p := &store.Product{
		Name:      result.Name,
		URL:       rawURL,
		Platform:  s.Platform(),
		ProductID: result.ProductID,
		ImageURL:  result.ImageURL,
		Currency:  result.Currency,
		IsActive:  true,
	}
	if err := r.repo.CreateProduct(p); err != nil {
		return nil, err
	}
	if err := r.repo.AppendPrice(p.ID, pricePointFrom(result)); err != nil {
		return nil, fmt.Errorf("record first price: %w", err)
	}

	if r.syncer != nil {
		if err := r.syncer.SyncProduct(ctx, p); err != nil && !errors.Is(err, store.ErrNotFound) {
			r.logger.Warn("notion sync failed for new product", "product", p.Name, "error", err)
		}
	}
	return p, nil
}

// Untrack deletes a product and its history. The remote Notion page is
// archived first, best-effort: remote failure never blocks local deletion.
func (r *Runner) Untrack(ctx context.Context, productID uint) error {
	p, err := r.repo.Product(productID)
	if err != nil {
		return err
	}
	if r.syncer != nil && p.NotionPageID != "" {
		if err := r.syncer.Archive(ctx, p.NotionPageID); err != nil {
			r.logger.Warn("remote archive failed, deleting locally anyway", "product", p.Name, "error", err)
		}
	}
	return r.repo.DeleteProduct(productID)
}

// scrapeAndRecord is the shared per-product path: resolve the adapter,
// extract through the retry policy, append the price point, backfill
// product fields that were unset.
func (r *Runner) scrapeAndRecord(ctx context.Context, p *store.Product) (*scraper.Result, error) {
	s, err := r.scrapers.Resolve(p.URL)
	if err != nil {
		return nil, err
	}

	result, err := r.scrape(ctx, s, p.URL)
	if err != nil {
		return nil, err
	}

	if err := r.repo.AppendPrice(p.ID, pricePointFrom(result)); err != nil {
		return nil, fmt.Errorf("store price: %w", err)
	}

	fields := map[string]any{}
	if p.ImageURL == "" && result.ImageURL != "" {
		fields["image_url"] = result.ImageURL
	}
	if result.Currency != "" && result.Currency != p.Currency {
		fields["currency"] = result.Currency
	}
	if len(fields) > 0 {
		if err := r.repo.UpdateProduct(p.ID, fields); err != nil {
			r.logger.Warn("product backfill failed", "product", p.Name, "error", err)
		}
	}
	return result, nil
}

func (r *Runner) scrape(ctx context.Context, s scraper.Scraper, rawURL string) (*scraper.Result, error) {
	var result *scraper.Result
	err := r.retrier.Do(ctx, func() error {
		res, err := s.Scrape(ctx, rawURL)
		if err != nil {
			return err
		}
		result = res
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func pricePointFrom(result *scraper.Result) *store.PricePoint {
	point := &store.PricePoint{
		Price:        result.Price,
		Availability: string(result.Availability),
		ScrapedAt:    time.Now().UTC(),
	}
	if result.OriginalPrice != nil {
		point.OriginalPrice = decimal.NewNullDecimal(*result.OriginalPrice)
	}
	if result.DiscountPercent != nil {
		point.DiscountPercent = decimal.NewNullDecimal(*result.DiscountPercent)
	}
	return point
}

// describeFailure renders a per-product failure for the run report.
// Unsupported URLs read differently from extraction failures so operators
// can tell configuration problems from site problems.
func describeFailure(p *store.Product, err error) string {
	switch {
	case errors.Is(err, scraper.ErrNoScraper):
		return fmt.Sprintf("no scraper available for %s (%s)", p.Name, p.URL)
	case errors.Is(err, scraper.ErrBlocked):
		return fmt.Sprintf("extraction failed for %s: blocked by anti-bot defenses", p.Name)
	default:
		return fmt.Sprintf("extraction failed for %s: %v", p.Name, err)
	}
}
