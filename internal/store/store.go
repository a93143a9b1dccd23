package store

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ErrNotFound is returned when a lookup targets a row that does not exist.
// It is distinct from transient database errors.
var ErrNotFound = errors.New("not found")

// Store is the repository for products and price history. Writes to the
// same product are serialized through a per-product lock so concurrent
// batch and on-demand scrapes cannot race on last-checked/price-append.
type Store struct {
	db     *gorm.DB
	logger *slog.Logger

	mu        sync.Mutex
	itemLocks map[uint]*sync.Mutex
}

// New creates a Store over an opened database.
func New(db *gorm.DB, logger *slog.Logger) *Store {
	return &Store{
		db:        db,
		logger:    logger.With("component", "store"),
		itemLocks: make(map[uint]*sync.Mutex),
	}
}

func (s *Store) lockFor(productID uint) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.itemLocks[productID]
	if !ok {
		l = &sync.Mutex{}
		s.itemLocks[productID] = l
	}
	return l
}

// --- Products ---

// CreateProduct inserts a new tracked product. The URL must be unique.
func (s *Store) CreateProduct(p *Product) error {
	if err := s.db.Create(p).Error; err != nil {
		return fmt.Errorf("create product: %w", err)
	}
	s.logger.Info("product created", "id", p.ID, "name", p.Name, "platform", p.Platform)
	return nil
}

// Product fetches a product by id.
func (s *Store) Product(id uint) (*Product, error) {
	var p Product
	if err := s.db.First(&p, id).Error; err != nil {
		return nil, translate(err)
	}
	return &p, nil
}

// ProductByURL fetches a product by its canonical URL.
func (s *Store) ProductByURL(url string) (*Product, error) {
	var p Product
	if err := s.db.Where("url = ?", url).First(&p).Error; err != nil {
		return nil, translate(err)
	}
	return &p, nil
}

// ActiveProducts lists all active products, newest first.
func (s *Store) ActiveProducts() ([]Product, error) {
	var products []Product
	err := s.db.Where("is_active = ?", true).Order("created_at DESC").Find(&products).Error
	if err != nil {
		return nil, fmt.Errorf("list active products: %w", err)
	}
	return products, nil
}

// UpdateProduct applies a partial update (column name -> value).
func (s *Store) UpdateProduct(id uint, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}
	res := s.db.Model(&Product{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return fmt.Errorf("update product %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// SetNotionPageID stores the external sync reference for a product.
func (s *Store) SetNotionPageID(id uint, pageID string) error {
	return s.UpdateProduct(id, map[string]any{"notion_page_id": pageID})
}

// DeactivateProduct soft-deletes: the product drops out of batch runs but
// its history stays queryable.
func (s *Store) DeactivateProduct(id uint) error {
	return s.UpdateProduct(id, map[string]any{"is_active": false})
}

// DeleteProduct permanently removes a product and its whole price history.
func (s *Store) DeleteProduct(id uint) error {
	lock := s.lockFor(id)
	lock.Lock()
	defer lock.Unlock()

	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("product_id = ?", id).Delete(&PricePoint{}).Error; err != nil {
			return fmt.Errorf("delete price history: %w", err)
		}
		res := tx.Delete(&Product{}, id)
		if res.Error != nil {
			return fmt.Errorf("delete product %d: %w", id, res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// --- Price history ---

// AppendPrice records one observation and stamps the product's
// last-checked time with the observation's capture time. The write is
// atomic: either both happen or neither.
func (s *Store) AppendPrice(productID uint, point *PricePoint) error {
	lock := s.lockFor(productID)
	lock.Lock()
	defer lock.Unlock()

	point.ProductID = productID
	if point.ScrapedAt.IsZero() {
		point.ScrapedAt = time.Now().UTC()
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		var p Product
		if err := tx.First(&p, productID).Error; err != nil {
			return translate(err)
		}
		if err := tx.Create(point).Error; err != nil {
			return fmt.Errorf("append price: %w", err)
		}
		return tx.Model(&p).Update("last_checked", point.ScrapedAt).Error
	})
}

// LatestPrice returns the most recent observation for a product.
func (s *Store) LatestPrice(productID uint) (*PricePoint, error) {
	var point PricePoint
	err := s.db.Where("product_id = ?", productID).
		Order("scraped_at DESC").
		First(&point).Error
	if err != nil {
		return nil, translate(err)
	}
	return &point, nil
}

// LowestPrice returns the all-time lowest observation (earliest wins ties).
func (s *Store) LowestPrice(productID uint) (*PricePoint, error) {
	var point PricePoint
	err := s.db.Where("product_id = ?", productID).
		Order("price ASC, scraped_at ASC").
		First(&point).Error
	if err != nil {
		return nil, translate(err)
	}
	return &point, nil
}

// PriceWindow returns history within the trailing window, newest first.
// days <= 0 means unbounded; limit <= 0 means no cap.
func (s *Store) PriceWindow(productID uint, days, limit int) ([]PricePoint, error) {
	q := s.db.Where("product_id = ?", productID)
	if days > 0 {
		q = q.Where("scraped_at >= ?", time.Now().UTC().AddDate(0, 0, -days))
	}
	q = q.Order("scraped_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}

	var points []PricePoint
	if err := q.Find(&points).Error; err != nil {
		return nil, fmt.Errorf("price window: %w", err)
	}
	return points, nil
}

// WindowStats computes min/max/avg price over the trailing window plus the
// latest price regardless of window. An empty window yields nil aggregates
// and a zero count, never an error.
func (s *Store) WindowStats(productID uint, days int) (*Stats, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -days)

	var agg struct {
		MinPrice sql.NullFloat64
		MaxPrice sql.NullFloat64
		AvgPrice sql.NullFloat64
		Count    int64
	}
	err := s.db.Model(&PricePoint{}).
		Select("MIN(price) AS min_price, MAX(price) AS max_price, AVG(price) AS avg_price, COUNT(*) AS count").
		Where("product_id = ? AND scraped_at >= ?", productID, cutoff).
		Scan(&agg).Error
	if err != nil {
		return nil, fmt.Errorf("window stats: %w", err)
	}

	stats := &Stats{Count: agg.Count, PeriodDays: days}
	if agg.MinPrice.Valid {
		v := decimal.NewFromFloat(agg.MinPrice.Float64)
		stats.Min = &v
	}
	if agg.MaxPrice.Valid {
		v := decimal.NewFromFloat(agg.MaxPrice.Float64)
		stats.Max = &v
	}
	if agg.AvgPrice.Valid {
		v := decimal.NewFromFloat(agg.AvgPrice.Float64).Round(2)
		stats.Avg = &v
	}

	latest, err := s.LatestPrice(productID)
	switch {
	case err == nil:
		stats.Current = &latest.Price
	case errors.Is(err, ErrNotFound):
		// No history at all; aggregates stay absent.
	default:
		return nil, err
	}

	return stats, nil
}

// TotalStats returns store-wide counters.
func (s *Store) TotalStats() (*Totals, error) {
	var t Totals
	if err := s.db.Model(&Product{}).Where("is_active = ?", true).Count(&t.ActiveProducts).Error; err != nil {
		return nil, fmt.Errorf("count products: %w", err)
	}
	if err := s.db.Model(&PricePoint{}).Count(&t.PriceRecords).Error; err != nil {
		return nil, fmt.Errorf("count price records: %w", err)
	}
	yesterday := time.Now().UTC().Add(-24 * time.Hour)
	if err := s.db.Model(&Product{}).Where("last_checked >= ?", yesterday).Count(&t.CheckedLast24h).Error; err != nil {
		return nil, fmt.Errorf("count recent checks: %w", err)
	}
	return &t, nil
}

func translate(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
