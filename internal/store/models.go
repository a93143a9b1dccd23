// Package store persists tracked products and their append-only price
// history in a relational database.
package store

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product is a tracked item. The URL uniquely determines the platform and
// the platform-native product id.
type Product struct {
	ID           uint   `gorm:"primaryKey" json:"id"`
	Name         string `gorm:"not null" json:"name"`
	URL          string `gorm:"uniqueIndex;not null" json:"url"`
	Platform     string `gorm:"not null" json:"platform"`
	ProductID    string `gorm:"not null" json:"product_id"`
	ImageURL     string `json:"image_url"`
	Currency     string `gorm:"default:'USD'" json:"currency"`
	IsActive     bool   `gorm:"default:true" json:"is_active"`
	NotionPageID string `gorm:"index" json:"notion_page_id,omitempty"`

	LastChecked *time.Time `json:"last_checked"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`

	PricePoints []PricePoint `gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE" json:"-"`
}

// PricePoint is one observation in a product's price history. Rows are
// immutable once written; the store exposes no update or delete for them
// short of deleting the owning product.
type PricePoint struct {
	ID        uint `gorm:"primaryKey" json:"id"`
	ProductID uint `gorm:"index;not null" json:"product_id"`

	Price           decimal.Decimal     `gorm:"type:decimal(12,2);not null" json:"price"`
	OriginalPrice   decimal.NullDecimal `gorm:"type:decimal(12,2)" json:"original_price"`
	DiscountPercent decimal.NullDecimal `gorm:"type:decimal(5,2)" json:"discount_percent"`
	Availability    string              `gorm:"default:'available'" json:"availability"`

	ScrapedAt time.Time `gorm:"index;not null" json:"scraped_at"`
}

// Stats are windowed price aggregates for one product. Aggregate fields
// are nil when the window holds no records.
type Stats struct {
	Min        *decimal.Decimal `json:"min_price"`
	Max        *decimal.Decimal `json:"max_price"`
	Avg        *decimal.Decimal `json:"avg_price"`
	Current    *decimal.Decimal `json:"current_price"`
	Count      int64            `json:"data_points"`
	PeriodDays int              `json:"period_days"`
}

// Totals are store-wide counters.
type Totals struct {
	ActiveProducts int64 `json:"total_products"`
	PriceRecords   int64 `json:"total_price_records"`
	CheckedLast24h int64 `json:"checked_last_24h"`
}
