package store

import (
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := Open(":memory:", testLogger)
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	return New(db, testLogger)
}

func newTestProduct(t *testing.T, s *Store, url string) *Product {
	t.Helper()
	p := &Product{
		Name:      "Test Keyboard",
		URL:       url,
		Platform:  "amazon",
		ProductID: "B08N5WRWNW",
		Currency:  "USD",
		IsActive:  true,
	}
	if err := s.CreateProduct(p); err != nil {
		t.Fatalf("create product: %v", err)
	}
	return p
}

func point(price string, at time.Time) *PricePoint {
	return &PricePoint{
		Price:        decimal.RequireFromString(price),
		Availability: "available",
		ScrapedAt:    at,
	}
}

func TestCreateAndFetchProduct(t *testing.T) {
	s := newTestStore(t)
	p := newTestProduct(t, s, "https://www.amazon.com/dp/B08N5WRWNW")

	got, err := s.Product(p.ID)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if got.Name != p.Name || got.Platform != "amazon" {
		t.Errorf("fetched product mismatch: %+v", got)
	}

	byURL, err := s.ProductByURL(p.URL)
	if err != nil {
		t.Fatalf("fetch by url: %v", err)
	}
	if byURL.ID != p.ID {
		t.Errorf("by-url id = %d, want %d", byURL.ID, p.ID)
	}
}

func TestProductNotFound(t *testing.T) {
	s := newTestStore(t)

	if _, err := s.Product(999); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if _, err := s.ProductByURL("https://nowhere"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if err := s.UpdateProduct(999, map[string]any{"name": "x"}); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if err := s.DeleteProduct(999); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestDuplicateURLRejected(t *testing.T) {
	s := newTestStore(t)
	newTestProduct(t, s, "https://www.amazon.com/dp/B08N5WRWNW")

	dup := &Product{Name: "Again", URL: "https://www.amazon.com/dp/B08N5WRWNW", Platform: "amazon", ProductID: "B08N5WRWNW"}
	if err := s.CreateProduct(dup); err == nil {
		t.Error("expected unique constraint violation for duplicate URL")
	}
}

func TestActiveProductsExcludesDeactivated(t *testing.T) {
	s := newTestStore(t)
	a := newTestProduct(t, s, "https://www.amazon.com/dp/AAAAAAAAAA")
	b := newTestProduct(t, s, "https://www.amazon.com/dp/BBBBBBBBBB")

	if err := s.DeactivateProduct(a.ID); err != nil {
		t.Fatalf("deactivate: %v", err)
	}

	active, err := s.ActiveProducts()
	if err != nil {
		t.Fatal(err)
	}
	if len(active) != 1 || active[0].ID != b.ID {
		t.Errorf("active = %+v, want only product %d", active, b.ID)
	}

	// Deactivated history stays queryable.
	if _, err := s.Product(a.ID); err != nil {
		t.Errorf("deactivated product should remain fetchable: %v", err)
	}
}

func TestAppendPriceStampsLastChecked(t *testing.T) {
	s := newTestStore(t)
	p := newTestProduct(t, s, "https://www.amazon.com/dp/B08N5WRWNW")

	at := time.Date(2026, 3, 15, 8, 0, 0, 0, time.UTC)
	if err := s.AppendPrice(p.ID, point("99.99", at)); err != nil {
		t.Fatalf("append: %v", err)
	}

	got, err := s.Product(p.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.LastChecked == nil {
		t.Fatal("last_checked not stamped")
	}
	if !got.LastChecked.Equal(at) {
		t.Errorf("last_checked = %s, want %s", got.LastChecked, at)
	}
}

func TestAppendPriceUnknownProduct(t *testing.T) {
	s := newTestStore(t)
	err := s.AppendPrice(42, point("10.00", time.Now().UTC()))
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestLatestAndLowestPrice(t *testing.T) {
	s := newTestStore(t)
	p := newTestProduct(t, s, "https://www.amazon.com/dp/B08N5WRWNW")

	base := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	for i, price := range []string{"120.00", "95.00", "110.00"} {
		if err := s.AppendPrice(p.ID, point(price, base.AddDate(0, 0, i))); err != nil {
			t.Fatal(err)
		}
	}

	latest, err := s.LatestPrice(p.ID)
	if err != nil {
		t.Fatal(err)
	}
	if latest.Price.String() != "110" {
		t.Errorf("latest = %s, want 110", latest.Price)
	}

	lowest, err := s.LowestPrice(p.ID)
	if err != nil {
		t.Fatal(err)
	}
	if lowest.Price.String() != "95" {
		t.Errorf("lowest = %s, want 95", lowest.Price)
	}
}

func TestPriceWindowOrderingAndLimit(t *testing.T) {
	s := newTestStore(t)
	p := newTestProduct(t, s, "https://www.amazon.com/dp/B08N5WRWNW")

	now := time.Now().UTC()
	for i := 0; i < 5; i++ {
		// One hour of slack keeps each point clearly inside its day bucket.
		at := now.AddDate(0, 0, -i).Add(time.Hour)
		if err := s.AppendPrice(p.ID, point("100.00", at)); err != nil {
			t.Fatal(err)
		}
	}

	points, err := s.PriceWindow(p.ID, 30, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(points) != 5 {
		t.Fatalf("got %d points, want 5", len(points))
	}
	for i := 1; i < len(points); i++ {
		if points[i].ScrapedAt.After(points[i-1].ScrapedAt) {
			t.Errorf("points not newest-first at index %d", i)
		}
	}

	limited, err := s.PriceWindow(p.ID, 30, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(limited) != 2 {
		t.Errorf("limit ignored: got %d points", len(limited))
	}

	// A 2-day window keeps only observations at offsets 0, -1 and -2.
	windowed, err := s.PriceWindow(p.ID, 2, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(windowed) != 3 {
		t.Errorf("2-day window returned %d points, want 3", len(windowed))
	}
}

func TestWindowStats(t *testing.T) {
	s := newTestStore(t)
	p := newTestProduct(t, s, "https://www.amazon.com/dp/B08N5WRWNW")

	now := time.Now().UTC()
	prices := []string{"120.00", "95.00", "110.00"}
	for i, price := range prices {
		if err := s.AppendPrice(p.ID, point(price, now.Add(-time.Duration(len(prices)-i)*time.Hour))); err != nil {
			t.Fatal(err)
		}
	}

	stats, err := s.WindowStats(p.ID, 30)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Count != 3 {
		t.Errorf("count = %d, want 3", stats.Count)
	}
	if stats.Min == nil || stats.Min.String() != "95" {
		t.Errorf("min = %v, want 95", stats.Min)
	}
	if stats.Max == nil || stats.Max.String() != "120" {
		t.Errorf("max = %v, want 120", stats.Max)
	}
	if stats.Avg == nil || stats.Avg.String() != "108.33" {
		t.Errorf("avg = %v, want 108.33", stats.Avg)
	}
	if stats.Current == nil || stats.Current.String() != "110" {
		t.Errorf("current = %v, want 110", stats.Current)
	}
}

func TestWindowStatsEmpty(t *testing.T) {
	s := newTestStore(t)
	p := newTestProduct(t, s, "https://www.amazon.com/dp/B08N5WRWNW")

	stats, err := s.WindowStats(p.ID, 30)
	if err != nil {
		t.Fatalf("empty window must not error: %v", err)
	}
	if stats.Count != 0 {
		t.Errorf("count = %d, want 0", stats.Count)
	}
	if stats.Min != nil || stats.Max != nil || stats.Avg != nil || stats.Current != nil {
		t.Errorf("empty window should have nil aggregates: %+v", stats)
	}
}

func TestWindowStatsSinglePoint(t *testing.T) {
	s := newTestStore(t)
	p := newTestProduct(t, s, "https://www.amazon.com/dp/B08N5WRWNW")

	if err := s.AppendPrice(p.ID, point("49.99", time.Now().UTC())); err != nil {
		t.Fatal(err)
	}

	stats, err := s.WindowStats(p.ID, 7)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Count != 1 {
		t.Errorf("count = %d, want 1", stats.Count)
	}
	if stats.Min == nil || stats.Max == nil || !stats.Min.Equal(*stats.Max) {
		t.Errorf("single point should have min == max: min=%v max=%v", stats.Min, stats.Max)
	}
}

func TestDeleteProductRemovesHistory(t *testing.T) {
	s := newTestStore(t)
	p := newTestProduct(t, s, "https://www.amazon.com/dp/B08N5WRWNW")

	if err := s.AppendPrice(p.ID, point("10.00", time.Now().UTC())); err != nil {
		t.Fatal(err)
	}
	if err := s.DeleteProduct(p.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}

	if _, err := s.Product(p.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("product should be gone, got %v", err)
	}
	if _, err := s.LatestPrice(p.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("history should be gone, got %v", err)
	}
}

func TestNullableDecimalRoundTrip(t *testing.T) {
	s := newTestStore(t)
	p := newTestProduct(t, s, "https://www.amazon.com/dp/B08N5WRWNW")

	pt := point("80.00", time.Now().UTC())
	pt.OriginalPrice = decimal.NewNullDecimal(decimal.RequireFromString("100.00"))
	pt.DiscountPercent = decimal.NewNullDecimal(decimal.RequireFromString("20.00"))
	if err := s.AppendPrice(p.ID, pt); err != nil {
		t.Fatal(err)
	}

	got, err := s.LatestPrice(p.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !got.OriginalPrice.Valid || !got.OriginalPrice.Decimal.Equal(decimal.RequireFromString("100.00")) {
		t.Errorf("original price = %+v, want 100.00", got.OriginalPrice)
	}
	if !got.DiscountPercent.Valid || !got.DiscountPercent.Decimal.Equal(decimal.RequireFromString("20.00")) {
		t.Errorf("discount = %+v, want 20.00", got.DiscountPercent)
	}

	// The point without extras stays null.
	if err := s.AppendPrice(p.ID, point("80.00", time.Now().UTC().Add(time.Minute))); err != nil {
		t.Fatal(err)
	}
	got, err = s.LatestPrice(p.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.OriginalPrice.Valid {
		t.Errorf("expected null original price, got %+v", got.OriginalPrice)
	}
}

func TestSetNotionPageID(t *testing.T) {
	s := newTestStore(t)
	p := newTestProduct(t, s, "https://www.amazon.com/dp/B08N5WRWNW")

	if err := s.SetNotionPageID(p.ID, "page-abc-123"); err != nil {
		t.Fatal(err)
	}
	got, err := s.Product(p.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.NotionPageID != "page-abc-123" {
		t.Errorf("notion page id = %q", got.NotionPageID)
	}
}

func TestTotalStats(t *testing.T) {
	s := newTestStore(t)
	a := newTestProduct(t, s, "https://www.amazon.com/dp/AAAAAAAAAA")
	newTestProduct(t, s, "https://www.amazon.com/dp/BBBBBBBBBB")

	if err := s.AppendPrice(a.ID, point("10.00", time.Now().UTC())); err != nil {
		t.Fatal(err)
	}

	totals, err := s.TotalStats()
	if err != nil {
		t.Fatal(err)
	}
	if totals.ActiveProducts != 2 {
		t.Errorf("active products = %d, want 2", totals.ActiveProducts)
	}
	if totals.PriceRecords != 1 {
		t.Errorf("price records = %d, want 1", totals.PriceRecords)
	}
	if totals.CheckedLast24h != 1 {
		t.Errorf("checked last 24h = %d, want 1", totals.CheckedLast24h)
	}
}
