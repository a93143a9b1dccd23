package scraper

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

const amazonProductHTML = `<!DOCTYPE html>
<html><body>
<span id="productTitle">  Wireless Noise Cancelling Headphones  </span>
<span class="a-price-symbol">$</span>
<span class="a-price"><span class="a-offscreen">$99.99</span></span>
<span class="a-text-price"><span class="a-offscreen">$129.99</span></span>
<div id="availability"><span>In Stock</span></div>
<img id="landingImage" src="https://images.example.com/headphones.jpg">
</body></html>`

func newAmazonTest(t *testing.T, handler http.HandlerFunc) (*Amazon, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewAmazon(NewClient(testOptions, testLogger), testLogger), server
}

func TestAmazonExtractProductID(t *testing.T) {
	a := NewAmazon(NewClient(testOptions, testLogger), testLogger)

	tests := []struct {
		url  string
		want string
	}{
		{"https://www.amazon.com/dp/B08N5WRWNW", "B08N5WRWNW"},
		{"https://www.amazon.com/gp/product/B08N5WRWNW/ref=xyz", "B08N5WRWNW"},
		{"https://www.amazon.com.mx/Some-Product/product/b08n5wrwnw", "B08N5WRWNW"},
		{"https://www.amazon.com/exec/obidos?ASIN=B08N5WRWNW", "B08N5WRWNW"},
	}
	for _, tt := range tests {
		got, err := a.ExtractProductID(tt.url)
		if err != nil {
			t.Errorf("ExtractProductID(%q) error: %v", tt.url, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ExtractProductID(%q) = %q, want %q", tt.url, got, tt.want)
		}
	}

	if _, err := a.ExtractProductID("https://www.amazon.com/gift-cards"); !errors.Is(err, ErrProductID) {
		t.Errorf("expected ErrProductID for URL without ASIN, got %v", err)
	}
}

func TestAmazonExtractProductIDDeterministic(t *testing.T) {
	a := NewAmazon(NewClient(testOptions, testLogger), testLogger)
	url := "https://www.amazon.com/dp/B08N5WRWNW?ref=ppx_yo_dt"

	first, err := a.ExtractProductID(url)
	if err != nil {
		t.Fatal(err)
	}
	second, err := a.ExtractProductID(url)
	if err != nil {
		t.Fatal(err)
	}
	if first != second {
		t.Errorf("same URL produced different ids: %q vs %q", first, second)
	}
}

func TestAmazonScrape(t *testing.T) {
	a, server := newAmazonTest(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(amazonProductHTML))
	})

	result, err := a.Scrape(context.Background(), server.URL+"/amazon/dp/B08N5WRWNW")
	if err != nil {
		t.Fatalf("Scrape: %v", err)
	}

	if result.Name != "Wireless Noise Cancelling Headphones" {
		t.Errorf("name = %q", result.Name)
	}
	if result.Price.String() != "99.99" {
		t.Errorf("price = %s, want 99.99", result.Price)
	}
	if result.Currency != "USD" {
		t.Errorf("currency = %q, want USD", result.Currency)
	}
	if result.ProductID != "B08N5WRWNW" {
		t.Errorf("product id = %q", result.ProductID)
	}
	if result.OriginalPrice == nil || result.OriginalPrice.String() != "129.99" {
		t.Errorf("original price = %v, want 129.99", result.OriginalPrice)
	}
	if result.DiscountPercent == nil || result.DiscountPercent.String() != "23.08" {
		t.Errorf("discount = %v, want 23.08", result.DiscountPercent)
	}
	if result.Availability != Available {
		t.Errorf("availability = %q, want %q", result.Availability, Available)
	}
	if result.ImageURL != "https://images.example.com/headphones.jpg" {
		t.Errorf("image = %q", result.ImageURL)
	}
}

func TestAmazonScrapeMissingPrice(t *testing.T) {
	a, server := newAmazonTest(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><body><span id="productTitle">Thing</span></body></html>`))
	})

	_, err := a.Scrape(context.Background(), server.URL+"/amazon/dp/B08N5WRWNW")
	var pe *ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("expected ParseError, got %v", err)
	}
	if pe.Field != "price" {
		t.Errorf("field = %q, want price", pe.Field)
	}
}

func TestAmazonScrapeBlocked(t *testing.T) {
	a, server := newAmazonTest(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("<html>To discuss automated access to Amazon data please contact us.</html>"))
	})

	_, err := a.Scrape(context.Background(), server.URL+"/amazon/dp/B08N5WRWNW")
	if !errors.Is(err, ErrBlocked) {
		t.Fatalf("expected ErrBlocked, got %v", err)
	}
	if Retryable(err) {
		t.Error("blocked errors must not be retried")
	}
}

func TestAmazonScrapeIgnoresLowerOriginalPrice(t *testing.T) {
	a, server := newAmazonTest(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><body>
<span id="productTitle">Thing</span>
<span class="a-price"><span class="a-offscreen">$50.00</span></span>
<span class="a-text-price"><span class="a-offscreen">$40.00</span></span>
</body></html>`))
	})

	result, err := a.Scrape(context.Background(), server.URL+"/amazon/dp/B08N5WRWNW")
	if err != nil {
		t.Fatalf("Scrape: %v", err)
	}
	if result.OriginalPrice != nil {
		t.Errorf("original below current price should be dropped, got %s", result.OriginalPrice)
	}
	if result.DiscountPercent != nil {
		t.Errorf("no discount expected, got %s", result.DiscountPercent)
	}
}

func TestAmazonScrapeRejectsForeignURL(t *testing.T) {
	a := NewAmazon(NewClient(testOptions, testLogger), testLogger)
	_, err := a.Scrape(context.Background(), "https://www.ebay.com/itm/123")
	if !errors.Is(err, ErrNoScraper) {
		t.Errorf("expected ErrNoScraper, got %v", err)
	}
}
