package scraper

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// asinPatterns extract the ASIN from an Amazon URL, tried in priority
// order. All are case-insensitive; ASINs are uppercased on output.
var asinPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)/dp/([A-Z0-9]{10})`),
	regexp.MustCompile(`(?i)/gp/product/([A-Z0-9]{10})`),
	regexp.MustCompile(`(?i)/product/([A-Z0-9]{10})`),
	regexp.MustCompile(`(?i)ASIN=([A-Z0-9]{10})`),
}

var currencySymbols = map[string]string{
	"$": "USD",
	"€": "EUR",
	"£": "GBP",
	"¥": "JPY",
}

// Extraction cascades, highest priority first. Selectors track the markup
// variants Amazon has shipped; each is best-effort.
var (
	amazonNameStrategies = []fieldStrategy{
		css("#productTitle"),
		css(".product-title-word-break"),
		css("#title"),
		xpath(`//span[@id='productTitle']`),
	}
	amazonPriceStrategies = []fieldStrategy{
		css(".a-price-whole"),
		css(".a-offscreen"),
		css("#priceblock_ourprice"),
		css("#priceblock_dealprice"),
		css(".a-price"),
	}
	amazonOriginalPriceStrategies = []fieldStrategy{
		css(".a-text-price .a-offscreen"),
		css(".a-text-price"),
		css(".priceBlockStrikePriceString"),
	}
	amazonImageStrategies = []fieldStrategy{
		cssAttr("#landingImage", "src"),
		cssAttr("#imgBlkFront", "src"),
		cssAttr(".a-dynamic-image", "src"),
	}
	amazonAvailabilityStrategies = []fieldStrategy{
		css("#availability"),
		css(".availability"),
		xpath(`//div[@id='availability']//span`),
	}
)

// Amazon is a markup-only adapter: product pages are fetched with a
// randomized User-Agent and every field goes through a selector cascade.
type Amazon struct {
	pages  *Client
	logger *slog.Logger
}

// NewAmazon creates the Amazon adapter sharing the given page client.
func NewAmazon(pages *Client, logger *slog.Logger) *Amazon {
	return &Amazon{
		pages:  pages,
		logger: logger.With("component", "amazon_scraper"),
	}
}

func (a *Amazon) Platform() string { return "amazon" }

// ExtractProductID derives the ASIN from an Amazon product URL.
func (a *Amazon) ExtractProductID(rawURL string) (string, error) {
	for _, pattern := range asinPatterns {
		if m := pattern.FindStringSubmatch(rawURL); m != nil {
			return strings.ToUpper(m[1]), nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrProductID, rawURL)
}

// Scrape fetches the product page and extracts Result fields through the
// per-field cascades. Name and price are essential; everything else is
// optional.
func (a *Amazon) Scrape(ctx context.Context, rawURL string) (*Result, error) {
	if !strings.Contains(strings.ToLower(rawURL), "amazon") {
		return nil, fmt.Errorf("%w: not an amazon URL: %s", ErrNoScraper, rawURL)
	}

	productID, err := a.ExtractProductID(rawURL)
	if err != nil {
		return nil, err
	}

	body, err := a.pages.GetPage(ctx, rawURL)
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, &ParseError{URL: rawURL, Field: "document", Err: err}
	}

	name := firstMatch(doc, amazonNameStrategies)
	if name == "" {
		return nil, &ParseError{URL: rawURL, Field: "name", Err: fmt.Errorf("no selector matched")}
	}

	priceText := firstMatch(doc, amazonPriceStrategies)
	if priceText == "" {
		return nil, &ParseError{URL: rawURL, Field: "price", Err: fmt.Errorf("no selector matched")}
	}
	price, err := ParsePrice(priceText)
	if err != nil {
		return nil, &ParseError{URL: rawURL, Field: "price", Err: err}
	}

	result := &Result{
		Name:      name,
		Price:     price,
		Currency:  a.currency(doc),
		ImageURL:  imageURL(firstMatch(doc, amazonImageStrategies)),
		ProductID: productID,
	}

	// Original price is accepted only when it strictly exceeds the
	// current price; only then is a discount derived.
	if origText := firstMatch(doc, amazonOriginalPriceStrategies); origText != "" {
		if orig, err := ParsePrice(origText); err == nil && orig.GreaterThan(price) {
			result.OriginalPrice = &orig
			result.DiscountPercent = ComputeDiscount(price, orig)
		}
	}

	if availText := firstMatch(doc, amazonAvailabilityStrategies); availText != "" {
		result.Availability = ClassifyAvailability(availText)
	} else {
		// A price implies purchasability.
		result.Availability = Available
	}

	a.logger.Info("product scraped", "asin", productID, "name", name, "price", price)
	return result, nil
}

func (a *Amazon) currency(doc *goquery.Document) string {
	symbol := strings.TrimSpace(doc.Find("span.a-price-symbol").First().Text())
	if code, ok := currencySymbols[symbol]; ok {
		return code
	}
	return "USD"
}

// imageURL rejects inline data URIs that some image selectors match.
func imageURL(src string) string {
	if strings.HasPrefix(src, "data:image") {
		return ""
	}
	return src
}
