package scraper

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
)

const mercadoLibreAPI = "https://api.mercadolibre.com"

// itemIDPatterns extract the item id (MLM123..., MLA456...) from the URL
// shapes MercadoLibre uses, tried in priority order. Hyphenated ids are
// normalized (MLM-123 -> MLM123).
var itemIDPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)/p/(ML[A-Z]\d+)`),
	regexp.MustCompile(`(?i)/(ML[A-Z]-\d+)`),
	regexp.MustCompile(`(?i)/(ML[A-Z]\d+)`),
	regexp.MustCompile(`(?i)articulo.*/(ML[A-Z]-\d+)`),
}

var soldOutPattern = regexp.MustCompile(`(?i)(agotado|sin stock|no disponible)`)

// mlItem is the items API response shape (fields we consume).
type mlItem struct {
	ID                string   `json:"id"`
	Title             string   `json:"title"`
	Price             *float64 `json:"price"`
	OriginalPrice     *float64 `json:"original_price"`
	CurrencyID        string   `json:"currency_id"`
	Thumbnail         string   `json:"thumbnail"`
	Status            string   `json:"status"`
	AvailableQuantity int      `json:"available_quantity"`
	Pictures          []struct {
		URL       string `json:"url"`
		SecureURL string `json:"secure_url"`
	} `json:"pictures"`
}

// MercadoLibre is a structured-API adapter. The primary path reads the
// public items API; when that is access-denied it probes the visits API to
// confirm the item exists, retries the items multiget once, and finally
// falls back to scraping the product page markup.
type MercadoLibre struct {
	api    *resty.Client
	pages  *Client
	logger *slog.Logger
}

// NewMercadoLibre creates the MercadoLibre adapter sharing the given page
// client for the markup fallback.
func NewMercadoLibre(opts Options, pages *Client, logger *slog.Logger) *MercadoLibre {
	api := resty.New().
		SetBaseURL(mercadoLibreAPI).
		SetTimeout(opts.Timeout).
		SetHeader("Accept", "application/json").
		SetHeader("Accept-Language", "es-MX,es;q=0.9,en;q=0.8")
	if len(opts.UserAgents) > 0 {
		api.SetHeader("User-Agent", opts.UserAgents[0])
	}

	return &MercadoLibre{
		api:    api,
		pages:  pages,
		logger: logger.With("component", "mercadolibre_scraper"),
	}
}

// SetAPIBaseURL overrides the API endpoint (used by tests).
func (m *MercadoLibre) SetAPIBaseURL(u string) { m.api.SetBaseURL(u) }

func (m *MercadoLibre) Platform() string { return "mercadolibre" }

// ExtractProductID derives the item id from a MercadoLibre URL.
func (m *MercadoLibre) ExtractProductID(rawURL string) (string, error) {
	for _, pattern := range itemIDPatterns {
		if match := pattern.FindStringSubmatch(rawURL); match != nil {
			id := strings.ToUpper(match[1])
			return strings.ReplaceAll(id, "-", ""), nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrProductID, rawURL)
}

// Scrape extracts product data, preferring the items API over markup.
func (m *MercadoLibre) Scrape(ctx context.Context, rawURL string) (*Result, error) {
	lower := strings.ToLower(rawURL)
	if !strings.Contains(lower, "mercadolibre") && !strings.Contains(lower, "mercadolivre") {
		return nil, fmt.Errorf("%w: not a mercadolibre URL: %s", ErrNoScraper, rawURL)
	}

	productID, err := m.ExtractProductID(rawURL)
	if err != nil {
		return nil, err
	}

	item, status, err := m.fetchItem(ctx, productID)
	if err != nil {
		return nil, err
	}

	if status == http.StatusForbidden && m.itemExists(ctx, productID) {
		// The item is real but the items endpoint blocks it; the
		// multiget endpoint is more permissive, try it once.
		item, status, err = m.fetchMultiget(ctx, productID)
		if err != nil {
			return nil, err
		}
	}

	if status == http.StatusForbidden {
		m.logger.Warn("items API access denied, falling back to page markup", "item_id", productID)
		return m.scrapeFromPage(ctx, rawURL, productID)
	}

	if status != http.StatusOK {
		return nil, &FetchError{
			URL:        rawURL,
			StatusCode: status,
			Err:        fmt.Errorf("items API returned status %d", status),
			Retryable:  status >= 500,
		}
	}

	return m.resultFromItem(rawURL, productID, item)
}

// Description fetches the plain-text product description. Best-effort.
func (m *MercadoLibre) Description(ctx context.Context, productID string) (string, error) {
	resp, err := m.api.R().SetContext(ctx).Get("/items/" + productID + "/description")
	if err != nil {
		return "", &FetchError{URL: m.api.BaseURL, Err: err, Retryable: true}
	}
	if resp.StatusCode() != http.StatusOK {
		return "", fmt.Errorf("description API returned status %d", resp.StatusCode())
	}
	var body struct {
		PlainText string `json:"plain_text"`
	}
	if err := json.Unmarshal(resp.Body(), &body); err != nil {
		return "", err
	}
	return body.PlainText, nil
}

func (m *MercadoLibre) fetchItem(ctx context.Context, productID string) (*mlItem, int, error) {
	resp, err := m.api.R().SetContext(ctx).Get("/items/" + productID)
	if err != nil {
		return nil, 0, &FetchError{URL: m.api.BaseURL, Err: err, Retryable: isTransient(ctx, err)}
	}
	status := resp.StatusCode()
	if status != http.StatusOK {
		return nil, status, nil
	}

	var item mlItem
	if err := json.Unmarshal(resp.Body(), &item); err != nil {
		return nil, status, &ParseError{URL: m.api.BaseURL, Field: "item", Err: err}
	}
	return &item, status, nil
}

// itemExists probes the visits API, which stays reachable when the items
// endpoint denies access.
func (m *MercadoLibre) itemExists(ctx context.Context, productID string) bool {
	resp, err := m.api.R().SetContext(ctx).Get("/visits/items?ids=" + productID)
	if err != nil || resp.StatusCode() != http.StatusOK {
		return false
	}
	var visits map[string]any
	if err := json.Unmarshal(resp.Body(), &visits); err != nil {
		return false
	}
	_, ok := visits[productID]
	return ok
}

func (m *MercadoLibre) fetchMultiget(ctx context.Context, productID string) (*mlItem, int, error) {
	resp, err := m.api.R().
		SetContext(ctx).
		SetQueryParam("ids", productID).
		SetQueryParam("attributes", "id,title,price,original_price,currency_id,thumbnail,pictures,status,available_quantity").
		Get("/items")
	if err != nil {
		return nil, 0, &FetchError{URL: m.api.BaseURL, Err: err, Retryable: isTransient(ctx, err)}
	}
	status := resp.StatusCode()
	if status != http.StatusOK {
		return nil, status, nil
	}

	var batch []struct {
		Code int    `json:"code"`
		Body mlItem `json:"body"`
	}
	if err := json.Unmarshal(resp.Body(), &batch); err != nil {
		return nil, status, &ParseError{URL: m.api.BaseURL, Field: "multiget", Err: err}
	}
	for _, entry := range batch {
		if entry.Code == http.StatusOK && entry.Body.ID == productID {
			item := entry.Body
			return &item, http.StatusOK, nil
		}
	}
	return nil, http.StatusForbidden, nil
}

func (m *MercadoLibre) resultFromItem(rawURL, productID string, item *mlItem) (*Result, error) {
	if item.Title == "" {
		return nil, &ParseError{URL: rawURL, Field: "name", Err: fmt.Errorf("items API returned no title")}
	}
	if item.Price == nil {
		return nil, &ParseError{URL: rawURL, Field: "price", Err: fmt.Errorf("items API returned no price")}
	}

	price := decimal.NewFromFloat(*item.Price)
	result := &Result{
		Name:      item.Title,
		Price:     price,
		Currency:  item.CurrencyID,
		ProductID: productID,
	}
	if result.Currency == "" {
		result.Currency = "USD"
	}

	if item.OriginalPrice != nil {
		orig := decimal.NewFromFloat(*item.OriginalPrice)
		if orig.GreaterThan(price) {
			result.OriginalPrice = &orig
			result.DiscountPercent = ComputeDiscount(price, orig)
		}
	}

	if len(item.Pictures) > 0 {
		result.ImageURL = item.Pictures[0].URL
		if result.ImageURL == "" {
			result.ImageURL = item.Pictures[0].SecureURL
		}
	} else {
		result.ImageURL = item.Thumbnail
	}

	switch {
	case item.Status != "active":
		result.Availability = Unavailable
	case item.AvailableQuantity == 0:
		result.Availability = OutOfStock
	default:
		result.Availability = Available
	}

	m.logger.Info("product scraped via API", "item_id", productID, "name", item.Title, "price", price)
	return result, nil
}

// scrapeFromPage is the markup fallback for blocked API access.
func (m *MercadoLibre) scrapeFromPage(ctx context.Context, rawURL, productID string) (*Result, error) {
	body, err := m.pages.GetPage(ctx, rawURL)
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, &ParseError{URL: rawURL, Field: "document", Err: err}
	}

	name := strings.TrimSpace(doc.Find("h1.ui-pdp-title").First().Text())
	if name == "" {
		return nil, &ParseError{URL: rawURL, Field: "name", Err: fmt.Errorf("no title element")}
	}

	priceText := m.pagePriceText(doc)
	if priceText == "" {
		return nil, &ParseError{URL: rawURL, Field: "price", Err: fmt.Errorf("no price element")}
	}
	price, err := ParsePrice(priceText)
	if err != nil {
		return nil, &ParseError{URL: rawURL, Field: "price", Err: err}
	}

	result := &Result{
		Name:      name,
		Price:     price,
		Currency:  firstMatch(doc, []fieldStrategy{meta("og:price:currency")}),
		ProductID: productID,
	}
	if result.Currency == "" {
		result.Currency = "MXN"
	}

	// Strikethrough price is the pre-discount original.
	if origText := strings.TrimSpace(doc.Find(".ui-pdp-price s .andes-money-amount__fraction").First().Text()); origText != "" {
		if orig, err := ParsePrice(origText); err == nil && orig.GreaterThan(price) {
			result.OriginalPrice = &orig
			result.DiscountPercent = ComputeDiscount(price, orig)
		}
	}

	result.ImageURL = imageURL(firstMatch(doc, []fieldStrategy{
		cssAttr("img.ui-pdp-image", "data-zoom,src,data-src"),
		meta("og:image"),
	}))

	if soldOutPattern.Match(body) {
		result.Availability = OutOfStock
	} else {
		result.Availability = Available
	}

	m.logger.Info("product scraped via page markup", "item_id", productID, "name", name, "price", price)
	return result, nil
}

// pagePriceText finds the current (non-strikethrough) price fraction,
// falling back to the og:price:amount meta tag.
func (m *MercadoLibre) pagePriceText(doc *goquery.Document) string {
	var text string
	doc.Find(".ui-pdp-price .andes-money-amount__fraction").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if s.ParentsFiltered("s").Length() == 0 {
			text = strings.TrimSpace(s.Text())
			return false
		}
		return true
	})
	if text == "" {
		text = firstMatch(doc, []fieldStrategy{meta("og:price:amount")})
	}
	return text
}
