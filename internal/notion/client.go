// Package notion mirrors tracked products into a Notion database.
// Synchronization is best-effort: the local price history is the source of
// truth and a failed sync never affects it.
package notion

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"

	"github.com/pricetrace/pricetrace/internal/config"
)

const (
	notionAPI     = "https://api.notion.com/v1"
	notionVersion = "2022-06-28"

	// Notion title rendering gets unwieldy beyond this.
	maxTitleLen = 50
)

// SyncInput is everything needed to upsert one product row in Notion.
type SyncInput struct {
	Name          string
	Platform      string
	URL           string
	CurrentPrice  decimal.Decimal
	Currency      string
	LowestPrice   decimal.Decimal
	LowestPriceAt time.Time
	LastUpdate    time.Time

	// PageID is the previously stored page reference; when set, lookup
	// by id takes precedence over the name-based search.
	PageID string
}

// Client talks to the Notion REST API.
type Client struct {
	http       *resty.Client
	databaseID string
	logger     *slog.Logger
}

// NewClient creates a Notion API client from configuration.
func NewClient(cfg config.NotionConfig, logger *slog.Logger) *Client {
	http := resty.New().
		SetBaseURL(notionAPI).
		SetTimeout(30 * time.Second).
		SetHeader("Authorization", "Bearer "+cfg.Token).
		SetHeader("Notion-Version", notionVersion).
		SetHeader("Content-Type", "application/json")

	return &Client{
		http:       http,
		databaseID: cfg.DatabaseID,
		logger:     logger.With("component", "notion_client"),
	}
}

// SetBaseURL overrides the API endpoint (used by tests).
func (c *Client) SetBaseURL(u string) { c.http.SetBaseURL(u) }

// ValidateConnection verifies the token can reach the configured database.
func (c *Client) ValidateConnection(ctx context.Context) error {
	resp, err := c.http.R().SetContext(ctx).Get("/databases/" + c.databaseID)
	if err != nil {
		return fmt.Errorf("notion connection: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return fmt.Errorf("notion database %s unreachable: status %d", c.databaseID, resp.StatusCode())
	}
	return nil
}

// SyncProduct upserts a product page and returns its page id. Lookup
// prefers the stored page id and falls back to a name search; a miss on
// both creates a new page.
func (c *Client) SyncProduct(ctx context.Context, in SyncInput) (string, error) {
	pageID := ""
	if in.PageID != "" && c.pageExists(ctx, in.PageID) {
		pageID = in.PageID
	}
	if pageID == "" {
		pageID = c.findPageByName(ctx, in.Name)
	}

	props := buildProperties(in)

	if pageID != "" {
		resp, err := c.http.R().
			SetContext(ctx).
			SetBody(map[string]any{"properties": props}).
			Patch("/pages/" + pageID)
		if err != nil {
			return "", fmt.Errorf("update notion page: %w", err)
		}
		if resp.StatusCode() != http.StatusOK {
			return "", fmt.Errorf("update notion page: status %d: %s", resp.StatusCode(), resp.String())
		}
		c.logger.Info("notion page updated", "name", in.Name, "page_id", pageID)
		return pageID, nil
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(map[string]any{
			"parent":     map[string]any{"database_id": c.databaseID},
			"properties": props,
		}).
		Post("/pages")
	if err != nil {
		return "", fmt.Errorf("create notion page: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return "", fmt.Errorf("create notion page: status %d: %s", resp.StatusCode(), resp.String())
	}

	var created struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(resp.Body(), &created); err != nil {
		return "", fmt.Errorf("decode notion response: %w", err)
	}
	c.logger.Info("notion page created", "name", in.Name, "page_id", created.ID)
	return created.ID, nil
}

// ArchivePage archives a page (Notion has no hard delete).
func (c *Client) ArchivePage(ctx context.Context, pageID string) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(map[string]any{"archived": true}).
		Patch("/pages/" + pageID)
	if err != nil {
		return fmt.Errorf("archive notion page: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return fmt.Errorf("archive notion page: status %d", resp.StatusCode())
	}
	c.logger.Info("notion page archived", "page_id", pageID)
	return nil
}

func (c *Client) pageExists(ctx context.Context, pageID string) bool {
	resp, err := c.http.R().SetContext(ctx).Get("/pages/" + pageID)
	return err == nil && resp.StatusCode() == http.StatusOK
}

// findPageByName queries the database and matches the title property
// client-side. Returns "" when nothing matches; the caller then creates a
// fresh page.
func (c *Client) findPageByName(ctx context.Context, name string) string {
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(map[string]any{}).
		Post("/databases/" + c.databaseID + "/query")
	if err != nil || resp.StatusCode() != http.StatusOK {
		return ""
	}

	var query struct {
		Results []struct {
			ID         string `json:"id"`
			Properties map[string]struct {
				Type  string `json:"type"`
				Title []struct {
					PlainText string `json:"plain_text"`
				} `json:"title"`
			} `json:"properties"`
		} `json:"results"`
	}
	if err := json.Unmarshal(resp.Body(), &query); err != nil {
		return ""
	}

	want := truncate(name, maxTitleLen)
	for _, page := range query.Results {
		for _, prop := range page.Properties {
			if prop.Type != "title" || len(prop.Title) == 0 {
				continue
			}
			if prop.Title[0].PlainText == name || prop.Title[0].PlainText == want {
				return page.ID
			}
		}
	}
	return ""
}

// buildProperties maps a SyncInput onto the Notion database columns.
func buildProperties(in SyncInput) map[string]any {
	return map[string]any{
		"Nombre": map[string]any{
			"title": []any{
				map[string]any{"text": map[string]any{"content": truncate(in.Name, maxTitleLen)}},
			},
		},
		"Plataforma": map[string]any{
			"select": map[string]any{"name": platformLabel(in.Platform)},
		},
		"URL": map[string]any{"url": in.URL},
		"Precio Actual": map[string]any{
			"number": in.CurrentPrice.InexactFloat64(),
		},
		"Precio Descuento": map[string]any{
			"number": in.LowestPrice.InexactFloat64(),
		},
		"Fecha Descuento": map[string]any{
			"date": map[string]any{"start": in.LowestPriceAt.Format(time.RFC3339)},
		},
		"Fecha Actualización": map[string]any{
			"date": map[string]any{"start": in.LastUpdate.Format(time.RFC3339)},
		},
	}
}

func platformLabel(platform string) string {
	switch platform {
	case "amazon":
		return "Amazon"
	case "mercadolibre":
		return "Mercado Libre"
	default:
		return platform
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
