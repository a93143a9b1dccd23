// Package job orchestrates scraping runs over the tracked product set.
package job

import (
	"fmt"

	"github.com/pricetrace/pricetrace/internal/notion"
)

// Report aggregates one batch pass. It is returned to the caller, never
// persisted; a report containing failures is still a successful run.
type Report struct {
	Total     int      `json:"total"`
	Succeeded int      `json:"succeeded"`
	Failed    int      `json:"failed"`
	Errors    []string `json:"errors,omitempty"`

	NotionSync *notion.SyncReport `json:"notion_sync,omitempty"`
}

// Summary renders a one-line human-readable digest.
func (r *Report) Summary() string {
	s := fmt.Sprintf("%d/%d scraped successfully, %d failed", r.Succeeded, r.Total, r.Failed)
	if r.NotionSync != nil {
		s += fmt.Sprintf("; notion: %d/%d synced", r.NotionSync.Synced, r.NotionSync.Total)
	}
	return s
}
