package provider

import "time"

// ContentItem is a post or article as returned by a source API, before it
// is turned into a domain.TextItem by a collector.
type ContentItem struct {
	Source       string
	SourceItemID string
	Title        string
	Body         string
	URL          string
	Author       string
	PublishedAt  time.Time
	Score        int
	Metadata     map[string]any
}
