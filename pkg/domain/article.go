package domain

import "time"

// TimestampLayout is the canonical second-precision layout used for publication dates
const TimestampLayout = "2006-01-02 15:04:05"

// NoTitle is stored for items without a title
const NoTitle = "No Title"

// Article represents a collected news article
type Article struct {
	ID          int64
	Title       string
	Link        string
	PubDate     time.Time
	Description string
	CollectedAt time.Time
}

// ParsedItem represents a single item extracted from a feed document, before normalization.
// DCDate holds the raw Dublin Core date text, empty if the item has none.
type ParsedItem struct {
	Title       string
	Link        string
	Description string
	DCDate      string
}

// ParsedFeed represents a parsed feed document
type ParsedFeed struct {
	Title string
	Link  string
	Items []ParsedItem
}
