// Package collector runs a single collection pass: fetch the feed, parse it and store articles not seen before.
package collector

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/go-pkgz/lgr"

	"github.com/umputun/jsn/pkg/domain"
	"github.com/umputun/jsn/pkg/repository"
)

//go:generate moq -out mocks/store.go -pkg mocks -skip-ensure -fmt goimports . ArticleStore
//go:generate moq -out mocks/source.go -pkg mocks -skip-ensure -fmt goimports . FeedSource
//go:generate moq -out mocks/parser.go -pkg mocks -skip-ensure -fmt goimports . FeedParser

// ArticleStore persists collected articles
type ArticleStore interface {
	ArticleExists(ctx context.Context, link string) (bool, error)
	CreateArticle(ctx context.Context, article *domain.Article) error
}

// FeedSource downloads raw feed documents
type FeedSource interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// FeedParser turns a raw feed document into items
type FeedParser interface {
	Parse(body []byte) (*domain.ParsedFeed, error)
}

// Stats reports the outcome of a collection pass
type Stats struct {
	Scanned int // items taken from the feed
	Added   int // articles inserted, or that would be inserted in dry run
	Skipped int // items with already stored links
}

// Collector runs collection passes over a single feed
type Collector struct {
	store  ArticleStore
	source FeedSource
	parser FeedParser
	url    string
	dryRun bool
	log    lgr.L
	now    func() time.Time
}

// Params defines collector dependencies and settings
type Params struct {
	Store  ArticleStore
	Source FeedSource
	Parser FeedParser
	URL    string
	DryRun bool             // fetch and dedupe without inserting
	Logger lgr.L            // defaults to lgr.Default()
	Now    func() time.Time // defaults to time.Now
}

// New creates a collector
func New(p Params) *Collector {
	c := &Collector{store: p.Store, source: p.Source, parser: p.Parser, url: p.URL, dryRun: p.DryRun, log: p.Logger, now: p.Now}
	if c.log == nil {
		c.log = lgr.Default()
	}
	if c.now == nil {
		c.now = time.Now
	}
	return c
}

// Collect runs one pass. Failures end the pass and are logged, never returned;
// rows inserted before a failure stay in place.
func (c *Collector) Collect(ctx context.Context) Stats {
	stats := Stats{}
	c.log.Logf("[INFO] start collecting news from %s", c.url)

	body, err := c.source.Fetch(ctx, c.url)
	if err != nil {
		c.log.Logf("[ERROR] failed to fetch feed %s: %v", c.url, err)
		return stats
	}

	feed, err := c.parser.Parse(body)
	if err != nil {
		c.log.Logf("[ERROR] failed to parse feed %s: %v", c.url, err)
		return stats
	}

	c.log.Logf("[INFO] processing %d items", len(feed.Items))
	for _, item := range feed.Items {
		if ctx.Err() != nil {
			c.log.Logf("[WARN] collection interrupted: %v", ctx.Err())
			break
		}
		stats.Scanned++

		added, err := c.processItem(ctx, item)
		if err != nil {
			c.log.Logf("[ERROR] failed to process item %q: %v", item.Link, err)
			break
		}
		if added {
			stats.Added++
			continue
		}
		stats.Skipped++
	}

	c.log.Logf("[INFO] news collection completed: %d new articles added and %d scan finished", stats.Added, stats.Scanned)
	return stats
}

// processItem stores a single item unless its link is already known.
// Returns true if the article was added.
func (c *Collector) processItem(ctx context.Context, item domain.ParsedItem) (bool, error) {
	title := item.Title
	if title == "" {
		title = domain.NoTitle
	}

	exists, err := c.store.ArticleExists(ctx, item.Link)
	if err != nil {
		return false, fmt.Errorf("check article exists: %w", err)
	}
	if exists {
		c.log.Logf("[DEBUG] skipping known article: %s", item.Link)
		return false, nil
	}

	article := &domain.Article{
		Title:       title,
		Link:        item.Link,
		PubDate:     c.pubDate(item.DCDate),
		Description: item.Description,
	}
	date := article.PubDate.Format(domain.TimestampLayout)

	if c.dryRun {
		c.log.Logf("[INFO] dry run, new article not stored: %s (date: %s)", title, date)
		return true, nil
	}

	if err := c.store.CreateArticle(ctx, article); err != nil {
		if errors.Is(err, repository.ErrDuplicateLink) {
			// inserted by someone else between the check and the insert
			c.log.Logf("[WARN] article already stored by another writer: %s", item.Link)
			return false, nil
		}
		return false, fmt.Errorf("create article: %w", err)
	}

	c.log.Logf("[INFO] new article collected: %s (date: %s)", title, date)
	return true, nil
}

// pubDate parses an RFC 2822 date, falling back to the current time
func (c *Collector) pubDate(dcDate string) time.Time {
	if dcDate = strings.TrimSpace(dcDate); dcDate != "" {
		if t, err := mail.ParseDate(dcDate); err == nil {
			return t
		}
		c.log.Logf("[DEBUG] unparsable date %q, using current time", dcDate)
	}
	return c.now()
}
