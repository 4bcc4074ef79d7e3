// Package feed collects learning articles for tracked skills from
// RSS/Atom feeds.
package feed

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
	"go.uber.org/zap"

	"github.com/kevinzhu/skillpulse/internal/store"
	"github.com/kevinzhu/skillpulse/pkg/skill"
)

// Feed is a named RSS/Atom feed URL.
type Feed struct {
	Name string `yaml:"name"`
	URL  string `yaml:"url"`
}

// Collector pulls recent entries from configured feeds and attributes
// them to tracked skills by keyword match.
type Collector struct {
	client  *http.Client
	parser  *gofeed.Parser
	feeds   []Feed
	catalog *skill.Catalog
	maxAge  time.Duration
	log     *zap.Logger
}

// NewCollector creates a feed collector. maxAge bounds how old an entry
// may be to be kept; zero defaults to 7 days.
func NewCollector(feeds []Feed, catalog *skill.Catalog, maxAge time.Duration, log *zap.Logger) *Collector {
	if maxAge <= 0 {
		maxAge = 7 * 24 * time.Hour
	}
	return &Collector{
		client:  &http.Client{Timeout: 30 * time.Second},
		parser:  gofeed.NewParser(),
		feeds:   feeds,
		catalog: catalog,
		maxAge:  maxAge,
		log:     log,
	}
}

// Collect fetches every configured feed. One feed failing never aborts
// the others.
func (c *Collector) Collect(ctx context.Context) ([]store.Article, error) {
	var all []store.Article

	for _, f := range c.feeds {
		articles, err := c.collectFeed(ctx, f)
		if err != nil {
			c.log.Warn("feed collection failed", zap.String("feed", f.Name), zap.Error(err))
			continue
		}
		all = append(all, articles...)
	}

	return all, nil
}

func (c *Collector) collectFeed(ctx context.Context, f Feed) ([]store.Article, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("create feed request %s: %w", f.Name, err)
	}
	req.Header.Set("User-Agent", "skillpulse/1.0")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch feed %s: %w", f.Name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("feed %s status %d", f.Name, resp.StatusCode)
	}

	parsed, err := c.parser.Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse feed %s: %w", f.Name, err)
	}

	cutoff := time.Now().Add(-c.maxAge)
	var articles []store.Article

	for _, entry := range parsed.Items {
		published := time.Now().UTC()
		if entry.PublishedParsed != nil {
			published = entry.PublishedParsed.UTC()
		} else if entry.UpdatedParsed != nil {
			published = entry.UpdatedParsed.UTC()
		}
		if published.Before(cutoff) {
			continue
		}

		text := entry.Title + " " + entry.Description
		skillID := c.matchSkill(text)
		if skillID == "" {
			continue
		}

		link := entry.Link
		if link == "" && len(entry.Links) > 0 {
			link = entry.Links[0]
		}

		articles = append(articles, store.Article{
			ID:          articleID(f.Name, entry.GUID, link),
			SkillID:     skillID,
			Title:       entry.Title,
			URL:         link,
			FeedName:    f.Name,
			Summary:     truncate(entry.Description, 500),
			PublishedAt: published,
			CollectedAt: time.Now().UTC(),
		})
	}

	return articles, nil
}

// matchSkill attributes an entry to the first tracked skill whose display
// name appears in the text.
func (c *Collector) matchSkill(text string) string {
	lower := strings.ToLower(text)
	for _, d := range c.catalog.All() {
		if strings.Contains(lower, strings.ToLower(d.DisplayName)) {
			return d.ID
		}
	}
	return ""
}

func articleID(feedName, guid, link string) string {
	key := guid
	if key == "" {
		key = link
	}
	sum := sha256.Sum256([]byte(feedName + ":" + key))
	return hex.EncodeToString(sum[:16])
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
