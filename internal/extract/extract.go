// Package extract turns an outlet's front page into a bounded batch of
// articles. Each outlet differs only in its URLs and selectors, so one
// selector-driven extractor covers both and additional outlets plug in
// through configuration without touching the rest of the pipeline.
package extract

import (
	"context"
	"fmt"
	"log"
	"strings"

	readability "github.com/go-shiori/go-readability"

	"github.com/TobiSchelling/newsfuse/internal/browse"
	"github.com/TobiSchelling/newsfuse/internal/news"
)

// DefaultLimit is the number of front-page entries considered per outlet.
const DefaultLimit = 5

// Outlet describes where and how to extract one outlet's articles.
type Outlet struct {
	Name            string
	FrontPageURL    string
	ListingSelector string
	// TitleSelector optionally narrows the headline text to a descendant
	// of each listing entry. Empty means the entry's own text.
	TitleSelector string
	BodySelector  string
	// FeedURL is the RSS/Atom listing used in feed mode.
	FeedURL string
	// Mode selects the listing source: "page" (default) or "feed".
	Mode  string
	Limit int
}

// Extractor produces a bounded batch of articles for one outlet.
type Extractor interface {
	Name() string
	Extract(ctx context.Context, session browse.Session) ([]news.Article, error)
}

// New builds the extractor for an outlet according to its mode.
func New(o Outlet) Extractor {
	if o.Limit <= 0 {
		o.Limit = DefaultLimit
	}
	if o.Mode == "feed" {
		return &feedExtractor{outlet: o}
	}
	return &pageExtractor{outlet: o}
}

// pageExtractor reads the listing from the outlet's front page.
type pageExtractor struct {
	outlet Outlet
}

func (e *pageExtractor) Name() string { return e.outlet.Name }

// Extract loads the front page, takes the first Limit listing entries in
// document order, drops entries without a link, and fetches each
// remaining article's body. Per-article failures are logged and skipped,
// so the result may hold fewer than Limit articles. A front-page load
// failure is returned to the caller: without a listing there is no batch.
func (e *pageExtractor) Extract(ctx context.Context, session browse.Session) ([]news.Article, error) {
	page, err := session.Load(ctx, e.outlet.FrontPageURL)
	if err != nil {
		return nil, fmt.Errorf("%s front page: %w", e.outlet.Name, err)
	}

	entries := page.Entries(e.outlet.ListingSelector, e.outlet.TitleSelector)
	if len(entries) > e.outlet.Limit {
		entries = entries[:e.outlet.Limit]
	}

	var articles []news.Article
	for _, entry := range entries {
		if entry.URL == "" {
			log.Printf("%s: listing entry %q has no link, skipping", e.outlet.Name, entry.Text)
			continue
		}

		paragraphs, err := fetchBody(ctx, session, entry.URL, e.outlet.BodySelector)
		if err != nil {
			log.Printf("%s: failed to extract %s: %v", e.outlet.Name, entry.URL, err)
			continue
		}

		articles = append(articles, news.Article{
			Title:      entry.Text,
			URL:        entry.URL,
			Paragraphs: paragraphs,
		})
	}

	log.Printf("%s: extracted %d of %d listing entries", e.outlet.Name, len(articles), len(entries))
	return articles, nil
}

// fetchBody navigates to an article and reads its body paragraphs in
// document order. When the outlet's body selector matches nothing it
// falls back to readability extraction before giving up; an article with
// no extractable body is still returned with empty paragraphs, since its
// title alone keeps it matchable.
func fetchBody(ctx context.Context, session browse.Session, articleURL, bodySelector string) ([]string, error) {
	page, err := session.Load(ctx, articleURL)
	if err != nil {
		return nil, err
	}

	paragraphs := page.Texts(bodySelector)
	if len(paragraphs) == 0 {
		paragraphs = readableParagraphs(page)
	}
	return paragraphs, nil
}

func readableParagraphs(page *browse.Page) []string {
	article, err := readability.FromReader(strings.NewReader(page.HTML), page.URL)
	if err != nil {
		return nil
	}

	var paragraphs []string
	for _, block := range strings.Split(article.TextContent, "\n") {
		if block = strings.TrimSpace(block); block != "" {
			paragraphs = append(paragraphs, block)
		}
	}
	return paragraphs
}
