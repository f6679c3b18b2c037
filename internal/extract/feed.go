package extract

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/mmcdole/gofeed"

	"github.com/TobiSchelling/newsfuse/internal/browse"
	"github.com/TobiSchelling/newsfuse/internal/news"
)

// feedExtractor reads the listing from an RSS/Atom feed instead of the
// front page. Feed item order stands in for front-page prominence.
// Article bodies are still fetched through the browsing session with the
// outlet's body selector.
type feedExtractor struct {
	outlet Outlet
	parser *gofeed.Parser
}

func (e *feedExtractor) Name() string { return e.outlet.Name }

func (e *feedExtractor) Extract(ctx context.Context, session browse.Session) ([]news.Article, error) {
	if e.parser == nil {
		e.parser = gofeed.NewParser()
	}

	feed, err := e.parser.ParseURLWithContext(e.outlet.FeedURL, ctx)
	if err != nil {
		return nil, fmt.Errorf("%s feed: %w", e.outlet.Name, err)
	}

	items := feed.Items
	if len(items) > e.outlet.Limit {
		items = items[:e.outlet.Limit]
	}

	var articles []news.Article
	for _, item := range items {
		if item.Link == "" {
			log.Printf("%s: feed item %q has no link, skipping", e.outlet.Name, item.Title)
			continue
		}

		paragraphs, err := fetchBody(ctx, session, item.Link, e.outlet.BodySelector)
		if err != nil {
			log.Printf("%s: failed to extract %s: %v", e.outlet.Name, item.Link, err)
			continue
		}

		articles = append(articles, news.Article{
			Title:      strings.TrimSpace(item.Title),
			URL:        item.Link,
			Paragraphs: paragraphs,
		})
	}

	log.Printf("%s: extracted %d of %d feed items", e.outlet.Name, len(articles), len(items))
	return articles, nil
}
