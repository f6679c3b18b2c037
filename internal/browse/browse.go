// Package browse provides the browsing session used by the extractors.
// A Session loads pages and hands back a parsed document; the production
// implementation is plain HTTP, where reading the full response body
// stands in for waiting on a rendered page to settle.
package browse

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// Session opens pages and returns their parsed documents. Navigations
// through one session are serialized by the caller.
type Session interface {
	Load(ctx context.Context, pageURL string) (*Page, error)
	Close() error
}

// Link is one anchor found on a page: its resolved absolute URL and its
// rendered text.
type Link struct {
	URL  string
	Text string
}

// Page is one loaded document.
type Page struct {
	URL  *url.URL
	HTML string
	doc  *goquery.Document
}

// Texts returns the trimmed text of every element matching the selector,
// in document order. Empty blocks are dropped.
func (p *Page) Texts(selector string) []string {
	var out []string
	p.doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
		if text := strings.TrimSpace(s.Text()); text != "" {
			out = append(out, text)
		}
	})
	return out
}

// Entries returns one entry per element matching the selector, in
// document order. Elements without a usable href become entries with an
// empty URL rather than being dropped, so listing slices are taken over
// the raw document order before any link filtering. When titleSelector
// is non-empty the entry text is read from the first matching descendant
// instead of the element itself.
func (p *Page) Entries(selector, titleSelector string) []Link {
	var out []Link
	p.doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
		text := s
		if titleSelector != "" {
			text = s.Find(titleSelector).First()
		}
		entry := Link{Text: strings.TrimSpace(text.Text())}
		if href, ok := s.Attr("href"); ok && strings.TrimSpace(href) != "" {
			if ref, err := url.Parse(href); err == nil {
				entry.URL = p.URL.ResolveReference(ref).String()
			}
		}
		out = append(out, entry)
	})
	return out
}

// HTTPSession is a Session backed by a plain HTTP client.
type HTTPSession struct {
	client    *http.Client
	userAgent string
}

// NewHTTPSession creates a session with a bounded per-navigation timeout.
func NewHTTPSession(timeout time.Duration) *HTTPSession {
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &HTTPSession{
		client: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return http.ErrUseLastResponse
				}
				return nil
			},
		},
		userAgent: "newsfuse/1.0 (news fusion pipeline)",
	}
}

// Load fetches and parses one page. The body is read in full before
// parsing, so the returned document is never partial.
func (s *HTTPSession) Load(ctx context.Context, pageURL string) (*Page, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request for %s: %w", pageURL, err)
	}
	req.Header.Set("User-Agent", s.userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", pageURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("loading %s: HTTP %d", pageURL, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", pageURL, err)
	}

	return ParsePage(resp.Request.URL, string(body))
}

// Close releases the session. The HTTP implementation holds no state
// beyond idle connections.
func (s *HTTPSession) Close() error {
	s.client.CloseIdleConnections()
	return nil
}

// ParsePage builds a Page from raw HTML and the URL it was loaded from.
func ParsePage(pageURL *url.URL, html string) (*Page, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", pageURL, err)
	}
	return &Page{URL: pageURL, HTML: html, doc: doc}, nil
}
