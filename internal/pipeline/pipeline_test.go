package pipeline

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"testing"

	"github.com/TobiSchelling/newsfuse/internal/browse"
	"github.com/TobiSchelling/newsfuse/internal/config"
	"github.com/TobiSchelling/newsfuse/internal/news"
	"github.com/TobiSchelling/newsfuse/internal/store"
)

// fakeSession serves canned HTML per URL.
type fakeSession struct {
	pages  map[string]string
	errs   map[string]bool
	closed bool
}

func (s *fakeSession) Load(_ context.Context, pageURL string) (*browse.Page, error) {
	if s.errs[pageURL] {
		return nil, fmt.Errorf("navigation failed: %s", pageURL)
	}
	html, ok := s.pages[pageURL]
	if !ok {
		return nil, fmt.Errorf("no such page: %s", pageURL)
	}
	u, _ := url.Parse(pageURL)
	return browse.ParsePage(u, html)
}

func (s *fakeSession) Close() error {
	s.closed = true
	return nil
}

type mockProvider struct {
	response string
	err      error
	calls    int
}

func (m *mockProvider) Generate(_ context.Context, _, _ string, _ int) (string, error) {
	m.calls++
	return m.response, m.err
}

func (m *mockProvider) IsConfigured() bool { return true }

type fakeSink struct {
	stored []news.FusedReport
	err    error
}

func (s *fakeSink) Store(_ context.Context, report *news.FusedReport) error {
	if s.err != nil {
		return s.err
	}
	s.stored = append(s.stored, *report)
	return nil
}

func (s *fakeSink) Recent(_ context.Context, _ int) ([]store.StoredReport, error) { return nil, nil }

func (s *fakeSink) Close() error { return nil }

func listing(base string, titles ...string) string {
	html := "<html><body>"
	for i, title := range titles {
		html += fmt.Sprintf(`<a class="story" href="%s/news/%d"><span class="headline">%s</span></a>`, base, i+1, title)
	}
	return html + "</body></html>"
}

func article(paragraphs ...string) string {
	html := `<html><body><div class="body">`
	for _, p := range paragraphs {
		html += "<p>" + p + "</p>"
	}
	return html + "</div></body></html>"
}

func testConfig() *config.Config {
	return &config.Config{
		Outlets: config.Outlets{
			Limit: 5,
			Primary: config.Outlet{
				Name:            "CNN",
				FrontPage:       "https://cnn.example/front",
				ListingSelector: "a.story",
				TitleSelector:   ".headline",
				BodySelector:    ".body p",
				Mode:            "page",
			},
			Secondary: config.Outlet{
				Name:            "RT",
				FrontPage:       "https://rt.example/front",
				ListingSelector: "a.story",
				TitleSelector:   ".headline",
				BodySelector:    ".body p",
				Mode:            "page",
			},
		},
		Generation: config.Generation{MaxTokens: 512, MaxArticleChars: 12000},
		Fusion:     config.Fusion{TagPolicy: "allow"},
	}
}

const fusedJSON = `{"title": "Fused Report", "summary": "Both outlets agree.", "tags": ["Politics"], "content": ["One.", "Two."]}`

func TestRunEndToEnd(t *testing.T) {
	session := &fakeSession{pages: map[string]string{
		"https://cnn.example/front":  listing("https://cnn.example", "Summit ends in agreement"),
		"https://cnn.example/news/1": article("First.", "Second.", "Third."),
		"https://rt.example/front":   listing("https://rt.example", "World leaders reach summit deal"),
		"https://rt.example/news/1":  article("Alpha.", "Beta."),
	}}
	provider := &mockProvider{response: fusedJSON}
	sink := &fakeSink{}

	p := New(testConfig(), session, provider, sink)
	result, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if provider.calls != 1 {
		t.Errorf("expected exactly 1 generation call, got %d", provider.calls)
	}
	if result.Stored != 1 || result.PairFailures != 0 {
		t.Errorf("expected 1 stored / 0 failed, got %d / %d", result.Stored, result.PairFailures)
	}
	if len(sink.stored) != 1 {
		t.Fatalf("expected 1 stored report, got %d", len(sink.stored))
	}
	r := sink.stored[0]
	if r.URLPrimary != "https://cnn.example/news/1" || r.URLSecondary != "https://rt.example/news/1" {
		t.Errorf("stored report must reference both source URLs: %+v", r)
	}
	if !session.closed {
		t.Error("expected session released after extraction")
	}
}

func TestRunPartialExtractionFailure(t *testing.T) {
	// 2 of 5 secondary articles fail to load; the run still completes
	// and fuses the survivors.
	session := &fakeSession{
		pages: map[string]string{
			"https://cnn.example/front":  listing("https://cnn.example", "Summit deal reached"),
			"https://cnn.example/news/1": article("Text."),
			"https://rt.example/front": listing("https://rt.example",
				"Summit deal announced", "Summit deal doubts", "Markets react to summit deal", "Weather tomorrow", "Sports roundup"),
			"https://rt.example/news/1": article("Text."),
			"https://rt.example/news/4": article("Text."),
			"https://rt.example/news/5": article("Text."),
		},
		errs: map[string]bool{
			"https://rt.example/news/2": true,
			"https://rt.example/news/3": true,
		},
	}
	provider := &mockProvider{response: fusedJSON}
	sink := &fakeSink{}

	result, err := New(testConfig(), session, provider, sink).Run(context.Background())
	if err != nil {
		t.Fatalf("run must survive per-article failures: %v", err)
	}
	if result.Stored != 1 {
		t.Errorf("expected 1 stored report, got %d", result.Stored)
	}
}

func TestRunFrontPageFailureIsFatal(t *testing.T) {
	session := &fakeSession{errs: map[string]bool{"https://cnn.example/front": true}}
	_, err := New(testConfig(), session, &mockProvider{}, &fakeSink{}).Run(context.Background())
	if err == nil {
		t.Fatal("expected fatal error when a front page cannot load")
	}
}

func TestRunNoMatches(t *testing.T) {
	session := &fakeSession{pages: map[string]string{
		"https://cnn.example/front":  listing("https://cnn.example", "Summit ends in agreement"),
		"https://cnn.example/news/1": article("Text."),
		"https://rt.example/front":   listing("https://rt.example", "Weather forecast for Tuesday"),
		"https://rt.example/news/1":  article("Text."),
	}}
	provider := &mockProvider{response: fusedJSON}
	sink := &fakeSink{}

	result, err := New(testConfig(), session, provider, sink).Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if provider.calls != 0 {
		t.Errorf("expected no generation calls without matches, got %d", provider.calls)
	}
	if result.Stored != 0 || result.PairFailures != 0 {
		t.Errorf("expected nothing stored and nothing failed, got %+v", result)
	}
}

func TestRunIsolatesPairFailures(t *testing.T) {
	// Two pairs; the generator returns garbage, so both fail with schema
	// errors — the run still finishes without a fatal error.
	session := &fakeSession{pages: map[string]string{
		"https://cnn.example/front":  listing("https://cnn.example", "Summit deal reached", "Elections underway"),
		"https://cnn.example/news/1": article("Text."),
		"https://cnn.example/news/2": article("Text."),
		"https://rt.example/front":   listing("https://rt.example", "Summit deal announced", "Elections begin"),
		"https://rt.example/news/1":  article("Text."),
		"https://rt.example/news/2":  article("Text."),
	}}
	provider := &mockProvider{response: "I refuse to answer in JSON."}
	sink := &fakeSink{}

	result, err := New(testConfig(), session, provider, sink).Run(context.Background())
	if err != nil {
		t.Fatalf("pair-scoped failures must not be fatal: %v", err)
	}
	if result.PairFailures != 2 {
		t.Errorf("expected 2 pair failures, got %d", result.PairFailures)
	}
	if len(sink.stored) != 0 {
		t.Errorf("expected nothing stored, got %d", len(sink.stored))
	}
}

func TestRunStorageFailureDoesNotAbort(t *testing.T) {
	session := &fakeSession{pages: map[string]string{
		"https://cnn.example/front":  listing("https://cnn.example", "Summit deal reached"),
		"https://cnn.example/news/1": article("Text."),
		"https://rt.example/front":   listing("https://rt.example", "Summit deal announced"),
		"https://rt.example/news/1":  article("Text."),
	}}
	sink := &fakeSink{err: errors.New("connection reset")}

	result, err := New(testConfig(), session, &mockProvider{response: fusedJSON}, sink).Run(context.Background())
	if err != nil {
		t.Fatalf("storage failures must not be fatal: %v", err)
	}
	if result.Fused != 1 || result.Stored != 0 || result.PairFailures != 1 {
		t.Errorf("unexpected result: %+v", result)
	}
}
