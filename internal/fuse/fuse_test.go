package fuse

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/TobiSchelling/newsfuse/internal/news"
)

type mockProvider struct {
	response string
	err      error
	system   string
	prompt   string
}

func (m *mockProvider) Generate(_ context.Context, system, user string, _ int) (string, error) {
	m.system = system
	m.prompt = user
	return m.response, m.err
}

func (m *mockProvider) IsConfigured() bool { return true }

var testVocab = []string{"Politics", "Economy", "Russia", "USA"}

func testPair() news.MatchedPair {
	return news.MatchedPair{
		Primary: news.Article{
			Title:      "Summit ends in agreement",
			URL:        "https://cnn.example/summit",
			Paragraphs: []string{"Lead paragraph.", "Second paragraph.", "Third."},
		},
		Secondary: news.Article{
			Title:      "World leaders reach summit deal",
			URL:        "https://rt.example/summit",
			Paragraphs: []string{"Other lead.", "Other second."},
		},
		Score: 0.2,
	}
}

func TestFuseHappyPath(t *testing.T) {
	mock := &mockProvider{response: `{"title": "Summit Deal Reached", "summary": "Leaders agreed.", "tags": ["Politics"], "content": ["Para one.", "Para two."]}`}
	f := New(mock, testVocab, "CNN", "RT")

	report, err := f.Fuse(context.Background(), testPair())
	if err != nil {
		t.Fatalf("fuse: %v", err)
	}
	if report.Title != "Summit Deal Reached" {
		t.Errorf("unexpected title %q", report.Title)
	}
	if len(report.Content) != 2 {
		t.Errorf("expected 2 content paragraphs, got %d", len(report.Content))
	}
	if report.URLPrimary != "https://cnn.example/summit" || report.URLSecondary != "https://rt.example/summit" {
		t.Errorf("source URLs not carried through: %q / %q", report.URLPrimary, report.URLSecondary)
	}
}

func TestFusePromptContents(t *testing.T) {
	mock := &mockProvider{response: `{"title": "t", "summary": "s", "tags": [], "content": "c"}`}
	f := New(mock, testVocab, "CNN", "RT")

	if _, err := f.Fuse(context.Background(), testPair()); err != nil {
		t.Fatalf("fuse: %v", err)
	}

	if mock.system != "You are an unbiased journalist." {
		t.Errorf("unexpected system prompt %q", mock.system)
	}
	for _, want := range []string{
		"CNN article:",
		"RT article:",
		"Lead paragraph.\nSecond paragraph.\nThird.",
		"Other lead.\nOther second.",
		"Politics, Economy, Russia, USA",
	} {
		if !strings.Contains(mock.prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}

func TestFuseTruncatesArticles(t *testing.T) {
	mock := &mockProvider{response: `{"title": "t", "summary": "s", "tags": [], "content": "c"}`}
	f := New(mock, testVocab, "CNN", "RT")
	f.SetMaxArticleChars(10)

	pair := testPair()
	pair.Primary.Paragraphs = []string{strings.Repeat("x", 100)}
	if _, err := f.Fuse(context.Background(), pair); err != nil {
		t.Fatalf("fuse: %v", err)
	}
	if strings.Contains(mock.prompt, strings.Repeat("x", 11)) {
		t.Error("expected article block truncated to 10 chars")
	}
}

func TestFuseTruncationKeepsRuneBoundary(t *testing.T) {
	mock := &mockProvider{response: `{"title": "t", "summary": "s", "tags": [], "content": "c"}`}
	f := New(mock, testVocab, "CNN", "RT")
	f.SetMaxArticleChars(11)

	// Each ü is 2 bytes, so a byte-11 cut would land mid-rune.
	pair := testPair()
	pair.Primary.Paragraphs = []string{strings.Repeat("ü", 20)}
	if _, err := f.Fuse(context.Background(), pair); err != nil {
		t.Fatalf("fuse: %v", err)
	}
	if !utf8.ValidString(mock.prompt) {
		t.Error("expected truncation to stay on rune boundaries")
	}
	if strings.Contains(mock.prompt, strings.Repeat("ü", 6)) {
		t.Error("expected article block capped below 11 bytes")
	}
}

func TestFuseContentStringNormalized(t *testing.T) {
	mock := &mockProvider{response: `{"title": "t", "summary": "s", "tags": [], "content": "single para"}`}
	f := New(mock, testVocab, "CNN", "RT")

	report, err := f.Fuse(context.Background(), testPair())
	if err != nil {
		t.Fatalf("fuse: %v", err)
	}
	if len(report.Content) != 1 || report.Content[0] != "single para" {
		t.Errorf("expected [\"single para\"], got %v", report.Content)
	}
}

func TestFuseGenerationError(t *testing.T) {
	mock := &mockProvider{err: errors.New("rate limited")}
	f := New(mock, testVocab, "CNN", "RT")

	_, err := f.Fuse(context.Background(), testPair())
	var genErr *GenerationError
	if !errors.As(err, &genErr) {
		t.Fatalf("expected *GenerationError, got %T: %v", err, err)
	}
}

func TestFuseSchemaErrors(t *testing.T) {
	cases := []struct {
		name     string
		response string
	}{
		{"not json", "I could not produce a report, sorry."},
		{"missing title", `{"summary": "s", "tags": [], "content": "c"}`},
		{"missing summary", `{"title": "t", "tags": [], "content": "c"}`},
		{"tags not array", `{"title": "t", "summary": "s", "tags": "Politics", "content": "c"}`},
		{"missing tags", `{"title": "t", "summary": "s", "content": "c"}`},
		{"content wrong type", `{"title": "t", "summary": "s", "tags": [], "content": 42}`},
		{"content null", `{"title": "t", "summary": "s", "tags": [], "content": null}`},
		{"missing content", `{"title": "t", "summary": "s", "tags": []}`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := New(&mockProvider{response: tc.response}, testVocab, "CNN", "RT")
			_, err := f.Fuse(context.Background(), testPair())
			var schemaErr *SchemaError
			if !errors.As(err, &schemaErr) {
				t.Fatalf("expected *SchemaError, got %T: %v", err, err)
			}
		})
	}
}

func TestFuseCommentaryAroundJSON(t *testing.T) {
	mock := &mockProvider{response: "Here you go:\n```json\n{\"title\": \"t\", \"summary\": \"s\", \"tags\": [\"Politics\"], \"content\": [\"p\"]}\n```"}
	f := New(mock, testVocab, "CNN", "RT")

	report, err := f.Fuse(context.Background(), testPair())
	if err != nil {
		t.Fatalf("fuse: %v", err)
	}
	if report.Title != "t" {
		t.Errorf("unexpected title %q", report.Title)
	}
}

func TestTagPolicyAllowPassesThrough(t *testing.T) {
	mock := &mockProvider{response: `{"title": "t", "summary": "s", "tags": ["Politics", "Horoscopes"], "content": "c"}`}
	f := New(mock, testVocab, "CNN", "RT")

	report, err := f.Fuse(context.Background(), testPair())
	if err != nil {
		t.Fatalf("fuse: %v", err)
	}
	if len(report.Tags) != 2 {
		t.Errorf("allow policy must keep out-of-vocabulary tags, got %v", report.Tags)
	}
}

func TestTagPolicyFilter(t *testing.T) {
	mock := &mockProvider{response: `{"title": "t", "summary": "s", "tags": ["Politics", "Horoscopes", "Politics", "USA"], "content": "c"}`}
	f := New(mock, testVocab, "CNN", "RT")
	f.SetTagPolicy(TagPolicyFilter)

	report, err := f.Fuse(context.Background(), testPair())
	if err != nil {
		t.Fatalf("fuse: %v", err)
	}
	if len(report.Tags) != 2 || report.Tags[0] != "Politics" || report.Tags[1] != "USA" {
		t.Errorf("expected [Politics USA], got %v", report.Tags)
	}
}

func TestTagPolicyReject(t *testing.T) {
	mock := &mockProvider{response: `{"title": "t", "summary": "s", "tags": ["Horoscopes"], "content": "c"}`}
	f := New(mock, testVocab, "CNN", "RT")
	f.SetTagPolicy(TagPolicyReject)

	_, err := f.Fuse(context.Background(), testPair())
	var schemaErr *SchemaError
	if !errors.As(err, &schemaErr) {
		t.Fatalf("expected *SchemaError, got %T: %v", err, err)
	}
}
