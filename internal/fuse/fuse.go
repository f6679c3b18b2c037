// Package fuse builds the generation request for a matched pair and
// turns the model's reply into a validated FusedReport.
package fuse

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/TobiSchelling/newsfuse/internal/llm"
	"github.com/TobiSchelling/newsfuse/internal/news"
	"github.com/TobiSchelling/newsfuse/internal/vocab"
)

const systemPrompt = "You are an unbiased journalist."

const userPromptFormat = `Combine the following two articles into a single neutral report referencing both %[1]s and %[2]s.

Respond with ONLY this JSON object, no prose around it:
{"title": "...", "summary": "...", "tags": ["..."], "content": ["paragraph 1", "paragraph 2"]}

Every tag must be drawn from this list: %[3]s

%[1]s article:
%[4]s

%[2]s article:
%[5]s`

// DefaultMaxArticleChars caps each article's text block in the prompt.
// The reference behavior sends articles uncapped; the cap defends
// against provider token limits.
const DefaultMaxArticleChars = 12000

// TagPolicy controls what happens to tags outside the controlled
// vocabulary.
type TagPolicy string

const (
	// TagPolicyAllow persists tags exactly as returned (reference behavior).
	TagPolicyAllow TagPolicy = "allow"
	// TagPolicyFilter drops out-of-vocabulary tags and duplicates.
	TagPolicyFilter TagPolicy = "filter"
	// TagPolicyReject fails the pair when any tag is out of vocabulary.
	TagPolicyReject TagPolicy = "reject"
)

// GenerationError wraps a failed generation-service call. It is scoped to
// one pair and never aborts the run.
type GenerationError struct {
	Err error
}

func (e *GenerationError) Error() string { return fmt.Sprintf("generation failed: %v", e.Err) }
func (e *GenerationError) Unwrap() error { return e.Err }

// SchemaError reports a generation response that is not parseable
// structured data or is mis-typed after best-effort normalization.
type SchemaError struct {
	Reason string
	Err    error
}

func (e *SchemaError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid response: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("invalid response: %s", e.Reason)
}

func (e *SchemaError) Unwrap() error { return e.Err }

// Fuser fuses matched pairs into reports through an LLM provider.
type Fuser struct {
	provider        llm.Provider
	vocabulary      []string
	vocabSet        vocab.Set
	tagPolicy       TagPolicy
	maxArticleChars int
	maxTokens       int
	primaryLabel    string
	secondaryLabel  string
}

// New creates a Fuser. The vocabulary is injected rather than read from a
// global so tests can shrink it.
func New(provider llm.Provider, vocabulary []string, primaryLabel, secondaryLabel string) *Fuser {
	return &Fuser{
		provider:        provider,
		vocabulary:      vocabulary,
		vocabSet:        vocab.NewSet(vocabulary),
		tagPolicy:       TagPolicyAllow,
		maxArticleChars: DefaultMaxArticleChars,
		maxTokens:       1024,
		primaryLabel:    primaryLabel,
		secondaryLabel:  secondaryLabel,
	}
}

// SetTagPolicy overrides the default pass-through tag policy.
func (f *Fuser) SetTagPolicy(policy TagPolicy) {
	if policy != "" {
		f.tagPolicy = policy
	}
}

// SetMaxArticleChars overrides the per-article prompt cap. Zero or
// negative disables capping.
func (f *Fuser) SetMaxArticleChars(n int) { f.maxArticleChars = n }

// SetMaxTokens overrides the completion budget.
func (f *Fuser) SetMaxTokens(n int) {
	if n > 0 {
		f.maxTokens = n
	}
}

// Fuse sends one matched pair to the provider and validates the reply.
// Failures are *GenerationError (the call itself) or *SchemaError (the
// payload); both are pair-scoped.
func (f *Fuser) Fuse(ctx context.Context, pair news.MatchedPair) (*news.FusedReport, error) {
	prompt := f.buildPrompt(pair)

	reply, err := f.provider.Generate(ctx, systemPrompt, prompt, f.maxTokens)
	if err != nil {
		return nil, &GenerationError{Err: err}
	}

	report, err := f.parseReport(reply)
	if err != nil {
		return nil, err
	}

	report.URLPrimary = pair.Primary.URL
	report.URLSecondary = pair.Secondary.URL
	return report, nil
}

func (f *Fuser) buildPrompt(pair news.MatchedPair) string {
	return fmt.Sprintf(userPromptFormat,
		f.primaryLabel,
		f.secondaryLabel,
		strings.Join(f.vocabulary, ", "),
		f.articleText(pair.Primary),
		f.articleText(pair.Secondary),
	)
}

func (f *Fuser) articleText(a news.Article) string {
	text := strings.Join(a.Paragraphs, "\n")
	if f.maxArticleChars > 0 && len(text) > f.maxArticleChars {
		n := f.maxArticleChars
		// Back off to a rune boundary so the cut never splits a
		// multi-byte character.
		for n > 0 && !utf8.RuneStart(text[n]) {
			n--
		}
		text = text[:n]
	}
	return text
}

// rawReport is the untyped shape of the generation reply. Content is
// left raw because the model returns either a string or an array.
type rawReport struct {
	Title   string          `json:"title"`
	Summary string          `json:"summary"`
	Tags    []string        `json:"tags"`
	Content json.RawMessage `json:"content"`
}

func (f *Fuser) parseReport(reply string) (*news.FusedReport, error) {
	payload := llm.ExtractJSONObject(reply)
	if payload == "" {
		return nil, &SchemaError{Reason: "no JSON object in reply"}
	}

	var raw rawReport
	if err := json.Unmarshal([]byte(payload), &raw); err != nil {
		return nil, &SchemaError{Reason: "payload does not decode", Err: err}
	}

	if raw.Title == "" {
		return nil, &SchemaError{Reason: "missing title"}
	}
	if raw.Summary == "" {
		return nil, &SchemaError{Reason: "missing summary"}
	}
	if raw.Tags == nil {
		return nil, &SchemaError{Reason: "tags is not a string array"}
	}

	content, err := normalizeContent(raw.Content)
	if err != nil {
		return nil, err
	}

	tags, err := f.applyTagPolicy(raw.Tags)
	if err != nil {
		return nil, err
	}

	return &news.FusedReport{
		Title:   raw.Title,
		Summary: raw.Summary,
		Content: content,
		Tags:    tags,
	}, nil
}

// normalizeContent coerces content to an ordered paragraph list: a single
// string becomes a one-element list, an array passes through unchanged.
// Anything else is a schema violation; no further repair is attempted.
func normalizeContent(raw json.RawMessage) ([]string, error) {
	if len(raw) == 0 {
		return nil, &SchemaError{Reason: "missing content"}
	}

	// JSON null decodes into a string as a no-op, so it would slip
	// through the string attempt below as "".
	if string(bytes.TrimSpace(raw)) == "null" {
		return nil, &SchemaError{Reason: "content is neither string nor string array"}
	}

	var single string
	if err := json.Unmarshal(raw, &single); err == nil {
		return []string{single}, nil
	}

	var many []string
	if err := json.Unmarshal(raw, &many); err == nil {
		return many, nil
	}

	return nil, &SchemaError{Reason: "content is neither string nor string array"}
}

func (f *Fuser) applyTagPolicy(tags []string) ([]string, error) {
	switch f.tagPolicy {
	case TagPolicyFilter:
		var kept []string
		seen := make(map[string]struct{})
		for _, tag := range tags {
			if !f.vocabSet.Contains(tag) {
				continue
			}
			if _, dup := seen[tag]; dup {
				continue
			}
			seen[tag] = struct{}{}
			kept = append(kept, tag)
		}
		return kept, nil
	case TagPolicyReject:
		for _, tag := range tags {
			if !f.vocabSet.Contains(tag) {
				return nil, &SchemaError{Reason: fmt.Sprintf("tag %q not in vocabulary", tag)}
			}
		}
		return tags, nil
	default:
		return tags, nil
	}
}
