// Package pipeline sequences one batch run: extract both outlets, match
// articles across them, then fuse and store each matched pair. Per-pair
// failures are logged and skipped; only listing-level failures abort the
// run.
package pipeline

import (
	"context"
	"fmt"
	"log"

	"github.com/TobiSchelling/newsfuse/internal/browse"
	"github.com/TobiSchelling/newsfuse/internal/config"
	"github.com/TobiSchelling/newsfuse/internal/extract"
	"github.com/TobiSchelling/newsfuse/internal/fuse"
	"github.com/TobiSchelling/newsfuse/internal/llm"
	"github.com/TobiSchelling/newsfuse/internal/match"
	"github.com/TobiSchelling/newsfuse/internal/news"
	"github.com/TobiSchelling/newsfuse/internal/store"
	"github.com/TobiSchelling/newsfuse/internal/vocab"
)

// StepResult holds the result of a single pipeline step.
type StepResult struct {
	Name    string
	Summary string
}

// Result holds the results of a full pipeline run.
type Result struct {
	Steps        []StepResult
	Fused        int
	Stored       int
	PairFailures int
}

// Pipeline orchestrates the extract -> match -> fuse -> store run.
type Pipeline struct {
	primary   extract.Extractor
	secondary extract.Extractor
	session   browse.Session
	fuser     *fuse.Fuser
	sink      store.Sink
}

// New wires a pipeline from configuration and already-acquired external
// handles. The caller owns acquiring those handles; failures there are
// fatal to the run before the pipeline exists.
func New(cfg *config.Config, session browse.Session, provider llm.Provider, sink store.Sink) *Pipeline {
	fuser := fuse.New(provider, vocab.Default(), cfg.Outlets.Primary.Name, cfg.Outlets.Secondary.Name)
	fuser.SetTagPolicy(fuse.TagPolicy(cfg.Fusion.TagPolicy))
	fuser.SetMaxArticleChars(cfg.Generation.MaxArticleChars)
	fuser.SetMaxTokens(cfg.Generation.MaxTokens)

	return &Pipeline{
		primary:   extract.New(outletFromConfig(cfg.Outlets.Primary, cfg.Outlets.Limit)),
		secondary: extract.New(outletFromConfig(cfg.Outlets.Secondary, cfg.Outlets.Limit)),
		session:   session,
		fuser:     fuser,
		sink:      sink,
	}
}

func outletFromConfig(o config.Outlet, limit int) extract.Outlet {
	return extract.Outlet{
		Name:            o.Name,
		FrontPageURL:    o.FrontPage,
		ListingSelector: o.ListingSelector,
		TitleSelector:   o.TitleSelector,
		BodySelector:    o.BodySelector,
		FeedURL:         o.FeedURL,
		Mode:            o.Mode,
		Limit:           limit,
	}
}

// Run executes the full pipeline. A returned error is fatal; individual
// article and pair failures are absorbed, and a run that attempted every
// pair succeeds regardless of how many of them failed.
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	r := &Result{}

	setA, setB, err := p.runExtract(ctx, r)
	if err != nil {
		return r, err
	}

	pairs := p.runMatch(r, setA, setB)

	p.runFuseAndStore(ctx, r, pairs)

	return r, nil
}

// runExtract runs both outlet extractors sequentially and releases the
// browsing session once both have finished.
func (p *Pipeline) runExtract(ctx context.Context, r *Result) ([]news.Article, []news.Article, error) {
	log.Println("Step 1/3: Extracting front pages...")
	defer p.session.Close()

	setA, err := p.primary.Extract(ctx, p.session)
	if err != nil {
		return nil, nil, fmt.Errorf("extracting %s: %w", p.primary.Name(), err)
	}

	setB, err := p.secondary.Extract(ctx, p.session)
	if err != nil {
		return nil, nil, fmt.Errorf("extracting %s: %w", p.secondary.Name(), err)
	}

	r.Steps = append(r.Steps, StepResult{
		Name:    "Extract",
		Summary: fmt.Sprintf("%s: %d articles, %s: %d articles", p.primary.Name(), len(setA), p.secondary.Name(), len(setB)),
	})
	return setA, setB, nil
}

func (p *Pipeline) runMatch(r *Result, setA, setB []news.Article) []news.MatchedPair {
	log.Println("Step 2/3: Matching articles across outlets...")
	pairs := match.Match(setA, setB)
	r.Steps = append(r.Steps, StepResult{
		Name:    "Match",
		Summary: fmt.Sprintf("%d matched pairs from %d candidates", len(pairs), len(setA)),
	})
	return pairs
}

// runFuseAndStore fuses and stores each pair independently. Generation,
// schema, and storage failures are logged with both source URLs and
// never abort the loop.
func (p *Pipeline) runFuseAndStore(ctx context.Context, r *Result, pairs []news.MatchedPair) {
	log.Println("Step 3/3: Fusing and storing matched pairs...")

	for _, pair := range pairs {
		report, err := p.fuser.Fuse(ctx, pair)
		if err != nil {
			log.Printf("Fusing pair failed (%s | %s): %v", pair.Primary.URL, pair.Secondary.URL, err)
			r.PairFailures++
			continue
		}
		r.Fused++

		if err := p.sink.Store(ctx, report); err != nil {
			log.Printf("Storing pair failed (%s | %s): %v", pair.Primary.URL, pair.Secondary.URL, err)
			r.PairFailures++
			continue
		}
		r.Stored++
	}

	r.Steps = append(r.Steps, StepResult{
		Name:    "Fuse & Store",
		Summary: fmt.Sprintf("%d fused, %d stored, %d failed", r.Fused, r.Stored, r.PairFailures),
	})
}
