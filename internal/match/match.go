// Package match pairs articles from the two outlets by lexical title
// similarity. It replaces editorial judgment with a cheap overlap score:
// any nonzero overlap produces a pair, and the fusion step downstream is
// trusted to handle weak matches.
package match

import (
	"log"
	"regexp"
	"strings"

	"github.com/TobiSchelling/newsfuse/internal/news"
)

var nonWord = regexp.MustCompile(`\W+`)

// Tokens lowercases a title, splits it on runs of non-word characters,
// and returns the resulting token set. Duplicate tokens collapse.
func Tokens(title string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, tok := range nonWord.Split(strings.ToLower(title), -1) {
		if tok == "" {
			continue
		}
		set[tok] = struct{}{}
	}
	return set
}

// Score computes the similarity of two titles in [0,1]:
// |intersection| / max(|tokens a|, |tokens b|). Dividing by the larger
// set rather than the union keeps the score tolerant of one title being
// much shorter than the other.
func Score(a, b string) float64 {
	ta := Tokens(a)
	tb := Tokens(b)
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}

	common := 0
	for tok := range ta {
		if _, ok := tb[tok]; ok {
			common++
		}
	}

	denom := len(ta)
	if len(tb) > denom {
		denom = len(tb)
	}
	return float64(common) / float64(denom)
}

// Match finds, for each article in setA, the best-scoring article in setB.
// Articles with no candidate sharing a single token are dropped; any
// nonzero score produces a pair. Ties keep the earliest candidate in
// setB's order. The result has at most len(setA) pairs, each with a
// distinct primary; a setB article may back more than one pair.
func Match(setA, setB []news.Article) []news.MatchedPair {
	var pairs []news.MatchedPair

	for _, a := range setA {
		var best *news.Article
		bestScore := 0.0
		for i := range setB {
			if s := Score(a.Title, setB[i].Title); s > bestScore {
				bestScore = s
				best = &setB[i]
			}
		}
		if best == nil {
			log.Printf("No match for %q — dropping", a.Title)
			continue
		}
		pairs = append(pairs, news.MatchedPair{
			Primary:   a,
			Secondary: *best,
			Score:     bestScore,
		})
	}

	return pairs
}
