// Package vocab provides the fixed controlled vocabulary of report tags:
// topics, regions, country names, story types, and themes. The list is
// embedded at build time and never changes during a run.
package vocab

import (
	_ "embed"
	"strings"
	"sync"
)

//go:embed vocabulary.txt
var vocabularyTxt string

var (
	once  sync.Once
	terms []string
)

// Default returns the controlled vocabulary as an ordered list with
// duplicates removed. The returned slice is shared; callers must not
// modify it.
func Default() []string {
	once.Do(func() {
		seen := make(map[string]struct{})
		for _, line := range strings.Split(vocabularyTxt, "\n") {
			term := strings.TrimSpace(line)
			if term == "" {
				continue
			}
			if _, dup := seen[term]; dup {
				continue
			}
			seen[term] = struct{}{}
			terms = append(terms, term)
		}
	})
	return terms
}

// Set answers membership queries against a vocabulary.
type Set map[string]struct{}

// NewSet builds a Set from a list of terms.
func NewSet(terms []string) Set {
	s := make(Set, len(terms))
	for _, t := range terms {
		s[t] = struct{}{}
	}
	return s
}

// Contains reports whether term is in the vocabulary.
func (s Set) Contains(term string) bool {
	_, ok := s[term]
	return ok
}
