// Package news holds the domain types passed between pipeline stages.
package news

// Article is one scraped page of one outlet: its headline, its absolute
// URL, and its body paragraphs in document order (lead paragraph first).
// Paragraphs may be empty when body extraction partially failed; such an
// article is still matchable by title.
type Article struct {
	Title      string
	URL        string
	Paragraphs []string
}

// MatchedPair is the unit of fusion work: one article from each outlet
// judged to cover the same event. Score is informational and not persisted.
type MatchedPair struct {
	Primary   Article
	Secondary Article
	Score     float64
}

// FusedReport is the persisted output of fusing one matched pair.
// URLPrimary and URLSecondary carry the source articles' URLs verbatim
// for attribution.
type FusedReport struct {
	Title        string
	Summary      string
	Content      []string
	Tags         []string
	URLPrimary   string
	URLSecondary string
}
