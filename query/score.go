package query

import (
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/fwojciec/docpilot"
)

// Scoring weights. Stage one rewards term hits and specificity; the final
// pass rewards covering every query token and matching the whole phrase.
const (
	ExactMatchBonus  = 10.0 // display text equals a term or the whole query
	TermInTextWeight = 3.0  // per term found in the display text
	TermInAncestry   = 1.0  // per term found only in the section ancestry
	KindWeightFactor = 1.0  // multiplied by RecordKind.Weight
	SpecificityMax   = 2.0  // scaled by matched runes over text runes
	CoverageWeight   = 4.0  // scaled by covered groups over all groups
	PhraseBonus      = 3.0  // display text contains the whole multi-token query
	DeclarationBonus = 1.0  // symbol is declared here, not just mentioned
)

// normalize lower-cases s and collapses whitespace.
func normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// score computes the stage one score of a record.
func score(r *docpilot.Record, groups []TermGroup, phrase string) *docpilot.Candidate {
	text := strings.ToLower(r.Text)
	ancestry := strings.ToLower(strings.Join(r.Ancestry, "\n"))

	c := &docpilot.Candidate{Record: r}
	matchedRunes := 0
	exact := text == phrase

	for _, g := range groups {
		for _, term := range g.Terms {
			switch {
			case strings.Contains(text, term):
				c.Score += TermInTextWeight
				c.Matched++
				matchedRunes += utf8.RuneCountInString(term)
				if text == term {
					exact = true
				}
			case strings.Contains(ancestry, term):
				c.Score += TermInAncestry
			}
		}
	}

	if exact {
		c.Score += ExactMatchBonus
	}
	c.Score += KindWeightFactor * float64(r.Kind.Weight())
	if r.SymbolKind.Declaration() {
		c.Score += DeclarationBonus
	}

	if n := utf8.RuneCountInString(text); n > 0 {
		c.Score += SpecificityMax * min(1, float64(matchedRunes)/float64(n))
	}
	return c
}

// coverage returns the fraction of groups with a term in the record's
// display text or ancestry.
func coverage(r *docpilot.Record, groups []TermGroup) float64 {
	if len(groups) == 0 {
		return 0
	}
	text := strings.ToLower(r.Text)
	ancestry := strings.ToLower(strings.Join(r.Ancestry, "\n"))

	covered := 0
	for _, g := range groups {
		for _, term := range g.Terms {
			if strings.Contains(text, term) || strings.Contains(ancestry, term) {
				covered++
				break
			}
		}
	}
	return float64(covered) / float64(len(groups))
}

// rank orders candidates by score, then by kind weight, path, line, text
// and ID so equal scores always come out in the same order.
func rank(candidates []*docpilot.Candidate) {
	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if wa, wb := a.Record.Kind.Weight(), b.Record.Kind.Weight(); wa != wb {
			return wa > wb
		}
		if a.Record.Path != b.Record.Path {
			return a.Record.Path < b.Record.Path
		}
		if a.Record.StartLine != b.Record.StartLine {
			return a.Record.StartLine < b.Record.StartLine
		}
		if a.Record.Text != b.Record.Text {
			return a.Record.Text < b.Record.Text
		}
		return a.Record.ID < b.Record.ID
	})
}

// finalPass keeps the shortlisted candidates with the best coverage, adds
// the coverage and phrase bonuses and re-ranks. It never backfills.
func finalPass(shortlist []*docpilot.Candidate, groups []TermGroup, phrase string) []*docpilot.Candidate {
	best := 0.0
	for _, c := range shortlist {
		c.Coverage = coverage(c.Record, groups)
		best = max(best, c.Coverage)
	}

	var out []*docpilot.Candidate
	for _, c := range shortlist {
		if c.Coverage < best {
			continue
		}
		c.Score += CoverageWeight * c.Coverage
		if len(groups) > 1 && strings.Contains(strings.ToLower(c.Record.Text), phrase) {
			c.Score += PhraseBonus
		}
		out = append(out, c)
	}
	rank(out)
	return out
}
