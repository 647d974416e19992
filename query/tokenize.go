package query

import (
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"
)

// MaxTerms caps the number of recall terms per query.
const MaxTerms = 16

// bigramThreshold is the Han run length above which bigrams are added as
// extra terms.
const bigramThreshold = 4

var tokenPattern = regexp.MustCompile(`[A-Za-z_][\w.]*|\p{Han}+`)

var stopwords = map[string]bool{
	"the": true, "and": true, "or": true, "for": true, "with": true,
	"from": true, "into": true, "when": true, "what": true, "how": true,
	"why": true, "where": true, "which": true, "this": true, "that": true,

	"这些": true, "那些": true, "怎么": true, "如何": true, "请问": true,
	"一个": true, "有没有": true, "官方": true, "推荐": true, "候选": true,
	"列表": true, "给出": true, "筛选": true, "附": true, "来源": true,
	"配图": true,
}

// hanStopwords are removed from inside Han runs, longest first, since
// Chinese text has no word separators.
var hanStopwords = func() []string {
	var out []string
	for w := range stopwords {
		r, _ := utf8.DecodeRuneInString(w)
		if r >= 0x2E80 {
			out = append(out, w)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if len(out[i]) != len(out[j]) {
			return len(out[i]) > len(out[j])
		}
		return out[i] < out[j]
	})
	return out
}()

// TermGroup holds the recall terms derived from one query token. A group
// is covered by a record when any of its terms matches.
type TermGroup struct {
	Token string
	Terms []string
}

// Tokenize splits free text into term groups. Terms are lower-cased.
// Identifier runs keep dots so qualified names stay whole; Han runs are
// split at stopwords and long runs also yield their bigrams.
func Tokenize(text string) []TermGroup {
	var groups []TermGroup
	seenTerm := make(map[string]bool)
	total := 0

	add := func(token string, terms []string) {
		var kept []string
		for _, t := range terms {
			if total >= MaxTerms {
				break
			}
			if seenTerm[t] {
				continue
			}
			seenTerm[t] = true
			kept = append(kept, t)
			total++
		}
		if len(kept) > 0 {
			groups = append(groups, TermGroup{Token: token, Terms: kept})
		}
	}

	for _, match := range tokenPattern.FindAllString(text, -1) {
		if isHan(match) {
			for _, run := range splitHan(match) {
				if usable(run) {
					add(run, hanTerms(run))
				}
			}
			continue
		}
		token := strings.TrimRight(match, ".")
		if usable(token) {
			add(token, []string{strings.ToLower(token)})
		}
	}
	return groups
}

// Terms flattens groups into their recall terms.
func Terms(groups []TermGroup) []string {
	var out []string
	for _, g := range groups {
		out = append(out, g.Terms...)
	}
	return out
}

func usable(token string) bool {
	return utf8.RuneCountInString(token) >= 2 && !stopwords[strings.ToLower(token)]
}

func isHan(s string) bool {
	r, _ := utf8.DecodeRuneInString(s)
	return r >= utf8.RuneSelf
}

func splitHan(run string) []string {
	for _, w := range hanStopwords {
		run = strings.ReplaceAll(run, w, " ")
	}
	return strings.Fields(run)
}

func hanTerms(run string) []string {
	terms := []string{run}
	runes := []rune(run)
	if len(runes) <= bigramThreshold {
		return terms
	}
	for i := 0; i+2 <= len(runes); i++ {
		terms = append(terms, string(runes[i:i+2]))
	}
	return terms
}
