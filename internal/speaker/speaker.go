// Package speaker detects inconsistent spellings of the same speaker across a
// transcript, e.g. "MR. SMITH:" on one page and "MR. SMYTH:" on the next.
//
// Names are compared in two stages:
//
//  1. Phonetic filtering: Double Metaphone codes are computed for every token
//     of both names. Names that share a code are phonetic candidates.
//  2. Jaro-Winkler ranking: among candidates the name with the highest
//     similarity wins, provided it clears the phonetic threshold. Without a
//     phonetic candidate a stricter fuzzy threshold applies.
package speaker

import (
	"sort"
	"strings"

	"github.com/antzucaro/matchr"
)

const (
	defaultPhoneticThreshold = 0.80
	defaultFuzzyThreshold    = 0.90
)

// Option is a functional option for configuring a [Matcher].
type Option func(*Matcher)

// WithPhoneticThreshold sets the minimum Jaro-Winkler score for a
// phonetically matching name. Default: 0.80.
func WithPhoneticThreshold(threshold float64) Option {
	return func(m *Matcher) {
		m.phoneticThreshold = threshold
	}
}

// WithFuzzyThreshold sets the minimum Jaro-Winkler score when names share no
// phonetic code. Default: 0.90.
func WithFuzzyThreshold(threshold float64) Option {
	return func(m *Matcher) {
		m.fuzzyThreshold = threshold
	}
}

// Matcher compares speaker names. It is read-only after construction and
// safe for concurrent use.
type Matcher struct {
	phoneticThreshold float64
	fuzzyThreshold    float64
}

// New returns a Matcher configured with opts.
func New(opts ...Option) *Matcher {
	m := &Matcher{
		phoneticThreshold: defaultPhoneticThreshold,
		fuzzyThreshold:    defaultFuzzyThreshold,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Name extracts the comparable name from a speaker tag: "BY MR. SMITH:"
// yields "SMITH", "THE WITNESS:" yields "WITNESS". Q./A. markers yield "".
func Name(tag string) string {
	s := strings.ToUpper(strings.TrimSpace(tag))
	s = strings.TrimSuffix(s, ":")
	if s == "Q." || s == "A." {
		return ""
	}
	s = strings.TrimPrefix(s, "BY ")
	for _, title := range []string{"MRS. ", "MR. ", "MS. ", "THE "} {
		if after, ok := strings.CutPrefix(s, title); ok {
			s = after
			break
		}
	}
	return strings.TrimSpace(s)
}

// Match finds the name in candidates most similar to name. Identical names
// (case-insensitive) are skipped so only differing spellings match. When
// matched is false, best is "" and score is 0.
func (m *Matcher) Match(name string, candidates []string) (best string, score float64, matched bool) {
	nameLower := strings.ToLower(strings.TrimSpace(name))
	if nameLower == "" {
		return "", 0, false
	}
	nameTokens := strings.Fields(nameLower)
	nameCodes := codesForTokens(nameTokens)

	var bestPhonetic bool
	for _, c := range candidates {
		cLower := strings.ToLower(strings.TrimSpace(c))
		if cLower == "" || cLower == nameLower {
			continue
		}
		cTokens := strings.Fields(cLower)
		jw := bestJWScore(nameTokens, cTokens, nameLower, cLower)

		if codesOverlap(nameCodes, codesForTokens(cTokens)) {
			if jw >= m.phoneticThreshold && (!bestPhonetic || jw > score) {
				best, score, bestPhonetic = c, jw, true
			}
		} else if !bestPhonetic && jw >= m.fuzzyThreshold && jw > score {
			best, score = c, jw
		}
	}
	return best, score, best != ""
}

// Variant is a speaker tag whose name looks like a misspelling of a more
// frequent tag.
type Variant struct {
	Tag       string
	Canonical string
	Score     float64
}

// Variants groups tags by name similarity and reports every tag that matches
// a strictly more frequent tag. counts maps tag to number of occurrences.
// Results are sorted by tag.
func (m *Matcher) Variants(counts map[string]int) []Variant {
	names := make(map[string]string, len(counts))
	var all []string
	for tag := range counts {
		if n := Name(tag); n != "" {
			names[tag] = n
			all = append(all, tag)
		}
	}
	sort.Strings(all)

	var out []Variant
	for _, tag := range all {
		var pool []string
		byName := make(map[string]string)
		for _, other := range all {
			if other != tag && counts[other] > counts[tag] && samePrefix(tag, other) {
				pool = append(pool, names[other])
				byName[names[other]] = other
			}
		}
		if best, score, ok := m.Match(names[tag], pool); ok {
			out = append(out, Variant{Tag: tag, Canonical: byName[best], Score: score})
		}
	}
	return out
}

// samePrefix reports whether two tags share their title, so "MR. SMITH:"
// is never folded into "MS. SMITH:".
func samePrefix(a, b string) bool {
	title := func(s string) string {
		s = strings.TrimPrefix(strings.ToUpper(strings.TrimSpace(s)), "BY ")
		if i := strings.IndexByte(s, ' '); i > 0 {
			return s[:i]
		}
		return ""
	}
	return title(a) == title(b)
}

func codesForTokens(tokens []string) map[string]struct{} {
	codes := make(map[string]struct{}, len(tokens)*2)
	for _, t := range tokens {
		p, s := matchr.DoubleMetaphone(t)
		if p != "" {
			codes[p] = struct{}{}
		}
		if s != "" {
			codes[s] = struct{}{}
		}
	}
	return codes
}

func codesOverlap(a, b map[string]struct{}) bool {
	if len(a) > len(b) {
		a, b = b, a
	}
	for code := range a {
		if _, ok := b[code]; ok {
			return true
		}
	}
	return false
}

// bestJWScore is the maximum of the full-string, space-stripped and best
// pairwise token Jaro-Winkler scores.
func bestJWScore(aTokens, bTokens []string, aFull, bFull string) float64 {
	score := matchr.JaroWinkler(aFull, bFull, false)

	if len(aTokens) > 1 || len(bTokens) > 1 {
		if s := matchr.JaroWinkler(strings.Join(aTokens, ""), strings.Join(bTokens, ""), false); s > score {
			score = s
		}
	}
	for _, at := range aTokens {
		for _, bt := range bTokens {
			if s := matchr.JaroWinkler(at, bt, false); s > score {
				score = s
			}
		}
	}
	return score
}
