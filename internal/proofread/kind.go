package proofread

import "strings"

// ErrorKind classifies a transcript defect. The set is closed: every label
// coming back from an analyzer is coerced into one of the constants below by
// [NormalizeErrorKind].
type ErrorKind string

const (
	KindTypo              ErrorKind = "typo"
	KindGrammar           ErrorKind = "grammar"
	KindSpelling          ErrorKind = "spelling"
	KindPunctuation       ErrorKind = "punctuation"
	KindMissingWord       ErrorKind = "missing_word"
	KindExtraWord         ErrorKind = "extra_word"
	KindUntranslatedSteno ErrorKind = "untranslated_steno"
	KindInconsistency     ErrorKind = "inconsistency"
	KindNeedsReview       ErrorKind = "needs_review"
	KindOther             ErrorKind = "other"
)

// Kinds lists every ErrorKind in declaration order. Report tables use this
// order to break ties.
var Kinds = []ErrorKind{
	KindTypo,
	KindGrammar,
	KindSpelling,
	KindPunctuation,
	KindMissingWord,
	KindExtraWord,
	KindUntranslatedSteno,
	KindInconsistency,
	KindNeedsReview,
	KindOther,
}

var kindLabels = map[ErrorKind]string{
	KindTypo:              "Typos",
	KindGrammar:           "Grammar",
	KindSpelling:          "Spelling",
	KindPunctuation:       "Punctuation",
	KindMissingWord:       "Missing Words",
	KindExtraWord:         "Extra/Duplicate Words",
	KindUntranslatedSteno: "Untranslated Steno",
	KindInconsistency:     "Inconsistencies",
	KindNeedsReview:       "Needs Review",
	KindOther:             "Other",
}

// IsValid reports whether k is a member of the closed set.
func (k ErrorKind) IsValid() bool {
	_, ok := kindLabels[k]
	return ok
}

// Label returns the human-readable plural label used in reports.
func (k ErrorKind) Label() string {
	if l, ok := kindLabels[k]; ok {
		return l
	}
	return string(k)
}

// Index returns the position of k in [Kinds], or len(Kinds) for unknown kinds.
func (k ErrorKind) Index() int {
	for i, kk := range Kinds {
		if kk == k {
			return i
		}
	}
	return len(Kinds)
}

// kindKeywords maps label fragments to kinds. Rules are checked in order and
// the first fragment found anywhere in the label wins.
var kindKeywords = []struct {
	kind      ErrorKind
	fragments []string
}{
	{KindTypo, []string{"typo", "mistype", "doubled"}},
	{KindGrammar, []string{"gram"}},
	{KindSpelling, []string{"spell"}},
	{KindPunctuation, []string{"punct"}},
	{KindMissingWord, []string{"missing"}},
	{KindExtraWord, []string{"extra", "duplicate"}},
	{KindUntranslatedSteno, []string{"steno", "untrans", "mistrans"}},
	{KindInconsistency, []string{"inconsist"}},
	{KindNeedsReview, []string{"review", "awkward", "unclear", "clunky"}},
}

// NormalizeErrorKind coerces a free-form label into the closed ErrorKind set.
// The label is lower-cased and stripped of everything but a-z and
// underscore; an exact match is returned as is, otherwise keyword rules are
// applied and [KindOther] is the fallback.
func NormalizeErrorKind(label string) ErrorKind {
	var b strings.Builder
	for _, r := range strings.ToLower(label) {
		if (r >= 'a' && r <= 'z') || r == '_' {
			b.WriteRune(r)
		}
	}
	norm := b.String()

	if k := ErrorKind(norm); k.IsValid() {
		return k
	}
	for _, rule := range kindKeywords {
		for _, f := range rule.fragments {
			if strings.Contains(norm, f) {
				return rule.kind
			}
		}
	}
	return KindOther
}
