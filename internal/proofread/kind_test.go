package proofread_test

import (
	"testing"

	"github.com/MrWong99/stenoproof/internal/proofread"
)

func TestNormalizeErrorKind(t *testing.T) {
	t.Parallel()

	tests := []struct {
		label string
		want  proofread.ErrorKind
	}{
		{"typo", proofread.KindTypo},
		{"Grammar", proofread.KindGrammar},
		{"MISSING_WORD", proofread.KindMissingWord},
		{"needs_review", proofread.KindNeedsReview},
		{"Spelling Error", proofread.KindSpelling},
		{"Missing Word", proofread.KindMissingWord},
		{"duplicate word", proofread.KindExtraWord},
		{"Extra words", proofread.KindExtraWord},
		{"untranslated steno", proofread.KindUntranslatedSteno},
		{"mistranslation", proofread.KindUntranslatedSteno},
		{"inconsistent name", proofread.KindInconsistency},
		{"awkward phrasing", proofread.KindNeedsReview},
		{"unclear", proofread.KindNeedsReview},
		{"doubled letter", proofread.KindTypo},
		{"grammatical", proofread.KindGrammar},
		{"punctuation (period)", proofread.KindPunctuation},
		{"", proofread.KindOther},
		{"banana", proofread.KindOther},
		{"42", proofread.KindOther},
	}

	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			t.Parallel()
			if got := proofread.NormalizeErrorKind(tt.label); got != tt.want {
				t.Errorf("NormalizeErrorKind(%q) = %q, want %q", tt.label, got, tt.want)
			}
		})
	}
}

func TestNormalizeErrorKind_AlwaysInSet(t *testing.T) {
	t.Parallel()

	for _, label := range []string{"???", "Typo!", "x_y_z", "SPELL", "Grammar/Spelling", "ÜNICODE"} {
		if k := proofread.NormalizeErrorKind(label); !k.IsValid() {
			t.Errorf("NormalizeErrorKind(%q) = %q, not a member of the closed set", label, k)
		}
	}
}

func TestErrorKind_LabelAndIndex(t *testing.T) {
	t.Parallel()

	if got := proofread.KindExtraWord.Label(); got != "Extra/Duplicate Words" {
		t.Errorf("KindExtraWord.Label() = %q", got)
	}
	if got := proofread.ErrorKind("bogus").Label(); got != "bogus" {
		t.Errorf("unknown Label() = %q, want passthrough", got)
	}
	for i, k := range proofread.Kinds {
		if k.Index() != i {
			t.Errorf("%q.Index() = %d, want %d", k, k.Index(), i)
		}
		if !k.IsValid() {
			t.Errorf("%q.IsValid() = false", k)
		}
	}
	if got := proofread.ErrorKind("bogus").Index(); got != len(proofread.Kinds) {
		t.Errorf("unknown Index() = %d, want %d", got, len(proofread.Kinds))
	}
}
