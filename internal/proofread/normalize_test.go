package proofread_test

import (
	"testing"

	"github.com/MrWong99/stenoproof/internal/proofread"
)

func TestNormalize_LiteralEmptyArray(t *testing.T) {
	t.Parallel()

	out := proofread.NewNormalizer().Normalize("[]", 1)
	if out.Status != proofread.StatusEmpty {
		t.Errorf("Status = %v, want empty", out.Status)
	}
	if len(out.Errors) != 0 {
		t.Errorf("Errors = %+v, want none", out.Errors)
	}
}

func TestNormalize_FreeTextFinding(t *testing.T) {
	t.Parallel()

	out := proofread.NewNormalizer().Normalize(`Page 4, Line 10: "wittness" should be "witness" (typo)`, 1)
	if out.Status != proofread.StatusParsed {
		t.Fatalf("Status = %v, want parsed", out.Status)
	}
	if out.Strategy != "markdown" {
		t.Errorf("Strategy = %q, want markdown", out.Strategy)
	}
	want := proofread.TranscriptError{
		PageNumber: 4,
		LineNumber: 10,
		ErrorText:  "wittness",
		Correction: "witness",
		ErrorType:  proofread.KindTypo,
		Confidence: 0.8,
	}
	if len(out.Errors) != 1 || out.Errors[0] != want {
		t.Errorf("Errors = %+v, want [%+v]", out.Errors, want)
	}
}

func TestNormalize_Strategies(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		response string
		strategy string
		want     []proofread.TranscriptError
	}{
		{
			name:     "fenced json with string numbers and clamped confidence",
			response: "Here you go:\n```json\n[{\"pageNumber\":\"3\",\"lineNumber\":5,\"errorText\":\"teh\",\"correction\":\"the\",\"errorType\":\"Spelling Error\",\"confidence\":1.7}]\n```",
			strategy: "fenced_json",
			want: []proofread.TranscriptError{
				{PageNumber: 3, LineNumber: 5, ErrorText: "teh", Correction: "the", ErrorType: proofread.KindSpelling, Confidence: 1},
			},
		},
		{
			name:     "bare json inside prose",
			response: "Errors:\n[{\"pageNumber\":2,\"lineNumber\":1,\"errorText\":\"MR,\",\"correction\":\"MR.\",\"errorType\":\"punctuation\",\"confidence\":0.9}]\nDone.",
			strategy: "bare_json",
			want: []proofread.TranscriptError{
				{PageNumber: 2, LineNumber: 1, ErrorText: "MR,", Correction: "MR.", ErrorType: proofread.KindPunctuation, Confidence: 0.9},
			},
		},
		{
			name:     "wrapped errors object",
			response: `{"errors":[{"pageNumber":7,"lineNumber":2,"errorText":"/PWURGS","correction":"[untranslated]","errorType":"untranslated_steno","confidence":0.7}]}`,
			strategy: "bare_json",
			want: []proofread.TranscriptError{
				{PageNumber: 7, LineNumber: 2, ErrorText: "/PWURGS", Correction: "[untranslated]", ErrorType: proofread.KindUntranslatedSteno, Confidence: 0.7},
			},
		},
		{
			name:     "markdown table",
			response: "| Page | Line | Error | Correction | Type |\n|---|---|---|---|---|\n| 12 | 3 | recieve | receive | spelling |",
			strategy: "markdown",
			want: []proofread.TranscriptError{
				{PageNumber: 12, LineNumber: 3, ErrorText: "recieve", Correction: "receive", ErrorType: proofread.KindSpelling, Confidence: 0.8},
			},
		},
		{
			name:     "single quotes and arrow without kind",
			response: "Page 1, Line 2: 'recieve' -> 'receive'",
			strategy: "markdown",
			want: []proofread.TranscriptError{
				{PageNumber: 1, LineNumber: 2, ErrorText: "recieve", Correction: "receive", ErrorType: proofread.KindOther, Confidence: 0.8},
			},
		},
		{
			name:     "curly quotes",
			response: "Page 9 Line 4: “the the” → “the” (extra word)",
			strategy: "markdown",
			want: []proofread.TranscriptError{
				{PageNumber: 9, LineNumber: 4, ErrorText: "the the", Correction: "the", ErrorType: proofread.KindExtraWord, Confidence: 0.8},
			},
		},
		{
			name:     "single quoted span becomes needs review",
			response: `Page 2, Line 7: "and the thing went" reads garbled`,
			strategy: "markdown",
			want: []proofread.TranscriptError{
				{PageNumber: 2, LineNumber: 7, ErrorText: "and the thing went", Correction: "Needs review", ErrorType: proofread.KindNeedsReview, Confidence: 0.6},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			out := proofread.NewNormalizer().Normalize(tt.response, 1)
			if out.Status != proofread.StatusParsed {
				t.Fatalf("Status = %v, want parsed", out.Status)
			}
			if out.Strategy != tt.strategy {
				t.Errorf("Strategy = %q, want %q", out.Strategy, tt.strategy)
			}
			if len(out.Errors) != len(tt.want) {
				t.Fatalf("Errors = %+v, want %+v", out.Errors, tt.want)
			}
			for i := range tt.want {
				if out.Errors[i] != tt.want[i] {
					t.Errorf("Errors[%d] = %+v, want %+v", i, out.Errors[i], tt.want[i])
				}
			}
		})
	}
}

func TestNormalize_EmptyAndUnparseable(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		response string
		want     proofread.Status
	}{
		{"blank", "   \n", proofread.StatusEmpty},
		{"no errors prose", "I reviewed the pages. No errors were found.", proofread.StatusEmpty},
		{"fenced empty array", "```json\n[]\n```", proofread.StatusEmpty},
		{"wrapped empty", `{"errors": []}`, proofread.StatusEmpty},
		{"prose", "I could not read this transcript.", proofread.StatusUnparseable},
		{"broken json", `[{"pageNumber": 1, "errorText": `, proofread.StatusUnparseable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			out := proofread.NewNormalizer().Normalize(tt.response, 5)
			if out.Status != tt.want {
				t.Errorf("Status = %v, want %v", out.Status, tt.want)
			}
			if len(out.Errors) != 0 {
				t.Errorf("Errors = %+v, want none", out.Errors)
			}
		})
	}
}

func TestCanonicalize_DefaultsAndDedup(t *testing.T) {
	t.Parallel()

	recs := []proofread.RawRecord{
		proofread.NewRawRecord(0, 0, "teh", "the", "", 0),
		proofread.NewRawRecord(0, 0, "teh", "THE", "typo", 0.5),
		proofread.NewRawRecord(30, 4, "  ", "x", "typo", 0.9),
		proofread.NewRawRecord(30, 4, "garbled", "Needs review", "needs_review", -2),
	}

	got := proofread.Canonicalize(recs, 30)
	want := []proofread.TranscriptError{
		{PageNumber: 30, LineNumber: 1, ErrorText: "teh", Correction: "the", ErrorType: proofread.KindOther, Confidence: 0.8},
		{PageNumber: 30, LineNumber: 4, ErrorText: "garbled", Correction: "Needs review", ErrorType: proofread.KindNeedsReview, Confidence: 0},
	}
	if len(got) != len(want) {
		t.Fatalf("Canonicalize = %+v, want %+v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("[%d] = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestNormalize_Closure(t *testing.T) {
	t.Parallel()

	responses := []string{
		`[{"pageNumber":-4,"lineNumber":"x","errorText":"a","errorType":"??","confidence":"high"}]`,
		`[{"errorText":"b","errorType":"Grammar Issue","confidence":99}]`,
		"Page 3, Line 2: \"c\" => \"d\" (weird kind)",
	}
	for _, r := range responses {
		out := proofread.NewNormalizer().Normalize(r, 6)
		if len(out.Errors) == 0 {
			t.Errorf("Normalize(%q) produced no errors", r)
		}
		for _, e := range out.Errors {
			if !e.ErrorType.IsValid() {
				t.Errorf("kind %q not in closed set", e.ErrorType)
			}
			if e.Confidence < 0 || e.Confidence > 1 {
				t.Errorf("confidence %v out of range", e.Confidence)
			}
			if e.PageNumber < 1 || e.LineNumber < 1 {
				t.Errorf("location %d:%d not positive", e.PageNumber, e.LineNumber)
			}
			if e.ErrorText == "" {
				t.Error("empty errorText survived")
			}
		}
	}
}

type fixedStrategy struct {
	name string
	recs []proofread.RawRecord
	ok   bool
}

func (f fixedStrategy) Name() string                                { return f.name }
func (f fixedStrategy) Extract(string) ([]proofread.RawRecord, bool) { return f.recs, f.ok }

func TestNormalizer_FirstNonEmptyStrategyWins(t *testing.T) {
	t.Parallel()

	n := proofread.NewNormalizer(
		fixedStrategy{name: "declines", ok: false},
		fixedStrategy{name: "only blanks", recs: []proofread.RawRecord{proofread.NewRawRecord(1, 1, "", "", "", 0)}, ok: true},
		fixedStrategy{name: "wins", recs: []proofread.RawRecord{proofread.NewRawRecord(1, 1, "x", "y", "typo", 0.9)}, ok: true},
		fixedStrategy{name: "never reached", recs: []proofread.RawRecord{proofread.NewRawRecord(2, 2, "z", "w", "typo", 0.9)}, ok: true},
	)
	out := n.Normalize("irrelevant", 1)
	if out.Strategy != "wins" {
		t.Errorf("Strategy = %q, want wins", out.Strategy)
	}
	if len(out.Errors) != 1 || out.Errors[0].ErrorText != "x" {
		t.Errorf("Errors = %+v", out.Errors)
	}
}
