package proofread_test

import (
	"testing"

	"github.com/MrWong99/stenoproof/internal/proofread"
	"github.com/MrWong99/stenoproof/internal/transcript"
)

func enrichTranscript() *transcript.Parsed {
	return &transcript.Parsed{
		Pages: []transcript.Page{
			{PageNumber: 3, Lines: []transcript.Line{
				{LineNumber: 5, Content: "A.  And they was going to the store."},
				{LineNumber: 6, Content: "Was it raining?"},
				{LineNumber: 7, Content: "He washed it and he WAS done."},
			}},
		},
		TotalPages: 3,
	}
}

func TestEnrich(t *testing.T) {
	t.Parallel()

	grammar := func(line int, text, corr string) proofread.TranscriptError {
		return proofread.TranscriptError{PageNumber: 3, LineNumber: line, ErrorText: text, Correction: corr, ErrorType: proofread.KindGrammar, Confidence: 0.8}
	}

	tests := []struct {
		name string
		in   proofread.TranscriptError
		want string
	}{
		{"two before one after", grammar(5, "was", "were"), "And they were going"},
		{"match at line start", grammar(6, "was", "Were"), "Were it"},
		{"whole word preferred over substring", grammar(7, "was", "is"), "and he is done."},
		{"line not found", grammar(20, "was", "were"), "were"},
		{"text not found", grammar(5, "is", "are"), "are"},
		{"multi-word error untouched", grammar(5, "they was", "they were"), "they were"},
		{"non-grammar untouched", proofread.TranscriptError{PageNumber: 3, LineNumber: 5, ErrorText: "was", Correction: "were", ErrorType: proofread.KindTypo}, "were"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			in := []proofread.TranscriptError{tt.in}
			got := proofread.Enrich(in, enrichTranscript())
			if got[0].Correction != tt.want {
				t.Errorf("Correction = %q, want %q", got[0].Correction, tt.want)
			}
			if in[0].Correction != tt.in.Correction {
				t.Error("Enrich mutated its input")
			}
		})
	}
}

func TestEnrich_NilTranscript(t *testing.T) {
	t.Parallel()

	in := []proofread.TranscriptError{{PageNumber: 1, LineNumber: 1, ErrorText: "a", Correction: "b", ErrorType: proofread.KindGrammar}}
	got := proofread.Enrich(in, nil)
	if len(got) != 1 || got[0] != in[0] {
		t.Errorf("Enrich(nil) = %+v", got)
	}
}
