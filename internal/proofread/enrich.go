package proofread

import (
	"regexp"
	"strings"

	"github.com/MrWong99/stenoproof/internal/transcript"
)

const (
	enrichWordsBefore = 2
	enrichWordsAfter  = 1
)

// Enrich widens the correction of single-word grammar errors with the words
// around the error in the transcript, so "were" becomes "they were going".
// The error text is looked up case-insensitively in the line the error
// points at; errors whose line or text cannot be found are left unchanged.
// Enrich returns a new slice and never mutates errs.
func Enrich(errs []TranscriptError, parsed *transcript.Parsed) []TranscriptError {
	out := make([]TranscriptError, len(errs))
	copy(out, errs)
	if parsed == nil {
		return out
	}
	for i, e := range out {
		if e.ErrorType != KindGrammar || !singleWord(e.ErrorText) || !singleWord(e.Correction) {
			continue
		}
		line, ok := parsed.Line(e.PageNumber, e.LineNumber)
		if !ok {
			continue
		}
		if widened, ok := widen(line.Content, e.ErrorText, e.Correction); ok {
			out[i].Correction = widened
		}
	}
	return out
}

func singleWord(s string) bool {
	return len(strings.Fields(s)) == 1
}

// widen finds the first case-insensitive occurrence of errorText in content,
// preferring a whole-word match, and surrounds correction with the
// neighbouring words.
func widen(content, errorText, correction string) (string, bool) {
	text := strings.TrimSpace(errorText)
	start, end := findWord(content, text)
	if start < 0 {
		return "", false
	}
	before := strings.Fields(content[:start])
	after := strings.Fields(content[end:])

	// A match inside a word leaves a fragment on either side; drop it.
	if start > 0 && !isSpace(content[start-1]) && len(before) > 0 {
		before = before[:len(before)-1]
	}
	if end < len(content) && !isSpace(content[end]) && len(after) > 0 {
		after = after[1:]
	}

	before = before[max(0, len(before)-enrichWordsBefore):]
	after = after[:min(len(after), enrichWordsAfter)]

	words := make([]string, 0, len(before)+1+len(after))
	words = append(words, before...)
	words = append(words, strings.TrimSpace(correction))
	words = append(words, after...)
	return strings.Join(words, " "), true
}

func findWord(content, text string) (int, int) {
	if text == "" {
		return -1, -1
	}
	re, err := regexp.Compile(`(?i)\b` + regexp.QuoteMeta(text) + `\b`)
	if err == nil {
		if loc := re.FindStringIndex(content); loc != nil {
			return loc[0], loc[1]
		}
	}
	if i := indexFold(content, text); i >= 0 {
		return i, i + len(text)
	}
	return -1, -1
}

// indexFold is a case-insensitive strings.Index for text whose lower-cased
// form keeps its byte length, which holds for transcript text.
func indexFold(s, substr string) int {
	if substr == "" {
		return -1
	}
	ls, lsub := strings.ToLower(s), strings.ToLower(substr)
	if len(ls) != len(s) || len(lsub) != len(substr) {
		return -1
	}
	return strings.Index(ls, lsub)
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t'
}
