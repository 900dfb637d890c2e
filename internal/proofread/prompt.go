package proofread

import (
	"fmt"
	"strings"
)

// PromptStyle selects the instruction set sent with each chunk.
type PromptStyle string

const (
	// PromptJSON asks for a strict JSON array. Used with API-backed models.
	PromptJSON PromptStyle = "json"

	// PromptCompact asks for one "Page X, Line Y" finding per line. Used with
	// external CLI analyzers, whose answers the markdown strategy parses.
	PromptCompact PromptStyle = "compact"
)

// ParsePromptStyle maps a config value to a PromptStyle. Empty selects
// [PromptJSON].
func ParsePromptStyle(s string) (PromptStyle, error) {
	switch PromptStyle(strings.ToLower(strings.TrimSpace(s))) {
	case "", PromptJSON:
		return PromptJSON, nil
	case PromptCompact:
		return PromptCompact, nil
	default:
		return "", fmt.Errorf("proofread: unknown prompt style %q", s)
	}
}

const systemPrompt = `You are an expert proofreader for court deposition transcripts. Your job is to identify errors in the transcript text.

Types of errors to look for:
1. TYPOS - Missing letters, wrong letters, transposed letters (e.g., "cheeking" -> "checking", "haves" -> "have")
2. GRAMMAR - Subject-verb agreement, tense errors (e.g., "we ever needs" -> "we ever need")
3. SPELLING - Misspelled words
4. PUNCTUATION - Missing periods, wrong punctuation (e.g., "MR," -> "MR.")
5. MISSING_WORD - Words that appear to be missing (e.g., "that you money in" -> "that you put money in")
6. EXTRA_WORD - Duplicate or unnecessary words (e.g., "the he e-mail" -> "the e-mail")
7. UNTRANSLATED_STENO - Steno codes that were not translated (e.g., "/PWURGS", "(/REPBLDZ)")
8. INCONSISTENCY - Names or addresses that do not match earlier references

Guidelines:
- Court transcripts record SPOKEN words. Ungrammatical speech by a witness is NOT an error.
- Only flag clear transcription or typing errors, not speech patterns.
- Q. and A. mark question and answer and are standard formatting.
- Speaker labels like "MR. SMITH:" and "THE WITNESS:" are standard.
- Be conservative: only flag errors you are confident about.
- If a passage is garbled but you cannot say what it should be, use errorType "needs_review".

For each error provide:
- pageNumber: the page number where the error occurs
- lineNumber: the line number (1-25) where the error occurs
- errorText: the exact erroneous text
- correction: the suggested correction
- errorType: one of typo, grammar, spelling, punctuation, missing_word, extra_word, untranslated_steno, inconsistency, needs_review, other
- confidence: 0.0 to 1.0

Respond with a JSON array of errors. If no errors are found, respond with an empty array [].`

const userPromptTemplate = `Please proofread the following court transcript pages and identify any errors.
%s
TRANSCRIPT:
%s

Respond ONLY with a valid JSON array of error objects. Example format:
[
  {
    "pageNumber": 52,
    "lineNumber": 20,
    "errorText": "if we ever needs funds",
    "correction": "if we ever need funds",
    "errorType": "grammar",
    "confidence": 0.95
  }
]

If no errors are found, respond with: []`

const compactPromptTemplate = `Proofread this court transcript for errors. List each error as:
Page X, Line Y: "error" should be "correction" (type)

Find typos, grammar errors, extra words, and unclear text.
If there are no errors, answer: No errors found.
%s
TRANSCRIPT:
%s`

// Prompt is the rendered instruction pair for one chunk.
type Prompt struct {
	System string
	User   string
}

// BuildPrompt renders the prompt for a serialized chunk. speakers lists the
// speaker tags seen anywhere in the transcript and is sent as reference for
// inconsistency checks.
func BuildPrompt(style PromptStyle, chunkText string, speakers []string) Prompt {
	ref := speakerSection(speakers)
	if style == PromptCompact {
		return Prompt{User: fmt.Sprintf(compactPromptTemplate, ref, chunkText)}
	}
	return Prompt{
		System: systemPrompt,
		User:   fmt.Sprintf(userPromptTemplate, ref, chunkText),
	}
}

func speakerSection(speakers []string) string {
	if len(speakers) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("\nSpeakers appearing in this transcript (canonical spellings):\n")
	for _, s := range speakers {
		b.WriteString("- ")
		b.WriteString(s)
		b.WriteByte('\n')
	}
	return b.String()
}
