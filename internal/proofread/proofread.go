// Package proofread turns a parsed transcript into a proofreading result. It
// splits the transcript into chunks, asks an analyzer (normally a language
// model) for the errors in each chunk, normalizes whatever the analyzer
// answers into typed records, and aggregates the records into a summary.
//
// The package owns the error model: [TranscriptError] values are created only
// by the [Normalizer], and [Summarize] is the single place that counts them.
package proofread

import "sort"

// TranscriptError is one defect found in the transcript. The triple
// (PageNumber, LineNumber, ErrorText) identifies it; duplicates are dropped
// during normalization.
type TranscriptError struct {
	PageNumber int       `json:"pageNumber"`
	LineNumber int       `json:"lineNumber"`
	ErrorText  string    `json:"errorText"`
	Correction string    `json:"correction"`
	ErrorType  ErrorKind `json:"errorType"`
	Confidence float64   `json:"confidence"`
	Context    string    `json:"context,omitempty"`
}

type errorKey struct {
	page, line int
	text       string
}

func (e TranscriptError) key() errorKey {
	return errorKey{e.PageNumber, e.LineNumber, e.ErrorText}
}

// Summary holds the aggregate counts of a result. ByType always carries an
// entry for every kind, zero included.
type Summary struct {
	TotalErrors int               `json:"totalErrors"`
	ByType      map[ErrorKind]int `json:"byType"`
	ByPage      map[int]int       `json:"byPage"`
}

// Result is the outcome of proofreading one transcript.
type Result struct {
	Errors         []TranscriptError `json:"errors"`
	Summary        Summary           `json:"summary"`
	ProcessingTime int64             `json:"processingTime"`
	PagesProcessed int               `json:"pagesProcessed"`
	ChunksTotal    int               `json:"chunksTotal"`
	FailedChunks   int               `json:"failedChunks"`
	RunID          string            `json:"runId,omitempty"`
}

// Summarize counts errs in a single pass. It never mutates errs.
func Summarize(errs []TranscriptError) Summary {
	s := Summary{
		TotalErrors: len(errs),
		ByType:      make(map[ErrorKind]int, len(Kinds)),
		ByPage:      make(map[int]int),
	}
	for _, k := range Kinds {
		s.ByType[k] = 0
	}
	for _, e := range errs {
		s.ByType[e.ErrorType]++
		s.ByPage[e.PageNumber]++
	}
	return s
}

// KindCount is one row of a per-kind summary table.
type KindCount struct {
	Kind  ErrorKind
	Count int
}

// RankedKinds returns the kinds with a non-zero count, highest count first.
// Ties keep declaration order.
func (s Summary) RankedKinds() []KindCount {
	out := make([]KindCount, 0, len(s.ByType))
	for k, n := range s.ByType {
		if n > 0 {
			out = append(out, KindCount{Kind: k, Count: n})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Kind.Index() < out[j].Kind.Index()
	})
	return out
}

// SortByLocation returns a copy of errs ordered by page then line. Errors on
// the same line keep their relative order.
func SortByLocation(errs []TranscriptError) []TranscriptError {
	out := make([]TranscriptError, len(errs))
	copy(out, errs)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].PageNumber != out[j].PageNumber {
			return out[i].PageNumber < out[j].PageNumber
		}
		return out[i].LineNumber < out[j].LineNumber
	})
	return out
}
