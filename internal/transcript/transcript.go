// Package transcript recovers the page and line structure of court-reporter
// transcripts exported as plain text by CAT software.
//
// CAT exports carry no explicit delimiters. Structure is inferred from layout:
//
//  1. A line whose only token is a number and which is indented by at least
//     [PageMarkerMinIndent] whitespace characters is a page-number marker.
//     The marker is printed at the BOTTOM of a page, so it closes the page
//     whose content preceded it.
//  2. A line that starts with a one- or two-digit number in
//     [MinLineNumber]..[MaxLineNumber], followed by at least two whitespace
//     characters and some text, is a numbered content line.
//  3. Everything else (blank lines, headers, stray text) is kept only in the
//     page's raw text.
//
// When no structure can be recovered at all, [Parse] falls back to generic
// paging: non-blank lines are grouped into pages of [GenericLinesPerPage].
//
// The package also partitions a transcript into page-bounded chunks ([Chunk])
// and renders chunks into the line-addressed text payload sent to analyzers
// ([ChunkToText]).
package transcript

import (
	"errors"
	"strings"
	"time"
)

var (
	// ErrEmptyInput is returned by [Parse] when the input contains no
	// non-whitespace characters.
	ErrEmptyInput = errors.New("transcript: empty input")

	// ErrNoPages is returned by [Parse] when neither structural parsing nor
	// generic paging produced a single page.
	ErrNoPages = errors.New("transcript: no pages could be parsed")
)

// Line is a single numbered line of testimony.
type Line struct {
	// LineNumber is the left-margin line number, 1..25.
	LineNumber int `json:"lineNumber"`

	// Content is the text after the line number, untrimmed.
	Content string `json:"content"`

	// Speaker is the leading speaker tag found in Content ("Q.", "MR. SMITH:",
	// "THE WITNESS:", ...). Empty when the line carries none.
	Speaker string `json:"speaker,omitempty"`
}

// Page is one transcript page. Lines are kept in arrival order.
type Page struct {
	PageNumber int    `json:"pageNumber"`
	Lines      []Line `json:"lines"`
	RawText    string `json:"rawText"`
}

// Metadata describes how a transcript was parsed.
type Metadata struct {
	FileName    string    `json:"fileName"`
	ProcessedAt time.Time `json:"processedAt"`

	// IsGenericText is set when no page structure was detected and pages were
	// synthesised by generic paging.
	IsGenericText bool `json:"isGenericText,omitempty"`

	// DetectedFormat is a short label of the layout that was recognised.
	DetectedFormat string `json:"detectedFormat,omitempty"`
}

// Detected format labels.
const (
	FormatCAT     = "cat"
	FormatGeneric = "generic"
)

// Parsed is the structural view of one transcript.
type Parsed struct {
	Pages []Page `json:"pages"`

	// TotalPages is the highest page marker seen, or len(Pages) when no marker
	// was found. It can exceed len(Pages) when trailing content is never
	// closed by a marker, or when marked pages had no numbered lines.
	TotalPages int `json:"totalPages"`

	// TotalLines is the number of numbered lines across all pages.
	TotalLines int `json:"totalLines"`

	Metadata Metadata `json:"metadata"`
}

// Page returns the page with the given number and reports whether it exists.
func (p *Parsed) Page(number int) (Page, bool) {
	for _, pg := range p.Pages {
		if pg.PageNumber == number {
			return pg, true
		}
	}
	return Page{}, false
}

// Line returns the content line addressed by page and line number. When the
// page holds the same line number more than once, the first occurrence wins.
func (p *Parsed) Line(page, line int) (Line, bool) {
	pg, ok := p.Page(page)
	if !ok {
		return Line{}, false
	}
	for _, l := range pg.Lines {
		if l.LineNumber == line {
			return l, true
		}
	}
	return Line{}, false
}

// Speakers returns the distinct speaker tags in first-seen order. Tags that
// differ only in case or spacing count once, under the first spelling seen.
// Question and answer markers are excluded.
func (p *Parsed) Speakers() []string {
	seen := make(map[string]bool)
	var out []string
	for _, pg := range p.Pages {
		for _, l := range pg.Lines {
			if l.Speaker == "" || isQAMarker(l.Speaker) {
				continue
			}
			key := strings.ToUpper(strings.Join(strings.Fields(l.Speaker), " "))
			if seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, l.Speaker)
		}
	}
	return out
}
