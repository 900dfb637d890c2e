package transcript

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

// Layout thresholds used by the classifier.
const (
	// PageMarkerMinIndent is the minimum number of leading whitespace
	// characters a right-aligned page number must carry.
	PageMarkerMinIndent = 40

	// MinPageNumber and MaxPageNumber bound accepted page markers.
	MinPageNumber = 1
	MaxPageNumber = 9999

	// MinLineNumber and MaxLineNumber bound the left-margin line numbers of a
	// standard 25-line transcript page.
	MinLineNumber = 1
	MaxLineNumber = 25

	// GenericLinesPerPage is the page size used by generic paging.
	GenericLinesPerPage = 25
)

// Kind is the classification of a single input line.
type Kind int

const (
	// KindOther is a line that is neither a page marker nor a content line.
	KindOther Kind = iota

	// KindPageMarker is a right-aligned page number.
	KindPageMarker

	// KindContent is a numbered content line.
	KindContent
)

// String returns the lower-case name of the kind.
func (k Kind) String() string {
	switch k {
	case KindPageMarker:
		return "page_marker"
	case KindContent:
		return "content"
	default:
		return "other"
	}
}

// Classification is the result of [Classify].
type Classification struct {
	Kind Kind

	// PageNumber is set when Kind is KindPageMarker.
	PageNumber int

	// Line is set when Kind is KindContent.
	Line Line
}

var contentLineRe = regexp.MustCompile(`^\s*(\d{1,2})\s{2,}(.+)$`)

// speakerPatterns are tried in order; the first match wins.
var speakerPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^(Q\.|A\.)`),
	regexp.MustCompile(`(?i)^(MR\.\s+\w+:|MS\.\s+\w+:|MRS\.\s+\w+:)`),
	regexp.MustCompile(`(?i)^(THE\s+\w+:)`),
	regexp.MustCompile(`(?i)^(BY\s+MR\.\s+\w+:|BY\s+MS\.\s+\w+:)`),
}

// Classify decides whether line is a page marker, a content line, or neither.
// The page-marker test runs first, so a deeply indented bare number is never
// taken for a content line.
func Classify(line string) Classification {
	if n, ok := PageMarker(line); ok {
		return Classification{Kind: KindPageMarker, PageNumber: n}
	}
	if l, ok := ContentLine(line); ok {
		return Classification{Kind: KindContent, Line: l}
	}
	return Classification{Kind: KindOther}
}

// PageMarker reports whether line is a right-aligned page number and returns
// the number.
func PageMarker(line string) (int, bool) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" || !allDigits(trimmed) {
		return 0, false
	}
	n, err := strconv.Atoi(trimmed)
	if err != nil || n < MinPageNumber || n > MaxPageNumber {
		return 0, false
	}
	if leadingWhitespace(line) < PageMarkerMinIndent {
		return 0, false
	}
	return n, true
}

// ContentLine reports whether line is a numbered content line and returns
// the parsed [Line].
func ContentLine(line string) (Line, bool) {
	m := contentLineRe.FindStringSubmatch(line)
	if m == nil {
		return Line{}, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil || n < MinLineNumber || n > MaxLineNumber {
		return Line{}, false
	}
	content := m[2]
	if strings.TrimSpace(content) == "" {
		return Line{}, false
	}
	return Line{
		LineNumber: n,
		Content:    content,
		Speaker:    DetectSpeaker(content),
	}, true
}

// DetectSpeaker returns the speaker tag at the start of content, or "".
func DetectSpeaker(content string) string {
	for _, re := range speakerPatterns {
		if m := re.FindStringSubmatch(content); m != nil {
			return m[1]
		}
	}
	return ""
}

func isQAMarker(speaker string) bool {
	s := strings.ToUpper(speaker)
	return s == "Q." || s == "A."
}

// leadingWhitespace counts leading whitespace runes.
func leadingWhitespace(s string) int {
	n := 0
	for _, r := range s {
		if !unicode.IsSpace(r) {
			break
		}
		n++
	}
	return n
}

func allDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
