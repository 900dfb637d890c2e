package proofread

import (
	"bytes"
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
)

const (
	// DefaultConfidence is assigned to records that carry no usable confidence.
	DefaultConfidence = 0.8

	// ReviewConfidence is assigned to needs-review records recovered from a
	// single quoted span.
	ReviewConfidence = 0.6

	// ReviewCorrection is the placeholder correction of needs-review records.
	ReviewCorrection = "Needs review"
)

// RawRecord is one error record as an analyzer reported it, before
// defaults, kind normalization and deduplication. Numeric fields accept
// numbers or numeric strings; zero means absent.
type RawRecord struct {
	PageNumber flexInt   `json:"pageNumber"`
	LineNumber flexInt   `json:"lineNumber"`
	ErrorText  string    `json:"errorText"`
	Correction string    `json:"correction"`
	ErrorType  string    `json:"errorType"`
	Confidence flexFloat `json:"confidence"`
	Context    string    `json:"context"`
}

// NewRawRecord builds a RawRecord from plain values.
func NewRawRecord(page, line int, errorText, correction, kind string, confidence float64) RawRecord {
	return RawRecord{
		PageNumber: flexInt(page),
		LineNumber: flexInt(line),
		ErrorText:  errorText,
		Correction: correction,
		ErrorType:  kind,
		Confidence: flexFloat(confidence),
	}
}

// flexInt decodes a JSON number or numeric string. Anything else is 0.
type flexInt int

func (f *flexInt) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(bytes.TrimSpace(b)), `"`)
	if n, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
		*f = flexInt(n)
	} else {
		*f = 0
	}
	return nil
}

// flexFloat decodes a JSON number or numeric string. Anything else is 0.
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(bytes.TrimSpace(b)), `"`)
	if n, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
		*f = flexFloat(n)
	} else {
		*f = 0
	}
	return nil
}

// Strategy extracts raw records from an analyzer response. ok reports that
// the strategy recognized a well-formed answer, which may legitimately hold
// zero records.
type Strategy interface {
	Name() string
	Extract(response string) (records []RawRecord, ok bool)
}

// DefaultStrategies returns the response strategies in the order they are
// tried: fenced JSON, bare JSON, then markdown and free text.
func DefaultStrategies() []Strategy {
	return []Strategy{FencedJSON{}, BareJSON{}, Markdown{}}
}

// decodeRecords accepts a JSON array of records or an object wrapping one
// under "errors".
func decodeRecords(s string) ([]RawRecord, bool) {
	s = strings.TrimSpace(s)
	var recs []RawRecord
	if err := json.Unmarshal([]byte(s), &recs); err == nil {
		return recs, true
	}
	var wrapped struct {
		Errors *[]RawRecord `json:"errors"`
	}
	if err := json.Unmarshal([]byte(s), &wrapped); err == nil && wrapped.Errors != nil {
		return *wrapped.Errors, true
	}
	return nil, false
}

var fencedRe = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)```")

// FencedJSON parses the first markdown code block as JSON.
type FencedJSON struct{}

func (FencedJSON) Name() string { return "fenced_json" }

func (FencedJSON) Extract(response string) ([]RawRecord, bool) {
	m := fencedRe.FindStringSubmatch(response)
	if m == nil {
		return nil, false
	}
	return decodeRecords(m[1])
}

var bareArrayRe = regexp.MustCompile(`(?s)\[\s*\{.*?\}\s*\]`)

// BareJSON parses the first array-of-objects substring of the response,
// falling back to the widest bracketed span.
type BareJSON struct{}

func (BareJSON) Name() string { return "bare_json" }

func (BareJSON) Extract(response string) ([]RawRecord, bool) {
	if m := bareArrayRe.FindString(response); m != "" {
		if recs, ok := decodeRecords(m); ok {
			return recs, true
		}
	}
	start, end := strings.IndexByte(response, '['), strings.LastIndexByte(response, ']')
	if start >= 0 && end > start {
		return decodeRecords(response[start : end+1])
	}
	return nil, false
}

var (
	tableRowRe = regexp.MustCompile(`\|\s*(\d+)\s*\|\s*(\d+)\s*\|\s*"?([^"|]+)"?\s*\|\s*"?([^"|]+)"?\s*\|\s*([^|]+)\s*\|?`)
	locationRe = regexp.MustCompile(`(?i)Page\s+(\d+),?\s*Line\s+(\d+)`)
	pairRes    = []*regexp.Regexp{
		regexp.MustCompile(`(?i)["“”]([^"“”]+)["“”]\s*(?:should be|->|→|=>)\s*["“”]([^"“”]+)["“”]`),
		regexp.MustCompile(`(?i)["'‘’]([^"'‘’]+)["'‘’]\s*(?:should be|->|→|=>)\s*["'‘’]([^"'‘’]+)["'‘’]`),
	}
	trailingKindRe = regexp.MustCompile(`\(([^)]+)\)\s*$`)
	quotedSpanRe   = regexp.MustCompile(`["“”]([^"“”]+)["“”]`)
)

// Markdown scans the response line by line for pipe table rows and
// "Page N, Line M" findings.
type Markdown struct{}

func (Markdown) Name() string { return "markdown" }

func (Markdown) Extract(response string) ([]RawRecord, bool) {
	var out []RawRecord
	for _, line := range strings.Split(response, "\n") {
		rec, ok := markdownRecord(line)
		if !ok {
			continue
		}
		text := strings.ToLower(strings.TrimSpace(rec.ErrorText))
		if text == "error" || text == "---" {
			continue
		}
		out = append(out, rec)
	}
	return out, len(out) > 0
}

func markdownRecord(line string) (RawRecord, bool) {
	if m := tableRowRe.FindStringSubmatch(line); m != nil {
		page, _ := strconv.Atoi(m[1])
		ln, _ := strconv.Atoi(m[2])
		return RawRecord{
			PageNumber: flexInt(page),
			LineNumber: flexInt(ln),
			ErrorText:  strings.Trim(strings.TrimSpace(m[3]), `"`),
			Correction: strings.Trim(strings.TrimSpace(m[4]), `"`),
			ErrorType:  strings.TrimSpace(m[5]),
		}, page > 0 && ln > 0
	}

	loc := locationRe.FindStringSubmatch(line)
	if loc == nil {
		return RawRecord{}, false
	}
	page, _ := strconv.Atoi(loc[1])
	ln, _ := strconv.Atoi(loc[2])
	if page == 0 || ln == 0 {
		return RawRecord{}, false
	}
	rec := RawRecord{PageNumber: flexInt(page), LineNumber: flexInt(ln)}

	for _, re := range pairRes {
		if m := re.FindStringSubmatch(line); m != nil {
			rec.ErrorText, rec.Correction, rec.ErrorType = m[1], m[2], string(KindOther)
			if k := trailingKindRe.FindStringSubmatch(line); k != nil {
				rec.ErrorType = k[1]
			}
			return rec, true
		}
	}
	if m := quotedSpanRe.FindStringSubmatch(line); m != nil {
		rec.ErrorText = m[1]
		rec.Correction = ReviewCorrection
		rec.ErrorType = string(KindNeedsReview)
		rec.Confidence = ReviewConfidence
		return rec, true
	}
	return RawRecord{}, false
}

// Status describes how a response was interpreted.
type Status int

const (
	// StatusParsed means a strategy produced at least one record.
	StatusParsed Status = iota
	// StatusEmpty means the analyzer explicitly reported no errors.
	StatusEmpty
	// StatusUnparseable means nothing could be recovered. The chunk counts
	// as clean, but the outcome is logged and counted.
	StatusUnparseable
)

func (s Status) String() string {
	switch s {
	case StatusParsed:
		return "parsed"
	case StatusEmpty:
		return "empty"
	case StatusUnparseable:
		return "unparseable"
	default:
		return "unknown"
	}
}

// Outcome is the normalized form of one analyzer response.
type Outcome struct {
	Errors   []TranscriptError
	Status   Status
	Strategy string
}

// Normalizer converts analyzer responses into canonical error records.
// It is stateless and safe for concurrent use.
type Normalizer struct {
	strategies []Strategy
}

// NewNormalizer returns a Normalizer trying strategies in order. With no
// strategies, [DefaultStrategies] are used.
func NewNormalizer(strategies ...Strategy) *Normalizer {
	if len(strategies) == 0 {
		strategies = DefaultStrategies()
	}
	return &Normalizer{strategies: strategies}
}

// Normalize interprets response. firstPage is the first page of the chunk
// the response belongs to; records without a page are attributed to it.
func (n *Normalizer) Normalize(response string, firstPage int) Outcome {
	explicit := false
	for _, s := range n.strategies {
		recs, ok := s.Extract(response)
		if !ok {
			continue
		}
		if errs := Canonicalize(recs, firstPage); len(errs) > 0 {
			return Outcome{Errors: errs, Status: StatusParsed, Strategy: s.Name()}
		}
		if len(recs) == 0 {
			explicit = true
		}
	}
	if explicit || IsExplicitEmpty(response) {
		return Outcome{Status: StatusEmpty, Strategy: "none"}
	}
	return Outcome{Status: StatusUnparseable, Strategy: "none"}
}

// IsExplicitEmpty reports whether response says there is nothing to fix:
// blank, containing "[]", or mentioning "no errors".
func IsExplicitEmpty(response string) bool {
	t := strings.TrimSpace(response)
	return t == "" || strings.Contains(t, "[]") || strings.Contains(strings.ToLower(t), "no errors")
}

// Canonicalize applies defaults, kind normalization, confidence clamping and
// deduplication to raw records. Records with empty error text are dropped.
// The first occurrence of an identity triple wins.
func Canonicalize(recs []RawRecord, firstPage int) []TranscriptError {
	if firstPage < 1 {
		firstPage = 1
	}
	out := make([]TranscriptError, 0, len(recs))
	seen := make(map[errorKey]struct{}, len(recs))
	for _, r := range recs {
		text := strings.TrimSpace(r.ErrorText)
		if text == "" {
			continue
		}
		e := TranscriptError{
			PageNumber: int(r.PageNumber),
			LineNumber: int(r.LineNumber),
			ErrorText:  text,
			Correction: strings.TrimSpace(r.Correction),
			ErrorType:  NormalizeErrorKind(r.ErrorType),
			Confidence: float64(r.Confidence),
			Context:    strings.TrimSpace(r.Context),
		}
		if e.PageNumber <= 0 {
			e.PageNumber = firstPage
		}
		if e.LineNumber <= 0 {
			e.LineNumber = 1
		}
		if strings.TrimSpace(r.ErrorType) == "" {
			e.ErrorType = KindOther
		}
		if e.Confidence == 0 {
			e.Confidence = DefaultConfidence
		}
		e.Confidence = min(1, max(0, e.Confidence))

		if _, dup := seen[e.key()]; dup {
			continue
		}
		seen[e.key()] = struct{}{}
		out = append(out, e)
	}
	return out
}
