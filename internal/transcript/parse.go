package transcript

import (
	"log/slog"
	"strings"
	"time"
)

// ParseOption configures [Parse].
type ParseOption func(*parseConfig)

type parseConfig struct {
	now    func() time.Time
	logger *slog.Logger
}

// WithClock overrides the clock used to stamp Metadata.ProcessedAt.
func WithClock(now func() time.Time) ParseOption {
	return func(c *parseConfig) {
		if now != nil {
			c.now = now
		}
	}
}

// WithLogger sets the logger used for structural debug output.
func WithLogger(l *slog.Logger) ParseOption {
	return func(c *parseConfig) {
		if l != nil {
			c.logger = l
		}
	}
}

// NormalizeNewlines converts CRLF and lone CR line endings to LF.
func NormalizeNewlines(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	return strings.ReplaceAll(text, "\r", "\n")
}

// Parse recovers the page/line structure of text. fileName is recorded in the
// metadata only.
//
// Parse returns [ErrEmptyInput] when text is blank. Input that is not blank
// always yields at least one page: when no CAT layout is found, generic
// paging is used and Metadata.IsGenericText is set.
func Parse(text, fileName string, opts ...ParseOption) (*Parsed, error) {
	cfg := parseConfig{now: time.Now, logger: slog.Default()}
	for _, o := range opts {
		o(&cfg)
	}

	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyInput
	}

	lines := strings.Split(NormalizeNewlines(text), "\n")
	s := &structurer{log: cfg.logger}
	for i, line := range lines {
		s.feed(i+1, line)
	}
	s.flush()

	if len(s.pages) == 0 {
		cfg.logger.Debug("no transcript structure detected, using generic paging",
			"file", fileName, "lines", len(lines))
		p := genericPages(lines)
		if len(p.Pages) == 0 {
			return nil, ErrNoPages
		}
		p.Metadata = Metadata{
			FileName:       fileName,
			ProcessedAt:    cfg.now().UTC(),
			IsGenericText:  true,
			DetectedFormat: FormatGeneric,
		}
		return p, nil
	}

	totalPages := s.lastMarker
	if totalPages <= 0 {
		totalPages = len(s.pages)
	}
	totalLines := 0
	for _, pg := range s.pages {
		totalLines += len(pg.Lines)
	}

	cfg.logger.Debug("transcript parsed",
		"file", fileName,
		"pages", len(s.pages),
		"total_pages", totalPages,
		"total_lines", totalLines,
	)

	return &Parsed{
		Pages:      s.pages,
		TotalPages: totalPages,
		TotalLines: totalLines,
		Metadata: Metadata{
			FileName:       fileName,
			ProcessedAt:    cfg.now().UTC(),
			DetectedFormat: FormatCAT,
		},
	}, nil
}

// structurer is the page-assembly state machine. A page marker is a trailing
// footer: it closes the page accumulated before it and the next page is
// numbered marker+1.
type structurer struct {
	log *slog.Logger

	open       bool // an accumulator exists
	number     int  // page number of the open accumulator
	lines      []Line
	raw        []string
	lastMarker int

	pages   []Page
	emitted map[int]bool
}

func (s *structurer) feed(lineNo int, line string) {
	if n, ok := PageMarker(line); ok && n > s.lastMarker {
		s.log.Debug("page marker", "page", n, "input_line", lineNo)
		switch {
		case !s.open:
			// Everything gathered so far belongs to this marker's page.
			s.push(n)
		case len(s.lines) > 0:
			s.push(s.number)
		}
		s.open = true
		s.number = n + 1
		s.lines = nil
		s.raw = nil
		s.lastMarker = n
		return
	}

	if l, ok := ContentLine(line); ok {
		if !s.open {
			s.open = true
			s.number = 1
		}
		s.lines = append(s.lines, l)
	}

	if s.open || strings.TrimSpace(line) != "" {
		s.raw = append(s.raw, line)
	}
}

// flush emits the open accumulator at end of input unless it is empty or its
// number was already emitted.
func (s *structurer) flush() {
	if !s.open || len(s.lines) == 0 || s.emitted[s.number] {
		return
	}
	s.push(s.number)
}

func (s *structurer) push(number int) {
	if s.emitted == nil {
		s.emitted = make(map[int]bool)
	}
	s.pages = append(s.pages, Page{
		PageNumber: number,
		Lines:      s.lines,
		RawText:    strings.Join(s.raw, "\n"),
	})
	s.emitted[number] = true
	s.log.Debug("page closed", "page", number, "lines", len(s.lines))
}

// genericPages groups non-blank lines into pages of GenericLinesPerPage.
// Content is trimmed and no speaker is inferred.
func genericPages(lines []string) *Parsed {
	var nonBlank []string
	for _, l := range lines {
		if strings.TrimSpace(l) != "" {
			nonBlank = append(nonBlank, l)
		}
	}

	p := &Parsed{}
	for start := 0; start < len(nonBlank); start += GenericLinesPerPage {
		end := min(start+GenericLinesPerPage, len(nonBlank))
		window := nonBlank[start:end]
		page := Page{
			PageNumber: start/GenericLinesPerPage + 1,
			Lines:      make([]Line, len(window)),
			RawText:    strings.Join(window, "\n"),
		}
		for i, content := range window {
			page.Lines[i] = Line{LineNumber: i + 1, Content: strings.TrimSpace(content)}
		}
		p.Pages = append(p.Pages, page)
	}
	p.TotalPages = len(p.Pages)
	p.TotalLines = len(nonBlank)
	return p
}
