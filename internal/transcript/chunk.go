package transcript

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Default chunk bounds for the two analysis modes.
const (
	// DefaultChunkPages is used by the server's whole-transcript analysis.
	DefaultChunkPages = 15

	// DefaultReviewChunkPages is used by the fine-grained reviewer mode.
	DefaultReviewChunkPages = 5
)

// Chunk partitions pages into contiguous groups of at most maxPages pages.
// Order is preserved and no page is split; the last group may be shorter.
// A bound below 1 is treated as 1. The returned chunks share the backing
// array of pages.
func Chunk(pages []Page, maxPages int) [][]Page {
	if maxPages < 1 {
		maxPages = 1
	}
	chunks := make([][]Page, 0, (len(pages)+maxPages-1)/maxPages)
	for start := 0; start < len(pages); start += maxPages {
		end := min(start+maxPages, len(pages))
		chunks = append(chunks, pages[start:end:end])
	}
	return chunks
}

// ChunkToText renders pages into the analyzer payload. Each page starts with
// a "--- PAGE N ---" header followed by "lineNumber: content" lines, or by
// the page's raw text when it has no numbered lines.
func ChunkToText(pages []Page) string {
	parts := make([]string, len(pages))
	for i, pg := range pages {
		var b strings.Builder
		fmt.Fprintf(&b, "\n--- PAGE %d ---\n", pg.PageNumber)
		if len(pg.Lines) > 0 {
			for j, l := range pg.Lines {
				if j > 0 {
					b.WriteByte('\n')
				}
				b.WriteString(strconv.Itoa(l.LineNumber))
				b.WriteString(": ")
				b.WriteString(l.Content)
			}
		} else {
			b.WriteString(pg.RawText)
		}
		parts[i] = b.String()
	}
	return strings.Join(parts, "\n")
}

// TextLine is a line recovered from a [ChunkToText] payload.
type TextLine struct {
	PageNumber int
	LineNumber int
	Content    string
}

var (
	pageHeaderRe = regexp.MustCompile(`^--- PAGE (\d+) ---$`)
	textLineRe   = regexp.MustCompile(`^(\d{1,2}): (.*)$`)
)

// ParseChunkText recovers the addressed lines from a [ChunkToText] payload.
// Text before the first page header and lines without a "N: " prefix are
// skipped.
func ParseChunkText(text string) []TextLine {
	var (
		out  []TextLine
		page int
	)
	for _, line := range strings.Split(NormalizeNewlines(text), "\n") {
		if m := pageHeaderRe.FindStringSubmatch(line); m != nil {
			page, _ = strconv.Atoi(m[1])
			continue
		}
		if page == 0 {
			continue
		}
		m := textLineRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		n, _ := strconv.Atoi(m[1])
		out = append(out, TextLine{PageNumber: page, LineNumber: n, Content: m[2]})
	}
	return out
}

// FirstPageNumber returns the number of the first page in a chunk, or 1 for
// an empty chunk.
func FirstPageNumber(pages []Page) int {
	if len(pages) == 0 {
		return 1
	}
	return pages[0].PageNumber
}
