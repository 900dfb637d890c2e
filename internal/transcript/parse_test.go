package transcript_test

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/MrWong99/stenoproof/internal/transcript"
)

// catLine renders a numbered content line the way CAT exports do.
func catLine(n int, content string) string {
	return fmt.Sprintf("%s%d%s%s", indent(8), n, indent(8), content)
}

// marker renders a right-aligned page footer.
func marker(n int) string {
	return fmt.Sprintf("%s%d", indent(45), n)
}

func join(lines ...string) string { return strings.Join(lines, "\n") }

var fixedNow = func() time.Time { return time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC) }

func TestParse_SinglePageScenario(t *testing.T) {
	t.Parallel()

	text := join(
		catLine(1, "Q. State your name."),
		catLine(2, "A. John Doe."),
		catLine(3, "Q. Thank you."),
		marker(1),
	)

	p, err := transcript.Parse(text, "depo.txt", transcript.WithClock(fixedNow))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(p.Pages) != 1 {
		t.Fatalf("len(Pages) = %d, want 1", len(p.Pages))
	}
	if p.Pages[0].PageNumber != 1 {
		t.Errorf("PageNumber = %d, want 1", p.Pages[0].PageNumber)
	}
	if len(p.Pages[0].Lines) != 3 {
		t.Errorf("len(Lines) = %d, want 3", len(p.Pages[0].Lines))
	}
	if p.TotalPages != 1 {
		t.Errorf("TotalPages = %d, want 1", p.TotalPages)
	}
	if p.TotalLines != 3 {
		t.Errorf("TotalLines = %d, want 3", p.TotalLines)
	}
	if p.Metadata.FileName != "depo.txt" {
		t.Errorf("FileName = %q, want %q", p.Metadata.FileName, "depo.txt")
	}
	if !p.Metadata.ProcessedAt.Equal(fixedNow()) {
		t.Errorf("ProcessedAt = %v, want %v", p.Metadata.ProcessedAt, fixedNow())
	}
	if p.Metadata.IsGenericText {
		t.Error("IsGenericText = true, want false")
	}
	if p.Metadata.DetectedFormat != transcript.FormatCAT {
		t.Errorf("DetectedFormat = %q, want %q", p.Metadata.DetectedFormat, transcript.FormatCAT)
	}
}

func TestParse_PageNumberInversion(t *testing.T) {
	t.Parallel()

	text := join(
		catLine(1, "Q. page one, first line"),
		catLine(2, "A. page one, second line"),
		marker(1),
		catLine(1, "Q. page two, first line"),
		catLine(2, "A. page two, second line"),
		catLine(3, "Q. page two, third line"),
		marker(2),
	)

	p, err := transcript.Parse(text, "inv.txt")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(p.Pages) != 2 {
		t.Fatalf("len(Pages) = %d, want 2", len(p.Pages))
	}
	for i, want := range []struct {
		number int
		lines  int
		prefix string
	}{
		{1, 2, "Q. page one"},
		{2, 3, "Q. page two"},
	} {
		pg := p.Pages[i]
		if pg.PageNumber != want.number {
			t.Errorf("Pages[%d].PageNumber = %d, want %d", i, pg.PageNumber, want.number)
		}
		if len(pg.Lines) != want.lines {
			t.Errorf("Pages[%d] has %d lines, want %d", i, len(pg.Lines), want.lines)
		}
		if !strings.HasPrefix(pg.Lines[0].Content, want.prefix) {
			t.Errorf("Pages[%d].Lines[0].Content = %q, want prefix %q", i, pg.Lines[0].Content, want.prefix)
		}
	}
	if p.TotalPages != 2 {
		t.Errorf("TotalPages = %d, want 2", p.TotalPages)
	}
}

func TestParse_TrailingContentWithoutMarker(t *testing.T) {
	t.Parallel()

	text := join(
		catLine(1, "Q. first"),
		marker(1),
		catLine(1, "Q. second"),
		marker(2),
		catLine(1, "Q. trailing, never closed"),
	)

	p, err := transcript.Parse(text, "t.txt")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(p.Pages) != 3 {
		t.Fatalf("len(Pages) = %d, want 3", len(p.Pages))
	}
	if got := p.Pages[2].PageNumber; got != 3 {
		t.Errorf("trailing page number = %d, want 3", got)
	}
	// TotalPages follows the last marker, not the pages produced.
	if p.TotalPages != 2 {
		t.Errorf("TotalPages = %d, want 2 (last marker)", p.TotalPages)
	}
}

func TestParse_MarkersWithoutContentDiverge(t *testing.T) {
	t.Parallel()

	// Page 2 holds only unnumbered text, so it is never emitted while its
	// marker still counts towards TotalPages.
	text := join(
		catLine(1, "Q. first"),
		marker(1),
		"EXHIBIT PAGE",
		marker(2),
		catLine(1, "Q. third"),
		marker(3),
	)

	p, err := transcript.Parse(text, "t.txt")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	var numbers []int
	for _, pg := range p.Pages {
		numbers = append(numbers, pg.PageNumber)
	}
	if fmt.Sprint(numbers) != "[1 3]" {
		t.Errorf("page numbers = %v, want [1 3]", numbers)
	}
	if p.TotalPages != 3 {
		t.Errorf("TotalPages = %d, want 3", p.TotalPages)
	}
}

func TestParse_FirstMarkerWithoutOpenPage(t *testing.T) {
	t.Parallel()

	text := join(
		"CAPTION",
		"IN THE MATTER OF",
		marker(1),
		catLine(1, "Q. Begin."),
		marker(2),
	)

	p, err := transcript.Parse(text, "t.txt")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(p.Pages) != 2 {
		t.Fatalf("len(Pages) = %d, want 2", len(p.Pages))
	}
	cover := p.Pages[0]
	if cover.PageNumber != 1 || len(cover.Lines) != 0 {
		t.Errorf("cover page = {%d, %d lines}, want {1, 0 lines}", cover.PageNumber, len(cover.Lines))
	}
	if !strings.Contains(cover.RawText, "IN THE MATTER OF") {
		t.Errorf("cover RawText = %q, want caption text", cover.RawText)
	}
	if p.Pages[1].PageNumber != 2 {
		t.Errorf("second page number = %d, want 2", p.Pages[1].PageNumber)
	}
}

func TestParse_LowerMarkerIsIgnored(t *testing.T) {
	t.Parallel()

	text := join(
		catLine(1, "Q. one"),
		marker(5),
		catLine(1, "Q. six"),
		marker(3),
		catLine(2, "A. still six"),
		marker(6),
	)

	p, err := transcript.Parse(text, "t.txt")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(p.Pages) != 2 {
		t.Fatalf("len(Pages) = %d, want 2", len(p.Pages))
	}
	if got := p.Pages[1]; got.PageNumber != 6 || len(got.Lines) != 2 {
		t.Errorf("Pages[1] = {%d, %d lines}, want {6, 2 lines}", got.PageNumber, len(got.Lines))
	}
	if !strings.Contains(p.Pages[1].RawText, marker(3)) {
		t.Error("stale marker missing from raw text")
	}
}

func TestParse_LinesKeepArrivalOrder(t *testing.T) {
	t.Parallel()

	text := join(
		catLine(3, "third"),
		catLine(1, "first"),
		catLine(1, "first again"),
		marker(1),
	)

	p, err := transcript.Parse(text, "t.txt")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	var got []int
	for _, l := range p.Pages[0].Lines {
		got = append(got, l.LineNumber)
	}
	if fmt.Sprint(got) != "[3 1 1]" {
		t.Errorf("line numbers = %v, want [3 1 1]", got)
	}
	if l, ok := p.Line(1, 1); !ok || l.Content != "first" {
		t.Errorf("Line(1, 1) = (%q, %v), want (%q, true)", l.Content, ok, "first")
	}
}

func TestParse_CRLFAndCR(t *testing.T) {
	t.Parallel()

	lf := join(catLine(1, "Q. one"), catLine(2, "A. two"), marker(1))
	for name, text := range map[string]string{
		"crlf": strings.ReplaceAll(lf, "\n", "\r\n"),
		"cr":   strings.ReplaceAll(lf, "\n", "\r"),
	} {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			p, err := transcript.Parse(text, "t.txt")
			if err != nil {
				t.Fatalf("Parse: %v", err)
			}
			if len(p.Pages) != 1 || len(p.Pages[0].Lines) != 2 {
				t.Fatalf("got %d pages, want 1 page with 2 lines", len(p.Pages))
			}
			if strings.ContainsRune(p.Pages[0].Lines[1].Content, '\r') {
				t.Errorf("content still carries CR: %q", p.Pages[0].Lines[1].Content)
			}
		})
	}
}

func TestParse_GenericFallback(t *testing.T) {
	t.Parallel()

	var lines []string
	for i := range 30 {
		lines = append(lines, fmt.Sprintf("  plain sentence %d  ", i+1))
		if i%7 == 0 {
			lines = append(lines, "   ")
		}
	}

	p, err := transcript.Parse(join(lines...), "notes.txt")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !p.Metadata.IsGenericText {
		t.Error("IsGenericText = false, want true")
	}
	if p.Metadata.DetectedFormat != transcript.FormatGeneric {
		t.Errorf("DetectedFormat = %q, want %q", p.Metadata.DetectedFormat, transcript.FormatGeneric)
	}
	if len(p.Pages) != 2 {
		t.Fatalf("len(Pages) = %d, want 2", len(p.Pages))
	}
	if n := len(p.Pages[0].Lines); n != transcript.GenericLinesPerPage {
		t.Errorf("first page has %d lines, want %d", n, transcript.GenericLinesPerPage)
	}
	if n := len(p.Pages[1].Lines); n != 5 {
		t.Errorf("second page has %d lines, want 5", n)
	}
	second := p.Pages[1].Lines[0]
	if second.LineNumber != 1 || second.Content != "plain sentence 26" || second.Speaker != "" {
		t.Errorf("Pages[1].Lines[0] = %+v, want {1 %q \"\"}", second, "plain sentence 26")
	}
	if p.TotalPages != 2 || p.TotalLines != 30 {
		t.Errorf("TotalPages/TotalLines = %d/%d, want 2/30", p.TotalPages, p.TotalLines)
	}
}

func TestParse_GenericFallbackNeverInfersSpeaker(t *testing.T) {
	t.Parallel()

	p, err := transcript.Parse("Q. Did you see it?\nA. Yes.", "qa.txt")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	for _, l := range p.Pages[0].Lines {
		if l.Speaker != "" {
			t.Errorf("line %d Speaker = %q, want empty", l.LineNumber, l.Speaker)
		}
	}
}

func TestParse_EmptyInput(t *testing.T) {
	t.Parallel()

	for _, text := range []string{"", "   ", "\n\r\n\t"} {
		_, err := transcript.Parse(text, "empty.txt")
		if !errors.Is(err, transcript.ErrEmptyInput) {
			t.Errorf("Parse(%q) err = %v, want ErrEmptyInput", text, err)
		}
	}
}

func TestParsed_Speakers(t *testing.T) {
	t.Parallel()

	text := join(
		catLine(1, "Q. Hello."),
		catLine(2, "MR. SMITH: Objection."),
		catLine(3, "THE WITNESS: Okay."),
		catLine(4, "MR. SMITH: Withdrawn."),
		catLine(5, "A. Fine."),
		marker(1),
	)
	p, err := transcript.Parse(text, "t.txt")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	got := p.Speakers()
	want := []string{"MR. SMITH:", "THE WITNESS:"}
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Errorf("Speakers() = %v, want %v", got, want)
	}
}

func TestParsed_SpeakersIgnoreCaseAndSpacing(t *testing.T) {
	t.Parallel()

	text := join(
		catLine(1, "Mr. Smith: Objection."),
		catLine(2, "MR. SMITH: Withdrawn."),
		catLine(3, "MR.  SMITH: Again."),
		catLine(4, "the witness: Okay."),
		catLine(5, "THE WITNESS: Sure."),
		marker(1),
	)
	p, err := transcript.Parse(text, "t.txt")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	got := p.Speakers()
	want := []string{"Mr. Smith:", "the witness:"}
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Errorf("Speakers() = %q, want %q", got, want)
	}
}
