package cli

import (
	"io"
	"strings"
	"testing"
)

func TestCappedBuffer_CopyHonoursLimit(t *testing.T) {
	t.Parallel()

	var dst io.Writer = &cappedBuffer{limit: 8}
	if _, ok := dst.(io.ReaderFrom); ok {
		t.Fatal("cappedBuffer implements io.ReaderFrom; io.Copy would skip the cap")
	}

	n, err := io.Copy(dst, strings.NewReader("0123456789abcdefghijklmnop"))
	if err != nil {
		t.Fatalf("io.Copy: %v", err)
	}
	if n != 26 {
		t.Errorf("copied %d bytes, want 26 (excess is discarded, not refused)", n)
	}

	c := dst.(*cappedBuffer)
	if !c.overflow {
		t.Error("overflow not recorded")
	}
	if got := c.String(); got != "01234567" {
		t.Errorf("kept %q, want %q", got, "01234567")
	}
}

func TestCappedBuffer_UnderLimit(t *testing.T) {
	t.Parallel()

	c := &cappedBuffer{limit: 64}
	_, _ = io.WriteString(c, "[]")
	_, _ = io.WriteString(c, "\n")
	if c.overflow || c.String() != "[]\n" {
		t.Errorf("overflow=%v content=%q", c.overflow, c.String())
	}
}
