// Package report renders a proofreading result as a standalone HTML
// document. All interpolated text goes through html/template, so error text
// and corrections coming back from an analyzer can never inject markup.
package report

import (
	"bytes"
	_ "embed"
	"fmt"
	"html/template"
	"io"
	"strconv"
	"time"

	"github.com/MrWong99/stenoproof/internal/proofread"
)

//go:embed report.html.tmpl
var reportSource string

var reportTmpl = template.Must(template.New("report").Parse(reportSource))

// Meta carries the header block values of a report.
type Meta struct {
	FileName    string
	RunID       string
	GeneratedAt time.Time
}

// errorRow is one row of the errors table.
type errorRow struct {
	Location   string
	ErrorText  string
	Correction string
	Kind       string
}

// kindRow is one row of the type-summary table.
type kindRow struct {
	Label string
	Count int
}

type view struct {
	Meta        Meta
	GeneratedAt string
	Pages       int
	TotalErrors int
	Seconds     string
	Failed      int
	Errors      []errorRow
	Kinds       []kindRow
}

// Seconds formats a millisecond duration as seconds with one decimal.
func Seconds(ms int64) string {
	return strconv.FormatFloat(float64(ms)/1000, 'f', 1, 64)
}

func newView(res *proofread.Result, meta Meta) view {
	v := view{
		Meta:        meta,
		Pages:       res.PagesProcessed,
		TotalErrors: res.Summary.TotalErrors,
		Seconds:     Seconds(res.ProcessingTime),
		Failed:      res.FailedChunks,
	}
	if !meta.GeneratedAt.IsZero() {
		v.GeneratedAt = meta.GeneratedAt.Format("2006-01-02 15:04:05 MST")
	}
	for _, e := range proofread.SortByLocation(res.Errors) {
		v.Errors = append(v.Errors, errorRow{
			Location:   fmt.Sprintf("%d:%d", e.PageNumber, e.LineNumber),
			ErrorText:  e.ErrorText,
			Correction: e.Correction,
			Kind:       e.ErrorType.Label(),
		})
	}
	for _, kc := range res.Summary.RankedKinds() {
		v.Kinds = append(v.Kinds, kindRow{Label: kc.Kind.Label(), Count: kc.Count})
	}
	return v
}

// Render writes the HTML report of res to w.
func Render(w io.Writer, res *proofread.Result, meta Meta) error {
	if res == nil {
		return fmt.Errorf("report: render: nil result")
	}
	if err := reportTmpl.Execute(w, newView(res, meta)); err != nil {
		return fmt.Errorf("report: render: %w", err)
	}
	return nil
}

// HTML returns the HTML report of res as a string.
func HTML(res *proofread.Result, meta Meta) (string, error) {
	var buf bytes.Buffer
	if err := Render(&buf, res, meta); err != nil {
		return "", err
	}
	return buf.String(), nil
}
