// Command stenoproof-check proofreads transcript files locally with the
// fine-grained review chunk size. For every input it writes
// <name>.report.html and <name>.result.json, and records the run in a
// client-side history file.
//
// Usage:
//
//	stenoproof-check [-config stenoproof.yaml] [-out dir] file.txt...
//	stenoproof-check -stats
//	stenoproof-check -clear-history
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/MrWong99/stenoproof/internal/app"
	"github.com/MrWong99/stenoproof/internal/config"
	"github.com/MrWong99/stenoproof/internal/history"
	"github.com/MrWong99/stenoproof/internal/proofread"
	"github.com/MrWong99/stenoproof/internal/report"
	"github.com/MrWong99/stenoproof/internal/transcript"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("stenoproof-check", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "stenoproof.yaml", "path to the YAML configuration file")
	outDir := fs.String("out", "", "directory for reports (default: next to each input)")
	chunkPages := fs.Int("chunk-pages", 0, "pages per analyzer call (default: proofread.review_chunk_pages)")
	historyPath := fs.String("history", defaultHistoryPath(), "path of the history file")
	stats := fs.Bool("stats", false, "print aggregate statistics of past runs and exit")
	clearHistory := fs.Bool("clear-history", false, "delete all recorded runs and exit")
	verbose := fs.Bool("v", false, "verbose logging")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	lvl := slog.LevelWarn
	if *verbose {
		lvl = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: lvl}))
	slog.SetDefault(logger)

	hist := history.New(history.NewFileStore(*historyPath))

	switch {
	case *clearHistory:
		if err := hist.Clear(); err != nil {
			fmt.Fprintf(stderr, "stenoproof-check: %v\n", err)
			return 1
		}
		fmt.Fprintln(stdout, "History cleared.")
		return 0
	case *stats:
		st, err := hist.Stats()
		if err != nil {
			fmt.Fprintf(stderr, "stenoproof-check: %v\n", err)
			return 1
		}
		printStats(stdout, st)
		return 0
	}

	if fs.NArg() == 0 {
		fmt.Fprintln(stderr, "stenoproof-check: no input files")
		fs.Usage()
		return 2
	}

	cfg, err := config.Load(*configPath)
	if errors.Is(err, os.ErrNotExist) {
		cfg, err = config.Default(), nil
	}
	if err != nil {
		fmt.Fprintf(stderr, "stenoproof-check: %v\n", err)
		return 1
	}

	reg := config.NewRegistry()
	app.RegisterBuiltinProviders(reg)
	providers, err := app.BuildProviders(cfg, reg)
	if err != nil {
		fmt.Fprintf(stderr, "stenoproof-check: %v\n", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, cfg, providers, app.WithLogger(logger))
	if err != nil {
		fmt.Fprintf(stderr, "stenoproof-check: %v\n", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = application.Shutdown(shutdownCtx)
	}()

	pipeline := application.Pipeline()
	tuning := pipeline.Tuning()
	tuning.ChunkPages = cfg.Proofread.ReviewChunkPages
	if *chunkPages > 0 {
		tuning.ChunkPages = *chunkPages
	}
	pipeline.SetTuning(tuning)

	c := checker{pipeline: pipeline, history: hist, outDir: *outDir, stdout: stdout, logger: logger}
	code := 0
	for _, path := range fs.Args() {
		if err := c.check(ctx, path); err != nil {
			fmt.Fprintf(stderr, "stenoproof-check: %s: %v\n", path, err)
			code = 1
		}
		if ctx.Err() != nil {
			return 130
		}
	}
	return code
}

type checker struct {
	pipeline *proofread.Pipeline
	history  *history.History
	outDir   string
	stdout   io.Writer
	logger   *slog.Logger
}

func (c checker) check(ctx context.Context, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	text, err := transcript.Decode(data)
	if err != nil {
		return err
	}
	name := filepath.Base(path)
	parsed, err := transcript.Parse(text, name, transcript.WithLogger(c.logger))
	if err != nil {
		return err
	}

	fmt.Fprintf(c.stdout, "%s: %d pages, %d lines", name, parsed.TotalPages, parsed.TotalLines)
	if parsed.Metadata.IsGenericText {
		fmt.Fprint(c.stdout, " (no transcript layout detected, generic paging)")
	}
	fmt.Fprintln(c.stdout)

	res, err := c.pipeline.Run(ctx, parsed)
	if err != nil {
		return err
	}

	base := strings.TrimSuffix(name, filepath.Ext(name))
	dir := c.outDir
	if dir == "" {
		dir = filepath.Dir(path)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	html, err := report.HTML(res, report.Meta{FileName: name, RunID: res.RunID, GeneratedAt: time.Now()})
	if err != nil {
		return err
	}
	reportPath := filepath.Join(dir, base+".report.html")
	if err := os.WriteFile(reportPath, []byte(html), 0o644); err != nil {
		return err
	}

	js, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return err
	}
	resultPath := filepath.Join(dir, base+".result.json")
	if err := os.WriteFile(resultPath, js, 0o644); err != nil {
		return err
	}

	if _, err := c.history.Add(name, res); err != nil {
		c.logger.Warn("could not record run in history", "err", err)
	}

	fmt.Fprintf(c.stdout, "  %d errors in %ss", res.Summary.TotalErrors, report.Seconds(res.ProcessingTime))
	if res.FailedChunks > 0 {
		fmt.Fprintf(c.stdout, ", %d of %d chunks failed", res.FailedChunks, res.ChunksTotal)
	}
	fmt.Fprintf(c.stdout, "\n  report: %s\n  result: %s\n", reportPath, resultPath)
	return nil
}

func printStats(w io.Writer, st history.Stats) {
	fmt.Fprintf(w, "Transcripts:         %d\n", st.TotalTranscripts)
	fmt.Fprintf(w, "Pages:               %d\n", st.TotalPages)
	fmt.Fprintf(w, "Errors:              %d\n", st.TotalErrors)
	fmt.Fprintf(w, "Errors per 100 pages: %.1f\n", st.ErrorRate)
	if st.TotalErrors == 0 {
		return
	}
	fmt.Fprintln(w)
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TYPE\tCOUNT")
	for _, kc := range (proofread.Summary{ByType: st.ErrorsByType}).RankedKinds() {
		fmt.Fprintf(tw, "%s\t%d\n", kc.Kind.Label(), kc.Count)
	}
	_ = tw.Flush()
}

// defaultHistoryPath places the history in the user config directory.
func defaultHistoryPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "stenoproof-history.json"
	}
	return filepath.Join(dir, "stenoproof", "history.json")
}
