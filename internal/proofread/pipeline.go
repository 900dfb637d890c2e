package proofread

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/stenoproof/internal/observe"
	"github.com/MrWong99/stenoproof/internal/transcript"
)

// Tuning holds the pipeline settings that can change between runs.
type Tuning struct {
	// ChunkPages bounds the pages per chunk. Values below 1 mean 1.
	ChunkPages int

	// Concurrency is the number of chunks analyzed at once. Values below 1
	// mean 1 (serial).
	Concurrency int

	// Enrich widens single-word grammar corrections with context.
	Enrich bool
}

// DefaultTuning returns the server defaults: 15-page chunks, serial
// analysis, enrichment on.
func DefaultTuning() Tuning {
	return Tuning{ChunkPages: transcript.DefaultChunkPages, Concurrency: 1, Enrich: true}
}

// ChunkOutcome is the result of analyzing one chunk: either its errors or
// the reason it failed.
type ChunkOutcome struct {
	Index     int
	FirstPage int
	LastPage  int
	Errors    []TranscriptError
	Status    Status
	Strategy  string
	Duration  time.Duration
	Err       error
}

// Failed reports whether the chunk could not be analyzed.
func (o ChunkOutcome) Failed() bool { return o.Err != nil }

// Reduce partitions outcomes into the merged errors of successful chunks, in
// outcome order, and the failed outcomes.
func Reduce(outcomes []ChunkOutcome) ([]TranscriptError, []ChunkOutcome) {
	errs := make([]TranscriptError, 0)
	var failed []ChunkOutcome
	for _, o := range outcomes {
		if o.Failed() {
			failed = append(failed, o)
			continue
		}
		errs = append(errs, o.Errors...)
	}
	return errs, failed
}

// PipelineOption configures a [Pipeline].
type PipelineOption func(*Pipeline)

// WithTuning sets the initial tuning. Default: [DefaultTuning].
func WithTuning(t Tuning) PipelineOption {
	return func(p *Pipeline) { p.tuning.Store(&t) }
}

// WithMetrics records run and chunk metrics on m.
func WithMetrics(m *observe.Metrics) PipelineOption {
	return func(p *Pipeline) { p.metrics = m }
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) PipelineOption {
	return func(p *Pipeline) { p.logger = l }
}

// WithClock overrides the time source used for processing time.
func WithClock(now func() time.Time) PipelineOption {
	return func(p *Pipeline) { p.now = now }
}

// WithRunID overrides the run identifier generator.
func WithRunID(gen func() string) PipelineOption {
	return func(p *Pipeline) { p.runID = gen }
}

// Pipeline proofreads a parsed transcript chunk by chunk. It is safe for
// concurrent use; [Pipeline.SetTuning] takes effect on the next run.
type Pipeline struct {
	analyzer ChunkAnalyzer
	tuning   atomic.Pointer[Tuning]
	metrics  *observe.Metrics
	logger   *slog.Logger
	now      func() time.Time
	runID    func() string
}

// NewPipeline returns a Pipeline that analyzes chunks with analyzer.
func NewPipeline(analyzer ChunkAnalyzer, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		analyzer: analyzer,
		now:      time.Now,
		runID:    uuid.NewString,
	}
	def := DefaultTuning()
	p.tuning.Store(&def)
	for _, o := range opts {
		o(p)
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	return p
}

// Tuning returns the current tuning.
func (p *Pipeline) Tuning() Tuning { return *p.tuning.Load() }

// SetTuning replaces the tuning for subsequent runs.
func (p *Pipeline) SetTuning(t Tuning) { p.tuning.Store(&t) }

// Run proofreads parsed. The algorithm:
//
//  1. Partition the pages into chunks of at most ChunkPages pages.
//  2. Analyze every chunk, serially or with bounded concurrency. A chunk
//     whose analysis fails is logged, counted and skipped; the rest go on.
//  3. Merge the errors of successful chunks in chunk order.
//  4. Enrich single-word grammar corrections when enabled.
//  5. Summarize.
//
// Run returns an error only when ctx ends before the run completes or the
// transcript has no pages; per-chunk failures never fail the run.
func (p *Pipeline) Run(ctx context.Context, parsed *transcript.Parsed) (*Result, error) {
	if parsed == nil || len(parsed.Pages) == 0 {
		return nil, fmt.Errorf("proofread: run: %w", transcript.ErrNoPages)
	}
	tuning := p.Tuning()
	runID := p.runID()
	start := p.now()

	ctx, span := observe.StartSpan(ctx, "proofread.run")
	defer span.End()
	log := observe.LoggerFrom(ctx, p.logger).With("run_id", runID, "file", parsed.Metadata.FileName)

	if p.metrics != nil {
		p.metrics.ActiveRuns.Add(ctx, 1)
		defer p.metrics.ActiveRuns.Add(context.WithoutCancel(ctx), -1)
	}

	chunks := transcript.Chunk(parsed.Pages, tuning.ChunkPages)
	speakers := parsed.Speakers()
	log.Info("proofread: run started", "pages", len(parsed.Pages), "chunks", len(chunks))

	outcomes := make([]ChunkOutcome, len(chunks))
	g := new(errgroup.Group)
	g.SetLimit(max(tuning.Concurrency, 1))
	for i, chunk := range chunks {
		g.Go(func() error {
			outcomes[i] = p.analyzeChunk(ctx, log, i, chunk, speakers)
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("proofread: run: %w", err)
	}

	errs, failed := Reduce(outcomes)
	if tuning.Enrich {
		errs = Enrich(errs, parsed)
	}

	elapsed := p.now().Sub(start)
	result := &Result{
		Errors:         errs,
		Summary:        Summarize(errs),
		ProcessingTime: elapsed.Milliseconds(),
		PagesProcessed: parsed.TotalPages,
		ChunksTotal:    len(chunks),
		FailedChunks:   len(failed),
		RunID:          runID,
	}

	if p.metrics != nil {
		p.metrics.RunDuration.Record(ctx, elapsed.Seconds())
		p.metrics.PagesProcessed.Add(ctx, int64(parsed.TotalPages))
		for _, k := range Kinds {
			p.metrics.RecordTranscriptErrors(ctx, string(k), result.Summary.ByType[k])
		}
	}
	log.Info("proofread: run finished",
		"errors", result.Summary.TotalErrors,
		"failed_chunks", result.FailedChunks,
		"duration_ms", result.ProcessingTime,
	)
	return result, nil
}

func (p *Pipeline) analyzeChunk(ctx context.Context, log *slog.Logger, index int, pages []transcript.Page, speakers []string) ChunkOutcome {
	o := ChunkOutcome{
		Index:     index,
		FirstPage: pages[0].PageNumber,
		LastPage:  pages[len(pages)-1].PageNumber,
	}
	if err := ctx.Err(); err != nil {
		o.Err = err
		return o
	}

	start := p.now()
	res, err := p.analyzer.Analyze(ctx, pages, speakers)
	o.Duration = p.now().Sub(start)

	status := "ok"
	if err != nil {
		o.Err = err
		status = "failed"
		log.Warn("proofread: chunk failed, skipping",
			"chunk", index,
			"first_page", o.FirstPage,
			"last_page", o.LastPage,
			"err", err,
		)
	} else {
		o.Errors, o.Status, o.Strategy = res.Errors, res.Status, res.Strategy
		log.Debug("proofread: chunk analyzed",
			"chunk", index,
			"errors", len(res.Errors),
			"status", res.Status.String(),
			"strategy", res.Strategy,
		)
	}
	if p.metrics != nil {
		p.metrics.RecordChunk(ctx, status, o.Duration.Seconds())
	}
	return o
}
