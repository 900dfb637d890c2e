package proofread

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/MrWong99/stenoproof/internal/observe"
	"github.com/MrWong99/stenoproof/internal/transcript"
	"github.com/MrWong99/stenoproof/pkg/provider/llm"
)

const (
	defaultTemperature  = 0.1
	defaultMaxTokens    = 4096
	defaultChunkTimeout = 5 * time.Minute
)

// ChunkAnalyzer finds the errors in one chunk of pages. speakers lists the
// speaker tags of the whole transcript.
type ChunkAnalyzer interface {
	Analyze(ctx context.Context, pages []transcript.Page, speakers []string) (Outcome, error)
}

// AnalyzerOption configures an [Analyzer].
type AnalyzerOption func(*Analyzer)

// WithTemperature sets the sampling temperature. Default: 0.1.
func WithTemperature(temp float64) AnalyzerOption {
	return func(a *Analyzer) { a.temperature = temp }
}

// WithMaxTokens caps the completion length. The provider's advertised
// MaxOutputTokens is an upper bound regardless. Default: 4096.
func WithMaxTokens(n int) AnalyzerOption {
	return func(a *Analyzer) {
		if n > 0 {
			a.maxTokens = n
		}
	}
}

// WithChunkTimeout bounds a single provider call. Default: 5m.
func WithChunkTimeout(d time.Duration) AnalyzerOption {
	return func(a *Analyzer) {
		if d > 0 {
			a.timeout = d
		}
	}
}

// WithLimiter paces provider calls. Calls wait for a token before they are
// sent. A nil limiter disables pacing.
func WithLimiter(l *rate.Limiter) AnalyzerOption {
	return func(a *Analyzer) { a.limiter = l }
}

// WithPromptStyle selects the instruction set. Default: [PromptJSON].
func WithPromptStyle(s PromptStyle) AnalyzerOption {
	return func(a *Analyzer) { a.style = s }
}

// WithNormalizer replaces the default response normalizer.
func WithNormalizer(n *Normalizer) AnalyzerOption {
	return func(a *Analyzer) {
		if n != nil {
			a.normalizer = n
		}
	}
}

// WithProviderName labels provider metrics. Default: "llm".
func WithProviderName(name string) AnalyzerOption {
	return func(a *Analyzer) { a.providerName = name }
}

// WithAnalyzerMetrics records provider and parse metrics on m.
func WithAnalyzerMetrics(m *observe.Metrics) AnalyzerOption {
	return func(a *Analyzer) { a.metrics = m }
}

// WithAnalyzerLogger sets the logger. Default: slog.Default().
func WithAnalyzerLogger(l *slog.Logger) AnalyzerOption {
	return func(a *Analyzer) { a.logger = l }
}

// Analyzer sends chunks to an [llm.Provider] and normalizes the answers. It
// is safe for concurrent use.
//
// Model selection follows the one-provider-per-model pattern: configure the
// model on the provider, not per request.
type Analyzer struct {
	llm          llm.Provider
	providerName string
	style        PromptStyle
	temperature  float64
	maxTokens    int
	timeout      time.Duration
	limiter      *rate.Limiter
	normalizer   *Normalizer
	metrics      *observe.Metrics
	logger       *slog.Logger
}

var _ ChunkAnalyzer = (*Analyzer)(nil)

// NewAnalyzer returns an Analyzer backed by provider.
func NewAnalyzer(provider llm.Provider, opts ...AnalyzerOption) *Analyzer {
	a := &Analyzer{
		llm:          provider,
		providerName: "llm",
		style:        PromptJSON,
		temperature:  defaultTemperature,
		maxTokens:    defaultMaxTokens,
		timeout:      defaultChunkTimeout,
		normalizer:   NewNormalizer(),
	}
	for _, o := range opts {
		o(a)
	}
	if a.logger == nil {
		a.logger = slog.Default()
	}
	return a
}

// Analyze serializes pages, asks the provider for errors and normalizes the
// response. An unparseable response is not an error: it yields an Outcome
// with [StatusUnparseable] and no records. Provider failures, timeouts and
// cancellation are returned as errors.
func (a *Analyzer) Analyze(ctx context.Context, pages []transcript.Page, speakers []string) (Outcome, error) {
	if len(pages) == 0 {
		return Outcome{Status: StatusEmpty, Strategy: "none"}, nil
	}
	firstPage := transcript.FirstPageNumber(pages)
	prompt := BuildPrompt(a.style, transcript.ChunkToText(pages), speakers)

	if a.limiter != nil {
		if err := a.limiter.Wait(ctx); err != nil {
			return Outcome{}, fmt.Errorf("proofread: wait for rate limiter: %w", err)
		}
	}

	callCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	resp, err := a.llm.Complete(callCtx, llm.CompletionRequest{
		SystemPrompt: prompt.System,
		Temperature:  a.temperature,
		MaxTokens:    a.completionTokens(),
		Messages: []llm.Message{
			{Role: "user", Content: prompt.User},
		},
	})
	if err != nil {
		a.recordProviderFailure(ctx, err)
		return Outcome{}, fmt.Errorf("proofread: analyze pages %d-%d: %w",
			firstPage, pages[len(pages)-1].PageNumber, err)
	}
	if a.metrics != nil {
		a.metrics.RecordProviderRequest(ctx, a.providerName, "ok")
	}

	out := a.normalizer.Normalize(resp.Content, firstPage)
	if a.metrics != nil {
		a.metrics.RecordParseOutcome(ctx, out.Strategy, out.Status.String())
	}
	if out.Status == StatusUnparseable {
		observe.LoggerFrom(ctx, a.logger).Warn("proofread: unparseable analyzer response",
			"first_page", firstPage,
			"response_bytes", len(resp.Content),
		)
	}
	return out, nil
}

func (a *Analyzer) completionTokens() int {
	n := a.maxTokens
	if limit := a.llm.Capabilities().MaxOutputTokens; limit > 0 && limit < n {
		n = limit
	}
	return n
}

func (a *Analyzer) recordProviderFailure(ctx context.Context, err error) {
	if a.metrics == nil {
		return
	}
	kind := "error"
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		kind = "timeout"
	case errors.Is(err, context.Canceled):
		kind = "canceled"
	}
	a.metrics.RecordProviderRequest(ctx, a.providerName, "error")
	a.metrics.RecordProviderError(ctx, a.providerName, kind)
}
