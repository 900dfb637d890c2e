// Package app wires the stenoproof subsystems into a running server.
//
// The App struct owns the full lifecycle: New builds the analyzer chain, the
// proofreading pipeline, the event publisher and the HTTP handlers; Run
// serves until the context is cancelled; Shutdown tears everything down in
// order.
//
// For testing, inject doubles via functional options (WithPublisher,
// WithMetrics, ...). When an option is not provided, New creates real
// implementations from the config.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/MrWong99/stenoproof/internal/config"
	"github.com/MrWong99/stenoproof/internal/events"
	"github.com/MrWong99/stenoproof/internal/health"
	"github.com/MrWong99/stenoproof/internal/observe"
	"github.com/MrWong99/stenoproof/internal/proofread"
	"github.com/MrWong99/stenoproof/internal/resilience"
	"github.com/MrWong99/stenoproof/internal/server"
	"github.com/MrWong99/stenoproof/pkg/provider/llm"
	"github.com/MrWong99/stenoproof/pkg/provider/llm/demo"
)

// App owns all subsystem lifetimes of the proofreading server.
type App struct {
	cfg       *config.Config
	providers *Providers

	metrics        *observe.Metrics
	metricsHandler http.Handler
	logger         *slog.Logger

	analyzerName string
	fallback     *resilience.LLMFallback
	pipeline     *proofread.Pipeline
	publisher    server.Publisher
	handler      http.Handler
	httpServer   *http.Server

	// closers are called in order during Shutdown.
	closers []func() error

	// stopOnce guards the Shutdown path.
	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithPublisher injects an event publisher instead of creating one from
// config.
func WithPublisher(p server.Publisher) Option {
	return func(a *App) { a.publisher = p }
}

// WithMetrics sets the metrics instance shared by every subsystem.
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// WithMetricsHandler mounts h at telemetry.metrics_path.
func WithMetricsHandler(h http.Handler) Option {
	return func(a *App) { a.metricsHandler = h }
}

// WithLogger sets the application logger.
func WithLogger(l *slog.Logger) Option {
	return func(a *App) { a.logger = l }
}

// New creates an App by wiring all subsystems together. The providers come
// from [BuildProviders]; a nil or empty Providers selects the offline demo
// analyzer.
func New(ctx context.Context, cfg *config.Config, providers *Providers, opts ...Option) (*App, error) {
	if cfg == nil {
		return nil, errors.New("app: nil config")
	}
	if providers == nil {
		providers = &Providers{}
	}
	a := &App{cfg: cfg, providers: providers}
	for _, o := range opts {
		o(a)
	}
	if a.logger == nil {
		a.logger = slog.Default()
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}

	// ── 1. Analyzer backend ──────────────────────────────────────────────
	backend := a.initBackend()

	// ── 2. Pipeline ──────────────────────────────────────────────────────
	a.pipeline = proofread.NewPipeline(a.newAnalyzer(backend),
		proofread.WithTuning(TuningFromConfig(cfg.Proofread)),
		proofread.WithMetrics(a.metrics),
		proofread.WithLogger(a.logger),
	)

	// ── 3. Events ────────────────────────────────────────────────────────
	if a.publisher == nil {
		pub := events.New(events.Config{
			Enabled: cfg.Events.Enabled,
			Brokers: cfg.Events.Brokers,
			Topic:   cfg.Events.Topic,
		}, events.WithMetrics(a.metrics), events.WithLogger(a.logger))
		a.publisher = pub
		a.closers = append(a.closers, pub.Close)
	}

	// ── 4. HTTP surface ──────────────────────────────────────────────────
	srvOpts := []server.Option{
		server.WithMaxUploadBytes(cfg.Server.MaxUploadBytes),
		server.WithRequestTimeout(cfg.Server.RequestTimeout),
		server.WithPublisher(a.publisher),
		server.WithHealth(health.New(a.readinessChecks()...)),
		server.WithMetrics(a.metrics),
		server.WithLogger(a.logger),
	}
	if a.metricsHandler != nil {
		srvOpts = append(srvOpts, server.WithMetricsHandler(cfg.Telemetry.MetricsPath, a.metricsHandler))
	}
	a.handler = server.New(a.pipeline, srvOpts...).Handler()

	a.logger.InfoContext(ctx, "app: initialised",
		"analyzer", a.analyzerName,
		"fallbacks", len(providers.Fallbacks),
		"chunk_pages", cfg.Proofread.ChunkPages,
		"concurrency", cfg.Proofread.Concurrency,
	)
	return a, nil
}

// initBackend selects the analyzer backend: the demo analyzer when nothing
// is configured, the primary alone, or the primary behind a fallback group.
func (a *App) initBackend() llm.Provider {
	ps := a.providers
	if ps.Primary.Provider == nil {
		a.analyzerName = "demo"
		a.logger.Warn("app: no analyzer backend configured, using the offline demo analyzer")
		return demo.New()
	}
	a.analyzerName = ps.Primary.Name
	if len(ps.Fallbacks) == 0 {
		return ps.Primary.Provider
	}

	cb := a.cfg.Providers.CircuitBreaker
	a.fallback = resilience.NewLLMFallback(ps.Primary.Provider, ps.Primary.Name, resilience.FallbackConfig{
		CircuitBreaker: resilience.CircuitBreakerConfig{
			MaxFailures:  cb.MaxFailures,
			ResetTimeout: cb.ResetTimeout,
			HalfOpenMax:  cb.HalfOpenMax,
			Logger:       a.logger,
			OnStateChange: func(name string, to resilience.State) {
				a.metrics.RecordCircuitTransition(context.Background(), name, to.String())
			},
		},
	})
	for _, fb := range ps.Fallbacks {
		a.fallback.AddFallback(fb.Name, fb.Provider)
	}
	return a.fallback
}

func (a *App) newAnalyzer(backend llm.Provider) *proofread.Analyzer {
	p := a.cfg.Proofread
	opts := []proofread.AnalyzerOption{
		proofread.WithProviderName(a.analyzerName),
		proofread.WithMaxTokens(p.MaxTokens),
		proofread.WithChunkTimeout(p.ChunkTimeout),
		proofread.WithAnalyzerMetrics(a.metrics),
		proofread.WithAnalyzerLogger(a.logger),
	}
	if p.Temperature != nil {
		opts = append(opts, proofread.WithTemperature(*p.Temperature))
	}
	if style, err := proofread.ParsePromptStyle(p.PromptStyle); err == nil {
		opts = append(opts, proofread.WithPromptStyle(style))
	}
	if l := NewLimiter(p.RequestsPerMinute); l != nil {
		opts = append(opts, proofread.WithLimiter(l))
	}
	return proofread.NewAnalyzer(backend, opts...)
}

// NewLimiter paces analyzer calls to rpm requests per minute. It returns nil
// when rpm is not positive.
func NewLimiter(rpm int) *rate.Limiter {
	if rpm <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Every(time.Minute/time.Duration(rpm)), 1)
}

// TuningFromConfig converts the proofread config section into pipeline
// tuning.
func TuningFromConfig(p config.ProofreadConfig) proofread.Tuning {
	t := proofread.DefaultTuning()
	if p.ChunkPages > 0 {
		t.ChunkPages = p.ChunkPages
	}
	if p.Concurrency > 0 {
		t.Concurrency = p.Concurrency
	}
	if p.EnrichContext != nil {
		t.Enrich = *p.EnrichContext
	}
	return t
}

// readinessChecks reports the analyzer as ready while at least one backend
// accepts calls.
func (a *App) readinessChecks() []health.Checker {
	return []health.Checker{{
		Name: "analyzer",
		Check: func(context.Context) error {
			if a.fallback == nil || a.fallback.Healthy() {
				return nil
			}
			return fmt.Errorf("all analyzer circuit breakers are open: %v", a.fallback.States())
		},
	}}
}

// Handler returns the routed HTTP handler.
func (a *App) Handler() http.Handler { return a.handler }

// Pipeline returns the proofreading pipeline.
func (a *App) Pipeline() *proofread.Pipeline { return a.pipeline }

// ApplyDiff applies the live-reloadable part of a config change. Changes
// that need a restart are only logged.
func (a *App) ApplyDiff(d config.ConfigDiff) {
	if d.ProofreadChanged {
		t := TuningFromConfig(d.NewProofread)
		a.pipeline.SetTuning(t)
		a.logger.Info("app: proofread tuning reloaded",
			"chunk_pages", t.ChunkPages,
			"concurrency", t.Concurrency,
			"enrich", t.Enrich,
		)
	}
	if d.RequiresRestart() {
		a.logger.Warn("app: config change requires a restart to take effect",
			"providers", d.ProvidersChanged,
			"events", d.EventsChanged,
			"server", d.ServerChanged,
		)
	}
}

// Run serves HTTP on cfg.Server.ListenAddr until ctx is cancelled, then
// returns nil. A listener failure is returned as an error.
func (a *App) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", a.cfg.Server.ListenAddr)
	if err != nil {
		return fmt.Errorf("app: listen on %q: %w", a.cfg.Server.ListenAddr, err)
	}
	return a.Serve(ctx, ln)
}

// Serve serves HTTP on ln until ctx is cancelled.
func (a *App) Serve(ctx context.Context, ln net.Listener) error {
	a.httpServer = &http.Server{
		Handler:           a.handler,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		var err error
		if tls := a.cfg.Server.TLS; tls != nil {
			err = a.httpServer.ServeTLS(ln, tls.CertFile, tls.KeyFile)
		} else {
			err = a.httpServer.Serve(ln)
		}
		errCh <- err
	}()
	a.logger.Info("app: listening", "addr", ln.Addr().String(), "tls", a.cfg.Server.TLS != nil)

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("app: serve: %w", err)
	}
}

// Shutdown stops the HTTP server and tears down all subsystems. It respects
// the context deadline: if ctx expires before all closers finish, remaining
// closers are skipped and the context error is returned.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		a.logger.Info("shutting down", "closers", len(a.closers))

		if a.httpServer != nil {
			if err := a.httpServer.Shutdown(ctx); err != nil {
				a.logger.Warn("http server shutdown error", "err", err)
				shutdownErr = err
			}
		}

		for i, closer := range a.closers {
			select {
			case <-ctx.Done():
				a.logger.Warn("shutdown deadline exceeded", "remaining", len(a.closers)-i)
				shutdownErr = ctx.Err()
				return
			default:
			}
			if err := closer(); err != nil {
				a.logger.Warn("closer error", "index", i, "err", err)
			}
		}

		a.logger.Info("shutdown complete")
	})
	return shutdownErr
}
