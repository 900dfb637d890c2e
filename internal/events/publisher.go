// Package events publishes run-completed notifications to Kafka. Without
// brokers the publisher runs in log-only mode. Publishing is best effort:
// callers log a failure and carry on.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/MrWong99/stenoproof/internal/observe"
	"github.com/MrWong99/stenoproof/internal/proofread"
)

// RunCompletedType is the eventType header value of [RunCompleted] messages.
const RunCompletedType = "stenoproof.run.completed"

// RunCompleted summarizes one finished proofreading run.
type RunCompleted struct {
	RunID          string                      `json:"runId"`
	FileName       string                      `json:"fileName"`
	PagesProcessed int                         `json:"pagesProcessed"`
	TotalErrors    int                         `json:"totalErrors"`
	ByType         map[proofread.ErrorKind]int `json:"byType"`
	ChunksTotal    int                         `json:"chunksTotal"`
	FailedChunks   int                         `json:"failedChunks"`
	ProcessingTime int64                       `json:"processingTime"`
	CompletedAt    time.Time                   `json:"completedAt"`
}

// NewRunCompleted builds the event for res.
func NewRunCompleted(fileName string, res *proofread.Result, at time.Time) RunCompleted {
	return RunCompleted{
		RunID:          res.RunID,
		FileName:       fileName,
		PagesProcessed: res.PagesProcessed,
		TotalErrors:    res.Summary.TotalErrors,
		ByType:         res.Summary.ByType,
		ChunksTotal:    res.ChunksTotal,
		FailedChunks:   res.FailedChunks,
		ProcessingTime: res.ProcessingTime,
		CompletedAt:    at.UTC(),
	}
}

// MessageWriter is the subset of [*kafka.Writer] the publisher uses.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Config holds Kafka publisher configuration.
type Config struct {
	Enabled bool
	Brokers []string
	Topic   string

	// Source is sent as the "source" header. Default: "stenoproof".
	Source string
}

// Publisher publishes [RunCompleted] events. It is safe for concurrent use.
type Publisher struct {
	writer  MessageWriter
	topic   string
	source  string
	metrics *observe.Metrics
	logger  *slog.Logger
}

// Option configures a [Publisher].
type Option func(*Publisher)

// WithWriter replaces the Kafka writer. Used by tests and by callers that
// need custom transport settings.
func WithWriter(w MessageWriter) Option {
	return func(p *Publisher) { p.writer = w }
}

// WithMetrics sets the metrics the publisher records into.
func WithMetrics(m *observe.Metrics) Option {
	return func(p *Publisher) { p.metrics = m }
}

// WithLogger sets the publisher's logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Publisher) { p.logger = l }
}

// New creates a Publisher. When cfg is disabled or names no brokers the
// publisher only logs events, unless a writer is injected with [WithWriter].
func New(cfg Config, opts ...Option) *Publisher {
	p := &Publisher{
		topic:   cfg.Topic,
		source:  cfg.Source,
		metrics: observe.DefaultMetrics(),
		logger:  slog.Default(),
	}
	if p.source == "" {
		p.source = "stenoproof"
	}
	for _, o := range opts {
		o(p)
	}
	if p.writer != nil {
		return p
	}

	if !cfg.Enabled || len(cfg.Brokers) == 0 {
		p.logger.Info("events: kafka disabled, using log-only mode")
		return p
	}

	dialer := &kafka.Dialer{
		Timeout:   10 * time.Second,
		DualStack: true,
	}
	p.writer = &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: 10 * time.Second,
		RequiredAcks: kafka.RequireOne,
		Transport:    &kafka.Transport{Dial: dialer.DialFunc},
	}
	p.logger.Info("events: kafka publisher initialized", "brokers", cfg.Brokers, "topic", cfg.Topic)
	return p
}

// Enabled reports whether events are written to Kafka.
func (p *Publisher) Enabled() bool { return p.writer != nil }

// PublishRunCompleted publishes ev keyed by its run ID.
func (p *Publisher) PublishRunCompleted(ctx context.Context, ev RunCompleted) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		p.metrics.RecordEventPublish(ctx, "error")
		return fmt.Errorf("events: marshal run completed: %w", err)
	}

	log := observe.LoggerFrom(ctx, p.logger)
	log.Debug("events: publishing", "topic", p.topic, "run_id", ev.RunID, "bytes", len(payload))

	if p.writer == nil {
		p.metrics.RecordEventPublish(ctx, "skipped")
		return nil
	}

	msg := kafka.Message{
		Key:   []byte(ev.RunID),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "eventType", Value: []byte(RunCompletedType)},
			{Key: "source", Value: []byte(p.source)},
		},
		Time: ev.CompletedAt,
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.metrics.RecordEventPublish(ctx, "error")
		return fmt.Errorf("events: write to %q: %w", p.topic, err)
	}
	p.metrics.RecordEventPublish(ctx, "ok")
	return nil
}

// Close flushes and closes the Kafka writer, if any.
func (p *Publisher) Close() error {
	if p.writer == nil {
		return nil
	}
	if err := p.writer.Close(); err != nil {
		return fmt.Errorf("events: close writer: %w", err)
	}
	return nil
}
