package events_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/MrWong99/stenoproof/internal/events"
	"github.com/MrWong99/stenoproof/internal/proofread"
)

type fakeWriter struct {
	mu     sync.Mutex
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func sampleEvent() events.RunCompleted {
	errs := []proofread.TranscriptError{
		{PageNumber: 1, LineNumber: 3, ErrorText: "teh", Correction: "the", ErrorType: proofread.KindTypo, Confidence: 0.9},
	}
	res := &proofread.Result{
		Errors:         errs,
		Summary:        proofread.Summarize(errs),
		ProcessingTime: 1500,
		PagesProcessed: 12,
		ChunksTotal:    1,
		RunID:          "run-1",
	}
	return events.NewRunCompleted("depo.txt", res, time.Date(2024, 5, 6, 7, 8, 9, 0, time.FixedZone("X", 3600)))
}

func TestNew_DisabledMode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		cfg  events.Config
	}{
		{"disabled", events.Config{Enabled: false, Brokers: []string{"localhost:9092"}}},
		{"no brokers", events.Config{Enabled: true, Brokers: []string{}}},
		{"nil brokers", events.Config{Enabled: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			p := events.New(tt.cfg)
			if p.Enabled() {
				t.Error("expected log-only publisher")
			}
			if err := p.PublishRunCompleted(context.Background(), sampleEvent()); err != nil {
				t.Errorf("log-only publish returned %v", err)
			}
			if err := p.Close(); err != nil {
				t.Errorf("Close: %v", err)
			}
		})
	}
}

func TestNew_EnabledBuildsWriter(t *testing.T) {
	t.Parallel()
	p := events.New(events.Config{Enabled: true, Brokers: []string{"localhost:9092"}, Topic: "runs"})
	if !p.Enabled() {
		t.Fatal("expected kafka publisher")
	}
	// Close on an unused writer does not dial.
	if err := p.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
}

func TestPublishRunCompleted_Message(t *testing.T) {
	t.Parallel()

	w := &fakeWriter{}
	p := events.New(events.Config{Topic: "runs"}, events.WithWriter(w))
	ev := sampleEvent()
	if err := p.PublishRunCompleted(context.Background(), ev); err != nil {
		t.Fatalf("PublishRunCompleted: %v", err)
	}

	if len(w.msgs) != 1 {
		t.Fatalf("wrote %d messages, want 1", len(w.msgs))
	}
	msg := w.msgs[0]
	if string(msg.Key) != "run-1" {
		t.Errorf("key = %q", msg.Key)
	}
	headers := map[string]string{}
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	if headers["eventType"] != events.RunCompletedType || headers["source"] != "stenoproof" {
		t.Errorf("headers = %v", headers)
	}

	var got map[string]any
	if err := json.Unmarshal(msg.Value, &got); err != nil {
		t.Fatalf("payload is not JSON: %v", err)
	}
	if got["fileName"] != "depo.txt" || got["totalErrors"] != float64(1) || got["pagesProcessed"] != float64(12) {
		t.Errorf("payload = %v", got)
	}
	byType, ok := got["byType"].(map[string]any)
	if !ok || byType["typo"] != float64(1) || byType["grammar"] != float64(0) {
		t.Errorf("byType = %v", got["byType"])
	}
	if got["completedAt"] != "2024-05-06T06:08:09Z" {
		t.Errorf("completedAt = %v, want UTC", got["completedAt"])
	}
}

func TestPublishRunCompleted_WriteError(t *testing.T) {
	t.Parallel()

	boom := errors.New("broker down")
	p := events.New(events.Config{Topic: "runs"}, events.WithWriter(&fakeWriter{err: boom}))
	err := p.PublishRunCompleted(context.Background(), sampleEvent())
	if !errors.Is(err, boom) {
		t.Errorf("err = %v, want wrapped %v", err, boom)
	}
}

func TestClose_ClosesWriter(t *testing.T) {
	t.Parallel()

	w := &fakeWriter{}
	p := events.New(events.Config{}, events.WithWriter(w))
	if err := p.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !w.closed {
		t.Error("writer not closed")
	}
}
