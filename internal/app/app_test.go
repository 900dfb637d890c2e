package app_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/MrWong99/stenoproof/internal/app"
	"github.com/MrWong99/stenoproof/internal/config"
	"github.com/MrWong99/stenoproof/internal/events"
	"github.com/MrWong99/stenoproof/internal/proofread"
	"github.com/MrWong99/stenoproof/internal/server"
	"github.com/MrWong99/stenoproof/pkg/provider/llm"
	llmmock "github.com/MrWong99/stenoproof/pkg/provider/llm/mock"
)

var transcriptText = strings.Join([]string{
	"  1   Q.  Did the wittness arrive on time?",
	"  2   A.  Yes.",
	strings.Repeat(" ", 45) + "1",
}, "\n")

type nopPublisher struct {
	mu  sync.Mutex
	evs []events.RunCompleted
}

func (p *nopPublisher) PublishRunCompleted(_ context.Context, ev events.RunCompleted) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.evs = append(p.evs, ev)
	return nil
}

func post(t *testing.T, h http.Handler) server.Response {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/proofread?fileName=t.txt", strings.NewReader(transcriptText))
	req.Header.Set("Content-Type", "text/plain")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	var resp server.Response
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	return resp
}

func TestNew_DemoAnalyzerWhenUnconfigured(t *testing.T) {
	t.Parallel()

	pub := &nopPublisher{}
	a, err := app.New(context.Background(), config.Default(), nil, app.WithPublisher(pub))
	if err != nil {
		t.Fatalf("New() returned error: %v", err)
	}

	resp := post(t, a.Handler())
	if !resp.Success {
		t.Fatalf("response = %+v", resp)
	}
	var found bool
	for _, e := range resp.Result.Errors {
		if e.ErrorText == "wittness" && e.Correction == "witness" && e.PageNumber == 1 && e.LineNumber == 1 {
			found = true
		}
	}
	if !found {
		t.Errorf("demo analyzer did not flag the misspelling: %+v", resp.Result.Errors)
	}
	if len(pub.evs) != 1 {
		t.Errorf("published %d events, want 1", len(pub.evs))
	}
}

func TestNew_FallbackTakesOver(t *testing.T) {
	t.Parallel()

	primary := &llmmock.Provider{CompleteErr: errors.New("rate limited")}
	secondary := &llmmock.Provider{CompleteResponse: &llm.CompletionResponse{
		Content: `[{"pageNumber":1,"lineNumber":2,"errorText":"Yes","correction":"Yes.","errorType":"punctuation"}]`,
	}}
	cfg := config.Default()
	cfg.Providers.LLM = config.ProviderEntry{Name: "primary"}
	providers := &app.Providers{
		Primary:   app.NamedProvider{Name: "primary", Provider: primary},
		Fallbacks: []app.NamedProvider{{Name: "secondary", Provider: secondary}},
	}

	a, err := app.New(context.Background(), cfg, providers, app.WithPublisher(&nopPublisher{}))
	if err != nil {
		t.Fatal(err)
	}

	resp := post(t, a.Handler())
	if resp.Result.Summary.TotalErrors != 1 || resp.Result.FailedChunks != 0 {
		t.Errorf("result = %+v", resp.Result)
	}
	if len(primary.CompleteCalls) != 1 || len(secondary.CompleteCalls) != 1 {
		t.Errorf("calls primary=%d secondary=%d", len(primary.CompleteCalls), len(secondary.CompleteCalls))
	}

	rec := httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("readyz = %d, body %s", rec.Code, rec.Body)
	}
}

func TestNew_ReadinessFailsWhenAllBreakersOpen(t *testing.T) {
	t.Parallel()

	down := errors.New("down")
	cfg := config.Default()
	cfg.Providers.CircuitBreaker = config.CircuitBreakerConfig{MaxFailures: 1, ResetTimeout: time.Hour}
	providers := &app.Providers{
		Primary:   app.NamedProvider{Name: "a", Provider: &llmmock.Provider{CompleteErr: down}},
		Fallbacks: []app.NamedProvider{{Name: "b", Provider: &llmmock.Provider{CompleteErr: down}}},
	}
	a, err := app.New(context.Background(), cfg, providers, app.WithPublisher(&nopPublisher{}))
	if err != nil {
		t.Fatal(err)
	}

	resp := post(t, a.Handler())
	if resp.Result.FailedChunks != 1 {
		t.Errorf("FailedChunks = %d, want 1", resp.Result.FailedChunks)
	}

	rec := httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("readyz = %d, want 503", rec.Code)
	}
}

func TestApplyDiff_UpdatesTuning(t *testing.T) {
	t.Parallel()

	old := config.Default()
	a, err := app.New(context.Background(), old, nil, app.WithPublisher(&nopPublisher{}))
	if err != nil {
		t.Fatal(err)
	}

	updated := config.Default()
	off := false
	updated.Proofread.ChunkPages = 4
	updated.Proofread.Concurrency = 3
	updated.Proofread.EnrichContext = &off
	a.ApplyDiff(config.Diff(old, updated))

	want := proofread.Tuning{ChunkPages: 4, Concurrency: 3, Enrich: false}
	if got := a.Pipeline().Tuning(); got != want {
		t.Errorf("Tuning() = %+v, want %+v", got, want)
	}
}

func TestTuningFromConfig(t *testing.T) {
	t.Parallel()

	if got := app.TuningFromConfig(config.ProofreadConfig{}); got != proofread.DefaultTuning() {
		t.Errorf("zero config = %+v, want defaults", got)
	}
}

func TestNewLimiter(t *testing.T) {
	t.Parallel()

	if app.NewLimiter(0) != nil || app.NewLimiter(-2) != nil {
		t.Error("non-positive rpm must disable pacing")
	}
	l := app.NewLimiter(120)
	if l == nil {
		t.Fatal("NewLimiter(120) = nil")
	}
	if got := float64(l.Limit()); got < 1.99 || got > 2.01 {
		t.Errorf("limit = %v events/s, want 2", got)
	}
}

func TestServe_Shutdown(t *testing.T) {
	t.Parallel()

	a, err := app.New(context.Background(), config.Default(), nil, app.WithPublisher(&nopPublisher{}))
	if err != nil {
		t.Fatal(err)
	}
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Serve(ctx, ln) }()

	url := fmt.Sprintf("http://%s/healthz", ln.Addr())
	var resp *http.Response
	for range 50 {
		resp, err = http.Get(url)
		if err == nil {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("healthz = %d", resp.StatusCode)
	}

	cancel()
	if err := <-done; err != nil {
		t.Errorf("Serve returned %v", err)
	}
	shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
	defer stop()
	if err := a.Shutdown(shutdownCtx); err != nil {
		t.Errorf("Shutdown: %v", err)
	}
	// Second call is a no-op.
	if err := a.Shutdown(shutdownCtx); err != nil {
		t.Errorf("second Shutdown: %v", err)
	}
}

func TestNew_NilConfig(t *testing.T) {
	t.Parallel()
	if _, err := app.New(context.Background(), nil, nil); err == nil {
		t.Error("expected error for nil config")
	}
}
