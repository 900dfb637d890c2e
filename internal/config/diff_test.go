package config_test

import (
	"slices"
	"testing"

	"github.com/MrWong99/stenoproof/internal/config"
)

func TestDiff_NoChanges(t *testing.T) {
	t.Parallel()
	cfg := config.Default()
	d := config.Diff(cfg, config.Default())
	if d.LogLevelChanged || d.ProofreadChanged || d.ProvidersChanged || d.EventsChanged || d.ServerChanged {
		t.Errorf("expected no changes, got %+v", d)
	}
	if d.RequiresRestart() {
		t.Error("RequiresRestart() = true for identical configs")
	}
	if !d.Empty() || d.Sections() != nil {
		t.Errorf("Empty() = %v, Sections() = %v", d.Empty(), d.Sections())
	}
}

func TestDiff_Sections(t *testing.T) {
	t.Parallel()
	old := config.Default()
	new := config.Default()
	new.Server.LogLevel = config.LogWarn
	new.Server.ListenAddr = ":9999"
	new.Events.Topic = "steno.runs"
	new.Telemetry.ServiceName = "ignored"

	d := config.Diff(old, new)
	want := []string{"server.log_level", "events", "server"}
	if got := d.Sections(); !slices.Equal(got, want) {
		t.Errorf("Sections() = %v, want %v", got, want)
	}
	if d.Empty() {
		t.Error("Empty() = true")
	}
}

func TestDiff_LogLevelChanged(t *testing.T) {
	t.Parallel()
	old := config.Default()
	new := config.Default()
	new.Server.LogLevel = config.LogDebug

	d := config.Diff(old, new)
	if !d.LogLevelChanged {
		t.Error("expected LogLevelChanged=true")
	}
	if d.NewLogLevel != config.LogDebug {
		t.Errorf("expected NewLogLevel=debug, got %q", d.NewLogLevel)
	}
	if d.RequiresRestart() {
		t.Error("log level change should apply live")
	}
}

func TestDiff_ProofreadChanged(t *testing.T) {
	t.Parallel()
	old := config.Default()
	new := config.Default()
	off := false
	new.Proofread.EnrichContext = &off
	new.Proofread.ChunkPages = 8

	d := config.Diff(old, new)
	if !d.ProofreadChanged {
		t.Fatal("expected ProofreadChanged=true")
	}
	if d.NewProofread.ChunkPages != 8 || *d.NewProofread.EnrichContext {
		t.Errorf("NewProofread = %+v", d.NewProofread)
	}
	if d.RequiresRestart() {
		t.Error("proofread tuning should apply live")
	}
}

func TestDiff_PointerFieldsCompareByValue(t *testing.T) {
	t.Parallel()
	old := config.Default()
	new := config.Default()
	temp := *old.Proofread.Temperature
	new.Proofread.Temperature = &temp

	if d := config.Diff(old, new); d.ProofreadChanged {
		t.Error("equal temperatures behind different pointers reported as changed")
	}
}

func TestDiff_RestartRequired(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*config.Config)
		check  func(config.ConfigDiff) bool
	}{
		{"provider", func(c *config.Config) { c.Providers.LLM.Model = "gpt-4o-mini" }, func(d config.ConfigDiff) bool { return d.ProvidersChanged }},
		{"fallbacks", func(c *config.Config) { c.Providers.Fallbacks = []config.ProviderEntry{{Name: "cli"}} }, func(d config.ConfigDiff) bool { return d.ProvidersChanged }},
		{"events", func(c *config.Config) { c.Events.Brokers = []string{"k:9092"} }, func(d config.ConfigDiff) bool { return d.EventsChanged }},
		{"listen addr", func(c *config.Config) { c.Server.ListenAddr = ":9999" }, func(d config.ConfigDiff) bool { return d.ServerChanged }},
		{"upload cap", func(c *config.Config) { c.Server.MaxUploadBytes = 1 }, func(d config.ConfigDiff) bool { return d.ServerChanged }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			old := config.Default()
			new := config.Default()
			tt.mutate(new)
			d := config.Diff(old, new)
			if !tt.check(d) {
				t.Errorf("change not detected: %+v", d)
			}
			if !d.RequiresRestart() {
				t.Error("RequiresRestart() = false")
			}
		})
	}
}
