package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/MrWong99/stenoproof/internal/proofread"
)

// ValidLLMNames lists the built-in analyzer backends. Used by [Validate] to
// warn about unrecognised names.
var ValidLLMNames = []string{
	"openai", "anthropic", "ollama", "gemini", "deepseek", "mistral", "groq",
	"llamacpp", "llamafile", "cli", "demo",
}

// Load reads the YAML configuration file at path and returns a validated
// [Config] with defaults applied.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, applies defaults and
// validates the result. Unknown keys are rejected. An empty document yields
// the defaults.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	cfg.ApplyDefaults()
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values. It returns a
// joined error listing every failure found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if cfg.Server.MaxUploadBytes < 0 {
		errs = append(errs, fmt.Errorf("server.max_upload_bytes %d must not be negative", cfg.Server.MaxUploadBytes))
	}
	if cfg.Server.RequestTimeout < 0 {
		errs = append(errs, fmt.Errorf("server.request_timeout %s must not be negative", cfg.Server.RequestTimeout))
	}
	if tls := cfg.Server.TLS; tls != nil && (tls.CertFile == "" || tls.KeyFile == "") {
		errs = append(errs, errors.New("server.tls requires both cert_file and key_file"))
	}

	validateProviderName("providers.llm", cfg.Providers.LLM.Name)
	for i, fb := range cfg.Providers.Fallbacks {
		prefix := fmt.Sprintf("providers.fallbacks[%d]", i)
		if fb.Name == "" {
			errs = append(errs, fmt.Errorf("%s.name is required", prefix))
			continue
		}
		validateProviderName(prefix, fb.Name)
	}
	if len(cfg.Providers.Fallbacks) > 0 && cfg.Providers.LLM.Name == "" {
		errs = append(errs, errors.New("providers.fallbacks requires providers.llm to be configured"))
	}
	if cb := cfg.Providers.CircuitBreaker; cb.MaxFailures < 0 || cb.HalfOpenMax < 0 || cb.ResetTimeout < 0 {
		errs = append(errs, errors.New("providers.circuit_breaker values must not be negative"))
	}
	if cfg.Providers.LLM.Name == "" {
		slog.Warn("providers.llm is not configured; using the offline demo analyzer")
	}

	p := cfg.Proofread
	for _, f := range []struct {
		name  string
		value int
	}{
		{"chunk_pages", p.ChunkPages},
		{"review_chunk_pages", p.ReviewChunkPages},
		{"concurrency", p.Concurrency},
		{"max_tokens", p.MaxTokens},
	} {
		if f.value < 0 {
			errs = append(errs, fmt.Errorf("proofread.%s %d must not be negative", f.name, f.value))
		}
	}
	if p.RequestsPerMinute < 0 {
		errs = append(errs, fmt.Errorf("proofread.requests_per_minute %d must not be negative", p.RequestsPerMinute))
	}
	if p.ChunkTimeout < 0 {
		errs = append(errs, fmt.Errorf("proofread.chunk_timeout %s must not be negative", p.ChunkTimeout))
	}
	if p.Temperature != nil && (*p.Temperature < 0 || *p.Temperature > 2) {
		errs = append(errs, fmt.Errorf("proofread.temperature %.2f is out of range [0, 2]", *p.Temperature))
	}
	if _, err := proofread.ParsePromptStyle(p.PromptStyle); err != nil {
		errs = append(errs, fmt.Errorf("proofread.prompt_style %q is invalid; valid values: json, compact", p.PromptStyle))
	}

	if cfg.Events.Enabled {
		if len(cfg.Events.Brokers) == 0 {
			errs = append(errs, errors.New("events.brokers is required when events are enabled"))
		}
		if cfg.Events.Topic == "" {
			errs = append(errs, errors.New("events.topic is required when events are enabled"))
		}
	}

	if mp := cfg.Telemetry.MetricsPath; mp != "" && !strings.HasPrefix(mp, "/") {
		errs = append(errs, fmt.Errorf("telemetry.metrics_path %q must start with /", mp))
	}

	return errors.Join(errs...)
}

// validateProviderName logs a warning if name is non-empty and not one of
// [ValidLLMNames].
func validateProviderName(field, name string) {
	if name == "" || slices.Contains(ValidLLMNames, name) {
		return
	}
	slog.Warn("unknown provider name, may be a typo or third-party provider",
		"field", field,
		"name", name,
		"known", ValidLLMNames,
	)
}
