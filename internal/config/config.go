// Package config provides the configuration schema, loader, provider registry
// and hot-reload watcher of the stenoproof server.
package config

import "time"

// LogLevel controls log verbosity.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Config is the root configuration structure. It is typically loaded from a
// YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Providers ProvidersConfig `yaml:"providers"`
	Proofread ProofreadConfig `yaml:"proofread"`
	Events    EventsConfig    `yaml:"events"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// ServerConfig holds network and logging settings.
type ServerConfig struct {
	// ListenAddr is the TCP address the server listens on. Default: ":8080".
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity. Default: info.
	LogLevel LogLevel `yaml:"log_level"`

	// MaxUploadBytes caps the transcript upload size. Default: 50 MiB.
	MaxUploadBytes int64 `yaml:"max_upload_bytes"`

	// RequestTimeout bounds a whole proofreading request. Zero disables the
	// bound; each chunk is still limited by proofread.chunk_timeout.
	RequestTimeout time.Duration `yaml:"request_timeout"`

	// TLS enables HTTPS when set.
	TLS *TLSConfig `yaml:"tls"`
}

// TLSConfig holds TLS certificate paths.
type TLSConfig struct {
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// ProvidersConfig selects the analyzer backends. Names are looked up in the
// [Registry].
type ProvidersConfig struct {
	// LLM is the primary analyzer backend. When Name is empty the offline
	// demo analyzer is used.
	LLM ProviderEntry `yaml:"llm"`

	// Fallbacks are tried in order when the primary fails or its circuit
	// breaker is open.
	Fallbacks []ProviderEntry `yaml:"fallbacks"`

	// CircuitBreaker tunes the breaker placed in front of every backend.
	CircuitBreaker CircuitBreakerConfig `yaml:"circuit_breaker"`
}

// ProviderEntry is the configuration block of one backend. Name selects the
// constructor in the [Registry].
type ProviderEntry struct {
	// Name selects the registered provider implementation (e.g., "openai",
	// "anthropic", "cli").
	Name string `yaml:"name"`

	// APIKey authenticates against the provider's API, if any.
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the provider's default endpoint.
	BaseURL string `yaml:"base_url"`

	// Model selects a model within the provider.
	Model string `yaml:"model"`

	// Options holds provider-specific values, such as "command" and "args"
	// for the cli provider.
	Options map[string]any `yaml:"options"`
}

// CircuitBreakerConfig mirrors the resilience breaker knobs. Zero values
// select the breaker defaults.
type CircuitBreakerConfig struct {
	MaxFailures  int           `yaml:"max_failures"`
	ResetTimeout time.Duration `yaml:"reset_timeout"`
	HalfOpenMax  int           `yaml:"half_open_max"`
}

// ProofreadConfig tunes transcript analysis.
type ProofreadConfig struct {
	// ChunkPages bounds the pages sent per analyzer call. Default: 15.
	ChunkPages int `yaml:"chunk_pages"`

	// ReviewChunkPages is the finer bound used by the review client.
	// Default: 5.
	ReviewChunkPages int `yaml:"review_chunk_pages"`

	// ChunkTimeout bounds one analyzer call. Default: 5m.
	ChunkTimeout time.Duration `yaml:"chunk_timeout"`

	// Concurrency is the number of chunks analyzed at once. Default: 1.
	Concurrency int `yaml:"concurrency"`

	// RequestsPerMinute paces analyzer calls. Zero disables pacing.
	RequestsPerMinute int `yaml:"requests_per_minute"`

	// MaxTokens caps the completion length. Default: 4096.
	MaxTokens int `yaml:"max_tokens"`

	// Temperature is the sampling temperature. Default: 0.1.
	Temperature *float64 `yaml:"temperature"`

	// EnrichContext widens single-word grammar corrections. Default: true.
	EnrichContext *bool `yaml:"enrich_context"`

	// PromptStyle is "json" or "compact". Default: json, or compact for the
	// cli provider.
	PromptStyle string `yaml:"prompt_style"`
}

// EventsConfig configures run-completed event publishing to Kafka.
type EventsConfig struct {
	Enabled bool     `yaml:"enabled"`
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

// TelemetryConfig configures metrics and tracing.
type TelemetryConfig struct {
	// ServiceName is the OTel service name. Default: "stenoproof".
	ServiceName string `yaml:"service_name"`

	// MetricsPath is the Prometheus scrape path. Default: "/metrics".
	MetricsPath string `yaml:"metrics_path"`
}

// Defaults.
const (
	DefaultListenAddr       = ":8080"
	DefaultMaxUploadBytes   = 50 << 20
	DefaultChunkPages       = 15
	DefaultReviewChunkPages = 5
	DefaultChunkTimeout     = 5 * time.Minute
	DefaultMaxTokens        = 4096
	DefaultTemperature      = 0.1
	DefaultServiceName      = "stenoproof"
	DefaultMetricsPath      = "/metrics"
)

// ApplyDefaults fills zero-valued fields with their defaults.
func (c *Config) ApplyDefaults() {
	if c.Server.ListenAddr == "" {
		c.Server.ListenAddr = DefaultListenAddr
	}
	if c.Server.LogLevel == "" {
		c.Server.LogLevel = LogInfo
	}
	if c.Server.MaxUploadBytes == 0 {
		c.Server.MaxUploadBytes = DefaultMaxUploadBytes
	}
	p := &c.Proofread
	if p.ChunkPages == 0 {
		p.ChunkPages = DefaultChunkPages
	}
	if p.ReviewChunkPages == 0 {
		p.ReviewChunkPages = DefaultReviewChunkPages
	}
	if p.ChunkTimeout == 0 {
		p.ChunkTimeout = DefaultChunkTimeout
	}
	if p.Concurrency == 0 {
		p.Concurrency = 1
	}
	if p.MaxTokens == 0 {
		p.MaxTokens = DefaultMaxTokens
	}
	if p.Temperature == nil {
		t := DefaultTemperature
		p.Temperature = &t
	}
	if p.EnrichContext == nil {
		on := true
		p.EnrichContext = &on
	}
	if p.PromptStyle == "" {
		p.PromptStyle = "json"
		if c.Providers.LLM.Name == "cli" {
			p.PromptStyle = "compact"
		}
	}
	if c.Telemetry.ServiceName == "" {
		c.Telemetry.ServiceName = DefaultServiceName
	}
	if c.Telemetry.MetricsPath == "" {
		c.Telemetry.MetricsPath = DefaultMetricsPath
	}
}

// Default returns a Config with every default applied and no provider
// configured.
func Default() *Config {
	c := &Config{}
	c.ApplyDefaults()
	return c
}
