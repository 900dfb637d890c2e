package app

import (
	"errors"
	"fmt"
	"log/slog"

	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/MrWong99/stenoproof/internal/config"
	"github.com/MrWong99/stenoproof/pkg/provider/llm"
	"github.com/MrWong99/stenoproof/pkg/provider/llm/anyllm"
	"github.com/MrWong99/stenoproof/pkg/provider/llm/cli"
	"github.com/MrWong99/stenoproof/pkg/provider/llm/demo"
	"github.com/MrWong99/stenoproof/pkg/provider/llm/openai"
)

// NamedProvider is an analyzer backend together with its config name.
type NamedProvider struct {
	Name     string
	Provider llm.Provider
}

// Providers holds the analyzer backends built from config. A zero Primary
// selects the offline demo analyzer.
type Providers struct {
	Primary   NamedProvider
	Fallbacks []NamedProvider
}

// anyLLMVendors share the same wiring: optional APIKey and optional BaseURL.
var anyLLMVendors = []string{"anthropic", "gemini", "deepseek", "mistral", "groq", "llamacpp", "llamafile"}

// RegisterBuiltinProviders wires every built-in analyzer backend into reg.
func RegisterBuiltinProviders(reg *config.Registry) {
	reg.RegisterLLM("openai", func(entry config.ProviderEntry) (llm.Provider, error) {
		var opts []openai.Option
		if entry.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(entry.BaseURL))
		}
		if org := optString(entry.Options, "organization"); org != "" {
			opts = append(opts, openai.WithOrganization(org))
		}
		return openai.New(entry.APIKey, entry.Model, opts...)
	})

	for _, vendor := range anyLLMVendors {
		reg.RegisterLLM(vendor, func(entry config.ProviderEntry) (llm.Provider, error) {
			var opts []anyllmlib.Option
			if entry.APIKey != "" {
				opts = append(opts, anyllmlib.WithAPIKey(entry.APIKey))
			}
			if entry.BaseURL != "" {
				opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
			}
			return anyllm.New(vendor, entry.Model, opts...)
		})
	}

	// ollama is a local server; it uses BaseURL for the address, not an API key.
	reg.RegisterLLM("ollama", func(entry config.ProviderEntry) (llm.Provider, error) {
		var opts []anyllmlib.Option
		if entry.BaseURL != "" {
			opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
		}
		return anyllm.New("ollama", entry.Model, opts...)
	})

	reg.RegisterLLM("cli", func(entry config.ProviderEntry) (llm.Provider, error) {
		command := optString(entry.Options, "command")
		if command == "" {
			command = cli.DefaultCommand
		}
		var opts []cli.Option
		if args, ok := optStrings(entry.Options, "args"); ok {
			opts = append(opts, cli.WithArgs(args...))
		}
		if dir := optString(entry.Options, "temp_dir"); dir != "" {
			opts = append(opts, cli.WithTempDir(dir))
		}
		return cli.New(command, opts...)
	})

	reg.RegisterLLM("demo", func(config.ProviderEntry) (llm.Provider, error) {
		return demo.New(), nil
	})

	for _, name := range reg.LLMNames() {
		slog.Debug("registered provider", "kind", "llm", "name", name)
	}
}

// BuildProviders instantiates the backends named in cfg using reg.
func BuildProviders(cfg *config.Config, reg *config.Registry) (*Providers, error) {
	ps := &Providers{}
	if cfg.Providers.LLM.Name == "" {
		return ps, nil
	}

	p, err := reg.CreateLLM(cfg.Providers.LLM)
	if err != nil {
		return nil, fmt.Errorf("app: create llm provider %q: %w", cfg.Providers.LLM.Name, err)
	}
	ps.Primary = NamedProvider{Name: cfg.Providers.LLM.Name, Provider: p}
	slog.Info("provider created", "kind", "llm", "name", cfg.Providers.LLM.Name, "model", cfg.Providers.LLM.Model)

	for i, entry := range cfg.Providers.Fallbacks {
		fb, err := reg.CreateLLM(entry)
		if errors.Is(err, config.ErrProviderNotRegistered) {
			slog.Warn("fallback provider not registered, skipping", "index", i, "name", entry.Name)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("app: create fallback %d %q: %w", i, entry.Name, err)
		}
		ps.Fallbacks = append(ps.Fallbacks, NamedProvider{Name: fallbackName(entry, i), Provider: fb})
		slog.Info("provider created", "kind", "llm-fallback", "name", entry.Name, "model", entry.Model)
	}
	return ps, nil
}

// fallbackName keeps breaker names unique when one vendor is listed twice.
func fallbackName(entry config.ProviderEntry, i int) string {
	if entry.Model == "" {
		return fmt.Sprintf("%s#%d", entry.Name, i)
	}
	return entry.Name + "/" + entry.Model
}

// optString extracts a string value from a provider Options map[string]any.
// Returns "" if the map is nil, the key is absent, or the value is not a string.
func optString(opts map[string]any, key string) string {
	s, _ := opts[key].(string)
	return s
}

// optStrings extracts a list of strings. YAML sequences decode as []any.
func optStrings(opts map[string]any, key string) ([]string, bool) {
	switch v := opts[key].(type) {
	case []string:
		return v, true
	case []any:
		out := make([]string, 0, len(v))
		for _, e := range v {
			out = append(out, fmt.Sprint(e))
		}
		return out, true
	case string:
		return []string{v}, true
	}
	return nil, false
}
