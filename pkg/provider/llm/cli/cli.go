// Package cli provides an LLM provider that shells out to a command-line model
// client such as `claude -p`. The full prompt is staged in a temporary file and
// piped to the command's stdin, which keeps large transcripts off the argument
// list. The file is removed on every return path.
package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/MrWong99/stenoproof/pkg/provider/llm"
)

const (
	// DefaultCommand is the executable invoked when none is configured.
	DefaultCommand = "claude"

	// DefaultTimeout bounds a single invocation.
	DefaultTimeout = 5 * time.Minute

	// DefaultMaxOutputBytes caps the captured stdout.
	DefaultMaxOutputBytes = 50 << 20
)

// DefaultArgs runs the client in non-interactive print mode.
var DefaultArgs = []string{"-p"}

// ErrEmptyResponse is returned when the command exits successfully but
// prints nothing.
var ErrEmptyResponse = errors.New("cli: command returned empty response")

// ErrOutputTooLarge is returned when stdout exceeds the configured cap.
var ErrOutputTooLarge = errors.New("cli: command output exceeds limit")

// Provider implements llm.Provider by running an external command once per
// completion.
type Provider struct {
	command  string
	args     []string
	timeout  time.Duration
	maxBytes int
	tempDir  string
	env      []string
	caps     llm.ModelCapabilities
	log      *slog.Logger
}

// Option is a functional option for Provider.
type Option func(*Provider)

// WithArgs replaces the default argument list.
func WithArgs(args ...string) Option {
	return func(p *Provider) {
		p.args = append([]string(nil), args...)
	}
}

// WithTimeout bounds each invocation. Non-positive values keep the default.
func WithTimeout(d time.Duration) Option {
	return func(p *Provider) {
		if d > 0 {
			p.timeout = d
		}
	}
}

// WithMaxOutputBytes caps the captured stdout. Non-positive values keep the
// default.
func WithMaxOutputBytes(n int) Option {
	return func(p *Provider) {
		if n > 0 {
			p.maxBytes = n
		}
	}
}

// WithTempDir sets the directory for staged prompt files. Empty uses
// os.TempDir.
func WithTempDir(dir string) Option {
	return func(p *Provider) {
		p.tempDir = dir
	}
}

// WithEnv appends KEY=VALUE pairs to the command's environment.
func WithEnv(env map[string]string) Option {
	return func(p *Provider) {
		for k, v := range env {
			p.env = append(p.env, k+"="+v)
		}
	}
}

// WithCapabilities overrides the reported model capabilities.
func WithCapabilities(caps llm.ModelCapabilities) Option {
	return func(p *Provider) {
		p.caps = caps
	}
}

// WithLogger sets the logger used for stderr diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(p *Provider) {
		if l != nil {
			p.log = l
		}
	}
}

// New constructs a Provider running command. An empty command selects
// [DefaultCommand] with [DefaultArgs].
func New(command string, opts ...Option) (*Provider, error) {
	p := &Provider{
		command:  command,
		timeout:  DefaultTimeout,
		maxBytes: DefaultMaxOutputBytes,
		caps:     llm.ModelCapabilities{ContextWindow: 200_000, MaxOutputTokens: 8_192},
		log:      slog.Default(),
	}
	if p.command == "" {
		p.command = DefaultCommand
		p.args = append([]string(nil), DefaultArgs...)
	}
	for _, o := range opts {
		o(p)
	}
	if strings.TrimSpace(p.command) == "" {
		return nil, fmt.Errorf("cli: command must not be blank")
	}
	return p, nil
}

// Complete implements llm.Provider. The system prompt and messages are
// concatenated into a single prompt, since command-line clients take one
// text input.
func (p *Provider) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	prompt := renderPrompt(req)

	path, err := p.stage(prompt)
	if err != nil {
		return nil, err
	}
	defer func() {
		if rmErr := os.Remove(path); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
			p.log.Warn("cli: remove staged prompt", "path", path, "err", rmErr)
		}
	}()

	in, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("cli: open staged prompt: %w", err)
	}
	defer in.Close()

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	stdout := &cappedBuffer{limit: p.maxBytes}
	var stderr bytes.Buffer

	cmd := exec.CommandContext(ctx, p.command, p.args...)
	cmd.Stdin = in
	cmd.Stdout = stdout
	cmd.Stderr = &stderr
	if len(p.env) > 0 {
		cmd.Env = append(os.Environ(), p.env...)
	}

	start := time.Now()
	runErr := cmd.Run()
	if stderr.Len() > 0 {
		p.log.Debug("cli: command stderr", "command", p.command, "stderr", strings.TrimSpace(stderr.String()))
	}

	switch {
	case stdout.overflow:
		return nil, fmt.Errorf("%w (%d bytes)", ErrOutputTooLarge, p.maxBytes)
	case ctx.Err() != nil:
		return nil, fmt.Errorf("cli: %s: %w", p.command, ctx.Err())
	case runErr != nil:
		return nil, fmt.Errorf("cli: run %s: %w", p.command, runErr)
	}

	content := strings.TrimSpace(stdout.String())
	if content == "" {
		return nil, ErrEmptyResponse
	}

	p.log.Debug("cli: completion finished",
		"command", p.command,
		"prompt_bytes", len(prompt),
		"response_bytes", len(content),
		"elapsed", time.Since(start),
	)

	return &llm.CompletionResponse{Content: content}, nil
}

func (p *Provider) stage(prompt string) (string, error) {
	f, err := os.CreateTemp(p.tempDir, "stenoproof-*.txt")
	if err != nil {
		return "", fmt.Errorf("cli: stage prompt: %w", err)
	}
	path := f.Name()
	if _, err := f.WriteString(prompt); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return "", fmt.Errorf("cli: stage prompt: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return "", fmt.Errorf("cli: stage prompt: %w", err)
	}
	return path, nil
}

// CountTokens implements llm.Provider.
func (p *Provider) CountTokens(messages []llm.Message) (int, error) {
	return llm.EstimateTokens(messages), nil
}

// Capabilities implements llm.Provider.
func (p *Provider) Capabilities() llm.ModelCapabilities {
	return p.caps
}

func renderPrompt(req llm.CompletionRequest) string {
	var b strings.Builder
	if req.SystemPrompt != "" {
		b.WriteString(req.SystemPrompt)
		b.WriteString("\n\n")
	}
	for i, m := range req.Messages {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(m.Content)
	}
	return b.String()
}

// cappedBuffer discards writes past limit and remembers that it did. It
// exposes only Write so io.Copy cannot bypass the cap through ReadFrom.
type cappedBuffer struct {
	buf      bytes.Buffer
	limit    int
	overflow bool
}

func (c *cappedBuffer) Write(p []byte) (int, error) {
	if room := c.limit - c.buf.Len(); len(p) > room {
		c.overflow = true
		if room > 0 {
			c.buf.Write(p[:room])
		}
		return len(p), nil
	}
	return c.buf.Write(p)
}

func (c *cappedBuffer) String() string { return c.buf.String() }

var _ llm.Provider = (*Provider)(nil)
