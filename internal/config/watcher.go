package config

import (
	"bytes"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"
)

// DefaultWatchInterval is how often a [Watcher] stats the config file.
const DefaultWatchInterval = 5 * time.Second

// Reload describes one accepted edit of the config file.
type Reload struct {
	Old  *Config
	New  *Config
	Diff ConfigDiff
}

// ReloadFunc receives accepted edits. It runs on the watcher goroutine, or
// on the caller's goroutine for [Watcher.Check].
type ReloadFunc func(Reload)

// snapshot is the last valid file content seen by a Watcher.
type snapshot struct {
	cfg   *Config
	sum   [sha256.Size]byte
	mtime time.Time
}

// Watcher polls a config file and reports edits that still validate. An edit
// is delivered as a [Reload] carrying the [ConfigDiff]; edits that change
// nothing the diff tracks (comments, telemetry) replace the current config
// without a callback. Invalid edits are logged and the last valid config
// stays current.
type Watcher struct {
	path     string
	interval time.Duration
	onReload ReloadFunc
	logger   *slog.Logger

	checkMu sync.Mutex // serializes Check
	mu      sync.Mutex // guards last
	last    snapshot

	done     chan struct{}
	stopOnce sync.Once
}

// WatcherOption configures a [Watcher].
type WatcherOption func(*Watcher)

// WithInterval sets the polling interval. Default: [DefaultWatchInterval].
// A zero or negative interval disables background polling; edits are then
// picked up only by [Watcher.Check].
func WithInterval(d time.Duration) WatcherOption {
	return func(w *Watcher) { w.interval = d }
}

// WithWatcherLogger sets the logger. Default: slog.Default().
func WithWatcherLogger(l *slog.Logger) WatcherOption {
	return func(w *Watcher) { w.logger = l }
}

// NewWatcher loads the config at path and starts polling it. Call
// [Watcher.Stop] to end polling.
func NewWatcher(path string, onReload ReloadFunc, opts ...WatcherOption) (*Watcher, error) {
	w := &Watcher{
		path:     path,
		interval: DefaultWatchInterval,
		onReload: onReload,
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.logger == nil {
		w.logger = slog.Default()
	}

	snap, err := w.read()
	if err != nil {
		return nil, fmt.Errorf("config: watch %q: %w", path, err)
	}
	w.last = snap

	if w.interval > 0 {
		go w.poll()
	}
	return w, nil
}

// Current returns the most recently loaded valid config.
func (w *Watcher) Current() *Config {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.last.cfg
}

// Stop ends polling. It is safe to call more than once.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() { close(w.done) })
}

func (w *Watcher) poll() {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-w.done:
			return
		case <-ticker.C:
			if _, err := w.Check(); err != nil {
				w.logger.Warn("config: reload rejected", "path", w.path, "err", err)
			}
		}
	}
}

// Check compares the file with the last valid content and delivers a
// [Reload] when it changed. It reports whether the callback ran. A file that
// fails to load or validate returns the error and leaves the current config
// in place.
func (w *Watcher) Check() (bool, error) {
	w.checkMu.Lock()
	defer w.checkMu.Unlock()

	info, err := os.Stat(w.path)
	if err != nil {
		return false, err
	}

	w.mu.Lock()
	prev := w.last
	w.mu.Unlock()
	if info.ModTime().Equal(prev.mtime) {
		return false, nil
	}

	next, err := w.read()
	if err != nil {
		return false, err
	}

	w.mu.Lock()
	w.last = next
	w.mu.Unlock()

	if next.sum == prev.sum {
		return false, nil
	}

	d := Diff(prev.cfg, next.cfg)
	if d.Empty() {
		w.logger.Info("config: file changed, nothing to apply", "path", w.path)
		return false, nil
	}
	w.logger.Info("config: reloaded", "path", w.path, "sections", d.Sections(), "restart_required", d.RequiresRestart())

	// Outside the locks so the callback may call Current.
	if w.onReload != nil {
		w.onReload(Reload{Old: prev.cfg, New: next.cfg, Diff: d})
	}
	return true, nil
}

func (w *Watcher) read() (snapshot, error) {
	info, err := os.Stat(w.path)
	if err != nil {
		return snapshot{}, err
	}
	data, err := os.ReadFile(w.path)
	if err != nil {
		return snapshot{}, err
	}
	cfg, err := LoadFromReader(bytes.NewReader(data))
	if err != nil {
		return snapshot{}, err
	}
	return snapshot{cfg: cfg, sum: sha256.Sum256(data), mtime: info.ModTime()}, nil
}
