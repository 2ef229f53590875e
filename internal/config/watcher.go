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

// DefaultWatchInterval is how often a [Watcher] polls the config file.
const DefaultWatchInterval = 5 * time.Second

// fileState identifies one version of the config file on disk.
type fileState struct {
	modTime time.Time
	sum     [sha256.Size]byte
}

// Watcher keeps the config file loaded and reports content changes to a
// callback. A file whose mtime moved but whose bytes are unchanged is ignored.
// An invalid file is logged and the previous config stays current.
type Watcher struct {
	path     string
	interval time.Duration
	onChange func(old, new *Config)

	// reloadMu serialises reloads so callbacks arrive in file order.
	reloadMu sync.Mutex

	mu      sync.Mutex
	current *Config
	state   fileState

	stop     chan struct{}
	stopOnce sync.Once
}

// WatcherOption configures a [Watcher].
type WatcherOption func(*Watcher)

// WithInterval sets the polling interval. Zero or negative disables polling;
// changes are then only picked up by [Watcher.Reload].
func WithInterval(d time.Duration) WatcherOption {
	return func(w *Watcher) { w.interval = d }
}

// NewWatcher loads the config at path and starts polling it. onChange may be
// nil.
func NewWatcher(path string, onChange func(old, new *Config), opts ...WatcherOption) (*Watcher, error) {
	w := &Watcher{
		path:     path,
		interval: DefaultWatchInterval,
		onChange: onChange,
		stop:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}

	cfg, st, err := readConfigFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: watcher initial load: %w", err)
	}
	w.current, w.state = cfg, st

	if w.interval > 0 {
		go w.loop()
	}
	return w, nil
}

// Current returns the most recently loaded valid config.
func (w *Watcher) Current() *Config {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.current
}

// Stop ends polling. It is safe to call more than once.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() { close(w.stop) })
}

// Reload re-reads the file now. It reports whether a new config was applied;
// the error is non-nil when the file could not be read or is invalid.
func (w *Watcher) Reload() (bool, error) {
	w.reloadMu.Lock()
	defer w.reloadMu.Unlock()

	cfg, st, err := readConfigFile(w.path)
	if err != nil {
		return false, err
	}

	w.mu.Lock()
	if st.sum == w.state.sum {
		w.state.modTime = st.modTime
		w.mu.Unlock()
		return false, nil
	}
	old := w.current
	w.current, w.state = cfg, st
	w.mu.Unlock()

	slog.Info("config reloaded", "path", w.path)
	if w.onChange != nil {
		w.onChange(old, cfg)
	}
	return true, nil
}

func (w *Watcher) loop() {
	t := time.NewTicker(w.interval)
	defer t.Stop()
	for {
		select {
		case <-w.stop:
			return
		case <-t.C:
			if !w.modified() {
				continue
			}
			if _, err := w.Reload(); err != nil {
				slog.Warn("config reload failed, keeping previous config", "path", w.path, "err", err)
			}
		}
	}
}

// modified reports whether the file's mtime differs from the loaded version.
func (w *Watcher) modified() bool {
	info, err := os.Stat(w.path)
	if err != nil {
		slog.Warn("config watcher: cannot stat file", "path", w.path, "err", err)
		return false
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	return !info.ModTime().Equal(w.state.modTime)
}

// readConfigFile parses and validates the file at path and fingerprints its
// content.
func readConfigFile(path string) (*Config, fileState, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fileState{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fileState{}, err
	}
	cfg, err := LoadFromReader(bytes.NewReader(data))
	if err != nil {
		return nil, fileState{}, err
	}
	return cfg, fileState{modTime: info.ModTime(), sum: sha256.Sum256(data)}, nil
}
