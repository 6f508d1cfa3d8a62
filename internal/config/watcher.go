package config

import (
	"context"
	"os"
	"sync"
	"time"

	"genflow-agent/pkg/log"
)

// Watcher polls a configuration file for modification time changes and
// invokes a callback with the reloaded configuration. Polling keeps the
// agent free of platform-specific filesystem notification APIs.
type Watcher struct {
	configPath string
	lastMod    time.Time
	interval   time.Duration
	onChange   func(*Config)
	stopCh     chan struct{}
	mu         sync.Mutex
	wg         sync.WaitGroup
}

// NewWatcher creates a watcher for the given config path. onChange runs on
// the watcher goroutine with each successfully reloaded configuration.
func NewWatcher(configPath string, onChange func(*Config)) *Watcher {
	return &Watcher{
		configPath: configPath,
		interval:   5 * time.Second,
		onChange:   onChange,
		stopCh:     make(chan struct{}),
	}
}

// Start begins watching the configuration file for changes.
func (w *Watcher) Start(ctx context.Context) error {
	info, err := os.Stat(w.configPath)
	if err != nil {
		return log.Errorf("failed to stat config file: %v", err)
	}
	w.lastMod = info.ModTime()

	w.wg.Add(1)
	go w.watchLoop(ctx)
	log.Info("config watcher started", "path", w.configPath)
	return nil
}

// Stop stops watching the configuration file. Safe to call more than once.
func (w *Watcher) Stop() {
	w.mu.Lock()
	select {
	case <-w.stopCh:
		w.mu.Unlock()
		return
	default:
		close(w.stopCh)
	}
	w.mu.Unlock()

	w.wg.Wait()
	log.Info("config watcher stopped")
}

func (w *Watcher) watchLoop(ctx context.Context) {
	defer w.wg.Done()

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.checkForChanges()
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		}
	}
}

func (w *Watcher) checkForChanges() {
	w.mu.Lock()
	defer w.mu.Unlock()

	info, err := os.Stat(w.configPath)
	if err != nil {
		log.Warn("failed to stat config file", "path", w.configPath, "error", err)
		return
	}
	if !info.ModTime().After(w.lastMod) {
		return
	}

	newConfig, err := LoadConfig(w.configPath)
	if err != nil {
		// Keep running on the previous configuration; a half-written file
		// will be picked up on a later tick.
		log.Error("failed to reload configuration", "path", w.configPath, "error", err)
		return
	}

	w.lastMod = info.ModTime()
	log.Info("configuration file changed, reloaded", "path", w.configPath)
	if w.onChange != nil {
		w.onChange(newConfig)
	}
}
