package config

import (
	"context"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

const (
	DefaultWatchPollInterval = 60 * time.Second
	reloadDebounce           = 100 * time.Millisecond
)

// Watcher reloads the config file when it changes and hands the new config
// to onReload. Only settings that are safe to change at runtime should be
// applied by the callback.
type Watcher struct {
	path         string
	onReload     func(*Config)
	PollInterval time.Duration

	mu      sync.Mutex
	lastMod time.Time
}

func NewWatcher(path string, onReload func(*Config)) *Watcher {
	w := &Watcher{path: path, onReload: onReload, PollInterval: DefaultWatchPollInterval}
	if fi, err := os.Stat(path); err == nil {
		w.lastMod = fi.ModTime()
	}
	return w
}

// Start watches with fsnotify and also polls the mtime as a fallback for
// filesystems where notifications are unreliable.
func (w *Watcher) Start(ctx context.Context) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		log.Printf("[WARN] Config Watcher: fsnotify failed (%v), polling only", err)
	} else if err := watcher.Add(filepath.Dir(w.path)); err != nil {
		// Editors replace the file, so the directory is watched rather than the file.
		log.Printf("[WARN] Config Watcher: failed to watch %s (%v), polling only", filepath.Dir(w.path), err)
		watcher.Close()
		watcher = nil
	}

	if watcher != nil {
		go func() {
			defer watcher.Close()
			target := filepath.Clean(w.path)
			for {
				select {
				case <-ctx.Done():
					return
				case event, ok := <-watcher.Events:
					if !ok {
						return
					}
					if filepath.Clean(event.Name) != target {
						continue
					}
					if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
						time.Sleep(reloadDebounce)
						w.ReloadIfChanged()
					}
				case err, ok := <-watcher.Errors:
					if !ok {
						return
					}
					log.Printf("[WARN] Config Watcher Error: %v", err)
				}
			}
		}()
	}

	go func() {
		interval := w.PollInterval
		if interval <= 0 {
			interval = DefaultWatchPollInterval
		}
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				w.ReloadIfChanged()
			}
		}
	}()
}

// ReloadIfChanged reloads only when the file mtime moved. It reports whether
// a valid config was handed to the callback.
func (w *Watcher) ReloadIfChanged() bool {
	fi, err := os.Stat(w.path)
	if err != nil {
		return false
	}

	w.mu.Lock()
	if !fi.ModTime().After(w.lastMod) {
		w.mu.Unlock()
		return false
	}
	w.lastMod = fi.ModTime()
	w.mu.Unlock()

	cfg, err := Load(w.path)
	if err != nil {
		log.Printf("[ERROR] Config Watcher: reload of %s rejected: %v", w.path, err)
		return false
	}
	log.Printf("[INFO] Config Watcher: %s reloaded", w.path)
	w.onReload(cfg)
	return true
}
