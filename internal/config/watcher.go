package config

import (
	"log"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher watches the config file path for changes and invokes onReload
// with the freshly loaded, validated Config. Debounced so a burst of
// filesystem events (editors frequently write+rename) triggers one reload.
type Watcher struct {
	path     string
	onReload func(*Config)
	stopCh   chan struct{}
}

// NewWatcher creates a Watcher for path. onReload is called on every
// successful reload; failed reloads are logged and the previous
// configuration stays in effect.
func NewWatcher(path string, onReload func(*Config)) *Watcher {
	return &Watcher{
		path:     path,
		onReload: onReload,
		stopCh:   make(chan struct{}),
	}
}

// Start begins watching in a background goroutine.
func (w *Watcher) Start() {
	go w.run()
}

// Stop terminates the watcher goroutine.
func (w *Watcher) Stop() {
	close(w.stopCh)
}

const debounceDuration = 500 * time.Millisecond

func (w *Watcher) run() {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		log.Printf("config: failed to create fsnotify watcher, hot-reload disabled: %v", err)
		return
	}
	defer watcher.Close()

	if err := watcher.Add(w.path); err != nil {
		log.Printf("config: failed to watch %s, hot-reload disabled: %v", w.path, err)
		return
	}

	log.Printf("config: watching %s for changes", w.path)

	var debounceTimer *time.Timer
	for {
		select {
		case <-w.stopCh:
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.AfterFunc(debounceDuration, w.reload)

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			log.Printf("config: watcher error: %v", err)
		}
	}
}

func (w *Watcher) reload() {
	cfg, err := Load(w.path)
	if err != nil {
		log.Printf("config: reload failed, keeping previous configuration: %v", err)
		return
	}
	log.Printf("config: reloaded %s", w.path)
	w.onReload(cfg)
}
