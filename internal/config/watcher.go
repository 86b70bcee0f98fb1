package config

import (
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Watcher tracks the render flags between frames. Edits to the file on disk
// are picked up through viper's file watch; CheckForChanges compares the
// live values against the last ones handed out.
type Watcher struct {
	mu       sync.Mutex
	last     RenderConfig
	onChange []func(old, cur RenderConfig)
}

func NewWatcher() *Watcher {
	return &Watcher{last: GetRenderConfig()}
}

// OnChange registers fn to run when CheckForChanges sees a difference.
func (w *Watcher) OnChange(fn func(old, cur RenderConfig)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onChange = append(w.onChange, fn)
}

// Current returns the flags as of the last check.
func (w *Watcher) Current() RenderConfig {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.last
}

// CheckForChanges reloads the render flags and reports whether any changed.
func (w *Watcher) CheckForChanges() (RenderConfig, bool) {
	cur := GetRenderConfig()

	w.mu.Lock()
	old := w.last
	if cur == old {
		w.mu.Unlock()
		return cur, false
	}
	w.last = cur
	callbacks := append([]func(old, cur RenderConfig){}, w.onChange...)
	w.mu.Unlock()

	for _, fn := range callbacks {
		fn(old, cur)
	}
	return cur, true
}

// WatchFile re-reads the config file whenever it changes on disk.
func (w *Watcher) WatchFile(onEvent func(name string)) {
	viper.OnConfigChange(func(e fsnotify.Event) {
		if onEvent != nil {
			onEvent(e.Name)
		}
	})
	viper.WatchConfig()
}
