package scanner

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

const reloadDebounce = 200 * time.Millisecond

// Watcher reloads a phrase file into a Library whenever the file changes.
// Editors often write through a temp file and rename, so the parent
// directory is watched rather than the file itself.
type Watcher struct {
	path string
	lib  *Library
	log  zerolog.Logger

	mu    sync.Mutex
	timer *time.Timer
}

// NewWatcher creates a Watcher for path. Call Run to start watching.
func NewWatcher(path string, lib *Library, log zerolog.Logger) *Watcher {
	return &Watcher{
		path: filepath.Clean(path),
		lib:  lib,
		log:  log,
	}
}

// Run watches until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()

	if err := fw.Add(filepath.Dir(w.path)); err != nil {
		return err
	}
	w.log.Info().Str("path", w.path).Msg("watching phrase file")

	for {
		select {
		case <-ctx.Done():
			w.mu.Lock()
			if w.timer != nil {
				w.timer.Stop()
			}
			w.mu.Unlock()
			return nil
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != w.path {
				continue
			}
			if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Rename) {
				w.schedule()
			}
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.log.Warn().Err(err).Msg("phrase watcher error")
		}
	}
}

// schedule coalesces bursts of events (truncate + write) into one reload.
func (w *Watcher) schedule() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(reloadDebounce, func() { w.Reload() })
}

// Reload reads the phrase file and swaps it into the Library. A file that
// fails to load or compile leaves the previous phrases in place.
func (w *Watcher) Reload() error {
	list, err := LoadPhrases(w.path)
	if err != nil {
		w.log.Warn().Err(err).Msg("phrase reload failed, keeping previous list")
		return err
	}
	s, err := Compile(list)
	if err != nil {
		w.log.Warn().Err(err).Msg("phrase reload failed, keeping previous list")
		return err
	}
	w.lib.Swap(s, w.path)
	w.log.Info().
		Int("pressure", len(list.Pressure)).
		Int("jargon", len(list.Jargon)).
		Msg("phrase list reloaded")
	return nil
}
