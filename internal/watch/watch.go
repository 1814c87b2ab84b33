// Package watch reports bursts of changes to corpus files.
package watch

import (
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is the quiet period used when none is given.
const DefaultDebounce = 500 * time.Millisecond

// Batch lists the files changed during one burst, sorted.
type Batch struct {
	Files []string
}

// Watcher monitors directories for corpus, parametrization and database
// file changes and emits one Batch once no event arrived for Debounce.
type Watcher struct {
	Dirs     []string
	Debounce time.Duration
	Changes  <-chan Batch

	changes chan Batch
	stop    chan struct{}
	done    chan struct{}
	watcher *fsnotify.Watcher
}

// New creates a watcher for dirs.
func New(debounce time.Duration, dirs ...string) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	ch := make(chan Batch, 4)
	return &Watcher{
		Dirs:     dirs,
		Debounce: debounce,
		Changes:  ch,
		changes:  ch,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
		watcher:  fw,
	}, nil
}

// Start begins watching. On error the watcher is released and must not
// be stopped.
func (w *Watcher) Start() error {
	for _, dir := range w.Dirs {
		if err := w.watcher.Add(dir); err != nil {
			w.watcher.Close()
			return err
		}
	}
	go w.loop()
	return nil
}

// Stop closes the watcher and the Changes channel.
// Batches not yet received when Stop is called may be dropped.
func (w *Watcher) Stop() {
	close(w.stop)
	w.watcher.Close()
	<-w.done
	close(w.changes)
}

func (w *Watcher) loop() {
	defer close(w.done)

	pending := make(map[string]bool)
	var last time.Time
	ticker := time.NewTicker(w.Debounce / 4)
	defer ticker.Stop()

	flush := func() {
		if len(pending) == 0 {
			return
		}
		files := make([]string, 0, len(pending))
		for f := range pending {
			files = append(files, f)
		}
		slices.Sort(files)
		clear(pending)
		select {
		case w.changes <- Batch{Files: files}:
		case <-w.stop:
		}
	}

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				flush()
				return
			}
			if !watched(event.Name) {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
				pending[event.Name] = true
				last = time.Now()
			}

		case <-ticker.C:
			if len(pending) > 0 && time.Since(last) >= w.Debounce {
				flush()
			}

		case _, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			// Watch errors are non-fatal.
		}
	}
}

func watched(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".json", ".toml", ".yaml", ".yml", ".db":
		return true
	}
	return false
}
