package watch

import (
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/coordkernel/coordkernel/pkg/log"
)

const debounceInterval = 2 * time.Second

// Watcher debounces fsnotify events on a single directory and invokes
// onChange at most once per debounceInterval.
type Watcher struct {
	watcher *fsnotify.Watcher
	dir     string
	stopCh  chan struct{}
}

// New creates a Watcher over dir. The directory must already exist.
func New(dir string) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := w.Add(dir); err != nil {
		w.Close()
		return nil, err
	}
	return &Watcher{watcher: w, dir: dir, stopCh: make(chan struct{})}, nil
}

// Run blocks, calling onChange (with the changed file's base name) after
// each burst of events settles, until Stop is called.
func (w *Watcher) Run(onChange func(name string)) {
	logger := log.WithComponent("watch")
	var debounceTimer *time.Timer
	var timerCh <-chan time.Time
	var lastName string

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			lastName = filepath.Base(event.Name)
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.NewTimer(debounceInterval)
			timerCh = debounceTimer.C
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logger.Warn().Err(err).Str("dir", w.dir).Msg("watch error")
		case <-timerCh:
			timerCh = nil
			onChange(lastName)
		case <-w.stopCh:
			return
		}
	}
}

// Stop halts Run and releases the underlying fsnotify watcher.
func (w *Watcher) Stop() {
	close(w.stopCh)
	w.watcher.Close()
}
