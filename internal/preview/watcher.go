package preview

import (
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// FileWatcher reports content changes to a single watched file. Events is
// closed when the watcher shuts down, so consumers can range over it.
type FileWatcher interface {
	Events() <-chan struct{}
	Close() error
}

// WatcherFactory creates a FileWatcher for a path. The registry takes a
// factory so tests can substitute in-memory watchers.
type WatcherFactory func(path string) (FileWatcher, error)

// fileWatcher is the fsnotify-backed FileWatcher. It watches the file's
// parent directory rather than the file itself: editors that save via
// write-to-temp-then-rename would otherwise silently drop the watch.
type fileWatcher struct {
	fsw    *fsnotify.Watcher
	path   string
	events chan struct{}
	done   chan struct{}
	once   sync.Once
}

// NewFileWatcher watches path for writes, creates, and renames.
func NewFileWatcher(path string) (FileWatcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(filepath.Dir(abs)); err != nil {
		fsw.Close()
		return nil, err
	}

	w := &fileWatcher{
		fsw:    fsw,
		path:   abs,
		events: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	go w.loop()
	return w, nil
}

func (w *fileWatcher) loop() {
	defer close(w.events)
	for {
		select {
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if !w.matches(ev.Name) {
				continue
			}
			if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Rename) {
				// Coalesce: one pending event is enough, viewers reload the
				// whole artifact anyway.
				select {
				case w.events <- struct{}{}:
				default:
				}
			}
		case _, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
		case <-w.done:
			return
		}
	}
}

func (w *fileWatcher) matches(name string) bool {
	abs, err := filepath.Abs(name)
	if err != nil {
		return false
	}
	return abs == w.path
}

// Events returns the change notification channel.
func (w *fileWatcher) Events() <-chan struct{} {
	return w.events
}

// Close stops the watcher. Safe to call more than once.
func (w *fileWatcher) Close() error {
	var err error
	w.once.Do(func() {
		close(w.done)
		err = w.fsw.Close()
	})
	return err
}
