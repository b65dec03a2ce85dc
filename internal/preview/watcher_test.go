package preview

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func waitEvent(t *testing.T, w FileWatcher) {
	t.Helper()
	select {
	case <-w.Events():
	case <-time.After(3 * time.Second):
		t.Fatal("no change event within 3s")
	}
}

func TestFileWatcherReportsWrites(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "diagram.svg")
	if err := os.WriteFile(path, []byte("<svg/>"), 0644); err != nil {
		t.Fatal(err)
	}

	w, err := NewFileWatcher(path)
	if err != nil {
		t.Fatalf("NewFileWatcher() error = %v", err)
	}
	t.Cleanup(func() { w.Close() })

	if err := os.WriteFile(path, []byte("<svg>v2</svg>"), 0644); err != nil {
		t.Fatal(err)
	}
	waitEvent(t, w)
}

func TestFileWatcherReportsRenameReplace(t *testing.T) {
	// Editors save by writing a temp file and renaming it over the
	// target; the watcher has to survive that.
	dir := t.TempDir()
	path := filepath.Join(dir, "diagram.svg")
	if err := os.WriteFile(path, []byte("<svg/>"), 0644); err != nil {
		t.Fatal(err)
	}

	w, err := NewFileWatcher(path)
	if err != nil {
		t.Fatalf("NewFileWatcher() error = %v", err)
	}
	t.Cleanup(func() { w.Close() })

	tmp := filepath.Join(dir, ".diagram.svg.tmp")
	if err := os.WriteFile(tmp, []byte("<svg>v2</svg>"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.Rename(tmp, path); err != nil {
		t.Fatal(err)
	}
	waitEvent(t, w)

	// And the watch still works for plain writes afterwards.
	drainEvents(w)
	if err := os.WriteFile(path, []byte("<svg>v3</svg>"), 0644); err != nil {
		t.Fatal(err)
	}
	waitEvent(t, w)
}

func TestFileWatcherIgnoresSiblings(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "diagram.svg")
	if err := os.WriteFile(path, []byte("<svg/>"), 0644); err != nil {
		t.Fatal(err)
	}

	w, err := NewFileWatcher(path)
	if err != nil {
		t.Fatalf("NewFileWatcher() error = %v", err)
	}
	t.Cleanup(func() { w.Close() })

	if err := os.WriteFile(filepath.Join(dir, "other.svg"), []byte("<svg/>"), 0644); err != nil {
		t.Fatal(err)
	}
	select {
	case <-w.Events():
		t.Fatal("got event for a sibling file")
	case <-time.After(300 * time.Millisecond):
	}
}

func TestFileWatcherCloseEndsEvents(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "diagram.svg")
	if err := os.WriteFile(path, []byte("<svg/>"), 0644); err != nil {
		t.Fatal(err)
	}

	w, err := NewFileWatcher(path)
	if err != nil {
		t.Fatalf("NewFileWatcher() error = %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("second Close() error = %v", err)
	}

	select {
	case _, ok := <-w.Events():
		if ok {
			t.Fatal("event delivered after Close")
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Events not closed within 3s of Close")
	}
}

// drainEvents empties any already-queued coalesced event.
func drainEvents(w FileWatcher) {
	for {
		select {
		case <-w.Events():
		default:
			return
		}
	}
}
