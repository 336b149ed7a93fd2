package server

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// startWatcher reports every change on the returned channel.
func startWatcher(t *testing.T, dir string, extra ...string) <-chan string {
	t.Helper()
	changes := make(chan string, 16)
	w, err := NewWatcher(dir, extra, func(path string) error {
		changes <- path
		return nil
	}, nil)
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	w.Start()
	t.Cleanup(func() { w.Stop() })
	return changes
}

func waitChange(t *testing.T, changes <-chan string, want string) {
	t.Helper()
	timeout := time.After(3 * time.Second)
	for {
		select {
		case got := <-changes:
			if got == want {
				return
			}
		case <-timeout:
			t.Fatalf("no change reported for %q", want)
		}
	}
}

func TestWatcherReportsLessonFiles(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "unit-1"), 0755); err != nil {
		t.Fatal(err)
	}
	changes := startWatcher(t, dir)

	if err := os.WriteFile(filepath.Join(dir, "notes.md"), []byte("# ignored"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "lesson-001.json"), []byte(`{}`), 0644); err != nil {
		t.Fatal(err)
	}
	waitChange(t, changes, "lesson-001.json")

	if err := os.WriteFile(filepath.Join(dir, "unit-1", "lesson-002.json"), []byte(`{}`), 0644); err != nil {
		t.Fatal(err)
	}
	waitChange(t, changes, "unit-1/lesson-002.json")
}

func TestWatcherWatchesNewDirectories(t *testing.T) {
	dir := t.TempDir()
	changes := startWatcher(t, dir)

	sub := filepath.Join(dir, "unit-2")
	if err := os.Mkdir(sub, 0755); err != nil {
		t.Fatal(err)
	}
	// The new directory is added asynchronously; keep writing until the
	// change is seen.
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if err := os.WriteFile(filepath.Join(sub, "a.json"), []byte(`{}`), 0644); err != nil {
			t.Fatal(err)
		}
		select {
		case got := <-changes:
			if got == "unit-2/a.json" {
				return
			}
		case <-time.After(100 * time.Millisecond):
		}
	}
	t.Fatal("change in new directory was not reported")
}

func TestWatcherExtraFile(t *testing.T) {
	content := t.TempDir()
	other := t.TempDir()
	manifestPath := filepath.Join(other, "manifest.yaml")
	if err := os.WriteFile(manifestPath, []byte("lessons: []\n"), 0644); err != nil {
		t.Fatal(err)
	}
	abs, err := filepath.Abs(manifestPath)
	if err != nil {
		t.Fatal(err)
	}
	changes := startWatcher(t, content, manifestPath)

	if err := os.WriteFile(manifestPath, []byte("lessons:\n  - id: a\n"), 0644); err != nil {
		t.Fatal(err)
	}
	waitChange(t, changes, abs)
}

func TestWatcherStopIsIdempotent(t *testing.T) {
	w, err := NewWatcher(t.TempDir(), nil, func(string) error { return nil }, nil)
	if err != nil {
		t.Fatal(err)
	}
	w.Start()
	if err := w.Stop(); err != nil {
		t.Errorf("first Stop: %v", err)
	}
	if err := w.Stop(); err != nil {
		t.Errorf("second Stop: %v", err)
	}
}
