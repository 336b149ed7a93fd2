package server

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watcher watches the content directory and reports changed lesson and
// manifest files.
type Watcher struct {
	watcher  *fsnotify.Watcher
	rootDir  string
	extra    map[string]bool // absolute paths watched outside rootDir
	onChange func(relPath string) error
	logger   *zap.Logger
	done     chan struct{}
	stopOnce sync.Once
}

// NewWatcher creates a watcher for rootDir and its subdirectories.
// extraFiles are watched individually, e.g. a manifest file kept outside
// the content dir; they are reported by absolute path.
func NewWatcher(rootDir string, extraFiles []string, onChange func(string) error, logger *zap.Logger) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	w := &Watcher{
		watcher:  fsWatcher,
		rootDir:  rootDir,
		extra:    make(map[string]bool),
		onChange: onChange,
		logger:   logger,
		done:     make(chan struct{}),
	}

	if err := w.watchTree(rootDir); err != nil {
		fsWatcher.Close()
		return nil, err
	}
	for _, f := range extraFiles {
		abs, err := filepath.Abs(f)
		if err != nil {
			continue
		}
		// Editors replace files on save, so watch the parent directory.
		if err := fsWatcher.Add(filepath.Dir(abs)); err != nil {
			w.logger.Warn("cannot watch file", zap.String("path", f), zap.Error(err))
			continue
		}
		w.extra[abs] = true
	}

	return w, nil
}

// watchTree adds dir and every non-hidden directory below it.
func (w *Watcher) watchTree(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || !d.IsDir() {
			return err
		}
		if path != dir && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		if err := w.watcher.Add(path); err != nil {
			return fmt.Errorf("watch %s: %w", path, err)
		}
		w.logger.Debug("watching directory", zap.String("path", path))
		return nil
	})
}

// Start begins watching for file changes.
func (w *Watcher) Start() {
	go func() {
		for {
			select {
			case event, ok := <-w.watcher.Events:
				if !ok {
					return
				}
				w.handle(event)

			case err, ok := <-w.watcher.Errors:
				if !ok {
					return
				}
				w.logger.Warn("watch error", zap.Error(err))

			case <-w.done:
				return
			}
		}
	}()
}

func (w *Watcher) handle(event fsnotify.Event) {
	if event.Op&fsnotify.Chmod == event.Op {
		return
	}

	// New subdirectories need watching too.
	if event.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.watchTree(event.Name); err != nil {
				w.logger.Warn("cannot watch new directory", zap.String("path", event.Name), zap.Error(err))
			}
			return
		}
	}

	name := event.Name
	if abs, err := filepath.Abs(name); err == nil && w.extra[abs] {
		w.notify(abs)
		return
	}
	if filepath.Ext(name) != ".json" {
		return
	}
	rel, err := filepath.Rel(w.rootDir, name)
	if err != nil || strings.HasPrefix(rel, "..") {
		return
	}
	w.notify(filepath.ToSlash(rel))
}

func (w *Watcher) notify(path string) {
	w.logger.Debug("file changed", zap.String("path", path))
	if err := w.onChange(path); err != nil {
		w.logger.Warn("reload failed", zap.String("path", path), zap.Error(err))
	}
}

// Stop stops the watcher.
func (w *Watcher) Stop() error {
	var err error
	w.stopOnce.Do(func() {
		close(w.done)
		err = w.watcher.Close()
	})
	return err
}
