// Package watcher reports file-system changes under a root directory as
// debounced batches of add, unlink and change events.
package watcher

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/conneroisu/pagegen/internal/logging"
)

// FileWatcher watches a directory tree with debouncing
type FileWatcher struct {
	root      string
	watcher   *fsnotify.Watcher
	debouncer *Debouncer
	filters   []FileFilter
	handlers  []ChangeHandler
	logger    logging.Logger
	mutex     sync.RWMutex
}

// EventKind is the kind of a file change.
type EventKind string

const (
	EventAdd    EventKind = "add"
	EventUnlink EventKind = "unlink"
	EventChange EventKind = "change"
)

// Structural reports whether the event adds or removes a path.
func (k EventKind) Structural() bool {
	return k == EventAdd || k == EventUnlink
}

// ChangeEvent represents a file change event. Path is relative to the
// watcher root and uses forward slashes.
type ChangeEvent struct {
	Kind    EventKind
	Path    string
	AbsPath string
	ModTime time.Time
	Size    int64
}

// FileFilter reports whether a root-relative path should be watched.
type FileFilter func(path string) bool

// ChangeHandler handles a debounced batch of events
type ChangeHandler func(ctx context.Context, events []ChangeEvent) error

// NewFileWatcher creates a watcher for root. Events are delivered once no
// new event arrived for debounceDelay.
func NewFileWatcher(root string, debounceDelay time.Duration, logger logging.Logger) (*FileWatcher, error) {
	if logger == nil {
		logger = logging.Discard()
	}

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("getting absolute path: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	return &FileWatcher{
		root:      absRoot,
		watcher:   watcher,
		debouncer: NewDebouncer(debounceDelay),
		filters:   make([]FileFilter, 0),
		handlers:  make([]ChangeHandler, 0),
		logger:    logger.WithComponent("watcher"),
	}, nil
}

// Root returns the absolute watcher root.
func (fw *FileWatcher) Root() string { return fw.root }

// AddFilter adds a file filter
func (fw *FileWatcher) AddFilter(filter FileFilter) {
	fw.mutex.Lock()
	defer fw.mutex.Unlock()
	fw.filters = append(fw.filters, filter)
}

// AddHandler adds a change handler
func (fw *FileWatcher) AddHandler(handler ChangeHandler) {
	fw.mutex.Lock()
	defer fw.mutex.Unlock()
	fw.handlers = append(fw.handlers, handler)
}

// AddRecursive adds a directory and all subdirectories to watch. Directories
// rejected by a filter are skipped with their contents.
func (fw *FileWatcher) AddRecursive(dir string) error {
	cleanDir, err := fw.validatePath(dir)
	if err != nil {
		return fmt.Errorf("invalid path: %w", err)
	}

	return filepath.Walk(cleanDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			return nil
		}
		if path != fw.root && !fw.accept(fw.relative(path)) {
			return filepath.SkipDir
		}
		return fw.watcher.Add(path)
	})
}

// validatePath cleans a path and makes sure it lies inside the root.
func (fw *FileWatcher) validatePath(path string) (string, error) {
	if !filepath.IsAbs(path) {
		path = filepath.Join(fw.root, path)
	}
	cleanPath := filepath.Clean(path)

	rel, err := filepath.Rel(fw.root, cleanPath)
	if err != nil {
		return "", err
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path %s is outside the watched root %s", path, fw.root)
	}
	return cleanPath, nil
}

func (fw *FileWatcher) relative(path string) string {
	rel, err := filepath.Rel(fw.root, path)
	if err != nil {
		return filepath.ToSlash(path)
	}
	return filepath.ToSlash(rel)
}

func (fw *FileWatcher) accept(rel string) bool {
	fw.mutex.RLock()
	filters := fw.filters
	fw.mutex.RUnlock()

	for _, filter := range filters {
		if !filter(rel) {
			return false
		}
	}
	return true
}

// Start starts the file watcher. It returns immediately; processing stops
// when ctx is cancelled.
func (fw *FileWatcher) Start(ctx context.Context) error {
	go fw.debouncer.Run(ctx)
	go fw.processEvents(ctx)
	go fw.watchLoop(ctx)
	return nil
}

// Stop stops the file watcher and cleans up resources
func (fw *FileWatcher) Stop() error {
	fw.debouncer.Stop()
	return fw.watcher.Close()
}

func (fw *FileWatcher) watchLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-fw.watcher.Events:
			if !ok {
				return
			}
			fw.handleFsnotifyEvent(ctx, event)
		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			fw.logger.Warn(ctx, err, "File watcher error")
		}
	}
}

// kindOf maps an fsnotify operation to an event kind.
func kindOf(op fsnotify.Op) EventKind {
	switch {
	case op.Has(fsnotify.Create):
		return EventAdd
	case op.Has(fsnotify.Remove), op.Has(fsnotify.Rename):
		return EventUnlink
	default:
		return EventChange
	}
}

func (fw *FileWatcher) handleFsnotifyEvent(ctx context.Context, event fsnotify.Event) {
	rel := fw.relative(event.Name)
	if !fw.accept(rel) {
		return
	}

	kind := kindOf(event.Op)
	change := ChangeEvent{Kind: kind, Path: rel, AbsPath: event.Name}

	if info, err := os.Stat(event.Name); err == nil {
		change.ModTime = info.ModTime()
		change.Size = info.Size()

		// New directories are watched too, and files already inside them
		// are reported as added.
		if kind == EventAdd && info.IsDir() {
			if err := fw.AddRecursive(event.Name); err != nil {
				fw.logger.Warn(ctx, err, "Cannot watch new directory", "path", rel)
			}
			fw.reportExisting(event.Name)
		}
	}

	fw.debouncer.Add(change)
}

func (fw *FileWatcher) reportExisting(dir string) {
	_ = filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil || path == dir {
			return nil
		}
		rel := fw.relative(path)
		if !fw.accept(rel) {
			if info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		fw.debouncer.Add(ChangeEvent{Kind: EventAdd, Path: rel, AbsPath: path, ModTime: info.ModTime(), Size: info.Size()})
		return nil
	})
}

func (fw *FileWatcher) processEvents(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case events := <-fw.debouncer.Output():
			fw.mutex.RLock()
			handlers := fw.handlers
			fw.mutex.RUnlock()

			for _, handler := range handlers {
				if err := handler(ctx, events); err != nil {
					fw.logger.Error(ctx, err, "File watcher handler failed", "events", len(events))
				}
			}
		}
	}
}

// IgnoreFilter rejects paths with a segment matching one of the patterns.
// Patterns use filepath.Match syntax, e.g. "node_modules" or "*.log".
func IgnoreFilter(patterns ...string) FileFilter {
	return func(path string) bool {
		for _, segment := range strings.Split(path, "/") {
			for _, pattern := range patterns {
				if matched, _ := filepath.Match(pattern, segment); matched {
					return false
				}
			}
		}
		return true
	}
}
