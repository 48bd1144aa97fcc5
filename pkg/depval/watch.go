package depval

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/marmos91/assetforge/internal/logger"
)

// debounceWindow collapses bursts of filesystem events (editors commonly
// write a file, then rewrite its mtime, then rewrite its permissions) into a
// single OnChange call per affected path.
const debounceWindow = 75 * time.Millisecond

// Tracker watches the containing directories of every dependent file
// registered against it and fires OnChange on the owning Validation when one
// of those files changes. One Tracker is enough for an entire process; its
// zero value is not usable, use NewTracker.
type Tracker struct {
	watcher *fsnotify.Watcher

	mu         sync.Mutex
	dirRefs    map[string]int                  // watched directory -> number of registered files under it
	subsByPath map[string]map[*Validation]bool // absolute file path -> validations depending on it
	timers     map[string]*time.Timer          // absolute file path -> pending debounce timer

	closeOnce sync.Once
	done      chan struct{}
}

// NewTracker starts a Tracker's background event loop. Call Close when the
// process is shutting down to release the underlying fsnotify watcher.
func NewTracker() (*Tracker, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	t := &Tracker{
		watcher:    w,
		dirRefs:    make(map[string]int),
		subsByPath: make(map[string]map[*Validation]bool),
		timers:     make(map[string]*time.Timer),
		done:       make(chan struct{}),
	}
	go t.run()
	return t, nil
}

// RegisterFileDependency records path's current state on v and arranges for
// v.OnChange to be called whenever path is written, removed, or renamed.
// Safe to call multiple times for the same (v, path) pair, and for
// independent validations depending on the same path.
func (t *Tracker) RegisterFileDependency(v *Validation, path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	v.recordDependency(GetDependentFileState(abs))

	t.mu.Lock()
	defer t.mu.Unlock()

	dir := filepath.Dir(abs)
	if t.dirRefs[dir] == 0 {
		if err := t.watcher.Add(dir); err != nil {
			return err
		}
	}
	t.dirRefs[dir]++

	subs, ok := t.subsByPath[abs]
	if !ok {
		subs = make(map[*Validation]bool)
		t.subsByPath[abs] = subs
	}
	subs[v] = true
	return nil
}

// Unregister stops notifying v about path and releases the directory watch
// once nothing else under it is tracked.
func (t *Tracker) Unregister(v *Validation, path string) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	subs, ok := t.subsByPath[abs]
	if !ok {
		return
	}
	delete(subs, v)
	if len(subs) == 0 {
		delete(t.subsByPath, abs)
	}

	dir := filepath.Dir(abs)
	t.dirRefs[dir]--
	if t.dirRefs[dir] <= 0 {
		delete(t.dirRefs, dir)
		_ = t.watcher.Remove(dir)
	}
}

// Close stops the Tracker's event loop and releases the fsnotify watcher.
func (t *Tracker) Close() error {
	var err error
	t.closeOnce.Do(func() {
		close(t.done)
		err = t.watcher.Close()
	})
	return err
}

func (t *Tracker) run() {
	for {
		select {
		case <-t.done:
			return
		case ev, ok := <-t.watcher.Events:
			if !ok {
				return
			}
			t.handleEvent(ev)
		case err, ok := <-t.watcher.Errors:
			if !ok {
				return
			}
			logger.Error("filesystem watch error", logger.Err(err))
		}
	}
}

func (t *Tracker) handleEvent(ev fsnotify.Event) {
	if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
		return
	}

	abs, err := filepath.Abs(ev.Name)
	if err != nil {
		return
	}

	t.mu.Lock()
	_, tracked := t.subsByPath[abs]
	if !tracked {
		t.mu.Unlock()
		return
	}
	if existing, ok := t.timers[abs]; ok {
		existing.Stop()
	}
	t.timers[abs] = time.AfterFunc(debounceWindow, func() { t.fire(abs) })
	t.mu.Unlock()
}

func (t *Tracker) fire(path string) {
	t.mu.Lock()
	delete(t.timers, path)
	subs := t.subsByPath[path]
	targets := make([]*Validation, 0, len(subs))
	for v := range subs {
		targets = append(targets, v)
	}
	t.mu.Unlock()

	for _, v := range targets {
		v.OnChange()
	}
}
