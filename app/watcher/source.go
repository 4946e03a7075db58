package watcher

import (
	"context"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

const DefaultDebounce = 100 * time.Millisecond

// FSSource turns fsnotify notifications for a directory tree into debounced
// Events. Rapid notifications for one path collapse into a single Event
// carrying the last operation seen.
type FSSource struct {
	root     string
	ignore   *Ignore
	debounce time.Duration
	log      *log.Logger

	fsw    *fsnotify.Watcher
	events chan Event
	done   chan struct{}

	mu      sync.Mutex
	closed  bool
	timers  map[string]*time.Timer
	pending map[string]Op
	known   map[string]struct{}
}

func NewFSSource(root string, ignore *Ignore, debounce time.Duration, logger *log.Logger) (*FSSource, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("watcher: %w", err)
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if logger == nil {
		logger = log.Default()
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watcher: %w", err)
	}

	s := &FSSource{
		root:     abs,
		ignore:   ignore,
		debounce: debounce,
		log:      logger,
		fsw:      fsw,
		events:   make(chan Event, 64),
		done:     make(chan struct{}),
		timers:   make(map[string]*time.Timer),
		pending:  make(map[string]Op),
		known:    make(map[string]struct{}),
	}
	if err := s.addTree(abs, false); err != nil {
		_ = fsw.Close()
		return nil, err
	}
	return s, nil
}

func (s *FSSource) Root() string {
	return s.root
}

// Events is never closed. Consumers stop on their own context.
func (s *FSSource) Events() <-chan Event {
	return s.events
}

// Run forwards notifications until ctx is done, then releases the watcher.
func (s *FSSource) Run(ctx context.Context) error {
	defer s.Close()
	for {
		select {
		case <-ctx.Done():
			return nil
		case err, ok := <-s.fsw.Errors:
			if !ok {
				return nil
			}
			s.log.Printf("⚠️ Watcher error: %v\n", err)
		case ev, ok := <-s.fsw.Events:
			if !ok {
				return nil
			}
			s.handle(ev)
		}
	}
}

func (s *FSSource) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	for path, t := range s.timers {
		t.Stop()
		delete(s.timers, path)
	}
	s.mu.Unlock()

	close(s.done)
	return s.fsw.Close()
}

func (s *FSSource) rel(path string) string {
	rel, err := filepath.Rel(s.root, path)
	if err != nil {
		return path
	}
	return rel
}

func (s *FSSource) handle(ev fsnotify.Event) {
	if s.ignore.Match(s.rel(ev.Name)) {
		return
	}

	switch {
	case ev.Has(fsnotify.Create):
		info, err := os.Stat(ev.Name)
		if err != nil {
			return
		}
		if info.IsDir() {
			if err := s.addTree(ev.Name, true); err != nil {
				s.log.Printf("⚠️ Could not watch %s: %v\n", ev.Name, err)
			}
			return
		}
		// editors that save by renaming a temp file over the original
		// produce a Create for a path we already know
		if s.remember(ev.Name) {
			s.schedule(ev.Name, OpChanged)
		} else {
			s.schedule(ev.Name, OpAdded)
		}
	case ev.Has(fsnotify.Write):
		s.remember(ev.Name)
		s.schedule(ev.Name, OpChanged)
	case ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename):
		s.forget(ev.Name)
		s.schedule(ev.Name, OpRemoved)
	}
}

// addTree watches dir and every non-ignored directory below it. With
// announce set, files already present are reported as added.
func (s *FSSource) addTree(dir string, announce bool) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel := s.rel(path)
		if path != s.root && s.ignore.Match(rel) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if err := s.fsw.Add(path); err != nil {
				return fmt.Errorf("watch %s: %w", rel, err)
			}
			return nil
		}
		if d.Type().IsRegular() {
			s.remember(path)
			if announce {
				s.schedule(path, OpAdded)
			}
		}
		return nil
	})
}

// remember marks path as known and reports whether it already was.
func (s *FSSource) remember(path string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.known[path]
	s.known[path] = struct{}{}
	return ok
}

func (s *FSSource) forget(path string) {
	s.mu.Lock()
	delete(s.known, path)
	s.mu.Unlock()
}

func (s *FSSource) schedule(path string, op Op) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.pending[path] = op
	if t, ok := s.timers[path]; ok {
		t.Stop()
	}
	s.timers[path] = time.AfterFunc(s.debounce, func() { s.fire(path) })
}

func (s *FSSource) fire(path string) {
	s.mu.Lock()
	op, ok := s.pending[path]
	delete(s.pending, path)
	delete(s.timers, path)
	closed := s.closed
	s.mu.Unlock()

	if !ok || closed {
		return
	}
	select {
	case s.events <- Event{Path: path, Op: op}:
	case <-s.done:
	}
}
