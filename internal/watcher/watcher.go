// Package watcher submits recordings that appear in a watched directory,
// typically filled by an external recorder app. Only files created or
// written after Start are considered; there is no initial scan.
package watcher

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/chaz8081/whisperclip/internal/pipeline"
)

const (
	// debounceDelay is how long a file must stay quiet after its last
	// event before it is considered finished.
	debounceDelay = 500 * time.Millisecond
	// settlePoll and settleTimeout bound the size-stability check that
	// guards against recorders still flushing to disk.
	settlePoll    = 200 * time.Millisecond
	settleTimeout = 10 * time.Second
)

// Watcher reacts to new audio files in one directory and hands them to
// the pipeline. Each file version is submitted at most once; a newer
// modification time counts as a new version.
type Watcher struct {
	dir    string
	exts   map[string]bool
	submit func(pipeline.Recording) error
	log    zerolog.Logger

	debounce   time.Duration
	settlePoll time.Duration
	maxSettle  time.Duration

	fsw      *fsnotify.Watcher
	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	mu      sync.Mutex
	pending map[string]*time.Timer
	seen    map[string]time.Time
}

// New builds a Watcher for dir. exts holds the accepted extensions with
// leading dots, matched case-insensitively.
func New(dir string, exts []string, submit func(pipeline.Recording) error, log zerolog.Logger) *Watcher {
	extSet := make(map[string]bool, len(exts))
	for _, e := range exts {
		extSet[strings.ToLower(e)] = true
	}
	return &Watcher{
		dir:        dir,
		exts:       extSet,
		submit:     submit,
		log:        log.With().Str("component", "watcher").Logger(),
		debounce:   debounceDelay,
		settlePoll: settlePoll,
		maxSettle:  settleTimeout,
		done:       make(chan struct{}),
		pending:    make(map[string]*time.Timer),
		seen:       make(map[string]time.Time),
	}
}

// Start begins watching. The directory must exist.
func (w *Watcher) Start() error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	if err := fsw.Add(w.dir); err != nil {
		fsw.Close()
		return fmt.Errorf("watching %s: %w", w.dir, err)
	}
	w.fsw = fsw

	w.wg.Add(1)
	go w.loop()

	w.log.Info().Str("dir", w.dir).Msg("watching for recordings")
	return nil
}

// Stop cancels pending submissions and shuts the event loop down.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		w.mu.Lock()
		for path, t := range w.pending {
			t.Stop()
			delete(w.pending, path)
		}
		w.mu.Unlock()

		close(w.done)
		if w.fsw != nil {
			w.fsw.Close()
		}
		w.wg.Wait()
	})
}

func (w *Watcher) loop() {
	defer w.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			w.log.Error().Interface("panic", r).Msg("watch loop crashed")
		}
	}()

	for {
		select {
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handleEvent(ev)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.log.Warn().Err(err).Msg("watch error")
		case <-w.done:
			return
		}
	}
}

func (w *Watcher) handleEvent(ev fsnotify.Event) {
	if ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
		w.forget(ev.Name)
		return
	}
	if ev.Op&(fsnotify.Create|fsnotify.Write) == 0 {
		return
	}
	if !w.eligible(ev.Name) {
		return
	}
	w.arm(ev.Name)
}

// eligible filters out hidden files, editor autosaves, files this
// program recorded itself and extensions outside the configured set.
func (w *Watcher) eligible(path string) bool {
	name := filepath.Base(path)
	if strings.HasPrefix(name, ".") {
		return false
	}
	lower := strings.ToLower(name)
	if strings.Contains(lower, "autosaved") {
		return false
	}
	if strings.HasPrefix(name, "recording_") {
		// Captures made by the record hotkey are submitted by the
		// capture controller, not the watcher.
		return false
	}
	return w.exts[filepath.Ext(lower)]
}

// arm starts or resets the per-path debounce timer.
func (w *Watcher) arm(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.pending[path]; ok {
		t.Reset(w.debounce)
		return
	}
	w.pending[path] = time.AfterFunc(w.debounce, func() { w.fire(path) })
}

func (w *Watcher) forget(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.pending[path]; ok {
		t.Stop()
		delete(w.pending, path)
	}
	delete(w.seen, path)
}

// fire runs once the debounce elapses: wait for the size to settle,
// dedupe against the seen set and submit.
func (w *Watcher) fire(path string) {
	defer func() {
		if r := recover(); r != nil {
			w.log.Error().Interface("panic", r).Str("path", path).Msg("watcher submit crashed")
		}
	}()

	w.mu.Lock()
	delete(w.pending, path)
	w.mu.Unlock()

	info, err := w.settle(path)
	if err != nil {
		w.log.Debug().Err(err).Str("path", path).Msg("file skipped")
		return
	}

	w.mu.Lock()
	if last, ok := w.seen[path]; ok && !info.ModTime().After(last) {
		w.mu.Unlock()
		w.log.Debug().Str("path", path).Msg("file version already handled")
		return
	}
	w.seen[path] = info.ModTime()
	w.mu.Unlock()

	w.log.Info().Str("path", path).Int64("bytes", info.Size()).Msg("new recording detected")
	if err := w.submit(pipeline.Recording{Path: path, Source: pipeline.SourceWatcher, SubmittedAt: time.Now()}); err != nil {
		// A busy drop is final for this file version. A later write
		// carries a newer mtime and goes through again.
		w.log.Info().Err(err).Str("path", path).Msg("watched file not submitted")
	}
}

// settle polls until two consecutive stats report the same size.
func (w *Watcher) settle(path string) (os.FileInfo, error) {
	deadline := time.Now().Add(w.maxSettle)
	lastSize := int64(-1)
	for {
		info, err := os.Stat(path)
		if err != nil {
			return nil, err
		}
		if info.Size() == lastSize {
			return info, nil
		}
		lastSize = info.Size()

		if time.Now().After(deadline) {
			return nil, fmt.Errorf("size of %s still changing after %s", path, w.maxSettle)
		}
		select {
		case <-w.done:
			return nil, fmt.Errorf("watcher stopped")
		case <-time.After(w.settlePoll):
		}
	}
}
