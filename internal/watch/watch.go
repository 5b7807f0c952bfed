// Package watch implements the poll+debounce file-watch loop from
// spec.md §4.10: resolve a recipe's watched patterns, snapshot mtimes,
// and re-invoke a runner callback whenever the quiet period elapses
// after a change.
package watch

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/kraklabs/jake/internal/ast"
	"github.com/kraklabs/jake/internal/glob"
)

const (
	defaultPollInterval = 500 * time.Millisecond
	defaultDebounce     = 100 * time.Millisecond
)

// maxConcurrentStats bounds how many os.Stat calls a single snapshot
// pass issues at once, so a watch set with thousands of glob matches
// doesn't open that many file descriptors' worth of syscalls at the
// same instant.
const maxConcurrentStats = 32

// RunFunc invokes the target recipe once, the same way the sequential
// or parallel executor would from a cold CLI invocation.
type RunFunc func() error

// Watcher reruns a recipe whenever one of its watched patterns changes.
type Watcher struct {
	Patterns      []string
	PollInterval  time.Duration
	Debounce      time.Duration
	Verbose       bool
	Out           io.Writer
	RecipeName    string
}

// Patterns collects the watch set for rec from spec.md §4.10: the
// recipe's own file_deps plus any @watch directive payloads in its
// command list.
func Patterns(rec *ast.Recipe, extra ...string) []string {
	var pats []string
	pats = append(pats, rec.FileDeps...)
	for _, cmd := range rec.Commands {
		if cmd.Directive != nil && cmd.Directive.Kind == ast.DirWatch && cmd.Directive.Payload != "" {
			pats = append(pats, cmd.Directive.Payload)
		}
	}
	pats = append(pats, extra...)
	return pats
}

// New builds a Watcher with spec.md defaults (500ms poll, 100ms
// debounce).
func New(recipeName string, patterns []string) *Watcher {
	return &Watcher{
		RecipeName:   recipeName,
		Patterns:     patterns,
		PollInterval: defaultPollInterval,
		Debounce:     defaultDebounce,
		Out:          os.Stdout,
	}
}

type snapshot struct {
	mu     sync.Mutex
	mtimes map[string]time.Time
}

func newSnapshot() *snapshot { return &snapshot{mtimes: make(map[string]time.Time)} }

// resolve expands every pattern (glob for wildcards, direct existence
// check otherwise) into a deduplicated set of absolute paths, statting
// them concurrently under a bounded semaphore via errgroup.
func (w *Watcher) resolve(ctx context.Context) ([]string, error) {
	sem := semaphore.NewWeighted(maxConcurrentStats)
	g, gctx := errgroup.WithContext(ctx)

	var mu sync.Mutex
	seen := make(map[string]bool)
	var resolved []string

	addCandidate := func(p string) {
		abs, err := filepath.Abs(p)
		if err != nil {
			return
		}
		mu.Lock()
		if seen[abs] {
			mu.Unlock()
			return
		}
		seen[abs] = true
		mu.Unlock()

		if err := sem.Acquire(gctx, 1); err != nil {
			return
		}
		g.Go(func() error {
			defer sem.Release(1)
			if _, err := os.Stat(abs); err != nil {
				if w.Verbose {
					w.printf("watch: skipping missing file %s\n", abs)
				}
				return nil
			}
			mu.Lock()
			resolved = append(resolved, abs)
			mu.Unlock()
			return nil
		})
	}

	for _, pat := range w.Patterns {
		if glob.IsPattern(pat) {
			matches, err := glob.Expand(pat)
			if err != nil {
				continue
			}
			for _, m := range matches {
				addCandidate(m)
			}
		} else {
			addCandidate(pat)
		}
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return resolved, nil
}

func (w *Watcher) snapshotAll(ctx context.Context) (*snapshot, error) {
	paths, err := w.resolve(ctx)
	if err != nil {
		return nil, err
	}
	snap := newSnapshot()
	for _, p := range paths {
		if info, err := os.Stat(p); err == nil {
			snap.mtimes[p] = info.ModTime()
		}
	}
	return snap, nil
}

// changed compares the current resolved set (including any newly
// created files matching a glob pattern) against snap, updating snap in
// place and returning the first changed or newly-seen path it observes.
func (w *Watcher) changed(ctx context.Context, snap *snapshot) (string, bool) {
	paths, err := w.resolve(ctx)
	if err != nil {
		return "", false
	}

	snap.mu.Lock()
	defer snap.mu.Unlock()

	var found string
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			continue
		}
		prev, ok := snap.mtimes[p]
		if !ok || info.ModTime().After(prev) {
			snap.mtimes[p] = info.ModTime()
			if found == "" {
				found = p
			}
		}
	}
	return found, found != ""
}

// Run prints the watch header, executes run once immediately, then
// loops: polling, debouncing, and re-invoking run on every settled
// batch of changes. It returns only when ctx is cancelled.
func (w *Watcher) Run(ctx context.Context, run RunFunc) error {
	poll := w.PollInterval
	if poll <= 0 {
		poll = defaultPollInterval
	}
	debounce := w.Debounce
	if debounce <= 0 {
		debounce = defaultDebounce
	}

	w.printf("watching %s\n", w.RecipeName)
	for _, p := range w.Patterns {
		w.printf("  %s\n", p)
	}
	w.printf("Press Ctrl+C to stop\n")

	snap, err := w.snapshotAll(ctx)
	if err != nil {
		return err
	}

	if err := run(); err != nil && w.Verbose {
		w.printf("watch: recipe run failed: %v\n", err)
	}

	var pending bool
	var lastChange time.Time

	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, ok := w.changed(ctx, snap); ok {
				pending = true
				lastChange = time.Now()
				continue
			}
			if pending && time.Since(lastChange) >= debounce {
				pending = false
				if err := run(); err != nil && w.Verbose {
					w.printf("watch: recipe run failed: %v\n", err)
				}
			}
		}
	}
}

func (w *Watcher) printf(format string, args ...any) {
	if w.Out == nil {
		return
	}
	fmt.Fprintf(w.Out, format, args...)
}
