package glob

import (
	"os"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// snapshotEntry is the on-disk shape of one cache row. Kept as its own
// type (rather than a bare map[string]int64) so the YAML document has a
// stable, inspectable schema: a list of {path, mtime_ns} records instead
// of an unordered mapping.
type snapshotEntry struct {
	Path    string `yaml:"path"`
	MtimeNs int64  `yaml:"mtime_ns"`
}

// Cache holds mtime snapshots keyed by dependency pattern (not by
// resolved file — isGlobStale recomputes the glob expansion on every
// call, per spec.md §4.5) and supports persisting to / loading from a
// YAML snapshot file.
type Cache struct {
	mu        sync.Mutex
	snapshots map[string]int64 // dep pattern -> newest mtime seen as of last update
}

func New() *Cache {
	return &Cache{snapshots: make(map[string]int64)}
}

// Load reads a snapshot file written by Save. A missing or unreadable
// file is treated as a cold start (spec.md §6), not an error.
func Load(path string) *Cache {
	c := New()
	data, err := os.ReadFile(path)
	if err != nil {
		return c
	}
	var entries []snapshotEntry
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return c
	}
	for _, e := range entries {
		c.snapshots[e.Path] = e.MtimeNs
	}
	return c
}

// Save persists the current snapshot set to path.
func (c *Cache) Save(path string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	entries := make([]snapshotEntry, 0, len(c.snapshots))
	for p, t := range c.snapshots {
		entries = append(entries, snapshotEntry{Path: p, MtimeNs: t})
	}
	data, err := yaml.Marshal(entries)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// IsGlobStale reports whether any file matching dep has an mtime newer
// than the recorded snapshot for dep, or whether no snapshot exists yet.
func (c *Cache) IsGlobStale(dep string) bool {
	matches, err := Expand(dep)
	if err != nil || len(matches) == 0 {
		return true
	}

	var newest int64
	for _, m := range matches {
		info, err := os.Stat(m)
		if err != nil {
			return true
		}
		if t := info.ModTime().UnixNano(); t > newest {
			newest = t
		}
	}

	c.mu.Lock()
	prev, ok := c.snapshots[dep]
	c.mu.Unlock()
	return !ok || newest > prev
}

// Update refreshes the snapshot for a single output path to its current
// mtime (falling back to now if the stat fails, so a recipe whose
// recipe body doesn't actually write the output still advances past a
// stale read next time).
func (c *Cache) Update(path string) {
	var t int64
	if info, err := os.Stat(path); err == nil {
		t = info.ModTime().UnixNano()
	} else {
		t = time.Now().UnixNano()
	}
	c.mu.Lock()
	c.snapshots[path] = t
	c.mu.Unlock()
}

// UpdateDep refreshes the snapshot for a dependency pattern to the
// newest mtime among its current matches, called after a successful
// build so the next IsGlobStale call reflects what was just consumed.
func (c *Cache) UpdateDep(dep string) {
	matches, err := Expand(dep)
	if err != nil {
		return
	}
	var newest int64
	for _, m := range matches {
		if info, err := os.Stat(m); err == nil {
			if t := info.ModTime().UnixNano(); t > newest {
				newest = t
			}
		}
	}
	c.mu.Lock()
	c.snapshots[dep] = newest
	c.mu.Unlock()
}
