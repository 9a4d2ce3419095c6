// Package library implements the content-addressed media library (C1):
// the disk-backed set of tracks the server has previously downloaded,
// indexed by song_id.
package library

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Library is the process-wide, disk-backed index of downloaded tracks. Every
// method is safe for concurrent use; callers across many room goroutines and
// acquisition workers share one Library instance.
type Library struct {
	mu     sync.RWMutex
	tracks map[string]*Track // keyed by song_id
	store  *Store
}

// New creates an empty Library backed by the JSON index at path. If the
// index file exists it is loaded immediately; a missing file means an empty
// library, per the idempotent-load contract.
func New(path string) (*Library, error) {
	lib := &Library{
		tracks: make(map[string]*Track),
		store:  NewStore(path),
	}

	loaded, err := lib.store.Load()
	if err != nil {
		return nil, fmt.Errorf("library unavailable: %w", err)
	}
	for _, t := range loaded {
		lib.tracks[t.SongID] = t
	}
	slog.Info("library loaded", "path", path, "tracks", len(lib.tracks))
	return lib, nil
}

// Lookup returns the entry for song_id, or nil if absent. Constant-time by map.
func (lib *Library) Lookup(songID string) *Track {
	lib.mu.RLock()
	defer lib.mu.RUnlock()
	return lib.tracks[songID]
}

// Insert appends a new entry to the in-memory index and flushes the on-disk
// index atomically. A song_id collision replaces the existing entry — it is
// the caller's responsibility to Lookup before Insert when dedup matters
// (the acquisition pipeline always does).
func (lib *Library) Insert(t *Track) error {
	if t == nil || strings.TrimSpace(t.SongID) == "" {
		return fmt.Errorf("library-unavailable: track song_id is required")
	}

	lib.mu.Lock()
	lib.tracks[t.SongID] = t
	snapshot := lib.snapshotLocked()
	lib.mu.Unlock()

	if err := lib.store.Save(snapshot); err != nil {
		return fmt.Errorf("library-unavailable: %w", err)
	}
	slog.Info("library entry inserted", "song_id", t.SongID, "title", t.Title)
	return nil
}

// Iter returns a snapshot of all entries, used for cover-art restoration when
// a client ships a queue with cover art stripped.
func (lib *Library) Iter() []*Track {
	lib.mu.RLock()
	defer lib.mu.RUnlock()
	return lib.snapshotLocked()
}

func (lib *Library) snapshotLocked() []*Track {
	out := make([]*Track, 0, len(lib.tracks))
	for _, t := range lib.tracks {
		out = append(out, t)
	}
	return out
}

// Search returns entries whose title, artist, or album contain query,
// case-insensitively. An empty query returns every entry.
func (lib *Library) Search(query string) []*Track {
	lib.mu.RLock()
	defer lib.mu.RUnlock()

	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return lib.snapshotLocked()
	}

	var out []*Track
	for _, t := range lib.tracks {
		if strings.Contains(strings.ToLower(t.Title), query) ||
			strings.Contains(strings.ToLower(t.Artist), query) ||
			strings.Contains(strings.ToLower(t.Album), query) {
			out = append(out, t)
		}
	}
	return out
}

// RemoveStale drops entries whose backing audio file no longer exists on
// disk and re-flushes the index. Returns the removed entries. The existence
// checks run concurrently (bounded) since they are one stat syscall each and
// a library can hold thousands of entries on a slow or networked filesystem;
// the lock is held only for the snapshot and the final delete pass, not for
// the checks themselves.
func (lib *Library) RemoveStale() ([]*Track, error) {
	lib.mu.RLock()
	entries := lib.snapshotLocked()
	lib.mu.RUnlock()

	stale := make([]bool, len(entries))
	var g errgroup.Group
	g.SetLimit(16)
	for i, t := range entries {
		i, t := i, t
		g.Go(func() error {
			stale[i] = !t.FileExists()
			return nil
		})
	}
	_ = g.Wait() // FileExists never errors; Go() funcs above always return nil

	lib.mu.Lock()
	var removed []*Track
	for i, t := range entries {
		if stale[i] {
			removed = append(removed, t)
			delete(lib.tracks, t.SongID)
		}
	}
	snapshot := lib.snapshotLocked()
	lib.mu.Unlock()

	if len(removed) == 0 {
		return nil, nil
	}
	if err := lib.store.Save(snapshot); err != nil {
		return nil, fmt.Errorf("library-unavailable: %w", err)
	}
	slog.Info("removed stale library entries", "count", len(removed))
	return removed, nil
}

// Count returns the number of entries currently in the library.
func (lib *Library) Count() int {
	lib.mu.RLock()
	defer lib.mu.RUnlock()
	return len(lib.tracks)
}
