package library

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Store persists a Library's index as a single JSON array of tracks. Load
// returns the entries in file order; Library.New keys them by song_id, so
// a later duplicate entry replaces an earlier one.
type Store struct {
	path string
}

// NewStore returns a Store writing to path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Load reads the index file. A missing file is not an error — it means an
// empty library, the state of a freshly provisioned server.
func (s *Store) Load() ([]*Track, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read library index: %w", err)
	}

	var tracks []*Track
	if err := json.Unmarshal(data, &tracks); err != nil {
		return nil, fmt.Errorf("parse library index: %w", err)
	}
	return tracks, nil
}

// Save writes tracks to the index file atomically: marshal to a sibling
// temp file, fsync, then rename over the real path. A crash mid-write can
// never leave the index truncated or half-written.
func (s *Store) Save(tracks []*Track) error {
	data, err := json.MarshalIndent(tracks, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal library index: %w", err)
	}

	dir := filepath.Dir(s.path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create library index dir: %w", err)
		}
	}

	tmp, err := os.CreateTemp(dir, ".library-*.json.tmp")
	if err != nil {
		return fmt.Errorf("create temp library index: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) // no-op once the rename below succeeds

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp library index: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp library index: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp library index: %w", err)
	}

	if err := os.Rename(tmpPath, s.path); err != nil {
		return fmt.Errorf("rename library index into place: %w", err)
	}
	return nil
}
