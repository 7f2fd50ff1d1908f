package index

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Snapshot records the file content hashes of a codebase at its last
// successful indexing run. Diffing against a fresh scan yields the
// minimal re-index set.
type Snapshot struct {
	Path      string            `json:"path"`
	Files     map[string]string `json:"files"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// SnapshotStore persists one JSON snapshot per collection on disk.
type SnapshotStore struct {
	dir string
}

// NewSnapshotStore creates the snapshot directory if needed. A leading ~
// expands to the user's home directory.
func NewSnapshotStore(dir string) (*SnapshotStore, error) {
	if dir == "~" || strings.HasPrefix(dir, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolving home directory: %w", err)
		}
		dir = filepath.Join(home, strings.TrimPrefix(strings.TrimPrefix(dir, "~"), "/"))
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating snapshot dir: %w", err)
	}
	return &SnapshotStore{dir: dir}, nil
}

// Load reads the snapshot for a collection. A missing snapshot returns
// an empty one, so first runs index everything.
func (s *SnapshotStore) Load(collection string) (*Snapshot, error) {
	data, err := os.ReadFile(s.file(collection))
	if err != nil {
		if os.IsNotExist(err) {
			return &Snapshot{Files: map[string]string{}}, nil
		}
		return nil, fmt.Errorf("reading snapshot: %w", err)
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("decoding snapshot: %w", err)
	}
	if snap.Files == nil {
		snap.Files = map[string]string{}
	}
	return &snap, nil
}

// Save writes the snapshot atomically via a rename.
func (s *SnapshotStore) Save(collection string, snap *Snapshot) error {
	snap.UpdatedAt = time.Now().UTC()

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding snapshot: %w", err)
	}

	tmp := s.file(collection) + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing snapshot: %w", err)
	}
	if err := os.Rename(tmp, s.file(collection)); err != nil {
		return fmt.Errorf("renaming snapshot: %w", err)
	}
	return nil
}

// Delete removes the snapshot. Deleting a missing snapshot is not an
// error.
func (s *SnapshotStore) Delete(collection string) error {
	if err := os.Remove(s.file(collection)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing snapshot: %w", err)
	}
	return nil
}

func (s *SnapshotStore) file(collection string) string {
	return filepath.Join(s.dir, collection+".json")
}

// diff compares a previous snapshot against a fresh scan. Changed files
// need their old chunks deleted before re-indexing.
func diff(previous, current map[string]string) (added, changed, removed []string) {
	for path, hash := range current {
		prev, ok := previous[path]
		switch {
		case !ok:
			added = append(added, path)
		case prev != hash:
			changed = append(changed, path)
		}
	}
	for path := range previous {
		if _, ok := current[path]; !ok {
			removed = append(removed, path)
		}
	}
	return added, changed, removed
}
