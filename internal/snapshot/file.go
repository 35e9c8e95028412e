// Package snapshot writes the room membership visibility file for a running match.
package snapshot

import (
	"errors"
	"os"
	"path/filepath"

	"deadoralive/internal/ports"

	"github.com/goccy/go-json"
	"github.com/rotisserie/eris"
)

// FileName is the snapshot file inside the temporal directory.
const FileName = "players.json"

// FileStore keeps the snapshot in one JSON file, replaced atomically on every save.
type FileStore struct {
	path string
}

var _ ports.SnapshotStore = (*FileStore)(nil)

// NewFileStore returns a store writing to path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the snapshot file path.
func (s *FileStore) Path() string {
	return s.path
}

func (s *FileStore) Save(rooms map[string][]string) error {
	if rooms == nil {
		rooms = map[string][]string{}
	}
	data, err := json.MarshalIndent(rooms, "", "  ")
	if err != nil {
		return eris.Wrap(err, "failed to marshal snapshot")
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return eris.Wrapf(err, "failed to create snapshot directory %s", dir)
	}
	tmp, err := os.CreateTemp(dir, ".players-*.json")
	if err != nil {
		return eris.Wrap(err, "failed to create snapshot temp file")
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return eris.Wrap(err, "failed to write snapshot")
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return eris.Wrap(err, "failed to close snapshot")
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		os.Remove(tmp.Name())
		return eris.Wrapf(err, "failed to replace snapshot %s", s.path)
	}
	return nil
}

func (s *FileStore) Delete() error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return eris.Wrapf(err, "failed to delete snapshot %s", s.path)
	}
	return nil
}

// Read returns the current snapshot. It is used by tooling and tests; the match never reads
// the snapshot back.
func (s *FileStore) Read() (map[string][]string, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, eris.Wrapf(err, "failed to read snapshot %s", s.path)
	}
	var rooms map[string][]string
	if err := json.Unmarshal(data, &rooms); err != nil {
		return nil, eris.Wrapf(err, "failed to unmarshal snapshot %s", s.path)
	}
	return rooms, nil
}
