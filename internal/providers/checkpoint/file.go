// Package checkpoint persists watch session progress as JSON files,
// one per session, so an agent restart resumes streams close to where
// they stopped instead of replaying from scratch.
package checkpoint

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/kubeflume/kubeflume-agent/internal/core"
)

// FileStore implements core.CheckpointStore on a directory of JSON
// files. Saves go through a temp file and rename, so a crash mid-write
// cannot leave a corrupt checkpoint behind.
type FileStore struct {
	dir string
}

// NewFileStore returns a checkpoint store rooted at dir, creating the
// directory if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		return nil, &core.ErrInvalidInput{Field: "state dir", Message: "state directory must not be empty"}
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create state dir: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

var _ core.CheckpointStore = (*FileStore)(nil)

func (s *FileStore) Load(session string) (core.Checkpoint, bool, error) {
	data, err := os.ReadFile(s.path(session))
	if errors.Is(err, os.ErrNotExist) {
		return core.Checkpoint{}, false, nil
	}
	if err != nil {
		return core.Checkpoint{}, false, fmt.Errorf("read checkpoint of %s: %w", session, err)
	}

	cp := core.Checkpoint{}
	if err := json.Unmarshal(data, &cp); err != nil {
		return core.Checkpoint{}, false, fmt.Errorf("decode checkpoint of %s: %w", session, err)
	}
	return cp, true, nil
}

func (s *FileStore) Save(session string, cp core.Checkpoint) error {
	data, err := json.Marshal(cp)
	if err != nil {
		return fmt.Errorf("encode checkpoint of %s: %w", session, err)
	}
	if err := atomicWriteFile(s.path(session), data, 0o600); err != nil {
		return fmt.Errorf("write checkpoint of %s: %w", session, err)
	}
	return nil
}

// path maps a session name to its checkpoint file. Separators are
// flattened so a session name can never escape the state directory.
func (s *FileStore) path(session string) string {
	name := strings.NewReplacer("/", "_", string(filepath.Separator), "_").Replace(session)
	return filepath.Join(s.dir, name+".json")
}

// atomicWriteFile writes data to a temporary file in the same
// directory as path, then renames it into place, so the target file is
// either fully written or not present.
func atomicWriteFile(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp.*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Chmod(perm); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}
