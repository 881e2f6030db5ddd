package checkpoint

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/kubeflume/kubeflume-agent/internal/core"
)

func newTestStore(t *testing.T) *FileStore {
	t.Helper()
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore() error = %v", err)
	}
	return store
}

func TestFileStoreRoundTrip(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)

	want := core.Checkpoint{
		ResourceVersion: "12345",
		EndpointHash:    "abc123",
		SavedAt:         time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
	if err := store.Save("pods", want); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	got, ok, err := store.Load("pods")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !ok {
		t.Fatalf("expected checkpoint to exist")
	}
	if got != want {
		t.Fatalf("Load() = %+v, want %+v", got, want)
	}
}

func TestFileStoreSaveReplaces(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)

	if err := store.Save("pods", core.Checkpoint{ResourceVersion: "1"}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if err := store.Save("pods", core.Checkpoint{ResourceVersion: "2"}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	got, _, err := store.Load("pods")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got.ResourceVersion != "2" {
		t.Fatalf("expected latest save to win, got %q", got.ResourceVersion)
	}
}

func TestFileStoreLoadMissing(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)

	_, ok, err := store.Load("never-saved")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if ok {
		t.Fatalf("expected no checkpoint for unknown session")
	}
}

func TestFileStoreLoadCorrupt(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	store, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("NewFileStore() error = %v", err)
	}

	if err := os.WriteFile(filepath.Join(dir, "pods.json"), []byte("not json"), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	if _, _, err := store.Load("pods"); err == nil {
		t.Fatalf("expected error for corrupt checkpoint")
	}
}

func TestFileStoreSessionNameCannotEscapeDir(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	store, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("NewFileStore() error = %v", err)
	}

	if err := store.Save("../escape", core.Checkpoint{ResourceVersion: "1"}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	if _, err := os.Stat(filepath.Join(dir, ".._escape.json")); err != nil {
		t.Fatalf("expected flattened checkpoint file inside dir: %v", err)
	}
	if _, err := os.Stat(filepath.Join(filepath.Dir(dir), "escape.json")); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected no file outside state dir")
	}
}

func TestNewFileStoreRejectsEmptyDir(t *testing.T) {
	t.Parallel()

	_, err := NewFileStore("")
	var invalid *core.ErrInvalidInput
	if !errors.As(err, &invalid) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}
