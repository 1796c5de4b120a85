package session

import (
	"context"
	"encoding/json"
	serrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"tender_dashboard/internal/storage"
)

// FileStore keeps the session in a JSON file readable only by its owner.
type FileStore struct {
	path string
	mu   sync.Mutex
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// DefaultPath is the session file under the user's config directory.
func DefaultPath() (string, error) {
	const op = "session.DefaultPath"

	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return filepath.Join(dir, "tenderctl", "session.json"), nil
}

func (f *FileStore) Path() string { return f.path }

func (f *FileStore) Load(ctx context.Context) (State, error) {
	const op = "session.FileStore.Load"

	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := os.ReadFile(f.path)
	if serrors.Is(err, os.ErrNotExist) {
		return State{}, nil
	}
	if err != nil {
		return State{}, fmt.Errorf("%s: %w", op, err)
	}

	var st State
	if err := json.Unmarshal(data, &st); err != nil {
		return State{}, fmt.Errorf("%s: %w", op, err)
	}
	return st, nil
}

func (f *FileStore) Save(ctx context.Context, st State) error {
	const op = "session.FileStore.Save"

	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (f *FileStore) Clear(ctx context.Context) error {
	const op = "session.FileStore.Clear"

	f.mu.Lock()
	defer f.mu.Unlock()

	if err := os.Remove(f.path); err != nil && !serrors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Backend stores many sessions by id. Implementations return
// storage.ErrNotFound for unknown ids.
type Backend interface {
	GetSession(ctx context.Context, id string) (State, error)
	SaveSession(ctx context.Context, id string, st State) error
	DeleteSession(ctx context.Context, id string) error
}

type keyed struct {
	backend Backend
	id      string
}

// Keyed narrows a Backend to the single session id.
func Keyed(backend Backend, id string) Store {
	return &keyed{backend: backend, id: id}
}

func (k *keyed) Load(ctx context.Context) (State, error) {
	st, err := k.backend.GetSession(ctx, k.id)
	if serrors.Is(err, storage.ErrNotFound) {
		return State{}, nil
	}
	return st, err
}

func (k *keyed) Save(ctx context.Context, st State) error {
	return k.backend.SaveSession(ctx, k.id, st)
}

func (k *keyed) Clear(ctx context.Context) error {
	err := k.backend.DeleteSession(ctx, k.id)
	if serrors.Is(err, storage.ErrNotFound) {
		return nil
	}
	return err
}
