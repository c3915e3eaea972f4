package objectstore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/foxseedlab/gijiroku/internal/objectstore"
)

// LocalStore keeps objects as files under a root directory. Keys map to
// slash-separated relative paths.
type LocalStore struct {
	root string
}

func NewLocalStore(dir string) (*LocalStore, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, err
	}
	return &LocalStore{root: abs}, nil
}

func (l *LocalStore) resolve(key string) string {
	return filepath.Join(l.root, filepath.FromSlash(key))
}

func (l *LocalStore) Get(_ context.Context, key string) ([]byte, error) {
	body, err := os.ReadFile(l.resolve(key))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("local get %s: %w", key, objectstore.ErrNotFound)
		}
		return nil, fmt.Errorf("local get %s: %w", key, err)
	}
	return body, nil
}

// Put writes to a temp file and renames it so readers never see a partial object.
func (l *LocalStore) Put(_ context.Context, key string, body []byte, _ string) error {
	full := l.resolve(key)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return fmt.Errorf("local put %s: %w", key, err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(full), ".tmp-*")
	if err != nil {
		return fmt.Errorf("local put %s: %w", key, err)
	}
	if _, err := tmp.Write(body); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("local put %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("local put %s: %w", key, err)
	}
	if err := os.Rename(tmp.Name(), full); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("local put %s: %w", key, err)
	}
	return nil
}

var _ objectstore.ObjectStore = (*LocalStore)(nil)
