package objects

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/prepsphere/server/internal/domain/files"
)

var _ files.LocalStore = (*LocalStore)(nil)

// LocalStore writes objects below a root directory. Stored paths are
// absolute, which is how the rest of the system tells them apart from
// bucket keys.
type LocalStore struct {
	root string
}

func NewLocalStore(root string) (*LocalStore, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve upload dir: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &LocalStore{root: abs}, nil
}

func (l *LocalStore) Root() string {
	return l.root
}

func (l *LocalStore) resolve(key string) (string, error) {
	path := filepath.Join(l.root, filepath.FromSlash(key))
	rel, err := filepath.Rel(l.root, path)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return "", fmt.Errorf("key %q escapes upload dir", key)
	}
	return path, nil
}

func (l *LocalStore) Put(_ context.Context, key string, body []byte, _ string) (files.StoredObject, error) {
	path, err := l.resolve(key)
	if err != nil {
		return files.StoredObject{}, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return files.StoredObject{}, fmt.Errorf("create dir for %s: %w", key, err)
	}
	if err := os.WriteFile(path, body, 0o644); err != nil {
		return files.StoredObject{}, fmt.Errorf("write %s: %w", key, err)
	}
	return files.StoredObject{Path: path, Size: int64(len(body))}, nil
}

func (l *LocalStore) Exists(_ context.Context, path string) (bool, error) {
	info, err := os.Stat(path)
	if err == nil {
		return !info.IsDir(), nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, fmt.Errorf("stat %s: %w", path, err)
}

func (l *LocalStore) Delete(_ context.Context, path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove %s: %w", path, err)
	}
	return nil
}

// Open returns the file for streaming with its modification time. A
// missing file yields an error wrapping fs.ErrNotExist.
func (l *LocalStore) Open(path string) (io.ReadSeekCloser, time.Time, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("open %s: %w", path, err)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, time.Time{}, fmt.Errorf("stat %s: %w", path, err)
	}
	return f, info.ModTime(), nil
}
