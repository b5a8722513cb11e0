package store

import (
	"context"
	"fmt"
	"os"
	"path"
	"strings"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-billy/v5/util"
)

// FileBackend keeps each key as a JSON file in a billy filesystem.
type FileBackend struct {
	fs billy.Filesystem
}

// NewFileBackend roots the backend at dir on the local disk.
func NewFileBackend(dir string) (*FileBackend, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return &FileBackend{fs: osfs.New(dir)}, nil
}

// NewMemoryBackend is backed by an in-memory filesystem.
func NewMemoryBackend() *FileBackend {
	return &FileBackend{fs: memfs.New()}
}

// NewFileBackendWithFS wraps an existing filesystem.
func NewFileBackendWithFS(fs billy.Filesystem) *FileBackend {
	return &FileBackend{fs: fs}
}

func (b *FileBackend) filename(key string) (string, error) {
	if key == "" || strings.ContainsAny(key, `/\`) || strings.HasPrefix(key, ".") {
		return "", fmt.Errorf("invalid store key %q", key)
	}
	return key + ".json", nil
}

func (b *FileBackend) Get(_ context.Context, key string) ([]byte, error) {
	name, err := b.filename(key)
	if err != nil {
		return nil, err
	}
	data, err := util.ReadFile(b.fs, name)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	return data, nil
}

// Put writes to a temporary file and renames it over the target so a reader
// never observes a partially written document.
func (b *FileBackend) Put(_ context.Context, key string, value []byte) error {
	name, err := b.filename(key)
	if err != nil {
		return err
	}
	tmp, err := util.TempFile(b.fs, path.Dir(name), "."+key+"-")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(value); err != nil {
		_ = tmp.Close()
		_ = b.fs.Remove(tmpName)
		return fmt.Errorf("write %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		_ = b.fs.Remove(tmpName)
		return fmt.Errorf("close %s: %w", tmpName, err)
	}
	if err := b.fs.Rename(tmpName, name); err != nil {
		_ = b.fs.Remove(tmpName)
		return fmt.Errorf("replace %s: %w", name, err)
	}
	return nil
}

func (b *FileBackend) Delete(_ context.Context, key string) error {
	name, err := b.filename(key)
	if err != nil {
		return err
	}
	if err := b.fs.Remove(name); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove %s: %w", name, err)
	}
	return nil
}

func (b *FileBackend) Close() error {
	return nil
}
