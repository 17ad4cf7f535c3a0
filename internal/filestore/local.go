package filestore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"studyrag/internal/util"
)

type LocalStore struct {
	root string
}

func NewLocalStore(root string) (*LocalStore, error) {
	if err := util.EnsureDir(root); err != nil {
		return nil, err
	}
	return &LocalStore{root: root}, nil
}

func (s *LocalStore) Save(ctx context.Context, ownerID, filename string, r io.Reader, size int64) (string, error) {
	_ = ctx
	_ = size
	dir, err := util.SafeJoin(s.root, ownerID)
	if err != nil {
		return "", err
	}
	final, err := util.SafeJoin(dir, filename)
	if err != nil {
		return "", err
	}
	if err := util.EnsureDir(dir); err != nil {
		return "", err
	}
	tmp, err := os.CreateTemp(dir, "upload-*.pdf")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
	}()
	if _, err := io.Copy(tmp, r); err != nil {
		return "", fmt.Errorf("write upload: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close upload: %w", err)
	}
	if err := os.Rename(tmp.Name(), final); err != nil {
		return "", fmt.Errorf("atomic move upload: %w", err)
	}
	rel, err := filepath.Rel(s.root, final)
	if err != nil {
		return "", fmt.Errorf("relative upload path: %w", err)
	}
	return filepath.ToSlash(rel), nil
}

func (s *LocalStore) Open(ctx context.Context, location string) (Object, error) {
	_ = ctx
	f, err := os.Open(s.path(location))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("open %s: %w", location, ErrNotFound)
		}
		return nil, fmt.Errorf("open %s: %w", location, err)
	}
	st, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("stat %s: %w", location, err)
	}
	return &localObject{File: f, size: st.Size()}, nil
}

func (s *LocalStore) Delete(ctx context.Context, location string) error {
	_ = ctx
	if err := os.Remove(s.path(location)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("delete %s: %w", location, err)
	}
	return nil
}

// path keeps locations inside root even if a stored value was tampered with.
func (s *LocalStore) path(location string) string {
	clean := filepath.Clean("/" + filepath.FromSlash(location))
	return filepath.Join(s.root, clean)
}

type localObject struct {
	*os.File
	size int64
}

func (o *localObject) Size() int64 { return o.size }
