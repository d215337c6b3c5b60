package store

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
)

// File stores each collection as <dir>/<collection>.json.
type File struct {
	dir string
}

func NewFile(dir string) *File {
	return &File{dir: dir}
}

func (f *File) path(c Collection) string {
	return filepath.Join(f.dir, string(c)+".json")
}

func (f *File) Load(ctx context.Context, c Collection) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, wrap("load", c, err)
	}
	data, err := os.ReadFile(f.path(c))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, wrap("load", c, err)
	}
	return data, nil
}

// Save writes to a temp file and renames it over the collection so readers
// never observe a partial document.
func (f *File) Save(ctx context.Context, c Collection, data []byte) error {
	if err := ctx.Err(); err != nil {
		return wrap("save", c, err)
	}
	if err := os.MkdirAll(f.dir, 0o755); err != nil {
		return wrap("save", c, err)
	}
	tmp, err := os.CreateTemp(f.dir, string(c)+".*.tmp")
	if err != nil {
		return wrap("save", c, err)
	}
	buf := make([]byte, 0, len(data)+1)
	buf = append(append(buf, data...), '\n')
	if _, err := tmp.Write(buf); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return wrap("save", c, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return wrap("save", c, err)
	}
	if err := os.Rename(tmp.Name(), f.path(c)); err != nil {
		os.Remove(tmp.Name())
		return wrap("save", c, err)
	}
	return nil
}

func (f *File) Remove(ctx context.Context, c Collection) error {
	if err := ctx.Err(); err != nil {
		return wrap("remove", c, err)
	}
	if err := os.Remove(f.path(c)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return wrap("remove", c, err)
	}
	return nil
}
