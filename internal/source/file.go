package source

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"go-stream-extract/internal/model"
)

// FileProvider serves local filesystem sources.
type FileProvider struct{}

// NewFileProvider returns the local filesystem provider.
func NewFileProvider() *FileProvider {
	return &FileProvider{}
}

func (p *FileProvider) Scheme() string { return "file" }

// Open opens a local file for sequential reading.
func (p *FileProvider) Open(ctx context.Context, path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		switch {
		case os.IsNotExist(err):
			return nil, fmt.Errorf("%w: %s", model.ErrNotFound, path)
		case os.IsPermission(err):
			return nil, fmt.Errorf("%w: %s", model.ErrAuth, path)
		default:
			return nil, fmt.Errorf("%w: open %s: %v", model.ErrTransientIO, path, err)
		}
	}
	return f, nil
}

// List walks the directory tree under prefix and returns every regular file.
func (p *FileProvider) List(ctx context.Context, prefix string) ([]string, error) {
	info, err := os.Stat(prefix)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: stat %s: %v", model.ErrTransientIO, prefix, err)
	}
	if !info.IsDir() {
		return []string{prefix}, nil
	}

	var paths []string
	err = filepath.WalkDir(prefix, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.Type().IsRegular() {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: walk %s: %v", model.ErrTransientIO, prefix, err)
	}
	return paths, nil
}
