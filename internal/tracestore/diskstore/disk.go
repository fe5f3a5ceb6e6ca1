// Package diskstore keeps traces in a local directory.
package diskstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/discochess/dxmetrics/internal/codec"
	"github.com/discochess/dxmetrics/internal/tracestore"
)

// Compile-time check that Store implements tracestore.Store.
var _ tracestore.Store = (*Store)(nil)

// Store reads and writes traces below a root directory.
type Store struct {
	root string
}

// New creates a store rooted at the given directory, which must exist.
func New(root string) (*Store, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("stat root directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", root)
	}
	return &Store{root: root}, nil
}

// ReadTrace reads and decompresses the named trace. The codec is chosen by
// the name's extension.
func (s *Store) ReadTrace(ctx context.Context, name string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	path, err := s.tracePath(name)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, tracestore.ErrNotFound
		}
		return nil, fmt.Errorf("opening trace: %w", err)
	}
	defer f.Close()

	reader, err := codec.ForName(name).Reader(f)
	if err != nil {
		return nil, fmt.Errorf("creating decompressor: %w", err)
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("decompressing trace: %w", err)
	}
	return data, nil
}

// WriteTrace compresses data by the name's extension and writes it,
// creating parent directories as needed.
func (s *Store) WriteTrace(ctx context.Context, name string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	path, err := s.tracePath(name)
	if err != nil {
		return err
	}
	compressed, err := codec.Compress(codec.ForName(name), data)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating directory: %w", err)
	}
	if err := os.WriteFile(path, compressed, 0o644); err != nil {
		return fmt.Errorf("writing trace: %w", err)
	}
	return nil
}

// Close releases any resources held by the store.
func (s *Store) Close() error {
	return nil
}

// tracePath maps a slash-separated name below root, rejecting names that
// would escape it.
func (s *Store) tracePath(name string) (string, error) {
	if !fs.ValidPath(name) || name == "." {
		return "", fmt.Errorf("invalid trace name %q", name)
	}
	return filepath.Join(s.root, filepath.FromSlash(name)), nil
}
