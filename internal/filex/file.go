// Package filex provides the byte sources uploads read from and a helper
// for the client's data directory.
package filex

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Source is a named, sized, random-access byte source.
type Source interface {
	io.ReaderAt
	Name() string
	Size() int64
	// Path is the local file path, or "" for sources not backed by a file.
	Path() string
}

// File is a Source backed by an open *os.File.
type File struct {
	f    *os.File
	name string
	path string
	size int64
}

// OpenFile opens path for reading and captures its size.
func OpenFile(path string) (*File, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("abs %s: %w", path, err)
	}

	f, err := os.Open(abs)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", abs, err)
	}

	fi, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("stat %s: %w", abs, err)
	}
	if fi.IsDir() {
		_ = f.Close()
		return nil, fmt.Errorf("%s is a directory", abs)
	}

	return &File{f: f, name: fi.Name(), path: abs, size: fi.Size()}, nil
}

func (f *File) ReadAt(p []byte, off int64) (int, error) { return f.f.ReadAt(p, off) }
func (f *File) Name() string                            { return f.name }
func (f *File) Size() int64                             { return f.size }
func (f *File) Path() string                            { return f.path }
func (f *File) Close() error                            { return f.f.Close() }

// Memory is an in-memory Source.
type Memory struct {
	r    *bytes.Reader
	name string
}

func FromBytes(name string, data []byte) *Memory {
	return &Memory{r: bytes.NewReader(data), name: name}
}

func (m *Memory) ReadAt(p []byte, off int64) (int, error) { return m.r.ReadAt(p, off) }
func (m *Memory) Name() string                            { return m.name }
func (m *Memory) Size() int64                             { return m.r.Size() }
func (m *Memory) Path() string                            { return "" }

// ReadRange reads exactly the bytes [start, end) from src.
func ReadRange(src io.ReaderAt, start, end int64) ([]byte, error) {
	if start < 0 || end < start {
		return nil, fmt.Errorf("invalid range [%d, %d)", start, end)
	}
	buf := make([]byte, end-start)
	n, err := src.ReadAt(buf, start)
	if n == len(buf) {
		return buf, nil
	}
	if err == nil || errors.Is(err, io.EOF) {
		err = io.ErrUnexpectedEOF
	}
	return nil, fmt.Errorf("read [%d, %d): %w", start, end, err)
}

// EnsureDir creates dir (and parents) if needed and returns its absolute path.
// An empty dir resolves to "kbupload" under the user config directory.
func EnsureDir(dir string) (string, error) {
	if dir == "" {
		base, err := os.UserConfigDir()
		if err != nil {
			return "", fmt.Errorf("user config dir: %w", err)
		}
		dir = filepath.Join(base, "kbupload")
	}

	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("abs %s: %w", dir, err)
	}

	if err := os.MkdirAll(abs, 0o700); err != nil {
		return "", fmt.Errorf("mkdir %s: %w", abs, err)
	}

	return abs, nil
}
