// Package hashx computes whole-file content hashes used as upload identifiers.
//
// Files are hashed incrementally over fixed read windows, so arbitrarily large
// files never have to be held in memory. The window size does not change the
// result: the same bytes always produce the same hash.
package hashx

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"io"

	"golang.org/x/crypto/blake2b"
)

// Algorithm names a supported hash function.
type Algorithm string

const (
	// MD5 is what the document store keys uploads by.
	MD5 Algorithm = "md5"
	// BLAKE2b256 suits stores that only need a stable identifier.
	BLAKE2b256 Algorithm = "blake2b-256"
)

// DefaultWindow is the read window used when Hasher.Window is not set.
const DefaultWindow int64 = 5 * 1024 * 1024

var (
	ErrRead             = errors.New("read source")
	ErrUnknownAlgorithm = errors.New("unknown hash algorithm")
)

// Hasher hashes io.ReaderAt sources window by window.
type Hasher struct {
	Algorithm Algorithm
	Window    int64
}

// New returns a Hasher after checking the algorithm is supported.
func New(alg Algorithm, window int64) (*Hasher, error) {
	if alg == "" {
		alg = MD5
	}
	if _, err := newHash(alg); err != nil {
		return nil, err
	}
	if window <= 0 {
		window = DefaultWindow
	}
	return &Hasher{Algorithm: alg, Window: window}, nil
}

func newHash(alg Algorithm) (hash.Hash, error) {
	switch alg {
	case MD5, "":
		return md5.New(), nil
	case BLAKE2b256:
		return blake2b.New256(nil)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownAlgorithm, alg)
}

// Sum returns the lowercase hex digest of the first size bytes of src.
// Cancellation is checked between windows.
func (h *Hasher) Sum(ctx context.Context, src io.ReaderAt, size int64) (string, error) {
	d, err := newHash(h.Algorithm)
	if err != nil {
		return "", err
	}

	window := bufferSize(h.Window, size)
	if window == 0 {
		return hex.EncodeToString(d.Sum(nil)), nil
	}

	buf := make([]byte, window)
	for off := int64(0); off < size; off += window {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		n := window
		if off+n > size {
			n = size - off
		}

		read, err := src.ReadAt(buf[:n], off)
		if int64(read) < n {
			if err == nil || errors.Is(err, io.EOF) {
				err = io.ErrUnexpectedEOF
			}
			return "", fmt.Errorf("%w at offset %d: %w", ErrRead, off, err)
		}

		d.Write(buf[:n])
	}

	return hex.EncodeToString(d.Sum(nil)), nil
}

// bufferSize is the read buffer for a source of size bytes: the window,
// capped at size. An empty source needs none.
func bufferSize(window, size int64) int64 {
	if size <= 0 {
		return 0
	}
	if window <= 0 {
		window = DefaultWindow
	}
	return min(window, size)
}
