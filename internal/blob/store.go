// Package blob is a content-addressed store for binary project files. A handle is the hex
// BLAKE3 digest of the bytes it names.
package blob

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"lukechampine.com/blake3"
)

var (
	ErrNotFound      = errors.New("blob not found")
	ErrInvalidHandle = errors.New("invalid blob handle")
)

const handleLen = 64 // hex of a 32-byte digest

// FSStore keeps blobs as files under root, fanned out by the first two hex characters.
type FSStore struct {
	root string
}

func NewFSStore(root string) (*FSStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create blob root: %w", err)
	}
	return &FSStore{root: root}, nil
}

func (s *FSStore) path(handle string) (string, error) {
	if len(handle) != handleLen {
		return "", ErrInvalidHandle
	}
	if _, err := hex.DecodeString(handle); err != nil {
		return "", ErrInvalidHandle
	}
	return filepath.Join(s.root, handle[:2], handle), nil
}

// Put stores everything read from r and returns its handle. Storing the same bytes twice
// yields the same handle and a single copy.
func (s *FSStore) Put(ctx context.Context, r io.Reader) (string, error) {
	tmp, err := os.CreateTemp(s.root, "upload-*")
	if err != nil {
		return "", fmt.Errorf("create temp blob: %w", err)
	}
	defer os.Remove(tmp.Name())

	h := blake3.New(32, nil)
	if _, err := io.Copy(io.MultiWriter(tmp, h), r); err != nil {
		tmp.Close()
		return "", fmt.Errorf("write blob: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close blob: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	handle := hex.EncodeToString(h.Sum(nil))
	dst, _ := s.path(handle)
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", fmt.Errorf("create blob dir: %w", err)
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		return "", fmt.Errorf("commit blob: %w", err)
	}
	return handle, nil
}

// Open returns a reader for the blob. The caller closes it.
func (s *FSStore) Open(ctx context.Context, handle string) (io.ReadCloser, error) {
	p, err := s.path(handle)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(p)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	return f, err
}

// Delete removes the blob. Deleting a missing blob is not an error.
func (s *FSStore) Delete(ctx context.Context, handle string) error {
	p, err := s.path(handle)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("delete blob %s: %w", handle, err)
	}
	return nil
}

// Sum returns the handle data would be stored under.
func Sum(data []byte) string {
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:])
}
