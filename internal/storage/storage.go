// Package storage provides the disk-backed file store for uploads: post
// attachments, group cover images and avatars. Files are stored under
// date-based directories with random names; the database keeps the original
// file name and the stored relative path.
package storage

import (
	"errors"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/peerhive/peerhive/internal/token"
)

var (
	// ErrInvalidPath is returned when a stored path escapes the uploads root.
	ErrInvalidPath = errors.New("invalid storage path")
	// ErrNotFound is returned when no file exists at the given path.
	ErrNotFound = errors.New("file not found")
)

const (
	dirPerm  = 0o750
	filePerm = 0o640

	randomNameLength = 16
)

// Store is a disk-backed file store rooted at a single directory.
type Store struct {
	root string
}

// New creates a store rooted at the given directory, creating it if needed.
func New(root string) (*Store, error) {
	if err := os.MkdirAll(root, dirPerm); err != nil {
		return nil, err
	}

	return &Store{root: root}, nil
}

// Save writes the reader's content to a fresh file and returns its relative
// path and size. The original name only contributes its extension; the stored
// name is random to avoid collisions and traversal tricks.
func (s *Store) Save(originalName string, r io.Reader) (string, int64, error) {
	now := time.Now()

	relDir := path.Join(now.Format("2006"), now.Format("01"))
	if err := os.MkdirAll(filepath.Join(s.root, relDir), dirPerm); err != nil {
		return "", 0, err
	}

	name := token.NewLen(randomNameLength) + sanitizeExt(originalName)
	relPath := path.Join(relDir, name)

	f, err := os.OpenFile(filepath.Join(s.root, relPath), os.O_WRONLY|os.O_CREATE|os.O_EXCL, filePerm)
	if err != nil {
		return "", 0, err
	}

	size, err := io.Copy(f, r)
	if err != nil {
		_ = f.Close()
		_ = os.Remove(filepath.Join(s.root, relPath))

		return "", 0, err
	}

	if err := f.Close(); err != nil {
		return "", 0, err
	}

	return relPath, size, nil
}

// Open opens a previously stored file by its relative path.
func (s *Store) Open(relPath string) (io.ReadCloser, error) {
	abs, err := s.Path(relPath)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}

		return nil, err
	}

	return f, nil
}

// Path resolves a stored relative path to an absolute one, rejecting any
// path that would escape the root.
func (s *Store) Path(relPath string) (string, error) {
	cleaned := path.Clean("/" + relPath)[1:]
	if cleaned == "" || strings.HasPrefix(cleaned, "..") {
		return "", ErrInvalidPath
	}

	return filepath.Join(s.root, filepath.FromSlash(cleaned)), nil
}

// Remove deletes a stored file. Missing files are not an error.
func (s *Store) Remove(relPath string) error {
	abs, err := s.Path(relPath)
	if err != nil {
		return err
	}

	if err := os.Remove(abs); err != nil && !os.IsNotExist(err) {
		return err
	}

	return nil
}

// sanitizeExt returns a safe lowercase file extension, or nothing when the
// original name has none worth keeping.
func sanitizeExt(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	if len(ext) < 2 || len(ext) > 10 {
		return ""
	}

	for _, r := range ext[1:] {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return ""
		}
	}

	return ext
}
