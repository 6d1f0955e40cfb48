package artifact

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

const stagingSuffix = ".partial"

// stagingFile is a hidden, exclusively created file next to the final
// artifact. Everything written to it is hashed.
type stagingFile struct {
	path string
	file *os.File
	hash hash.Hash
	size int64
}

// createStaging opens ".<finalName>.<uuid>.partial" in dir.
func createStaging(dir, finalName string) (*stagingFile, error) {
	path := filepath.Join(dir, "."+finalName+"."+uuid.NewString()+stagingSuffix)
	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return nil, fmt.Errorf("create staging file: %w", err)
	}
	return &stagingFile{path: path, file: file, hash: sha256.New()}, nil
}

// writeError marks a failure writing to local disk, as opposed to reading
// the response body.
type writeError struct {
	err error
}

func (e *writeError) Error() string { return "write staging file: " + e.err.Error() }
func (e *writeError) Unwrap() error { return e.err }

type taggedWriter struct {
	w io.Writer
}

func (t taggedWriter) Write(p []byte) (int, error) {
	n, err := t.w.Write(p)
	if err != nil {
		err = &writeError{err: err}
	}
	return n, err
}

// ReadFrom copies r into the file and the digest.
func (s *stagingFile) ReadFrom(r io.Reader) (int64, error) {
	n, err := io.Copy(io.MultiWriter(taggedWriter{s.file}, s.hash), r)
	s.size += n
	return n, err
}

// Sum returns the hex SHA-256 of everything written so far.
func (s *stagingFile) Sum() string {
	return hex.EncodeToString(s.hash.Sum(nil))
}

// Close flushes the file to stable storage and closes it.
func (s *stagingFile) Close() error {
	if s.file == nil {
		return nil
	}
	f := s.file
	s.file = nil
	if err := f.Sync(); err != nil {
		f.Close()
		return &writeError{err: fmt.Errorf("sync: %w", err)}
	}
	if err := f.Close(); err != nil {
		return &writeError{err: fmt.Errorf("close: %w", err)}
	}
	return nil
}

// Discard closes and removes the staging file. Safe to call more than once.
func (s *stagingFile) Discard() {
	if s.file != nil {
		s.file.Close()
		s.file = nil
	}
	if s.path != "" {
		os.Remove(s.path)
		s.path = ""
	}
}

// promote sets mode on the staged file and renames it onto finalPath, then
// syncs the directory so the rename survives a crash.
func (s *stagingFile) promote(finalPath string, mode fs.FileMode) error {
	if err := s.Close(); err != nil {
		return err
	}
	if err := os.Chmod(s.path, mode); err != nil {
		return fmt.Errorf("chmod staging file: %w", err)
	}
	if err := os.Rename(s.path, finalPath); err != nil {
		return fmt.Errorf("rename into place: %w", err)
	}
	s.path = ""
	return syncDir(filepath.Dir(finalPath))
}

func syncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return fmt.Errorf("open directory: %w", err)
	}
	defer d.Close()
	if err := d.Sync(); err != nil && !errors.Is(err, os.ErrInvalid) {
		return fmt.Errorf("sync directory: %w", err)
	}
	return nil
}

// isStagingName reports whether name looks like a staging file.
func isStagingName(name string) bool {
	return strings.HasPrefix(name, ".") && strings.HasSuffix(name, stagingSuffix)
}

// removeStaleStaging deletes staging files left in dir by an interrupted
// run and returns the names removed.
func removeStaleStaging(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var removed []string
	for _, e := range entries {
		if !e.Type().IsRegular() || !isStagingName(e.Name()) {
			continue
		}
		if err := os.Remove(filepath.Join(dir, e.Name())); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return removed, err
		}
		removed = append(removed, e.Name())
	}
	return removed, nil
}
