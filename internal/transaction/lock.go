// Package transaction serializes installs into a destination directory.
package transaction

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

const (
	// LockFileName is created inside the destination directory.
	LockFileName = ".paperfetch.lock"

	// StaleLockThreshold is the maximum age of a lock before it's considered stale.
	StaleLockThreshold = 10 * time.Minute
)

var (
	ErrLockExists = errors.New("destination lock exists: another fetch may be in progress")
)

// Lock represents an exclusive hold on a destination directory.
type Lock struct {
	id   string
	path string
	file *os.File
}

// AcquireLock takes the lock for dir, which must already exist.
// Uses O_CREATE|O_EXCL for atomic lock creation. A lock older than
// StaleLockThreshold is assumed abandoned and replaced once.
func AcquireLock(ctx context.Context, dir string) (*Lock, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	lockPath := filepath.Join(dir, LockFileName)

	file, err := os.OpenFile(lockPath, os.O_CREATE|os.O_EXCL|os.O_RDWR, 0600)
	if err != nil {
		if !os.IsExist(err) {
			return nil, fmt.Errorf("create lock file: %w", err)
		}
		if isStale, _ := isLockStale(lockPath); !isStale {
			return nil, ErrLockExists
		}
		// Remove stale lock and retry once
		os.Remove(lockPath)
		file, err = os.OpenFile(lockPath, os.O_CREATE|os.O_EXCL|os.O_RDWR, 0600)
		if err != nil {
			return nil, ErrLockExists
		}
	}

	id := uuid.New().String()
	lockData := fmt.Sprintf("id=%s\npid=%d\ntimestamp=%s\n", id, os.Getpid(), time.Now().UTC().Format(time.RFC3339))
	if _, err := file.WriteString(lockData); err != nil {
		file.Close()
		os.Remove(lockPath)
		return nil, fmt.Errorf("write lock data: %w", err)
	}

	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(lockPath)
		return nil, fmt.Errorf("sync lock file: %w", err)
	}

	return &Lock{
		id:   id,
		path: lockPath,
		file: file,
	}, nil
}

// ID identifies this holder in logs and in the lock file.
func (l *Lock) ID() string {
	return l.id
}

// Path returns the lock file location.
func (l *Lock) Path() string {
	return l.path
}

// Release releases the lock. Calling it again is a no-op.
func (l *Lock) Release() error {
	if l.file != nil {
		l.file.Close()
		l.file = nil
	}

	if l.path != "" {
		if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove lock file: %w", err)
		}
		l.path = ""
	}

	return nil
}

// isLockStale checks if a lock file is older than the stale lock threshold.
func isLockStale(lockPath string) (bool, error) {
	info, err := os.Stat(lockPath)
	if err != nil {
		return false, err
	}

	age := time.Since(info.ModTime())
	return age > StaleLockThreshold, nil
}
