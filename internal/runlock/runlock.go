//go:build unix

// Package runlock keeps two sync runs from working on the same target at once.
package runlock

import (
	"errors"
	"fmt"
	"os"

	"golang.org/x/sys/unix"

	"github.com/starford/wikisync/internal/apperr"
)

// Lock is an exclusive advisory lock held on a file.
type Lock struct {
	path string
	file *os.File
}

// Acquire takes the lock for the target root dir without blocking. If another process
// holds it the error wraps apperr.ErrRunInProgress.
func Acquire(dir string) (*Lock, error) {
	path := Path(dir)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("runlock: open %s: %w", path, err)
	}
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		_ = f.Close()
		if errors.Is(err, unix.EWOULDBLOCK) {
			return nil, fmt.Errorf("runlock: %s: %w", path, apperr.ErrRunInProgress)
		}
		return nil, fmt.Errorf("runlock: flock %s: %w", path, err)
	}
	return &Lock{path: path, file: f}, nil
}

// Release unlocks and closes the lock file. The file itself is left in place
// so a waiting process never locks an unlinked inode.
func (l *Lock) Release() error {
	if l == nil || l.file == nil {
		return nil
	}
	err := unix.Flock(int(l.file.Fd()), unix.LOCK_UN)
	if cerr := l.file.Close(); err == nil {
		err = cerr
	}
	l.file = nil
	return err
}
