// Package lock keeps two report runs from overlapping on the same host.
package lock

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"
)

// ErrLocked is returned when another run holds a fresh lock
var ErrLocked = errors.New("another report run is in progress")

// Lock is a held run lock
type Lock struct {
	path string
	once sync.Once
}

// Acquire creates path exclusively. A lock file older than staleAfter is
// assumed abandoned and replaced.
func Acquire(path string, staleAfter time.Duration) (*Lock, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("could not create lock directory: %w", err)
	}

	for attempt := 0; attempt < 2; attempt++ {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
		if err == nil {
			_, werr := fmt.Fprintf(f, "%d\n%s\n", os.Getpid(), time.Now().UTC().Format(time.RFC3339))
			cerr := f.Close()
			if werr != nil || cerr != nil {
				os.Remove(path)
				return nil, fmt.Errorf("could not write lock file: %w", errors.Join(werr, cerr))
			}
			return &Lock{path: path}, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("could not create lock file: %w", err)
		}

		info, statErr := os.Stat(path)
		if statErr != nil {
			if errors.Is(statErr, os.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf("could not inspect lock file: %w", statErr)
		}
		if staleAfter <= 0 || time.Since(info.ModTime()) < staleAfter {
			return nil, fmt.Errorf("%w (lock held by pid %s since %s)", ErrLocked,
				Holder(path), info.ModTime().Format(time.RFC3339))
		}
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("could not remove stale lock: %w", err)
		}
	}
	return nil, ErrLocked
}

// Path returns the lock file location
func (l *Lock) Path() string {
	return l.path
}

// Release removes the lock file. Calling it more than once is a no-op.
func (l *Lock) Release() error {
	var err error
	l.once.Do(func() {
		if rerr := os.Remove(l.path); rerr != nil && !errors.Is(rerr, os.ErrNotExist) {
			err = fmt.Errorf("could not release lock: %w", rerr)
		}
	})
	return err
}

// Holder returns the pid recorded in the lock file, or "unknown"
func Holder(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return "unknown"
	}
	first, _, _ := strings.Cut(string(data), "\n")
	if _, err := strconv.Atoi(strings.TrimSpace(first)); err != nil {
		return "unknown"
	}
	return strings.TrimSpace(first)
}
