// Package lockfile provides file-based locking so only one engine serves
// a given project at a time.
package lockfile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

var ErrLocked = errors.New("another instance is already running")

// Locks older than this are treated as leftovers from a crashed process.
const staleAfter = time.Hour

// Lockfile represents a file-based lock holding the owner's PID.
type Lockfile struct {
	path   string
	file   *os.File
	locked bool
}

// New creates a lockfile instance for path; the lock is not yet held.
func New(path string) *Lockfile {
	return &Lockfile{path: path}
}

// TryAcquire attempts to take the lock. A lock held by a dead or
// long-gone process is broken and re-acquired.
func (l *Lockfile) TryAcquire() error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0755); err != nil {
		return fmt.Errorf("failed to create lockfile directory: %w", err)
	}

	file, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0644)
	if os.IsExist(err) {
		stale, reason := l.checkStale()
		if !stale {
			return fmt.Errorf("%w: %s", ErrLocked, reason)
		}
		if removeErr := os.Remove(l.path); removeErr != nil {
			return fmt.Errorf("failed to remove stale lockfile (%s): %w", reason, removeErr)
		}
		file, err = os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0644)
	}
	if err != nil {
		return fmt.Errorf("failed to create lockfile: %w", err)
	}

	l.file = file
	l.locked = true

	content := fmt.Sprintf("%d\n%s\n", os.Getpid(), time.Now().Format(time.RFC3339))
	if _, err := l.file.WriteString(content); err != nil {
		l.Release()
		return fmt.Errorf("failed to write to lockfile: %w", err)
	}
	if err := l.file.Sync(); err != nil {
		l.Release()
		return fmt.Errorf("failed to sync lockfile: %w", err)
	}
	return nil
}

// checkStale reports whether the existing lockfile belongs to a process
// that is no longer running, plus a reason for logs.
func (l *Lockfile) checkStale() (bool, string) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		return true, "cannot read lockfile"
	}

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	pid, err := strconv.Atoi(strings.TrimSpace(lines[0]))
	if err != nil {
		return true, "invalid PID in lockfile"
	}

	if running, reason := isProcessRunning(pid); !running {
		return true, reason
	}

	if len(lines) >= 2 {
		if stamp, err := time.Parse(time.RFC3339, strings.TrimSpace(lines[1])); err == nil {
			if time.Since(stamp) > staleAfter {
				return true, "lockfile is older than 1 hour"
			}
		}
	}
	return false, fmt.Sprintf("process with PID %d is running", pid)
}

// Release closes and removes the lockfile.
func (l *Lockfile) Release() error {
	if !l.locked {
		return nil
	}

	var err error
	if l.file != nil {
		err = l.file.Close()
		l.file = nil
	}
	if removeErr := os.Remove(l.path); removeErr != nil && !os.IsNotExist(removeErr) {
		if err != nil {
			err = fmt.Errorf("%v; failed to remove lockfile: %w", err, removeErr)
		} else {
			err = fmt.Errorf("failed to remove lockfile: %w", removeErr)
		}
	}
	l.locked = false
	return err
}

// Locked returns true if the lock is held.
func (l *Lockfile) Locked() bool {
	return l.locked
}

// Path returns the lockfile path.
func (l *Lockfile) Path() string {
	return l.path
}
