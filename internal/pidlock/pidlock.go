// Package pidlock keeps a single server instance per lock file.
//
// The lock file holds the PID of its owner and is locked with flock(2),
// so a crashed server never leaves a stale lock behind: the kernel drops
// the lock with the process and the next Acquire rewrites the PID.
package pidlock

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"golang.org/x/sys/unix"
)

// ErrLocked is returned by Acquire when another process holds the lock.
var ErrLocked = errors.New("pidlock: already locked")

// Lock is a held lock file.
type Lock struct {
	f    *os.File
	path string
}

// maxAttempts bounds how often Acquire retries after locking a file that
// was unlinked by the previous owner.
const maxAttempts = 10

// Acquire creates (if needed) and locks path, then writes the current PID
// into it. It fails with an error wrapping ErrLocked when another process
// holds the lock; the message names that process.
func Acquire(path string) (*Lock, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create lock directory: %w", err)
	}

	for attempt := 0; attempt < maxAttempts; attempt++ {
		f, err := lockFile(path)
		if err != nil {
			return nil, err
		}

		// Release unlinks before unlocking, so the inode we locked may no
		// longer be the one at path.
		current, err := isCurrent(f, path)
		if err != nil {
			_ = f.Close()
			return nil, err
		}
		if !current {
			_ = f.Close()
			continue
		}

		if err := writePID(f); err != nil {
			_ = unix.Flock(int(f.Fd()), unix.LOCK_UN)
			_ = f.Close()
			return nil, err
		}
		return &Lock{f: f, path: path}, nil
	}
	return nil, fmt.Errorf("lock %s: file replaced %d times while locking", path, maxAttempts)
}

func lockFile(path string) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, fmt.Errorf("open lock file: %w", err)
	}

	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		_ = f.Close()
		if errors.Is(err, unix.EWOULDBLOCK) {
			if pid, perr := ReadPID(path); perr == nil {
				return nil, fmt.Errorf("%w: %s held by PID %d", ErrLocked, path, pid)
			}
			return nil, fmt.Errorf("%w: %s", ErrLocked, path)
		}
		return nil, fmt.Errorf("lock %s: %w", path, err)
	}
	return f, nil
}

// isCurrent reports whether f is still the file linked at path.
func isCurrent(f *os.File, path string) (bool, error) {
	held, err := f.Stat()
	if err != nil {
		return false, fmt.Errorf("stat lock file: %w", err)
	}
	linked, err := os.Stat(path)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("stat %s: %w", path, err)
	}
	return os.SameFile(held, linked), nil
}

func writePID(f *os.File) error {
	if err := f.Truncate(0); err != nil {
		return fmt.Errorf("truncate lock file: %w", err)
	}
	if _, err := f.WriteAt([]byte(strconv.Itoa(os.Getpid())+"\n"), 0); err != nil {
		return fmt.Errorf("write PID: %w", err)
	}
	return f.Sync()
}

// Path returns the lock file path.
func (l *Lock) Path() string { return l.path }

// Release removes the lock file and drops the lock. It is safe to call
// more than once.
func (l *Lock) Release() error {
	if l == nil || l.f == nil {
		return nil
	}

	// Unlink before unlocking. A waiter that then locks the unlinked inode
	// notices in Acquire and retries on the new file.
	var errs []error
	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		errs = append(errs, err)
	}
	if err := unix.Flock(int(l.f.Fd()), unix.LOCK_UN); err != nil {
		errs = append(errs, err)
	}
	if err := l.f.Close(); err != nil {
		errs = append(errs, err)
	}
	l.f = nil

	return errors.Join(errs...)
}

// ReadPID returns the PID recorded in path.
func ReadPID(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0, fmt.Errorf("invalid PID in %s: %q", path, strings.TrimSpace(string(data)))
	}
	return pid, nil
}

// Running returns the PID recorded in path and whether that process is
// alive.
func Running(path string) (int, bool) {
	pid, err := ReadPID(path)
	if err != nil {
		return 0, false
	}
	p, err := os.FindProcess(pid)
	if err != nil {
		return 0, false
	}
	if err := p.Signal(syscall.Signal(0)); err != nil && !errors.Is(err, os.ErrPermission) {
		return 0, false
	}
	return pid, true
}
