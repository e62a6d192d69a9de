// Package lock provides an flock(2) based lease so that only one process
// drains a given follow-up queue.
package lock

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
)

// ErrHeld is returned when another process owns the lease.
var ErrHeld = errors.New("lease is held by another process")

// Lease is held for as long as its file descriptor stays open.
type Lease struct {
	path string
	f    *os.File
}

// Acquire takes the lease at path without blocking and records the current
// PID in it. It returns ErrHeld (wrapped) when the lease is taken.
func Acquire(path string) (*Lease, error) {
	if path == "" {
		return nil, fmt.Errorf("lease path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create lease directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open lease file: %w", err)
	}

	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		_ = f.Close()
		if errors.Is(err, syscall.EWOULDBLOCK) {
			return nil, fmt.Errorf("%s: %w", path, ErrHeld)
		}
		return nil, fmt.Errorf("flock %s: %w", path, err)
	}

	l := &Lease{path: path, f: f}
	if err := l.writePID(); err != nil {
		_ = l.Release()
		return nil, err
	}
	return l, nil
}

func (l *Lease) writePID() error {
	if err := l.f.Truncate(0); err != nil {
		return fmt.Errorf("truncate lease file: %w", err)
	}
	if _, err := l.f.WriteAt([]byte(strconv.Itoa(os.Getpid())+"\n"), 0); err != nil {
		return fmt.Errorf("write pid: %w", err)
	}
	if err := l.f.Sync(); err != nil {
		return fmt.Errorf("sync lease file: %w", err)
	}
	return nil
}

func (l *Lease) Path() string { return l.path }

// Release drops the lease. It is safe to call more than once.
func (l *Lease) Release() error {
	if l == nil || l.f == nil {
		return nil
	}
	_ = syscall.Flock(int(l.f.Fd()), syscall.LOCK_UN)
	err := l.f.Close()
	l.f = nil
	return err
}

// Holder reports the PID recorded in the lease file, or 0 if none.
func Holder(path string) int {
	b, err := os.ReadFile(path)
	if err != nil {
		return 0
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(b)))
	if err != nil {
		return 0
	}
	return pid
}

// PathFor returns the lease path guarding the queue in the SQLite file at dbPath.
func PathFor(dbPath string) string {
	return dbPath + ".dispatch.lock"
}
