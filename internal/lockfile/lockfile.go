// Package lockfile serializes ledger maintenance between filehasher
// processes with a PID file.
package lockfile

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"syscall"
)

// LockedError is returned when a live process holds the lock.
type LockedError struct {
	Path string
	PID  int
}

func (e *LockedError) Error() string {
	return fmt.Sprintf("another filehasher process (PID %d) holds %s", e.PID, e.Path)
}

type LockFile struct {
	path string
	file *os.File
}

// Acquire creates path exclusively and writes our PID to it. A lock left by
// a process that no longer exists is removed and acquisition retried once.
func Acquire(path string) (*LockFile, error) {
	l, err := create(path)
	if err == nil || !errors.Is(err, os.ErrExist) {
		return l, err
	}
	pid, rerr := readPID(path)
	if rerr != nil {
		return nil, fmt.Errorf("lock file %s is unreadable (%v); remove it if no other filehasher is running", path, rerr)
	}
	if processExists(pid) {
		return nil, &LockedError{Path: path, PID: pid}
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("remove stale lock %s: %w", path, err)
	}
	return create(path)
}

func create(path string) (*LockFile, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	if _, err := fmt.Fprintf(f, "%d\n", os.Getpid()); err != nil {
		f.Close()
		os.Remove(path)
		return nil, fmt.Errorf("write lock file: %w", err)
	}
	return &LockFile{path: path, file: f}, nil
}

func readPID(path string) (int, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(b)))
}

// processExists sends signal 0; EPERM still means the process is alive.
func processExists(pid int) bool {
	if pid <= 0 {
		return false
	}
	p, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	err = p.Signal(syscall.Signal(0))
	return err == nil || !errors.Is(err, syscall.ESRCH) && !errors.Is(err, os.ErrProcessDone)
}

// Release closes and removes the lock file.
func (l *LockFile) Release() error {
	if l == nil {
		return nil
	}
	if l.file != nil {
		_ = l.file.Close()
	}
	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove lock file: %w", err)
	}
	return nil
}

func (l *LockFile) Path() string { return l.path }
