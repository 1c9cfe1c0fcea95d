package lockfile

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"testing"
)

func TestAcquireRelease(t *testing.T) {
	p := filepath.Join(t.TempDir(), "ledger.lock")
	l, err := Acquire(p)
	if err != nil {
		t.Fatal(err)
	}
	_, err = Acquire(p)
	var le *LockedError
	if !errors.As(err, &le) || le.PID != os.Getpid() {
		t.Fatalf("second acquire: %v", err)
	}
	if err := l.Release(); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(p); !os.IsNotExist(err) {
		t.Fatal("lock file should be gone")
	}
}

func TestStaleLockIsReplaced(t *testing.T) {
	p := filepath.Join(t.TempDir(), "ledger.lock")
	// PIDs are bounded well below this on Linux and macOS
	if err := os.WriteFile(p, []byte(strconv.Itoa(1<<30)+"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	l, err := Acquire(p)
	if err != nil {
		t.Fatalf("stale lock not replaced: %v", err)
	}
	defer l.Release()
	b, _ := os.ReadFile(p)
	if string(b) != strconv.Itoa(os.Getpid())+"\n" {
		t.Fatalf("lock content %q", b)
	}
}

func TestGarbageLock(t *testing.T) {
	p := filepath.Join(t.TempDir(), "ledger.lock")
	if err := os.WriteFile(p, []byte("nope"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Acquire(p); err == nil {
		t.Fatal("garbage lock should not be acquired")
	}
}
