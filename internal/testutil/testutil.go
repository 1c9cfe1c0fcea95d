package testutil

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"filehasher/internal/config"
	"filehasher/internal/state"
)

// ErrInjected is the cause reported by FailingSource.
var ErrInjected = errors.New("injected read failure")

// FailingSource serves Data but fails every read that reaches past FailAfter.
type FailingSource struct {
	Data      []byte
	FailAfter int64
	reads     atomic.Int64
}

func (s *FailingSource) Size() int64 { return int64(len(s.Data)) }

func (s *FailingSource) ReadAt(p []byte, off int64) (int, error) {
	s.reads.Add(1)
	if off+int64(len(p)) > s.FailAfter {
		return 0, ErrInjected
	}
	return copy(p, s.Data[off:]), nil
}

// Reads reports how many ReadAt calls were made.
func (s *FailingSource) Reads() int64 { return s.reads.Load() }

// FlakySource serves Data but fails exactly the Nth ReadAt call (1-based),
// so one job among several sharing the source can be made to fail.
type FlakySource struct {
	Data   []byte
	FailOn int64
	calls  atomic.Int64
}

func (s *FlakySource) Size() int64 { return int64(len(s.Data)) }

func (s *FlakySource) ReadAt(p []byte, off int64) (int, error) {
	if s.calls.Add(1) == s.FailOn {
		return 0, ErrInjected
	}
	n := copy(p, s.Data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// Pattern returns n bytes of a non-repeating-looking test pattern.
func Pattern(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(i % 251)
	}
	return b
}

// WriteFile writes data under t.TempDir() and returns its path.
func WriteFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(p, data, 0o644); err != nil {
		t.Fatalf("write %s: %v", p, err)
	}
	return p
}

// WriteConfig writes a version 1 config with data_root under a temp dir
// plus any extra YAML lines, and returns the loaded config and its path.
func WriteConfig(t *testing.T, extra ...string) (*config.Config, string) {
	t.Helper()
	tmp := t.TempDir()
	lines := append([]string{
		"version: 1",
		"general:",
		fmt.Sprintf("  data_root: %q", filepath.Join(tmp, "data")),
	}, extra...)
	p := filepath.Join(tmp, "config.yml")
	if err := os.WriteFile(p, []byte(strings.Join(lines, "\n")+"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := config.Load(p)
	if err != nil {
		t.Fatalf("config load: %v", err)
	}
	return cfg, p
}

// TestDB creates an in-memory ledger closed at test cleanup.
func TestDB(t *testing.T) *state.DB {
	t.Helper()
	db, err := state.OpenMemory()
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Errorf("failed to close test database: %v", err)
		}
	})
	return db
}
