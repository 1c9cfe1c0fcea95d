package scanner

import (
	"os"
	"path/filepath"
	"testing"

	"filehasher/internal/testutil"
)

// createTestFile creates a file with given name in the directory
func createTestFile(t *testing.T, dir, filename string, data string) string {
	t.Helper()
	path := filepath.Join(dir, filename)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("Failed to create directory: %v", err)
	}
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("Failed to create file %s: %v", path, err)
	}
	return path
}

func TestExpandWalksDirectories(t *testing.T) {
	dir := t.TempDir()
	b := createTestFile(t, dir, "b.iso", "b")
	a := createTestFile(t, dir, "sub/a.iso", "a")
	createTestFile(t, dir, "notes.txt", "n")
	createTestFile(t, dir, ".cache/c.iso", "c")
	createTestFile(t, dir, ".hidden.iso", "h")
	loose := createTestFile(t, t.TempDir(), "loose.txt", "l")

	res, err := New(Options{Extensions: []string{"ISO"}}).Expand([]string{dir, loose})
	if err != nil {
		t.Fatal(err)
	}
	want := []string{b, a, loose}
	if len(res.Files) != len(want) {
		t.Fatalf("files %v", res.Files)
	}
	for i := range want {
		if res.Files[i] != want[i] {
			t.Fatalf("files[%d]=%s want %s", i, res.Files[i], want[i])
		}
	}

	res, err = New(Options{IncludeHidden: true}).Expand([]string{dir})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Files) != 5 {
		t.Fatalf("with hidden: %v", res.Files)
	}
}

func TestExpandMissingPath(t *testing.T) {
	if _, err := New(Options{}).Expand([]string{filepath.Join(t.TempDir(), "nope")}); err == nil {
		t.Fatal("expected error")
	}
}

func TestSkipsUnchangedLedgerEntries(t *testing.T) {
	db := testutil.TestDB(t)
	dir := t.TempDir()
	same := createTestFile(t, dir, "same.bin", "same")
	changed := createTestFile(t, dir, "changed.bin", "old")
	partial := createTestFile(t, dir, "partial.bin", "p")
	for _, p := range []string{same, changed, partial} {
		fi, _ := os.Stat(p)
		sums := map[string]string{"md5": "00", "sha256": "11"}
		if p == partial {
			delete(sums, "sha256")
		}
		if err := db.RecordDigests(p, fi.Size(), fi.ModTime().Unix(), sums); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.WriteFile(changed, []byte("new content"), 0o644); err != nil {
		t.Fatal(err)
	}

	res, err := New(Options{Ledger: db, Algorithms: []string{"md5", "sha256"}}).Expand([]string{dir})
	if err != nil {
		t.Fatal(err)
	}
	if res.Skipped != 1 || len(res.Files) != 2 || res.FilesScanned != 3 {
		t.Fatalf("result %+v", res)
	}
	for _, f := range res.Files {
		if f == same {
			t.Fatal("unchanged file should be skipped")
		}
	}
}
