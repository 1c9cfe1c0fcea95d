package manifest

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"filehasher/internal/digest"
	"filehasher/internal/report"
)

const abcSHA256 = "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"

func writeManifest(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "files.yaml")
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestLoad(t *testing.T) {
	p := writeManifest(t, `version: 1
files:
  - path: data/abc.txt
    digests:
      SHA-256: `+strings.ToUpper(abcSHA256)+`
      md5: 900150983cd24fb0d6963f7d28e17f72
`)
	f, err := Load(p)
	if err != nil {
		t.Fatal(err)
	}
	e := f.Entries[0]
	if got := e.Algorithms(); len(got) != 2 || got[0] != digest.MD5 || got[1] != digest.SHA256 {
		t.Fatalf("algorithms %v", got)
	}
	if e.Expected(digest.SHA256) != abcSHA256 {
		t.Fatalf("expected digest not normalized: %q", e.Expected(digest.SHA256))
	}
	if e.Resolve(p) != filepath.Join(filepath.Dir(p), "data", "abc.txt") {
		t.Fatalf("resolve %s", e.Resolve(p))
	}
}

func TestLoadRejects(t *testing.T) {
	cases := map[string]string{
		"version":  "version: 2\nfiles:\n  - path: a\n    digests: {md5: 900150983cd24fb0d6963f7d28e17f72}\n",
		"no files": "version: 1\n",
		"no path":  "version: 1\nfiles:\n  - digests: {md5: 900150983cd24fb0d6963f7d28e17f72}\n",
		"no sums":  "version: 1\nfiles:\n  - path: a\n",
		"bad alg":  "version: 1\nfiles:\n  - path: a\n    digests: {crc32: abcd}\n",
		"bad len":  "version: 1\nfiles:\n  - path: a\n    digests: {md5: abcd}\n",
	}
	for name, body := range cases {
		if _, err := Load(writeManifest(t, body)); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}

func TestFromResultsRoundTrip(t *testing.T) {
	dir := t.TempDir()
	r, err := report.New("abc.txt", 3, "text/plain", time.Now(), time.Millisecond,
		map[digest.Algorithm]string{digest.SHA256: abcSHA256}, nil)
	if err != nil {
		t.Fatal(err)
	}
	r.Path = filepath.Join(dir, "sub", "abc.txt")
	text, _ := report.New("text", 3, "text/plain", time.Now(), 0, map[digest.Algorithm]string{digest.SHA256: abcSHA256}, nil)

	m := FromResults(dir, []*report.HashResult{r, text})
	if len(m.Entries) != 1 || m.Entries[0].Path != "sub/abc.txt" || m.Entries[0].Size != 3 {
		t.Fatalf("entries %+v", m.Entries)
	}
	p := filepath.Join(dir, "files.yaml")
	if err := m.Write(p); err != nil {
		t.Fatal(err)
	}
	back, err := Load(p)
	if err != nil {
		t.Fatal(err)
	}
	if back.Entries[0].Expected(digest.SHA256) != abcSHA256 {
		t.Fatalf("round trip %+v", back.Entries[0])
	}
}
