package report

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/multiformats/go-multihash"

	"filehasher/internal/digest"
)

const abcSHA256 = "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"
const abcMD5 = "900150983cd24fb0d6963f7d28e17f72"

func sample(t *testing.T) *HashResult {
	t.Helper()
	r, err := New("abc.txt", 3, "text/plain", time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC), 1500*time.Millisecond,
		map[digest.Algorithm]string{digest.SHA256: abcSHA256, digest.MD5: abcMD5},
		map[digest.Algorithm]error{digest.SHA1: errors.New("read failed")})
	if err != nil {
		t.Fatal(err)
	}
	return r
}

func TestNewOrdersAndDerives(t *testing.T) {
	r := sample(t)
	if len(r.Hashes) != 2 || r.Hashes[0].Algorithm != digest.MD5 || r.Hashes[1].Algorithm != digest.SHA256 {
		t.Fatalf("hashes %+v", r.Hashes)
	}
	e := r.Hashes[1]
	if !strings.HasPrefix(e.Multihash, "Qm") {
		t.Fatalf("sha256 multihash %q", e.Multihash)
	}
	if !strings.HasPrefix(e.CID, "bafkrei") {
		t.Fatalf("sha256 raw cid %q", e.CID)
	}
	if got, ok := r.Lookup(digest.MD5); !ok || got != abcMD5 {
		t.Fatalf("lookup %q %v", got, ok)
	}
	if r.Failed["sha1"] != "read failed" {
		t.Fatalf("failed %v", r.Failed)
	}
	if s := r.Sums(); s["sha256"] != abcSHA256 || len(s) != 2 {
		t.Fatalf("sums %v", s)
	}
}

func TestSHA384EntryDerivesCID(t *testing.T) {
	const abcSHA384 = "cb00753f45a35e8bb5a03d699ac65007272c32ab0eded1631a8b605a43ff5bed8086072ba1e7cc2358baeca134c825a7"
	e, err := NewEntry(digest.SHA384, abcSHA384)
	if err != nil {
		t.Fatal(err)
	}
	mh, err := multihash.FromB58String(e.Multihash)
	if err != nil {
		t.Fatalf("multihash %q: %v", e.Multihash, err)
	}
	dm, err := multihash.Decode(mh)
	if err != nil || dm.Code != 0x20 || dm.Length != 48 {
		t.Fatalf("decoded %+v %v", dm, err)
	}
	if !strings.HasPrefix(e.CID, "bafk") {
		t.Fatalf("sha384 raw cid %q", e.CID)
	}
	for _, a := range digest.All() {
		if _, ok := mhCodes[a]; !ok {
			t.Errorf("%s has no multihash code", a)
		}
	}
}

func TestNewEntryRejectsBadHex(t *testing.T) {
	if _, err := NewEntry(digest.MD5, "zz"); err == nil {
		t.Fatal("expected error")
	}
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteJSON(&buf, []*HashResult{sample(t)}); err != nil {
		t.Fatal(err)
	}
	var out []struct {
		Name   string `json:"name"`
		Hashes []struct {
			Algorithm string `json:"algorithm"`
			Hex       string `json:"hex"`
		} `json:"hashes"`
	}
	if err := json.Unmarshal(buf.Bytes(), &out); err != nil {
		t.Fatalf("%v\n%s", err, buf.String())
	}
	if len(out) != 1 || out[0].Name != "abc.txt" || out[0].Hashes[1].Algorithm != "sha256" {
		t.Fatalf("decoded %+v", out)
	}
}

func TestWriteTableAndLines(t *testing.T) {
	var tbl bytes.Buffer
	if err := WriteTable(&tbl, []*HashResult{sample(t)}); err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"Text File (text/plain)", "SHA-256:", abcSHA256, "1.5s", "sha1:", "FAILED"} {
		if !strings.Contains(tbl.String(), want) {
			t.Fatalf("table missing %q:\n%s", want, tbl.String())
		}
	}
	var lines bytes.Buffer
	if err := WriteLines(&lines, []*HashResult{sample(t)}); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(lines.String(), "sha256 "+abcSHA256+"  abc.txt\n") {
		t.Fatalf("lines %q", lines.String())
	}
	single, _ := New("abc.txt", 3, "", time.Now(), 0, map[digest.Algorithm]string{digest.SHA256: abcSHA256}, nil)
	lines.Reset()
	_ = WriteLines(&lines, []*HashResult{single})
	if lines.String() != abcSHA256+"  abc.txt\n" {
		t.Fatalf("single line %q", lines.String())
	}
}

func TestFormatDuration(t *testing.T) {
	cases := map[time.Duration]string{
		340 * time.Millisecond:        "340ms",
		12500 * time.Millisecond:      "12.5s",
		3*time.Minute + 4*time.Second: "3m 4s",
		2*time.Hour + 5*time.Minute:   "2h 5m",
		-time.Second:                  "0s",
	}
	for d, want := range cases {
		if got := FormatDuration(d); got != want {
			t.Errorf("FormatDuration(%v)=%q want %q", d, got, want)
		}
	}
}

func TestFormatters(t *testing.T) {
	if FormatBytes(0) != "0 B" || FormatBytes(1536) != "1.5 KiB" {
		t.Fatalf("bytes %q %q", FormatBytes(0), FormatBytes(1536))
	}
	if FormatSpeed(0) != "-" || FormatSpeed(2048) != "2.0 KiB/s" {
		t.Fatalf("speed %q", FormatSpeed(2048))
	}
	if FormatPercent(12.345) != "12.3%" {
		t.Fatal(FormatPercent(12.345))
	}
	if Bar(50, 10) != "[=====>    ]" || Bar(100, 4) != "[====]" {
		t.Fatalf("bar %q %q", Bar(50, 10), Bar(100, 4))
	}
	if Short(abcSHA256, 8) != "ba7816bf…" {
		t.Fatal(Short(abcSHA256, 8))
	}
}

func TestDetectType(t *testing.T) {
	if got := DetectType("x.json", nil); got != "application/json" {
		t.Fatalf("json %q", got)
	}
	if got := DetectType("noext", []byte("\x89PNG\r\n\x1a\n0000")); got != "image/png" {
		t.Fatalf("png %q", got)
	}
	if got := DetectType("noext", nil); got != "application/octet-stream" {
		t.Fatalf("empty %q", got)
	}
	if got := SniffType([]byte("%PDF-1.7\n")); got != "application/pdf" {
		t.Fatalf("sniff pdf %q", got)
	}
	if got := SniffType([]byte{0x00, 0x01, 0xfe, 0xff, 0x10}); got != "" {
		t.Fatalf("sniff binary %q", got)
	}
	if TypeLabel("application/x-tar") != "X-TAR" || TypeLabel("") != "Unknown" {
		t.Fatal(TypeLabel("application/x-tar"))
	}
}

func TestParseChecksumLine(t *testing.T) {
	cases := []struct {
		in   string
		alg  digest.Algorithm
		name string
	}{
		{abcSHA256 + "  abc.txt", 0, "abc.txt"},
		{abcSHA256 + " *abc.txt", 0, "abc.txt"},
		{"sha256 " + abcSHA256 + "  abc.txt", digest.SHA256, "abc.txt"},
		{"SHA256 (my file.txt) = " + strings.ToUpper(abcSHA256), digest.SHA256, "my file.txt"},
		{abcMD5, 0, ""},
	}
	for _, c := range cases {
		l, err := ParseChecksumLine(c.in)
		if err != nil {
			t.Fatalf("%q: %v", c.in, err)
		}
		if l.Algorithm != c.alg || l.Name != c.name {
			t.Fatalf("%q: got %+v", c.in, l)
		}
		if l.Hex != abcSHA256 && l.Hex != abcMD5 {
			t.Fatalf("%q: hex %q", c.in, l.Hex)
		}
	}
	l, _ := ParseChecksumLine(abcSHA256 + "  x")
	if c := l.Candidates(); len(c) != 3 || c[0] != digest.SHA256 {
		t.Fatalf("candidates %v", c)
	}
	for _, bad := range []string{"", "xyz  file", "md5 " + abcSHA256 + "  f", "abcd  f"} {
		if _, err := ParseChecksumLine(bad); err == nil {
			t.Fatalf("%q should fail", bad)
		}
	}
}

func TestParseChecksums(t *testing.T) {
	in := "# published sums\n\n" + abcMD5 + "  a\n" + abcSHA256 + "  b\n"
	ls, err := ParseChecksums(strings.NewReader(in))
	if err != nil || len(ls) != 2 || ls[1].Name != "b" {
		t.Fatalf("%v %+v", err, ls)
	}
	if _, err := ParseChecksums(strings.NewReader("nothex  a\n")); err == nil || !strings.Contains(err.Error(), "line 1") {
		t.Fatalf("err %v", err)
	}
}

func TestSidecarRoundTrip(t *testing.T) {
	p := filepath.Join(t.TempDir(), "abc.txt")
	if err := os.WriteFile(p, []byte("abc"), 0o644); err != nil {
		t.Fatal(err)
	}
	dest, err := WriteSidecar(p, digest.SHA256, abcSHA256)
	if err != nil {
		t.Fatal(err)
	}
	if dest != p+".sha256" {
		t.Fatalf("dest %s", dest)
	}
	b, _ := os.ReadFile(dest)
	if string(b) != abcSHA256+"  abc.txt\n" {
		t.Fatalf("content %q", b)
	}
	got, err := ReadSidecar(p, digest.SHA256)
	if err != nil || got != abcSHA256 {
		t.Fatalf("read %q %v", got, err)
	}
	if _, err := ReadSidecar(p, digest.MD5); err == nil {
		t.Fatal("missing sidecar should error")
	}
}
