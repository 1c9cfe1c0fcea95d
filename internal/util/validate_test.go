package util

import (
	"strings"
	"testing"
)

func TestValidateFile(t *testing.T) {
	lim := Limits{MinSize: 1, MaxSize: 1024, RejectSuspicious: true}
	cases := []struct {
		name  string
		size  int64
		wants []string
	}{
		{"ok.bin", 10, nil},
		{"big.iso", 2048, []string{"too large (maximum: 1.0 KiB)"}},
		{"empty.txt", 0, []string{"too small", "empty (0 bytes)"}},
		{"../etc", 5, []string{"invalid characters"}},
		{"a\\b", 5, []string{"invalid characters"}},
		{"   ", 5, []string{"cannot be empty"}},
	}
	for _, c := range cases {
		res := ValidateFile(Candidate{Name: c.name, Size: c.size}, lim)
		if len(c.wants) == 0 {
			if !res.Valid() || res.Err() != nil {
				t.Fatalf("%q: unexpected errors %v", c.name, res.Errors)
			}
			continue
		}
		msg := res.Err().Error()
		for _, w := range c.wants {
			if !strings.Contains(msg, w) {
				t.Fatalf("%q: %q missing %q", c.name, msg, w)
			}
		}
	}
}

func TestZeroLimitsAcceptEverything(t *testing.T) {
	if res := ValidateFile(Candidate{Name: ".."}, Limits{}); !res.Valid() {
		t.Fatalf("got %v", res.Errors)
	}
}

func TestExtension(t *testing.T) {
	for in, want := range map[string]string{"a.TXT": "txt", "noext": "", "x.tar.gz": "gz"} {
		if got := Extension(in); got != want {
			t.Fatalf("Extension(%q)=%q want %q", in, got, want)
		}
	}
}

func TestAllowedTypes(t *testing.T) {
	cases := []struct {
		typ     string
		allowed []string
		ok      bool
	}{
		{"image/png", []string{"images"}, true},
		{"image/tiff", []string{"images"}, false},
		{"text/plain; charset=utf-8", []string{"text/plain"}, true},
		{"IMAGE/TIFF", []string{"image/*"}, true},
		{"application/zip", []string{"documents", "archives"}, true},
		{"application/octet-stream", []string{"documents", "image/*"}, false},
	}
	for _, c := range cases {
		if got := TypeAllowed(c.typ, c.allowed); got != c.ok {
			t.Fatalf("TypeAllowed(%q, %v)=%v want %v", c.typ, c.allowed, got, c.ok)
		}
	}

	lim := Limits{AllowedTypes: []string{"images"}}
	res := ValidateFile(Candidate{Name: "notes.txt", Size: 3, Type: "text/plain"}, lim)
	if res.Valid() || !strings.Contains(res.Err().Error(), `file type "text/plain" is not allowed (allowed: images)`) {
		t.Fatalf("got %v", res.Errors)
	}
	if res := ValidateFile(Candidate{Name: "a.png", Size: 3, Type: "image/png"}, lim); !res.Valid() {
		t.Fatalf("got %v", res.Errors)
	}
}

func TestValidTypePattern(t *testing.T) {
	for s, want := range map[string]bool{"images": true, "image/*": true, "text/plain": true, "text": false, "/x": false, "a/b/c": false} {
		if got := ValidTypePattern(s); got != want {
			t.Fatalf("ValidTypePattern(%q)=%v want %v", s, got, want)
		}
	}
}

func TestExtensionMismatchWarns(t *testing.T) {
	res := ValidateFile(Candidate{Name: "photo.jpg", Size: 10, Type: "image/jpeg", Content: "application/pdf"}, Limits{})
	if !res.Valid() {
		t.Fatalf("mismatch must not fail validation: %v", res.Errors)
	}
	if len(res.Warnings) != 1 || !strings.Contains(res.Warnings[0], "extension .jpg suggests image/jpeg but content looks like application/pdf") {
		t.Fatalf("warnings %v", res.Warnings)
	}

	for _, c := range []Candidate{
		{Name: "song.mp3", Content: "audio/mpeg"},
		{Name: "readme.txt", Content: "text/plain; charset=utf-8"},
		{Name: "blob.xyz", Content: "application/pdf"},
		{Name: "photo.jpg"},
	} {
		if res := ValidateFile(c, Limits{}); len(res.Warnings) != 0 {
			t.Fatalf("%s: unexpected warnings %v", c.Name, res.Warnings)
		}
	}
}
