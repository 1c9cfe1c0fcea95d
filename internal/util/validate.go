package util

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"
)

// Limits bounds which inputs are accepted for hashing. Zero sizes and an
// empty AllowedTypes disable the corresponding check.
type Limits struct {
	MinSize          int64
	MaxSize          int64
	RejectSuspicious bool
	// AllowedTypes holds MIME types ("image/png"), wildcards ("image/*")
	// or TypeGroups names ("images").
	AllowedTypes []string
}

// Candidate is an input about to be hashed.
type Candidate struct {
	Name string
	Size int64
	// Type is the declared MIME type, derived from the extension when it
	// maps to one and from the content otherwise.
	Type string
	// Content is the type sniffed from the leading bytes only. Empty skips
	// the extension check.
	Content string
}

// ValidationResult collects every problem found with an input rather than
// stopping at the first one. Warnings never make a result invalid.
type ValidationResult struct {
	Name     string
	Errors   []string
	Warnings []string
}

func (r ValidationResult) Valid() bool { return len(r.Errors) == 0 }

// Err joins the problems into one error, or returns nil when valid.
func (r ValidationResult) Err() error {
	if r.Valid() {
		return nil
	}
	return errors.New(r.Name + ": " + strings.Join(r.Errors, "; "))
}

// TypeGroups names common sets of MIME types for validation.allowed_types.
var TypeGroups = map[string][]string{
	"images":    {"image/jpeg", "image/png", "image/gif", "image/webp", "image/svg+xml"},
	"documents": {"application/pdf", "text/plain", "application/msword"},
	"archives":  {"application/zip", "application/x-rar-compressed", "application/x-tar"},
	"videos":    {"video/mp4", "video/avi", "video/mov", "video/webm"},
	"audio":     {"audio/mp3", "audio/mpeg", "audio/wav", "audio/flac", "audio/ogg"},
}

// extensionTypes lists the content types expected for well-known extensions.
var extensionTypes = map[string][]string{
	"jpg":  {"image/jpeg"},
	"jpeg": {"image/jpeg"},
	"png":  {"image/png"},
	"gif":  {"image/gif"},
	"pdf":  {"application/pdf"},
	"txt":  {"text/plain"},
	"zip":  {"application/zip"},
	"mp4":  {"video/mp4"},
	"mp3":  {"audio/mpeg", "audio/mp3"},
}

// ValidateFile checks c against lim.
func ValidateFile(c Candidate, lim Limits) ValidationResult {
	res := ValidationResult{Name: c.Name}
	if lim.MinSize > 0 && c.Size < lim.MinSize {
		res.Errors = append(res.Errors, "file is too small (minimum: "+humanize.IBytes(uint64(lim.MinSize))+")")
	}
	if lim.MaxSize > 0 && c.Size > lim.MaxSize {
		res.Errors = append(res.Errors, "file is too large (maximum: "+humanize.IBytes(uint64(lim.MaxSize))+")")
	}
	if len(lim.AllowedTypes) > 0 && !TypeAllowed(c.Type, lim.AllowedTypes) {
		res.Errors = append(res.Errors, fmt.Sprintf("file type %q is not allowed (allowed: %s)", c.Type, strings.Join(lim.AllowedTypes, ", ")))
	}
	if strings.TrimSpace(c.Name) == "" {
		res.Errors = append(res.Errors, "file name cannot be empty")
	} else if lim.RejectSuspicious && SuspiciousName(c.Name) {
		res.Errors = append(res.Errors, "file name contains invalid characters")
	}
	if c.Size == 0 && lim.MinSize > 0 {
		res.Errors = append(res.Errors, "file is empty (0 bytes)")
	}
	if want, ok := ExtensionMismatch(c.Name, c.Content); !ok {
		res.Warnings = append(res.Warnings, fmt.Sprintf("extension .%s suggests %s but content looks like %s", Extension(c.Name), strings.Join(want, " or "), c.Content))
	}
	return res
}

// TypeAllowed reports whether mimeType matches an entry of allowed. Entries
// may be exact types, "major/*" wildcards or TypeGroups names.
func TypeAllowed(mimeType string, allowed []string) bool {
	t := baseType(mimeType)
	for _, a := range allowed {
		a = strings.ToLower(strings.TrimSpace(a))
		if group, ok := TypeGroups[a]; ok {
			for _, g := range group {
				if g == t {
					return true
				}
			}
			continue
		}
		if major, ok := strings.CutSuffix(a, "/*"); ok {
			if strings.HasPrefix(t, major+"/") {
				return true
			}
			continue
		}
		if baseType(a) == t {
			return true
		}
	}
	return false
}

// ValidTypePattern reports whether s can be used in AllowedTypes.
func ValidTypePattern(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	if _, ok := TypeGroups[s]; ok {
		return true
	}
	major, minor, ok := strings.Cut(s, "/")
	return ok && major != "" && minor != "" && !strings.Contains(minor, "/")
}

// GroupNames returns the TypeGroups keys in order.
func GroupNames() []string {
	out := make([]string, 0, len(TypeGroups))
	for k := range TypeGroups {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// ExtensionMismatch compares the extension of name with the sniffed content
// type. It returns false and the expected types when a known extension
// disagrees with the content; unknown extensions and empty content pass.
func ExtensionMismatch(name, content string) ([]string, bool) {
	if content == "" {
		return nil, true
	}
	want, ok := extensionTypes[Extension(name)]
	if !ok {
		return nil, true
	}
	t := baseType(content)
	for _, w := range want {
		if w == t {
			return want, true
		}
	}
	return want, false
}

func baseType(t string) string {
	if i := strings.IndexByte(t, ';'); i >= 0 {
		t = t[:i]
	}
	return strings.ToLower(strings.TrimSpace(t))
}

// SuspiciousName reports names containing a parent reference or a path
// separator of either platform.
func SuspiciousName(name string) bool {
	return strings.Contains(name, "..") || strings.ContainsAny(name, `/\`)
}

// Extension returns the lowercased extension of name without its dot.
func Extension(name string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
}
