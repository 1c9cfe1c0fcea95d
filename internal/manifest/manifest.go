// Package manifest reads and writes YAML files listing expected digests
// for a set of files.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"filehasher/internal/digest"
	"filehasher/internal/report"
)

const Version = 1

type File struct {
	Version int     `yaml:"version"`
	Entries []Entry `yaml:"files"`
}

// Entry maps algorithm keys to lowercase hex for one path. Relative paths
// resolve against the manifest's directory.
type Entry struct {
	Path    string            `yaml:"path"`
	Size    int64             `yaml:"size,omitempty"`
	Digests map[string]string `yaml:"digests"`
}

// Algorithms returns the entry's algorithms in canonical order.
func (e Entry) Algorithms() []digest.Algorithm {
	var out []digest.Algorithm
	for k := range e.Digests {
		if a, err := digest.Parse(k); err == nil {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Expected returns the recorded digest for alg.
func (e Entry) Expected(alg digest.Algorithm) string {
	for k, v := range e.Digests {
		if a, err := digest.Parse(k); err == nil && a == alg {
			return v
		}
	}
	return ""
}

// Resolve returns the entry's path relative to the manifest at manifestPath.
func (e Entry) Resolve(manifestPath string) string {
	if filepath.IsAbs(e.Path) {
		return e.Path
	}
	return filepath.Join(filepath.Dir(manifestPath), e.Path)
}

func Load(path string) (*File, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var f File
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

func (f *File) Validate() error {
	if f.Version != Version {
		return fmt.Errorf("unsupported manifest version: %d", f.Version)
	}
	if len(f.Entries) == 0 {
		return fmt.Errorf("manifest has no files")
	}
	for i, e := range f.Entries {
		if strings.TrimSpace(e.Path) == "" {
			return fmt.Errorf("files[%d]: path is required", i)
		}
		if len(e.Digests) == 0 {
			return fmt.Errorf("files[%d] (%s): no digests", i, e.Path)
		}
		for k, v := range e.Digests {
			a, err := digest.Parse(k)
			if err != nil {
				return fmt.Errorf("files[%d] (%s): %w", i, e.Path, err)
			}
			v = strings.ToLower(strings.TrimSpace(v))
			if len(v) != a.HexLen() {
				return fmt.Errorf("files[%d] (%s): %s digest must be %d hex characters, got %d", i, e.Path, a, a.HexLen(), len(v))
			}
			f.Entries[i].Digests[k] = v
		}
	}
	return nil
}

// FromResults builds a manifest from hash results. Paths are written
// relative to dir when they live below it.
func FromResults(dir string, results []*report.HashResult) *File {
	f := &File{Version: Version}
	for _, r := range results {
		if r.Path == "" || len(r.Hashes) == 0 {
			continue
		}
		p := r.Path
		if dir != "" {
			if rel, err := filepath.Rel(dir, p); err == nil && !strings.HasPrefix(rel, "..") {
				p = rel
			}
		}
		f.Entries = append(f.Entries, Entry{Path: filepath.ToSlash(p), Size: r.Size, Digests: r.Sums()})
	}
	return f
}

// Write stores f at path through a temp file and rename.
func (f *File) Write(path string) error {
	b, err := yaml.Marshal(f)
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return nil
}
