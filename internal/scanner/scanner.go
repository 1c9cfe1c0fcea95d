// Package scanner expands directory arguments into the regular files to
// hash, optionally skipping files the ledger already covers unchanged.
package scanner

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"filehasher/internal/state"
)

// Options controls which files a scan yields.
type Options struct {
	// Extensions limits results to these extensions (".iso" or "iso");
	// empty accepts every file.
	Extensions []string
	// IncludeHidden also descends into dot directories and yields dot files.
	IncludeHidden bool
	// Ledger, when set with Algorithms, skips files whose recorded size and
	// mtime still match and that have a digest for every algorithm.
	Ledger     *state.DB
	Algorithms []string
}

// Result contains information about a scan operation
type Result struct {
	Files        []string
	FilesScanned int
	Skipped      int
	Errors       []error
}

type Scanner struct {
	opts Options
	exts map[string]bool
}

func New(opts Options) *Scanner {
	s := &Scanner{opts: opts}
	if len(opts.Extensions) > 0 {
		s.exts = map[string]bool{}
		for _, e := range opts.Extensions {
			e = strings.ToLower(strings.TrimSpace(e))
			if e == "" {
				continue
			}
			if !strings.HasPrefix(e, ".") {
				e = "." + e
			}
			s.exts[e] = true
		}
	}
	return s
}

// Expand returns paths with every directory replaced by the matching files
// below it, in lexical order. Plain file arguments pass through unfiltered.
func (s *Scanner) Expand(paths []string) (*Result, error) {
	res := &Result{}
	for _, p := range paths {
		fi, err := os.Stat(p)
		if err != nil {
			return nil, err
		}
		if !fi.IsDir() {
			res.FilesScanned++
			s.consider(p, fi, res)
			continue
		}
		if err := s.walk(p, res); err != nil {
			res.Errors = append(res.Errors, fmt.Errorf("walking %s: %w", p, err))
		}
	}
	return res, nil
}

func (s *Scanner) walk(root string, res *Result) error {
	var found []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// Skip directories we can't access due to permissions
			if os.IsPermission(err) {
				res.Errors = append(res.Errors, err)
				return filepath.SkipDir
			}
			return err
		}
		hidden := path != root && strings.HasPrefix(d.Name(), ".")
		if d.IsDir() {
			if hidden && !s.opts.IncludeHidden {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() || (hidden && !s.opts.IncludeHidden) || !s.wanted(path) {
			return nil
		}
		found = append(found, path)
		return nil
	})
	sort.Strings(found)
	for _, p := range found {
		res.FilesScanned++
		fi, serr := os.Stat(p)
		if serr != nil {
			res.Errors = append(res.Errors, serr)
			continue
		}
		s.consider(p, fi, res)
	}
	return err
}

func (s *Scanner) wanted(path string) bool {
	if s.exts == nil {
		return true
	}
	return s.exts[strings.ToLower(filepath.Ext(path))]
}

func (s *Scanner) consider(path string, fi os.FileInfo, res *Result) {
	if s.unchanged(path, fi) {
		res.Skipped++
		return
	}
	res.Files = append(res.Files, path)
}

// unchanged reports whether the ledger already holds current digests of
// path for every requested algorithm.
func (s *Scanner) unchanged(path string, fi os.FileInfo) bool {
	if s.opts.Ledger == nil || len(s.opts.Algorithms) == 0 {
		return false
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	rows, err := s.opts.Ledger.ListForPath(abs)
	if err != nil {
		return false
	}
	have := map[string]bool{}
	for _, r := range rows {
		if r.Size == fi.Size() && r.ModTime == fi.ModTime().Unix() && (r.Status == state.StatusComplete || r.Status == state.StatusVerified) {
			have[r.Algorithm] = true
		}
	}
	for _, a := range s.opts.Algorithms {
		if !have[a] {
			return false
		}
	}
	return true
}
