package source

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"
)

// Source is a finite, random-access byte input. ReadAt follows the
// io.ReaderAt contract; implementations must be safe for concurrent ReadAt
// calls so several digests can share one input.
type Source interface {
	io.ReaderAt
	Size() int64
}

// Named is implemented by sources that know a display name for reports.
type Named interface {
	Name() string
}

// File is a Source backed by an open regular file. The size is captured at
// open time so a file growing underneath a running hash does not move the
// end of input.
type File struct {
	f     *os.File
	path  string
	size  int64
	mtime time.Time
}

// Open opens path for hashing. Directories and non-regular files are
// rejected.
func Open(path string) (*File, error) {
	if path == "" {
		return nil, errors.New("path required")
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	fi, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	if !fi.Mode().IsRegular() {
		_ = f.Close()
		return nil, fmt.Errorf("%s: not a regular file", path)
	}
	return &File{f: f, path: path, size: fi.Size(), mtime: fi.ModTime()}, nil
}

func (s *File) ReadAt(p []byte, off int64) (int, error) { return s.f.ReadAt(p, off) }
func (s *File) Size() int64                              { return s.size }
func (s *File) Name() string                             { return s.path }
func (s *File) ModTime() time.Time                       { return s.mtime }
func (s *File) Close() error                             { return s.f.Close() }

// Bytes is an in-memory Source, used for text input and tests.
type Bytes struct {
	name string
	b    []byte
}

// FromBytes wraps b without copying; callers must not modify b while it is
// being hashed.
func FromBytes(name string, b []byte) *Bytes { return &Bytes{name: name, b: b} }

// FromText wraps the UTF-8 bytes of s.
func FromText(s string) *Bytes { return &Bytes{name: "text", b: []byte(s)} }

func (s *Bytes) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 {
		return 0, errors.New("negative offset")
	}
	if off >= int64(len(s.b)) {
		if len(p) == 0 {
			return 0, nil
		}
		return 0, io.EOF
	}
	n := copy(p, s.b[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func (s *Bytes) Size() int64  { return int64(len(s.b)) }
func (s *Bytes) Name() string { return s.name }

// ReadRange reads exactly length bytes at offset into buf (which must hold
// at least length bytes) and returns the filled slice. A short read is an
// error even when the underlying reader reports io.EOF.
func ReadRange(src Source, buf []byte, offset int64, length int) ([]byte, error) {
	if length > len(buf) {
		return nil, fmt.Errorf("buffer too small: %d < %d", len(buf), length)
	}
	p := buf[:length]
	n, err := src.ReadAt(p, offset)
	if n == length {
		return p, nil
	}
	if err == nil || errors.Is(err, io.EOF) {
		err = io.ErrUnexpectedEOF
	}
	return nil, err
}
