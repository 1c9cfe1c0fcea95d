package digest

import (
	"errors"
	"fmt"
)

// ErrUnsupportedAlgorithm is returned (wrapped) for names or values outside
// the supported set.
var ErrUnsupportedAlgorithm = errors.New("unsupported algorithm")

// ReadError reports that part of the input could not be read.
type ReadError struct {
	Offset int64
	Length int
	Err    error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("read %d bytes at offset %d: %v", e.Length, e.Offset, e.Err)
}

func (e *ReadError) Unwrap() error { return e.Err }

// Failure reports that the hash primitive rejected its input.
type Failure struct {
	Algorithm Algorithm
	Err       error
}

func (e *Failure) Error() string {
	return fmt.Sprintf("%s digest failed: %v", e.Algorithm, e.Err)
}

func (e *Failure) Unwrap() error { return e.Err }

// IsReadError reports whether err carries a *ReadError.
func IsReadError(err error) bool {
	var re *ReadError
	return errors.As(err, &re)
}
