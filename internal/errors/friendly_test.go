package errors

import (
	stderrors "errors"
	"fmt"
	"io"
	"io/fs"
	"strings"
	"testing"

	"filehasher/internal/digest"
)

func TestWrapReadError(t *testing.T) {
	err := fmt.Errorf("hashing: %w", &digest.ReadError{Offset: 1048576, Length: 10, Err: io.ErrUnexpectedEOF})
	got := Wrap("/data/big.iso", err)
	var fe *UserFriendlyError
	if !stderrors.As(got, &fe) {
		t.Fatalf("expected friendly error, got %T", got)
	}
	if !strings.Contains(fe.Message, "1,048,576") {
		t.Fatalf("message %q", fe.Message)
	}
	if !stderrors.Is(got, io.ErrUnexpectedEOF) {
		t.Fatal("cause should stay reachable")
	}
}

func TestWrapNotExist(t *testing.T) {
	got := Wrap("missing.txt", fmt.Errorf("open: %w", fs.ErrNotExist))
	if !strings.HasPrefix(got.Error(), "File not found: missing.txt") {
		t.Fatalf("got %q", got.Error())
	}
}

func TestWrapUnsupported(t *testing.T) {
	_, perr := digest.Parse("crc32")
	got := Wrap("", perr)
	if !strings.Contains(got.Error(), "sha3-256") {
		t.Fatalf("suggestion should list algorithms: %q", got.Error())
	}
	if !stderrors.Is(got, digest.ErrUnsupportedAlgorithm) {
		t.Fatal("should unwrap to ErrUnsupportedAlgorithm")
	}
}

func TestWrapPassthrough(t *testing.T) {
	base := stderrors.New("boom")
	if Wrap("x", base) != base {
		t.Fatal("unknown errors should pass through")
	}
	if Wrap("x", nil) != nil {
		t.Fatal("nil should stay nil")
	}
}

func TestChecksumMismatchMessage(t *testing.T) {
	e := ChecksumMismatch("f.bin", digest.SHA256, "ABC", "def")
	s := e.Error()
	if !strings.Contains(s, "SHA-256 mismatch for f.bin") || !strings.Contains(s, "expected: abc") {
		t.Fatalf("got %q", s)
	}
}
