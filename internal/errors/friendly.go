package errors

import (
	stderrors "errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/dustin/go-humanize"

	"filehasher/internal/digest"
)

// UserFriendlyError provides actionable error messages for end users
type UserFriendlyError struct {
	Message    string // User-facing message explaining what went wrong
	Suggestion string // Actionable steps to fix the issue
	Details    error  // Original error for debugging/logs
}

func (e *UserFriendlyError) Error() string {
	var sb strings.Builder
	sb.WriteString(e.Message)

	if e.Suggestion != "" {
		sb.WriteString("\n\n")
		sb.WriteString("How to fix:\n")
		sb.WriteString(e.Suggestion)
	}

	return sb.String()
}

func (e *UserFriendlyError) Unwrap() error {
	return e.Details
}

// NewFriendlyError creates a user-friendly error
func NewFriendlyError(message, suggestion string) *UserFriendlyError {
	return &UserFriendlyError{
		Message:    message,
		Suggestion: suggestion,
	}
}

// WithDetails adds the underlying error details
func (e *UserFriendlyError) WithDetails(err error) *UserFriendlyError {
	e.Details = err
	return e
}

// ReadFailure explains why an input could not be read.
func ReadFailure(path string, err error) *UserFriendlyError {
	msg := fmt.Sprintf("Could not read %s", path)
	suggestion := "Check that the file exists and is readable, then hash it again"

	var re *digest.ReadError
	if stderrors.As(err, &re) {
		msg = fmt.Sprintf("Read failed at byte %s of %s", humanize.Comma(re.Offset), path)
		suggestion = "The file may have been truncated or its storage is failing.\nRe-run the hash once the file is stable; no partial result is kept."
	}
	switch {
	case stderrors.Is(err, fs.ErrNotExist):
		msg = fmt.Sprintf("File not found: %s", path)
		suggestion = "Check the path for typos"
	case stderrors.Is(err, fs.ErrPermission):
		msg = fmt.Sprintf("Permission denied: %s", path)
		suggestion = fmt.Sprintf("Ensure you have read permission:\n  chmod u+r %s", path)
	}

	return &UserFriendlyError{
		Message:    msg,
		Suggestion: suggestion,
		Details:    err,
	}
}

// UnsupportedAlgorithm lists the names that would have been accepted.
func UnsupportedAlgorithm(name string) *UserFriendlyError {
	var keys []string
	for _, a := range digest.All() {
		keys = append(keys, a.Key())
	}
	return &UserFriendlyError{
		Message:    fmt.Sprintf("Unsupported algorithm: %q", name),
		Suggestion: "Use one of: " + strings.Join(keys, ", ") + "\nRun 'filehasher algorithms' for details",
		Details:    digest.ErrUnsupportedAlgorithm,
	}
}

// ConfigNotFound is returned when an explicitly requested config is missing.
func ConfigNotFound(path string) *UserFriendlyError {
	return &UserFriendlyError{
		Message:    fmt.Sprintf("Config file not found: %s", path),
		Suggestion: "Create it, point FILEHASHER_CONFIG at an existing file, or omit --config to use built-in defaults",
	}
}

// ChecksumMismatch reports a failed verification.
func ChecksumMismatch(path string, alg digest.Algorithm, want, got string) *UserFriendlyError {
	return &UserFriendlyError{
		Message:    fmt.Sprintf("%s mismatch for %s\n  expected: %s\n  actual:   %s", alg, path, strings.ToLower(want), got),
		Suggestion: "The file differs from the one the checksum was published for.\nRe-download it or confirm the expected value and algorithm.",
	}
}

// DatabaseError returns database-related errors with recovery suggestions
func DatabaseError(err error) *UserFriendlyError {
	msg := "Database error"
	suggestion := "Try running: filehasher doctor"

	if err != nil {
		errStr := err.Error()

		if strings.Contains(errStr, "locked") {
			msg = "Database is locked by another process"
			suggestion = "Wait for other filehasher runs to finish and try again"
		}

		if strings.Contains(errStr, "corrupt") || strings.Contains(errStr, "malformed") {
			msg = "Database is corrupted"
			suggestion = "Backup and recreate the ledger:\n" +
				"1. filehasher doctor --backup state.db.backup\n" +
				"2. remove state.db under general.data_root"
		}
	}

	return &UserFriendlyError{
		Message:    msg,
		Suggestion: suggestion,
		Details:    err,
	}
}

// Wrap converts known error shapes into friendly ones and passes others
// through unchanged.
func Wrap(path string, err error) error {
	if err == nil {
		return nil
	}
	var fe *UserFriendlyError
	if stderrors.As(err, &fe) {
		return err
	}
	if stderrors.Is(err, digest.ErrUnsupportedAlgorithm) {
		return (&UserFriendlyError{
			Message:    err.Error(),
			Suggestion: UnsupportedAlgorithm("").Suggestion,
		}).WithDetails(err)
	}
	if digest.IsReadError(err) || stderrors.Is(err, fs.ErrNotExist) || stderrors.Is(err, fs.ErrPermission) {
		return ReadFailure(path, err)
	}
	return err
}
