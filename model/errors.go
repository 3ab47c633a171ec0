package model

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrOutOfBounds is returned when an index exceeds the storage rows.
	ErrOutOfBounds = errors.New("index out of bounds")

	// ErrShapeMismatch is returned when vocabulary and storage disagree on the
	// row count, or when dimensions cannot be split into subspaces.
	ErrShapeMismatch = errors.New("shape mismatch")

	// ErrMalformedInput is returned for truncated files, header/body
	// inconsistencies, invalid UTF-8 and unknown mandatory chunks.
	ErrMalformedInput = errors.New("malformed input")

	// ErrUnsupportedConfiguration is returned for invalid n-gram ranges,
	// zero bucket counts and codebooks larger than the row count.
	ErrUnsupportedConfiguration = errors.New("unsupported configuration")

	// ErrLookupMiss is returned when a word has no embedding.
	ErrLookupMiss = errors.New("lookup miss")
)

// IndexError reports an out-of-range row access.
type IndexError struct {
	Index int
	Len   int
}

func (e *IndexError) Error() string {
	return fmt.Sprintf("index %d out of bounds for %d rows", e.Index, e.Len)
}

func (e *IndexError) Unwrap() error { return ErrOutOfBounds }

// ShapeError reports two shapes that were required to agree.
type ShapeError struct {
	What     string
	Expected int
	Actual   int
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("%s: expected %d, got %d", e.What, e.Expected, e.Actual)
}

func (e *ShapeError) Unwrap() error { return ErrShapeMismatch }

// LookupError reports words without an embedding.
type LookupError struct {
	Words []string
}

func (e *LookupError) Error() string {
	return fmt.Sprintf("no embedding for: %s", strings.Join(e.Words, ", "))
}

func (e *LookupError) Unwrap() error { return ErrLookupMiss }

// FormatError reports malformed serialized input.
//
// The underlying I/O error (if any) can be accessed via errors.Unwrap; the
// error also satisfies errors.Is(err, ErrMalformedInput).
type FormatError struct {
	Format string
	Msg    string
	cause  error
}

// NewFormatError creates a FormatError for the given format.
func NewFormatError(format, msg string, cause error) *FormatError {
	return &FormatError{Format: format, Msg: msg, cause: cause}
}

func (e *FormatError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Format, e.Msg, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Format, e.Msg)
}

// Is reports ErrMalformedInput for every FormatError.
func (e *FormatError) Is(target error) bool { return target == ErrMalformedInput }

func (e *FormatError) Unwrap() error { return e.cause }

// Unsupported wraps ErrUnsupportedConfiguration with a formatted message.
func Unsupported(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrUnsupportedConfiguration, fmt.Sprintf(format, args...))
}
