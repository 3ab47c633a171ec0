package model

import (
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorKinds(t *testing.T) {
	tests := []struct {
		name string
		err  error
		kind error
	}{
		{"index", &IndexError{Index: 5, Len: 5}, ErrOutOfBounds},
		{"shape", &ShapeError{What: "rows", Expected: 3, Actual: 4}, ErrShapeMismatch},
		{"lookup", &LookupError{Words: []string{"foo"}}, ErrLookupMiss},
		{"format", NewFormatError("word2vec", "truncated", io.ErrUnexpectedEOF), ErrMalformedInput},
		{"unsupported", Unsupported("min_n %d > max_n %d", 6, 3), ErrUnsupportedConfiguration},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.err, tt.kind)
			assert.NotEmpty(t, tt.err.Error())
		})
	}
}

func TestFormatError_UnwrapsCause(t *testing.T) {
	err := NewFormatError("text", "cannot read line", io.ErrUnexpectedEOF)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
	assert.ErrorIs(t, err, ErrMalformedInput)

	var fe *FormatError
	assert.True(t, errors.As(err, &fe))
	assert.Equal(t, "text", fe.Format)
	assert.Equal(t, "text: cannot read line: unexpected EOF", err.Error())
}

func TestLookupError_Message(t *testing.T) {
	err := &LookupError{Words: []string{"a", "b"}}
	assert.Equal(t, "no embedding for: a, b", err.Error())
}
