package fusion

import (
	"errors"

	"github.com/hupe1980/fusion/model"
)

var (
	// ErrInvalidK is returned when k is not positive.
	ErrInvalidK = errors.New("k must be positive")

	// ErrNotFound is returned when a search yields no result.
	ErrNotFound = errors.New("not found")

	// ErrClosed is returned by operations on a closed Model.
	ErrClosed = errors.New("model is closed")
)

// Error kinds re-exported from the model package so callers need a single
// import for errors.Is checks.
var (
	ErrOutOfBounds              = model.ErrOutOfBounds
	ErrShapeMismatch            = model.ErrShapeMismatch
	ErrMalformedInput           = model.ErrMalformedInput
	ErrUnsupportedConfiguration = model.ErrUnsupportedConfiguration
	ErrLookupMiss               = model.ErrLookupMiss
)
