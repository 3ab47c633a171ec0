// Package model defines the types and error kinds shared by every layer of
// fusion.
//
// # Error Kinds
//
// Every failure surfaced by the library unwraps to one of five sentinels:
//
//   - ErrOutOfBounds: a row index outside [0, rows)
//   - ErrShapeMismatch: vocabulary/storage disagreement or indivisible dimensions
//   - ErrMalformedInput: truncated files, header/body disagreement, bad UTF-8
//   - ErrUnsupportedConfiguration: invalid n-gram ranges, bucket counts or codebook sizes
//   - ErrLookupMiss: a word that has no embedding
//
// Use errors.Is to classify and errors.As to recover the typed detail:
//
//	var ie *model.IndexError
//	if errors.As(err, &ie) {
//	    log.Printf("row %d of %d", ie.Index, ie.Len)
//	}
//
// # Result Types
//
//   - WordSimilarity: a word and its cosine similarity to a query
package model
