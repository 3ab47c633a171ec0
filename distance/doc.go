// Package distance provides float32 vector arithmetic for embedding lookup
// and similarity search.
//
// Inner products, norms and matrix-vector products are delegated to gonum's
// pure-Go BLAS (gonum.org/v1/gonum/blas/blas32), which is deterministic for
// repeated calls on the same inputs.
//
// # Usage
//
//	sim := distance.Cosine(a, b)
//	norm := distance.NormalizeL2InPlace(vec)
//	distance.MatVec(matrix, rows, dims, query, scores)
package distance
