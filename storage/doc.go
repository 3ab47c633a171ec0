// Package storage holds embedding matrices.
//
// Two variants implement Storage:
//
//   - Dense: a row-major float32 matrix, either owned or a read-only view into
//     a memory mapping
//   - Quantized: product-quantized codes with one codebook per subspace and
//     optional per-row norms
//
// Search uses the bulk path: Dots scores a query against every row at once.
// For Quantized this evaluates each subspace's query·centroid table once and
// then sums table entries per row, never reconstructing the matrix.
package storage
