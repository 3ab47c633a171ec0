// Package quantization trains product-quantized storage from dense embeddings.
//
// Rows are split into Subspaces contiguous chunks of equal width. For every
// subspace a codebook of CodebookSize centroids is learned with k-means, and
// every row stores one byte per subspace naming its nearest centroid:
//
//	q, report, err := quantization.Quantize(ctx, dense, quantization.Config{
//	    Subspaces:    10,
//	    CodebookSize: 256,
//	    Iterations:   100,
//	    Attempts:     1,
//	    Seed:         42,
//	})
//
// A 300-dimensional f32 row (1200 bytes) becomes 10 bytes plus the shared
// codebooks. With Normalize set, rows are scaled to unit length before
// training and their original norms are stored alongside the codes, so
// reconstructed rows keep their magnitude.
//
// Subspaces are trained concurrently; results depend only on the input and
// the seed.
package quantization
