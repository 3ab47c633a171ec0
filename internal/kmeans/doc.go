// Package kmeans implements seeded Lloyd clustering for codebook training.
//
// Each iteration is a fork-join: fixed-size chunks of rows are assigned to
// their nearest centroid concurrently, every chunk accumulating its own
// partial sums, and the partials are merged in chunk order. Results depend
// only on the input and the seed, never on the number of workers.
package kmeans
