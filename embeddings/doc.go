// Package embeddings combines a vocabulary, a storage matrix and optional
// metadata into a single lookup and query surface.
//
// Lookup:
//
//	vec, ok := e.Embedding("berlin")
//
// For subword vocabularies, unknown words are embedded as the mean of their
// n-gram bucket rows. Lookups never renormalize.
//
// Similarity search ranks vocabulary words by cosine similarity:
//
//	top, err := e.SimilarWord("berlin", 10)
//	top, err = e.Analogy("berlin", "germany", "paris", 10)
//
// Results are ordered by descending similarity with ties broken by
// ascending vocabulary index, so repeated queries return identical output.
//
// An Embeddings value is immutable apart from its metadata and is safe for
// concurrent queries.
package embeddings
