// Package codec reads and writes embeddings files.
//
// The native chunked container (see WriteFinalfusion), word2vec binary,
// plain text and text with a shape header can be read and written.
// fastText binary models can be read. The native container can be read eagerly from any io.Reader or
// lazily from a memory mapping, in which case the embedding matrix is a
// view of the mapped file. Stream readers accept zstd and lz4 compressed
// input transparently.
package codec
