package blobstore

import (
	"context"
	"io"
	"os"
)

// ErrNotFound is returned when a blob does not exist. It is os.ErrNotExist so
// that errors.Is works for both local and remote stores.
var ErrNotFound = os.ErrNotExist

// BlobStore provides access to immutable blobs. Implementations are safe for
// concurrent use.
type BlobStore interface {
	// Open opens a blob for reading.
	Open(ctx context.Context, name string) (Blob, error)
	// Create starts writing a new blob. It becomes visible when the returned
	// writer is closed.
	Create(ctx context.Context, name string) (WritableBlob, error)
	// Put writes a blob in one call.
	Put(ctx context.Context, name string, data []byte) error
	// Delete removes a blob. Deleting a missing blob is not an error.
	Delete(ctx context.Context, name string) error
	// List returns the sorted names starting with prefix.
	List(ctx context.Context, prefix string) ([]string, error)
}

// Blob is a read-only handle to a blob.
type Blob interface {
	io.Closer
	// ReadAt reads len(p) bytes at off. It follows io.ReaderAt semantics.
	ReadAt(ctx context.Context, p []byte, off int64) (int, error)
	// ReadRange streams length bytes starting at off, clamped to the blob.
	ReadRange(ctx context.Context, off, length int64) (io.ReadCloser, error)
	// Size returns the size of the blob in bytes.
	Size() int64
}

// WritableBlob receives the contents of a new blob.
type WritableBlob interface {
	io.WriteCloser
	// Sync flushes buffered data to durable storage where supported.
	Sync() error
	// Abort discards the blob instead of committing it. Close must not be
	// called afterwards.
	Abort() error
}

// Mappable is implemented by blobs backed by a memory mapping.
type Mappable interface {
	// Bytes returns the mapped contents. The slice is valid until Close.
	Bytes() []byte
}

// NewReader returns a sequential reader over the whole blob.
func NewReader(ctx context.Context, b Blob) io.Reader {
	return &blobReader{ctx: ctx, blob: b}
}

type blobReader struct {
	ctx  context.Context
	blob Blob
	rc   io.ReadCloser
	err  error
}

func (r *blobReader) Read(p []byte) (int, error) {
	if r.err != nil {
		return 0, r.err
	}
	if r.rc == nil {
		if r.blob.Size() == 0 {
			r.err = io.EOF
			return 0, r.err
		}
		r.rc, r.err = r.blob.ReadRange(r.ctx, 0, r.blob.Size())
		if r.err != nil {
			return 0, r.err
		}
	}
	n, err := r.rc.Read(p)
	if err != nil {
		_ = r.rc.Close()
		r.err = err
	}
	return n, err
}

// ReadAll reads a whole blob into memory.
func ReadAll(ctx context.Context, b Blob) ([]byte, error) {
	buf := make([]byte, b.Size())
	n, err := b.ReadAt(ctx, buf, 0)
	if err == io.EOF && int64(n) == b.Size() {
		err = nil
	}
	return buf[:n], err
}
