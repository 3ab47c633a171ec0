// Package blobstore abstracts where embeddings files live.
//
// A BlobStore opens named, immutable blobs for reading and creates new ones.
// LocalStore memory-maps files so native containers can be read lazily;
// MemoryStore is intended for tests. The s3 and minio subpackages provide
// object storage backends.
//
//	store := blobstore.NewLocalStore("/data/embeddings")
//	blob, err := store.Open(ctx, "wiki.fifu")
//	if err != nil {
//	    return err
//	}
//	defer blob.Close()
//	r := blobstore.NewReader(ctx, blob)
package blobstore
