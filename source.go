package fusion

import (
	"path/filepath"

	"github.com/hupe1980/fusion/blobstore"
)

// Source names an embeddings file in a blob store.
type Source struct {
	store blobstore.BlobStore
	name  string
}

// Local refers to a file on the local file system.
func Local(path string) Source {
	return Source{
		store: blobstore.NewLocalStore(filepath.Dir(path)),
		name:  filepath.Base(path),
	}
}

// Remote refers to the blob name in store.
func Remote(store blobstore.BlobStore, name string) Source {
	return Source{store: store, name: name}
}

// Name returns the blob name.
func (s Source) Name() string { return s.name }

// Store returns the blob store.
func (s Source) Store() blobstore.BlobStore { return s.store }
