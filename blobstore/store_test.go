package blobstore

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stores(t *testing.T) map[string]BlobStore {
	return map[string]BlobStore{
		"local":  NewLocalStore(t.TempDir()),
		"memory": NewMemoryStore(),
	}
}

func TestStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	data := []byte("hello world, this is an embeddings blob")

	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			w, err := store.Create(ctx, "vectors/a.fifu")
			require.NoError(t, err)
			n, err := w.Write(data)
			require.NoError(t, err)
			require.Equal(t, len(data), n)
			require.NoError(t, w.Sync())
			require.NoError(t, w.Close())

			require.NoError(t, store.Put(ctx, "vectors/b.bin", []byte("b")))
			require.NoError(t, store.Put(ctx, "other.txt", []byte("c")))

			blob, err := store.Open(ctx, "vectors/a.fifu")
			require.NoError(t, err)
			defer blob.Close()
			assert.Equal(t, int64(len(data)), blob.Size())

			buf := make([]byte, 5)
			n, err = blob.ReadAt(ctx, buf, 6)
			require.NoError(t, err)
			assert.Equal(t, 5, n)
			assert.Equal(t, "world", string(buf))

			rc, err := blob.ReadRange(ctx, 13, 4)
			require.NoError(t, err)
			got, err := io.ReadAll(rc)
			require.NoError(t, err)
			require.NoError(t, rc.Close())
			assert.Equal(t, "this", string(got))

			all, err := io.ReadAll(NewReader(ctx, blob))
			require.NoError(t, err)
			assert.Equal(t, data, all)

			all, err = ReadAll(ctx, blob)
			require.NoError(t, err)
			assert.Equal(t, data, all)

			m, ok := blob.(Mappable)
			require.True(t, ok)
			assert.Equal(t, data, m.Bytes())

			names, err := store.List(ctx, "vectors/")
			require.NoError(t, err)
			assert.Equal(t, []string{"vectors/a.fifu", "vectors/b.bin"}, names)

			require.NoError(t, store.Delete(ctx, "vectors/b.bin"))
			require.NoError(t, store.Delete(ctx, "vectors/b.bin"))
			_, err = store.Open(ctx, "vectors/b.bin")
			assert.True(t, errors.Is(err, ErrNotFound))
		})
	}
}

func TestLocalCreateIsAtomic(t *testing.T) {
	dir := t.TempDir()
	store := NewLocalStore(dir)
	ctx := context.Background()

	w, err := store.Create(ctx, "x.bin")
	require.NoError(t, err)
	_, err = w.Write([]byte("partial"))
	require.NoError(t, err)

	_, err = os.Stat(filepath.Join(dir, "x.bin"))
	assert.True(t, errors.Is(err, os.ErrNotExist))

	names, err := store.List(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, names)

	require.NoError(t, w.Close())
	assert.Error(t, w.Close())

	names, err = store.List(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"x.bin"}, names)
}

func TestEmptyBlobReader(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.Put(ctx, "empty", nil))

	blob, err := store.Open(ctx, "empty")
	require.NoError(t, err)
	got, err := io.ReadAll(NewReader(ctx, blob))
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestLocalOpenCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewLocalStore(t.TempDir()).Open(ctx, "x")
	assert.ErrorIs(t, err, context.Canceled)
}
