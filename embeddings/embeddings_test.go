package embeddings

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/fusion/distance"
	"github.com/hupe1980/fusion/metadata"
	"github.com/hupe1980/fusion/model"
	"github.com/hupe1980/fusion/quantization"
	"github.com/hupe1980/fusion/storage"
	"github.com/hupe1980/fusion/testutil"
	"github.com/hupe1980/fusion/vocab"
)

func capitals(t *testing.T) *Embeddings {
	t.Helper()
	v, err := vocab.NewSimple([]string{"Athens", "Greece", "Baghdad", "Iraq", "Paris"})
	require.NoError(t, err)
	s, err := storage.NewDenseFromRows([][]float32{
		{1, 0, 0},
		{1, 1, 0},
		{0, 0, 1},
		{0, 1, 1},
		{1, 0, 0.1},
	})
	require.NoError(t, err)
	e, err := New(v, s)
	require.NoError(t, err)
	return e
}

func subwordEmbeddings(t *testing.T) *Embeddings {
	t.Helper()
	v, err := vocab.NewSubword([]string{"house", "garden"}, 3, 4, vocab.NewFastTextIndexer(32))
	require.NoError(t, err)
	e, err := New(v, testutil.NewRNG(1).Dense(v.StorageLen(), 8))
	require.NoError(t, err)
	return e
}

func TestNewShapeMismatch(t *testing.T) {
	v, err := vocab.NewSimple([]string{"a", "b"})
	require.NoError(t, err)

	_, err = New(v, testutil.NewRNG(1).Dense(3, 2))
	assert.ErrorIs(t, err, model.ErrShapeMismatch)

	_, err = New(v, testutil.NewRNG(1).Dense(2, 2), WithNorms([]float32{1}))
	assert.ErrorIs(t, err, model.ErrShapeMismatch)
}

func TestEmbeddingCopies(t *testing.T) {
	e := capitals(t)
	assert.Equal(t, 5, e.Len())
	assert.Equal(t, 3, e.Dims())

	v, ok := e.Embedding("Greece")
	require.True(t, ok)
	assert.Equal(t, []float32{1, 1, 0}, v)

	v[0] = 42
	again, _ := e.Embedding("Greece")
	assert.Equal(t, float32(1), again[0])

	_, ok = e.Embedding("Berlin")
	assert.False(t, ok)
}

func TestSubwordEmbeddingIsMean(t *testing.T) {
	e := subwordEmbeddings(t)
	sv := e.Vocab().(*vocab.Subword)

	rows := sv.SubwordIndices("houses")
	require.NotEmpty(t, rows)

	want := make([]float32, e.Dims())
	for _, r := range rows {
		row, err := e.Storage().Row(r)
		require.NoError(t, err)
		distance.AddScaled(want, 1, row)
	}
	distance.ScaleInPlace(want, 1/float32(len(rows)))

	got, ok := e.Embedding("houses")
	require.True(t, ok)
	assert.InDeltaSlice(t, want, got, 1e-6)

	// Known words use their own row, not n-grams.
	known, ok := e.Embedding("garden")
	require.True(t, ok)
	row, _ := e.Storage().Row(1)
	assert.Equal(t, row, known)
}

func TestSubwordNoNGrams(t *testing.T) {
	v, err := vocab.NewSubword([]string{"house"}, 5, 6, vocab.NewBucketIndexer(3))
	require.NoError(t, err)
	e, err := New(v, testutil.NewRNG(2).Dense(v.StorageLen(), 4))
	require.NoError(t, err)

	_, ok := e.Embedding("a")
	assert.False(t, ok)
}

func TestEmbeddingWithNorm(t *testing.T) {
	e := capitals(t)
	_, n, ok := e.EmbeddingWithNorm("Greece")
	require.True(t, ok)
	assert.InDelta(t, 1.41421, n, 1e-4)

	unit, err := e.Normalize()
	require.NoError(t, err)

	vec, n, ok := unit.EmbeddingWithNorm("Greece")
	require.True(t, ok)
	assert.InDelta(t, 1.41421, n, 1e-4)
	assert.InDelta(t, 1, distance.Norm(vec), 1e-6)

	_, _, ok = unit.EmbeddingWithNorm("Berlin")
	assert.False(t, ok)
}

func TestSimilarWord(t *testing.T) {
	e := capitals(t)
	res, err := e.SimilarWord("Athens", 2)
	require.NoError(t, err)
	require.Len(t, res, 2)
	assert.Equal(t, "Paris", res[0].Word)
	assert.Equal(t, "Greece", res[1].Word)
	assert.Equal(t, 1, res[1].Index)

	_, err = e.SimilarWord("Berlin", 2)
	var le *model.LookupError
	require.ErrorAs(t, err, &le)
	assert.Equal(t, []string{"Berlin"}, le.Words)
}

func TestSimilarTieBreakAndDeterminism(t *testing.T) {
	v, err := vocab.NewSimple([]string{"d", "c", "b", "a", "zero"})
	require.NoError(t, err)
	s, err := storage.NewDenseFromRows([][]float32{
		{0, 1},
		{1, 0},
		{2, 0},
		{1, 0},
		{0, 0},
	})
	require.NoError(t, err)
	e, err := New(v, s)
	require.NoError(t, err)

	first, err := e.Similar([]float32{1, 0}, 10)
	require.NoError(t, err)
	second, err := e.Similar([]float32{1, 0}, 10)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	// k exceeds candidates; the zero row never matches.
	require.Len(t, first, 4)
	assert.Equal(t, []int{1, 2, 3, 0}, []int{first[0].Index, first[1].Index, first[2].Index, first[3].Index})

	excl, err := e.Similar([]float32{1, 0}, 2, WithExcludeIndices(1), e.WithExcludeWords("b", "unknown"))
	require.NoError(t, err)
	require.Len(t, excl, 2)
	assert.Equal(t, "a", excl[0].Word)
	assert.Equal(t, "d", excl[1].Word)
}

func TestSimilarEdgeCases(t *testing.T) {
	e := capitals(t)

	res, err := e.Similar([]float32{0, 0, 0}, 3)
	require.NoError(t, err)
	assert.Empty(t, res)

	res, err = e.Similar([]float32{1, 0, 0}, 0)
	require.NoError(t, err)
	assert.Empty(t, res)

	_, err = e.Similar([]float32{1, 0}, 3)
	assert.ErrorIs(t, err, model.ErrShapeMismatch)
}

func TestSimilarMatchesBruteForce(t *testing.T) {
	rng := testutil.NewRNG(3)
	v, err := vocab.NewSimple(testutil.Words(200))
	require.NoError(t, err)
	e, err := New(v, rng.Dense(200, 16))
	require.NoError(t, err)

	query := rng.Matrix(1, 16)
	got, err := e.Similar(query, 10)
	require.NoError(t, err)

	want := testutil.ExactTopK(e.Storage(), query, 10, nil)
	require.Len(t, got, len(want))
	for i := range want {
		assert.Equal(t, want[i].Index, got[i].Index)
		assert.InDelta(t, want[i].Similarity, got[i].Similarity, 1e-5)
	}
}

func TestSimilarSubwordSearchesWordsOnly(t *testing.T) {
	e := subwordEmbeddings(t)
	res, err := e.Similar(testutil.NewRNG(9).Matrix(1, 8), 100)
	require.NoError(t, err)
	assert.Len(t, res, 2)
}

func TestAnalogy(t *testing.T) {
	e := capitals(t)

	res, err := e.Analogy("Athens", "Greece", "Baghdad", 1)
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, "Iraq", res[0].Word)
	assert.InDelta(t, 1, res[0].Similarity, 1e-6)

	_, err = e.Analogy("UnknownCity", "Greece", "Atlantis", 1)
	var le *model.LookupError
	require.True(t, errors.As(err, &le))
	assert.Equal(t, []string{"UnknownCity", "Atlantis"}, le.Words)
	assert.ErrorIs(t, err, model.ErrLookupMiss)
}

func TestQuantizeEmbeddings(t *testing.T) {
	v, err := vocab.NewSimple(testutil.Words(64))
	require.NoError(t, err)
	md := metadata.New()
	require.NoError(t, md.Set("name", "test"))
	e, err := New(v, testutil.NewRNG(4).Dense(64, 8), WithMetadata(md))
	require.NoError(t, err)

	q, report, err := e.Quantize(context.Background(), quantization.Config{
		Subspaces: 2, CodebookSize: 8, Iterations: 10, Attempts: 1, Seed: 1,
	})
	require.NoError(t, err)
	require.Len(t, report.Subspaces, 2)

	assert.Same(t, e.Vocab(), q.Vocab())
	_, ok := q.Storage().(*storage.Quantized)
	assert.True(t, ok)
	name, _ := q.Metadata().Get("name")
	assert.Equal(t, "test", name)

	// Quantized search returns the same word set as a brute-force scan of
	// the reconstructed rows.
	query := testutil.NewRNG(5).Matrix(1, 8)
	got, err := q.Similar(query, 5)
	require.NoError(t, err)
	want := testutil.ExactTopK(q.Storage(), query, 5, nil)
	for i := range want {
		assert.InDelta(t, want[i].Similarity, got[i].Similarity, 1e-4)
	}
}

type countingCloser struct{ n int }

func (c *countingCloser) Close() error { c.n++; return nil }

func TestMetadataAndClose(t *testing.T) {
	c := &countingCloser{}
	v, err := vocab.NewSimple([]string{"a"})
	require.NoError(t, err)
	e, err := New(v, testutil.NewRNG(1).Dense(1, 2), WithCloser(c))
	require.NoError(t, err)

	assert.Nil(t, e.Metadata())
	e.SetMetadata(metadata.New())
	assert.NotNil(t, e.Metadata())

	require.NoError(t, e.Close())
	assert.Equal(t, 1, c.n)

	plain := capitals(t)
	assert.NoError(t, plain.Close())
}
