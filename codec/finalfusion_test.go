package codec

import (
	"bytes"
	"context"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/fusion/embeddings"
	"github.com/hupe1980/fusion/metadata"
	"github.com/hupe1980/fusion/model"
	"github.com/hupe1980/fusion/quantization"
	"github.com/hupe1980/fusion/storage"
	"github.com/hupe1980/fusion/testutil"
	"github.com/hupe1980/fusion/vocab"
)

func simpleEmbeddings(t *testing.T, rows, dims int, opts ...embeddings.Option) *embeddings.Embeddings {
	t.Helper()
	v, err := vocab.NewSimple(testutil.Words(rows))
	require.NoError(t, err)
	e, err := embeddings.New(v, testutil.NewRNG(7).Dense(rows, dims), opts...)
	require.NoError(t, err)
	return e
}

func encodeFinalfusion(t *testing.T, e *embeddings.Embeddings) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, WriteFinalfusion(&buf, e))
	return buf.Bytes()
}

func assertSameRows(t *testing.T, want, got storage.Storage) {
	t.Helper()
	wr, wd := want.Shape()
	gr, gd := got.Shape()
	require.Equal(t, wr, gr)
	require.Equal(t, wd, gd)
	for i := range wr {
		a, err := want.Row(i)
		require.NoError(t, err)
		b, err := got.Row(i)
		require.NoError(t, err)
		assert.Equal(t, a, b, "row %d", i)
	}
}

func TestFinalfusionRoundTrip(t *testing.T) {
	md, err := metadata.Parse([]byte("model = \"test\"\n[training]\nepochs = 5\n"))
	require.NoError(t, err)

	norms := make([]float32, 10)
	for i := range norms {
		norms[i] = float32(i + 1)
	}
	e := simpleEmbeddings(t, 10, 6, embeddings.WithMetadata(md), embeddings.WithNorms(norms))
	first := encodeFinalfusion(t, e)

	got, err := ReadFinalfusion(bytes.NewReader(first))
	require.NoError(t, err)

	assert.Equal(t, e.Vocab().Words(), got.Vocab().Words())
	assertSameRows(t, e.Storage(), got.Storage())
	assert.Equal(t, norms, got.Norms())
	require.NotNil(t, got.Metadata())
	v, ok := got.Metadata().Get("training.epochs")
	require.True(t, ok)
	assert.EqualValues(t, 5, v)

	assert.Equal(t, first, encodeFinalfusion(t, got))
}

func TestFinalfusionSubwordVocabs(t *testing.T) {
	words := []string{"tree", "house", "Straße"}
	indexers := []vocab.Indexer{
		vocab.NewBucketIndexer(4),
		vocab.NewFastTextIndexer(16),
		vocab.NewMurmur3Indexer(16),
	}

	for _, idx := range indexers {
		t.Run(idx.Type().String(), func(t *testing.T) {
			v, err := vocab.NewSubword(words, 3, 5, idx)
			require.NoError(t, err)
			e, err := embeddings.New(v, testutil.NewRNG(3).Dense(v.StorageLen(), 4))
			require.NoError(t, err)

			first := encodeFinalfusion(t, e)
			got, err := ReadFinalfusion(bytes.NewReader(first))
			require.NoError(t, err)

			sw, ok := got.Vocab().(*vocab.Subword)
			require.True(t, ok)
			assert.Equal(t, 3, sw.MinN())
			assert.Equal(t, 5, sw.MaxN())
			assert.Equal(t, idx.Type(), sw.Indexer().Type())
			assert.Equal(t, idx.Buckets(), sw.Indexer().Buckets())

			want, ok := e.Embedding("trees")
			require.True(t, ok)
			have, ok := got.Embedding("trees")
			require.True(t, ok)
			assert.Equal(t, want, have)

			assert.Equal(t, first, encodeFinalfusion(t, got))
		})
	}
}

func TestFinalfusionQuantizedRoundTrip(t *testing.T) {
	e := simpleEmbeddings(t, 64, 8)
	cfg := quantization.DefaultConfig()
	cfg.Subspaces = 4
	cfg.CodebookSize = 16
	cfg.Iterations = 10
	cfg.Normalize = true

	q, _, err := e.Quantize(context.Background(), cfg)
	require.NoError(t, err)

	first := encodeFinalfusion(t, q)
	got, err := ReadFinalfusion(bytes.NewReader(first))
	require.NoError(t, err)

	gq, ok := got.Storage().(*storage.Quantized)
	require.True(t, ok)
	wq := q.Storage().(*storage.Quantized)
	assert.Equal(t, wq.Codes(), gq.Codes())
	assert.Equal(t, wq.Codebooks(), gq.Codebooks())
	assert.Equal(t, wq.Norms(), gq.Norms())
	assertSameRows(t, q.Storage(), got.Storage())

	assert.Equal(t, first, encodeFinalfusion(t, got))
}

func TestFinalfusionProjectedQuantizedRoundTrip(t *testing.T) {
	const rows, dims = 3, 4
	v, err := vocab.NewSimple(testutil.Words(rows))
	require.NoError(t, err)
	q, err := storage.NewQuantized(storage.QuantizedParams{
		Rows:         rows,
		Dims:         dims,
		Subspaces:    2,
		CodebookSize: 2,
		Codebooks:    []float32{1, 0, 0, 1, 2, 2, 0, -1},
		Codes:        []uint8{0, 0, 1, 1, 0, 1},
		Norms:        []float32{1, 2, 0.5},
		Projection: []float32{
			0, 1, 0, 0,
			1, 0, 0, 0,
			0, 0, 2, 0,
			0, 0, 1, 1,
		},
	})
	require.NoError(t, err)
	e, err := embeddings.New(v, q)
	require.NoError(t, err)

	first := encodeFinalfusion(t, e)
	for name, read := range map[string]func([]byte) (*embeddings.Embeddings, error){
		"stream": func(b []byte) (*embeddings.Embeddings, error) { return ReadFinalfusion(bytes.NewReader(b)) },
		"bytes":  FromBytes,
	} {
		t.Run(name, func(t *testing.T) {
			got, err := read(first)
			require.NoError(t, err)

			gq, ok := got.Storage().(*storage.Quantized)
			require.True(t, ok)
			assert.Equal(t, q.Projection(), gq.Projection())
			assertSameRows(t, q, gq)

			row, err := gq.Row(1)
			require.NoError(t, err)
			assert.Equal(t, []float32{2, 0, 0, -2}, row)

			assert.Equal(t, first, encodeFinalfusion(t, got))
		})
	}
}

func TestMmapFinalfusion(t *testing.T) {
	e := simpleEmbeddings(t, 20, 5)
	path := filepath.Join(t.TempDir(), "vectors.fifu")
	require.NoError(t, os.WriteFile(path, encodeFinalfusion(t, e), 0o600))

	got, err := MmapFinalfusion(path)
	require.NoError(t, err)

	assertSameRows(t, e.Storage(), got.Storage())
	res, err := got.SimilarWord("w3", 3)
	require.NoError(t, err)
	assert.Len(t, res, 3)

	require.NoError(t, got.Close())
}

func TestFromBytes(t *testing.T) {
	e := simpleEmbeddings(t, 4, 3)
	got, err := FromBytes(encodeFinalfusion(t, e))
	require.NoError(t, err)
	assertSameRows(t, e.Storage(), got.Storage())
}

func TestFinalfusionTruncated(t *testing.T) {
	md := metadata.New()
	require.NoError(t, md.Set("name", "x"))
	e := simpleEmbeddings(t, 3, 2, embeddings.WithMetadata(md), embeddings.WithNorms([]float32{1, 2, 3}))
	full := encodeFinalfusion(t, e)

	for n := 0; n < len(full); n++ {
		_, err := ReadFinalfusion(bytes.NewReader(full[:n]))
		require.ErrorIs(t, err, model.ErrMalformedInput, "prefix %d", n)

		_, err = FromBytes(full[:n])
		require.ErrorIs(t, err, model.ErrMalformedInput, "prefix %d", n)
	}
}

// chunkAt returns the complete chunk starting at off.
func chunkAt(b []byte, off int) []byte {
	length := binary.LittleEndian.Uint64(b[off+4:])
	return b[off : off+12+int(length)]
}

func header(ids ...ChunkID) []byte {
	b := append([]byte{}, fifuMagic[:]...)
	b = binary.LittleEndian.AppendUint32(b, fifuVersion)
	b = binary.LittleEndian.AppendUint32(b, uint32(len(ids)))
	for _, id := range ids {
		b = binary.LittleEndian.AppendUint32(b, uint32(id))
	}
	return b
}

func TestChunkIDNames(t *testing.T) {
	assert.Equal(t, "FastTextSubwordVocab", ChunkFastTextSubwordVocab.String())
	// 8 is finalfusion's explicit subword vocabulary, which is not supported.
	assert.Equal(t, "Unknown(8)", ChunkID(8).String())
	assert.Equal(t, "Murmur3SubwordVocab", ChunkID(9).String())
}

func TestFinalfusionUnknownChunkSkipped(t *testing.T) {
	e := simpleEmbeddings(t, 5, 4)
	full := encodeFinalfusion(t, e)

	// Two chunk ids: the vocabulary starts at byte 20.
	vocabChunk := chunkAt(full, 20)
	matrixChunk := full[20+len(vocabChunk):]

	unknown := binary.LittleEndian.AppendUint32(nil, 99)
	unknown = binary.LittleEndian.AppendUint64(unknown, 4)
	unknown = append(unknown, 1, 2, 3, 4)

	// One extra id plus a 16-byte chunk preserve the matrix padding.
	b := header(ChunkSimpleVocab, ChunkID(99), ChunkNdArray)
	b = append(b, vocabChunk...)
	b = append(b, unknown...)
	b = append(b, matrixChunk...)

	got, err := ReadFinalfusion(bytes.NewReader(b))
	require.NoError(t, err)
	assertSameRows(t, e.Storage(), got.Storage())
}

func TestFinalfusionMalformed(t *testing.T) {
	e := simpleEmbeddings(t, 5, 4)
	full := encodeFinalfusion(t, e)
	vocabChunk := chunkAt(full, 20)
	matrixChunk := full[20+len(vocabChunk):]

	cat := func(parts ...[]byte) []byte { return bytes.Join(parts, nil) }

	toml := []byte("a = 1\n")
	metadataChunk := binary.LittleEndian.AppendUint32(nil, uint32(ChunkMetadata))
	metadataChunk = binary.LittleEndian.AppendUint64(metadataChunk, uint64(len(toml)))
	metadataChunk = append(metadataChunk, toml...)

	// Chunks declaring far more data than the stream holds.
	hugeMatrix := binary.LittleEndian.AppendUint32(nil, uint32(ChunkNdArray))
	hugeMatrix = binary.LittleEndian.AppendUint64(hugeMatrix, 1<<60)
	hugeMatrix = binary.LittleEndian.AppendUint64(hugeMatrix, 1<<30)
	hugeMatrix = binary.LittleEndian.AppendUint32(hugeMatrix, 1<<26)
	hugeMatrix = binary.LittleEndian.AppendUint32(hugeMatrix, typeF32)

	hugeVocab := binary.LittleEndian.AppendUint32(nil, uint32(ChunkSimpleVocab))
	hugeVocab = binary.LittleEndian.AppendUint64(hugeVocab, 1<<60)
	hugeVocab = binary.LittleEndian.AppendUint64(hugeVocab, 1<<40)

	tests := []struct {
		name string
		data []byte
		want error
	}{
		{"huge matrix length", cat(header(ChunkSimpleVocab, ChunkNdArray), vocabChunk, hugeMatrix), model.ErrMalformedInput},
		{"huge vocabulary length", cat(header(ChunkSimpleVocab, ChunkNdArray), hugeVocab), model.ErrMalformedInput},
		{"bad magic", cat([]byte("FiFx"), full[4:]), model.ErrMalformedInput},
		{"tag mismatch", cat(header(ChunkNdArray, ChunkSimpleVocab), vocabChunk, matrixChunk), model.ErrMalformedInput},
		{"missing storage", cat(header(ChunkSimpleVocab), vocabChunk), model.ErrMalformedInput},
		{"missing vocabulary", cat(header(ChunkMetadata), metadataChunk), model.ErrMalformedInput},
		{"duplicate vocabulary", cat(header(ChunkSimpleVocab, ChunkSimpleVocab), vocabChunk, vocabChunk), model.ErrMalformedInput},
		{"count too large", cat(fifuMagic[:], []byte{0, 0, 0, 0}, []byte{0xff, 0xff, 0xff, 0xff}), model.ErrMalformedInput},
		{"unsupported version", cat(fifuMagic[:], []byte{1, 0, 0, 0}, full[8:]), model.ErrUnsupportedConfiguration},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadFinalfusion(bytes.NewReader(tt.data))
			require.ErrorIs(t, err, tt.want)

			_, err = FromBytes(tt.data)
			require.ErrorIs(t, err, tt.want)
		})
	}
}

func TestFinalfusionChunkLengthMismatch(t *testing.T) {
	e := simpleEmbeddings(t, 5, 4)
	full := bytes.Clone(encodeFinalfusion(t, e))

	// Declare four more vocabulary bytes than the payload uses.
	length := binary.LittleEndian.Uint64(full[24:])
	binary.LittleEndian.PutUint64(full[24:], length+4)

	_, err := ReadFinalfusion(bytes.NewReader(full))
	require.ErrorIs(t, err, model.ErrMalformedInput)
}
