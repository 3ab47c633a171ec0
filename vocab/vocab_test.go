package vocab

import (
	"hash/fnv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/fusion/model"
)

func TestSimple(t *testing.T) {
	v, err := NewSimple([]string{"berlin", "paris", "rome"})
	require.NoError(t, err)

	assert.Equal(t, 3, v.Len())
	assert.Equal(t, 3, v.StorageLen())

	idx := v.Lookup("paris")
	require.True(t, idx.IsWord())
	assert.Equal(t, 1, idx.Word())

	assert.True(t, v.Lookup("london").Empty())

	w, ok := v.Word(2)
	require.True(t, ok)
	assert.Equal(t, "rome", w)

	_, ok = v.Word(3)
	assert.False(t, ok)
	_, ok = v.Word(-1)
	assert.False(t, ok)
}

func TestSimpleRejectsDuplicates(t *testing.T) {
	_, err := NewSimple([]string{"a", "b", "a"})
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrMalformedInput)
}

func TestSimpleRejectsInvalidUTF8(t *testing.T) {
	_, err := NewSimple([]string{"ok", string([]byte{0xff, 0xfe})})
	assert.ErrorIs(t, err, model.ErrMalformedInput)
}

func TestNGrams(t *testing.T) {
	assert.Equal(t,
		[]string{"<a", "<ab", "a", "ab", "ab>", "b", "b>"},
		NGrams("ab", 1, 3),
	)
}

func TestNGramsMultibyte(t *testing.T) {
	assert.Equal(t, []string{"<é", "éa", "a>"}, NGrams("éa", 2, 2))
}

func TestNGramsTooLong(t *testing.T) {
	assert.Empty(t, NGrams("a", 4, 6))
}

func TestSubwordLookup(t *testing.T) {
	v, err := NewSubword([]string{"house", "garden"}, 3, 6, NewBucketIndexer(10))
	require.NoError(t, err)

	assert.Equal(t, 2, v.Len())
	assert.Equal(t, 2+1024, v.StorageLen())

	known := v.Lookup("garden")
	require.True(t, known.IsWord())
	assert.Equal(t, 1, known.Word())

	oov := v.Lookup("houses")
	require.False(t, oov.IsWord())
	require.Len(t, oov.Subwords(), len(v.NGrams("houses")))
	for _, row := range oov.Subwords() {
		assert.GreaterOrEqual(t, row, v.Len())
		assert.Less(t, row, v.StorageLen())
	}

	// Bucket rows carry no word.
	_, ok := v.Word(v.Len())
	assert.False(t, ok)
}

func TestSubwordNoNGrams(t *testing.T) {
	v, err := NewSubword([]string{"a"}, 5, 6, NewFastTextIndexer(16))
	require.NoError(t, err)
	assert.True(t, v.Lookup("b").Empty())
}

func TestSubwordValidation(t *testing.T) {
	words := []string{"a"}

	_, err := NewSubword(words, 4, 3, NewBucketIndexer(4))
	assert.ErrorIs(t, err, model.ErrUnsupportedConfiguration)

	_, err = NewSubword(words, 0, 3, NewBucketIndexer(4))
	assert.ErrorIs(t, err, model.ErrUnsupportedConfiguration)

	_, err = NewSubword(words, 3, 6, NewFastTextIndexer(0))
	assert.ErrorIs(t, err, model.ErrUnsupportedConfiguration)

	_, err = NewSubword(words, 3, 6, NewMurmur3Indexer(0))
	assert.ErrorIs(t, err, model.ErrUnsupportedConfiguration)

	_, err = NewSubword(words, 3, 6, nil)
	assert.ErrorIs(t, err, model.ErrUnsupportedConfiguration)
}

func TestBucketIndexer(t *testing.T) {
	ix := NewBucketIndexer(8)
	assert.Equal(t, 256, ix.Buckets())
	assert.Equal(t, IndexerBucket, ix.Type())

	// char count as u64, then one u32 per char
	enc := []byte{3, 0, 0, 0, 0, 0, 0, 0, '<', 0, 0, 0, 'h', 0, 0, 0, 'o', 0, 0, 0}
	h := fnv.New64a()
	_, _ = h.Write(enc)
	assert.Equal(t, h.Sum64()&255, ix.Index("<ho"))
}

func TestBucketIndexerFinalfusionHashes(t *testing.T) {
	tests := []struct {
		ngram string
		exp   uint32
		want  uint64
	}{
		{"<ab", 21, 543801},
		{"tree>", 21, 1506472},
		{"<Str", 21, 265048},
		{"aße>", 21, 1656788},
		{"<Straße>", 40, 231733982145},
	}
	for _, tt := range tests {
		t.Run(tt.ngram, func(t *testing.T) {
			assert.Equal(t, tt.want, NewBucketIndexer(tt.exp).Index(tt.ngram))
		})
	}

	// Characters count once regardless of their UTF-8 width.
	h := fnv.New64a()
	_, _ = h.Write([]byte{1, 0, 0, 0, 0, 0, 0, 0, 0xdf, 0, 0, 0})
	assert.Equal(t, h.Sum64()&(1<<40-1), NewBucketIndexer(40).Index("ß"))
}

func TestFastTextIndexerSignExtension(t *testing.T) {
	ix := NewFastTextIndexer(1 << 30)

	plain := func(s string) uint64 {
		h := fnv.New32a()
		_, _ = h.Write([]byte(s))
		return uint64(h.Sum32() % (1 << 30))
	}

	// ASCII bytes hash like standard FNV-1a.
	assert.Equal(t, plain("<ab"), ix.Index("<ab"))
	// Bytes >= 0x80 are sign extended before mixing.
	assert.NotEqual(t, plain("<äb"), ix.Index("<äb"))
}

func TestMurmur3IndexerRange(t *testing.T) {
	ix := NewMurmur3Indexer(7)
	assert.Equal(t, IndexerMurmur3, ix.Type())
	for _, ng := range NGrams("wordembedding", 3, 6) {
		assert.Less(t, ix.Index(ng), uint64(7))
	}
	assert.Equal(t, ix.Index("<wo"), ix.Index("<wo"))
}

func TestIndexerTypeString(t *testing.T) {
	assert.Equal(t, "bucket", IndexerBucket.String())
	assert.Equal(t, "fasttext", IndexerFastText.String())
	assert.Equal(t, "murmur3", IndexerMurmur3.String())
}
