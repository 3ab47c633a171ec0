package metadata

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/fusion/model"
)

const doc = `# trained on wikipedia
[model]
dims = 300   # per word
algorithm = "skipgram"

[corpus]
tokens = 1_000_000
`

func TestParsePreservesBytes(t *testing.T) {
	md, err := Parse([]byte(doc))
	require.NoError(t, err)

	b, err := md.Bytes()
	require.NoError(t, err)
	assert.Equal(t, doc, string(b))
	assert.Equal(t, doc, md.String())
}

func TestGet(t *testing.T) {
	md, err := Parse([]byte(doc))
	require.NoError(t, err)

	v, ok := md.Get("model.dims")
	require.True(t, ok)
	assert.Equal(t, int64(300), v)

	v, ok = md.Get("model.algorithm")
	require.True(t, ok)
	assert.Equal(t, "skipgram", v)

	_, ok = md.Get("model.missing")
	assert.False(t, ok)
	_, ok = md.Get("model.dims.deeper")
	assert.False(t, ok)

	assert.Equal(t, []string{"corpus", "model"}, md.Keys())
	assert.Equal(t, 2, md.Len())
}

func TestSetReencodes(t *testing.T) {
	md, err := Parse([]byte(doc))
	require.NoError(t, err)

	require.NoError(t, md.Set("quantizer.subspaces", int64(10)))
	require.NoError(t, md.Set("model.dims", int64(100)))

	b, err := md.Bytes()
	require.NoError(t, err)
	assert.NotContains(t, string(b), "# trained on wikipedia")

	back, err := Parse(b)
	require.NoError(t, err)
	v, ok := back.Get("quantizer.subspaces")
	require.True(t, ok)
	assert.Equal(t, int64(10), v)
	v, _ = back.Get("model.dims")
	assert.Equal(t, int64(100), v)
	v, _ = back.Get("corpus.tokens")
	assert.Equal(t, int64(1_000_000), v)
}

func TestSetThroughScalar(t *testing.T) {
	md, err := Parse([]byte(doc))
	require.NoError(t, err)

	err = md.Set("model.dims.x", 1)
	assert.ErrorIs(t, err, ErrNotTable)

	// A failed Set leaves the bytes untouched.
	assert.Equal(t, doc, md.String())
}

func TestDelete(t *testing.T) {
	md, err := Parse([]byte(doc))
	require.NoError(t, err)

	assert.False(t, md.Delete("model.missing"))
	assert.Equal(t, doc, md.String())

	assert.True(t, md.Delete("corpus"))
	assert.Equal(t, []string{"model"}, md.Keys())
	assert.NotContains(t, md.String(), "corpus")
}

func TestParseInvalid(t *testing.T) {
	_, err := Parse([]byte("[model\ndims = "))
	assert.ErrorIs(t, err, model.ErrMalformedInput)
}

func TestNewAndClone(t *testing.T) {
	md := New()
	require.NoError(t, md.Set("a.b", "c"))

	c := md.Clone()
	require.NoError(t, c.Set("a.b", "d"))

	v, _ := md.Get("a.b")
	assert.Equal(t, "c", v)
	v, _ = c.Get("a.b")
	assert.Equal(t, "d", v)

	empty := FromMap(nil)
	assert.Equal(t, 0, empty.Len())
}
