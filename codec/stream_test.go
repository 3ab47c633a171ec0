package codec

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/fusion/model"
)

func TestWord2VecRoundTrip(t *testing.T) {
	e := simpleEmbeddings(t, 8, 5)

	var first bytes.Buffer
	require.NoError(t, WriteWord2Vec(&first, e))
	assert.True(t, strings.HasPrefix(first.String(), "8 5\n"))

	got, err := ReadWord2Vec(bytes.NewReader(first.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, e.Vocab().Words(), got.Vocab().Words())
	assertSameRows(t, e.Storage(), got.Storage())

	var second bytes.Buffer
	require.NoError(t, WriteWord2Vec(&second, got))
	assert.Equal(t, first.Bytes(), second.Bytes())
}

func TestWord2VecWithoutSeparators(t *testing.T) {
	e := simpleEmbeddings(t, 3, 2)
	var buf bytes.Buffer
	require.NoError(t, WriteWord2Vec(&buf, e))

	// Drop every record newline.
	raw := buf.Bytes()
	var stripped []byte
	stripped = append(stripped, raw[:4]...)
	off := 4
	for range 3 {
		rec := len("wX ") + 2*4
		stripped = append(stripped, raw[off:off+rec]...)
		off += rec + 1
	}

	got, err := ReadWord2Vec(bytes.NewReader(stripped))
	require.NoError(t, err)
	assertSameRows(t, e.Storage(), got.Storage())
}

func TestWord2VecMalformed(t *testing.T) {
	e := simpleEmbeddings(t, 3, 2)
	var buf bytes.Buffer
	require.NoError(t, WriteWord2Vec(&buf, e))
	full := buf.Bytes()

	for _, n := range []int{0, 2, 6, 10, len(full) - 2} {
		_, err := ReadWord2Vec(bytes.NewReader(full[:n]))
		assert.ErrorIs(t, err, model.ErrMalformedInput, "prefix %d", n)
	}

	_, err := ReadWord2Vec(strings.NewReader("3\n"))
	assert.ErrorIs(t, err, model.ErrMalformedInput)
	_, err = ReadWord2Vec(strings.NewReader("x 2\n"))
	assert.ErrorIs(t, err, model.ErrMalformedInput)
}

func TestWord2VecHugeDims(t *testing.T) {
	_, err := ReadWord2Vec(bytes.NewReader([]byte("1 1099511627776\nfoo ")))
	assert.ErrorIs(t, err, model.ErrMalformedInput)

	_, err = ReadTextDims(strings.NewReader("1 1099511627776\nfoo 1\n"))
	assert.ErrorIs(t, err, model.ErrMalformedInput)

	// Large but plausible shapes fail on the missing payload instead.
	_, err = ReadWord2Vec(bytes.NewReader([]byte("1073741824 1048576\nfoo ")))
	assert.ErrorIs(t, err, model.ErrMalformedInput)
}

func TestTextRoundTrip(t *testing.T) {
	e := simpleEmbeddings(t, 6, 4)

	for _, f := range []Format{FormatText, FormatTextDims} {
		t.Run(f.String(), func(t *testing.T) {
			var first bytes.Buffer
			require.NoError(t, Write(&first, e, f, CompressionNone))

			got, err := Read(bytes.NewReader(first.Bytes()), f)
			require.NoError(t, err)
			assert.Equal(t, e.Vocab().Words(), got.Vocab().Words())
			assertSameRows(t, e.Storage(), got.Storage())

			var second bytes.Buffer
			require.NoError(t, Write(&second, got, f, CompressionNone))
			assert.Equal(t, first.String(), second.String())
		})
	}
}

func TestReadText(t *testing.T) {
	in := "foo 1 2.5 -3\nbar 0.25 0 1e-3\n\n"
	e, err := ReadText(strings.NewReader(in))
	require.NoError(t, err)
	assert.Equal(t, 2, e.Len())
	assert.Equal(t, 3, e.Dims())

	v, ok := e.Embedding("bar")
	require.True(t, ok)
	assert.Equal(t, []float32{0.25, 0, 0.001}, v)

	// No trailing newline.
	e, err = ReadText(strings.NewReader("foo 1 2"))
	require.NoError(t, err)
	assert.Equal(t, 1, e.Len())
}

func TestReadTextMalformed(t *testing.T) {
	tests := []struct {
		name   string
		read   func(string) error
		input  string
		substr string
	}{
		{"dims mismatch", readTextErr, "a 1 2\nb 1\n", "line 2"},
		{"bad float", readTextErr, "a 1 x\n", "line 1"},
		{"duplicate word", readTextErr, "a 1\na 2\n", ""},
		{"textdims rows", readTextDimsErr, "3 1\na 1\nb 2\n", "rows"},
		{"textdims dims", readTextDimsErr, "2 2\na 1 2\nb 2\n", "line 3"},
		{"textdims header", readTextDimsErr, "a 1 2\n", "header"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.read(tt.input)
			require.ErrorIs(t, err, model.ErrMalformedInput)
			assert.Contains(t, err.Error(), tt.substr)
		})
	}
}

func readTextErr(s string) error {
	_, err := ReadText(strings.NewReader(s))
	return err
}

func readTextDimsErr(s string) error {
	_, err := ReadTextDims(strings.NewReader(s))
	return err
}

func TestCompressedStreams(t *testing.T) {
	e := simpleEmbeddings(t, 6, 3)

	for _, c := range []Compression{CompressionZstd, CompressionLZ4} {
		for _, f := range []Format{FormatFinalfusion, FormatWord2Vec, FormatTextDims} {
			t.Run(c.String()+"/"+f.String(), func(t *testing.T) {
				var buf bytes.Buffer
				require.NoError(t, Write(&buf, e, f, c))

				rc, detected, err := Decompress(bytes.NewReader(buf.Bytes()))
				require.NoError(t, err)
				require.NoError(t, rc.Close())
				assert.Equal(t, c, detected)

				got, err := Read(bytes.NewReader(buf.Bytes()), f)
				require.NoError(t, err)
				assertSameRows(t, e.Storage(), got.Storage())
			})
		}
	}
}

func TestParseFormat(t *testing.T) {
	for _, f := range []Format{FormatFinalfusion, FormatWord2Vec, FormatText, FormatTextDims, FormatFastText} {
		got, err := ParseFormat(f.String())
		require.NoError(t, err)
		assert.Equal(t, f, got)
	}
	_, err := ParseFormat("glove")
	assert.ErrorIs(t, err, model.ErrUnsupportedConfiguration)

	_, err = ParseCompression("bzip2")
	assert.ErrorIs(t, err, model.ErrUnsupportedConfiguration)
}

func TestFormatFromPath(t *testing.T) {
	tests := []struct {
		path string
		f    Format
		c    Compression
		ok   bool
	}{
		{"a/vectors.fifu", FormatFinalfusion, CompressionNone, true},
		{"vectors.bin.zst", FormatWord2Vec, CompressionZstd, true},
		{"vectors.TXT.lz4", FormatText, CompressionLZ4, true},
		{"vectors.dat", 0, CompressionNone, false},
	}
	for _, tt := range tests {
		f, c, ok := FormatFromPath(tt.path)
		assert.Equal(t, tt.ok, ok, tt.path)
		if ok {
			assert.Equal(t, tt.f, f, tt.path)
		}
		assert.Equal(t, tt.c, c, tt.path)
	}
}
