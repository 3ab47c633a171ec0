package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/fusion/distance"
	"github.com/hupe1980/fusion/internal/conv"
	"github.com/hupe1980/fusion/model"
)

func testDense(t *testing.T) *Dense {
	t.Helper()
	d, err := NewDenseFromRows([][]float32{
		{1, 0, 0},
		{0, 3, 4},
		{0, 0, 0},
	})
	require.NoError(t, err)
	return d
}

func testQuantized(t *testing.T, norms []float32) *Quantized {
	t.Helper()
	q, err := NewQuantized(QuantizedParams{
		Rows:         3,
		Dims:         4,
		Subspaces:    2,
		CodebookSize: 2,
		Codebooks: []float32{
			1, 0, 0, 1, // subspace 0: c0, c1
			2, 2, 0, -1, // subspace 1: c0, c1
		},
		Codes: []uint8{
			0, 0,
			1, 1,
			0, 1,
		},
		Norms: norms,
	})
	require.NoError(t, err)
	return q
}

func TestDenseRow(t *testing.T) {
	d := testDense(t)

	rows, dims := d.Shape()
	assert.Equal(t, 3, rows)
	assert.Equal(t, 3, dims)

	r, err := d.Row(1)
	require.NoError(t, err)
	assert.Equal(t, []float32{0, 3, 4}, r)
	assert.Equal(t, 3, cap(r))
}

func TestDenseDotsAndNorms(t *testing.T) {
	d := testDense(t)

	dots, err := d.Dots([]float32{1, 1, 1})
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float32{1, 7, 0}, dots, 1e-6)

	assert.InDeltaSlice(t, []float32{1, 5, 0}, d.RowNorms(), 1e-6)

	_, err = d.Dots([]float32{1, 1})
	assert.ErrorIs(t, err, model.ErrShapeMismatch)
}

func TestNewDenseShape(t *testing.T) {
	_, err := NewDense(make([]float32, 5), 2, 3)
	assert.ErrorIs(t, err, model.ErrShapeMismatch)

	_, err = NewDenseFromRows([][]float32{{1, 2}, {3}})
	assert.ErrorIs(t, err, model.ErrShapeMismatch)

	empty, err := NewDenseFromRows(nil)
	require.NoError(t, err)
	rows, _ := empty.Shape()
	assert.Equal(t, 0, rows)
}

func TestDenseView(t *testing.T) {
	src := []float32{1, 2, 3, 4, 5, 6}
	b := make([]byte, 4*len(src))
	conv.EncodeFloat32s(b, src)

	d, err := DenseView(b, 2, 3)
	require.NoError(t, err)
	assert.Equal(t, conv.HostLittleEndian, d.Mapped())
	assert.Equal(t, src, d.Matrix())

	_, err = DenseView(b[:20], 2, 3)
	assert.ErrorIs(t, err, model.ErrShapeMismatch)
}

func TestNormalize(t *testing.T) {
	d := testDense(t)
	n, norms := Normalize(d)

	assert.InDeltaSlice(t, []float32{1, 5, 0}, norms, 1e-6)
	r, err := n.Row(1)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float32{0, 0.6, 0.8}, r, 1e-6)

	// The source is untouched.
	orig, _ := d.Row(1)
	assert.Equal(t, []float32{0, 3, 4}, orig)
}

func testProjectedQuantized(t *testing.T, norms []float32) *Quantized {
	t.Helper()
	base := testQuantized(t, nil)
	q, err := NewQuantized(QuantizedParams{
		Rows:         3,
		Dims:         4,
		Subspaces:    2,
		CodebookSize: 2,
		Codebooks:    base.Codebooks(),
		Codes:        base.Codes(),
		Norms:        norms,
		Projection: []float32{
			0, 1, 0, 0,
			1, 0, 0, 0,
			0, 0, 2, 0,
			0, 0, 1, 1,
		},
	})
	require.NoError(t, err)
	return q
}

func TestQuantizedRow(t *testing.T) {
	q := testQuantized(t, nil)

	r, err := q.Row(1)
	require.NoError(t, err)
	assert.Equal(t, []float32{0, 1, 0, -1}, r)

	again, err := q.Row(1)
	require.NoError(t, err)
	assert.Equal(t, r, again)

	scaled := testQuantized(t, []float32{1, 2, 0.5})
	r, err = scaled.Row(1)
	require.NoError(t, err)
	assert.Equal(t, []float32{0, 2, 0, -2}, r)
}

func TestQuantizedProjectedRow(t *testing.T) {
	q := testProjectedQuantized(t, nil)
	r, err := q.Row(1)
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 0, 0, -1}, r)

	r, err = q.Row(0)
	require.NoError(t, err)
	assert.Equal(t, []float32{0, 1, 4, 4}, r)

	scaled := testProjectedQuantized(t, []float32{1, 2, 0.5})
	r, err = scaled.Row(1)
	require.NoError(t, err)
	assert.Equal(t, []float32{2, 0, 0, -2}, r)
}

func TestQuantizedProjectedDotsMatchReconstruction(t *testing.T) {
	for _, norms := range [][]float32{nil, {1, 2, 0.5}} {
		q := testProjectedQuantized(t, norms)
		query := []float32{0.5, -1, 2, 3}

		dots, err := q.Dots(query)
		require.NoError(t, err)

		dense := Reconstruct(q)
		want, err := dense.Dots(query)
		require.NoError(t, err)
		assert.InDeltaSlice(t, want, dots, 1e-5)
		assert.InDeltaSlice(t, dense.RowNorms(), q.RowNorms(), 1e-5)

		h, err := Head(q, 2)
		require.NoError(t, err)
		hr, err := h.Row(1)
		require.NoError(t, err)
		want1, _ := q.Row(1)
		assert.Equal(t, want1, hr)
	}
}

func TestQuantizedDotsMatchReconstruction(t *testing.T) {
	for _, norms := range [][]float32{nil, {1, 2, 0.5}} {
		q := testQuantized(t, norms)
		query := []float32{0.5, -1, 2, 3}

		dots, err := q.Dots(query)
		require.NoError(t, err)

		dense := Reconstruct(q)
		want, err := dense.Dots(query)
		require.NoError(t, err)
		assert.InDeltaSlice(t, want, dots, 1e-5)

		assert.InDeltaSlice(t, dense.RowNorms(), q.RowNorms(), 1e-5)
	}
}

func TestQuantizedValidation(t *testing.T) {
	base := QuantizedParams{
		Rows: 1, Dims: 4, Subspaces: 2, CodebookSize: 2,
		Codebooks: make([]float32, 8),
		Codes:     []uint8{0, 1},
	}

	p := base
	p.Dims = 5
	_, err := NewQuantized(p)
	assert.ErrorIs(t, err, model.ErrShapeMismatch)

	p = base
	p.CodebookSize = 0
	_, err = NewQuantized(p)
	assert.ErrorIs(t, err, model.ErrUnsupportedConfiguration)

	p = base
	p.CodebookSize = 257
	_, err = NewQuantized(p)
	assert.ErrorIs(t, err, model.ErrUnsupportedConfiguration)

	p = base
	p.Codes = []uint8{0, 2}
	_, err = NewQuantized(p)
	assert.ErrorIs(t, err, model.ErrMalformedInput)

	p = base
	p.Codes = []uint8{0}
	_, err = NewQuantized(p)
	assert.ErrorIs(t, err, model.ErrShapeMismatch)

	p = base
	p.Norms = []float32{1, 2}
	_, err = NewQuantized(p)
	assert.ErrorIs(t, err, model.ErrShapeMismatch)

	p = base
	p.Projection = make([]float32, 4)
	_, err = NewQuantized(p)
	assert.ErrorIs(t, err, model.ErrShapeMismatch)
}

func TestRowOutOfBounds(t *testing.T) {
	variants := map[string]Storage{
		"dense":     testDense(t),
		"quantized": testQuantized(t, nil),
	}
	for name, s := range variants {
		t.Run(name, func(t *testing.T) {
			rows, _ := s.Shape()

			_, err := s.Row(rows)
			require.ErrorIs(t, err, model.ErrOutOfBounds)

			var ie *model.IndexError
			require.ErrorAs(t, err, &ie)
			assert.Equal(t, rows, ie.Index)

			_, err = s.Row(-1)
			assert.ErrorIs(t, err, model.ErrOutOfBounds)
		})
	}
}

func TestReconstructDenseCopies(t *testing.T) {
	d := testDense(t)
	c := Reconstruct(d)
	assert.Equal(t, d.Matrix(), c.Matrix())
	c.Matrix()[0] = 42
	assert.Equal(t, float32(1), d.Matrix()[0])
	assert.InDelta(t, float32(5), distance.Norm(c.Matrix()[3:6]), 1e-6)
}

func TestHead(t *testing.T) {
	for name, s := range map[string]Storage{
		"dense":     testDense(t),
		"quantized": testQuantized(t, []float32{1, 2, 0.5}),
	} {
		t.Run(name, func(t *testing.T) {
			h, err := Head(s, 2)
			require.NoError(t, err)

			rows, dims := h.Shape()
			assert.Equal(t, 2, rows)
			_, fullDims := s.Shape()
			assert.Equal(t, fullDims, dims)

			want, _ := s.Row(1)
			got, err := h.Row(1)
			require.NoError(t, err)
			assert.Equal(t, want, got)

			_, err = h.Row(2)
			assert.ErrorIs(t, err, model.ErrOutOfBounds)

			query := make([]float32, dims)
			query[0] = 1
			hd, err := h.Dots(query)
			require.NoError(t, err)
			full, err := s.Dots(query)
			require.NoError(t, err)
			assert.Equal(t, full[:2], hd)
			assert.Equal(t, s.RowNorms()[:2], h.RowNorms())

			_, err = Head(s, 4)
			assert.ErrorIs(t, err, model.ErrOutOfBounds)

			same, err := Head(s, 3)
			require.NoError(t, err)
			assert.Same(t, s, same)
		})
	}
}
