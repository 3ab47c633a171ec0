package storage

import (
	"fmt"
	"sync"

	"github.com/hupe1980/fusion/distance"
	"github.com/hupe1980/fusion/internal/conv"
	"github.com/hupe1980/fusion/model"
)

// Dense is a row-major float32 matrix.
type Dense struct {
	data   []float32
	rows   int
	dims   int
	mapped bool

	normsOnce sync.Once
	norms     []float32
}

// NewDense wraps data as a rows×dims matrix. The slice is owned by the
// returned Dense afterwards.
func NewDense(data []float32, rows, dims int) (*Dense, error) {
	n, err := conv.MulInt(rows, dims)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrShapeMismatch, err)
	}
	if len(data) != n {
		return nil, &model.ShapeError{What: "matrix elements", Expected: n, Actual: len(data)}
	}
	return &Dense{data: data, rows: rows, dims: dims}, nil
}

// NewDenseFromRows copies equally sized rows into a matrix.
func NewDenseFromRows(rows [][]float32) (*Dense, error) {
	if len(rows) == 0 {
		return &Dense{}, nil
	}
	dims := len(rows[0])
	data := make([]float32, 0, len(rows)*dims)
	for _, r := range rows {
		if len(r) != dims {
			return nil, &model.ShapeError{What: "row dimensions", Expected: dims, Actual: len(r)}
		}
		data = append(data, r...)
	}
	return &Dense{data: data, rows: len(rows), dims: dims}, nil
}

// DenseView interprets little-endian f32 bytes as a rows×dims matrix. When b
// is suitably aligned on a little-endian host the result is a zero-copy view
// and b must outlive it; otherwise the values are copied.
func DenseView(b []byte, rows, dims int) (*Dense, error) {
	n, err := conv.MulInt(rows, dims)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrShapeMismatch, err)
	}
	if len(b) != 4*n {
		return nil, &model.ShapeError{What: "matrix bytes", Expected: 4 * n, Actual: len(b)}
	}
	if view, ok := conv.BytesAsFloat32s(b); ok {
		return &Dense{data: view, rows: rows, dims: dims, mapped: true}, nil
	}
	data := make([]float32, n)
	conv.DecodeFloat32s(data, b)
	return &Dense{data: data, rows: rows, dims: dims}, nil
}

// Shape returns (rows, dims).
func (d *Dense) Shape() (int, int) { return d.rows, d.dims }

// Row returns a read-only view of row idx.
func (d *Dense) Row(idx int) ([]float32, error) {
	if err := checkRow(idx, d.rows); err != nil {
		return nil, err
	}
	start := idx * d.dims
	end := start + d.dims
	return d.data[start:end:end], nil
}

// Matrix returns the backing row-major data. It must not be modified.
func (d *Dense) Matrix() []float32 { return d.data }

// Mapped reports whether the matrix is a view of external memory.
func (d *Dense) Mapped() bool { return d.mapped }

// Dots computes matrix·query with a single Gemv.
func (d *Dense) Dots(query []float32) ([]float32, error) {
	if err := checkQuery(query, d.dims); err != nil {
		return nil, err
	}
	out := make([]float32, d.rows)
	distance.MatVec(d.data, d.rows, d.dims, query, out)
	return out, nil
}

// RowNorms returns the L2 norm of every row.
func (d *Dense) RowNorms() []float32 {
	d.normsOnce.Do(func() {
		d.norms = make([]float32, d.rows)
		for i := range d.rows {
			d.norms[i] = distance.Norm(d.data[i*d.dims : (i+1)*d.dims])
		}
	})
	return d.norms
}

func (*Dense) sealed() {}

// Normalize returns an owned copy of d with every row scaled to unit length,
// together with the original row norms. Zero rows stay zero and get norm 0.
func Normalize(d *Dense) (*Dense, []float32) {
	data := make([]float32, len(d.data))
	copy(data, d.data)
	norms := make([]float32, d.rows)
	for i := range d.rows {
		norms[i] = distance.NormalizeL2InPlace(data[i*d.dims : (i+1)*d.dims])
	}
	return &Dense{data: data, rows: d.rows, dims: d.dims}, norms
}
