package storage

import (
	"github.com/hupe1980/fusion/model"
)

// Storage is implemented by *Dense and *Quantized.
type Storage interface {
	// Shape returns the logical matrix shape.
	Shape() (rows, dims int)
	// Row returns row idx. Dense returns a read-only view, Quantized a fresh
	// reconstruction.
	Row(idx int) ([]float32, error)
	// Dots returns the dot product of query with every row.
	Dots(query []float32) ([]float32, error)
	// RowNorms returns the L2 norm of every row, computed on first use.
	RowNorms() []float32

	sealed()
}

func checkRow(idx, rows int) error {
	if idx < 0 || idx >= rows {
		return &model.IndexError{Index: idx, Len: rows}
	}
	return nil
}

func checkQuery(query []float32, dims int) error {
	if len(query) != dims {
		return &model.ShapeError{What: "query dimensions", Expected: dims, Actual: len(query)}
	}
	return nil
}

// Reconstruct returns all rows of s as an owned dense matrix.
func Reconstruct(s Storage) *Dense {
	switch v := s.(type) {
	case *Dense:
		data := make([]float32, len(v.data))
		copy(data, v.data)
		return &Dense{data: data, rows: v.rows, dims: v.dims}
	case *Quantized:
		return v.reconstruct()
	default:
		panic("storage: unknown variant")
	}
}

// Head returns a view of the first n rows of s. Views share the underlying
// data; row norms are cached separately.
func Head(s Storage, n int) (Storage, error) {
	rows, _ := s.Shape()
	if n < 0 || n > rows {
		return nil, &model.IndexError{Index: n, Len: rows}
	}
	if n == rows {
		return s, nil
	}
	switch v := s.(type) {
	case *Dense:
		end := n * v.dims
		return &Dense{data: v.data[:end:end], rows: n, dims: v.dims, mapped: v.mapped}, nil
	case *Quantized:
		h := &Quantized{
			rows:         n,
			dims:         v.dims,
			subspaces:    v.subspaces,
			codebookSize: v.codebookSize,
			subDims:      v.subDims,
			codebooks:    v.codebooks,
			codes:        v.codes[:n*v.subspaces],
			projection:   v.projection,
		}
		if v.norms != nil {
			h.norms = v.norms[:n]
		}
		return h, nil
	default:
		panic("storage: unknown variant")
	}
}
