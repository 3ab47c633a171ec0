package storage

import (
	"fmt"
	"math"
	"sync"

	"github.com/hupe1980/fusion/distance"
	"github.com/hupe1980/fusion/internal/conv"
	"github.com/hupe1980/fusion/model"
)

// MaxCodebookSize is the largest codebook addressable by a one-byte code.
const MaxCodebookSize = 256

// QuantizedParams describes a product-quantized matrix.
type QuantizedParams struct {
	Rows         int
	Dims         int
	Subspaces    int
	CodebookSize int
	// Codebooks holds Subspaces×CodebookSize centroids of Dims/Subspaces values.
	Codebooks []float32
	// Codes holds Rows×Subspaces centroid indices.
	Codes []uint8
	// Norms optionally holds one scale per row.
	Norms []float32
	// Projection optionally holds a row-major Dims×Dims matrix P (OPQ).
	// A reconstructed row r becomes P·r before the norm is applied.
	Projection []float32
}

// Quantized is a product-quantized matrix. Row i is the concatenation of
// centroid codes[i*M+m] of codebook m for every subspace m, rotated by the
// projection if one is present and multiplied by norms[i] if norms are
// present.
type Quantized struct {
	rows, dims   int
	subspaces    int
	codebookSize int
	subDims      int
	codebooks    []float32
	codes        []uint8
	norms        []float32
	projection   []float32

	normsOnce sync.Once
	rowNorms  []float32
}

// NewQuantized validates p and builds the storage. Slices are retained.
func NewQuantized(p QuantizedParams) (*Quantized, error) {
	if p.Subspaces <= 0 {
		return nil, model.Unsupported("subspace count must be positive, got %d", p.Subspaces)
	}
	if p.Dims%p.Subspaces != 0 {
		return nil, fmt.Errorf("%w: %d dims not divisible by %d subspaces", model.ErrShapeMismatch, p.Dims, p.Subspaces)
	}
	if p.CodebookSize < 1 || p.CodebookSize > MaxCodebookSize {
		return nil, model.Unsupported("codebook size %d outside 1..%d", p.CodebookSize, MaxCodebookSize)
	}
	subDims := p.Dims / p.Subspaces

	nCodebook, err := conv.MulInt(p.Subspaces*p.CodebookSize, subDims)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrShapeMismatch, err)
	}
	if len(p.Codebooks) != nCodebook {
		return nil, &model.ShapeError{What: "codebook elements", Expected: nCodebook, Actual: len(p.Codebooks)}
	}
	nCodes, err := conv.MulInt(p.Rows, p.Subspaces)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrShapeMismatch, err)
	}
	if len(p.Codes) != nCodes {
		return nil, &model.ShapeError{What: "codes", Expected: nCodes, Actual: len(p.Codes)}
	}
	if p.Norms != nil && len(p.Norms) != p.Rows {
		return nil, &model.ShapeError{What: "norms", Expected: p.Rows, Actual: len(p.Norms)}
	}
	if p.Projection != nil {
		nProj, err := conv.MulInt(p.Dims, p.Dims)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", model.ErrShapeMismatch, err)
		}
		if len(p.Projection) != nProj {
			return nil, &model.ShapeError{What: "projection elements", Expected: nProj, Actual: len(p.Projection)}
		}
	}
	if p.CodebookSize < MaxCodebookSize {
		for i, c := range p.Codes {
			if int(c) >= p.CodebookSize {
				return nil, model.NewFormatError("quantized", fmt.Sprintf("code %d at %d exceeds codebook size %d", c, i, p.CodebookSize), nil)
			}
		}
	}

	return &Quantized{
		rows:         p.Rows,
		dims:         p.Dims,
		subspaces:    p.Subspaces,
		codebookSize: p.CodebookSize,
		subDims:      subDims,
		codebooks:    p.Codebooks,
		codes:        p.Codes,
		norms:        p.Norms,
		projection:   p.Projection,
	}, nil
}

// Shape returns (rows, dims).
func (q *Quantized) Shape() (int, int) { return q.rows, q.dims }

// Subspaces returns the number of subspaces.
func (q *Quantized) Subspaces() int { return q.subspaces }

// CodebookSize returns the number of centroids per subspace.
func (q *Quantized) CodebookSize() int { return q.codebookSize }

// SubspaceDims returns the width of one subspace.
func (q *Quantized) SubspaceDims() int { return q.subDims }

// Codebooks returns the centroids, subspace-major. It must not be modified.
func (q *Quantized) Codebooks() []float32 { return q.codebooks }

// Codes returns the row-major code matrix. It must not be modified.
func (q *Quantized) Codes() []uint8 { return q.codes }

// Norms returns the stored per-row scales, or nil.
func (q *Quantized) Norms() []float32 { return q.norms }

// Projection returns the row-major Dims×Dims projection, or nil.
func (q *Quantized) Projection() []float32 { return q.projection }

func (q *Quantized) centroid(m int, code uint8) []float32 {
	start := (m*q.codebookSize + int(code)) * q.subDims
	return q.codebooks[start : start+q.subDims]
}

// Row reconstructs row idx.
func (q *Quantized) Row(idx int) ([]float32, error) {
	if err := checkRow(idx, q.rows); err != nil {
		return nil, err
	}
	out := make([]float32, q.dims)
	q.decode(out, q.scratch(), idx)
	return out, nil
}

// scratch returns a buffer for decode, or nil without a projection.
func (q *Quantized) scratch() []float32 {
	if q.projection == nil {
		return nil
	}
	return make([]float32, q.dims)
}

// decode writes row idx to dst. With a projection, buf holds the unrotated
// centroids and must have Dims elements.
func (q *Quantized) decode(dst, buf []float32, idx int) {
	target := dst
	if q.projection != nil {
		target = buf
	}
	codes := q.codes[idx*q.subspaces : (idx+1)*q.subspaces]
	for m, code := range codes {
		copy(target[m*q.subDims:], q.centroid(m, code))
	}
	if q.projection != nil {
		distance.MatVec(q.projection, q.dims, q.dims, buf, dst)
	}
	if q.norms != nil {
		distance.ScaleInPlace(dst, q.norms[idx])
	}
}

func (q *Quantized) reconstruct() *Dense {
	data := make([]float32, q.rows*q.dims)
	buf := q.scratch()
	for i := range q.rows {
		q.decode(data[i*q.dims:(i+1)*q.dims], buf, i)
	}
	return &Dense{data: data, rows: q.rows, dims: q.dims}
}

// Dots scores query against every row using per-subspace lookup tables.
func (q *Quantized) Dots(query []float32) ([]float32, error) {
	if err := checkQuery(query, q.dims); err != nil {
		return nil, err
	}
	// (P·r)·query equals r·(Pᵀ·query).
	if q.projection != nil {
		rotated := make([]float32, q.dims)
		distance.MatTVec(q.projection, q.dims, q.dims, query, rotated)
		query = rotated
	}

	k := q.codebookSize
	tables := make([]float32, q.subspaces*k)
	for m := range q.subspaces {
		book := q.codebooks[m*k*q.subDims : (m+1)*k*q.subDims]
		distance.MatVec(book, k, q.subDims, query[m*q.subDims:(m+1)*q.subDims], tables[m*k:(m+1)*k])
	}

	out := make([]float32, q.rows)
	for i := range q.rows {
		codes := q.codes[i*q.subspaces : (i+1)*q.subspaces]
		var sum float32
		for m, code := range codes {
			sum += tables[m*k+int(code)]
		}
		if q.norms != nil {
			sum *= q.norms[i]
		}
		out[i] = sum
	}
	return out, nil
}

// RowNorms returns the L2 norm of every reconstructed row.
func (q *Quantized) RowNorms() []float32 {
	q.normsOnce.Do(func() {
		if q.projection != nil {
			q.rowNorms = q.decodedNorms()
			return
		}

		k := q.codebookSize
		sq := make([]float32, q.subspaces*k)
		for m := range q.subspaces {
			for c := range k {
				v := q.centroid(m, uint8(c))
				sq[m*k+c] = distance.Dot(v, v)
			}
		}

		q.rowNorms = make([]float32, q.rows)
		for i := range q.rows {
			codes := q.codes[i*q.subspaces : (i+1)*q.subspaces]
			var sum float32
			for m, code := range codes {
				sum += sq[m*k+int(code)]
			}
			n := float32(math.Sqrt(float64(sum)))
			if q.norms != nil {
				n *= float32(math.Abs(float64(q.norms[i])))
			}
			q.rowNorms[i] = n
		}
	})
	return q.rowNorms
}

// decodedNorms computes norms from full reconstructions, for projections
// that need not preserve length.
func (q *Quantized) decodedNorms() []float32 {
	out := make([]float32, q.rows)
	row := make([]float32, q.dims)
	buf := q.scratch()
	for i := range q.rows {
		q.decode(row, buf, i)
		out[i] = distance.Norm(row)
	}
	return out
}

func (*Quantized) sealed() {}
