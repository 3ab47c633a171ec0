package distance

import (
	"slices"

	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas32"
)

func vec(v []float32) blas32.Vector {
	return blas32.Vector{N: len(v), Inc: 1, Data: v}
}

// Dot calculates the dot product of two vectors.
// Assumes vectors are the same length (caller's responsibility).
func Dot(a, b []float32) float32 {
	if len(a) == 0 {
		return 0
	}
	return blas32.Dot(vec(a), vec(b[:len(a)]))
}

// Norm returns the L2 norm of v.
func Norm(v []float32) float32 {
	if len(v) == 0 {
		return 0
	}
	return blas32.Nrm2(vec(v))
}

// SquaredL2 calculates the squared L2 (Euclidean) distance between two vectors.
// Assumes vectors are the same length (caller's responsibility).
func SquaredL2(a, b []float32) float32 {
	var d float32
	for i := range a {
		diff := a[i] - b[i]
		d += diff * diff
	}
	return d
}

// ScaleInPlace multiplies all elements of v by alpha.
func ScaleInPlace(v []float32, alpha float32) {
	if len(v) == 0 {
		return
	}
	blas32.Scal(alpha, vec(v))
}

// AddScaled computes dst += alpha * src.
func AddScaled(dst []float32, alpha float32, src []float32) {
	if len(dst) == 0 {
		return
	}
	blas32.Axpy(alpha, vec(src[:len(dst)]), vec(dst))
}

// NormalizeL2InPlace L2-normalizes v in place and returns its original norm.
// Vectors with zero norm are left untouched and 0 is returned.
func NormalizeL2InPlace(v []float32) float32 {
	norm := Norm(v)
	if norm == 0 {
		return 0
	}
	ScaleInPlace(v, 1/norm)
	return norm
}

// NormalizeL2Copy returns a normalized copy of src.
// Returns false if src has zero L2 norm.
func NormalizeL2Copy(src []float32) ([]float32, bool) {
	dst := slices.Clone(src)
	if NormalizeL2InPlace(dst) == 0 {
		return nil, false
	}
	return dst, true
}

// Cosine returns the cosine similarity of a and b, or 0 when either vector
// has zero norm.
func Cosine(a, b []float32) float32 {
	na, nb := Norm(a), Norm(b)
	if na == 0 || nb == 0 {
		return 0
	}
	return Dot(a, b) / (na * nb)
}

// Analogy returns aStar - a + b.
func Analogy(a, aStar, b []float32) []float32 {
	out := slices.Clone(aStar)
	AddScaled(out, -1, a)
	AddScaled(out, 1, b)
	return out
}

// MatVec computes out[i] = dot(matrix[i*dims:(i+1)*dims], v) for every row of
// a row-major matrix.
func MatVec(matrix []float32, rows, dims int, v, out []float32) {
	if rows == 0 {
		return
	}
	if dims == 0 {
		clear(out[:rows])
		return
	}
	blas32.Gemv(
		blas.NoTrans,
		1,
		blas32.General{Rows: rows, Cols: dims, Stride: dims, Data: matrix[:rows*dims]},
		blas32.Vector{N: dims, Inc: 1, Data: v[:dims]},
		0,
		blas32.Vector{N: rows, Inc: 1, Data: out[:rows]},
	)
}

// MatTVec computes out = matrixᵀ·v for a row-major rows×dims matrix, so
// out[j] accumulates matrix[i*dims+j]*v[i] over all rows i.
func MatTVec(matrix []float32, rows, dims int, v, out []float32) {
	if dims == 0 {
		return
	}
	if rows == 0 {
		clear(out[:dims])
		return
	}
	blas32.Gemv(
		blas.Trans,
		1,
		blas32.General{Rows: rows, Cols: dims, Stride: dims, Data: matrix[:rows*dims]},
		blas32.Vector{N: rows, Inc: 1, Data: v[:rows]},
		0,
		blas32.Vector{N: dims, Inc: 1, Data: out[:dims]},
	)
}
