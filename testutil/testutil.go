package testutil

import (
	"fmt"
	"math/rand"
	"sort"
	"sync"

	"github.com/hupe1980/fusion/distance"
	"github.com/hupe1980/fusion/storage"
)

// RNG wraps a seeded random source. It is safe for concurrent use.
type RNG struct {
	rand *rand.Rand
	seed int64
	mu   sync.Mutex
}

// NewRNG creates a new RNG instance with the specified seed.
func NewRNG(seed int64) *RNG {
	return &RNG{
		rand: rand.New(rand.NewSource(seed)),
		seed: seed,
	}
}

// Seed returns the initial seed.
func (r *RNG) Seed() int64 {
	return r.seed
}

// Intn returns a non-negative pseudo-random number in [0,n).
func (r *RNG) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Intn(n)
}

// FillUniformRange fills dst with random values in [minVal, maxVal).
func (r *RNG) FillUniformRange(dst []float32, minVal, maxVal float32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	span := maxVal - minVal
	for i := range dst {
		dst[i] = minVal + r.rand.Float32()*span
	}
}

// Matrix returns rows*dims values uniform in [-1, 1).
func (r *RNG) Matrix(rows, dims int) []float32 {
	data := make([]float32, rows*dims)
	r.FillUniformRange(data, -1, 1)
	return data
}

// Dense returns a random rows×dims matrix.
func (r *RNG) Dense(rows, dims int) *storage.Dense {
	d, err := storage.NewDense(r.Matrix(rows, dims), rows, dims)
	if err != nil {
		panic(err)
	}
	return d
}

// ClusteredDense returns rows drawn around clusters random centres with
// Gaussian noise of the given spread. Row i belongs to cluster i%clusters.
func (r *RNG) ClusteredDense(rows, dims, clusters int, spread float32) *storage.Dense {
	centres := r.Matrix(clusters, dims)

	r.mu.Lock()
	data := make([]float32, rows*dims)
	for i := range rows {
		c := i % clusters
		for j := range dims {
			data[i*dims+j] = centres[c*dims+j] + float32(r.rand.NormFloat64())*spread
		}
	}
	r.mu.Unlock()

	d, err := storage.NewDense(data, rows, dims)
	if err != nil {
		panic(err)
	}
	return d
}

// Words returns n distinct words "w0" ... "w<n-1>".
func Words(n int) []string {
	words := make([]string, n)
	for i := range words {
		words[i] = fmt.Sprintf("w%d", i)
	}
	return words
}

// Scored is a row index with its cosine similarity.
type Scored struct {
	Index      int
	Similarity float32
}

// ExactTopK computes the k rows most cosine-similar to query by brute force,
// row by row. Rows in exclude and zero rows are skipped. Ties order by index.
func ExactTopK(s storage.Storage, query []float32, k int, exclude map[int]bool) []Scored {
	rows, _ := s.Shape()
	qn := distance.Norm(query)
	if qn == 0 {
		return nil
	}

	var all []Scored
	for i := range rows {
		if exclude[i] {
			continue
		}
		row, err := s.Row(i)
		if err != nil {
			panic(err)
		}
		rn := distance.Norm(row)
		if rn == 0 {
			continue
		}
		all = append(all, Scored{Index: i, Similarity: distance.Dot(query, row) / (qn * rn)})
	}

	sort.SliceStable(all, func(a, b int) bool {
		if all[a].Similarity != all[b].Similarity {
			return all[a].Similarity > all[b].Similarity
		}
		return all[a].Index < all[b].Index
	})
	if len(all) > k {
		all = all[:k]
	}
	return all
}
