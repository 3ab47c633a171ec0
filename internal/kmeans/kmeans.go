package kmeans

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/fusion/distance"
)

// chunkRows is the number of rows assigned per task.
const chunkRows = 1024

// ErrTooFewVectors is returned when there are fewer vectors than clusters.
var ErrTooFewVectors = errors.New("kmeans: fewer vectors than clusters")

// Config controls a single clustering run.
type Config struct {
	// K is the number of clusters.
	K int
	// Iterations caps the number of centroid updates.
	Iterations int
	// Seed drives centroid initialisation and empty-cluster reseeding.
	Seed int64
	// Workers bounds concurrent chunk tasks; <= 0 means GOMAXPROCS.
	Workers int
}

// Result is a trained clustering.
type Result struct {
	// Centroids holds K*dim values.
	Centroids []float32
	// Assignments holds the nearest centroid of every vector.
	Assignments []int
	// Inertia is the sum of squared distances to the assigned centroids.
	Inertia float64
	// MaxDist is the largest Euclidean distance of a vector to its centroid.
	MaxDist float32
	// Iterations is the number of centroid updates performed.
	Iterations int
	// Converged reports whether assignments stabilised before the cap.
	Converged bool
}

type partial struct {
	sums    []float32
	counts  []int
	changed bool
	inertia float64
	maxSq   float32
}

// Train clusters n = len(vectors)/dim vectors into cfg.K centroids.
func Train(ctx context.Context, vectors []float32, dim int, cfg Config) (*Result, error) {
	if dim <= 0 || len(vectors)%dim != 0 {
		return nil, errors.New("kmeans: vector data is not a multiple of dim")
	}
	n := len(vectors) / dim
	k := cfg.K
	if k <= 0 {
		return nil, errors.New("kmeans: k must be positive")
	}
	if n < k {
		return nil, ErrTooFewVectors
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	rng := rand.New(rand.NewSource(cfg.Seed))

	centroids := make([]float32, k*dim)
	perm := rng.Perm(n)
	for c := range k {
		copy(centroids[c*dim:(c+1)*dim], vectors[perm[c]*dim:(perm[c]+1)*dim])
	}

	assignments := make([]int, n)
	for i := range assignments {
		assignments[i] = -1
	}

	nChunks := (n + chunkRows - 1) / chunkRows
	partials := make([]partial, nChunks)
	for i := range partials {
		partials[i] = partial{sums: make([]float32, k*dim), counts: make([]int, k)}
	}

	res := &Result{Centroids: centroids, Assignments: assignments}
	for iter := 0; ; iter++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := assign(ctx, vectors, dim, centroids, assignments, partials, workers); err != nil {
			return nil, err
		}

		changed := false
		for i := range partials {
			changed = changed || partials[i].changed
		}
		if !changed {
			res.Converged = true
			break
		}
		if iter >= cfg.Iterations {
			break
		}

		update(vectors, dim, centroids, partials, rng)
		res.Iterations++
	}

	var maxSq float32
	for i := range partials {
		res.Inertia += partials[i].inertia
		maxSq = max(maxSq, partials[i].maxSq)
	}
	res.MaxDist = float32(math.Sqrt(float64(maxSq)))

	return res, nil
}

// assign computes nearest centroids and per-chunk partial sums.
func assign(ctx context.Context, vectors []float32, dim int, centroids []float32, assignments []int, partials []partial, workers int) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	n := len(assignments)
	for ci := range partials {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			p := &partials[ci]
			clear(p.sums)
			clear(p.counts)
			p.changed = false
			p.inertia = 0
			p.maxSq = 0

			start := ci * chunkRows
			end := min(start+chunkRows, n)
			for i := start; i < end; i++ {
				vec := vectors[i*dim : (i+1)*dim]
				best, d := Nearest(vec, centroids, dim)
				if assignments[i] != best {
					assignments[i] = best
					p.changed = true
				}
				distance.AddScaled(p.sums[best*dim:(best+1)*dim], 1, vec)
				p.counts[best]++
				p.inertia += float64(d)
				p.maxSq = max(p.maxSq, d)
			}
			return nil
		})
	}
	return g.Wait()
}

// update merges partial sums in chunk order and recomputes centroids.
// Empty clusters are reseeded with a random vector.
func update(vectors []float32, dim int, centroids []float32, partials []partial, rng *rand.Rand) {
	k := len(centroids) / dim
	n := len(vectors) / dim

	sums := partials[0].sums
	counts := partials[0].counts
	for i := 1; i < len(partials); i++ {
		distance.AddScaled(sums, 1, partials[i].sums)
		for c, cnt := range partials[i].counts {
			counts[c] += cnt
		}
	}

	for c := range k {
		centroid := centroids[c*dim : (c+1)*dim]
		if counts[c] == 0 {
			idx := rng.Intn(n)
			copy(centroid, vectors[idx*dim:(idx+1)*dim])
			continue
		}
		copy(centroid, sums[c*dim:(c+1)*dim])
		distance.ScaleInPlace(centroid, 1/float32(counts[c]))
	}
}

// Nearest returns the index of the centroid closest to vec and its squared
// Euclidean distance. Ties resolve to the lower index.
func Nearest(vec, centroids []float32, dim int) (int, float32) {
	best := 0
	bestDist := float32(math.Inf(1))
	for c := 0; c*dim < len(centroids); c++ {
		d := distance.SquaredL2(vec, centroids[c*dim:(c+1)*dim])
		if d < bestDist {
			best, bestDist = c, d
		}
	}
	return best, bestDist
}
