package quantization

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"runtime"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/hupe1980/fusion/internal/kmeans"
	"github.com/hupe1980/fusion/model"
	"github.com/hupe1980/fusion/storage"
)

// Config controls product quantization.
type Config struct {
	// Subspaces is the number of chunks each row is split into.
	Subspaces int
	// CodebookSize is the number of centroids per subspace (1..256).
	CodebookSize int
	// Iterations caps the k-means updates per attempt.
	Iterations int
	// Attempts is the number of k-means runs per subspace; the run with the
	// lowest inertia wins.
	Attempts int
	// Normalize trains on unit-length rows and stores the original norms.
	Normalize bool
	// Seed makes training reproducible.
	Seed int64
	// Workers bounds concurrently trained subspaces; <= 0 means GOMAXPROCS.
	Workers int
	// Logger receives per-subspace progress at debug level. May be nil.
	Logger *slog.Logger
}

// DefaultConfig returns the configuration used by the command line tools.
func DefaultConfig() Config {
	return Config{
		Subspaces:    10,
		CodebookSize: storage.MaxCodebookSize,
		Iterations:   100,
		Attempts:     1,
		Seed:         42,
	}
}

// SubspaceReport describes the clustering selected for one subspace.
type SubspaceReport struct {
	Inertia    float64
	MaxDist    float32
	Iterations int
	Converged  bool
}

// Report summarises a quantization run.
type Report struct {
	Subspaces []SubspaceReport
	// Normalized reports whether training ran on unit-length rows.
	Normalized bool
}

// ReconstructionBound returns the largest possible Euclidean distance between
// a trained row and its reconstruction. If the run was normalized the bound
// applies to the unit-length rows and scales with each row's norm.
func (r *Report) ReconstructionBound() float32 {
	var sum float64
	for _, s := range r.Subspaces {
		sum += float64(s.MaxDist) * float64(s.MaxDist)
	}
	return float32(math.Sqrt(sum))
}

// Validate checks cfg against a matrix shape.
func (cfg Config) Validate(rows, dims int) error {
	if cfg.Subspaces <= 0 {
		return model.Unsupported("subspace count must be positive, got %d", cfg.Subspaces)
	}
	if dims%cfg.Subspaces != 0 {
		return fmt.Errorf("%w: %d dims not divisible by %d subspaces", model.ErrShapeMismatch, dims, cfg.Subspaces)
	}
	if cfg.CodebookSize < 1 || cfg.CodebookSize > storage.MaxCodebookSize {
		return model.Unsupported("codebook size %d outside 1..%d", cfg.CodebookSize, storage.MaxCodebookSize)
	}
	if rows < cfg.CodebookSize {
		return model.Unsupported("codebook size %d exceeds %d rows", cfg.CodebookSize, rows)
	}
	if cfg.Iterations < 0 {
		return model.Unsupported("iterations must not be negative, got %d", cfg.Iterations)
	}
	if cfg.Attempts < 1 {
		return model.Unsupported("attempts must be positive, got %d", cfg.Attempts)
	}
	return nil
}

// Quantize trains a product quantizer on s and returns the encoded storage.
func Quantize(ctx context.Context, s storage.Storage, cfg Config) (*storage.Quantized, *Report, error) {
	rows, dims := s.Shape()
	if err := cfg.Validate(rows, dims); err != nil {
		return nil, nil, err
	}

	dense, ok := s.(*storage.Dense)
	if !ok {
		dense = storage.Reconstruct(s)
	}

	var norms []float32
	if cfg.Normalize {
		dense, norms = storage.Normalize(dense)
	}

	workers := cfg.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	m := cfg.Subspaces
	k := cfg.CodebookSize
	subDims := dims / m
	data := dense.Matrix()

	codebooks := make([]float32, m*k*subDims)
	codes := make([]uint8, rows*m)
	report := &Report{Subspaces: make([]SubspaceReport, m), Normalized: cfg.Normalize}
	errs := make([]error, m)

	sem := semaphore.NewWeighted(int64(workers))
	var wg sync.WaitGroup

	for sub := range m {
		if err := sem.Acquire(ctx, 1); err != nil {
			errs[sub] = err
			break
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer sem.Release(1)

			res, err := trainSubspace(ctx, data, rows, dims, sub, subDims, cfg, workers)
			if err != nil {
				errs[sub] = fmt.Errorf("subspace %d: %w", sub, err)
				return
			}

			copy(codebooks[sub*k*subDims:(sub+1)*k*subDims], res.Centroids)
			for i, c := range res.Assignments {
				codes[i*m+sub] = uint8(c)
			}
			report.Subspaces[sub] = SubspaceReport{
				Inertia:    res.Inertia,
				MaxDist:    res.MaxDist,
				Iterations: res.Iterations,
				Converged:  res.Converged,
			}

			if cfg.Logger != nil {
				cfg.Logger.LogAttrs(ctx, slog.LevelDebug, "trained subspace",
					slog.Int("subspace", sub),
					slog.Float64("inertia", res.Inertia),
					slog.Int("iterations", res.Iterations),
					slog.Bool("converged", res.Converged),
				)
			}
		}()
	}
	wg.Wait()

	if err := errors.Join(errs...); err != nil {
		return nil, nil, err
	}

	q, err := storage.NewQuantized(storage.QuantizedParams{
		Rows:         rows,
		Dims:         dims,
		Subspaces:    m,
		CodebookSize: k,
		Codebooks:    codebooks,
		Codes:        codes,
		Norms:        norms,
	})
	if err != nil {
		return nil, nil, err
	}
	return q, report, nil
}

// trainSubspace runs cfg.Attempts k-means runs on one column block and keeps
// the lowest-inertia result.
func trainSubspace(ctx context.Context, data []float32, rows, dims, sub, subDims int, cfg Config, workers int) (*kmeans.Result, error) {
	vectors := make([]float32, rows*subDims)
	offset := sub * subDims
	for i := range rows {
		copy(vectors[i*subDims:(i+1)*subDims], data[i*dims+offset:i*dims+offset+subDims])
	}

	var best *kmeans.Result
	for attempt := range cfg.Attempts {
		res, err := kmeans.Train(ctx, vectors, subDims, kmeans.Config{
			K:          cfg.CodebookSize,
			Iterations: cfg.Iterations,
			Seed:       cfg.Seed + int64(sub*cfg.Attempts+attempt),
			Workers:    workers,
		})
		if err != nil {
			return nil, err
		}
		if best == nil || res.Inertia < best.Inertia {
			best = res
		}
	}
	return best, nil
}
