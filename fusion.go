package fusion

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/hupe1980/fusion/blobstore"
	"github.com/hupe1980/fusion/codec"
	"github.com/hupe1980/fusion/embeddings"
	"github.com/hupe1980/fusion/eval"
	"github.com/hupe1980/fusion/internal/mmap"
	"github.com/hupe1980/fusion/metadata"
	"github.com/hupe1980/fusion/quantization"
	"github.com/hupe1980/fusion/storage"
)

// Model is a loaded set of embeddings with logging and metrics attached.
// It is safe for concurrent queries.
type Model struct {
	emb     *embeddings.Embeddings
	metrics MetricsCollector
	logger  *Logger
	workers int
	closed  atomic.Bool
}

// mapper is implemented by local blobs.
type mapper interface {
	Mapping() *mmap.Mapping
}

// New wraps embeddings built in memory.
func New(e *embeddings.Embeddings, opts ...Option) *Model {
	o := applyOptions(opts)
	return newModel(e, o)
}

func newModel(e *embeddings.Embeddings, o options) *Model {
	return &Model{
		emb:     e,
		metrics: o.metricsCollector,
		logger:  o.logger,
		workers: o.workers,
	}
}

// Open reads the embeddings file named by src.
//
// Local finalfusion files are memory-mapped unless WithMmap(false) is
// given; everything else is streamed into memory. Compressed files are
// detected from their content.
func Open(ctx context.Context, src Source, opts ...Option) (*Model, error) {
	o := applyOptions(opts)
	format, _ := resolveFormat(src.name, o)

	start := time.Now()
	e, mapped, err := load(ctx, src, format, o.mmap)
	if err == nil && o.normalize {
		e, err = normalize(e)
	}
	o.metricsCollector.RecordLoad(format.String(), time.Since(start), err)
	if err != nil {
		o.logger.LogLoad(ctx, src.name, format.String(), 0, 0, false, err)
		return nil, fmt.Errorf("open %s: %w", src.name, err)
	}
	o.logger.LogLoad(ctx, src.name, format.String(), e.Len(), e.Dims(), mapped, nil)
	return newModel(e, o), nil
}

func resolveFormat(name string, o options) (codec.Format, codec.Compression) {
	f, c, ok := codec.FormatFromPath(name)
	if !ok {
		f = codec.FormatFinalfusion
	}
	if o.format != nil {
		f = *o.format
	}
	if o.compression != nil {
		c = *o.compression
	}
	return f, c
}

func load(ctx context.Context, src Source, f codec.Format, useMmap bool) (*embeddings.Embeddings, bool, error) {
	blob, err := src.store.Open(ctx, src.name)
	if err != nil {
		return nil, false, err
	}

	if mb, ok := blob.(mapper); ok && useMmap && f == codec.FormatFinalfusion && codec.IsFinalfusion(mb.Mapping().Bytes()) {
		// The embeddings own the mapping from here on.
		e, err := codec.FromMapping(mb.Mapping())
		if err != nil {
			_ = blob.Close()
			return nil, false, err
		}
		return e, true, nil
	}

	e, err := codec.Read(blobstore.NewReader(ctx, blob), f)
	return e, false, errors.Join(err, blob.Close())
}

// normalize unit-scales e unless it already carries norms.
func normalize(e *embeddings.Embeddings) (*embeddings.Embeddings, error) {
	if e.Norms() != nil {
		return e, nil
	}
	n, err := e.Normalize()
	if err != nil {
		return nil, err
	}
	// The normalised copy is owned; release any mapping.
	if cerr := e.Close(); cerr != nil {
		return nil, cerr
	}
	return n, nil
}

// Save writes the embeddings to dst. The format and compression follow the
// options, or are guessed from the name.
func (m *Model) Save(ctx context.Context, dst Source, opts ...Option) error {
	if m.closed.Load() {
		return ErrClosed
	}
	o := applyOptions(opts)
	format, compression := resolveFormat(dst.name, o)

	start := time.Now()
	err := m.save(ctx, dst, format, compression)
	m.metrics.RecordSave(format.String(), time.Since(start), err)
	m.logger.LogSave(ctx, dst.name, format.String(), err)
	if err != nil {
		return fmt.Errorf("save %s: %w", dst.name, err)
	}
	return nil
}

func (m *Model) save(ctx context.Context, dst Source, f codec.Format, c codec.Compression) error {
	w, err := dst.store.Create(ctx, dst.name)
	if err != nil {
		return err
	}
	if err := codec.Write(w, m.emb, f, c); err != nil {
		_ = w.Abort()
		return err
	}
	return w.Close()
}

// Embeddings returns the underlying embeddings.
func (m *Model) Embeddings() *embeddings.Embeddings { return m.emb }

// Len returns the vocabulary size.
func (m *Model) Len() int { return m.emb.Len() }

// Dims returns the embedding dimensionality.
func (m *Model) Dims() int { return m.emb.Dims() }

// Quantized reports whether the storage is product-quantized.
func (m *Model) Quantized() bool {
	_, ok := m.emb.Storage().(*storage.Quantized)
	return ok
}

// Metadata returns the metadata document, or nil.
func (m *Model) Metadata() *metadata.Metadata { return m.emb.Metadata() }

// SetMetadata replaces the metadata document.
func (m *Model) SetMetadata(md *metadata.Metadata) { m.emb.SetMetadata(md) }

// Embedding returns a copy of the embedding of word. Unknown words are
// composed from subword n-grams where the vocabulary supports it.
func (m *Model) Embedding(word string) ([]float32, bool) {
	return m.emb.Embedding(word)
}

// Quantize returns a model with product-quantized storage. Workers from
// the model options bound the parallelism unless cfg sets its own.
func (m *Model) Quantize(ctx context.Context, cfg quantization.Config) (*Model, *quantization.Report, error) {
	if m.closed.Load() {
		return nil, nil, ErrClosed
	}
	if cfg.Workers <= 0 {
		cfg.Workers = m.workers
	}
	if cfg.Logger == nil {
		cfg.Logger = m.logger.Logger
	}

	start := time.Now()
	q, report, err := m.emb.Quantize(ctx, cfg)
	m.metrics.RecordQuantize(time.Since(start), err)
	var bound float32
	if report != nil {
		bound = report.ReconstructionBound()
	}
	m.logger.LogQuantize(ctx, cfg.Subspaces, cfg.CodebookSize, bound, err)
	if err != nil {
		return nil, nil, err
	}
	return &Model{emb: q, metrics: m.metrics, logger: m.logger, workers: m.workers}, report, nil
}

// Evaluate parses analogy instances from r and scores them.
func (m *Model) Evaluate(ctx context.Context, r io.Reader) (*eval.Report, error) {
	if m.closed.Load() {
		return nil, ErrClosed
	}
	start := time.Now()
	instances, err := eval.Parse(r)
	if err != nil {
		m.metrics.RecordEvaluate(0, time.Since(start), err)
		m.logger.LogEvaluate(ctx, 0, 0, 0, err)
		return nil, err
	}

	report, err := eval.Evaluate(ctx, m.emb, instances, eval.Options{
		Workers: m.workers,
		Logger:  m.logger.Logger,
	})
	m.metrics.RecordEvaluate(len(instances), time.Since(start), err)
	if err != nil {
		m.logger.LogEvaluate(ctx, 0, 0, 0, err)
		return nil, err
	}
	m.logger.LogEvaluate(ctx, report.Total, report.Correct, report.Skipped, nil)
	return report, nil
}

// Close releases the memory mapping, if any. Calling Close more than once
// is a no-op.
func (m *Model) Close() error {
	if m.closed.Swap(true) {
		return nil
	}
	return m.emb.Close()
}
