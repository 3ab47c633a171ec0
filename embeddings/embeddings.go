package embeddings

import (
	"context"
	"io"
	"slices"
	"sync"

	"github.com/hupe1980/fusion/distance"
	"github.com/hupe1980/fusion/metadata"
	"github.com/hupe1980/fusion/model"
	"github.com/hupe1980/fusion/quantization"
	"github.com/hupe1980/fusion/storage"
	"github.com/hupe1980/fusion/vocab"
)

// Embeddings is the triple of vocabulary, storage and metadata.
type Embeddings struct {
	vocab   vocab.Vocab
	storage storage.Storage
	words   storage.Storage // rows of exact vocabulary entries

	mu       sync.RWMutex
	metadata *metadata.Metadata

	norms  []float32
	closer io.Closer
}

// Option configures an Embeddings value.
type Option func(*Embeddings)

// WithMetadata attaches a metadata document.
func WithMetadata(md *metadata.Metadata) Option {
	return func(e *Embeddings) { e.metadata = md }
}

// WithNorms attaches the original norms of the vocabulary rows.
func WithNorms(norms []float32) Option {
	return func(e *Embeddings) { e.norms = norms }
}

// WithCloser registers the owner of memory the storage refers to, such as a
// file mapping. It is released by Close.
func WithCloser(c io.Closer) Option {
	return func(e *Embeddings) { e.closer = c }
}

// New composes embeddings. The storage must have exactly v.StorageLen() rows.
func New(v vocab.Vocab, s storage.Storage, opts ...Option) (*Embeddings, error) {
	e := &Embeddings{vocab: v, storage: s}
	for _, opt := range opts {
		opt(e)
	}

	rows, _ := s.Shape()
	if rows != v.StorageLen() {
		return nil, &model.ShapeError{What: "storage rows for vocabulary", Expected: v.StorageLen(), Actual: rows}
	}
	if e.norms != nil && len(e.norms) != v.Len() {
		return nil, &model.ShapeError{What: "norms for vocabulary", Expected: v.Len(), Actual: len(e.norms)}
	}

	words, err := storage.Head(s, v.Len())
	if err != nil {
		return nil, err
	}
	e.words = words

	return e, nil
}

// Vocab returns the vocabulary.
func (e *Embeddings) Vocab() vocab.Vocab { return e.vocab }

// Storage returns the embedding matrix.
func (e *Embeddings) Storage() storage.Storage { return e.storage }

// Norms returns the original norms of the vocabulary rows, or nil.
func (e *Embeddings) Norms() []float32 { return e.norms }

// Metadata returns the metadata document, or nil.
func (e *Embeddings) Metadata() *metadata.Metadata {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.metadata
}

// SetMetadata replaces the metadata document.
func (e *Embeddings) SetMetadata(md *metadata.Metadata) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.metadata = md
}

// Len returns the number of vocabulary words.
func (e *Embeddings) Len() int { return e.vocab.Len() }

// Dims returns the embedding width.
func (e *Embeddings) Dims() int {
	_, dims := e.storage.Shape()
	return dims
}

// Embedding returns the embedding of word. Unknown words of a subword
// vocabulary are the mean of their n-gram rows. The result is a copy.
func (e *Embeddings) Embedding(word string) ([]float32, bool) {
	idx := e.vocab.Lookup(word)
	if idx.Empty() {
		return nil, false
	}
	if idx.IsWord() {
		row, err := e.storage.Row(idx.Word())
		if err != nil {
			return nil, false
		}
		out := make([]float32, len(row))
		copy(out, row)
		return out, true
	}

	out := make([]float32, e.Dims())
	for _, i := range idx.Subwords() {
		row, err := e.storage.Row(i)
		if err != nil {
			return nil, false
		}
		distance.AddScaled(out, 1, row)
	}
	distance.ScaleInPlace(out, 1/float32(len(idx.Subwords())))
	return out, true
}

// EmbeddingWithNorm returns the embedding of word with its original norm.
// Without stored norms, or for unknown words, the norm is the L2 norm of the
// returned vector.
func (e *Embeddings) EmbeddingWithNorm(word string) ([]float32, float32, bool) {
	vec, ok := e.Embedding(word)
	if !ok {
		return nil, 0, false
	}
	if e.norms != nil {
		if i, known := e.vocab.WordIndex(word); known {
			return vec, e.norms[i], true
		}
	}
	return vec, distance.Norm(vec), true
}

// Normalize returns embeddings whose rows are scaled to unit length. The
// original norms of the vocabulary rows are kept.
func (e *Embeddings) Normalize() (*Embeddings, error) {
	dense, ok := e.storage.(*storage.Dense)
	if !ok {
		dense = storage.Reconstruct(e.storage)
	}
	unit, norms := storage.Normalize(dense)
	return New(e.vocab, unit,
		WithMetadata(e.cloneMetadata()),
		WithNorms(norms[:e.vocab.Len()]),
	)
}

// Quantize returns embeddings with product-quantized storage sharing the
// vocabulary and norms of e.
func (e *Embeddings) Quantize(ctx context.Context, cfg quantization.Config) (*Embeddings, *quantization.Report, error) {
	q, report, err := quantization.Quantize(ctx, e.storage, cfg)
	if err != nil {
		return nil, nil, err
	}
	out, err := New(e.vocab, q, WithMetadata(e.cloneMetadata()), WithNorms(slices.Clone(e.norms)))
	if err != nil {
		return nil, nil, err
	}
	return out, report, nil
}

func (e *Embeddings) cloneMetadata() *metadata.Metadata {
	md := e.Metadata()
	if md == nil {
		return nil
	}
	return md.Clone()
}

// Close releases the memory mapping backing the storage, if any.
// The embeddings must not be used afterwards.
func (e *Embeddings) Close() error {
	if e.closer == nil {
		return nil
	}
	return e.closer.Close()
}
