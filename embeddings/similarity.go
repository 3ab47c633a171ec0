package embeddings

import (
	"github.com/RoaringBitmap/roaring/v2"

	"github.com/hupe1980/fusion/distance"
	"github.com/hupe1980/fusion/internal/queue"
	"github.com/hupe1980/fusion/model"
)

type searchOptions struct {
	exclude *roaring.Bitmap
}

// SearchOption configures a similarity query.
type SearchOption func(*searchOptions)

// WithExcludeWords drops the given vocabulary words from the results.
// Words outside the vocabulary are ignored.
func (e *Embeddings) WithExcludeWords(words ...string) SearchOption {
	return func(o *searchOptions) {
		for _, w := range words {
			if i, ok := e.vocab.WordIndex(w); ok {
				o.exclude.Add(uint32(i))
			}
		}
	}
}

// WithExcludeIndices drops the given vocabulary indices from the results.
func WithExcludeIndices(indices ...int) SearchOption {
	return func(o *searchOptions) {
		for _, i := range indices {
			if i >= 0 {
				o.exclude.Add(uint32(i))
			}
		}
	}
}

// WithExcludeSet drops every index in set from the results.
func WithExcludeSet(set *roaring.Bitmap) SearchOption {
	return func(o *searchOptions) { o.exclude.Or(set) }
}

// Similar returns the k vocabulary words most cosine-similar to query.
// Zero rows never match, and a zero query matches nothing. k larger than
// the candidate count returns all candidates.
func (e *Embeddings) Similar(query []float32, k int, opts ...SearchOption) ([]model.WordSimilarity, error) {
	o := searchOptions{exclude: roaring.New()}
	for _, opt := range opts {
		opt(&o)
	}

	if len(query) != e.Dims() {
		return nil, &model.ShapeError{What: "query dimensions", Expected: e.Dims(), Actual: len(query)}
	}
	if k <= 0 {
		return []model.WordSimilarity{}, nil
	}

	qn := distance.Norm(query)
	if qn == 0 {
		return []model.WordSimilarity{}, nil
	}

	dots, err := e.words.Dots(query)
	if err != nil {
		return nil, err
	}
	norms := e.words.RowNorms()

	top := queue.NewTopK(k)
	for i, dot := range dots {
		if norms[i] == 0 || o.exclude.Contains(uint32(i)) {
			continue
		}
		top.Push(i, dot/(qn*norms[i]))
	}

	items := top.Sorted()
	results := make([]model.WordSimilarity, len(items))
	for i, it := range items {
		w, _ := e.vocab.Word(it.Index)
		results[i] = model.WordSimilarity{Word: w, Index: it.Index, Similarity: it.Score}
	}
	return results, nil
}

// SimilarWord returns the k words most similar to word, excluding word.
func (e *Embeddings) SimilarWord(word string, k int) ([]model.WordSimilarity, error) {
	vec, ok := e.Embedding(word)
	if !ok {
		return nil, &model.LookupError{Words: []string{word}}
	}
	return e.Similar(vec, k, e.WithExcludeWords(word))
}

// Analogy answers "a is to aStar as b is to ?" with the k words closest to
// aStar - a + b, excluding the three query words.
func (e *Embeddings) Analogy(a, aStar, b string, k int) ([]model.WordSimilarity, error) {
	target, err := e.AnalogyTarget(a, aStar, b)
	if err != nil {
		return nil, err
	}
	return e.Similar(target, k, e.WithExcludeWords(a, aStar, b))
}

// AnalogyTarget returns aStar - a + b. The error lists every term without
// an embedding.
func (e *Embeddings) AnalogyTarget(a, aStar, b string) ([]float32, error) {
	var missing []string
	vecs := make([][]float32, 3)
	for i, w := range []string{a, aStar, b} {
		v, ok := e.Embedding(w)
		if !ok {
			missing = append(missing, w)
			continue
		}
		vecs[i] = v
	}
	if len(missing) > 0 {
		return nil, &model.LookupError{Words: missing}
	}
	return distance.Analogy(vecs[0], vecs[1], vecs[2]), nil
}
