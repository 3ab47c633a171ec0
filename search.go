package fusion

import (
	"context"
	"iter"
	"time"

	"github.com/hupe1980/fusion/embeddings"
	"github.com/hupe1980/fusion/model"
)

// Search creates a fluent similarity query for a vector.
//
//	results, err := m.Search(vec).KNN(10).Exclude("paris").Execute(ctx)
func (m *Model) Search(query []float32) *SearchBuilder {
	return &SearchBuilder{m: m, query: query, k: 10}
}

// SearchWord creates a query for the words most similar to word. The word
// itself is excluded. Unknown words are composed from subwords where the
// vocabulary supports it.
func (m *Model) SearchWord(word string) *SearchBuilder {
	sb := &SearchBuilder{m: m, k: 10, exclude: []string{word}}
	if vec, ok := m.emb.Embedding(word); ok {
		sb.query = vec
	} else {
		sb.err = &model.LookupError{Words: []string{word}}
	}
	return sb
}

// Analogy creates a query for "a is to aStar as b is to ?". The three
// query words are excluded. A missing term fails the query with a
// *model.LookupError listing every unknown word.
func (m *Model) Analogy(a, aStar, b string) *SearchBuilder {
	sb := &SearchBuilder{m: m, k: 10, exclude: []string{a, aStar, b}}
	sb.query, sb.err = m.emb.AnalogyTarget(a, aStar, b)
	return sb
}

// SearchBuilder is a fluent builder for similarity queries.
type SearchBuilder struct {
	m       *Model
	query   []float32
	k       int
	exclude []string
	indices []int
	err     error
}

// KNN sets the number of results.
func (sb *SearchBuilder) KNN(k int) *SearchBuilder {
	sb.k = k
	return sb
}

// Exclude drops words from the results.
func (sb *SearchBuilder) Exclude(words ...string) *SearchBuilder {
	sb.exclude = append(sb.exclude, words...)
	return sb
}

// ExcludeIndices drops vocabulary indices from the results.
func (sb *SearchBuilder) ExcludeIndices(indices ...int) *SearchBuilder {
	sb.indices = append(sb.indices, indices...)
	return sb
}

// Execute runs the query. Results are ordered by decreasing similarity,
// ties by increasing vocabulary index.
func (sb *SearchBuilder) Execute(ctx context.Context) ([]model.WordSimilarity, error) {
	start := time.Now()
	results, err := sb.execute(ctx)
	sb.m.metrics.RecordSearch(sb.k, time.Since(start), err)
	sb.m.logger.LogSearch(ctx, sb.k, len(results), err)
	return results, err
}

func (sb *SearchBuilder) execute(ctx context.Context) ([]model.WordSimilarity, error) {
	if sb.err != nil {
		return nil, sb.err
	}
	if sb.k <= 0 {
		return nil, ErrInvalidK
	}
	if sb.m.closed.Load() {
		return nil, ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return sb.m.emb.Similar(sb.query, sb.k,
		sb.m.emb.WithExcludeWords(sb.exclude...),
		embeddings.WithExcludeIndices(sb.indices...),
	)
}

// MustExecute runs the query, panicking on error. Use it only in tests or
// when the query is known to be valid.
func (sb *SearchBuilder) MustExecute(ctx context.Context) []model.WordSimilarity {
	results, err := sb.Execute(ctx)
	if err != nil {
		panic(err)
	}
	return results
}

// Stream returns an iterator over the results, best first. Breaking out of
// the loop stops iteration.
//
//	for r, err := range m.SearchWord("berlin").KNN(100).Stream(ctx) {
//	    if err != nil {
//	        return err
//	    }
//	    if r.Similarity < 0.5 {
//	        break
//	    }
//	    fmt.Println(r.Word)
//	}
func (sb *SearchBuilder) Stream(ctx context.Context) iter.Seq2[model.WordSimilarity, error] {
	return func(yield func(model.WordSimilarity, error) bool) {
		results, err := sb.Execute(ctx)
		if err != nil {
			yield(model.WordSimilarity{}, err)
			return
		}
		for _, r := range results {
			if !yield(r, nil) {
				return
			}
		}
	}
}

// First returns the best result, or ErrNotFound if there is none.
func (sb *SearchBuilder) First(ctx context.Context) (model.WordSimilarity, error) {
	sb.k = 1
	results, err := sb.Execute(ctx)
	if err != nil {
		return model.WordSimilarity{}, err
	}
	if len(results) == 0 {
		return model.WordSimilarity{}, ErrNotFound
	}
	return results[0], nil
}
