package vocab

import (
	"github.com/hupe1980/fusion/model"
)

const (
	// BOW marks the beginning of a word in n-gram extraction.
	BOW = '<'
	// EOW marks the end of a word in n-gram extraction.
	EOW = '>'
)

// Subword is a vocabulary with hashed n-gram fallback for unknown words.
type Subword struct {
	words   []string
	indices map[string]int
	minN    int
	maxN    int
	indexer Indexer
}

// NewSubword creates a subword vocabulary. N-grams of minN..maxN characters
// (inclusive) of the bracketed word are hashed by indexer.
func NewSubword(words []string, minN, maxN int, indexer Indexer) (*Subword, error) {
	if minN < 1 {
		return nil, model.Unsupported("minimum n-gram length must be positive, got %d", minN)
	}
	if minN > maxN {
		return nil, model.Unsupported("minimum n-gram length %d exceeds maximum %d", minN, maxN)
	}
	if indexer == nil || indexer.Buckets() <= 0 {
		return nil, model.Unsupported("subword vocabulary requires a non-zero bucket count")
	}

	indices, err := indexWords(words)
	if err != nil {
		return nil, err
	}

	return &Subword{
		words:   words,
		indices: indices,
		minN:    minN,
		maxN:    maxN,
		indexer: indexer,
	}, nil
}

// Lookup returns the exact row of a known word, otherwise one bucket row per
// n-gram occurrence.
func (v *Subword) Lookup(word string) Index {
	if idx, ok := v.indices[word]; ok {
		return WordIdx(idx)
	}
	return SubwordIdx(v.SubwordIndices(word))
}

// SubwordIndices returns the storage rows of the n-grams of word.
func (v *Subword) SubwordIndices(word string) []int {
	var rows []int
	offset := len(v.words)
	ForEachNGram(word, v.minN, v.maxN, func(ngram string) {
		rows = append(rows, offset+int(v.indexer.Index(ngram)))
	})
	return rows
}

// NGrams returns the n-grams of word considered by this vocabulary.
func (v *Subword) NGrams(word string) []string {
	return NGrams(word, v.minN, v.maxN)
}

// WordIndex returns the row of an exact vocabulary entry.
func (v *Subword) WordIndex(word string) (int, bool) {
	idx, ok := v.indices[word]
	return idx, ok
}

// Word returns the word at row idx. Bucket rows have no word.
func (v *Subword) Word(idx int) (string, bool) {
	if idx < 0 || idx >= len(v.words) {
		return "", false
	}
	return v.words[idx], true
}

// Len returns the number of exact entries.
func (v *Subword) Len() int { return len(v.words) }

// StorageLen returns words plus buckets.
func (v *Subword) StorageLen() int { return len(v.words) + v.indexer.Buckets() }

// Words returns the exact entries in index order.
func (v *Subword) Words() []string { return v.words }

// MinN returns the minimum n-gram length.
func (v *Subword) MinN() int { return v.minN }

// MaxN returns the maximum n-gram length.
func (v *Subword) MaxN() int { return v.maxN }

// Indexer returns the n-gram indexer.
func (v *Subword) Indexer() Indexer { return v.indexer }

func (*Subword) sealed() {}

// NGrams returns the n-grams of the bracketed word with lengths in
// [minN, maxN], counted in characters. Single-character n-grams consisting of
// only a boundary marker are excluded.
func NGrams(word string, minN, maxN int) []string {
	var ngrams []string
	ForEachNGram(word, minN, maxN, func(ngram string) {
		ngrams = append(ngrams, ngram)
	})
	return ngrams
}

// ForEachNGram calls fn for every n-gram of the bracketed word, ordered by
// start position and then by length.
func ForEachNGram(word string, minN, maxN int, fn func(ngram string)) {
	bracketed := string(BOW) + word + string(EOW)

	// Byte offset of every character plus the end offset.
	offsets := make([]int, 0, len(bracketed)+1)
	for i := range bracketed {
		offsets = append(offsets, i)
	}
	nChars := len(offsets)
	offsets = append(offsets, len(bracketed))

	for start := 0; start < nChars; start++ {
		for n := minN; n <= maxN && start+n <= nChars; n++ {
			if n == 1 && (start == 0 || start == nChars-1) {
				continue
			}
			fn(bracketed[offsets[start]:offsets[start+n]])
		}
	}
}
