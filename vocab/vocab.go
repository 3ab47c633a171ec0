package vocab

import (
	"fmt"
	"unicode/utf8"

	"github.com/hupe1980/fusion/model"
)

// Vocab is implemented by *Simple and *Subword.
type Vocab interface {
	// Lookup resolves a word to an exact row or to n-gram bucket rows.
	Lookup(word string) Index
	// WordIndex returns the row of an exact vocabulary entry.
	WordIndex(word string) (int, bool)
	// Word returns the word stored at row idx. Bucket rows have no word.
	Word(idx int) (string, bool)
	// Len returns the number of exact entries.
	Len() int
	// StorageLen returns the number of storage rows the vocabulary addresses.
	StorageLen() int
	// Words returns the exact entries in index order. The slice must not be modified.
	Words() []string

	sealed()
}

// Index is the result of a vocabulary lookup: either a single word row or a
// list of n-gram bucket rows. The zero value is an empty lookup.
type Index struct {
	word     int
	subwords []int
	isWord   bool
}

// WordIdx returns an Index for an exact vocabulary row.
func WordIdx(row int) Index {
	return Index{word: row, isWord: true}
}

// SubwordIdx returns an Index for a list of bucket rows.
func SubwordIdx(rows []int) Index {
	return Index{subwords: rows}
}

// IsWord reports whether the lookup matched an exact entry.
func (i Index) IsWord() bool { return i.isWord }

// Word returns the exact row. Only meaningful if IsWord is true.
func (i Index) Word() int { return i.word }

// Subwords returns the bucket rows, one per matched n-gram occurrence.
func (i Index) Subwords() []int { return i.subwords }

// Empty reports whether the lookup produced no rows at all.
func (i Index) Empty() bool { return !i.isWord && len(i.subwords) == 0 }

// Simple is an exact-match vocabulary.
type Simple struct {
	words   []string
	indices map[string]int
}

// NewSimple creates a vocabulary from unique words. The position of a word is
// its row index.
func NewSimple(words []string) (*Simple, error) {
	indices, err := indexWords(words)
	if err != nil {
		return nil, err
	}
	return &Simple{words: words, indices: indices}, nil
}

func indexWords(words []string) (map[string]int, error) {
	indices := make(map[string]int, len(words))
	for i, w := range words {
		if !utf8.ValidString(w) {
			return nil, fmt.Errorf("%w: word %d is not valid UTF-8", model.ErrMalformedInput, i)
		}
		if _, dup := indices[w]; dup {
			return nil, fmt.Errorf("%w: duplicate word %q", model.ErrMalformedInput, w)
		}
		indices[w] = i
	}
	return indices, nil
}

// Lookup returns the exact row of word, or an empty Index.
func (v *Simple) Lookup(word string) Index {
	if idx, ok := v.indices[word]; ok {
		return WordIdx(idx)
	}
	return Index{}
}

// WordIndex returns the row of an exact vocabulary entry.
func (v *Simple) WordIndex(word string) (int, bool) {
	idx, ok := v.indices[word]
	return idx, ok
}

// Word returns the word at row idx.
func (v *Simple) Word(idx int) (string, bool) {
	if idx < 0 || idx >= len(v.words) {
		return "", false
	}
	return v.words[idx], true
}

// Len returns the number of words.
func (v *Simple) Len() int { return len(v.words) }

// StorageLen equals Len for a simple vocabulary.
func (v *Simple) StorageLen() int { return len(v.words) }

// Words returns the words in index order.
func (v *Simple) Words() []string { return v.words }

func (*Simple) sealed() {}
