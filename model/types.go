package model

import "fmt"

// WordSimilarity is a single similarity search result.
type WordSimilarity struct {
	Word       string
	Index      int
	Similarity float32
}

// String returns a string representation of the result.
func (w WordSimilarity) String() string {
	return fmt.Sprintf("%s\t%.4f", w.Word, w.Similarity)
}
