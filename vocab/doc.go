// Package vocab maps surface word forms to storage row indices.
//
// Two vocabulary variants exist and the set is closed:
//
//   - Simple: exact-match lookup only
//   - Subword: exact match, falling back to hashed character n-grams for
//     unknown words
//
// A Subword vocabulary owns len(words) + Buckets() rows of the paired
// storage. Word i maps to row i; an n-gram maps to row len(words)+bucket.
//
//	v, err := vocab.NewSubword(words, 3, 6, vocab.NewFastTextIndexer(2_000_000))
//	idx := v.Lookup("unseen")
//	if idx.IsWord() {
//	    row := idx.Word()
//	} else {
//	    rows := idx.Subwords() // average these rows
//	}
package vocab
