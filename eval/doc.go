// Package eval scores embeddings on word analogy sets.
//
// An analogy file has section headers (": capital-world") followed by lines
// of four words "a a* b b*". For every instance the evaluator searches for
// the word closest to a* - a + b, excluding a, a* and b, and counts the
// instance correct if that word is exactly b*.
//
// Instances whose answer b* is not in the vocabulary are skipped. Instances
// with an unknown a, a* or b are not skipped: they count as incorrect.
package eval
