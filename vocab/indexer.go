package vocab

import (
	"encoding/binary"
	"hash/fnv"
	"unicode/utf8"

	"github.com/spaolacci/murmur3"
)

// IndexerType identifies an n-gram hashing scheme.
type IndexerType uint8

const (
	// IndexerBucket hashes with 64-bit FNV-1a into a power-of-two number of
	// buckets, compatible with finalfusion bucket vocabularies.
	IndexerBucket IndexerType = iota
	// IndexerFastText hashes with fastText's 32-bit FNV-1a variant modulo the bucket count.
	IndexerFastText
	// IndexerMurmur3 hashes with 64-bit MurmurHash3 modulo the bucket count.
	IndexerMurmur3
)

func (t IndexerType) String() string {
	switch t {
	case IndexerBucket:
		return "bucket"
	case IndexerFastText:
		return "fasttext"
	case IndexerMurmur3:
		return "murmur3"
	default:
		return "unknown"
	}
}

// Indexer maps an n-gram to a bucket in [0, Buckets()).
// Implemented by BucketIndexer, FastTextIndexer and Murmur3Indexer.
type Indexer interface {
	Index(ngram string) uint64
	Buckets() int
	Type() IndexerType

	sealedIndexer()
}

// BucketIndexer uses 2^exp buckets addressed by the low bits of FNV-1a 64.
// The hashed input is the n-gram's character count as a little-endian u64
// followed by each character as a little-endian u32, which is how
// finalfusion hashes n-grams.
type BucketIndexer struct {
	exp  uint32
	mask uint64
}

// NewBucketIndexer creates an indexer with 2^exp buckets.
func NewBucketIndexer(exp uint32) *BucketIndexer {
	return &BucketIndexer{exp: exp, mask: (uint64(1) << exp) - 1}
}

// Index returns the bucket of ngram.
func (b *BucketIndexer) Index(ngram string) uint64 {
	var buf [8]byte
	h := fnv.New64a()
	binary.LittleEndian.PutUint64(buf[:], uint64(utf8.RuneCountInString(ngram)))
	_, _ = h.Write(buf[:])
	for _, r := range ngram {
		binary.LittleEndian.PutUint32(buf[:4], uint32(r))
		_, _ = h.Write(buf[:4])
	}
	return h.Sum64() & b.mask
}

// Buckets returns 2^exp.
func (b *BucketIndexer) Buckets() int { return 1 << b.exp }

// Exp returns the bucket exponent.
func (b *BucketIndexer) Exp() uint32 { return b.exp }

// Type returns IndexerBucket.
func (*BucketIndexer) Type() IndexerType { return IndexerBucket }

func (*BucketIndexer) sealedIndexer() {}

// FastTextIndexer reproduces fastText's n-gram hashing, including the sign
// extension of bytes >= 0x80.
type FastTextIndexer struct {
	buckets uint32
}

// NewFastTextIndexer creates an indexer with the given number of buckets.
func NewFastTextIndexer(buckets uint32) *FastTextIndexer {
	return &FastTextIndexer{buckets: buckets}
}

// Index returns the bucket of ngram.
func (f *FastTextIndexer) Index(ngram string) uint64 {
	h := uint32(2166136261)
	for i := 0; i < len(ngram); i++ {
		h ^= uint32(int32(int8(ngram[i])))
		h *= 16777619
	}
	return uint64(h % f.buckets)
}

// Buckets returns the number of buckets.
func (f *FastTextIndexer) Buckets() int { return int(f.buckets) }

// Type returns IndexerFastText.
func (*FastTextIndexer) Type() IndexerType { return IndexerFastText }

func (*FastTextIndexer) sealedIndexer() {}

// Murmur3Indexer hashes n-grams with MurmurHash3 (x64, 128-bit, low half).
type Murmur3Indexer struct {
	buckets uint32
}

// NewMurmur3Indexer creates an indexer with the given number of buckets.
func NewMurmur3Indexer(buckets uint32) *Murmur3Indexer {
	return &Murmur3Indexer{buckets: buckets}
}

// Index returns the bucket of ngram.
func (m *Murmur3Indexer) Index(ngram string) uint64 {
	return murmur3.Sum64([]byte(ngram)) % uint64(m.buckets)
}

// Buckets returns the number of buckets.
func (m *Murmur3Indexer) Buckets() int { return int(m.buckets) }

// Type returns IndexerMurmur3.
func (*Murmur3Indexer) Type() IndexerType { return IndexerMurmur3 }

func (*Murmur3Indexer) sealedIndexer() {}
