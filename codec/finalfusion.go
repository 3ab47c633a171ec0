package codec

import (
	"fmt"
	"io"

	"github.com/hupe1980/fusion/embeddings"
	"github.com/hupe1980/fusion/storage"
	"github.com/hupe1980/fusion/vocab"
)

// ChunkID identifies a chunk of the native container.
//
// Identifiers 1 to 7 match the finalfusion format. ChunkMurmur3SubwordVocab
// is an extension of this package: finalfusion assigns 8 to its
// ExplicitSubwordVocab, which is not supported here, and has no murmur3
// vocabulary. Files carrying chunk 9 are not readable by other finalfusion
// implementations.
type ChunkID uint32

// Chunk identifiers.
const (
	ChunkSimpleVocab          ChunkID = 1
	ChunkNdArray              ChunkID = 2
	ChunkBucketSubwordVocab   ChunkID = 3
	ChunkQuantizedArray       ChunkID = 4
	ChunkMetadata             ChunkID = 5
	ChunkNdNorms              ChunkID = 6
	ChunkFastTextSubwordVocab ChunkID = 7
	ChunkMurmur3SubwordVocab  ChunkID = 9
)

func (c ChunkID) String() string {
	switch c {
	case ChunkSimpleVocab:
		return "SimpleVocab"
	case ChunkNdArray:
		return "NdArray"
	case ChunkBucketSubwordVocab:
		return "BucketSubwordVocab"
	case ChunkQuantizedArray:
		return "QuantizedArray"
	case ChunkMetadata:
		return "Metadata"
	case ChunkNdNorms:
		return "NdNorms"
	case ChunkFastTextSubwordVocab:
		return "FastTextSubwordVocab"
	case ChunkMurmur3SubwordVocab:
		return "Murmur3SubwordVocab"
	default:
		return fmt.Sprintf("Unknown(%d)", uint32(c))
	}
}

const (
	fifuVersion = 0

	typeU8  = 1
	typeF32 = 10

	// maxChunks bounds the header chunk list.
	maxChunks = 1 << 16
	// maxBucketExp bounds 2^exp bucket vocabularies.
	maxBucketExp = 40
)

var fifuMagic = [4]byte{'F', 'i', 'F', 'u'}

// WriteFinalfusion writes e in the native container format. Chunks are
// written in the order metadata, vocabulary, storage, norms.
func WriteFinalfusion(w io.Writer, e *embeddings.Embeddings) error {
	var ids []ChunkID
	var writers []func(*binWriter)

	if md := e.Metadata(); md != nil {
		b, err := md.Bytes()
		if err != nil {
			return err
		}
		ids = append(ids, ChunkMetadata)
		writers = append(writers, func(bw *binWriter) { writeMetadataChunk(bw, b) })
	}

	vid, err := vocabChunkID(e.Vocab())
	if err != nil {
		return err
	}
	ids = append(ids, vid)
	writers = append(writers, func(bw *binWriter) { writeVocabChunk(bw, vid, e.Vocab()) })

	switch s := e.Storage().(type) {
	case *storage.Dense:
		ids = append(ids, ChunkNdArray)
		writers = append(writers, func(bw *binWriter) { writeDenseChunk(bw, s) })
	case *storage.Quantized:
		ids = append(ids, ChunkQuantizedArray)
		writers = append(writers, func(bw *binWriter) { writeQuantizedChunk(bw, s) })
	}

	if norms := e.Norms(); norms != nil {
		ids = append(ids, ChunkNdNorms)
		writers = append(writers, func(bw *binWriter) { writeNormsChunk(bw, norms) })
	}

	bw := newBinWriter(w)
	bw.write(fifuMagic[:])
	bw.u32(fifuVersion)
	bw.u32(uint32(len(ids)))
	for _, id := range ids {
		bw.u32(uint32(id))
	}
	for _, write := range writers {
		write(bw)
	}
	return bw.flush()
}

func vocabChunkID(v vocab.Vocab) (ChunkID, error) {
	switch v := v.(type) {
	case *vocab.Simple:
		return ChunkSimpleVocab, nil
	case *vocab.Subword:
		switch v.Indexer().Type() {
		case vocab.IndexerBucket:
			return ChunkBucketSubwordVocab, nil
		case vocab.IndexerFastText:
			return ChunkFastTextSubwordVocab, nil
		case vocab.IndexerMurmur3:
			return ChunkMurmur3SubwordVocab, nil
		}
	}
	return 0, fmt.Errorf("codec: unsupported vocabulary %T", v)
}

func wordsLen(words []string) uint64 {
	n := uint64(0)
	for _, w := range words {
		n += 4 + uint64(len(w))
	}
	return n
}

func writeMetadataChunk(bw *binWriter, b []byte) {
	bw.u32(uint32(ChunkMetadata))
	bw.u64(uint64(len(b)))
	bw.write(b)
}

func writeVocabChunk(bw *binWriter, id ChunkID, v vocab.Vocab) {
	words := v.Words()
	length := 8 + wordsLen(words)
	sw, subword := v.(*vocab.Subword)
	if subword {
		length += 12
	}

	bw.u32(uint32(id))
	bw.u64(length)
	bw.u64(uint64(len(words)))
	if subword {
		bw.u32(uint32(sw.MinN()))
		bw.u32(uint32(sw.MaxN()))
		if b, ok := sw.Indexer().(*vocab.BucketIndexer); ok {
			bw.u32(b.Exp())
		} else {
			bw.u32(uint32(sw.Indexer().Buckets()))
		}
	}
	for _, w := range words {
		bw.str32(w)
	}
}

func writeDenseChunk(bw *binWriter, d *storage.Dense) {
	rows, dims := d.Shape()
	bw.u32(uint32(ChunkNdArray))
	// length, rows, dims and type precede the data.
	pad := padding(bw.pos + 8 + 8 + 4 + 4)
	bw.u64(uint64(8 + 4 + 4 + pad + 4*rows*dims))
	bw.u64(uint64(rows))
	bw.u32(uint32(dims))
	bw.u32(typeF32)
	bw.pad()
	bw.f32s(d.Matrix())
}

func writeQuantizedChunk(bw *binWriter, q *storage.Quantized) {
	rows, dims := q.Shape()
	norms := q.Norms()
	proj := q.Projection()

	bw.u32(uint32(ChunkQuantizedArray))
	pad := padding(bw.pos + 8 + 5*4 + 8 + 2*4)
	length := 5*4 + 8 + 2*4 + pad + 4*len(proj) + 4*len(q.Codebooks()) + 4*len(norms) + len(q.Codes())
	bw.u64(uint64(length))

	if proj != nil {
		bw.u32(1)
	} else {
		bw.u32(0)
	}
	if norms != nil {
		bw.u32(1)
	} else {
		bw.u32(0)
	}
	bw.u32(uint32(q.Subspaces()))
	bw.u32(uint32(dims))
	bw.u32(uint32(q.CodebookSize()))
	bw.u64(uint64(rows))
	bw.u32(typeU8)
	bw.u32(typeF32)
	bw.pad()
	bw.f32s(proj)
	bw.f32s(q.Codebooks())
	bw.f32s(norms)
	bw.write(q.Codes())
}

func writeNormsChunk(bw *binWriter, norms []float32) {
	bw.u32(uint32(ChunkNdNorms))
	pad := padding(bw.pos + 8 + 8 + 4)
	bw.u64(uint64(8 + 4 + pad + 4*len(norms)))
	bw.u64(uint64(len(norms)))
	bw.u32(typeF32)
	bw.pad()
	bw.f32s(norms)
}

// IsFinalfusion reports whether b starts with the native container magic.
func IsFinalfusion(b []byte) bool {
	return len(b) >= len(fifuMagic) && [4]byte(b[:4]) == fifuMagic
}
