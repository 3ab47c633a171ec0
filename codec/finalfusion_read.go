package codec

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/hupe1980/fusion/embeddings"
	"github.com/hupe1980/fusion/internal/conv"
	"github.com/hupe1980/fusion/internal/mmap"
	"github.com/hupe1980/fusion/metadata"
	"github.com/hupe1980/fusion/model"
	"github.com/hupe1980/fusion/storage"
	"github.com/hupe1980/fusion/vocab"
)

const fifu = "finalfusion"

// container is a parsed native file.
type container struct {
	vocab    vocab.Vocab
	storage  storage.Storage
	norms    []float32
	metadata *metadata.Metadata

	// byte ranges of the vocabulary and storage chunks
	vocabSpan   [2]int64
	storageSpan [2]int64
}

func (c *container) embeddings(closer io.Closer) (*embeddings.Embeddings, error) {
	opts := []embeddings.Option{embeddings.WithNorms(c.norms)}
	if c.metadata != nil {
		opts = append(opts, embeddings.WithMetadata(c.metadata))
	}
	if closer != nil {
		opts = append(opts, embeddings.WithCloser(closer))
	}
	return embeddings.New(c.vocab, c.storage, opts...)
}

// ReadFinalfusion reads a native container into owned memory.
func ReadFinalfusion(r io.Reader) (*embeddings.Embeddings, error) {
	c, err := readContainer(newStreamSource(r))
	if err != nil {
		return nil, err
	}
	return c.embeddings(nil)
}

// FromBytes parses a native container held in memory. Storage, codes and
// norms alias b where alignment permits, so b must not be modified.
func FromBytes(b []byte) (*embeddings.Embeddings, error) {
	c, err := readContainer(&byteSource{buf: b})
	if err != nil {
		return nil, err
	}
	return c.embeddings(nil)
}

// FromMapping parses a native container from a file mapping. The returned
// embeddings own the mapping and unmap it on Close.
func FromMapping(m *mmap.Mapping) (*embeddings.Embeddings, error) {
	c, err := readContainer(&byteSource{buf: m.Bytes()})
	if err != nil {
		return nil, err
	}

	// The vocabulary was read once; the matrix is probed per query row.
	if r, err := m.Region(int(c.vocabSpan[0]), int(c.vocabSpan[1]-c.vocabSpan[0])); err == nil {
		_ = r.Advise(mmap.AccessDontNeed)
	}
	if r, err := m.Region(int(c.storageSpan[0]), int(c.storageSpan[1]-c.storageSpan[0])); err == nil {
		_ = r.Advise(mmap.AccessRandom)
	}

	return c.embeddings(m)
}

// MmapFinalfusion maps the native container at path and reads it lazily.
func MmapFinalfusion(path string) (*embeddings.Embeddings, error) {
	m, err := mmap.Open(path)
	if err != nil {
		return nil, err
	}
	e, err := FromMapping(m)
	if err != nil {
		_ = m.Close()
		return nil, err
	}
	return e, nil
}

func malformed(msg string, cause error) error {
	return model.NewFormatError(fifu, msg, cause)
}

func readContainer(s source) (*container, error) {
	magic := s.next(4)
	if s.error() != nil {
		return nil, malformed("truncated header", s.error())
	}
	if !bytes.Equal(magic, fifuMagic[:]) {
		return nil, malformed(fmt.Sprintf("invalid magic %q", magic), nil)
	}
	version := readU32(s)
	nChunks := readU32(s)
	if s.error() != nil {
		return nil, malformed("truncated header", s.error())
	}
	if version != fifuVersion {
		return nil, model.Unsupported("%s: version %d", fifu, version)
	}
	if nChunks > maxChunks {
		return nil, malformed(fmt.Sprintf("implausible chunk count %d", nChunks), nil)
	}

	ids := make([]ChunkID, nChunks)
	for i := range ids {
		ids[i] = ChunkID(readU32(s))
	}
	if s.error() != nil {
		return nil, malformed("truncated chunk list", s.error())
	}

	c := &container{}
	for i, id := range ids {
		tag := ChunkID(readU32(s))
		length := readU64(s)
		if s.error() != nil {
			return nil, malformed(fmt.Sprintf("chunk %d: truncated chunk header", i), s.error())
		}
		if tag != id {
			return nil, malformed(fmt.Sprintf("chunk %d: tag %s does not match header entry %s", i, tag, id), nil)
		}

		start := s.pos()
		if length > uint64(math.MaxInt64-start) {
			return nil, malformed(fmt.Sprintf("chunk %d: implausible length %d", i, length), nil)
		}
		end := start + int64(length)

		var err error
		switch tag {
		case ChunkSimpleVocab, ChunkBucketSubwordVocab, ChunkFastTextSubwordVocab, ChunkMurmur3SubwordVocab:
			if c.vocab != nil {
				return nil, malformed("duplicate vocabulary chunk", nil)
			}
			c.vocab, err = readVocabChunk(s, tag, end)
			c.vocabSpan = [2]int64{start, end}
		case ChunkNdArray:
			if c.storage != nil {
				return nil, malformed("duplicate storage chunk", nil)
			}
			c.storage, err = readDenseChunk(s, end)
			c.storageSpan = [2]int64{start, end}
		case ChunkQuantizedArray:
			if c.storage != nil {
				return nil, malformed("duplicate storage chunk", nil)
			}
			c.storage, err = readQuantizedChunk(s, end)
			c.storageSpan = [2]int64{start, end}
		case ChunkNdNorms:
			c.norms, err = readNormsChunk(s, end)
		case ChunkMetadata:
			c.metadata, err = readMetadataChunk(s, end)
		default:
			s.skip(length)
		}
		if err != nil {
			return nil, err
		}
		if s.error() != nil {
			return nil, malformed(fmt.Sprintf("chunk %s: truncated", tag), s.error())
		}
		if s.pos() != end {
			return nil, malformed(fmt.Sprintf("chunk %s: declared %d bytes, consumed %d", tag, length, s.pos()-start), nil)
		}
	}

	if c.vocab == nil {
		return nil, malformed("missing vocabulary chunk", nil)
	}
	if c.storage == nil {
		return nil, malformed("missing storage chunk", nil)
	}
	return c, nil
}

// errChunkOverrun is reported when a payload extends past its chunk.
var errChunkOverrun = errors.New("payload exceeds chunk length")

// take reads n bytes, refusing to cross the chunk end.
func take(s source, end int64, n int) []byte {
	if s.error() != nil {
		return nil
	}
	if n < 0 || int64(n) > end-s.pos() {
		s.fail(errChunkOverrun)
		return nil
	}
	return s.next(n)
}

// floats interprets b as little-endian f32 values, aliasing b if possible.
func floats(b []byte) []float32 {
	if v, ok := conv.BytesAsFloat32s(b); ok {
		return v
	}
	out := make([]float32, len(b)/4)
	conv.DecodeFloat32s(out, b)
	return out
}

func readVocabChunk(s source, tag ChunkID, end int64) (vocab.Vocab, error) {
	n := readCount(s)
	var minN, maxN, buckets uint32
	if tag != ChunkSimpleVocab {
		minN = readU32(s)
		maxN = readU32(s)
		buckets = readU32(s)
	}
	if s.error() != nil {
		return nil, malformed("truncated vocabulary", s.error())
	}
	// Every word needs at least its length prefix.
	if uint64(n) > uint64(end-s.pos())/4 {
		return nil, malformed(fmt.Sprintf("vocabulary of %d words exceeds chunk", n), nil)
	}

	words := make([]string, 0, min(n, 1<<16))
	for i := range n {
		l := readU32(s)
		b := take(s, end, int(l))
		if s.error() != nil {
			return nil, malformed(fmt.Sprintf("vocabulary word %d", i), s.error())
		}
		words = append(words, string(b))
	}

	switch tag {
	case ChunkSimpleVocab:
		return vocab.NewSimple(words)
	case ChunkBucketSubwordVocab:
		if buckets > maxBucketExp {
			return nil, model.Unsupported("bucket exponent %d exceeds %d", buckets, maxBucketExp)
		}
		return vocab.NewSubword(words, int(minN), int(maxN), vocab.NewBucketIndexer(buckets))
	case ChunkFastTextSubwordVocab:
		return vocab.NewSubword(words, int(minN), int(maxN), vocab.NewFastTextIndexer(buckets))
	default:
		return vocab.NewSubword(words, int(minN), int(maxN), vocab.NewMurmur3Indexer(buckets))
	}
}

func readDenseChunk(s source, end int64) (*storage.Dense, error) {
	rows := readCount(s)
	dims := int(readU32(s))
	typ := readU32(s)
	if s.error() != nil {
		return nil, malformed("truncated matrix header", s.error())
	}
	if typ != typeF32 {
		return nil, model.Unsupported("%s: matrix element type %d", fifu, typ)
	}
	readPad(s)

	n, err := conv.MulInt(rows, dims)
	if err != nil {
		return nil, malformed("matrix shape", err)
	}
	b := take(s, end, readBytesLen(s, n, 4))
	if s.error() != nil {
		return nil, malformed(fmt.Sprintf("matrix of %dx%d", rows, dims), s.error())
	}
	return storage.DenseView(b, rows, dims)
}

func readQuantizedChunk(s source, end int64) (*storage.Quantized, error) {
	projection := readU32(s)
	hasNorms := readU32(s)
	subspaces := int(readU32(s))
	dims := int(readU32(s))
	k := int(readU32(s))
	rows := readCount(s)
	codeType := readU32(s)
	valueType := readU32(s)
	if s.error() != nil {
		return nil, malformed("truncated quantized header", s.error())
	}
	if codeType != typeU8 || valueType != typeF32 {
		return nil, model.Unsupported("%s: quantized types %d/%d", fifu, codeType, valueType)
	}
	if k < 1 || k > storage.MaxCodebookSize {
		return nil, model.Unsupported("%s: codebook size %d", fifu, k)
	}
	if subspaces == 0 || dims%subspaces != 0 {
		return nil, malformed(fmt.Sprintf("%d dims not divisible by %d subspaces", dims, subspaces), nil)
	}
	readPad(s)

	var proj []float32
	if projection != 0 {
		nProj, err := conv.MulInt(dims, dims)
		if err != nil {
			return nil, malformed("projection shape", err)
		}
		proj = floats(take(s, end, readBytesLen(s, nProj, 4)))
	}

	nCodebook, err := conv.MulInt(subspaces*k, dims/subspaces)
	if err != nil {
		return nil, malformed("codebook shape", err)
	}
	codebooks := floats(take(s, end, readBytesLen(s, nCodebook, 4)))

	var norms []float32
	if hasNorms != 0 {
		norms = floats(take(s, end, readBytesLen(s, rows, 4)))
	}

	codes := take(s, end, readBytesLen(s, rows, subspaces))
	if s.error() != nil {
		return nil, malformed("truncated quantized payload", s.error())
	}

	return storage.NewQuantized(storage.QuantizedParams{
		Rows:         rows,
		Dims:         dims,
		Subspaces:    subspaces,
		CodebookSize: k,
		Codebooks:    codebooks,
		Codes:        codes,
		Norms:        norms,
		Projection:   proj,
	})
}

func readNormsChunk(s source, end int64) ([]float32, error) {
	n := readCount(s)
	typ := readU32(s)
	if s.error() != nil {
		return nil, malformed("truncated norms header", s.error())
	}
	if typ != typeF32 {
		return nil, model.Unsupported("%s: norms element type %d", fifu, typ)
	}
	readPad(s)
	b := take(s, end, readBytesLen(s, n, 4))
	if s.error() != nil {
		return nil, malformed("truncated norms", s.error())
	}
	return floats(b), nil
}

func readMetadataChunk(s source, end int64) (*metadata.Metadata, error) {
	b := take(s, end, int(end-s.pos()))
	if s.error() != nil {
		return nil, malformed("truncated metadata", s.error())
	}
	return metadata.Parse(b)
}
