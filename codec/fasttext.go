package codec

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/hupe1980/fusion/distance"
	"github.com/hupe1980/fusion/embeddings"
	"github.com/hupe1980/fusion/internal/conv"
	"github.com/hupe1980/fusion/metadata"
	"github.com/hupe1980/fusion/model"
	"github.com/hupe1980/fusion/storage"
	"github.com/hupe1980/fusion/vocab"
)

const ft = "fasttext"

const (
	fastTextMagic   = 793712314
	fastTextVersion = 12

	ftEntryWord  = 0
	ftEntryLabel = 1
)

// IsFastText reports whether b starts with the fastText model magic.
func IsFastText(b []byte) bool {
	return len(b) >= 4 && binary.LittleEndian.Uint32(b) == fastTextMagic
}

// fastTextArgs are the training arguments stored in a model header.
type fastTextArgs struct {
	dims, window, epoch, minCount, neg, wordNgrams int32
	loss, model                                    int32
	buckets, minN, maxN, lrUpdateRate              int32
	sampling                                       float64
}

func (a *fastTextArgs) metadata() *metadata.Metadata {
	losses := map[int32]string{1: "hs", 2: "ns", 3: "softmax", 4: "ova"}
	models := map[int32]string{1: "cbow", 2: "skipgram", 3: "supervised"}
	name := func(m map[int32]string, v int32) string {
		if s, ok := m[v]; ok {
			return s
		}
		return fmt.Sprintf("unknown(%d)", v)
	}
	return metadata.FromMap(map[string]any{
		"fasttext": map[string]any{
			"dims":               int64(a.dims),
			"window_size":        int64(a.window),
			"epoch":              int64(a.epoch),
			"min_count":          int64(a.minCount),
			"neg":                int64(a.neg),
			"word_ngrams":        int64(a.wordNgrams),
			"loss":               name(losses, a.loss),
			"model":              name(models, a.model),
			"buckets":            int64(a.buckets),
			"min_n":              int64(a.minN),
			"max_n":              int64(a.maxN),
			"lr_update_rate":     int64(a.lrUpdateRate),
			"sampling_threshold": a.sampling,
		},
	})
}

func ftMalformed(msg string, cause error) error {
	return model.NewFormatError(ft, msg, cause)
}

func readI32(s source) int32 { return int32(readU32(s)) }

// ReadFastText reads a fastText binary model. The input matrix becomes the
// storage: word rows followed by n-gram bucket rows. As fastText does when
// it answers a word query, each word row is replaced by the mean of itself
// and its n-gram rows. The output matrix is not read. Training arguments are
// kept as metadata.
func ReadFastText(r io.Reader) (*embeddings.Embeddings, error) {
	s := newStreamSource(r)

	magic := readU32(s)
	version := readU32(s)
	if s.error() != nil {
		return nil, ftMalformed("truncated header", s.error())
	}
	if magic != fastTextMagic {
		return nil, ftMalformed(fmt.Sprintf("invalid magic %#x", magic), nil)
	}
	if version != fastTextVersion {
		return nil, model.Unsupported("%s: version %d", ft, version)
	}

	args, err := readFastTextArgs(s)
	if err != nil {
		return nil, err
	}
	words, err := readFastTextDict(s)
	if err != nil {
		return nil, err
	}

	quant := s.next(1)
	if s.error() != nil {
		return nil, ftMalformed("truncated quantization flag", s.error())
	}
	if quant[0] != 0 {
		return nil, model.Unsupported("%s: quantized models", ft)
	}

	rows := int64(readU64(s))
	dims := int64(readU64(s))
	if s.error() != nil {
		return nil, ftMalformed("truncated matrix header", s.error())
	}
	if dims != int64(args.dims) {
		return nil, ftMalformed(fmt.Sprintf("matrix has %d columns, header declares %d dims", dims, args.dims), nil)
	}
	if rows != int64(len(words))+int64(args.buckets) {
		return nil, ftMalformed(fmt.Sprintf("matrix has %d rows, expected %d words plus %d buckets", rows, len(words), args.buckets), nil)
	}

	subwords := args.maxN > 0 && args.buckets > 0
	if !subwords {
		// Bucket rows are unreachable without n-grams.
		rows = int64(len(words))
	}
	n, err := conv.MulInt(int(rows), int(dims))
	if err != nil {
		return nil, ftMalformed("matrix shape", err)
	}
	b := s.next(readBytesLen(s, n, 4))
	if s.error() != nil {
		return nil, ftMalformed(fmt.Sprintf("matrix of %dx%d", rows, dims), s.error())
	}
	data := floats(b)

	var v vocab.Vocab
	if subwords {
		sw, err := vocab.NewSubword(words, max(int(args.minN), 1), int(args.maxN), vocab.NewFastTextIndexer(uint32(args.buckets)))
		if err != nil {
			return nil, err
		}
		addSubwordRows(sw, data, int(dims))
		v = sw
	} else {
		v, err = vocab.NewSimple(words)
		if err != nil {
			return nil, err
		}
	}

	st, err := storage.NewDense(data, int(rows), int(dims))
	if err != nil {
		return nil, err
	}
	return embeddings.New(v, st, embeddings.WithMetadata(args.metadata()))
}

func readFastTextArgs(s source) (*fastTextArgs, error) {
	a := &fastTextArgs{}
	for _, p := range []*int32{
		&a.dims, &a.window, &a.epoch, &a.minCount, &a.neg, &a.wordNgrams,
		&a.loss, &a.model, &a.buckets, &a.minN, &a.maxN, &a.lrUpdateRate,
	} {
		*p = readI32(s)
	}
	b := s.next(8)
	if s.error() != nil {
		return nil, ftMalformed("truncated arguments", s.error())
	}
	a.sampling = math.Float64frombits(binary.LittleEndian.Uint64(b))

	switch {
	case a.dims <= 0 || a.dims > maxDims:
		return nil, ftMalformed(fmt.Sprintf("implausible dims %d", a.dims), nil)
	case a.buckets < 0 || a.minN < 0 || a.maxN < 0:
		return nil, ftMalformed(fmt.Sprintf("negative subword arguments (buckets %d, minn %d, maxn %d)", a.buckets, a.minN, a.maxN), nil)
	case a.maxN > 0 && a.minN > a.maxN:
		return nil, ftMalformed(fmt.Sprintf("minn %d exceeds maxn %d", a.minN, a.maxN), nil)
	}
	return a, nil
}

// readFastTextDict reads the dictionary and returns the words in index
// order. Labels have no input rows and are dropped.
func readFastTextDict(s *streamSource) ([]string, error) {
	size := readI32(s)
	nWords := readI32(s)
	nLabels := readI32(s)
	_ = readU64(s) // token count
	pruned := int64(readU64(s))
	if s.error() != nil {
		return nil, ftMalformed("truncated dictionary header", s.error())
	}
	if size < 0 || nWords < 0 || nLabels < 0 || int64(size) != int64(nWords)+int64(nLabels) {
		return nil, ftMalformed(fmt.Sprintf("dictionary of %d entries declares %d words and %d labels", size, nWords, nLabels), nil)
	}
	if pruned >= 0 {
		return nil, model.Unsupported("%s: pruned dictionaries", ft)
	}

	words := make([]string, 0, min(int(nWords), 1<<16))
	for i := range int(size) {
		entry := readCString(s)
		_ = readU64(s) // count
		typ := s.next(1)
		if s.error() != nil {
			return nil, ftMalformed(fmt.Sprintf("dictionary entry %d", i), s.error())
		}
		switch typ[0] {
		case ftEntryWord:
			words = append(words, entry)
		case ftEntryLabel:
		default:
			return nil, ftMalformed(fmt.Sprintf("dictionary entry %d: type %d", i, typ[0]), nil)
		}
	}
	if len(words) != int(nWords) {
		return nil, ftMalformed(fmt.Sprintf("dictionary holds %d words, header declares %d", len(words), nWords), nil)
	}
	return words, nil
}

// readCString reads a NUL-terminated string.
func readCString(s *streamSource) string {
	if s.err != nil {
		return ""
	}
	b, err := s.r.ReadBytes(0)
	s.off += int64(len(b))
	if err != nil {
		s.fail(truncated(err))
		return ""
	}
	return string(b[:len(b)-1])
}

// addSubwordRows replaces every word row by the mean of the row and the
// rows of the word's n-grams. Bucket rows are left untouched.
func addSubwordRows(v *vocab.Subword, data []float32, dims int) {
	for i, word := range v.Words() {
		row := data[i*dims : (i+1)*dims]
		subs := v.SubwordIndices(word)
		if len(subs) == 0 {
			continue
		}
		for _, j := range subs {
			distance.AddScaled(row, 1, data[j*dims:(j+1)*dims])
		}
		distance.ScaleInPlace(row, 1/float32(1+len(subs)))
	}
}
