package codec

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/hupe1980/fusion/embeddings"
	"github.com/hupe1980/fusion/internal/conv"
	"github.com/hupe1980/fusion/model"
	"github.com/hupe1980/fusion/storage"
	"github.com/hupe1980/fusion/vocab"
)

const w2v = "word2vec"

var errEmptyWord = errors.New("empty word")

// maxDims bounds the dimensionality accepted from a shape header. Row
// buffers are sized from it before any vector data has been read.
const maxDims = 1 << 20

// ReadWord2Vec reads the word2vec binary format.
func ReadWord2Vec(r io.Reader) (*embeddings.Embeddings, error) {
	br := bufio.NewReaderSize(r, 256*1024)

	rows, dims, err := readShapeLine(br, w2v)
	if err != nil {
		return nil, err
	}
	n, err := conv.MulInt(rows, dims)
	if err != nil {
		return nil, model.NewFormatError(w2v, "matrix shape", err)
	}

	words := make([]string, 0, min(rows, 1<<20))
	data := make([]float32, 0, min(n, 1<<20))
	raw := make([]byte, 4*dims)
	row := make([]float32, dims)

	for i := range rows {
		word, err := readW2VWord(br)
		if err != nil {
			return nil, model.NewFormatError(w2v, fmt.Sprintf("record %d: word", i), truncated(err))
		}
		if _, err := io.ReadFull(br, raw); err != nil {
			return nil, model.NewFormatError(w2v, fmt.Sprintf("record %d: vector", i), truncated(err))
		}
		conv.DecodeFloat32s(row, raw)
		words = append(words, word)
		data = append(data, row...)

		// The record separator is optional in the wild.
		if b, err := br.Peek(1); err == nil && b[0] == '\n' {
			_, _ = br.ReadByte()
		}
	}

	v, err := vocab.NewSimple(words)
	if err != nil {
		return nil, err
	}
	s, err := storage.NewDense(data, rows, dims)
	if err != nil {
		return nil, err
	}
	return embeddings.New(v, s)
}

// readW2VWord reads up to the space separating a word from its vector,
// dropping leading whitespace left over from the previous record.
func readW2VWord(br *bufio.Reader) (string, error) {
	b, err := br.ReadBytes(' ')
	if err != nil {
		return "", err
	}
	word := string(bytes.TrimSpace(b))
	if word == "" {
		return "", errEmptyWord
	}
	return word, nil
}

// readShapeLine parses a "<rows> <dims>" header line.
func readShapeLine(br *bufio.Reader, format string) (int, int, error) {
	line, err := br.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return 0, 0, model.NewFormatError(format, "missing header", truncated(err))
	}
	fields := strings.Fields(line)
	if len(fields) != 2 {
		return 0, 0, model.NewFormatError(format, fmt.Sprintf("header %q: expected <rows> <dims>", strings.TrimSpace(line)), nil)
	}
	rows, err := strconv.Atoi(fields[0])
	if err != nil || rows < 0 {
		return 0, 0, model.NewFormatError(format, fmt.Sprintf("header: invalid rows %q", fields[0]), err)
	}
	dims, err := strconv.Atoi(fields[1])
	if err != nil || dims < 0 {
		return 0, 0, model.NewFormatError(format, fmt.Sprintf("header: invalid dims %q", fields[1]), err)
	}
	if dims > maxDims {
		return 0, 0, model.NewFormatError(format, fmt.Sprintf("header: %d dims exceed %d", dims, maxDims), nil)
	}
	return rows, dims, nil
}

// WriteWord2Vec writes the word rows of e in the word2vec binary format.
// Subword buckets and metadata are not representable and are dropped.
func WriteWord2Vec(w io.Writer, e *embeddings.Embeddings) error {
	bw := newBinWriter(w)
	words := e.Vocab().Words()
	bw.write([]byte(fmt.Sprintf("%d %d\n", len(words), e.Dims())))

	err := forEachWordRow(e, func(word string, row []float32) {
		bw.write([]byte(word))
		bw.write([]byte{' '})
		bw.f32s(row)
		bw.write([]byte{'\n'})
	})
	if err != nil {
		return err
	}
	return bw.flush()
}

// forEachWordRow calls fn for every vocabulary word with its storage row.
func forEachWordRow(e *embeddings.Embeddings, fn func(word string, row []float32)) error {
	s := e.Storage()
	for i, word := range e.Vocab().Words() {
		row, err := s.Row(i)
		if err != nil {
			return err
		}
		fn(word, row)
	}
	return nil
}
