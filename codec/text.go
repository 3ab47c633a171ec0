package codec

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/hupe1980/fusion/embeddings"
	"github.com/hupe1980/fusion/model"
	"github.com/hupe1980/fusion/storage"
	"github.com/hupe1980/fusion/vocab"
)

const (
	textName     = "text"
	textDimsName = "textdims"
)

// ReadText reads one "word v1 v2 ..." line per row. The dimensionality is
// taken from the first row.
func ReadText(r io.Reader) (*embeddings.Embeddings, error) {
	return readText(bufio.NewReaderSize(r, 256*1024), textName, -1, -1, 1)
}

// ReadTextDims reads the text format preceded by a "<rows> <dims>" line.
func ReadTextDims(r io.Reader) (*embeddings.Embeddings, error) {
	br := bufio.NewReaderSize(r, 256*1024)
	rows, dims, err := readShapeLine(br, textDimsName)
	if err != nil {
		return nil, err
	}
	return readText(br, textDimsName, rows, dims, 2)
}

// readText parses rows starting at line number first. Negative rows or dims
// are not checked.
func readText(br *bufio.Reader, format string, rows, dims, first int) (*embeddings.Embeddings, error) {
	var words []string
	var data []float32

	lineNo := first - 1
	for {
		line, err := br.ReadString('\n')
		if err != nil && err != io.EOF {
			return nil, model.NewFormatError(format, fmt.Sprintf("line %d", lineNo+1), err)
		}
		if line == "" && err == io.EOF {
			break
		}
		lineNo++

		fields := strings.Fields(line)
		if len(fields) == 0 {
			if err == io.EOF {
				break
			}
			continue
		}
		if dims < 0 {
			dims = len(fields) - 1
		}
		if len(fields)-1 != dims {
			return nil, model.NewFormatError(format, fmt.Sprintf("line %d: expected %d values, got %d", lineNo, dims, len(fields)-1), nil)
		}
		for _, f := range fields[1:] {
			v, perr := strconv.ParseFloat(f, 32)
			if perr != nil {
				return nil, model.NewFormatError(format, fmt.Sprintf("line %d: invalid value %q", lineNo, f), perr)
			}
			data = append(data, float32(v))
		}
		words = append(words, fields[0])

		if err == io.EOF {
			break
		}
	}

	if rows >= 0 && len(words) != rows {
		return nil, model.NewFormatError(format, fmt.Sprintf("header declares %d rows, found %d", rows, len(words)), nil)
	}
	if dims < 0 {
		dims = 0
	}

	v, err := vocab.NewSimple(words)
	if err != nil {
		return nil, err
	}
	s, err := storage.NewDense(data, len(words), dims)
	if err != nil {
		return nil, err
	}
	return embeddings.New(v, s)
}

// WriteText writes the word rows of e as text lines.
func WriteText(w io.Writer, e *embeddings.Embeddings) error {
	return writeText(w, e, false)
}

// WriteTextDims writes the word rows of e as text lines after a shape line.
func WriteTextDims(w io.Writer, e *embeddings.Embeddings) error {
	return writeText(w, e, true)
}

func writeText(w io.Writer, e *embeddings.Embeddings, header bool) error {
	bw := bufio.NewWriterSize(w, 256*1024)
	if header {
		if _, err := fmt.Fprintf(bw, "%d %d\n", e.Len(), e.Dims()); err != nil {
			return err
		}
	}

	var werr error
	buf := make([]byte, 0, 32)
	err := forEachWordRow(e, func(word string, row []float32) {
		if werr != nil {
			return
		}
		_, werr = bw.WriteString(word)
		for _, v := range row {
			buf = append(buf[:0], ' ')
			buf = strconv.AppendFloat(buf, float64(v), 'f', -1, 32)
			if _, werr = bw.Write(buf); werr != nil {
				return
			}
		}
		werr = bw.WriteByte('\n')
	})
	if err != nil {
		return err
	}
	if werr != nil {
		return werr
	}
	return bw.Flush()
}
