package codec

import (
	"bufio"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/hupe1980/fusion/embeddings"
	"github.com/hupe1980/fusion/model"
)

// Format is an embeddings file format.
type Format int

const (
	// FormatFinalfusion is the native chunked container.
	FormatFinalfusion Format = iota
	// FormatWord2Vec is the word2vec binary format.
	FormatWord2Vec
	// FormatText is one whitespace-separated row per line.
	FormatText
	// FormatTextDims is FormatText preceded by a shape line.
	FormatTextDims
	// FormatFastText is the fastText binary model. It is read-only.
	FormatFastText
)

func (f Format) String() string {
	switch f {
	case FormatFinalfusion:
		return "finalfusion"
	case FormatWord2Vec:
		return "word2vec"
	case FormatText:
		return "text"
	case FormatTextDims:
		return "textdims"
	case FormatFastText:
		return "fasttext"
	default:
		return fmt.Sprintf("Format(%d)", int(f))
	}
}

// ParseFormat parses a format name as printed by String.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "finalfusion", "fifu":
		return FormatFinalfusion, nil
	case "word2vec", "w2v":
		return FormatWord2Vec, nil
	case "text", "txt":
		return FormatText, nil
	case "textdims":
		return FormatTextDims, nil
	case "fasttext", "ft":
		return FormatFastText, nil
	default:
		return 0, model.Unsupported("format %q", s)
	}
}

// FormatFromPath guesses the format and compression from a file name, e.g.
// "vectors.bin.zst". ok is false when the extension is not recognised.
// ".bin" maps to word2vec; Read tells fastText models apart by their magic.
func FormatFromPath(path string) (f Format, c Compression, ok bool) {
	name := strings.ToLower(filepath.Base(path))
	switch ext := filepath.Ext(name); ext {
	case ".zst", ".zstd":
		c, name = CompressionZstd, strings.TrimSuffix(name, ext)
	case ".lz4":
		c, name = CompressionLZ4, strings.TrimSuffix(name, ext)
	}
	switch filepath.Ext(name) {
	case ".fifu":
		return FormatFinalfusion, c, true
	case ".bin", ".w2v":
		return FormatWord2Vec, c, true
	case ".txt", ".vec":
		return FormatText, c, true
	default:
		return 0, c, false
	}
}

// Read decodes embeddings of format f from r. Compressed input is detected
// and decompressed transparently. A fastText model requested as word2vec is
// read as fastText, since both conventionally use ".bin".
func Read(r io.Reader, f Format) (*embeddings.Embeddings, error) {
	rc, _, err := Decompress(r)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	br := bufio.NewReaderSize(rc, 64*1024)
	if f == FormatWord2Vec {
		if head, _ := br.Peek(4); IsFastText(head) {
			f = FormatFastText
		}
	}
	return read(br, f)
}

func read(r io.Reader, f Format) (*embeddings.Embeddings, error) {
	switch f {
	case FormatFinalfusion:
		return ReadFinalfusion(r)
	case FormatWord2Vec:
		return ReadWord2Vec(r)
	case FormatText:
		return ReadText(r)
	case FormatTextDims:
		return ReadTextDims(r)
	case FormatFastText:
		return ReadFastText(r)
	default:
		return nil, model.Unsupported("format %s", f)
	}
}

// Write encodes e in format f, compressed with c.
func Write(w io.Writer, e *embeddings.Embeddings, f Format, c Compression) error {
	cw, err := Compress(w, c)
	if err != nil {
		return err
	}
	if err := write(cw, e, f); err != nil {
		_ = cw.Close()
		return err
	}
	return cw.Close()
}

func write(w io.Writer, e *embeddings.Embeddings, f Format) error {
	switch f {
	case FormatFinalfusion:
		return WriteFinalfusion(w, e)
	case FormatWord2Vec:
		return WriteWord2Vec(w, e)
	case FormatText:
		return WriteText(w, e)
	case FormatTextDims:
		return WriteTextDims(w, e)
	case FormatFastText:
		return model.Unsupported("writing %s models", f)
	default:
		return model.Unsupported("format %s", f)
	}
}
