package codec

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"slices"

	"github.com/hupe1980/fusion/internal/conv"
)

// binWriter writes little-endian values and tracks the absolute position.
// The first error is sticky; later writes are no-ops.
type binWriter struct {
	w       *bufio.Writer
	pos     int64
	err     error
	scratch [8]byte
}

func newBinWriter(w io.Writer) *binWriter {
	return &binWriter{w: bufio.NewWriterSize(w, 256*1024)}
}

func (b *binWriter) write(p []byte) {
	if b.err != nil {
		return
	}
	n, err := b.w.Write(p)
	b.pos += int64(n)
	b.err = err
}

func (b *binWriter) u32(v uint32) {
	binary.LittleEndian.PutUint32(b.scratch[:4], v)
	b.write(b.scratch[:4])
}

func (b *binWriter) u64(v uint64) {
	binary.LittleEndian.PutUint64(b.scratch[:8], v)
	b.write(b.scratch[:8])
}

func (b *binWriter) str32(s string) {
	n, err := conv.IntToUint32(len(s))
	if err != nil && b.err == nil {
		b.err = fmt.Errorf("string too long: %w", err)
	}
	b.u32(n)
	if b.err != nil {
		return
	}
	n2, err := b.w.WriteString(s)
	b.pos += int64(n2)
	b.err = err
}

// pad writes zero bytes up to the next 4-byte boundary.
func (b *binWriter) pad() {
	var zeros [4]byte
	b.write(zeros[:padding(b.pos)])
}

func (b *binWriter) f32s(v []float32) {
	if conv.HostLittleEndian {
		b.write(conv.Float32sAsBytes(v))
		return
	}
	buf := make([]byte, 4*min(len(v), 16*1024))
	for len(v) > 0 {
		n := min(len(v), len(buf)/4)
		conv.EncodeFloat32s(buf[:4*n], v[:n])
		b.write(buf[:4*n])
		v = v[n:]
	}
}

func (b *binWriter) flush() error {
	if b.err != nil {
		return b.err
	}
	return b.w.Flush()
}

// padding returns the number of bytes needed to align pos to 4.
func padding(pos int64) int {
	return int((4 - pos%4) % 4)
}

// source yields consecutive byte ranges of a container together with their
// absolute offset. The first error is sticky.
type source interface {
	// next returns the following n bytes. The slice may alias the source.
	next(n int) []byte
	// skip discards n bytes.
	skip(n uint64)
	pos() int64
	error() error
	fail(err error)
}

// streamSource reads from an io.Reader into fresh buffers.
type streamSource struct {
	r   *bufio.Reader
	off int64
	err error
}

func newStreamSource(r io.Reader) *streamSource {
	return &streamSource{r: bufio.NewReaderSize(r, 256*1024)}
}

// streamStep bounds how far a read buffer grows ahead of the bytes actually
// received, so a declared length cannot force a large allocation.
const streamStep = 1 << 20

func (s *streamSource) next(n int) []byte {
	if s.err != nil {
		return nil
	}
	if n < 0 {
		s.fail(io.ErrUnexpectedEOF)
		return nil
	}
	buf := make([]byte, 0, min(n, streamStep))
	for len(buf) < n {
		step := min(n-len(buf), streamStep)
		buf = slices.Grow(buf, step)
		m, err := io.ReadFull(s.r, buf[len(buf):len(buf)+step])
		buf = buf[:len(buf)+m]
		s.off += int64(m)
		if err != nil {
			s.fail(truncated(err))
			return nil
		}
	}
	return buf
}

func (s *streamSource) skip(n uint64) {
	if s.err != nil {
		return
	}
	if n > math.MaxInt64 {
		s.fail(io.ErrUnexpectedEOF)
		return
	}
	m, err := io.CopyN(io.Discard, s.r, int64(n))
	s.off += m
	if err != nil {
		s.fail(truncated(err))
	}
}

func (s *streamSource) pos() int64   { return s.off }
func (s *streamSource) error() error { return s.err }

func (s *streamSource) fail(err error) {
	if s.err == nil {
		s.err = err
	}
}

// byteSource reads from an in-memory container, typically a file mapping.
// Returned slices alias the container.
type byteSource struct {
	buf []byte
	off int
	err error
}

func (s *byteSource) next(n int) []byte {
	if s.err != nil {
		return nil
	}
	if n < 0 || n > len(s.buf)-s.off {
		s.fail(io.ErrUnexpectedEOF)
		return nil
	}
	b := s.buf[s.off : s.off+n : s.off+n]
	s.off += n
	return b
}

func (s *byteSource) skip(n uint64) {
	if s.err != nil {
		return
	}
	if n > uint64(len(s.buf)-s.off) {
		s.fail(io.ErrUnexpectedEOF)
		return
	}
	s.off += int(n)
}

func (s *byteSource) pos() int64   { return int64(s.off) }
func (s *byteSource) error() error { return s.err }

func (s *byteSource) fail(err error) {
	if s.err == nil {
		s.err = err
	}
}

// truncated maps a premature EOF to io.ErrUnexpectedEOF.
func truncated(err error) error {
	if errors.Is(err, io.EOF) {
		return io.ErrUnexpectedEOF
	}
	return err
}

func readU32(s source) uint32 {
	b := s.next(4)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint32(b)
}

func readU64(s source) uint64 {
	b := s.next(8)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint64(b)
}

func readPad(s source) {
	s.next(padding(s.pos()))
}

// readCount reads a u64 element count and converts it to int.
func readCount(s source) int {
	v := readU64(s)
	n, err := conv.Uint64ToInt(v)
	if err != nil {
		s.fail(err)
		return 0
	}
	return n
}

// readBytesLen computes n*size for a payload length, failing on overflow.
func readBytesLen(s source, n, size int) int {
	total, err := conv.MulInt(n, size)
	if err != nil {
		s.fail(err)
		return 0
	}
	return total
}
