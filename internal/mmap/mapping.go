package mmap

import (
	"io"
	"os"
	"sync/atomic"
)

// Mapping is a read-only mapping of a whole file.
type Mapping struct {
	path    string
	data    []byte
	closed  atomic.Bool
	release func([]byte) error
}

// Open maps the file at path.
func Open(path string) (*Mapping, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return nil, err
	}

	size := fi.Size()
	if size < 0 || int64(int(size)) != size {
		return nil, ErrInvalidSize
	}
	if size == 0 {
		return &Mapping{path: path}, nil
	}

	data, release, err := osMap(f, int(size))
	if err != nil {
		return nil, err
	}

	return &Mapping{path: path, data: data, release: release}, nil
}

// Path returns the path the mapping was opened from.
func (m *Mapping) Path() string { return m.path }

// Len returns the mapped size in bytes.
func (m *Mapping) Len() int { return len(m.data) }

// Bytes returns the mapped file contents, or nil once closed.
func (m *Mapping) Bytes() []byte {
	if m.closed.Load() {
		return nil
	}
	return m.data
}

// Region returns a view of n bytes starting at off.
func (m *Mapping) Region(off, n int) (*Region, error) {
	if m.closed.Load() {
		return nil, ErrClosed
	}
	if off < 0 || n < 0 || off > len(m.data)-n {
		return nil, ErrOutOfBounds
	}
	return &Region{owner: m, off: off, n: n}, nil
}

// Advise hints the kernel about the access pattern of the whole mapping.
func (m *Mapping) Advise(pattern AccessPattern) error {
	if m.closed.Load() {
		return ErrClosed
	}
	return osAdvise(m.data, 0, len(m.data), pattern)
}

// ReadAt implements io.ReaderAt.
func (m *Mapping) ReadAt(p []byte, off int64) (int, error) {
	if m.closed.Load() {
		return 0, ErrClosed
	}
	if off < 0 {
		return 0, ErrInvalidOffset
	}
	if off >= int64(len(m.data)) {
		return 0, io.EOF
	}
	n := copy(p, m.data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// Close unmaps the file. Calling Close more than once is a no-op.
func (m *Mapping) Close() error {
	if m.closed.Swap(true) {
		return nil
	}
	if m.release == nil || m.data == nil {
		return nil
	}
	return m.release(m.data)
}
