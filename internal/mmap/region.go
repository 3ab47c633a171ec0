package mmap

// Region is a view into a Mapping. It does not own memory.
type Region struct {
	owner *Mapping
	off   int
	n     int
}

// Offset returns the absolute file offset of the region.
func (r *Region) Offset() int { return r.off }

// Len returns the region size in bytes.
func (r *Region) Len() int { return r.n }

// Bytes returns the region contents, or nil once the owner is closed.
func (r *Region) Bytes() []byte {
	if r.owner.closed.Load() {
		return nil
	}
	return r.owner.data[r.off : r.off+r.n : r.off+r.n]
}

// Owner returns the mapping the region belongs to.
func (r *Region) Owner() *Mapping { return r.owner }

// Advise hints the kernel about the access pattern of the pages spanned by
// the region.
func (r *Region) Advise(pattern AccessPattern) error {
	if r.owner.closed.Load() {
		return ErrClosed
	}
	return osAdvise(r.owner.data, r.off, r.n, pattern)
}
