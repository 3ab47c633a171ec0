// Package mmap maps embedding files read-only into memory.
//
// A Mapping owns the mapped bytes. Regions are views into a Mapping, typically
// one per chunk payload, and stay valid until the Mapping is closed:
//
//	m, err := mmap.Open("model.fifu")
//	if err != nil { ... }
//	defer m.Close()
//
//	r, err := m.Region(offset, n)
//	_ = r.Advise(mmap.AccessRandom)
//	payload := r.Bytes()
//
// Unix platforms use mmap(2) and madvise(2). Windows uses
// CreateFileMapping/MapViewOfFile and ignores access hints.
//
// Mappings are safe for concurrent reads. Close is idempotent, but callers
// must not touch bytes obtained from Bytes after Close returns.
package mmap
