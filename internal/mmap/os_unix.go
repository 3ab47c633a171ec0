//go:build unix

package mmap

import (
	"os"

	"golang.org/x/sys/unix"
)

// madvice maps each AccessPattern to its madvise(2) advice.
var madvice = [...]int{
	AccessDefault:    unix.MADV_NORMAL,
	AccessSequential: unix.MADV_SEQUENTIAL,
	AccessRandom:     unix.MADV_RANDOM,
	AccessWillNeed:   unix.MADV_WILLNEED,
	AccessDontNeed:   unix.MADV_DONTNEED,
}

func osMap(f *os.File, size int) ([]byte, func([]byte) error, error) {
	data, err := unix.Mmap(int(f.Fd()), 0, size, unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return nil, nil, &os.PathError{Op: "mmap", Path: f.Name(), Err: err}
	}
	return data, unix.Munmap, nil
}

// osAdvise applies pattern to the pages spanning data[off:off+n]. data is a
// whole mapping and starts on a page; the range is widened down to the page
// holding off, since madvise rejects unaligned addresses.
func osAdvise(data []byte, off, n int, pattern AccessPattern) error {
	if n == 0 {
		return nil
	}
	if pattern < 0 || int(pattern) >= len(madvice) {
		pattern = AccessDefault
	}
	start := off &^ (unix.Getpagesize() - 1)
	return os.NewSyscallError("madvise", unix.Madvise(data[start:off+n], madvice[pattern]))
}
