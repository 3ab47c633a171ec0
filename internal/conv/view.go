package conv

import (
	"encoding/binary"
	"math"
	"unsafe"
)

// HostLittleEndian reports whether the host stores integers little-endian.
var HostLittleEndian = func() bool {
	x := uint16(1)
	return *(*byte)(unsafe.Pointer(&x)) == 1
}()

// BytesAsFloat32s reinterprets b as float32 values without copying. It
// returns false if b is misaligned, has a length that is not a multiple of 4,
// or the host is big-endian; callers then fall back to DecodeFloat32s.
func BytesAsFloat32s(b []byte) ([]float32, bool) {
	if !HostLittleEndian || len(b)%4 != 0 {
		return nil, false
	}
	if len(b) == 0 {
		return []float32{}, true
	}
	if uintptr(unsafe.Pointer(&b[0]))%unsafe.Alignof(float32(0)) != 0 {
		return nil, false
	}
	return unsafe.Slice((*float32)(unsafe.Pointer(&b[0])), len(b)/4), true
}

// DecodeFloat32s fills dst from little-endian bytes. len(b) must be 4*len(dst).
func DecodeFloat32s(dst []float32, b []byte) {
	for i := range dst {
		dst[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[4*i:]))
	}
}

// EncodeFloat32s writes src as little-endian bytes. len(dst) must be 4*len(src).
func EncodeFloat32s(dst []byte, src []float32) {
	for i, v := range src {
		binary.LittleEndian.PutUint32(dst[4*i:], math.Float32bits(v))
	}
}

// Float32sAsBytes returns the in-memory bytes of f. On little-endian hosts
// these are the wire bytes.
func Float32sAsBytes(f []float32) []byte {
	if len(f) == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(&f[0])), len(f)*4)
}
