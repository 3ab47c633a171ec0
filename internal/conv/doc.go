// Package conv holds checked integer casts and zero-copy views between raw
// little-endian bytes and float32 slices.
package conv
