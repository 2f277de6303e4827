// Package packing provides the small, allocation-free helpers every layer
// of meagerdb needs for dealing with the on-disk byte format: fixed-width
// little-endian scalars, constant-time comparison of secret-derived
// buffers, zeroing memory that must not be optimized away, and
// overflow-checked rounding.
package packing

// PutUint32 writes v to dst in little-endian order. dst must be at least 4 bytes.
func PutUint32(dst []byte, v uint32) {
	_ = dst[3]
	dst[0] = byte(v)
	dst[1] = byte(v >> 8)
	dst[2] = byte(v >> 16)
	dst[3] = byte(v >> 24)
}

// Uint32 reads a little-endian uint32 from src. src must be at least 4 bytes.
func Uint32(src []byte) uint32 {
	_ = src[3]
	return uint32(src[0]) | uint32(src[1])<<8 | uint32(src[2])<<16 | uint32(src[3])<<24
}

// PutUint64 writes v to dst in little-endian order. dst must be at least 8 bytes.
func PutUint64(dst []byte, v uint64) {
	_ = dst[7]
	dst[0] = byte(v)
	dst[1] = byte(v >> 8)
	dst[2] = byte(v >> 16)
	dst[3] = byte(v >> 24)
	dst[4] = byte(v >> 32)
	dst[5] = byte(v >> 40)
	dst[6] = byte(v >> 48)
	dst[7] = byte(v >> 56)
}

// Uint64 reads a little-endian uint64 from src. src must be at least 8 bytes.
func Uint64(src []byte) uint64 {
	_ = src[7]
	return uint64(src[0]) | uint64(src[1])<<8 | uint64(src[2])<<16 | uint64(src[3])<<24 |
		uint64(src[4])<<32 | uint64(src[5])<<40 | uint64(src[6])<<48 | uint64(src[7])<<56
}

// ConstantTimeCompare reports whether a and b hold identical bytes, taking
// time proportional only to len(a) regardless of where they first differ.
// It returns false immediately (length is not secret) if the lengths differ.
func ConstantTimeCompare(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	var v byte
	for i := range a {
		v |= a[i] ^ b[i]
	}
	return v == 0
}

// Zero overwrites b with zeros. Unlike a bare loop or clear(), this survives
// dead-store elimination when b is about to go out of scope, which matters
// for key material held in scratch buffers.
//
//go:noinline
func Zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

// RoundUpUint32 rounds num up to the nearest multiple of mod. fatal is
// invoked (and RoundUpUint32 does not return a meaningful value afterward)
// if mod is zero or the result would overflow — both are programmer errors,
// never a function of untrusted input.
func RoundUpUint32(num, mod uint32, fatal func(string)) uint32 {
	if mod == 0 {
		fatal("packing: RoundUpUint32: zero modulus")
		return 0
	}
	remainder := num % mod
	if remainder == 0 {
		return num
	}
	result := num + (mod - remainder)
	if result < num {
		fatal("packing: RoundUpUint32: overflow")
		return 0
	}
	return result
}
