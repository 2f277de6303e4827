// Package ciphersuite implements the single on-disk cipher suite MeagerDB
// supports: "Threefish-512:SHA-256:HMAC" for encryption/authentication and
// "PBKDF2-HMAC-SHA-256" for key derivation. It models the suite as a small
// capability interface (encrypt/decrypt/mac/hash/kdf) the way the original
// C sources (ciphers.h) do, so page.go and header.go never need to know
// which block cipher or hash actually backs the suite.
package ciphersuite

import (
	"crypto/hmac"
	"crypto/sha256"

	"github.com/aead/skein/threefish"
	"golang.org/x/crypto/pbkdf2"

	"github.com/fpgaminer/meagerdb-go/internal/packing"
)

const (
	// Name is the on-disk cipher-suite identifier stored in the file header.
	Name = "Threefish-512:SHA-256:HMAC"
	// KDFName is the on-disk key-derivation-function identifier.
	KDFName = "PBKDF2-HMAC-SHA-256"

	// BlockSize is the Threefish-512 block size in bytes.
	BlockSize = 64
	// TweakSize is the Threefish tweak size in bytes.
	TweakSize = threefish.TweakSize
	// KeyMaterialSize is the combined size of the cipher key and MAC key
	// this suite stores/derives: 64 bytes of cipher key followed by 64
	// bytes of MAC key.
	KeyMaterialSize = 128
	// TagSize is the size, in bytes, of a MAC or hash output under this suite.
	TagSize = sha256.Size
)

// Suite is the capability set a cipher suite must provide. keyMaterial
// passed to Encrypt/Decrypt/MAC is always KeyMaterialSize bytes: the first
// BlockSize bytes are the cipher key, the rest the MAC key. Only one
// implementation (Threefish512SHA256HMAC) exists today; the interface
// exists so the on-disk "cipher suite name" field has somewhere to route to.
type Suite interface {
	// Encrypt/Decrypt transform len(src) bytes, a multiple of BlockSize, in
	// place-compatible fashion (dst and src may be the same slice).
	// location is the byte offset within the file of the first input byte
	// and seeds the tweak; the per-block counter restarts at zero on every
	// call, exactly matching the decrypt side's expectations.
	Encrypt(dst, src []byte, keyMaterial []byte, location uint64)
	Decrypt(dst, src []byte, keyMaterial []byte, location uint64)

	// MAC computes the suite's authenticator (TagSize bytes) over data
	// using the MAC half of keyMaterial.
	MAC(dst []byte, keyMaterial, data []byte)

	// Hash computes the suite's hash (TagSize bytes) over data.
	Hash(dst []byte, data []byte)

	// DeriveKeys runs the suite's KDF over password and salt using the
	// iteration count packed into params (the first 8 bytes, little-endian)
	// and writes KeyMaterialSize bytes to dst. An iteration count exceeding
	// 2^32 is a precondition violation, routed to fatal.
	DeriveKeys(dst []byte, password, salt, params []byte, fatal func(string))
}

// Threefish512SHA256HMAC is the suite named by Name.
type Threefish512SHA256HMAC struct{}

var _ Suite = Threefish512SHA256HMAC{}

func cryptBlocks(dst, src, key []byte, location uint64, encrypt bool) {
	if len(src)%BlockSize != 0 {
		panic("ciphersuite: length not a multiple of the block size")
	}

	var tweak [TweakSize]byte
	packing.PutUint64(tweak[0:8], location)

	for off := 0; off < len(src); off += BlockSize {
		packing.PutUint32(tweak[8:12], uint32(off/BlockSize))
		block, err := threefish.NewCipher(&tweak, key[:BlockSize])
		if err != nil {
			// The only failure mode is a malformed key length, which
			// callers (page.go, header.go) always supply as exactly
			// BlockSize bytes sliced from a KeyMaterialSize buffer.
			panic("ciphersuite: " + err.Error())
		}
		if encrypt {
			block.Encrypt(dst[off:off+BlockSize], src[off:off+BlockSize])
		} else {
			block.Decrypt(dst[off:off+BlockSize], src[off:off+BlockSize])
		}
	}
}

// Encrypt implements Suite.
func (Threefish512SHA256HMAC) Encrypt(dst, src, keyMaterial []byte, location uint64) {
	cryptBlocks(dst, src, keyMaterial[:BlockSize], location, true)
}

// Decrypt implements Suite.
func (Threefish512SHA256HMAC) Decrypt(dst, src, keyMaterial []byte, location uint64) {
	cryptBlocks(dst, src, keyMaterial[:BlockSize], location, false)
}

// MAC implements Suite. keyMaterial's trailing 64 bytes are the MAC key.
func (Threefish512SHA256HMAC) MAC(dst []byte, keyMaterial, data []byte) {
	macKey := keyMaterial[BlockSize:KeyMaterialSize]
	mac := hmac.New(sha256.New, macKey)
	mac.Write(data)
	copy(dst, mac.Sum(nil))
}

// Hash implements Suite.
func (Threefish512SHA256HMAC) Hash(dst []byte, data []byte) {
	sum := sha256.Sum256(data)
	copy(dst, sum[:])
}

// DeriveKeys implements Suite.
func (Threefish512SHA256HMAC) DeriveKeys(dst []byte, password, salt, params []byte, fatal func(string)) {
	iterations := packing.Uint64(params[:8])
	if iterations > 0xFFFFFFFF {
		fatal("ciphersuite: iteration count exceeds 2^32")
		return
	}
	derived := pbkdf2.Key(password, salt, int(iterations), KeyMaterialSize, sha256.New)
	copy(dst, derived)
}

