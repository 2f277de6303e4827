// Package kv implements the key/value record layer that packs a row's
// payload into a sequence of (8-byte key, 4-byte length, value) records
// terminated by an all-zero key, on top of the meagerdb engine's
// update/read-value streaming API.
package kv

import (
	"errors"
	"math"

	"github.com/fpgaminer/meagerdb-go"
	"github.com/fpgaminer/meagerdb-go/internal/packing"
)

// KeyLen is the fixed width of a record key.
const KeyLen = 8

// recHeaderLen is the key plus the 4-byte little-endian value length.
const recHeaderLen = KeyLen + 4

// copyChunkSize bounds how much of an untouched record is streamed through
// at a time while rewriting a row's payload.
const copyChunkSize = 256

// Key is a fixed-width record key. The all-zero key is reserved as the
// payload terminator and is rejected by Set.
type Key [KeyLen]byte

// Update describes one record to write. A nil Value represents a delete:
// no record is written for the key, so it is removed from the record set.
// An empty but non-nil Value writes a record of length 0.
type Update struct {
	Key   Key
	Value []byte
}

func isEmptyKey(k []byte) bool {
	for _, b := range k {
		if b != 0 {
			return false
		}
	}
	return true
}

func errf(code meagerdb.Code, op string) *meagerdb.Error {
	return &meagerdb.Error{Code: code, Op: op}
}

// Set rewrites the selected row's payload so that its record set becomes
// (original \ keys(updates)) ∪ (updates with a non-nil Value), with the
// written updates preceding surviving originals in the order supplied, and
// surviving originals retaining their relative order.
func Set(db *meagerdb.DB, updates []Update) error {
	for _, u := range updates {
		if isEmptyKey(u.Key[:]) {
			return errf(meagerdb.CodeBadArgument, "kv.Set")
		}
	}

	totalLen := uint64(0)
	for _, u := range updates {
		if u.Value == nil {
			continue
		}
		totalLen += uint64(recHeaderLen) + uint64(len(u.Value))
	}
	if totalLen > math.MaxUint32 {
		return errf(meagerdb.CodeDataTooBig, "kv.Set")
	}

	// First pass over the existing payload: add the length of every record
	// whose key isn't being overwritten.
	offset := uint32(0)
	hdr := make([]byte, recHeaderLen)
	for {
		if err := db.ReadValue(hdr, offset); err != nil {
			return err
		}
		if isEmptyKey(hdr[:KeyLen]) {
			totalLen += recHeaderLen
			if totalLen > math.MaxUint32 {
				return errf(meagerdb.CodeDataTooBig, "kv.Set")
			}
			break
		}

		vlen := packing.Uint32(hdr[KeyLen : KeyLen+4])
		recLen := uint64(recHeaderLen) + uint64(vlen)

		overwritten := false
		for _, u := range updates {
			if u.Key == Key(hdr[:KeyLen]) {
				overwritten = true
				break
			}
		}
		if !overwritten {
			totalLen += recLen
			if totalLen > math.MaxUint32 {
				return errf(meagerdb.CodeDataTooBig, "kv.Set")
			}
		}

		offset += uint32(recLen)
	}

	if err := db.UpdateBegin(uint32(totalLen)); err != nil {
		return err
	}

	for _, u := range updates {
		if u.Value == nil {
			continue
		}
		rec := make([]byte, recHeaderLen)
		copy(rec[:KeyLen], u.Key[:])
		packing.PutUint32(rec[KeyLen:KeyLen+4], uint32(len(u.Value)))
		if err := db.UpdateContinue(rec); err != nil {
			return err
		}
		if err := db.UpdateContinue(u.Value); err != nil {
			return err
		}
	}

	offset = 0
	chunk := make([]byte, copyChunkSize)
	for {
		if err := db.ReadValue(hdr, offset); err != nil {
			return err
		}
		if isEmptyKey(hdr[:KeyLen]) {
			if err := db.UpdateContinue(hdr); err != nil {
				return err
			}
			break
		}

		vlen := packing.Uint32(hdr[KeyLen : KeyLen+4])
		recLen := recHeaderLen + vlen

		overwritten := false
		for _, u := range updates {
			if u.Key == Key(hdr[:KeyLen]) {
				overwritten = true
				break
			}
		}
		if overwritten {
			offset += recLen
			continue
		}

		for remaining := recLen; remaining > 0; {
			l := remaining
			if l > copyChunkSize {
				l = copyChunkSize
			}
			if err := db.ReadValue(chunk[:l], offset); err != nil {
				return err
			}
			if err := db.UpdateContinue(chunk[:l]); err != nil {
				return err
			}
			offset += l
			remaining -= l
		}
	}

	return db.UpdateFinalize()
}

// GetValue looks up key in the selected row's payload. found is false if no
// record with that key exists.
func GetValue(db *meagerdb.DB, key Key, maxlen uint32) (value []byte, found bool, err error) {
	offset := uint32(0)
	hdr := make([]byte, recHeaderLen)
	for {
		if err := db.ReadValue(hdr, offset); err != nil {
			return nil, false, err
		}
		if isEmptyKey(hdr[:KeyLen]) {
			return nil, false, nil
		}

		vlen := packing.Uint32(hdr[KeyLen : KeyLen+4])
		offset += recHeaderLen

		if Key(hdr[:KeyLen]) == key {
			if vlen > maxlen {
				return nil, true, errf(meagerdb.CodeDataTooBig, "kv.GetValue")
			}
			val := make([]byte, vlen)
			if err := db.ReadValue(val, offset); err != nil {
				return nil, true, err
			}
			return val, true, nil
		}

		offset += vlen
	}
}

// ReadKey returns the idx-th key in the selected row's payload.
func ReadKey(db *meagerdb.DB, idx uint32) (Key, error) {
	offset := uint32(0)
	hdr := make([]byte, recHeaderLen)
	for current := uint32(0); ; current++ {
		if err := db.ReadValue(hdr, offset); err != nil {
			return Key{}, err
		}
		if isEmptyKey(hdr[:KeyLen]) {
			return Key{}, errf(meagerdb.CodeNotFound, "kv.ReadKey")
		}

		vlen := packing.Uint32(hdr[KeyLen : KeyLen+4])
		offset += recHeaderLen + vlen

		if current == idx {
			return Key(hdr[:KeyLen]), nil
		}
	}
}

// GetUint32 wraps GetValue and requires the stored value be exactly 4
// bytes; both "not found" and "found but wrong length" report BadType,
// since neither case yields a usable uint32.
func GetUint32(db *meagerdb.DB, key Key) (uint32, error) {
	val, found, err := GetValue(db, key, 4)
	if errors.Is(err, meagerdb.ErrDataTooBig) {
		return 0, errf(meagerdb.CodeBadType, "kv.GetUint32")
	}
	if err != nil {
		return 0, err
	}
	if !found || len(val) != 4 {
		return 0, errf(meagerdb.CodeBadType, "kv.GetUint32")
	}
	return packing.Uint32(val), nil
}
