package meagerdb

import (
	"io"

	"github.com/fpgaminer/meagerdb-go/internal/packing"
)

// readPage returns the decrypted, authenticated plaintext of page p. The
// returned slice is db's single-page cache buffer: it is only valid until
// the next call to readPage or writePage, and callers that need to mutate
// it before writing it back (insert/update streaming) are expected to do
// so in place.
func (db *DB) readPage(p uint32) ([]byte, error) {
	if db.file == nil {
		return nil, errf(CodeNotOpen, "readPage")
	}

	if p == db.cachedPage && p != 0 {
		return db.cachedPlain, nil
	}
	db.cachedPage = 0

	pos := db.pageOffset + uint64(p)*uint64(db.pageSize)

	if _, err := db.file.Seek(int64(pos), io.SeekStart); err != nil {
		return nil, wrapf(CodeIO, "readPage", err)
	}

	cipherLen := int(db.realPageSize)
	buf := db.scratch[:cipherLen+8+tagSize]
	if _, err := io.ReadFull(db.file, buf[:cipherLen+tagSize]); err != nil {
		return nil, wrapf(CodeIO, "readPage", err)
	}

	// Shift the trailing tag right by 8 bytes to open a gap for the file
	// offset, so the MAC authenticates (ciphertext || offset).
	copy(buf[cipherLen+8:cipherLen+8+tagSize], buf[cipherLen:cipherLen+tagSize])
	packing.PutUint64(buf[cipherLen:cipherLen+8], pos)

	storedTag := buf[cipherLen+8 : cipherLen+8+tagSize]
	var computed [tagSize]byte
	db.suite.MAC(computed[:], db.keyMaterial[:], buf[:cipherLen+8])

	if !packing.ConstantTimeCompare(computed[:], storedTag) {
		return nil, errf(CodeCorrupt, "readPage")
	}

	db.suite.Decrypt(db.cachedPlain, buf[:cipherLen], db.keyMaterial[:], pos)

	if p != 0 {
		// Page 0 is a journal slot; it changes too often to be worth
		// caching, and caching it would also violate the invariant that
		// cachedPage == 0 means "cache invalid".
		db.cachedPage = p
	}

	return db.cachedPlain, nil
}

// writePage encrypts plain (exactly realPageSize bytes) and writes it, with
// its authenticator and trailing padding, to page p, fsyncing before
// returning. The cache is invalidated: the engine never caches a page it
// just wrote.
func (db *DB) writePage(p uint32, plain []byte) error {
	if db.file == nil {
		return errf(CodeNotOpen, "writePage")
	}
	if uint32(len(plain)) != db.realPageSize {
		db.fatal("meagerdb: writePage: plaintext length mismatch")
	}

	db.cachedPage = 0

	pos := db.pageOffset + uint64(p)*uint64(db.pageSize)
	cipherLen := int(db.realPageSize)
	buf := db.scratch[:cipherLen+8+tagSize]

	db.suite.Encrypt(buf[:cipherLen], plain, db.keyMaterial[:], pos)
	packing.PutUint64(buf[cipherLen:cipherLen+8], pos)

	var tag [tagSize]byte
	db.suite.MAC(tag[:], db.keyMaterial[:], buf[:cipherLen+8])
	copy(buf[cipherLen:cipherLen+tagSize], tag[:])

	if _, err := db.file.Seek(int64(pos), io.SeekStart); err != nil {
		return wrapf(CodeIO, "writePage", err)
	}
	if _, err := db.file.Write(buf[:cipherLen+tagSize]); err != nil {
		return wrapf(CodeIO, "writePage", err)
	}

	if padLen := int(db.pageSize) - cipherLen - tagSize; padLen > 0 {
		if _, err := db.file.Write(make([]byte, padLen)); err != nil {
			return wrapf(CodeIO, "writePage", err)
		}
	}

	if err := db.file.Sync(); err != nil {
		return wrapf(CodeIO, "writePage", err)
	}

	return nil
}
