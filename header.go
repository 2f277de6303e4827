package meagerdb

import (
	"io"
	"math"

	"github.com/fpgaminer/meagerdb-go/internal/ciphersuite"
	"github.com/fpgaminer/meagerdb-go/internal/packing"
)

// Create initializes a brand-new database at path, deriving content keys
// from password with the given PBKDF2 iteration count, and returns a handle
// open for immediate use. The KDF params field stores iterations as a
// little-endian uint64, but a count above math.MaxUint32 is rejected with
// BadKeyDerive before anything is written.
func Create(path, password string, iterations uint64, opts ...Option) (*DB, error) {
	if iterations > math.MaxUint32 {
		return nil, errf(CodeBadKeyDerive, "Create")
	}

	db := newDB(opts)

	pageSize := uint32(DefaultPageSize)
	db.pageSize = pageSize
	db.realPageSize = realPageSize(pageSize)
	db.cachedPlain = make([]byte, db.realPageSize)

	headerPages := roundUpU32(headerContentSize, pageSize, db.fatal) / pageSize
	paramsPages := roundUpU32(paramsContentSize, pageSize, db.fatal) / pageSize
	db.pageOffset = uint64(headerPages+2*paramsPages) * uint64(pageSize)

	f, err := db.host.Create(path)
	if err != nil {
		return nil, wrapf(CodeOpen, "Create", err)
	}
	db.file = f

	if err := db.host.RandomBytes(db.keyMaterial[:]); err != nil {
		db.file.Close()
		return nil, wrapf(CodeIO, "Create", err)
	}
	contentKeysPlain := append([]byte(nil), db.keyMaterial[:]...)

	hdr := make([]byte, headerContentSize)
	copy(hdr[0:8], magic)
	hdr[8] = versionLow
	hdr[9] = versionHigh
	packing.PutUint32(hdr[headerPageSzOff:headerPageSzOff+4], pageSize)
	if err := db.host.RandomBytes(hdr[headerDBIDOffset : headerDBIDOffset+32]); err != nil {
		db.file.Close()
		return nil, wrapf(CodeIO, "Create", err)
	}
	copy(hdr[headerSuiteOffset:headerSuiteOffset+32], ciphersuite.Name)

	var headerHash [tagSize]byte
	db.suite.Hash(headerHash[:], hdr[:headerHashOffset])
	copy(hdr[headerHashOffset:headerHashOffset+tagSize], headerHash[:])

	if err := writeRaw(db.file, 0, hdr, headerPages*pageSize); err != nil {
		db.file.Close()
		return nil, err
	}

	params := make([]byte, paramsContentSize)
	if err := db.host.RandomBytes(params[paramsSaltOffset : paramsSaltOffset+64]); err != nil {
		db.file.Close()
		return nil, wrapf(CodeIO, "Create", err)
	}
	copy(params[paramsKDFNameOff:paramsKDFNameOff+32], ciphersuite.KDFName)
	packing.PutUint64(params[paramsKDFParamsOff:paramsKDFParamsOff+8], iterations)

	var derivedKeys [ciphersuite.KeyMaterialSize]byte
	db.suite.DeriveKeys(derivedKeys[:], []byte(password), params[paramsSaltOffset:paramsSaltOffset+64], params[paramsKDFParamsOff:paramsKDFParamsOff+32], db.fatal)

	keysFileOffset := uint64(headerPages)*uint64(pageSize) + paramsKeysOffset
	db.suite.Encrypt(params[paramsKeysOffset:paramsKeysOffset+128], contentKeysPlain, derivedKeys[:], keysFileOffset)
	packing.Zero(contentKeysPlain)

	var mac [tagSize]byte
	macInput := append(append([]byte(nil), headerHash[:]...), params[:paramsMACedSize]...)
	db.suite.MAC(mac[:], derivedKeys[:], macInput)
	copy(params[paramsMACOffset:paramsMACOffset+tagSize], mac[:])

	var paramsHash [tagSize]byte
	db.suite.Hash(paramsHash[:], params[:paramsHashedSize])
	copy(params[paramsHashOffset:paramsHashOffset+tagSize], paramsHash[:])

	packing.Zero(derivedKeys[:])

	block0Offset := uint64(headerPages) * uint64(pageSize)
	if err := writeRaw(db.file, block0Offset, params, paramsPages*pageSize); err != nil {
		db.file.Close()
		return nil, err
	}

	block1Offset := block0Offset + uint64(paramsPages)*uint64(pageSize)
	if err := writeRaw(db.file, block1Offset, nil, paramsPages*pageSize); err != nil {
		db.file.Close()
		return nil, err
	}

	// Journal slots are written as raw zero bytes, bypassing the normal
	// encrypt+MAC page pipeline entirely; cleanupJournal's "Corrupt is
	// tolerated" policy is what makes an all-zero slot read back as empty.
	if err := writeRaw(db.file, db.pageOffset, nil, pageSize); err != nil {
		db.file.Close()
		return nil, err
	}
	if err := writeRaw(db.file, db.pageOffset+uint64(pageSize), nil, pageSize); err != nil {
		db.file.Close()
		return nil, err
	}

	if err := db.writePage(firstPage, make([]byte, db.realPageSize)); err != nil {
		db.file.Close()
		return nil, err
	}

	if err := db.file.Sync(); err != nil {
		db.file.Close()
		return nil, wrapf(CodeIO, "Create", err)
	}

	return db, nil
}

// Open unlocks an existing database at path with password, verifying the
// header, locating a valid parameters block, deriving keys, authenticating
// and decrypting the stored content keys, and running journal cleanup.
func Open(path, password string, opts ...Option) (*DB, error) {
	db := newDB(opts)

	f, err := db.host.Open(path)
	if err != nil {
		return nil, wrapf(CodeOpen, "Open", err)
	}
	db.file = f

	hdr := make([]byte, headerContentSize)
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		f.Close()
		return nil, wrapf(CodeIO, "Open", err)
	}
	if _, err := io.ReadFull(f, hdr); err != nil {
		f.Close()
		return nil, wrapf(CodeIO, "Open", err)
	}

	if string(hdr[0:8]) != magic {
		f.Close()
		return nil, errf(CodeNotMDB, "Open")
	}
	if hdr[8] != versionLow || hdr[9] != versionHigh {
		f.Close()
		return nil, errf(CodeBadVersion, "Open")
	}

	wantSuite := make([]byte, 32)
	copy(wantSuite, ciphersuite.Name)
	if !packing.ConstantTimeCompare(hdr[headerSuiteOffset:headerSuiteOffset+32], wantSuite) {
		f.Close()
		return nil, errf(CodeUnsupportedCipher, "Open")
	}

	pageSize := packing.Uint32(hdr[headerPageSzOff : headerPageSzOff+4])
	if pageSize < MinPageSize {
		f.Close()
		return nil, errf(CodeBadPageSize, "Open")
	}
	if pageSize > MaxPageSize {
		f.Close()
		return nil, errf(CodeUnsupportedPageSize, "Open")
	}
	if pageSize%ciphersuite.BlockSize != 0 || pageSize-tagSize < ciphersuite.BlockSize {
		f.Close()
		return nil, errf(CodeBadPageSize, "Open")
	}

	var headerHash [tagSize]byte
	db.suite.Hash(headerHash[:], hdr[:headerHashOffset])
	if !packing.ConstantTimeCompare(headerHash[:], hdr[headerHashOffset:headerHashOffset+tagSize]) {
		f.Close()
		return nil, errf(CodeCorrupt, "Open")
	}

	db.pageSize = pageSize
	db.realPageSize = realPageSize(pageSize)
	db.cachedPlain = make([]byte, db.realPageSize)

	headerPages := roundUpU32(headerContentSize, pageSize, db.fatal) / pageSize
	paramsPages := roundUpU32(paramsContentSize, pageSize, db.fatal) / pageSize
	db.pageOffset = uint64(headerPages+2*paramsPages) * uint64(pageSize)

	block0Offset := uint64(headerPages) * uint64(pageSize)
	block1Offset := block0Offset + uint64(paramsPages)*uint64(pageSize)

	params, blockOffset, err := readParamsBlock(db, f, block0Offset, headerHash[:])
	if err != nil {
		params, blockOffset, err = readParamsBlock(db, f, block1Offset, headerHash[:])
		if err != nil {
			f.Close()
			return nil, errf(CodeCorrupt, "Open")
		}
	}

	wantKDF := make([]byte, 32)
	copy(wantKDF, ciphersuite.KDFName)
	if !packing.ConstantTimeCompare(params[paramsKDFNameOff:paramsKDFNameOff+32], wantKDF) {
		f.Close()
		return nil, errf(CodeBadKeyDerive, "Open")
	}

	var derivedKeys [ciphersuite.KeyMaterialSize]byte
	db.suite.DeriveKeys(derivedKeys[:], []byte(password), params[paramsSaltOffset:paramsSaltOffset+64], params[paramsKDFParamsOff:paramsKDFParamsOff+32], db.fatal)

	var mac [tagSize]byte
	macInput := append(append([]byte(nil), headerHash[:]...), params[:paramsMACedSize]...)
	db.suite.MAC(mac[:], derivedKeys[:], macInput)
	if !packing.ConstantTimeCompare(mac[:], params[paramsMACOffset:paramsMACOffset+tagSize]) {
		packing.Zero(derivedKeys[:])
		f.Close()
		return nil, errf(CodeBadPassword, "Open")
	}

	keysFileOffset := blockOffset + paramsKeysOffset
	db.suite.Decrypt(db.keyMaterial[:], params[paramsKeysOffset:paramsKeysOffset+128], derivedKeys[:], keysFileOffset)

	packing.Zero(derivedKeys[:])
	packing.Zero(params)

	if err := db.cleanupJournal(); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

// readParamsBlock reads one parameters block at the given file offset and
// validates it by hash only — password correctness is checked separately,
// against the MAC, once keys have been derived.
func readParamsBlock(db *DB, f interface {
	io.Reader
	io.Seeker
}, offset uint64, headerHash []byte) ([]byte, uint64, error) {
	params := make([]byte, paramsContentSize)
	if _, err := f.Seek(int64(offset), io.SeekStart); err != nil {
		return nil, 0, wrapf(CodeIO, "Open", err)
	}
	if _, err := io.ReadFull(f, params); err != nil {
		return nil, 0, wrapf(CodeIO, "Open", err)
	}

	var hash [tagSize]byte
	db.suite.Hash(hash[:], params[:paramsHashedSize])
	if !packing.ConstantTimeCompare(hash[:], params[paramsHashOffset:paramsHashOffset+tagSize]) {
		return nil, 0, errf(CodeCorrupt, "Open")
	}
	return params, offset, nil
}

// writeRaw seeks to offset and writes content, zero-padding out to totalLen
// bytes. content may be nil (a fully zero-filled write of totalLen bytes).
func writeRaw(f interface {
	io.Writer
	io.Seeker
}, offset uint64, content []byte, totalLen uint32) error {
	if _, err := f.Seek(int64(offset), io.SeekStart); err != nil {
		return wrapf(CodeIO, "writeRaw", err)
	}
	if len(content) > 0 {
		if _, err := f.Write(content); err != nil {
			return wrapf(CodeIO, "writeRaw", err)
		}
	}
	if pad := int(totalLen) - len(content); pad > 0 {
		if _, err := f.Write(make([]byte, pad)); err != nil {
			return wrapf(CodeIO, "writeRaw", err)
		}
	}
	return nil
}
