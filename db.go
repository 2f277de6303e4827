// Package meagerdb implements the MeagerDB encrypted, append-structured row
// store: a single-file, single-writer database designed for RAM-constrained
// hosts, with Threefish-512/SHA-256/HMAC page encryption, a two-slot
// journal for crash recovery, and a page-run allocator addressed by
// monotonically assigned rowids.
//
// A DB value is not safe for concurrent use; exactly one goroutine may hold
// and call methods on a given *DB at a time.
package meagerdb

import (
	"github.com/rs/zerolog"

	"github.com/fpgaminer/meagerdb-go/internal/ciphersuite"
	"github.com/fpgaminer/meagerdb-go/internal/host"
	"github.com/fpgaminer/meagerdb-go/internal/packing"
)

// DB is a handle to an open MeagerDB database. The zero value is not usable;
// obtain one from Create or Open.
type DB struct {
	host  host.Host
	suite ciphersuite.Suite
	file  host.File

	pageSize     uint32
	realPageSize uint32
	pageOffset   uint64 // absolute byte offset of page 0

	keyMaterial [ciphersuite.KeyMaterialSize]byte

	cachedPage  uint32 // 0 == invalid; page 0 is a journal slot and is never cached
	cachedPlain []byte // realPageSize bytes, valid iff cachedPage != 0
	scratch     []byte // MaxPageSize+8 bytes; the +8 covers the tweak-concat trick

	selectedPage      uint32
	selectedPageCount uint32

	insertPage      uint32
	insertPageCount uint32
	insertOffset    uint32

	updatePage      uint32
	updatePageCount uint32
}

// Option configures a DB at Create/Open time.
type Option func(*DB)

// WithHost overrides the Host implementation (filesystem + randomness +
// fatal-abort hook). Defaults to an OS-backed host.Host when unset.
func WithHost(h host.Host) Option {
	return func(db *DB) { db.host = h }
}

// WithLogger wires an OS-backed host.Host that logs I/O boundary events
// through logger, for callers that want the default filesystem host but
// with observability. Ignored if WithHost is also given and applied after.
func WithLogger(logger zerolog.Logger) Option {
	return func(db *DB) { db.host = host.NewOSHost(logger) }
}

func newDB(opts []Option) *DB {
	db := &DB{
		suite:   ciphersuite.Threefish512SHA256HMAC{},
		scratch: make([]byte, MaxPageSize+8),
	}
	for _, opt := range opts {
		opt(db)
	}
	if db.host == nil {
		db.host = host.NewOSHost(noopLogger())
	}
	return db
}

func (db *DB) fatal(msg string) {
	db.host.Fatal(msg)
	panic(msg) // unreachable: Fatal never returns.
}

// Close flushes nothing (every write already fsynced before returning) and
// releases the underlying file, zeroing all key material and cached
// plaintext so secrets don't linger in memory after the handle is done.
func (db *DB) Close() error {
	if db.file == nil {
		return nil
	}
	err := db.file.Close()
	db.file = nil
	packing.Zero(db.keyMaterial[:])
	packing.Zero(db.scratch)
	if db.cachedPlain != nil {
		packing.Zero(db.cachedPlain)
	}
	db.cachedPage = 0
	db.selectedPage, db.selectedPageCount = 0, 0
	db.insertPage, db.insertPageCount, db.insertOffset = 0, 0, 0
	db.updatePage, db.updatePageCount = 0, 0
	if err != nil {
		return wrapf(CodeIO, "Close", err)
	}
	return nil
}
