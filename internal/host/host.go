// Package host models the environment MeagerDB's engine is hosted in:
// file I/O, a random-bytes source, and a fatal-abort hook. These are
// external collaborators supplied by the embedding application (on a
// microcontroller, by the firmware); this package gives that boundary a
// concrete Go shape with an OS-backed default so the engine runs the same
// way on a developer's laptop, and an in-memory implementation so tests
// can exercise crash/corruption scenarios without touching the
// filesystem.
package host

import "io"

// File is the positioned read/write/sync surface the engine needs from an
// open database file. It mirrors the host shim's read/write/lseek/fsync/
// close functions (app.h's mdba_* functions) rather than Go's
// ReaderAt/WriterAt, because the engine's own page cache already serializes
// all access and always seeks immediately before reading or writing.
type File interface {
	io.ReadWriteSeeker
	io.Closer

	// Sync flushes any buffered writes to stable storage. The engine calls
	// this after every WritePage, never batching across pages.
	Sync() error
}

// Host is everything the engine needs from its environment beyond pure
// computation.
type Host interface {
	// Create opens path for a brand-new database, creating it if absent and
	// truncating it if present (mirroring the C shim's fopen(path, "w+b")).
	Create(path string) (File, error)

	// Open opens an existing database file for reading and writing
	// (fopen(path, "r+b")). It must fail if path does not exist.
	Open(path string) (File, error)

	// RandomBytes fills dst with cryptographically random bytes.
	RandomBytes(dst []byte) error

	// Fatal reports an unrecoverable programmer error or broken invariant
	// (misaligned crypto lengths, zero modulus in round-up, overflow,
	// oversized iteration counts) and does not return.
	Fatal(msg string)
}
