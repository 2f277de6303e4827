package meagerdb

import (
	"errors"

	"github.com/fpgaminer/meagerdb-go/internal/packing"
)

// setJournal arms (or, with count == 0, clears) a journal slot with a
// (page_start, page_count) deletion intent. The slot is written through
// the normal page pipeline: encrypted, authenticated, and fsynced before
// this returns.
func (db *DB) setJournal(slot uint32, start, count uint32) error {
	buf := make([]byte, db.realPageSize)
	packing.PutUint32(buf[0:4], start)
	packing.PutUint32(buf[4:8], count)
	return db.writePage(slot, buf)
}

// cleanupJournal runs the two-slot crash-recovery protocol: slot 1 has
// priority over slot 0, and a Corrupt result on either slot is tolerated
// (the slot is treated as empty) rather than propagated — the only place in
// the engine where Corrupt is swallowed rather than surfaced.
func (db *DB) cleanupJournal() error {
	if plain, err := db.readPage(journalSlot1); err != nil {
		if !isCorrupt(err) {
			return err
		}
	} else {
		start := packing.Uint32(plain[0:4])
		count := packing.Uint32(plain[4:8])
		if count != 0 && start >= firstPage {
			if err := db.setJournal(journalSlot0, 0, 0); err != nil {
				return err
			}
			if err := db.tombstoneRange(start, count); err != nil {
				return err
			}
			return db.setJournal(journalSlot1, 0, 0)
		}
	}

	plain, err := db.readPage(journalSlot0)
	if err != nil {
		if isCorrupt(err) {
			return nil
		}
		return err
	}

	start := packing.Uint32(plain[0:4])
	count := packing.Uint32(plain[4:8])
	if count != 0 && start >= firstPage {
		if err := db.tombstoneRange(start, count); err != nil {
			return err
		}
		return db.setJournal(journalSlot0, 0, 0)
	}

	return nil
}

// tombstoneRange overwrites each page in [start, start+count) with a
// 1-page tombstone (page_count = 1, all else zero).
func (db *DB) tombstoneRange(start, count uint32) error {
	for p := start; p < start+count; p++ {
		buf := make([]byte, db.realPageSize)
		packing.PutUint32(buf[0:4], 1)
		if err := db.writePage(p, buf); err != nil {
			return err
		}
	}
	return nil
}

func isCorrupt(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Code == CodeCorrupt
}
