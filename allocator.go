package meagerdb

import "github.com/fpgaminer/meagerdb-go/internal/packing"

// findEmptyRow scans the page region from firstPage upward for a run of n
// consecutive 1-page tombstones, or extends the file at the terminator. On
// success it returns the run's start page; the run's pages are guaranteed
// to exist and, for a newly-extended run, to already be zeroed and covered
// by journal slot 0 so an interrupted insert is cleaned up on the next
// open.
func (db *DB) findEmptyRow(n uint32) (uint32, error) {
	p := uint32(firstPage)
	candidateStart := p
	runLen := uint32(0)

	for {
		plain, err := db.readPage(p)
		if err != nil {
			return 0, err
		}

		pageCount := packing.Uint32(plain[0:4])

		if pageCount == 0 {
			return db.extendForNewRun(p, n)
		}

		rowid := packing.Uint32(plain[4:8])
		if rowid != 0 {
			p += pageCount
			candidateStart = p
			runLen = 0
			continue
		}

		if pageCount != 1 {
			return 0, errf(CodeCorrupt, "findEmptyRow")
		}

		if runLen == 0 {
			candidateStart = p
		}
		runLen++
		if runLen == n {
			return candidateStart, nil
		}
		p++
	}
}

// extendForNewRun grows the file at the terminator page p to hold a new
// n-page run: pages [p, p+n] are zeroed (the last one becomes the new
// terminator), journal slot 0 is armed with (p, n), and p is returned.
func (db *DB) extendForNewRun(p, n uint32) (uint32, error) {
	if uint64(p)+uint64(n)+1 > 0xFFFFFFFF {
		return 0, errf(CodeFull, "findEmptyRow")
	}

	blank := make([]byte, db.realPageSize)
	for i := uint32(0); i <= n; i++ {
		if err := db.writePage(p+i, blank); err != nil {
			return 0, err
		}
	}

	if err := db.setJournal(journalSlot0, p, n); err != nil {
		return 0, err
	}

	return p, nil
}
