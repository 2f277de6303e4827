package meagerdb

import (
	"math"

	"github.com/fpgaminer/meagerdb-go/internal/packing"
)

// Row header field offsets within a run's first page:
// page_count(4) rowid(4) tableid(1) valuelen(4).
const (
	rowPageCountOff = 0
	rowRowidOff     = 4
	rowTableOff     = 8
	rowValueLenOff  = 9
)

func (db *DB) checkOpen(op string) error {
	if db.file == nil {
		return errf(CodeNotOpen, op)
	}
	return nil
}

func (db *DB) checkSelected(op string) error {
	if err := db.checkOpen(op); err != nil {
		return err
	}
	if db.selectedPage < firstPage || db.selectedPageCount == 0 {
		return errf(CodeNoRowSelected, op)
	}
	return nil
}

func ceilDivU32(a, b uint32) uint32 {
	return uint32((uint64(a) + uint64(b) - 1) / uint64(b))
}

func maxU32(a, b uint32) uint32 {
	if a > b {
		return a
	}
	return b
}

func minU32(a, b uint32) uint32 {
	if a < b {
		return a
	}
	return b
}

// InsertBegin starts building a new row in table, sized to hold valuelen
// bytes of payload, and returns once the row's header page has been
// allocated and written. Call InsertContinue one or more times to stream
// the payload, then InsertFinalize.
//
// The allocated page_count rounds (valuelen+13) up to a whole number of
// real_page_size pages, so multi-page values survive round-trip; a
// non-rounding division under-allocates for values that must span more
// than one page. See DESIGN.md for the reasoning in full.
func (db *DB) InsertBegin(table uint8, valuelen uint32) error {
	if err := db.checkOpen("InsertBegin"); err != nil {
		return err
	}
	if valuelen > math.MaxUint32-rowHeaderSize {
		return errf(CodeDataTooBig, "InsertBegin")
	}
	if db.insertPageCount != 0 {
		return errf(CodeBusy, "InsertBegin")
	}

	pageCount := maxU32(1, ceilDivU32(valuelen+rowHeaderSize, db.realPageSize))

	rowid, err := db.NextRowid(table)
	if err != nil {
		return err
	}

	start, err := db.findEmptyRow(pageCount)
	if err != nil {
		return err
	}

	hdr := make([]byte, db.realPageSize)
	packing.PutUint32(hdr[rowPageCountOff:rowPageCountOff+4], pageCount)
	packing.PutUint32(hdr[rowRowidOff:rowRowidOff+4], rowid)
	hdr[rowTableOff] = table
	packing.PutUint32(hdr[rowValueLenOff:rowValueLenOff+4], valuelen)

	if err := db.writePage(start, hdr); err != nil {
		return err
	}

	db.insertPage = start
	db.insertPageCount = pageCount
	db.insertOffset = rowHeaderSize
	return nil
}

// InsertContinue streams data into the row started by InsertBegin,
// read-modify-writing each page it touches.
func (db *DB) InsertContinue(data []byte) error {
	if err := db.checkOpen("InsertContinue"); err != nil {
		return err
	}
	if db.insertPage < firstPage || db.insertPageCount == 0 {
		return errf(CodeNoRowSelected, "InsertContinue")
	}

	for len(data) > 0 {
		page := db.insertOffset / db.realPageSize
		pageOffset := db.insertOffset - page*db.realPageSize
		available := db.realPageSize - pageOffset
		l := minU32(uint32(len(data)), available)

		if page >= db.insertPageCount {
			db.fatal("meagerdb: InsertContinue: write past allocated run")
		}

		plain, err := db.readPage(db.insertPage + page)
		if err != nil {
			return err
		}
		copy(plain[pageOffset:pageOffset+l], data[:l])
		if err := db.writePage(db.insertPage+page, plain); err != nil {
			return err
		}

		data = data[l:]
		db.insertOffset += l
	}

	return nil
}

// InsertFinalize clears journal slot 0 (armed by the allocator when it
// extended the file for the run; a run of reused tombstones is not
// journaled) and makes the new row the current selection.
func (db *DB) InsertFinalize() error {
	if db.insertPage < firstPage || db.insertPageCount == 0 {
		return errf(CodeNoRowSelected, "InsertFinalize")
	}
	if err := db.setJournal(journalSlot0, 0, 0); err != nil {
		return err
	}
	db.selectedPage = db.insertPage
	db.selectedPageCount = db.insertPageCount
	db.insertPage = 0
	db.insertPageCount = 0
	db.insertOffset = 0
	return nil
}

// Insert is InsertBegin+InsertContinue+InsertFinalize in one call.
func (db *DB) Insert(table uint8, value []byte) error {
	if uint64(len(value)) > math.MaxUint32 {
		return errf(CodeDataTooBig, "Insert")
	}
	if err := db.InsertBegin(table, uint32(len(value))); err != nil {
		return err
	}
	if err := db.InsertContinue(value); err != nil {
		return err
	}
	return db.InsertFinalize()
}

// UpdateBegin requires a row to be selected; it stashes the selected run,
// builds a replacement elsewhere via InsertBegin, then overwrites the
// replacement's header with the original row's rowid.
func (db *DB) UpdateBegin(valuelen uint32) error {
	if err := db.checkOpen("UpdateBegin"); err != nil {
		return err
	}
	table, rowid, err := db.GetRowid()
	if err != nil {
		return err
	}
	if db.insertPageCount != 0 {
		return errf(CodeBusy, "UpdateBegin")
	}

	db.updatePage = db.selectedPage
	db.updatePageCount = db.selectedPageCount

	if err := db.InsertBegin(table, valuelen); err != nil {
		db.updatePage = 0
		db.updatePageCount = 0
		return err
	}

	hdr := make([]byte, db.realPageSize)
	packing.PutUint32(hdr[rowPageCountOff:rowPageCountOff+4], db.insertPageCount)
	packing.PutUint32(hdr[rowRowidOff:rowRowidOff+4], rowid)
	hdr[rowTableOff] = table
	packing.PutUint32(hdr[rowValueLenOff:rowValueLenOff+4], valuelen)

	return db.writePage(db.insertPage, hdr)
}

// UpdateContinue streams the replacement payload; it is InsertContinue
// under another name.
func (db *DB) UpdateContinue(data []byte) error {
	return db.InsertContinue(data)
}

// UpdateFinalize arms journal slot 1 with the old run so cleanup tombstones
// it (slot 1 has recovery priority over slot 0, guaranteeing the new row
// survives a crash between here and cleanup completing), then moves the
// selection to the new row if the old one was selected.
func (db *DB) UpdateFinalize() error {
	if db.updatePage < firstPage || db.updatePageCount == 0 {
		return errf(CodeNoRowSelected, "UpdateFinalize")
	}
	if db.insertPage < firstPage || db.insertPageCount == 0 {
		return errf(CodeNoRowSelected, "UpdateFinalize")
	}

	if err := db.setJournal(journalSlot1, db.updatePage, db.updatePageCount); err != nil {
		return err
	}
	if err := db.cleanupJournal(); err != nil {
		return err
	}

	if db.selectedPage == db.updatePage {
		db.selectedPage = db.insertPage
		db.selectedPageCount = db.insertPageCount
	}

	db.updatePage, db.updatePageCount = 0, 0
	db.insertPage, db.insertPageCount, db.insertOffset = 0, 0, 0
	return nil
}

// Update is UpdateBegin+UpdateContinue+UpdateFinalize in one call.
func (db *DB) Update(value []byte) error {
	if uint64(len(value)) > math.MaxUint32 {
		return errf(CodeDataTooBig, "Update")
	}
	if err := db.UpdateBegin(uint32(len(value))); err != nil {
		return err
	}
	if err := db.UpdateContinue(value); err != nil {
		return err
	}
	return db.UpdateFinalize()
}

// Delete requires a selected row and no insert/update in flight; it arms
// journal slot 0 with the selected run and runs cleanup.
func (db *DB) Delete() error {
	if err := db.checkOpen("Delete"); err != nil {
		return err
	}
	if db.insertPageCount != 0 || db.updatePageCount != 0 {
		return errf(CodeBusy, "Delete")
	}
	if db.selectedPage < firstPage || db.selectedPageCount == 0 {
		return errf(CodeNoRowSelected, "Delete")
	}

	if err := db.setJournal(journalSlot0, db.selectedPage, db.selectedPageCount); err != nil {
		return err
	}
	if err := db.cleanupJournal(); err != nil {
		return err
	}

	db.selectedPage, db.selectedPageCount = 0, 0
	return nil
}

// Walk advances the selection cursor: from page 2 if restart, or past the
// previously-selected run otherwise. It reports end == true on reaching the
// terminator, or end == false once it lands on a live row in table.
func (db *DB) Walk(table uint8, restart bool) (end bool, err error) {
	if err := db.checkOpen("Walk"); err != nil {
		return false, err
	}

	if restart {
		db.selectedPage = firstPage
	} else {
		db.selectedPage += db.selectedPageCount
	}

	for {
		plain, err := db.readPage(db.selectedPage)
		if err != nil {
			return false, err
		}

		count := packing.Uint32(plain[rowPageCountOff : rowPageCountOff+4])
		db.selectedPageCount = count
		if count == 0 {
			return true, nil
		}

		rowid := packing.Uint32(plain[rowRowidOff : rowRowidOff+4])
		tableid := plain[rowTableOff]
		if rowid > 0 && tableid == table {
			return false, nil
		}

		db.selectedPage += count
	}
}

// SelectByRowid walks table for the row with the given rowid.
func (db *DB) SelectByRowid(table uint8, rowid uint32) error {
	restart := true
	for {
		end, err := db.Walk(table, restart)
		if err != nil {
			return err
		}
		if end {
			return errf(CodeRowNotFound, "SelectByRowid")
		}
		restart = false

		_, got, err := db.GetRowid()
		if err != nil {
			return err
		}
		if got == rowid {
			return nil
		}
	}
}

// SelectByPage selects the row whose header page is page. It does not
// validate that page is actually a row head — if it isn't, the fields read
// back are whatever bytes happen to be there. Callers must only pass a page
// they know to be a row header (e.g. one previously returned by
// SelectedPage).
func (db *DB) SelectByPage(page uint32) error {
	if err := db.checkOpen("SelectByPage"); err != nil {
		return err
	}
	if page < firstPage {
		return errf(CodeBadArgument, "SelectByPage")
	}

	plain, err := db.readPage(page)
	if err != nil {
		db.selectedPage, db.selectedPageCount = 0, 0
		return err
	}

	count := packing.Uint32(plain[rowPageCountOff : rowPageCountOff+4])
	if count == 0 {
		db.selectedPage, db.selectedPageCount = 0, 0
		return errf(CodeRowNotFound, "SelectByPage")
	}

	db.selectedPage = page
	db.selectedPageCount = count
	return nil
}

// SelectedPage returns the header page of the currently selected row, for
// callers that want a stable handle to re-select it later via SelectByPage.
func (db *DB) SelectedPage() (uint32, error) {
	if err := db.checkSelected("SelectedPage"); err != nil {
		return 0, err
	}
	return db.selectedPage, nil
}

// GetRowid returns the table and rowid of the currently selected row.
func (db *DB) GetRowid() (table uint8, rowid uint32, err error) {
	if err := db.checkSelected("GetRowid"); err != nil {
		return 0, 0, err
	}
	plain, err := db.readPage(db.selectedPage)
	if err != nil {
		return 0, 0, err
	}
	return plain[rowTableOff], packing.Uint32(plain[rowRowidOff : rowRowidOff+4]), nil
}

// NextRowid returns one past the highest live rowid currently in table,
// preserving the selection across its internal walk. 0xFFFFFFFF already in
// use is Full.
func (db *DB) NextRowid(table uint8) (uint32, error) {
	if err := db.checkOpen("NextRowid"); err != nil {
		return 0, err
	}

	savedPage, savedCount := db.selectedPage, db.selectedPageCount
	restore := func() { db.selectedPage, db.selectedPageCount = savedPage, savedCount }

	var maxRowid uint32
	restart := true
	for {
		end, err := db.Walk(table, restart)
		if err != nil {
			restore()
			return 0, err
		}
		if end {
			break
		}
		restart = false

		_, rowid, err := db.GetRowid()
		if err != nil {
			restore()
			return 0, err
		}
		if rowid > maxRowid {
			maxRowid = rowid
		}
	}

	restore()
	if maxRowid == math.MaxUint32 {
		return 0, errf(CodeFull, "NextRowid")
	}
	return maxRowid + 1, nil
}

// ReadValue reads len(dst) bytes of the selected row's payload starting at
// offset (the 13-byte row header is implicit; offset is relative to the
// payload). Reading past the run's capacity is NotEnoughData.
func (db *DB) ReadValue(dst []byte, offset uint32) error {
	if err := db.checkSelected("ReadValue"); err != nil {
		return err
	}

	datalen := uint64(db.selectedPageCount) * uint64(db.realPageSize)
	realOffset := uint64(offset) + rowHeaderSize

	for len(dst) > 0 {
		if realOffset >= datalen {
			return errf(CodeNotEnoughData, "ReadValue")
		}

		page := uint32(realOffset / uint64(db.realPageSize))
		pageOffset := uint32(realOffset - uint64(page)*uint64(db.realPageSize))
		maxlen := db.realPageSize - pageOffset
		l := minU32(maxlen, uint32(len(dst)))

		plain, err := db.readPage(db.selectedPage + page)
		if err != nil {
			return err
		}
		copy(dst[:l], plain[pageOffset:pageOffset+l])

		dst = dst[l:]
		realOffset += uint64(l)
	}

	return nil
}

// ValueLen returns the selected row's declared value length.
func (db *DB) ValueLen() (uint32, error) {
	if err := db.checkSelected("ValueLen"); err != nil {
		return 0, err
	}
	plain, err := db.readPage(db.selectedPage)
	if err != nil {
		return 0, err
	}
	return packing.Uint32(plain[rowValueLenOff : rowValueLenOff+4]), nil
}

// GetValue returns the selected row's full value. maxlen bounds the
// declared length, not the allocation; a row claiming more than maxlen
// bytes fails with DataTooBig before anything is read.
func (db *DB) GetValue(maxlen uint32) ([]byte, error) {
	vlen, err := db.ValueLen()
	if err != nil {
		return nil, err
	}
	if vlen > maxlen {
		return nil, errf(CodeDataTooBig, "GetValue")
	}
	buf := make([]byte, vlen)
	if err := db.ReadValue(buf, 0); err != nil {
		return nil, err
	}
	return buf, nil
}
