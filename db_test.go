package meagerdb

import (
	"testing"

	"github.com/fpgaminer/meagerdb-go/internal/host"
	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T) (*host.MemHost, *DB) {
	t.Helper()
	mem := host.NewMemHost()
	db, err := Create("test.mdb", "pw", 10, WithHost(mem))
	require.NoError(t, err)
	return mem, db
}

func TestCreateThenWalkEmpty(t *testing.T) {
	mem, db := newTestDB(t)
	require.NoError(t, db.Close())

	db, err := Open("test.mdb", "pw", WithHost(mem))
	require.NoError(t, err)
	defer db.Close()

	end, err := db.Walk(0, true)
	require.NoError(t, err)
	require.True(t, end)
}

func TestInsertSelectGetValueRoundTrip(t *testing.T) {
	mem, db := newTestDB(t)

	require.NoError(t, db.Insert(1, []byte("hello")))
	rowid, err := db.NextRowid(1)
	require.NoError(t, err)
	require.Equal(t, uint32(2), rowid) // one row already live, with rowid 1

	require.NoError(t, db.Close())

	db, err = Open("test.mdb", "pw", WithHost(mem))
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, db.SelectByRowid(1, 1))
	value, err := db.GetValue(4096)
	require.NoError(t, err)
	require.Equal(t, []byte("hello"), value)
}

func TestInsertMultiPageValue(t *testing.T) {
	_, db := newTestDB(t)
	defer db.Close()

	value := make([]byte, 300)
	for i := range value {
		value[i] = byte(i)
	}

	require.NoError(t, db.Insert(2, value))
	require.NoError(t, db.SelectByRowid(2, 1))
	require.Greater(t, db.selectedPageCount, uint32(1))

	got, err := db.GetValue(4096)
	require.NoError(t, err)
	require.Equal(t, value, got)
}

func TestDeleteAndWalkOrder(t *testing.T) {
	_, db := newTestDB(t)
	defer db.Close()

	require.NoError(t, db.Insert(1, []byte("a")))
	require.NoError(t, db.Insert(1, []byte("b")))
	require.NoError(t, db.Insert(1, []byte("c")))

	require.NoError(t, db.SelectByRowid(1, 2))
	require.NoError(t, db.Delete())

	var rowids []uint32
	end, err := db.Walk(1, true)
	require.NoError(t, err)
	for !end {
		_, rowid, err := db.GetRowid()
		require.NoError(t, err)
		rowids = append(rowids, rowid)
		end, err = db.Walk(1, false)
		require.NoError(t, err)
	}
	require.Equal(t, []uint32{1, 3}, rowids)

	next, err := db.NextRowid(1)
	require.NoError(t, err)
	require.Equal(t, uint32(4), next)
}

func TestUpdateSurvivesCrashAfterJournalSlot1Armed(t *testing.T) {
	mem, db := newTestDB(t)

	require.NoError(t, db.Insert(1, []byte("short")))
	require.NoError(t, db.SelectByRowid(1, 1))

	oldPage, oldCount := db.selectedPage, db.selectedPageCount

	longValue := make([]byte, 300)
	for i := range longValue {
		longValue[i] = byte(200 + i)
	}

	require.NoError(t, db.UpdateBegin(uint32(len(longValue))))
	require.NoError(t, db.UpdateContinue(longValue))

	// Simulate a crash between arming journal slot 1 and cleanup completing:
	// stop right after set_journal, before cleanupJournal runs.
	require.NoError(t, db.setJournal(journalSlot1, oldPage, oldCount))

	reopened, err := Open("test.mdb", "pw", WithHost(mem))
	require.NoError(t, err)
	defer reopened.Close()

	require.NoError(t, reopened.SelectByRowid(1, 1))
	got, err := reopened.GetValue(4096)
	require.NoError(t, err)
	require.Equal(t, longValue, got)

	count := 0
	end, err := reopened.Walk(1, true)
	require.NoError(t, err)
	for !end {
		count++
		end, err = reopened.Walk(1, false)
		require.NoError(t, err)
	}
	require.Equal(t, 1, count)
}

func TestPageTamperIsDetected(t *testing.T) {
	mem, db := newTestDB(t)

	require.NoError(t, db.Insert(1, []byte("hello")))
	require.NoError(t, db.Close())

	rowPageOffset := int64(db.pageOffset) + firstPage*int64(db.pageSize)
	mem.Corrupt("test.mdb", rowPageOffset, 0x01)

	db, err := Open("test.mdb", "pw", WithHost(mem))
	require.NoError(t, err)
	defer db.Close()

	// The flipped byte is the first ciphertext byte of the row's own page
	// (page 2; "hello" fits in one page), so the corruption may surface
	// either while walking to it or while reading its value back.
	if err := db.SelectByRowid(1, 1); err != nil {
		require.ErrorIs(t, err, ErrCorrupt)
		return
	}
	_, err = db.GetValue(4096)
	require.ErrorIs(t, err, ErrCorrupt)
}

func TestOpenWrongPassword(t *testing.T) {
	mem, db := newTestDB(t)
	require.NoError(t, db.Close())

	_, err := Open("test.mdb", "not the password", WithHost(mem))
	require.ErrorIs(t, err, ErrBadPassword)
}

func TestReopenIsIdempotent(t *testing.T) {
	mem, db := newTestDB(t)
	require.NoError(t, db.Insert(1, []byte("x")))
	keys1 := db.keyMaterial
	require.NoError(t, db.Close())

	db1, err := Open("test.mdb", "pw", WithHost(mem))
	require.NoError(t, err)
	keys2 := db1.keyMaterial
	require.NoError(t, db1.Close())

	db2, err := Open("test.mdb", "pw", WithHost(mem))
	require.NoError(t, err)
	defer db2.Close()

	require.Equal(t, keys1, keys2)
	require.Equal(t, keys2, db2.keyMaterial)
}
