package kv_test

import (
	"testing"

	"github.com/fpgaminer/meagerdb-go"
	"github.com/fpgaminer/meagerdb-go/internal/host"
	"github.com/fpgaminer/meagerdb-go/kv"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T) *meagerdb.DB {
	t.Helper()
	mem := host.NewMemHost()
	db, err := meagerdb.Create("test.mdb", "pw", 10, meagerdb.WithHost(mem))
	require.NoError(t, err)
	return db
}

func TestSetAndGetValueRoundTrip(t *testing.T) {
	db := newTestDB(t)
	defer db.Close()

	require.NoError(t, db.Insert(1, nil))
	require.NoError(t, db.SelectByRowid(1, 1))

	k1 := kv.Key{1, 2, 3, 4, 5, 6, 7, 8}
	k2 := kv.Key{9, 9, 9, 9, 9, 9, 9, 9}

	err := kv.Set(db, []kv.Update{
		{Key: k1, Value: []byte("first")},
		{Key: k2, Value: []byte("second value, longer")},
	})
	require.NoError(t, err)

	v1, found, err := kv.GetValue(db, k1, 64)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, []byte("first"), v1)

	v2, found, err := kv.GetValue(db, k2, 64)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, []byte("second value, longer"), v2)

	missing := kv.Key{0xff, 0, 0, 0, 0, 0, 0, 0}
	_, found, err = kv.GetValue(db, missing, 64)
	require.NoError(t, err)
	require.False(t, found)
}

func TestSetOverwriteAndDelete(t *testing.T) {
	db := newTestDB(t)
	defer db.Close()

	require.NoError(t, db.Insert(1, nil))
	require.NoError(t, db.SelectByRowid(1, 1))

	k := kv.Key{1, 1, 1, 1, 1, 1, 1, 1}
	require.NoError(t, kv.Set(db, []kv.Update{{Key: k, Value: []byte("v1")}}))

	v, found, err := kv.GetValue(db, k, 64)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, []byte("v1"), v)

	require.NoError(t, kv.Set(db, []kv.Update{{Key: k, Value: []byte("v2, updated")}}))
	v, found, err = kv.GetValue(db, k, 64)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, []byte("v2, updated"), v)

	require.NoError(t, kv.Set(db, []kv.Update{{Key: k, Value: nil}}))
	_, found, err = kv.GetValue(db, k, 64)
	require.NoError(t, err)
	require.False(t, found)
}

func TestGetUint32(t *testing.T) {
	db := newTestDB(t)
	defer db.Close()

	require.NoError(t, db.Insert(1, nil))
	require.NoError(t, db.SelectByRowid(1, 1))

	k := kv.Key{'c', 'o', 'u', 'n', 't', 0, 0, 0}
	buf := []byte{0x2a, 0x00, 0x00, 0x00}
	require.NoError(t, kv.Set(db, []kv.Update{{Key: k, Value: buf}}))

	v, err := kv.GetUint32(db, k)
	require.NoError(t, err)
	require.Equal(t, uint32(42), v)

	wrongLen := kv.Key{'b', 'a', 'd', 0, 0, 0, 0, 0}
	require.NoError(t, kv.Set(db, []kv.Update{{Key: wrongLen, Value: []byte("xy")}}))
	_, err = kv.GetUint32(db, wrongLen)
	require.ErrorIs(t, err, meagerdb.ErrBadType)

	missing := kv.Key{'n', 'o', 'p', 'e', 0, 0, 0, 0}
	_, err = kv.GetUint32(db, missing)
	require.ErrorIs(t, err, meagerdb.ErrBadType)
}

func TestSetRejectsEmptyKey(t *testing.T) {
	db := newTestDB(t)
	defer db.Close()

	require.NoError(t, db.Insert(1, nil))
	require.NoError(t, db.SelectByRowid(1, 1))

	err := kv.Set(db, []kv.Update{{Key: kv.Key{}, Value: []byte("x")}})
	require.ErrorIs(t, err, meagerdb.ErrBadArgument)
}

// decodeAll reads every record on the selected row back into an []kv.Update,
// in storage order, for structural comparison against what was written.
func decodeAll(t *testing.T, db *meagerdb.DB) []kv.Update {
	t.Helper()
	var got []kv.Update
	for idx := uint32(0); ; idx++ {
		key, err := kv.ReadKey(db, idx)
		if err != nil {
			require.ErrorIs(t, err, meagerdb.ErrNotFound)
			return got
		}
		value, found, err := kv.GetValue(db, key, 1<<16)
		require.NoError(t, err)
		require.True(t, found)
		got = append(got, kv.Update{Key: key, Value: value})
	}
}

func TestSetMultipleThenDecodeAllMatchesWritten(t *testing.T) {
	db := newTestDB(t)
	defer db.Close()

	require.NoError(t, db.Insert(1, nil))
	require.NoError(t, db.SelectByRowid(1, 1))

	want := []kv.Update{
		{Key: kv.Key{'a', 0, 0, 0, 0, 0, 0, 0}, Value: []byte("alpha")},
		{Key: kv.Key{'b', 0, 0, 0, 0, 0, 0, 0}, Value: []byte("beta, a bit longer")},
		{Key: kv.Key{'c', 0, 0, 0, 0, 0, 0, 0}, Value: []byte{}},
	}
	require.NoError(t, kv.Set(db, want))

	got := decodeAll(t, db)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("decoded record set mismatch (-want +got):\n%s", diff)
	}
}

func TestReadKey(t *testing.T) {
	db := newTestDB(t)
	defer db.Close()

	require.NoError(t, db.Insert(1, nil))
	require.NoError(t, db.SelectByRowid(1, 1))

	k1 := kv.Key{1, 0, 0, 0, 0, 0, 0, 0}
	k2 := kv.Key{2, 0, 0, 0, 0, 0, 0, 0}
	require.NoError(t, kv.Set(db, []kv.Update{
		{Key: k1, Value: []byte("a")},
		{Key: k2, Value: []byte("b")},
	}))

	got0, err := kv.ReadKey(db, 0)
	require.NoError(t, err)
	require.Equal(t, k1, got0)

	got1, err := kv.ReadKey(db, 1)
	require.NoError(t, err)
	require.Equal(t, k2, got1)

	_, err = kv.ReadKey(db, 2)
	require.ErrorIs(t, err, meagerdb.ErrNotFound)
}
