package store

import (
	"path/filepath"
	"testing"
	"time"

	"licensekeys-bot/internal/license"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openStore(t *testing.T) *BBoltStore {
	t.Helper()
	st, err := OpenBBolt(filepath.Join(t.TempDir(), "data", "licensebot.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func TestBBoltStore_RecordAndFind(t *testing.T) {
	st := openStore(t)

	rec, err := st.RecordDispensation(Dispensation{Key: "ABCD-1234", Class: license.ClassMonthly, Recipient: "alice", ChatID: 42, LedgerMarked: true})
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, rec.ID)
	assert.False(t, rec.DispensedAt.IsZero())

	got, err := st.FindDispensation("abcd1234")
	require.NoError(t, err)
	assert.Equal(t, rec.ID, got.ID)
	assert.Equal(t, "alice", got.Recipient)
	assert.Equal(t, int64(42), got.ChatID)
	assert.True(t, got.LedgerMarked)
}

func TestBBoltStore_FindMissing(t *testing.T) {
	st := openStore(t)

	_, err := st.FindDispensation("nope")
	assert.ErrorIs(t, err, license.ErrKeyNotFound)
}

func TestBBoltStore_RecentNewestFirst(t *testing.T) {
	st := openStore(t)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, key := range []string{"K1", "K2", "K3"} {
		_, err := st.RecordDispensation(Dispensation{Key: key, Class: license.ClassLifetime, DispensedAt: base.Add(time.Duration(i) * time.Minute)})
		require.NoError(t, err)
	}

	recent, err := st.RecentDispensations(2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "K3", recent[0].Key)
	assert.Equal(t, "K2", recent[1].Key)
}

func TestBBoltStore_RejectsEmptyKey(t *testing.T) {
	st := openStore(t)

	_, err := st.RecordDispensation(Dispensation{})
	assert.ErrorIs(t, err, license.ErrMalformedInput)
}
