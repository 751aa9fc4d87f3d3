package memory

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"quoteledger/internal/ledger"
)

func rows() []ledger.Row {
	return []ledger.Row{{Symbol: "ES3", Exchange: "SGX"}, {Symbol: "DIS", Exchange: "USA"}}
}

func TestStore_WritesAndSnapshot(t *testing.T) {
	ctx := t.Context()
	s := New(rows())

	require.NoError(t, s.WriteLatest(ctx, []ledger.Observation{ledger.Observed(3.62), ledger.Failed()}))
	require.NoError(t, s.WriteBuffered(ctx, 0, 3.62))
	require.NoError(t, s.WriteTimestamp(ctx, "9:00:00 AM 1/2/2026"))

	snap, err := s.Snapshot(ctx)
	require.NoError(t, err)
	require.Len(t, snap.Entries, 2)
	require.Equal(t, 1, snap.Entries[1].Index)
	require.Equal(t, ledger.Observed(3.62), *snap.Entries[0].Latest)
	require.True(t, snap.Entries[1].Latest.Failed)
	require.Equal(t, 3.62, *snap.Entries[0].Buffered)
	require.Nil(t, snap.Entries[1].Buffered)
	require.Equal(t, "9:00:00 AM 1/2/2026", snap.UpdatedAt)
	require.Equal(t, Writes{Latest: 1, Buffered: 1, Timestamp: 1}, s.Writes())
}

func TestStore_RejectsMisalignedWrites(t *testing.T) {
	ctx := t.Context()
	s := New(rows())

	require.True(t, errors.Is(s.WriteLatest(ctx, []ledger.Observation{ledger.Failed()}), ledger.ErrRowMismatch))
	require.True(t, errors.Is(s.WriteBuffered(ctx, 2, 1), ledger.ErrRowIndex))
	require.Equal(t, Writes{}, s.Writes())
}

func TestStore_SnapshotIsACopy(t *testing.T) {
	ctx := t.Context()
	s := New(rows())
	require.NoError(t, s.WriteBuffered(ctx, 0, 1))

	snap, err := s.Snapshot(ctx)
	require.NoError(t, err)
	*snap.Entries[0].Buffered = 99

	again, err := s.Snapshot(ctx)
	require.NoError(t, err)
	require.Equal(t, 1.0, *again.Entries[0].Buffered)
}

func TestStore_SeedClearsColumns(t *testing.T) {
	ctx := t.Context()
	s := New(rows())
	require.NoError(t, s.WriteBuffered(ctx, 0, 1))

	require.NoError(t, s.Seed(ctx, []ledger.Row{{Symbol: "X", Exchange: "USA"}}))

	snap, err := s.Snapshot(ctx)
	require.NoError(t, err)
	require.Len(t, snap.Entries, 1)
	require.Nil(t, snap.Entries[0].Buffered)
}
