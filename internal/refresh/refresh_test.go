package refresh

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"quoteledger/internal/ledger"
	"quoteledger/internal/ledger/csvfile"
	"quoteledger/internal/ledger/memory"
	"quoteledger/internal/provider/providertest"
)

func portfolio() []ledger.Row {
	return []ledger.Row{
		{Symbol: "ES3", Exchange: "SGX"},
		{Symbol: "2388", Exchange: "HKEX"},
		{Symbol: "DIS", Exchange: "USA"},
		{Symbol: "600519", Exchange: "XSSC"},
	}
}

func fixedClock() func() time.Time {
	t0 := time.Date(2026, 3, 4, 9, 30, 0, 0, time.UTC)
	return func() time.Time { return t0 }
}

type recorder struct {
	mu      sync.Mutex
	lookups []bool
	runs    []Summary
}

func (r *recorder) ObserveLookup(ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lookups = append(r.lookups, ok)
}

func (r *recorder) ObserveRun(s Summary) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs = append(r.runs, s)
}

type archiver struct {
	err   error
	calls int
	snap  ledger.Snapshot
}

func (a *archiver) Archive(_ context.Context, _ Summary, snap ledger.Snapshot) error {
	a.calls++
	a.snap = snap
	return a.err
}

func TestRefresh_SuccessWritesBothColumns(t *testing.T) {
	// Arrange
	store := memory.New(portfolio())
	stub := &providertest.Stub{Prices: map[string]float64{"ES3|SGX": 3.62, "2388|HKEX": 28.2, "DIS|USA": 1001.5, "600519|XSSC": 1500}}
	rec := &recorder{}
	r := New(stub, store, WithClock(fixedClock()), WithTimestamp("", time.UTC), WithObserver(rec))

	// Act
	s, err := r.Refresh(t.Context())

	// Assert
	require.NoError(t, err)
	require.Equal(t, 4, s.Rows)
	require.Equal(t, 4, s.Succeeded)
	require.Equal(t, "9:30:00 AM 3/4/2026", s.Timestamp)

	snap, err := store.Snapshot(t.Context())
	require.NoError(t, err)
	for _, e := range snap.Entries {
		want := stub.Prices[providertest.Key(e.Symbol, e.Exchange)]
		require.Equal(t, ledger.Observed(want), *e.Latest)
		require.Equal(t, want, *e.Buffered)
	}
	require.Equal(t, "9:30:00 AM 3/4/2026", snap.UpdatedAt)
	require.Equal(t, []string{"ES3|SGX", "2388|HKEX", "DIS|USA", "600519|XSSC"}, stub.Calls())
	require.Equal(t, []bool{true, true, true, true}, rec.lookups)
	require.Len(t, rec.runs, 1)
}

func TestRefresh_FailedRowsKeepBuffered(t *testing.T) {
	ctx := t.Context()
	store := memory.New(portfolio())
	require.NoError(t, store.WriteBuffered(ctx, 1, 27.0))
	require.NoError(t, store.WriteBuffered(ctx, 3, 1400))
	stub := &providertest.Stub{Prices: map[string]float64{"ES3|SGX": 3.62, "DIS|USA": 1001.5}}
	r := New(stub, store)

	s, err := r.Refresh(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, s.Succeeded)
	require.Equal(t, 2, s.Failed)

	snap, err := store.Snapshot(ctx)
	require.NoError(t, err)
	require.True(t, snap.Entries[1].Latest.Failed)
	require.Equal(t, 27.0, *snap.Entries[1].Buffered)
	require.True(t, snap.Entries[3].Latest.Failed)
	require.Equal(t, 1400.0, *snap.Entries[3].Buffered)
	require.Equal(t, 3.62, *snap.Entries[0].Buffered)
	require.Equal(t, memory.Writes{Latest: 1, Buffered: 4, Timestamp: 1}, store.Writes())
}

func TestRefresh_RowOrderForEveryOutcomeMix(t *testing.T) {
	rows := portfolio()
	prices := []float64{1, 2, 3, 4}

	for mask := range 1 << len(rows) {
		store := memory.New(rows)
		stub := &providertest.Stub{Prices: map[string]float64{}}
		for i, row := range rows {
			if mask&(1<<i) != 0 {
				stub.Prices[providertest.Key(row.Symbol, row.Exchange)] = prices[i]
			}
		}

		s, err := New(stub, store).Refresh(t.Context())
		require.NoError(t, err)

		snap, err := store.Snapshot(t.Context())
		require.NoError(t, err)
		for i, e := range snap.Entries {
			if mask&(1<<i) != 0 {
				require.Equal(t, ledger.Observed(prices[i]), s.Results[i], "mask %b row %d", mask, i)
				require.Equal(t, prices[i], *e.Buffered, "mask %b row %d", mask, i)
				require.Equal(t, prices[i], e.Latest.Value, "mask %b row %d", mask, i)
			} else {
				require.True(t, s.Results[i].Failed, "mask %b row %d", mask, i)
				require.Nil(t, e.Buffered, "mask %b row %d", mask, i)
				require.True(t, e.Latest.Failed, "mask %b row %d", mask, i)
			}
		}
	}
}

func bufferedColumn(t *testing.T, path string) []string {
	t.Helper()
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	records, err := csv.NewReader(bytes.NewReader(raw)).ReadAll()
	require.NoError(t, err)
	col := make([]string, 0, len(records))
	for _, rec := range records {
		col = append(col, rec[3])
	}
	return col
}

func TestRefresh_AllFailingSecondRunLeavesBufferedIdentical(t *testing.T) {
	ctx := t.Context()
	file := csvfile.New(filepath.Join(t.TempDir(), "ledger.csv"))
	require.NoError(t, file.Seed(ctx, portfolio()))

	first := &providertest.Stub{Prices: map[string]float64{"ES3|SGX": 3.62, "2388|HKEX": 28.2, "DIS|USA": 1001.5}}
	_, err := New(first, file).Refresh(ctx)
	require.NoError(t, err)
	before := bufferedColumn(t, file.Path())

	_, err = New(&providertest.Stub{}, file).Refresh(ctx)
	require.NoError(t, err)

	require.Equal(t, before, bufferedColumn(t, file.Path()))
	snap, err := file.Snapshot(ctx)
	require.NoError(t, err)
	for _, e := range snap.Entries {
		require.True(t, e.Latest.Failed)
	}
}

func TestRefresh_CancelledMidRunWritesNothing(t *testing.T) {
	store := memory.New(portfolio())
	ctx, cancel := context.WithCancel(t.Context())
	stub := &providertest.Stub{
		Prices: map[string]float64{"ES3|SGX": 3.62, "2388|HKEX": 28.2},
		Hook: func(_ context.Context, symbol, _ string) error {
			if symbol == "2388" {
				cancel()
			}
			return nil
		},
	}

	_, err := New(stub, store).Refresh(ctx)

	require.True(t, errors.Is(err, context.Canceled))
	require.Equal(t, memory.Writes{}, store.Writes())
	require.Len(t, stub.Calls(), 2)
}

type brokenLedger struct {
	*memory.Store
}

func (brokenLedger) WriteLatest(context.Context, []ledger.Observation) error {
	return errors.New("disk full")
}

func TestRefresh_LedgerErrorIsFatal(t *testing.T) {
	store := memory.New(portfolio())
	r := New(&providertest.Stub{}, brokenLedger{store})

	_, err := r.Refresh(t.Context())

	require.ErrorContains(t, err, "disk full")
	require.Equal(t, memory.Writes{}, store.Writes())
	_, ok := r.Last()
	require.False(t, ok)
}

func TestTryRefresh_Busy(t *testing.T) {
	store := memory.New(portfolio()[:1])
	entered := make(chan struct{})
	release := make(chan struct{})
	stub := &providertest.Stub{
		Prices: map[string]float64{"ES3|SGX": 3.62},
		Hook: func(context.Context, string, string) error {
			close(entered)
			<-release
			return nil
		},
	}
	r := New(stub, store)

	done := make(chan error, 1)
	go func() {
		_, err := r.Refresh(t.Context())
		done <- err
	}()
	<-entered

	_, err := r.TryRefresh(t.Context())
	require.True(t, errors.Is(err, ErrRunInProgress))

	close(release)
	require.NoError(t, <-done)
	last, ok := r.Last()
	require.True(t, ok)
	require.Equal(t, 1, last.Succeeded)
}

func TestRefresh_ArchiveFailureIsNotFatal(t *testing.T) {
	store := memory.New(portfolio()[:1])
	arch := &archiver{err: errors.New("bucket gone")}
	r := New(&providertest.Stub{Prices: map[string]float64{"ES3|SGX": 3.62}}, store, WithArchiver(arch))

	s, err := r.Refresh(t.Context())

	require.NoError(t, err)
	require.Equal(t, 1, arch.calls)
	require.Equal(t, 3.62, *arch.snap.Entries[0].Buffered)
	require.NotEqual(t, s.RunID.String(), "")
}

func TestRefresh_TimestampZone(t *testing.T) {
	store := memory.New(nil)
	sgt := time.FixedZone("SGT", 8*3600)
	r := New(&providertest.Stub{}, store, WithClock(fixedClock()), WithTimestamp("2006-01-02 15:04", sgt))

	s, err := r.Refresh(t.Context())

	require.NoError(t, err)
	require.Equal(t, "2026-03-04 17:30", s.Timestamp)
	require.Equal(t, 0, s.Rows)
	require.Equal(t, memory.Writes{Latest: 1, Timestamp: 1}, store.Writes())
}

func TestRunLoop_StopsOnCancel(t *testing.T) {
	store := memory.New(portfolio()[:1])
	r := New(&providertest.Stub{Prices: map[string]float64{"ES3|SGX": 3.62}}, store)
	ctx, cancel := context.WithTimeout(t.Context(), 80*time.Millisecond)
	defer cancel()

	err := r.RunLoop(ctx, 20*time.Millisecond)

	require.True(t, errors.Is(err, context.DeadlineExceeded))
	require.GreaterOrEqual(t, store.Writes().Latest, 2)
}
