// Package memory is an in-process ledger.
package memory

import (
	"context"
	"sync"

	"quoteledger/internal/ledger"
)

// Writes counts the write calls a Store has received.
type Writes struct {
	Latest    int
	Buffered  int
	Timestamp int
}

type Store struct {
	mu       sync.RWMutex
	rows     []ledger.Row
	latest   []*ledger.Observation
	buffered []*float64
	updated  string
	writes   Writes
}

func New(rows []ledger.Row) *Store {
	s := &Store{}
	s.reset(rows)
	return s
}

func (s *Store) reset(rows []ledger.Row) {
	s.rows = ledger.Reindex(rows)
	s.latest = make([]*ledger.Observation, len(rows))
	s.buffered = make([]*float64, len(rows))
	s.updated = ""
}

func (s *Store) Rows(ctx context.Context) ([]ledger.Row, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]ledger.Row(nil), s.rows...), nil
}

func (s *Store) WriteLatest(ctx context.Context, obs []ledger.Observation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ledger.CheckLatest(len(s.rows), obs); err != nil {
		return err
	}
	for i, o := range obs {
		s.latest[i] = &o
	}
	s.writes.Latest++
	return nil
}

func (s *Store) WriteBuffered(ctx context.Context, index int, value float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ledger.CheckIndex(len(s.rows), index); err != nil {
		return err
	}
	s.buffered[index] = &value
	s.writes.Buffered++
	return nil
}

func (s *Store) WriteTimestamp(ctx context.Context, stamp string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updated = stamp
	s.writes.Timestamp++
	return nil
}

func (s *Store) Snapshot(ctx context.Context) (ledger.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := ledger.Snapshot{Entries: make([]ledger.Entry, len(s.rows)), UpdatedAt: s.updated}
	for i, r := range s.rows {
		e := ledger.Entry{Row: r}
		if s.latest[i] != nil {
			o := *s.latest[i]
			e.Latest = &o
		}
		if s.buffered[i] != nil {
			v := *s.buffered[i]
			e.Buffered = &v
		}
		snap.Entries[i] = e
	}
	return snap, nil
}

func (s *Store) Seed(ctx context.Context, rows []ledger.Row) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reset(rows)
	return nil
}

// Writes returns the write counters.
func (s *Store) Writes() Writes {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.writes
}
