// Package redis implements the ledger on Redis: one hash per row plus a row
// count and a timestamp key.
package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/go-redis/redis/v8"

	"quoteledger/internal/ledger"
)

const (
	fieldSymbol   = "symbol"
	fieldExchange = "exchange"
	fieldLatest   = "latest"
	fieldBuffered = "buffered"
)

type Config struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

type Store struct {
	client redis.UniversalClient
	prefix string
}

func Open(ctx context.Context, cfg Config) (*Store, error) {
	client := redis.NewClient(&redis.Options{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis: ping %s: %w", cfg.Addr, err)
	}
	return New(client, cfg.Prefix), nil
}

// New wraps an existing client.
func New(client redis.UniversalClient, prefix string) *Store {
	if prefix == "" {
		prefix = "quoteledger"
	}
	return &Store{client: client, prefix: prefix}
}

func (s *Store) Close() error { return s.client.Close() }

func (s *Store) rowKey(i int) string { return fmt.Sprintf("%s:row:%d", s.prefix, i) }
func (s *Store) countKey() string    { return s.prefix + ":count" }
func (s *Store) updatedKey() string  { return s.prefix + ":updated" }

func (s *Store) count(ctx context.Context) (int, error) {
	n, err := s.client.Get(ctx, s.countKey()).Int()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("redis: read row count: %w", err)
	}
	return n, nil
}

// fetch reads the given fields of every row in one pipeline.
func (s *Store) fetch(ctx context.Context, fields ...string) ([][]interface{}, error) {
	n, err := s.count(ctx)
	if err != nil || n == 0 {
		return nil, err
	}
	pipe := s.client.Pipeline()
	cmds := make([]*redis.SliceCmd, n)
	for i := range n {
		cmds[i] = pipe.HMGet(ctx, s.rowKey(i), fields...)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("redis: read rows: %w", err)
	}
	out := make([][]interface{}, n)
	for i, c := range cmds {
		out[i] = c.Val()
	}
	return out, nil
}

func str(v interface{}) string {
	s, _ := v.(string)
	return s
}

func (s *Store) Rows(ctx context.Context) ([]ledger.Row, error) {
	vals, err := s.fetch(ctx, fieldSymbol, fieldExchange)
	if err != nil {
		return nil, err
	}
	rows := make([]ledger.Row, len(vals))
	for i, v := range vals {
		rows[i] = ledger.Row{Index: i, Symbol: str(v[0]), Exchange: str(v[1])}
	}
	return rows, nil
}

func (s *Store) WriteLatest(ctx context.Context, obs []ledger.Observation) error {
	n, err := s.count(ctx)
	if err != nil {
		return err
	}
	if err := ledger.CheckLatest(n, obs); err != nil {
		return err
	}
	pipe := s.client.Pipeline()
	for i, o := range obs {
		pipe.HSet(ctx, s.rowKey(i), fieldLatest, ledger.FormatValue(o.Encode()))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: write latest: %w", err)
	}
	return nil
}

func (s *Store) WriteBuffered(ctx context.Context, index int, value float64) error {
	n, err := s.count(ctx)
	if err != nil {
		return err
	}
	if err := ledger.CheckIndex(n, index); err != nil {
		return err
	}
	if err := s.client.HSet(ctx, s.rowKey(index), fieldBuffered, ledger.FormatValue(value)).Err(); err != nil {
		return fmt.Errorf("redis: write buffered: %w", err)
	}
	return nil
}

func (s *Store) WriteTimestamp(ctx context.Context, stamp string) error {
	if err := s.client.Set(ctx, s.updatedKey(), stamp, 0).Err(); err != nil {
		return fmt.Errorf("redis: write timestamp: %w", err)
	}
	return nil
}

func (s *Store) Snapshot(ctx context.Context) (ledger.Snapshot, error) {
	var snap ledger.Snapshot
	updated, err := s.client.Get(ctx, s.updatedKey()).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return snap, fmt.Errorf("redis: read timestamp: %w", err)
	}
	snap.UpdatedAt = updated

	vals, err := s.fetch(ctx, fieldSymbol, fieldExchange, fieldLatest, fieldBuffered)
	if err != nil {
		return ledger.Snapshot{}, err
	}
	snap.Entries = make([]ledger.Entry, len(vals))
	for i, v := range vals {
		e := ledger.Entry{Row: ledger.Row{Index: i, Symbol: str(v[0]), Exchange: str(v[1])}}
		latest, err := ledger.ParseCell(str(v[2]))
		if err != nil {
			return ledger.Snapshot{}, fmt.Errorf("redis: row %d latest: %w", i, err)
		}
		if latest != nil {
			o := ledger.Decode(*latest)
			e.Latest = &o
		}
		if e.Buffered, err = ledger.ParseCell(str(v[3])); err != nil {
			return ledger.Snapshot{}, fmt.Errorf("redis: row %d buffered: %w", i, err)
		}
		snap.Entries[i] = e
	}
	return snap, nil
}

// Seed deletes the previous rows and writes the new ones in one transaction.
func (s *Store) Seed(ctx context.Context, rows []ledger.Row) error {
	old, err := s.count(ctx)
	if err != nil {
		return err
	}
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		keys := []string{s.updatedKey()}
		for i := range old {
			keys = append(keys, s.rowKey(i))
		}
		pipe.Del(ctx, keys...)
		for i, r := range rows {
			pipe.HSet(ctx, s.rowKey(i), fieldSymbol, r.Symbol, fieldExchange, r.Exchange)
		}
		pipe.Set(ctx, s.countKey(), strconv.Itoa(len(rows)), 0)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis: seed: %w", err)
	}
	return nil
}
