// Package postgres implements the ledger on PostgreSQL via pgx.
package postgres

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"quoteledger/internal/ledger"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const updatedKey = "updated"

type Config struct {
	DSN      string
	MaxConns int
}

// Store keeps one ledger_rows record per portfolio row, ordered by position.
type Store struct {
	pool *pgxpool.Pool
}

// Open connects, pings and applies pending migrations.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("postgres: parse config: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = int32(cfg.MaxConns)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("postgres: connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}

	s := &Store{pool: pool}
	if err := s.RunMigrations(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() { s.pool.Close() }

// RunMigrations applies embedded SQL files in lexicographic order and records
// each one in schema_migrations.
func (s *Store) RunMigrations(ctx context.Context) error {
	const createTracker = `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			filename TEXT PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);`
	if _, err := s.pool.Exec(ctx, createTracker); err != nil {
		return fmt.Errorf("postgres: create schema_migrations table: %w", err)
	}

	entries, err := fs.ReadDir(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("postgres: read migrations dir: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}

		var exists bool
		if err := s.pool.QueryRow(ctx,
			"SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE filename = $1)",
			entry.Name(),
		).Scan(&exists); err != nil {
			return fmt.Errorf("postgres: check migration %s: %w", entry.Name(), err)
		}
		if exists {
			continue
		}

		data, err := migrationsFS.ReadFile("migrations/" + entry.Name())
		if err != nil {
			return fmt.Errorf("postgres: read migration %s: %w", entry.Name(), err)
		}

		err = pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
			if _, err := tx.Exec(ctx, string(data)); err != nil {
				return fmt.Errorf("exec: %w", err)
			}
			_, err := tx.Exec(ctx, "INSERT INTO schema_migrations (filename) VALUES ($1)", entry.Name())
			return err
		})
		if err != nil {
			return fmt.Errorf("postgres: migration %s: %w", entry.Name(), err)
		}
	}
	return nil
}

func (s *Store) count(ctx context.Context, q interface {
	QueryRow(context.Context, string, ...any) pgx.Row
}) (int, error) {
	var n int
	if err := q.QueryRow(ctx, "SELECT COUNT(*) FROM ledger_rows").Scan(&n); err != nil {
		return 0, fmt.Errorf("postgres: count rows: %w", err)
	}
	return n, nil
}

func (s *Store) Rows(ctx context.Context) ([]ledger.Row, error) {
	rows, err := s.pool.Query(ctx, "SELECT position, symbol, exchange FROM ledger_rows ORDER BY position")
	if err != nil {
		return nil, fmt.Errorf("postgres: query rows: %w", err)
	}
	out, err := pgx.CollectRows(rows, func(r pgx.CollectableRow) (ledger.Row, error) {
		var row ledger.Row
		err := r.Scan(&row.Index, &row.Symbol, &row.Exchange)
		return row, err
	})
	if err != nil {
		return nil, fmt.Errorf("postgres: scan rows: %w", err)
	}
	return out, nil
}

// WriteLatest updates every row in one batch inside a transaction.
func (s *Store) WriteLatest(ctx context.Context, obs []ledger.Observation) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		n, err := s.count(ctx, tx)
		if err != nil {
			return err
		}
		if err := ledger.CheckLatest(n, obs); err != nil {
			return err
		}

		batch := &pgx.Batch{}
		for i, o := range obs {
			batch.Queue("UPDATE ledger_rows SET latest_observed = $1 WHERE position = $2", o.Encode(), i)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("postgres: write latest: %w", err)
		}
		return nil
	})
}

func (s *Store) WriteBuffered(ctx context.Context, index int, value float64) error {
	tag, err := s.pool.Exec(ctx, "UPDATE ledger_rows SET buffered = $1 WHERE position = $2", value, index)
	if err != nil {
		return fmt.Errorf("postgres: write buffered: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %d", ledger.ErrRowIndex, index)
	}
	return nil
}

func (s *Store) WriteTimestamp(ctx context.Context, stamp string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO ledger_meta (key, value) VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value`, updatedKey, stamp)
	if err != nil {
		return fmt.Errorf("postgres: write timestamp: %w", err)
	}
	return nil
}

func (s *Store) Snapshot(ctx context.Context) (ledger.Snapshot, error) {
	var snap ledger.Snapshot
	err := s.pool.QueryRow(ctx, "SELECT value FROM ledger_meta WHERE key = $1", updatedKey).Scan(&snap.UpdatedAt)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return ledger.Snapshot{}, fmt.Errorf("postgres: read timestamp: %w", err)
	}

	rows, err := s.pool.Query(ctx, `
		SELECT position, symbol, exchange, latest_observed, buffered
		FROM ledger_rows ORDER BY position`)
	if err != nil {
		return ledger.Snapshot{}, fmt.Errorf("postgres: query snapshot: %w", err)
	}
	snap.Entries, err = pgx.CollectRows(rows, func(r pgx.CollectableRow) (ledger.Entry, error) {
		var (
			e      ledger.Entry
			latest *float64
		)
		if err := r.Scan(&e.Index, &e.Symbol, &e.Exchange, &latest, &e.Buffered); err != nil {
			return e, err
		}
		if latest != nil {
			o := ledger.Decode(*latest)
			e.Latest = &o
		}
		return e, nil
	})
	if err != nil {
		return ledger.Snapshot{}, fmt.Errorf("postgres: scan snapshot: %w", err)
	}
	return snap, nil
}

// Seed replaces all rows and clears the timestamp.
func (s *Store) Seed(ctx context.Context, rows []ledger.Row) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		batch.Queue("DELETE FROM ledger_rows")
		batch.Queue("DELETE FROM ledger_meta WHERE key = $1", updatedKey)
		for i, r := range rows {
			batch.Queue("INSERT INTO ledger_rows (position, symbol, exchange) VALUES ($1, $2, $3)", i, r.Symbol, r.Exchange)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("postgres: seed: %w", err)
		}
		return nil
	})
}
