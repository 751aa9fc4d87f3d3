// Package ledger defines the tabular store the refresh pipeline reads its
// portfolio from and writes prices into.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// FailureSentinel is the stored value of a failed observation.
const FailureSentinel = -1.0

var (
	ErrRowMismatch = errors.New("ledger: row count mismatch")
	ErrRowIndex    = errors.New("ledger: row index out of range")
)

// Row is one portfolio instrument, identified by its position after the header.
type Row struct {
	Index    int    `json:"index" yaml:"-"`
	Symbol   string `json:"symbol" yaml:"symbol"`
	Exchange string `json:"exchange" yaml:"exchange"`
}

// Observation is the outcome of one lookup: a price or a failure.
type Observation struct {
	Value  float64 `json:"value"`
	Failed bool    `json:"failed"`
}

func Observed(v float64) Observation { return Observation{Value: v} }

func Failed() Observation { return Observation{Failed: true} }

// Encode returns the stored form; failures become FailureSentinel.
func (o Observation) Encode() float64 {
	if o.Failed {
		return FailureSentinel
	}
	return o.Value
}

// Decode maps a stored value back; FailureSentinel becomes a failure.
func Decode(v float64) Observation {
	if v == FailureSentinel {
		return Failed()
	}
	return Observed(v)
}

func (o Observation) String() string {
	if o.Failed {
		return "failed"
	}
	return FormatValue(o.Value)
}

// FormatValue renders a stored number with the shortest exact representation.
func FormatValue(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// ParseCell reads an optional numeric cell; empty means absent.
func ParseCell(s string) (*float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, fmt.Errorf("ledger: parse cell %q: %w", s, err)
	}
	return &v, nil
}

// Entry is a row together with its two output columns; nil means an empty cell.
type Entry struct {
	Row
	Latest   *Observation `json:"latest,omitempty"`
	Buffered *float64     `json:"buffered,omitempty"`
}

type Snapshot struct {
	Entries   []Entry `json:"entries"`
	UpdatedAt string  `json:"updated_at"`
}

// Ledger is the store the pipeline reads rows from and writes columns into.
type Ledger interface {
	// Rows returns the portfolio rows in positional order.
	Rows(ctx context.Context) ([]Row, error)
	// WriteLatest overwrites the latest-observed column for every row in one batch.
	WriteLatest(ctx context.Context, obs []Observation) error
	// WriteBuffered sets the buffered cell of a single row.
	WriteBuffered(ctx context.Context, index int, value float64) error
	// WriteTimestamp records the run timestamp cell.
	WriteTimestamp(ctx context.Context, stamp string) error
	Snapshot(ctx context.Context) (Snapshot, error)
}

// Seeder replaces the portfolio rows, clearing both output columns.
type Seeder interface {
	Seed(ctx context.Context, rows []Row) error
}

// CheckLatest validates a latest-observed batch against the row count.
func CheckLatest(rows int, obs []Observation) error {
	if len(obs) != rows {
		return fmt.Errorf("%w: %d values for %d rows", ErrRowMismatch, len(obs), rows)
	}
	return nil
}

// CheckIndex validates a row index against the row count.
func CheckIndex(rows, index int) error {
	if index < 0 || index >= rows {
		return fmt.Errorf("%w: %d not in [0,%d)", ErrRowIndex, index, rows)
	}
	return nil
}

// Reindex assigns positional indexes in slice order.
func Reindex(rows []Row) []Row {
	out := make([]Row, len(rows))
	for i, r := range rows {
		r.Index = i
		out[i] = r
	}
	return out
}
