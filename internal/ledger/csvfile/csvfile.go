// Package csvfile stores the ledger as a spreadsheet-like CSV file.
//
// Layout: a header row, then one line per portfolio row. The run timestamp
// lives in the Updated cell of the first data row.
package csvfile

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"quoteledger/internal/ledger"
)

var Header = []string{"Symbol", "Exchange", "Latest", "Buffered", "Updated"}

const (
	colSymbol = iota
	colExchange
	colLatest
	colBuffered
	colUpdated
)

var ErrBadHeader = errors.New("csvfile: unexpected header")

type File struct {
	path string
	mu   sync.Mutex
}

func New(path string) *File {
	return &File{path: path}
}

func (f *File) Path() string { return f.path }

// read loads the data rows, padded to the full column count.
func (f *File) read() ([][]string, error) {
	fh, err := os.Open(f.path)
	if err != nil {
		return nil, fmt.Errorf("csvfile: open: %w", err)
	}
	defer fh.Close()

	r := csv.NewReader(fh)
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("csvfile: read %s: %w", f.path, err)
	}
	if len(records) == 0 || len(records[0]) < 2 || records[0][colSymbol] != Header[colSymbol] || records[0][colExchange] != Header[colExchange] {
		return nil, fmt.Errorf("%w in %s", ErrBadHeader, f.path)
	}
	data := records[1:]
	for i, rec := range data {
		for len(rec) < len(Header) {
			rec = append(rec, "")
		}
		data[i] = rec
	}
	return data, nil
}

// write replaces the file atomically.
func (f *File) write(data [][]string) error {
	dir := filepath.Dir(f.path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(f.path)+".*")
	if err != nil {
		return fmt.Errorf("csvfile: create temp: %w", err)
	}
	defer os.Remove(tmp.Name())

	w := csv.NewWriter(tmp)
	if err := w.Write(Header); err != nil {
		tmp.Close()
		return fmt.Errorf("csvfile: write header: %w", err)
	}
	if err := w.WriteAll(data); err != nil {
		tmp.Close()
		return fmt.Errorf("csvfile: write rows: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("csvfile: close temp: %w", err)
	}
	if err := os.Rename(tmp.Name(), f.path); err != nil {
		return fmt.Errorf("csvfile: replace: %w", err)
	}
	return nil
}

func (f *File) update(fn func(data [][]string) error) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, err := f.read()
	if err != nil {
		return err
	}
	if err := fn(data); err != nil {
		return err
	}
	return f.write(data)
}

func (f *File) Rows(ctx context.Context) ([]ledger.Row, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, err := f.read()
	if err != nil {
		return nil, err
	}
	rows := make([]ledger.Row, len(data))
	for i, rec := range data {
		rows[i] = ledger.Row{Index: i, Symbol: rec[colSymbol], Exchange: rec[colExchange]}
	}
	return rows, nil
}

func (f *File) WriteLatest(ctx context.Context, obs []ledger.Observation) error {
	return f.update(func(data [][]string) error {
		if err := ledger.CheckLatest(len(data), obs); err != nil {
			return err
		}
		for i, o := range obs {
			data[i][colLatest] = ledger.FormatValue(o.Encode())
		}
		return nil
	})
}

func (f *File) WriteBuffered(ctx context.Context, index int, value float64) error {
	return f.update(func(data [][]string) error {
		if err := ledger.CheckIndex(len(data), index); err != nil {
			return err
		}
		data[index][colBuffered] = ledger.FormatValue(value)
		return nil
	})
}

// WriteTimestamp is a no-op on a file without data rows.
func (f *File) WriteTimestamp(ctx context.Context, stamp string) error {
	return f.update(func(data [][]string) error {
		if len(data) > 0 {
			data[0][colUpdated] = stamp
		}
		return nil
	})
}

func (f *File) Snapshot(ctx context.Context) (ledger.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, err := f.read()
	if err != nil {
		return ledger.Snapshot{}, err
	}
	snap := ledger.Snapshot{Entries: make([]ledger.Entry, len(data))}
	if len(data) > 0 {
		snap.UpdatedAt = data[0][colUpdated]
	}
	for i, rec := range data {
		e := ledger.Entry{Row: ledger.Row{Index: i, Symbol: rec[colSymbol], Exchange: rec[colExchange]}}
		latest, err := ledger.ParseCell(rec[colLatest])
		if err != nil {
			return ledger.Snapshot{}, fmt.Errorf("csvfile: row %d latest: %w", i+2, err)
		}
		if latest != nil {
			o := ledger.Decode(*latest)
			e.Latest = &o
		}
		if e.Buffered, err = ledger.ParseCell(rec[colBuffered]); err != nil {
			return ledger.Snapshot{}, fmt.Errorf("csvfile: row %d buffered: %w", i+2, err)
		}
		snap.Entries[i] = e
	}
	return snap, nil
}

// Seed creates or replaces the file with the given rows and empty output columns.
func (f *File) Seed(ctx context.Context, rows []ledger.Row) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	data := make([][]string, len(rows))
	for i, r := range rows {
		data[i] = []string{r.Symbol, r.Exchange, "", "", ""}
	}
	return f.write(data)
}
