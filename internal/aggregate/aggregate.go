package aggregate

import (
	"sort"
	"strings"

	"quoteledger/internal/ledger"
	"quoteledger/internal/provider"
)

// Status classifies a ledger row by its two output columns.
type Status string

const (
	// Fresh: the last run produced a price.
	Fresh Status = "fresh"
	// Stale: the last run failed but a buffered price survives.
	Stale Status = "stale"
	// Missing: no usable price at all.
	Missing Status = "missing"
)

// RowView is one ledger row as reported to readers.
type RowView struct {
	Index    int      `json:"index"`
	Symbol   string   `json:"symbol"`
	Exchange string   `json:"exchange"`
	Status   Status   `json:"status"`
	Latest   string   `json:"latest"`
	Price    *float64 `json:"price,omitempty"`
}

// ExchangeKey groups rows by normalized exchange.
type ExchangeKey struct {
	Exchange string
}

// Counts tallies rows per status.
type Counts struct {
	Exchange string `json:"exchange,omitempty"`
	Fresh    int    `json:"fresh"`
	Stale    int    `json:"stale"`
	Missing  int    `json:"missing"`
}

func (c *Counts) add(s Status) {
	switch s {
	case Fresh:
		c.Fresh++
	case Stale:
		c.Stale++
	default:
		c.Missing++
	}
}

// Report is the classified view of a snapshot.
type Report struct {
	UpdatedAt  string    `json:"updated_at"`
	Rows       []RowView `json:"rows"`
	Totals     Counts    `json:"totals"`
	ByExchange []Counts  `json:"by_exchange"`
}

// NormalizeExchange upper-cases known codes; unknown codes are trimmed and
// returned as-is so they stay visible.
func NormalizeExchange(code string) string {
	if ex, ok := provider.ParseExchange(code); ok {
		return string(ex)
	}
	return strings.TrimSpace(code)
}

// Classify returns the status of a single entry.
func Classify(e ledger.Entry) Status {
	switch {
	case e.Latest != nil && !e.Latest.Failed:
		return Fresh
	case e.Buffered != nil:
		return Stale
	default:
		return Missing
	}
}

// Summarize classifies every row, keeping ledger order, and tallies the
// statuses overall and per exchange (sorted by exchange code).
func Summarize(snap ledger.Snapshot) Report {
	rep := Report{UpdatedAt: snap.UpdatedAt, Rows: make([]RowView, 0, len(snap.Entries))}
	byEx := make(map[ExchangeKey]*Counts)

	for _, e := range snap.Entries {
		st := Classify(e)
		ex := NormalizeExchange(e.Exchange)
		latest := ""
		if e.Latest != nil {
			latest = e.Latest.String()
		}
		rep.Rows = append(rep.Rows, RowView{
			Index:    e.Index,
			Symbol:   e.Symbol,
			Exchange: ex,
			Status:   st,
			Latest:   latest,
			Price:    e.Buffered,
		})

		rep.Totals.add(st)
		key := ExchangeKey{Exchange: ex}
		c, ok := byEx[key]
		if !ok {
			c = &Counts{Exchange: ex}
			byEx[key] = c
		}
		c.add(st)
	}

	rep.ByExchange = make([]Counts, 0, len(byEx))
	for _, c := range byEx {
		rep.ByExchange = append(rep.ByExchange, *c)
	}
	sort.Slice(rep.ByExchange, func(i, j int) bool { return rep.ByExchange[i].Exchange < rep.ByExchange[j].Exchange })
	return rep
}
