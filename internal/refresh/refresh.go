// Package refresh runs one pass over the portfolio: look up every row in
// order, overwrite the latest-observed column, and write the buffered column
// only for rows that produced a price.
package refresh

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"quoteledger/internal/ledger"
	"quoteledger/internal/provider"
)

// DefaultTimestampLayout renders the run timestamp as time then date.
const DefaultTimestampLayout = "3:04:05 PM 1/2/2006"

var ErrRunInProgress = errors.New("refresh: run already in progress")

// Summary describes one completed run.
type Summary struct {
	RunID      uuid.UUID            `json:"run_id"`
	StartedAt  time.Time            `json:"started_at"`
	FinishedAt time.Time            `json:"finished_at"`
	Timestamp  string               `json:"timestamp"`
	Rows       int                  `json:"rows"`
	Succeeded  int                  `json:"succeeded"`
	Failed     int                  `json:"failed"`
	Results    []ledger.Observation `json:"results"`
}

func (s Summary) Duration() time.Duration { return s.FinishedAt.Sub(s.StartedAt) }

// Observer receives per-lookup and per-run outcomes.
type Observer interface {
	ObserveLookup(ok bool)
	ObserveRun(s Summary)
}

// Archiver stores the post-run ledger state somewhere durable.
type Archiver interface {
	Archive(ctx context.Context, s Summary, snap ledger.Snapshot) error
}

type Option func(*Refresher)

func WithLogger(l zerolog.Logger) Option { return func(r *Refresher) { r.logger = l } }

func WithObserver(o Observer) Option { return func(r *Refresher) { r.observer = o } }

func WithArchiver(a Archiver) Option { return func(r *Refresher) { r.archiver = a } }

func WithClock(now func() time.Time) Option { return func(r *Refresher) { r.now = now } }

// WithTimestamp sets the layout and zone of the run timestamp cell.
func WithTimestamp(layout string, loc *time.Location) Option {
	return func(r *Refresher) {
		if layout != "" {
			r.layout = layout
		}
		if loc != nil {
			r.loc = loc
		}
	}
}

// Refresher is the single writer of a ledger. Runs never overlap.
type Refresher struct {
	provider provider.Provider
	ledger   ledger.Ledger
	logger   zerolog.Logger
	observer Observer
	archiver Archiver
	now      func() time.Time
	layout   string
	loc      *time.Location

	run sync.Mutex

	mu   sync.RWMutex
	last *Summary
}

func New(p provider.Provider, l ledger.Ledger, opts ...Option) *Refresher {
	r := &Refresher{
		provider: p,
		ledger:   l,
		logger:   zerolog.Nop(),
		now:      time.Now,
		layout:   DefaultTimestampLayout,
		loc:      time.Local,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Refresh runs one pass, waiting for any run already in progress.
func (r *Refresher) Refresh(ctx context.Context) (Summary, error) {
	r.run.Lock()
	defer r.run.Unlock()
	return r.refresh(ctx)
}

// TryRefresh runs one pass unless another is in progress.
func (r *Refresher) TryRefresh(ctx context.Context) (Summary, error) {
	if !r.run.TryLock() {
		return Summary{}, ErrRunInProgress
	}
	defer r.run.Unlock()
	return r.refresh(ctx)
}

// Last returns the most recent completed run.
func (r *Refresher) Last() (Summary, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.last == nil {
		return Summary{}, false
	}
	return *r.last, true
}

func (r *Refresher) refresh(ctx context.Context) (Summary, error) {
	s := Summary{RunID: uuid.New(), StartedAt: r.now()}
	log := r.logger.With().Str("run_id", s.RunID.String()).Logger()

	rows, err := r.ledger.Rows(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("read rows: %w", err)
	}
	s.Rows = len(rows)
	log.Info().Int("rows", len(rows)).Msg("refresh started")

	// Lookups are strictly sequential; results stay positionally aligned.
	s.Results = make([]ledger.Observation, len(rows))
	for i, row := range rows {
		q, err := r.provider.Lookup(ctx, row.Symbol, row.Exchange)
		if ctxErr := ctx.Err(); ctxErr != nil {
			log.Warn().Int("row", i).Msg("refresh aborted, ledger untouched")
			return Summary{}, fmt.Errorf("refresh aborted: %w", ctxErr)
		}
		if err != nil {
			s.Results[i] = ledger.Failed()
			s.Failed++
			log.Warn().Err(err).Str("symbol", row.Symbol).Str("exchange", row.Exchange).Msg("lookup failed")
		} else {
			s.Results[i] = ledger.Observed(q.Price)
			s.Succeeded++
			log.Debug().Str("symbol", row.Symbol).Str("exchange", row.Exchange).Float64("price", q.Price).Msg("lookup ok")
		}
		if r.observer != nil {
			r.observer.ObserveLookup(err == nil)
		}
	}

	if err := r.ledger.WriteLatest(ctx, s.Results); err != nil {
		log.Error().Err(err).Msg("write latest failed")
		return Summary{}, fmt.Errorf("write latest: %w", err)
	}
	for i, o := range s.Results {
		if o.Failed {
			continue
		}
		if err := r.ledger.WriteBuffered(ctx, rows[i].Index, o.Value); err != nil {
			log.Error().Err(err).Int("row", i).Msg("write buffered failed")
			return Summary{}, fmt.Errorf("write buffered row %d: %w", i, err)
		}
	}

	stampAt := r.now()
	s.Timestamp = stampAt.In(r.loc).Format(r.layout)
	if err := r.ledger.WriteTimestamp(ctx, s.Timestamp); err != nil {
		log.Error().Err(err).Msg("write timestamp failed")
		return Summary{}, fmt.Errorf("write timestamp: %w", err)
	}
	s.FinishedAt = r.now()

	r.mu.Lock()
	last := s
	r.last = &last
	r.mu.Unlock()

	if r.observer != nil {
		r.observer.ObserveRun(s)
	}
	log.Info().Int("succeeded", s.Succeeded).Int("failed", s.Failed).Dur("took", s.Duration()).Msg("refresh finished")

	r.archive(ctx, log, s)
	return s, nil
}

func (r *Refresher) archive(ctx context.Context, log zerolog.Logger, s Summary) {
	if r.archiver == nil {
		return
	}
	snap, err := r.ledger.Snapshot(ctx)
	if err == nil {
		err = r.archiver.Archive(ctx, s, snap)
	}
	if err != nil {
		log.Warn().Err(err).Msg("archive failed")
	}
}

// RunLoop refreshes immediately, then on every tick until ctx is cancelled.
func (r *Refresher) RunLoop(ctx context.Context, interval time.Duration) error {
	if _, err := r.Refresh(ctx); err != nil && ctx.Err() == nil {
		r.logger.Error().Err(err).Msg("refresh failed")
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info().Msg("refresh loop stopped")
			return ctx.Err()
		case <-ticker.C:
			if _, err := r.Refresh(ctx); err != nil && ctx.Err() == nil {
				r.logger.Error().Err(err).Msg("refresh failed")
			}
		}
	}
}
