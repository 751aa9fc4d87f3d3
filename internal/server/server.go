// Package server exposes the ledger, run state and metrics over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"quoteledger/internal/aggregate"
	"quoteledger/internal/ledger"
	"quoteledger/internal/provider"
	"quoteledger/internal/refresh"
)

// Runner is the part of the refresher the server drives.
type Runner interface {
	TryRefresh(ctx context.Context) (refresh.Summary, error)
	Last() (refresh.Summary, bool)
}

type Deps struct {
	Ledger   ledger.Ledger
	Runner   Runner
	Provider provider.Provider
	Metrics  http.Handler
	Logger   zerolog.Logger
	// LookupTimeout bounds a single /api/quote request.
	LookupTimeout time.Duration
}

type ledgerResponse struct {
	Snapshot ledger.Snapshot  `json:"snapshot"`
	Report   aggregate.Report `json:"report"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// NewRouter builds the HTTP handler tree.
func NewRouter(d Deps) http.Handler {
	if d.LookupTimeout <= 0 {
		d.LookupTimeout = time.Minute
	}
	h := &handlers{d: d}

	r := mux.NewRouter()
	r.Use(recoverPanic(d.Logger), accessLog(d.Logger))

	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}).Methods(http.MethodGet)
	if d.Metrics != nil {
		r.Handle("/metrics", d.Metrics).Methods(http.MethodGet)
	}

	api := r.PathPrefix("/api").Subrouter()
	api.Use(withJSONHeaders, withGzip, limitBody)
	api.HandleFunc("/ledger", h.getLedger).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/runs/last", h.getLastRun).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/refresh", h.postRefresh).Methods(http.MethodPost, http.MethodOptions)
	api.HandleFunc("/quote/{exchange}/{symbol}", h.getQuote).Methods(http.MethodGet, http.MethodOptions)
	return r
}

type handlers struct {
	d Deps
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func (h *handlers) getLedger(w http.ResponseWriter, r *http.Request) {
	snap, err := h.d.Ledger.Snapshot(r.Context())
	if err != nil {
		h.d.Logger.Error().Err(err).Msg("ledger snapshot failed")
		writeError(w, http.StatusInternalServerError, "ledger unavailable")
		return
	}
	writeJSON(w, http.StatusOK, ledgerResponse{Snapshot: snap, Report: aggregate.Summarize(snap)})
}

func (h *handlers) getLastRun(w http.ResponseWriter, _ *http.Request) {
	s, ok := h.d.Runner.Last()
	if !ok {
		writeError(w, http.StatusNotFound, "no completed run")
		return
	}
	writeJSON(w, http.StatusOK, s)
}

// postRefresh runs synchronously; the run outlives a dropped client connection.
func (h *handlers) postRefresh(w http.ResponseWriter, r *http.Request) {
	s, err := h.d.Runner.TryRefresh(context.WithoutCancel(r.Context()))
	switch {
	case errors.Is(err, refresh.ErrRunInProgress):
		writeError(w, http.StatusConflict, err.Error())
	case err != nil:
		h.d.Logger.Error().Err(err).Msg("refresh via http failed")
		writeError(w, http.StatusInternalServerError, err.Error())
	default:
		writeJSON(w, http.StatusOK, s)
	}
}

func (h *handlers) getQuote(w http.ResponseWriter, r *http.Request) {
	if h.d.Provider == nil {
		writeError(w, http.StatusNotFound, "lookups disabled")
		return
	}
	vars := mux.Vars(r)
	symbol := strings.TrimSpace(vars["symbol"])
	exchange := strings.ToUpper(strings.TrimSpace(vars["exchange"]))

	ctx, cancel := context.WithTimeout(r.Context(), h.d.LookupTimeout)
	defer cancel()
	q, err := h.d.Provider.Lookup(ctx, symbol, exchange)
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, q)
}
