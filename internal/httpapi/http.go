package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"licensekeys-bot/internal/inventory"
	"licensekeys-bot/internal/license"
	"licensekeys-bot/internal/store"

	"github.com/go-chi/chi/v5"
)

// Inventory is the read-only view the HTTP surface needs.
type Inventory interface {
	Counts() inventory.SyncResult
	Status(key string) (inventory.KeyStatus, error)
	Recent(limit int) ([]store.Dispensation, error)
}

type API struct {
	inv Inventory
}

func New(inv Inventory) *API {
	return &API{inv: inv}
}

func (a *API) Handler() http.Handler {
	r := chi.NewRouter()
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("content-type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Route("/v1", func(r chi.Router) {
		r.Get("/pool", a.handlePool)
		r.Get("/keys/{key}", a.handleKey)
		r.Get("/dispensations", a.handleDispensations)
	})
	return r
}

type keyResp struct {
	Key          string              `json:"key"`
	Status       string              `json:"status"`
	Class        license.Class       `json:"class"`
	UsedAt       *time.Time          `json:"used_at,omitempty"`
	Dispensation *store.Dispensation `json:"dispensation,omitempty"`
}

type errorResp struct {
	Error string `json:"error"`
}

func (a *API) handlePool(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.inv.Counts())
}

func (a *API) handleKey(w http.ResponseWriter, r *http.Request) {
	st, err := a.inv.Status(chi.URLParam(r, "key"))
	if err != nil {
		writeError(w, err)
		return
	}
	resp := keyResp{Key: st.Key, Status: st.Status.String(), Class: st.Class, Dispensation: st.Dispensation}
	if !st.UsedAt.IsZero() {
		resp.UsedAt = &st.UsedAt
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleDispensations(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 500 {
			writeJSON(w, http.StatusBadRequest, errorResp{Error: "bad_limit"})
			return
		}
		limit = n
	}
	list, err := a.inv.Recent(limit)
	if err != nil {
		writeError(w, err)
		return
	}
	if list == nil {
		list = []store.Dispensation{}
	}
	writeJSON(w, http.StatusOK, list)
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, license.ErrKeyNotFound):
		writeJSON(w, http.StatusNotFound, errorResp{Error: "not_found"})
	case errors.Is(err, license.ErrLedgerMissing):
		writeJSON(w, http.StatusServiceUnavailable, errorResp{Error: "ledger_missing"})
	case errors.Is(err, license.ErrMalformedInput):
		writeJSON(w, http.StatusBadRequest, errorResp{Error: "bad_request"})
	default:
		writeJSON(w, http.StatusInternalServerError, errorResp{Error: "server_error"})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("content-type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
