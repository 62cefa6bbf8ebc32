// internal/api/handler/api/watchlist.go
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/newthinker/stockdash/internal/api/response"
	"github.com/newthinker/stockdash/internal/core"
	"github.com/newthinker/stockdash/internal/watchlist"
)

// WatchlistManager defines the interface needed from watchlist.Manager.
type WatchlistManager interface {
	Snapshot() watchlist.State
	CreateWatchlist(name string) bool
	SetActiveWatchlist(name string)
	SetInput(text string) []core.Symbol
	AddSuggestionToActive(ctx context.Context, symbol, companyName string) (core.Entry, error)
	RemoveWatchlist(ctx context.Context, name string) error
	RemoveEntry(ctx context.Context, watchlistName, symbol string) error
}

// WatchlistHandler handles watchlist API requests.
type WatchlistHandler struct {
	mgr WatchlistManager
}

// NewWatchlistHandler creates a new watchlist handler.
func NewWatchlistHandler(mgr WatchlistManager) *WatchlistHandler {
	return &WatchlistHandler{mgr: mgr}
}

// CreateRequest is the request body for creating a watchlist.
type CreateRequest struct {
	Name string `json:"name"`
}

// AddRequest is the request body for adding a symbol to the active watchlist.
type AddRequest struct {
	Symbol string `json:"symbol"`
	Name   string `json:"name,omitempty"`
}

// List returns the full dashboard state.
func (h *WatchlistHandler) List(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, http.StatusOK, h.mgr.Snapshot())
}

// Create handles POST /api/v1/watchlists
func (h *WatchlistHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest,
			core.WrapError(core.ErrInvalidInput, err))
		return
	}

	name := strings.TrimSpace(req.Name)
	if !h.mgr.CreateWatchlist(name) {
		response.Error(w, http.StatusBadRequest,
			core.WrapError(core.ErrInvalidInput, errors.New("name is required")))
		return
	}

	response.JSON(w, http.StatusCreated, h.mgr.Snapshot())
}

// Activate handles POST /api/v1/watchlists/{name}/activate
func (h *WatchlistHandler) Activate(w http.ResponseWriter, r *http.Request) {
	h.mgr.SetActiveWatchlist(r.PathValue("name"))
	response.JSON(w, http.StatusOK, h.mgr.Snapshot())
}

// Remove handles DELETE /api/v1/watchlists/{name}
func (h *WatchlistHandler) Remove(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if err := h.mgr.RemoveWatchlist(r.Context(), name); err != nil {
		response.Fail(w, err)
		return
	}

	response.JSON(w, http.StatusOK, map[string]any{
		"watchlist": name,
		"removed":   true,
	})
}

// AddEntry handles POST /api/v1/watchlists/active/entries
func (h *WatchlistHandler) AddEntry(w http.ResponseWriter, r *http.Request) {
	var req AddRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest,
			core.WrapError(core.ErrInvalidInput, err))
		return
	}

	if req.Symbol == "" {
		response.Error(w, http.StatusBadRequest,
			core.WrapError(core.ErrInvalidInput, errors.New("symbol is required")))
		return
	}

	entry, err := h.mgr.AddSuggestionToActive(r.Context(), req.Symbol, req.Name)
	if err != nil {
		response.Fail(w, err)
		return
	}

	response.JSON(w, http.StatusCreated, entry)
}

// RemoveEntry handles DELETE /api/v1/watchlists/{name}/entries/{symbol}
func (h *WatchlistHandler) RemoveEntry(w http.ResponseWriter, r *http.Request) {
	name, symbol := r.PathValue("name"), r.PathValue("symbol")
	if err := h.mgr.RemoveEntry(r.Context(), name, symbol); err != nil {
		response.Fail(w, err)
		return
	}

	response.JSON(w, http.StatusOK, map[string]any{
		"watchlist": name,
		"symbol":    symbol,
		"removed":   true,
	})
}

// Suggestions handles GET /api/v1/suggestions?q=<query>
func (h *WatchlistHandler) Suggestions(w http.ResponseWriter, r *http.Request) {
	results := h.mgr.SetInput(r.URL.Query().Get("q"))
	response.JSON(w, http.StatusOK, map[string]any{
		"results": results,
		"count":   len(results),
	})
}
