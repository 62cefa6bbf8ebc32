package api

import (
	"context"
	"net/http"

	"github.com/newthinker/stockdash/internal/api/response"
	"github.com/newthinker/stockdash/internal/core"
	"github.com/newthinker/stockdash/internal/identity"
	"github.com/newthinker/stockdash/internal/storage/archive"
	"github.com/newthinker/stockdash/internal/watchlist"
)

// Exporter defines the interface needed from archive.Exporter.
type Exporter interface {
	Export(ctx context.Context, userID, active string, lists []core.Watchlist) (archive.ExportInfo, error)
	List(ctx context.Context, userID string) ([]archive.ExportInfo, error)
	Read(ctx context.Context, userID, id string) (*archive.Snapshot, error)
	Delete(ctx context.Context, userID, id string) error
}

// Snapshotter exposes the dashboard state.
type Snapshotter interface {
	Snapshot() watchlist.State
}

// ExportHandler archives watchlist snapshots.
type ExportHandler struct {
	exporter Exporter
	state    Snapshotter
	identity identity.Provider
}

// NewExportHandler creates a new export handler.
func NewExportHandler(exporter Exporter, state Snapshotter, id identity.Provider) *ExportHandler {
	return &ExportHandler{exporter: exporter, state: state, identity: id}
}

// Create handles POST /api/v1/exports
func (h *ExportHandler) Create(w http.ResponseWriter, r *http.Request) {
	snap := h.state.Snapshot()
	info, err := h.exporter.Export(r.Context(), identity.UserIDOf(h.identity), snap.Active, snap.Watchlists)
	if err != nil {
		response.Fail(w, err)
		return
	}
	response.JSON(w, http.StatusCreated, info)
}

// List handles GET /api/v1/exports
func (h *ExportHandler) List(w http.ResponseWriter, r *http.Request) {
	exports, err := h.exporter.List(r.Context(), identity.UserIDOf(h.identity))
	if err != nil {
		response.Fail(w, err)
		return
	}
	response.JSON(w, http.StatusOK, map[string]any{
		"exports": exports,
		"count":   len(exports),
	})
}

// Get handles GET /api/v1/exports/{id}
func (h *ExportHandler) Get(w http.ResponseWriter, r *http.Request) {
	snap, err := h.exporter.Read(r.Context(), identity.UserIDOf(h.identity), r.PathValue("id"))
	if err != nil {
		if archive.IsNotFound(err) {
			response.Error(w, http.StatusNotFound, err)
			return
		}
		response.Fail(w, err)
		return
	}
	response.JSON(w, http.StatusOK, snap)
}

// Delete handles DELETE /api/v1/exports/{id}
func (h *ExportHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.exporter.Delete(r.Context(), identity.UserIDOf(h.identity), id); err != nil {
		if archive.IsNotFound(err) {
			response.Error(w, http.StatusNotFound, err)
			return
		}
		response.Fail(w, err)
		return
	}
	response.JSON(w, http.StatusOK, map[string]any{
		"id":      id,
		"deleted": true,
	})
}
