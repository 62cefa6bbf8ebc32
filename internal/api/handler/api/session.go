package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/newthinker/stockdash/internal/api/response"
	"github.com/newthinker/stockdash/internal/core"
	"github.com/newthinker/stockdash/internal/watchlist"
	"go.uber.org/zap"
)

// Session is the sign-in state the handler drives.
type Session interface {
	Login(userID string) error
	Logout()
	UserID() string
}

// SessionManager is the part of watchlist.Manager a sign-in touches.
type SessionManager interface {
	Initialize(ctx context.Context) error
	Reset()
	Snapshot() watchlist.State
}

// SessionHandler signs users in and out.
type SessionHandler struct {
	session Session
	mgr     SessionManager
	logger  *zap.Logger
}

// NewSessionHandler creates a new session handler.
func NewSessionHandler(session Session, mgr SessionManager, logger *zap.Logger) *SessionHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionHandler{session: session, mgr: mgr, logger: logger}
}

// LoginRequest is the request body for signing in.
type LoginRequest struct {
	UserID string `json:"user_id"`
}

// Login handles POST /api/v1/session/login. The user's watchlists are loaded
// before the response; a load failure shows up in the returned state's error.
func (h *SessionHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest,
			core.WrapError(core.ErrInvalidInput, err))
		return
	}

	if err := h.session.Login(req.UserID); err != nil {
		response.Fail(w, err)
		return
	}

	h.mgr.Reset()
	if err := h.mgr.Initialize(r.Context()); err != nil {
		h.logger.Warn("initialize after login failed",
			zap.String("user_id", req.UserID),
			zap.Error(err),
		)
	}

	response.JSON(w, http.StatusOK, map[string]any{
		"user_id": h.session.UserID(),
		"state":   h.mgr.Snapshot(),
	})
}

// Logout handles POST /api/v1/session/logout
func (h *SessionHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.session.Logout()
	h.mgr.Reset()
	response.JSON(w, http.StatusOK, map[string]any{"signed_in": false})
}
