package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/utafrali/storefront/internal/session"
	"github.com/utafrali/storefront/pkg/httputil"
	"github.com/utafrali/storefront/pkg/validator"
)

// SessionHandler handles login state.
type SessionHandler struct {
	session *session.Session
	logger  *slog.Logger
}

// NewSessionHandler creates a new session HTTP handler.
func NewSessionHandler(s *session.Session, logger *slog.Logger) *SessionHandler {
	return &SessionHandler{session: s, logger: logger}
}

// LoginRequest carries a token issued by the shop backend.
type LoginRequest struct {
	Token string `json:"token" validate:"required,max=8192"`
}

type sessionResponse struct {
	LoggedIn  bool       `json:"loggedIn"`
	UserID    string     `json:"userId,omitempty"`
	Role      string     `json:"role,omitempty"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
}

func (h *SessionHandler) current() sessionResponse {
	resp := sessionResponse{LoggedIn: h.session.LoggedIn()}
	if c, ok := h.session.Claims(); ok {
		resp.UserID = c.SubjectID()
		resp.Role = c.Role
		if c.ExpiresAt != nil {
			exp := c.ExpiresAt.Time.UTC()
			resp.ExpiresAt = &exp
		}
	}
	return resp
}

// GetSession handles GET /api/v1/session
func (h *SessionHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	httputil.WriteData(w, http.StatusOK, h.current())
}

// Login handles POST /api/v1/session. A transition to logged in syncs the
// cart before the response is written.
func (h *SessionHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}
	if err := h.session.Login(r.Context(), req.Token); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, h.current())
}

// Logout handles DELETE /api/v1/session
func (h *SessionHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.session.Logout(r.Context()); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, h.current())
}
