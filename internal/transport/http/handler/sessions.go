package handler

import (
	"encoding/json"
	"net"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/qubdrive/api/internal/application/session"
	"github.com/qubdrive/api/internal/domain"
	"github.com/qubdrive/api/internal/pkg/validate"
	"github.com/qubdrive/api/internal/transport/http/middleware"
)

// SessionHandler handles login, refresh, logout and session management.
type SessionHandler struct {
	svc session.Service
}

func NewSessionHandler(svc session.Service) *SessionHandler {
	return &SessionHandler{svc: svc}
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

func (h *SessionHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req session.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validate.Struct(&req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	req.DeviceInfo = deviceInfoFrom(r)

	result, err := h.svc.Login(r.Context(), req)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *SessionHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validate.Struct(&req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	pair, err := h.svc.Refresh(r.Context(), req.RefreshToken, deviceInfoFrom(r))
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pair)
}

// Logout always answers 200: the client is logged out whether or not the
// token could be decoded or the session row touched.
func (h *SessionHandler) Logout(w http.ResponseWriter, r *http.Request) {
	token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	h.svc.Logout(r.Context(), token)
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: "logged out"})
}

// List returns the caller's sessions.
func (h *SessionHandler) List(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	sessions, err := h.svc.ListSessions(r.Context(), claims.UserID)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sessions)
}

// Revoke deactivates one of the caller's sessions.
func (h *SessionHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	sessionID := chi.URLParam(r, "id")

	// Only the owner (or an admin) may revoke a session.
	if claims.Role != domain.RoleAdmin {
		sessions, err := h.svc.ListSessions(r.Context(), claims.UserID)
		if err != nil {
			httpError(w, err)
			return
		}
		owned := false
		for _, s := range sessions {
			if s.SessionID == sessionID {
				owned = true
				break
			}
		}
		if !owned {
			writeError(w, http.StatusForbidden, "forbidden")
			return
		}
	}

	if err := h.svc.RevokeSession(r.Context(), sessionID); err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: "session revoked"})
}

// RevokeAll deactivates every session belonging to the caller.
func (h *SessionHandler) RevokeAll(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if err := h.svc.RevokeAllSessions(r.Context(), claims.UserID); err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: "all sessions revoked"})
}

func deviceInfoFrom(r *http.Request) domain.DeviceInfo {
	ip := r.RemoteAddr
	if host, _, err := net.SplitHostPort(ip); err == nil {
		ip = host
	}
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		ip = strings.TrimSpace(strings.Split(fwd, ",")[0])
	}
	return domain.DeviceInfo{UserAgent: r.UserAgent(), IP: ip}
}
