package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/qubdrive/api/internal/application/passwordreset"
	"github.com/qubdrive/api/internal/pkg/validate"
)

// PasswordResetHandler handles the forgotten-password flow endpoints.
type PasswordResetHandler struct {
	svc passwordreset.Service
}

func NewPasswordResetHandler(svc passwordreset.Service) *PasswordResetHandler {
	return &PasswordResetHandler{svc: svc}
}

type resetRequest struct {
	Email           string `json:"email" validate:"required,email"`
	Code            string `json:"code" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required"`
	ConfirmPassword string `json:"confirm_password" validate:"required"`
}

func (h *PasswordResetHandler) Action(w http.ResponseWriter, r *http.Request) {
	switch chi.URLParam(r, "action") {
	case "request":
		var req emailRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if err := validate.Struct(&req); err != nil {
			writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		result, err := h.svc.Request(r.Context(), req.Email)
		if err != nil {
			httpError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, result)
	case "verify-otp":
		var req verifyEmailRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if err := validate.Struct(&req); err != nil {
			writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		result, err := h.svc.VerifyOtp(r.Context(), req.Email, req.Code)
		if err != nil {
			httpError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, result)
	case "reset":
		var req resetRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if err := validate.Struct(&req); err != nil {
			writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		result, err := h.svc.ResetWithOtp(r.Context(), req.Email, req.Code, req.NewPassword, req.ConfirmPassword)
		if err != nil {
			httpError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, result)
	case "resend":
		var req emailRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		result, err := h.svc.Resend(r.Context(), req.Email)
		if err != nil {
			httpError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, result)
	case "cancel":
		var req emailRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if err := h.svc.Cancel(r.Context(), req.Email); err != nil {
			httpError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, MessageEnvelope{Message: "password reset cancelled"})
	default:
		writeError(w, http.StatusBadRequest, "unknown action")
	}
}

// Status reports the flow state for ?email=.
func (h *PasswordResetHandler) Status(w http.ResponseWriter, r *http.Request) {
	email := r.URL.Query().Get("email")
	if email == "" {
		writeError(w, http.StatusBadRequest, "email query parameter is required")
		return
	}
	result, err := h.svc.Status(r.Context(), email)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
