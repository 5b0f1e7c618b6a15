package handler

import (
	"net/http"

	"github.com/qubdrive/api/internal/application/maintenance"
)

// MaintenanceHandler exposes the on-demand cleanup sweep. Admin-gated by the
// router.
type MaintenanceHandler struct {
	svc maintenance.Service
}

func NewMaintenanceHandler(svc maintenance.Service) *MaintenanceHandler {
	return &MaintenanceHandler{svc: svc}
}

func (h *MaintenanceHandler) Cleanup(w http.ResponseWriter, r *http.Request) {
	report, err := h.svc.CleanupExpired(r.Context())
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}
