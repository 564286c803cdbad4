package handler

import (
	"encoding/json"
	"net/http"

	"github.com/xela07ax/riemann-mysql/internal/engine"
)

// StatusService Описываем, что нам нужно от цикла агента
type StatusService interface {
	Snapshot() (engine.Snapshot, bool)
}

type StatusHandler struct {
	service StatusService
}

func NewStatusHandler(s StatusService) *StatusHandler {
	return &StatusHandler{service: s}
}

// GetStatus отдает итог последнего цикла.
func (h *StatusHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	snap, ok := h.service.Snapshot()
	w.Header().Set("Content-Type", "application/json")
	if !ok {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"error": "no_cycle_completed"}`))
		return
	}
	json.NewEncoder(w).Encode(snap)
}
