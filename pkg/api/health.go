package api

import (
	"net/http"

	"github.com/dtool-infra/dtool-config-generator/internal/logger"
)

// Liveness answers as soon as the process serves requests.
func (h *Handlers) Liveness(w http.ResponseWriter, r *http.Request) {
	WriteJSONOK(w, map[string]string{"status": "ok"})
}

// Readiness checks the database and the remote services through the
// injected probe.
func (h *Handlers) Readiness(w http.ResponseWriter, r *http.Request) {
	if h.ready == nil {
		WriteJSONOK(w, map[string]string{"status": "ready"})
		return
	}

	if err := h.ready(r); err != nil {
		logger.Warn("readiness probe failed", "error", err)
		WriteJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "unavailable",
			"error":  err.Error(),
		})
		return
	}
	WriteJSONOK(w, map[string]string{"status": "ready"})
}
