package controllers

import (
	"net/http"

	pipelinesvc "github.com/conveyorhq/conveyor/internal/services/pipeline"
)

// StatusController serves the read-only aggregate views.
type StatusController struct {
	svc *pipelinesvc.Service
}

// NewStatusController creates a new status controller.
func NewStatusController(svc *pipelinesvc.Service) *StatusController {
	return &StatusController{svc: svc}
}

// RegisterRoutes registers status routes with the given mux.
func (c *StatusController) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/v1/status", c.handleSnapshot)
	mux.HandleFunc("/v1/status/features", c.handleFeatures)
	mux.HandleFunc("/v1/status/events", c.handleEvents)
}

func (c *StatusController) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	snap, err := c.svc.Snapshot(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, snap)
}

// handleFeatures lists features, optionally filtered by a CEL expression in
// the "filter" query parameter, e.g. filter=stage=="review".
func (c *StatusController) handleFeatures(w http.ResponseWriter, r *http.Request) {
	views, err := c.svc.FilterFeatures(r.Context(), r.URL.Query().Get("filter"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, map[string]any{"features": views})
}

func (c *StatusController) handleEvents(w http.ResponseWriter, r *http.Request) {
	events, err := c.svc.Events(r.Context(), parseLimit(r.URL.Query().Get("limit")))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, map[string]any{"events": events})
}
