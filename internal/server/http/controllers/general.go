package controllers

import (
	"net/http"

	"github.com/conveyorhq/conveyor/internal/runtime"
	pipelinesvc "github.com/conveyorhq/conveyor/internal/services/pipeline"
)

// GeneralController handles health and configuration endpoints.
type GeneralController struct {
	rt  *runtime.Runtime
	svc *pipelinesvc.Service
}

// NewGeneralController creates a new general controller.
func NewGeneralController(rt *runtime.Runtime, svc *pipelinesvc.Service) *GeneralController {
	return &GeneralController{rt: rt, svc: svc}
}

// RegisterRoutes registers general routes with the given mux.
func (c *GeneralController) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/v1/healthz", c.handleHealth)
	mux.HandleFunc("/v1/stages", c.handleStages)
}

// handleHealth returns the health status of the service.
//
// Returns 200 OK with {"status": "ok"} if healthy, 503 Service Unavailable otherwise.
func (c *GeneralController) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := c.rt.CheckHealth(r.Context()); err != nil {
		writeError(w, http.StatusServiceUnavailable, "not_serving")
		return
	}
	writeJSON(w, map[string]string{"status": "ok"})
}

// handleStages lists the configured stage queues.
func (c *GeneralController) handleStages(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{"stages": c.rt.Config().Stages})
}
