package controllers

import (
	"encoding/json"
	"net/http"

	pipelinesvc "github.com/conveyorhq/conveyor/internal/services/pipeline"
)

// QueuesController handles the per-stage work queue endpoints.
type QueuesController struct {
	svc *pipelinesvc.Service
}

// NewQueuesController creates a new queues controller.
func NewQueuesController(svc *pipelinesvc.Service) *QueuesController {
	return &QueuesController{svc: svc}
}

// RegisterRoutes registers queue routes with the given mux.
func (c *QueuesController) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/v1/queues/enqueue", c.handleEnqueue)
	mux.HandleFunc("/v1/queues/claim", c.handleClaim)
	mux.HandleFunc("/v1/queues/complete", c.handleComplete)
	mux.HandleFunc("/v1/queues/requeue", c.handleRequeue)
	mux.HandleFunc("/v1/queues/reclaim", c.handleReclaim)
	mux.HandleFunc("/v1/queues/depths", c.handleDepths)
	mux.HandleFunc("/v1/queues/summary", c.handleSummary)
}

func (c *QueuesController) handleEnqueue(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	var req enqueueReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	it, err := c.svc.Enqueue(r.Context(), req.Stage, req.FeatureID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
	writeJSON(w, it)
}

// handleClaim pops the oldest unclaimed item for a worker. An empty queue is
// a 200 with claimed=false, not an error.
func (c *QueuesController) handleClaim(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	var req claimReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	it, ok, err := c.svc.Claim(r.Context(), req.Stage, req.WorkerID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if !ok {
		writeJSON(w, map[string]any{"claimed": false})
		return
	}
	writeJSON(w, map[string]any{"claimed": true, "item": it})
}

func (c *QueuesController) handleComplete(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	var req completeReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := c.svc.Complete(r.Context(), req.Stage, req.FeatureID, req.WorkerID); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (c *QueuesController) handleRequeue(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	var req requeueReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	it, err := c.svc.Requeue(r.Context(), req.Stage, req.FeatureID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, it)
}

func (c *QueuesController) handleReclaim(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	var req reclaimReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	reclaimed, err := c.svc.ReclaimExpired(r.Context(), req.Stage)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, map[string]any{"reclaimed": reclaimed})
}

func (c *QueuesController) handleDepths(w http.ResponseWriter, r *http.Request) {
	depths, err := c.svc.QueueDepths(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, map[string]any{"queues": depths})
}

func (c *QueuesController) handleSummary(w http.ResponseWriter, r *http.Request) {
	sum, err := c.svc.QueueSummary(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, sum)
}
