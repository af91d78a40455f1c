package controllers

import (
	"encoding/json"
	"net/http"

	pipelinesvc "github.com/conveyorhq/conveyor/internal/services/pipeline"
)

// ShardsController handles dispatcher assignment endpoints.
type ShardsController struct {
	svc *pipelinesvc.Service
}

// NewShardsController creates a new shards controller.
func NewShardsController(svc *pipelinesvc.Service) *ShardsController {
	return &ShardsController{svc: svc}
}

// RegisterRoutes registers shard routes with the given mux.
func (c *ShardsController) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/v1/shards/partition", c.handlePartition)
	mux.HandleFunc("/v1/shards/reshard", c.handleReshard)
	mux.HandleFunc("/v1/shards/map", c.handleMap)
	mux.HandleFunc("/v1/shards/dispatcher", c.handleDispatcher)
}

func (c *ShardsController) handlePartition(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	var req shardReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	asn, err := c.svc.Partition(r.Context(), req.DispatcherIDs)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, asn)
}

// handleReshard swaps in a new assignment and reports which features moved.
func (c *ShardsController) handleReshard(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	var req shardReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	asn, moved, err := c.svc.Reshard(r.Context(), req.DispatcherIDs)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, map[string]any{"assignment": asn, "moved": moved})
}

func (c *ShardsController) handleMap(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{"shardMap": c.svc.ShardMap(r.Context())})
}

func (c *ShardsController) handleDispatcher(w http.ResponseWriter, r *http.Request) {
	featureID := r.URL.Query().Get("featureId")
	d, ok := c.svc.DispatcherFor(r.Context(), featureID)
	if !ok {
		writeError(w, http.StatusNotFound, "no assignment published")
		return
	}
	writeJSON(w, map[string]string{"featureId": featureID, "dispatcherId": d})
}
