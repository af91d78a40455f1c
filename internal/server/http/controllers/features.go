package controllers

import (
	"encoding/json"
	"net/http"

	pipelinesvc "github.com/conveyorhq/conveyor/internal/services/pipeline"
)

// FeaturesController handles feature registration, transitions, and batch
// endpoints.
type FeaturesController struct {
	svc *pipelinesvc.Service
}

// NewFeaturesController creates a new features controller.
func NewFeaturesController(svc *pipelinesvc.Service) *FeaturesController {
	return &FeaturesController{svc: svc}
}

// RegisterRoutes registers feature routes with the given mux.
func (c *FeaturesController) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/v1/features/register", c.handleRegister)
	mux.HandleFunc("/v1/features/transition", c.handleTransition)
	mux.HandleFunc("/v1/features/get", c.handleGet)
	mux.HandleFunc("/v1/features/list", c.handleList)
	mux.HandleFunc("/v1/batches/get", c.handleBatchGet)
	mux.HandleFunc("/v1/batches/close", c.handleBatchClose)
}

func (c *FeaturesController) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	var req registerReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	f, err := c.svc.RegisterFeature(r.Context(), req.ID, req.BatchID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
	writeJSON(w, f)
}

func (c *FeaturesController) handleTransition(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	var req transitionReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	f, err := c.svc.TransitionFeature(r.Context(), req.ID, req.Stage)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, f)
}

func (c *FeaturesController) handleGet(w http.ResponseWriter, r *http.Request) {
	f, err := c.svc.GetFeature(r.Context(), r.URL.Query().Get("id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, f)
}

// handleList lists features, optionally restricted to one stage.
func (c *FeaturesController) handleList(w http.ResponseWriter, r *http.Request) {
	feats, err := c.svc.ListFeatures(r.Context(), r.URL.Query().Get("stage"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, map[string]any{"features": feats})
}

func (c *FeaturesController) handleBatchGet(w http.ResponseWriter, r *http.Request) {
	b, err := c.svc.GetBatch(r.Context(), r.URL.Query().Get("id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, b)
}

func (c *FeaturesController) handleBatchClose(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	var req batchCloseReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	b, err := c.svc.CloseBatch(r.Context(), req.ID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, b)
}
