package controllers

import (
	"encoding/json"
	"net/http"

	pipelinesvc "github.com/conveyorhq/conveyor/internal/services/pipeline"
)

// FoldersController handles the job folder endpoints.
type FoldersController struct {
	svc *pipelinesvc.Service
}

// NewFoldersController creates a new folders controller.
func NewFoldersController(svc *pipelinesvc.Service) *FoldersController {
	return &FoldersController{svc: svc}
}

// RegisterRoutes registers folder routes with the given mux.
func (c *FoldersController) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/v1/folders/open", c.handleOpen)
	mux.HandleFunc("/v1/folders/fill", c.handleFill)
	mux.HandleFunc("/v1/folders/status", c.handleStatus)
	mux.HandleFunc("/v1/folders/close", c.handleClose)
}

func (c *FoldersController) handleOpen(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	var req folderOpenReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	f, err := c.svc.OpenFolder(r.Context(), req.FeatureID, req.Stage, req.RequiredSlots)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
	writeJSON(w, f)
}

// handleFill marks a slot filled and reports folder completeness so callers
// can fan in without a second request.
func (c *FoldersController) handleFill(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	var req folderFillReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	f, err := c.svc.FillSlot(r.Context(), req.FeatureID, req.Slot, req.Overwrite)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, map[string]any{"folder": f, "complete": f.Complete()})
}

func (c *FoldersController) handleStatus(w http.ResponseWriter, r *http.Request) {
	f, err := c.svc.FolderStatus(r.Context(), r.URL.Query().Get("featureId"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, map[string]any{
		"folder":   f,
		"filled":   f.FilledSlots(),
		"missing":  f.Missing(),
		"complete": f.Complete(),
	})
}

func (c *FoldersController) handleClose(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	var req folderCloseReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	f, err := c.svc.CloseFolder(r.Context(), req.FeatureID, req.Force)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, f)
}
