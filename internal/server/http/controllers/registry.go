package controllers

import (
	"net/http"

	"github.com/conveyorhq/conveyor/internal/runtime"
	pipelinesvc "github.com/conveyorhq/conveyor/internal/services/pipeline"
)

// ControllerRegistry manages all HTTP controllers.
//
// It provides a centralized way to register all controller routes.
type ControllerRegistry struct {
	general  *GeneralController
	features *FeaturesController
	queues   *QueuesController
	folders  *FoldersController
	shards   *ShardsController
	status   *StatusController
}

// NewControllerRegistry creates a new controller registry over the runtime
// and the pipeline service.
func NewControllerRegistry(rt *runtime.Runtime, svc *pipelinesvc.Service) *ControllerRegistry {
	return &ControllerRegistry{
		general:  NewGeneralController(rt, svc),
		features: NewFeaturesController(svc),
		queues:   NewQueuesController(svc),
		folders:  NewFoldersController(svc),
		shards:   NewShardsController(svc),
		status:   NewStatusController(svc),
	}
}

// RegisterAllRoutes registers all controller routes with the given mux.
func (r *ControllerRegistry) RegisterAllRoutes(mux *http.ServeMux) {
	r.general.RegisterRoutes(mux)
	r.features.RegisterRoutes(mux)
	r.queues.RegisterRoutes(mux)
	r.folders.RegisterRoutes(mux)
	r.shards.RegisterRoutes(mux)
	r.status.RegisterRoutes(mux)
}
