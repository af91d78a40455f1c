package controllers

// Request bodies shared across controllers.

type registerReq struct {
	ID      string `json:"id"`
	BatchID string `json:"batchId"`
}

type transitionReq struct {
	ID    string `json:"id"`
	Stage string `json:"stage"`
}

type batchCloseReq struct {
	ID string `json:"id"`
}

type enqueueReq struct {
	Stage     string `json:"stage"`
	FeatureID string `json:"featureId"`
}

type claimReq struct {
	Stage    string `json:"stage"`
	WorkerID string `json:"workerId"`
}

type completeReq struct {
	Stage     string `json:"stage"`
	FeatureID string `json:"featureId"`
	WorkerID  string `json:"workerId"`
}

type requeueReq struct {
	Stage     string `json:"stage"`
	FeatureID string `json:"featureId"`
}

type reclaimReq struct {
	Stage string `json:"stage"`
}

type folderOpenReq struct {
	FeatureID     string   `json:"featureId"`
	Stage         string   `json:"stage"`
	RequiredSlots []string `json:"requiredSlots"`
}

type folderFillReq struct {
	FeatureID string `json:"featureId"`
	Slot      string `json:"slot"`
	Overwrite bool   `json:"overwrite"`
}

type folderCloseReq struct {
	FeatureID string `json:"featureId"`
	Force     bool   `json:"force"`
}

type shardReq struct {
	DispatcherIDs []string `json:"dispatcherIds"`
}
