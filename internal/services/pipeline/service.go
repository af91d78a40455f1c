package pipelinesvc

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/conveyorhq/conveyor/internal/jobfolder"
	"github.com/conveyorhq/conveyor/internal/journal"
	"github.com/conveyorhq/conveyor/internal/queue"
	"github.com/conveyorhq/conveyor/internal/registry"
	"github.com/conveyorhq/conveyor/internal/runtime"
	"github.com/conveyorhq/conveyor/internal/shard"
	"github.com/conveyorhq/conveyor/internal/status"
	logpkg "github.com/conveyorhq/conveyor/pkg/log"
)

// Service is the validation and logging facade over the pipeline components.
// Transports (HTTP, CLI helpers) call it rather than the components directly.
type Service struct {
	rt     *runtime.Runtime
	logger logpkg.Logger
}

// New creates a pipeline service with a default logger.
func New(rt *runtime.Runtime) *Service {
	logger := logpkg.NewLogger(logpkg.WithLevel(logpkg.InfoLevel))
	return NewWithLogger(rt, logger.With(logpkg.Component("pipeline")))
}

// NewWithLogger creates a pipeline service with a custom logger.
func NewWithLogger(rt *runtime.Runtime, logger logpkg.Logger) *Service {
	if logger == nil {
		logger = logpkg.NewLogger(logpkg.WithLevel(logpkg.InfoLevel))
		logger = logger.With(logpkg.Component("pipeline"))
	}
	return &Service{rt: rt, logger: logger}
}

// RegisterFeature registers a feature, optionally under a batch.
func (s *Service) RegisterFeature(ctx context.Context, id, batchID string) (registry.Feature, error) {
	if id == "" {
		return registry.Feature{}, fmt.Errorf("pipeline: feature id required")
	}
	f, err := s.rt.Registry().Register(ctx, id, batchID)
	if err != nil {
		return registry.Feature{}, err
	}
	s.logger.Info("feature registered",
		logpkg.Str("feature", f.ID), logpkg.Str("batch", batchID), logpkg.Str("shard_key", f.ShardKey))
	return f, nil
}

// TransitionFeature moves a feature to the named stage.
func (s *Service) TransitionFeature(ctx context.Context, id, stageName string) (registry.Feature, error) {
	stage, err := registry.ParseStage(stageName)
	if err != nil {
		return registry.Feature{}, err
	}
	f, err := s.rt.Registry().Transition(ctx, id, stage)
	if err != nil {
		return registry.Feature{}, err
	}
	s.logger.Info("feature transitioned",
		logpkg.Str("feature", id), logpkg.Str("to", stageName))
	return f, nil
}

// GetFeature returns a feature by id.
func (s *Service) GetFeature(ctx context.Context, id string) (registry.Feature, error) {
	return s.rt.Registry().Get(id)
}

// ListFeatures returns features, all of them or those in one stage.
func (s *Service) ListFeatures(ctx context.Context, stageName string) ([]registry.Feature, error) {
	if stageName == "" {
		return s.rt.Registry().All()
	}
	stage, err := registry.ParseStage(stageName)
	if err != nil {
		return nil, err
	}
	return s.rt.Registry().ListByStage(stage)
}

// GetBatch returns a batch by id.
func (s *Service) GetBatch(ctx context.Context, id string) (registry.Batch, error) {
	return s.rt.Registry().GetBatch(id)
}

// CloseBatch closes a batch whose members are all terminal.
func (s *Service) CloseBatch(ctx context.Context, id string) (registry.Batch, error) {
	b, err := s.rt.Registry().CloseBatch(ctx, id)
	if err != nil {
		return registry.Batch{}, err
	}
	s.logger.Info("batch closed", logpkg.Str("batch", id), logpkg.Int("features", len(b.FeatureIDs)))
	return b, nil
}

// Enqueue puts a feature on a stage queue. The stage must be configured.
func (s *Service) Enqueue(ctx context.Context, stageName, featureID string) (queue.Item, error) {
	if err := s.checkStage(stageName); err != nil {
		return queue.Item{}, err
	}
	if _, err := s.rt.Registry().Get(featureID); err != nil {
		return queue.Item{}, err
	}
	return s.rt.Queues().Enqueue(ctx, stageName, featureID)
}

// Claim hands the oldest unclaimed item in a stage queue to a worker. An
// empty workerID gets a generated one, returned on the item.
func (s *Service) Claim(ctx context.Context, stageName, workerID string) (queue.Item, bool, error) {
	if err := s.checkStage(stageName); err != nil {
		return queue.Item{}, false, err
	}
	if workerID == "" {
		workerID = "worker-" + uuid.NewString()
	}
	it, ok, err := s.rt.Queues().Claim(ctx, stageName, workerID)
	if err != nil || !ok {
		return queue.Item{}, false, err
	}
	s.logger.Debug("item claimed",
		logpkg.Str("stage", stageName), logpkg.Str("feature", it.FeatureID), logpkg.Str("worker", workerID))
	return it, true, nil
}

// Complete removes a claimed item; workerID must hold the claim.
func (s *Service) Complete(ctx context.Context, stageName, featureID, workerID string) error {
	if err := s.checkStage(stageName); err != nil {
		return err
	}
	return s.rt.Queues().Complete(ctx, stageName, featureID, workerID)
}

// Requeue returns a claimed item to the queue without losing its position.
func (s *Service) Requeue(ctx context.Context, stageName, featureID string) (queue.Item, error) {
	if err := s.checkStage(stageName); err != nil {
		return queue.Item{}, err
	}
	return s.rt.Queues().Requeue(ctx, stageName, featureID)
}

// QueueDepths returns the depth of every configured stage queue.
func (s *Service) QueueDepths(ctx context.Context) (map[string]int, error) {
	out := make(map[string]int)
	for _, stage := range s.rt.Config().StageNames() {
		depth, err := s.rt.Queues().Depth(stage)
		if err != nil {
			return nil, err
		}
		out[stage] = depth
	}
	return out, nil
}

// ReclaimExpired requeues items whose claims outlived the configured timeout.
func (s *Service) ReclaimExpired(ctx context.Context, stageName string) ([]string, error) {
	if err := s.checkStage(stageName); err != nil {
		return nil, err
	}
	timeout := time.Duration(s.rt.Config().ClaimTimeoutMs) * time.Millisecond
	return s.rt.Queues().ReclaimExpired(ctx, stageName, timeout)
}

// OpenFolder opens a job folder for a feature. Empty requiredSlots falls back
// to the slots configured for the named stage.
func (s *Service) OpenFolder(ctx context.Context, featureID, stageName string, requiredSlots []string) (jobfolder.Folder, error) {
	if _, err := s.rt.Registry().Get(featureID); err != nil {
		return jobfolder.Folder{}, err
	}
	if len(requiredSlots) == 0 && stageName != "" {
		if sc, ok := s.rt.Config().Stage(stageName); ok {
			requiredSlots = sc.RequiredSlots
		}
	}
	f, err := s.rt.Folders().OpenFolder(ctx, featureID, requiredSlots)
	if err != nil {
		return jobfolder.Folder{}, err
	}
	s.logger.Info("folder opened",
		logpkg.Str("feature", featureID), logpkg.Int("slots", len(f.Required)))
	return f, nil
}

// FillSlot marks one slot of a feature's folder filled.
func (s *Service) FillSlot(ctx context.Context, featureID, slot string, overwrite bool) (jobfolder.Folder, error) {
	f, err := s.rt.Folders().Fill(ctx, featureID, slot, overwrite)
	if err != nil {
		return jobfolder.Folder{}, err
	}
	if f.Complete() {
		s.logger.Info("folder complete", logpkg.Str("feature", featureID))
	}
	return f, nil
}

// FolderStatus returns the live or archived folder for a feature.
func (s *Service) FolderStatus(ctx context.Context, featureID string) (jobfolder.Folder, error) {
	return s.rt.Folders().Status(featureID)
}

// CloseFolder archives a folder, forcing past missing slots when asked.
func (s *Service) CloseFolder(ctx context.Context, featureID string, force bool) (jobfolder.Folder, error) {
	f, err := s.rt.Folders().Close(ctx, featureID, force)
	if err != nil {
		return jobfolder.Folder{}, err
	}
	s.logger.Info("folder closed",
		logpkg.Str("feature", featureID), logpkg.F("forced", f.Forced))
	return f, nil
}

// Partition assigns all known features across the given dispatchers. Empty
// dispatcherIDs defaults to d1..dN from the configured dispatcherCount.
func (s *Service) Partition(ctx context.Context, dispatcherIDs []string) (*shard.Assignment, error) {
	return s.rt.Allocator().Partition(ctx, s.defaultDispatchers(dispatcherIDs))
}

// Reshard recomputes the assignment and returns the moved feature ids.
func (s *Service) Reshard(ctx context.Context, dispatcherIDs []string) (*shard.Assignment, []string, error) {
	return s.rt.Allocator().Reshard(ctx, s.defaultDispatchers(dispatcherIDs))
}

// DispatcherFor resolves the dispatcher owning a feature.
func (s *Service) DispatcherFor(ctx context.Context, featureID string) (string, bool) {
	return s.rt.Allocator().DispatcherFor(featureID)
}

// ShardMap returns the current assignment grouped by dispatcher.
func (s *Service) ShardMap(ctx context.Context) map[string][]string {
	return s.rt.Allocator().Map()
}

// Snapshot returns the aggregate status view.
func (s *Service) Snapshot(ctx context.Context) (status.Snapshot, error) {
	return s.rt.Reporter().Snapshot()
}

// FilterFeatures lists features passing an optional CEL expression.
func (s *Service) FilterFeatures(ctx context.Context, filterExpr string) ([]status.FeatureView, error) {
	return s.rt.Reporter().Features(filterExpr)
}

// QueueSummary returns per-queue counters plus operator recommendations.
func (s *Service) QueueSummary(ctx context.Context) (status.Summary, error) {
	return s.rt.Reporter().QueueSummary()
}

// Events returns the newest journal entries, up to limit (default 100).
func (s *Service) Events(ctx context.Context, limit int) ([]journal.Event, error) {
	if limit <= 0 {
		limit = 100
	}
	return s.rt.Reporter().Events(limit)
}

func (s *Service) checkStage(name string) error {
	if name == "" {
		return fmt.Errorf("pipeline: stage required")
	}
	if _, ok := s.rt.Config().Stage(name); !ok {
		return fmt.Errorf("pipeline: unknown stage %q", name)
	}
	return nil
}

func (s *Service) defaultDispatchers(ids []string) []string {
	if len(ids) > 0 {
		return ids
	}
	n := s.rt.Config().DispatcherCount
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("d%d", i+1)
	}
	return out
}
