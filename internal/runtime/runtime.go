package runtime

import (
	"context"
	"errors"
	"time"

	cfgpkg "github.com/conveyorhq/conveyor/internal/config"
	"github.com/conveyorhq/conveyor/internal/jobfolder"
	"github.com/conveyorhq/conveyor/internal/journal"
	"github.com/conveyorhq/conveyor/internal/monitor"
	"github.com/conveyorhq/conveyor/internal/queue"
	"github.com/conveyorhq/conveyor/internal/registry"
	"github.com/conveyorhq/conveyor/internal/shard"
	"github.com/conveyorhq/conveyor/internal/status"
	logpkg "github.com/conveyorhq/conveyor/pkg/log"

	pebblestore "github.com/conveyorhq/conveyor/internal/storage/pebble"
)

// Options for building the Runtime.
type Options struct {
	DataDir string
	Fsync   pebblestore.FsyncMode
	Config  cfgpkg.Config
	Logger  logpkg.Logger
}

// Runtime wires storage, config, and the pipeline components for a
// single-node instance.
type Runtime struct {
	db     *pebblestore.DB
	config cfgpkg.Config
	logger logpkg.Logger

	journal   *journal.Log
	registry  *registry.Registry
	queues    *queue.Store
	folders   *jobfolder.Tracker
	monitor   *monitor.Monitor
	allocator *shard.Allocator
	reporter  *status.Reporter
}

// Open initializes the underlying storage and every component over it.
func Open(opts Options) (*Runtime, error) {
	if err := opts.Config.Validate(); err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = logpkg.NewLogger()
	}

	db, err := pebblestore.Open(pebblestore.Options{DataDir: opts.DataDir, Fsync: opts.Fsync})
	if err != nil {
		return nil, err
	}

	rt := &Runtime{db: db, config: opts.Config, logger: logger}

	rt.journal, err = journal.OpenLog(db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	rt.registry, err = registry.Open(db, rt.journal)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	rt.queues = queue.Open(db, logger)
	rt.folders = jobfolder.Open(db)

	rules := make(map[string]monitor.Rule, len(opts.Config.Stages))
	for _, s := range opts.Config.Stages {
		if s.RaiseThreshold > 0 {
			rules[s.Name] = monitor.Rule{Raise: s.RaiseThreshold, Clear: s.ClearThreshold}
		}
	}
	rt.monitor, err = monitor.Open(db, rt.journal, logger, rules, rt.queues.Depth)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	rt.allocator, err = shard.Open(db, rt.journal, logger, rt.featureIDs)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	rt.reporter = status.New(rt.registry, rt.queues, rt.monitor, rt.allocator, rt.journal, opts.Config.StageNames())
	return rt, nil
}

// Start launches the background goroutines: the depth sampler and the
// claim-timeout sweeper.
func (r *Runtime) Start() {
	r.monitor.StartSampler(time.Duration(r.config.SampleIntervalMs) * time.Millisecond)
	r.queues.StartSweeper(r.config.StageNames(),
		time.Duration(r.config.SweepIntervalMs)*time.Millisecond,
		time.Duration(r.config.ClaimTimeoutMs)*time.Millisecond)
}

// Close stops background goroutines and closes underlying resources.
func (r *Runtime) Close() error {
	if r.monitor != nil {
		r.monitor.Stop()
	}
	if r.queues != nil {
		r.queues.Stop()
	}
	if r.db == nil {
		return nil
	}
	return r.db.Close()
}

// CheckHealth performs a simple health check against storage.
func (r *Runtime) CheckHealth(ctx context.Context) error {
	if r.db == nil {
		return errors.New("db not open")
	}
	it, err := r.db.NewIter(nil)
	if err != nil {
		return err
	}
	return it.Close()
}

func (r *Runtime) featureIDs() ([]string, error) {
	feats, err := r.registry.All()
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(feats))
	for i, f := range feats {
		ids[i] = f.ID
	}
	return ids, nil
}

// Registry returns the feature registry.
func (r *Runtime) Registry() *registry.Registry { return r.registry }

// Queues returns the queue store.
func (r *Runtime) Queues() *queue.Store { return r.queues }

// Folders returns the job folder tracker.
func (r *Runtime) Folders() *jobfolder.Tracker { return r.folders }

// Monitor returns the bottleneck monitor.
func (r *Runtime) Monitor() *monitor.Monitor { return r.monitor }

// Allocator returns the shard allocator.
func (r *Runtime) Allocator() *shard.Allocator { return r.allocator }

// Reporter returns the status reporter.
func (r *Runtime) Reporter() *status.Reporter { return r.reporter }

// Journal returns the event journal.
func (r *Runtime) Journal() *journal.Log { return r.journal }

// DB exposes the underlying DB for advanced operations (internal use only).
func (r *Runtime) DB() *pebblestore.DB { return r.db }

// Config returns the runtime configuration.
func (r *Runtime) Config() cfgpkg.Config { return r.config }

// Logger returns the process logger the runtime was built with.
func (r *Runtime) Logger() logpkg.Logger { return r.logger }
