package serverrun

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"

	cfgpkg "github.com/conveyorhq/conveyor/internal/config"
	"github.com/conveyorhq/conveyor/internal/runtime"
	httpserver "github.com/conveyorhq/conveyor/internal/server/http"
	pipelinesvc "github.com/conveyorhq/conveyor/internal/services/pipeline"
	pebblestore "github.com/conveyorhq/conveyor/internal/storage/pebble"
	logpkg "github.com/conveyorhq/conveyor/pkg/log"
)

func getenvDefault(key, def string) string {
	if v := getenv(key); v != "" {
		return v
	}
	return def
}

// small wrapper to allow testing; replaced by os.Getenv at build time
var getenv = func(key string) string { return os.Getenv(key) }

// Options for running the server.
type Options struct {
	DataDir  string
	HTTPAddr string
	Fsync    pebblestore.FsyncMode
	Config   cfgpkg.Config
}

// Run starts the runtime and HTTP server and blocks until ctx is cancelled.
func Run(ctx context.Context, opts Options) error {
	// Be robust to callers that don't pass a signal-aware context; layer a
	// local signal context over the provided one.
	sctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	if opts.DataDir == "" {
		opts.DataDir = cfgpkg.DefaultDataDir()
	}
	storeDir := filepath.Join(opts.DataDir, "store")

	// Build process-wide logger; defaults: level=info, format=text.
	cfg := &logpkg.Config{
		Level:  getenvDefault("CONVEYOR_LOG_LEVEL", "info"),
		Format: getenvDefault("CONVEYOR_LOG_FORMAT", "text"),
	}
	procLogger, err := logpkg.ApplyConfig(cfg)
	if err != nil {
		lvl := logpkg.InfoLevel
		if l, e := logpkg.ParseLevel(cfg.Level); e == nil {
			lvl = l
		}
		procLogger = logpkg.NewLogger(logpkg.WithLevel(lvl), logpkg.WithFormatter(&logpkg.TextFormatter{}))
	}

	// Redirect stdlib logs (e.g. Pebble) to our logger.
	logpkg.RedirectStdLog(procLogger)

	rt, err := runtime.Open(runtime.Options{
		DataDir: storeDir,
		Fsync:   opts.Fsync,
		Config:  opts.Config,
		Logger:  procLogger,
	})
	if err != nil {
		return err
	}
	defer rt.Close()
	rt.Start()

	procLogger.Info("starting conveyor server",
		logpkg.Str("http", opts.HTTPAddr),
		logpkg.Str("data_dir", opts.DataDir),
		logpkg.Str("level", cfg.Level),
		logpkg.Str("format", cfg.Format),
	)

	svc := pipelinesvc.NewWithLogger(rt, procLogger.With(logpkg.Component("pipeline")))
	hsrv := httpserver.NewWithService(rt, svc, procLogger)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := hsrv.ListenAndServe(sctx, opts.HTTPAddr); err != nil && sctx.Err() == nil {
			procLogger.Error("http server failed", logpkg.Err(err))
		}
	}()

	<-sctx.Done()
	// Shut the server down before the runtime/DB to avoid races.
	hsrv.Close()
	wg.Wait()
	return nil
}
