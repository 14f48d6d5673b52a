// Package server builds the harpoon service from configuration and runs it.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/JakeFAU/harpoon/internal/api"
	"github.com/JakeFAU/harpoon/internal/clock/system"
	"github.com/JakeFAU/harpoon/internal/config"
	"github.com/JakeFAU/harpoon/internal/dispatcher"
	"github.com/JakeFAU/harpoon/internal/engine"
	"github.com/JakeFAU/harpoon/internal/fragment"
	"github.com/JakeFAU/harpoon/internal/fusion"
	"github.com/JakeFAU/harpoon/internal/id/uuid"
	"github.com/JakeFAU/harpoon/internal/logging"
	"github.com/JakeFAU/harpoon/internal/progress"
	progresssinks "github.com/JakeFAU/harpoon/internal/progress/sinks"
	memorypublisher "github.com/JakeFAU/harpoon/internal/publisher/memory"
	gcppublisher "github.com/JakeFAU/harpoon/internal/publisher/pubsub"
	memoryqueue "github.com/JakeFAU/harpoon/internal/queue/memory"
	"github.com/JakeFAU/harpoon/internal/scheduler"
	gcsstorage "github.com/JakeFAU/harpoon/internal/storage/gcs"
	localstorage "github.com/JakeFAU/harpoon/internal/storage/local"
	memorystorage "github.com/JakeFAU/harpoon/internal/storage/memory"
	pgstore "github.com/JakeFAU/harpoon/internal/storage/postgres"
	"github.com/JakeFAU/harpoon/internal/telemetry"
)

const shutdownTimeout = 10 * time.Second

// App contains the application's dependencies.
type App struct {
	cfg            config.Config
	version        string
	logger         *zap.Logger
	engine         *engine.Engine
	orchestrator   *fusion.Orchestrator
	apiServer      *api.Server
	jobs           *dispatcher.Dispatcher
	progressHub    *progress.Hub
	pubsubClient   *pubsub.Client
	gcpPublisher   *gcppublisher.Publisher
	storage        *storage.Client
	cycleDB        *pgstore.CycleStore
	tracerShutdown func(context.Context) error
}

// Handler exposes the HTTP handler, mainly for tests.
func (a *App) Handler() http.Handler {
	return a.apiServer.Handler()
}

// Orchestrator exposes the configured orchestrator.
func (a *App) Orchestrator() *fusion.Orchestrator {
	return a.orchestrator
}

// Run starts the HTTP server and blocks until ctx is canceled or a
// termination signal arrives.
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.cfg.Server.Port),
		Handler:           a.apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	jobsDone := make(chan struct{})
	if a.jobs != nil {
		go func() {
			defer close(jobsDone)
			a.jobs.Run(ctx)
		}()
	} else {
		close(jobsDone)
	}

	serveErr := make(chan error, 1)
	go func() {
		a.logger.Info("http server started", zap.Int("port", a.cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
			stop()
		}
	}()

	<-ctx.Done()
	a.logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("server shutdown error", zap.Error(err))
	}
	select {
	case <-jobsDone:
	case <-shutdownCtx.Done():
		a.logger.Warn("job workers did not stop before shutdown deadline")
	}
	closeErr := a.Close(shutdownCtx)

	select {
	case err := <-serveErr:
		return fmt.Errorf("http server: %w", err)
	default:
		return closeErr
	}
}

// Close releases everything Build opened. It is safe on a partially built App.
func (a *App) Close(ctx context.Context) error {
	if a == nil {
		return nil
	}
	a.closeInfrastructure(ctx)
	if a.engine != nil {
		a.engine.Close()
	}
	a.closeObservability(ctx)
	a.logger.Info("shutdown complete")
	return nil
}

func (a *App) closeInfrastructure(ctx context.Context) {
	if a.jobs != nil {
		a.jobs.Close()
	}
	if a.progressHub != nil {
		if err := a.progressHub.Close(ctx); err != nil {
			a.logger.Warn("progress hub close failed", zap.Error(err))
		}
	}
	if a.gcpPublisher != nil {
		a.gcpPublisher.Close()
	}
	if a.pubsubClient != nil {
		if err := a.pubsubClient.Close(); err != nil {
			a.logger.Warn("pubsub client close failed", zap.Error(err))
		}
	}
	if a.storage != nil {
		if err := a.storage.Close(); err != nil {
			a.logger.Warn("gcs client close failed", zap.Error(err))
		}
	}
	if a.cycleDB != nil {
		a.cycleDB.Close()
	}
}

func (a *App) closeObservability(ctx context.Context) {
	if a.tracerShutdown != nil {
		if err := a.tracerShutdown(ctx); err != nil {
			a.logger.Warn("tracer shutdown failed", zap.Error(err))
		}
	}
	if err := logging.Sync(a.logger); err != nil {
		a.logger.Warn("logger sync failed", zap.Error(err))
	}
}

// Build creates the application's dependencies.
func Build(ctx context.Context, cfg config.Config, version string) (*App, error) {
	logger, err := logging.New(cfg.Logging.Development, zap.String("service", "harpoon"))
	if err != nil {
		return nil, fmt.Errorf("logger init failed: %w", err)
	}
	zap.ReplaceGlobals(logger)
	return build(ctx, cfg, version, logger)
}

func build(ctx context.Context, cfg config.Config, version string, logger *zap.Logger) (_ *App, err error) {
	app := &App{cfg: cfg, version: version, logger: logger}
	defer func() {
		if err != nil {
			_ = app.Close(context.Background())
		}
	}()
	app.logger.Info("building application dependencies",
		zap.Int("server_port", cfg.Server.Port),
		zap.String("storage", cfg.Storage.Provider),
		zap.String("archive", cfg.Archive.Provider),
	)

	tp, err := telemetry.InitTracerProvider(ctx, "harpoon", version)
	if err != nil {
		return nil, fmt.Errorf("tracer init failed: %w", err)
	}
	app.tracerShutdown = tp.Shutdown

	app.engine, err = engine.New(engine.Options{
		MaxBatch:   cfg.Engine.Batch(),
		NumThreads: cfg.Engine.Threads(),
		Mode:       scheduler.Mode(cfg.Engine.Scheduler),
		Logger:     logger.Named("engine"),
	})
	if err != nil {
		return nil, err
	}

	store, err := setupStore(ctx, app)
	if err != nil {
		return nil, err
	}
	archive, err := setupArchive(ctx, app)
	if err != nil {
		return nil, err
	}
	publisher, err := setupPublisher(ctx, app)
	if err != nil {
		return nil, err
	}
	emitter, err := setupProgress(ctx, app)
	if err != nil {
		return nil, err
	}

	app.orchestrator, err = fusion.New(app.engine, fusion.Config{
		ArchivePrefix: cfg.Archive.Prefix,
		Topic:         cfg.PubSub.TopicName,
		Metrics:       true,
	}, fusion.Deps{
		Store:     store,
		Archive:   archive,
		Publisher: publisher,
		Progress:  emitter,
		Clock:     system.New(),
		IDs:       uuid.New(),
		Logger:    logger.Named("fusion"),
	})
	if err != nil {
		return nil, fmt.Errorf("orchestrator init failed: %w", err)
	}

	var opts []api.Option
	if cfg.Jobs.Workers > 0 {
		app.jobs, err = dispatcher.New(dispatcher.Config{
			Workers:     cfg.Jobs.Workers,
			HistorySize: cfg.Jobs.HistorySize,
		}, dispatcher.Deps{
			Queue:  memoryqueue.NewQueue(cfg.Jobs.QueueSize),
			Runner: app.orchestrator,
			Clock:  system.New(),
			IDs:    uuid.New(),
			Logger: logger.Named("jobs"),
		})
		if err != nil {
			return nil, fmt.Errorf("job dispatcher init failed: %w", err)
		}
		opts = append(opts, api.WithJobs(app.jobs))
		app.logger.Info("background jobs enabled",
			zap.Int("workers", cfg.Jobs.Workers),
			zap.Int("queue_size", cfg.Jobs.QueueSize),
		)
	}

	app.apiServer = api.NewServer(app.orchestrator, cfg, logger.Named("api"), opts...)
	return app, nil
}

func setupStore(ctx context.Context, app *App) (fragment.CycleStore, error) {
	switch app.cfg.Storage.Provider {
	case "postgres":
		store, err := pgstore.NewCycleStore(ctx, pgstore.CycleStoreConfig{
			DSN:      app.cfg.DB.DSN,
			Table:    app.cfg.DB.Table,
			MaxConns: int32(app.cfg.DB.MaxConns),
		})
		if err != nil {
			return nil, fmt.Errorf("cycle store init failed: %w", err)
		}
		app.cycleDB = store
		if err := store.EnsureSchema(ctx); err != nil {
			return nil, fmt.Errorf("cycle store schema: %w", err)
		}
		app.logger.Info("using postgres cycle store", zap.String("table", app.cfg.DB.Table))
		return store, nil
	default:
		store, err := memorystorage.NewCycleStore(app.cfg.Storage.CacheSize)
		if err != nil {
			return nil, fmt.Errorf("memory cycle store init failed: %w", err)
		}
		app.logger.Info("using in-memory cycle store", zap.Int("cache_size", app.cfg.Storage.CacheSize))
		return store, nil
	}
}

func setupArchive(ctx context.Context, app *App) (fragment.Archive, error) {
	switch app.cfg.Archive.Provider {
	case "gcs":
		var err error
		app.storage, err = storage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("gcs client init failed: %w", err)
		}
		blobStore, err := gcsstorage.New(app.storage, gcsstorage.Config{Bucket: app.cfg.Archive.GCSBucket})
		if err != nil {
			return nil, fmt.Errorf("gcs blob store init failed: %w", err)
		}
		app.logger.Info("using GCS archive", zap.String("bucket", app.cfg.Archive.GCSBucket))
		return blobStore, nil
	case "local":
		blobStore, err := localstorage.New(localstorage.Config{BaseDir: app.cfg.Archive.BaseDir})
		if err != nil {
			return nil, fmt.Errorf("local blob store init failed: %w", err)
		}
		app.logger.Info("using local archive", zap.String("path", app.cfg.Archive.BaseDir))
		return blobStore, nil
	case "memory":
		app.logger.Info("using in-memory archive")
		return memorystorage.NewBlobStore(), nil
	default:
		app.logger.Info("cycle archive disabled")
		return nil, nil
	}
}

func setupPublisher(ctx context.Context, app *App) (fragment.Publisher, error) {
	if app.cfg.PubSub.TopicName == "" || app.cfg.PubSub.ProjectID == "" {
		app.logger.Warn("No Pub/Sub topic configured, using in-memory publisher")
		return memorypublisher.New(), nil
	}
	var err error
	app.pubsubClient, err = pubsub.NewClient(ctx, app.cfg.PubSub.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("pubsub client init failed: %w", err)
	}
	app.gcpPublisher = gcppublisher.New(app.pubsubClient, app.cfg.PubSub.TopicName)
	app.logger.Info(
		"Pub/Sub publisher initialized",
		zap.String("project", app.cfg.PubSub.ProjectID),
		zap.String("topic", app.cfg.PubSub.TopicName),
	)
	return app.gcpPublisher, nil
}

func setupProgress(ctx context.Context, app *App) (progress.Emitter, error) {
	promSink, err := progresssinks.NewPrometheusSink(nil)
	if err != nil {
		return nil, fmt.Errorf("progress prometheus sink: %w", err)
	}
	sinkList := []progress.Sink{
		progresssinks.NewLogSink(app.logger.Named("progress_log")),
		promSink,
	}
	hubCfg := progress.Config{
		BufferSize:     app.cfg.Progress.BufferSize,
		MaxBatchEvents: app.cfg.Progress.MaxBatchEvents,
		MaxBatchWait:   app.cfg.Progress.MaxBatchWait(),
		BaseContext:    ctx,
		Logger:         app.logger.Named("progress_hub"),
	}
	app.progressHub = progress.NewHub(hubCfg, sinkList...)
	app.logger.Info("progress hub initialized",
		zap.Int("buffer_size", hubCfg.BufferSize),
		zap.Int("max_batch_events", hubCfg.MaxBatchEvents),
		zap.Duration("max_batch_wait", hubCfg.MaxBatchWait),
	)
	return app.progressHub, nil
}
