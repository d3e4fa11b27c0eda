package app

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"gorm.io/gorm"

	"github.com/usaspending/data-broker/internal/awardfeed"
	"github.com/usaspending/data-broker/internal/clients/feeds"
	"github.com/usaspending/data-broker/internal/clients/gcs"
	"github.com/usaspending/data-broker/internal/clients/queue"
	"github.com/usaspending/data-broker/internal/clients/sam"
	"github.com/usaspending/data-broker/internal/data/db"
	"github.com/usaspending/data-broker/internal/data/repos"
	"github.com/usaspending/data-broker/internal/generation"
	"github.com/usaspending/data-broker/internal/jobgraph"
	"github.com/usaspending/data-broker/internal/lifecycle"
	"github.com/usaspending/data-broker/internal/platform/logger"
	"github.com/usaspending/data-broker/internal/scheduler"
	"github.com/usaspending/data-broker/internal/subawards"
	"github.com/usaspending/data-broker/internal/validation"
	"github.com/usaspending/data-broker/internal/worker"
)

// App wires the whole broker over one database handle, one blob
// bucket and one work queue. Both binaries build the same App and use
// the pieces they need.
type App struct {
	Log   *logger.Logger
	DB    *gorm.DB
	Repos *repos.All
	Blob  gcs.BlobStore
	Queue queue.WorkQueue

	Graph       *jobgraph.Graph
	Validator   *validation.Validator
	Builder     *generation.Builder
	Coordinator *generation.Coordinator
	Lifecycle   *lifecycle.Controller
	Reconciler  *subawards.Reconciler
	Puller      *subawards.Puller
	Loader      *awardfeed.Loader
	Pool        *worker.Pool
	Scheduler   *scheduler.Scheduler
}

func New() (*App, error) {
	_ = godotenv.Load()

	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	pg, err := db.NewPostgresService(log)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("init postgres: %w", err)
	}
	if err := pg.AutoMigrateAll(); err != nil {
		log.Sync()
		return nil, fmt.Errorf("postgres automigrate: %w", err)
	}
	theDB := pg.DB()

	blob, err := gcs.NewBlobStore(log)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("init blob store: %w", err)
	}
	wq, err := queue.NewWorkQueue(log)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("init work queue: %w", err)
	}
	entities, err := sam.NewEntityClient(log)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("init entity client: %w", err)
	}
	awardsFeed, err := feeds.NewAwardsClient(log)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("init awards feed client: %w", err)
	}
	subawardFeed, err := feeds.NewSubawardClient(log)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("init subaward feed client: %w", err)
	}

	reposet := repos.NewAll(theDB, log)

	graph := jobgraph.New(theDB, log, reposet.Jobs, reposet.Deps, wq)
	validator := validation.New(theDB, log, reposet, blob, graph)
	coordinator := generation.NewCoordinator(theDB, log, reposet, blob, wq, graph)
	builder := generation.NewBuilder(theDB, log, reposet, blob, entities)
	controller := lifecycle.New(theDB, log, reposet, graph)
	reconciler := subawards.NewReconciler(theDB, log, reposet)
	puller := subawards.NewPuller(theDB, log, reposet, subawardFeed, reconciler)
	loader := awardfeed.NewLoader(theDB, log, reposet, awardsFeed)
	pool := worker.NewPool(theDB, log, reposet, wq, graph, validator, builder, coordinator)
	sched := scheduler.New(theDB, log, reposet, loader, puller, reconciler, controller)

	return &App{
		Log:   log,
		DB:    theDB,
		Repos: reposet,
		Blob:  blob,
		Queue: wq,

		Graph:       graph,
		Validator:   validator,
		Builder:     builder,
		Coordinator: coordinator,
		Lifecycle:   controller,
		Reconciler:  reconciler,
		Puller:      puller,
		Loader:      loader,
		Pool:        pool,
		Scheduler:   sched,
	}, nil
}

func (a *App) Close() {
	if a == nil {
		return
	}
	if a.Queue != nil {
		if err := a.Queue.Close(); err != nil {
			a.Log.Warn("closing work queue", "error", err)
		}
	}
	if a.Log != nil {
		a.Log.Sync()
	}
}
