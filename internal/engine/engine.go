// Package engine assembles the Sync Orchestrator, Scheduler, Progress
// Bus, and store handles into one explicit, dependency-injected value —
// the redesign spec.md §9 calls for in place of the original's
// singleton services with hidden state.
package engine

import (
	"context"
	"fmt"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/partsform/syncengine/internal/config"
	"github.com/partsform/syncengine/internal/job"
	"github.com/partsform/syncengine/internal/progress"
	"github.com/partsform/syncengine/internal/repository"
	"github.com/partsform/syncengine/internal/scheduler"
	"github.com/partsform/syncengine/internal/search"
	"github.com/partsform/syncengine/internal/store"
	"github.com/partsform/syncengine/internal/sync"
)

// Engine owns every stateful collaborator the control-plane API and the
// worker process both need. Nothing here is a package-level global.
type Engine struct {
	Integrations repository.IntegrationRepository
	Parts        repository.PartRepository
	SyncRequests repository.SyncRequestRepository
	Writer       *store.Writer
	Indexer      *search.Indexer
	Progress     *progress.Bus
	Orchestrator *sync.Orchestrator
	Scheduler    *scheduler.Scheduler
	Log          *zap.SugaredLogger
}

// Deps is everything New needs already constructed: the three
// repositories, the ES and Redis clients, the logger and the config are
// the caller's responsibility (the asynq enqueuer is passed to New
// separately), per the teacher's explicit-constructor convention.
type Deps struct {
	Integrations repository.IntegrationRepository
	Parts        repository.PartRepository
	SyncRequests repository.SyncRequestRepository
	ESClient     *elasticsearch.Client
	RedisClient  *redis.Client
	Log          *zap.SugaredLogger
	Cfg          *config.Config
}

// New wires one Engine. dispatchMode/enqueuer select whether the
// Scheduler drives the Orchestrator in-process or through a durable
// SyncRequest + asynq queue (spec.md §4.6).
func New(deps Deps, dispatchMode scheduler.DispatchMode, enqueuer *job.Enqueuer) (*Engine, error) {
	writer := store.New(deps.Parts)
	indexer := search.New(deps.ESClient, writer)

	bus := progress.New()
	if deps.RedisClient != nil {
		bus.SetMirror(progress.NewRedisMirror(deps.RedisClient))
	}

	orchestrator := sync.New(deps.Integrations, writer, indexer, bus, deps.Log, true, deps.Cfg.DeferredIndexing, deps.Cfg.LowParallelism())

	sched := scheduler.New(dispatchMode, deps.Integrations, deps.SyncRequests, orchestrator, enqueuer, deps.Log)

	return &Engine{
		Integrations: deps.Integrations,
		Parts:        deps.Parts,
		SyncRequests: deps.SyncRequests,
		Writer:       writer,
		Indexer:      indexer,
		Progress:     bus,
		Orchestrator: orchestrator,
		Scheduler:    sched,
		Log:          deps.Log,
	}, nil
}

// Start reconciles stale integrations and starts the Scheduler's cron
// loop. Call once at process boot, after New.
func (e *Engine) Start(ctx context.Context) error {
	if err := e.Scheduler.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	return nil
}

// Stop halts the Scheduler and the Progress Bus's eviction loop.
func (e *Engine) Stop() {
	e.Scheduler.Stop()
	e.Progress.Stop()
}
