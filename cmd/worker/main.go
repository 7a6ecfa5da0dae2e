// Command worker runs the asynq worker process for "worker" dispatch
// mode: it claims sync:integration tasks enqueued by the Scheduler and
// drives the Sync Orchestrator, generalized from the teacher's
// per-feature job handlers down to the one task type this engine has.
package main

import (
	"os"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/partsform/syncengine/internal/config"
	"github.com/partsform/syncengine/internal/engine"
	"github.com/partsform/syncengine/internal/job"
	"github.com/partsform/syncengine/internal/logging"
	"github.com/partsform/syncengine/internal/repository/postgres"
	"github.com/partsform/syncengine/internal/scheduler"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	log, err := logging.New(os.Getenv("ENV") != "production")
	if err != nil {
		panic(err)
	}
	defer log.Sync() //nolint:errcheck

	db, err := postgres.New(cfg.PostgresDSN)
	if err != nil {
		log.Fatalw("connect to postgres", "error", err)
	}
	defer db.Close()

	esClient, err := elasticsearch.NewClient(elasticsearch.Config{Addresses: []string{cfg.ElasticsearchURL}})
	if err != nil {
		log.Fatalw("build elasticsearch client", "error", err)
	}

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})

	syncRequests := postgres.NewSyncRequestRepository(db.DB)

	deps := engine.Deps{
		Integrations: postgres.NewIntegrationRepository(db.DB),
		Parts:        postgres.NewPartRepository(db.DB),
		SyncRequests: syncRequests,
		ESClient:     esClient,
		RedisClient:  redisClient,
		Log:          log,
		Cfg:          cfg,
	}

	enqueuer, err := job.NewEnqueuer(cfg.RedisAddr)
	if err != nil {
		log.Fatalw("build job enqueuer", "error", err)
	}
	defer enqueuer.Close()

	eng, err := engine.New(deps, scheduler.DispatchWorker, enqueuer)
	if err != nil {
		log.Fatalw("build engine", "error", err)
	}

	handlers := job.NewHandlers(syncRequests, eng.Orchestrator, log)
	mux := asynq.NewServeMux()
	handlers.Register(mux)

	srv := asynq.NewServer(
		asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		asynq.Config{Concurrency: 10},
	)

	log.Infow("starting sync worker", "redis_addr", cfg.RedisAddr)
	if err := srv.Run(mux); err != nil {
		log.Fatalw("worker stopped unexpectedly", "error", err)
	}
}
