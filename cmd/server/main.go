// Command server runs the control-plane HTTP process: it wires the
// Engine in direct-dispatch mode and serves the contract spec.md §6
// describes, started and stopped the way the teacher's cmd/server
// graceful-shutdown stub sketched but never finished.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/redis/go-redis/v9"

	"github.com/partsform/syncengine/internal/api"
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

	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	}

	deps := engine.Deps{
		Integrations: postgres.NewIntegrationRepository(db.DB),
		Parts:        postgres.NewPartRepository(db.DB),
		SyncRequests: postgres.NewSyncRequestRepository(db.DB),
		ESClient:     esClient,
		RedisClient:  redisClient,
		Log:          log,
		Cfg:          cfg,
	}

	dispatchMode := scheduler.DispatchDirect
	var enqueuer *job.Enqueuer
	if cfg.DispatchMode == config.DispatchModeWorker {
		dispatchMode = scheduler.DispatchWorker
		enqueuer, err = job.NewEnqueuer(cfg.RedisAddr)
		if err != nil {
			log.Fatalw("build job enqueuer", "error", err)
		}
		defer enqueuer.Close()
	}

	eng, err := engine.New(deps, dispatchMode, enqueuer)
	if err != nil {
		log.Fatalw("build engine", "error", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := eng.Start(ctx); err != nil {
		log.Fatalw("start engine", "error", err)
	}
	defer eng.Stop()

	router := api.NewRouter(eng, cfg.AdminTokenSecret)

	go func() {
		log.Infow("starting control-plane server", "addr", cfg.ServerAddr)
		if err := router.Start(cfg.ServerAddr); err != nil && err != http.ErrServerClosed {
			log.Fatalw("server stopped unexpectedly", "error", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	log.Info("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := router.Shutdown(shutdownCtx); err != nil {
		log.Errorw("graceful shutdown failed", "error", err)
	}
}
