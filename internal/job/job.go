// Package job implements worker-mode dispatch: a single asynq task type
// carrying a SyncRequest to the worker process, generalized from the
// teacher's per-feature job types (ods:import, amion:scrape,
// coverage:calculate) down to the one operation this engine has.
package job

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/partsform/syncengine/internal/entity"
)

// TypeSyncIntegration is the only asynq task type this engine enqueues.
const TypeSyncIntegration = "sync:integration"

// SyncIntegrationPayload identifies the already-persisted SyncRequest a
// worker should claim and run. The Scheduler creates the SyncRequest row
// first (so it survives even if Redis loses the task) and hands the
// worker only its id.
type SyncIntegrationPayload struct {
	SyncRequestID entity.SyncRequestID `json:"sync_request_id"`
	IntegrationID entity.IntegrationID `json:"integration_id"`
}

// Enqueuer submits sync:integration tasks onto the asynq queue.
type Enqueuer struct {
	client *asynq.Client
}

// NewEnqueuer dials redisAddr and verifies connectivity before returning.
func NewEnqueuer(redisAddr string) (*Enqueuer, error) {
	client := asynq.NewClient(asynq.RedisClientOpt{Addr: redisAddr})
	if err := client.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return &Enqueuer{client: client}, nil
}

// Enqueue submits one sync:integration task for the given request.
func (e *Enqueuer) Enqueue(ctx context.Context, syncRequestID entity.SyncRequestID, integrationID entity.IntegrationID) error {
	payload, err := json.Marshal(SyncIntegrationPayload{SyncRequestID: syncRequestID, IntegrationID: integrationID})
	if err != nil {
		return fmt.Errorf("marshal sync:integration payload: %w", err)
	}

	task := asynq.NewTask(TypeSyncIntegration, payload)
	if _, err := e.client.EnqueueContext(ctx, task, asynq.MaxRetry(0), asynq.Timeout(30*time.Minute)); err != nil {
		return fmt.Errorf("enqueue sync:integration: %w", err)
	}
	return nil
}

// Close releases the underlying asynq client.
func (e *Enqueuer) Close() error {
	return e.client.Close()
}
