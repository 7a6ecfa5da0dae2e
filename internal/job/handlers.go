package job

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/partsform/syncengine/internal/entity"
	"github.com/partsform/syncengine/internal/repository"
	"github.com/partsform/syncengine/internal/sync"
)

// Runner is the subset of sync.Orchestrator a worker needs.
type Runner interface {
	SyncIntegration(ctx context.Context, integrationID entity.IntegrationID) (*sync.Outcome, error)
}

// Handlers wires asynq task types to the Orchestrator, claiming the
// durable SyncRequest row before and after the run so a crashed worker
// leaves a record of what it was doing (spec.md §4.6 worker mode).
type Handlers struct {
	requests repository.SyncRequestRepository
	runner   Runner
	log      *zap.SugaredLogger
}

// NewHandlers builds a Handlers instance.
func NewHandlers(requests repository.SyncRequestRepository, runner Runner, log *zap.SugaredLogger) *Handlers {
	return &Handlers{requests: requests, runner: runner, log: log}
}

// Register attaches every handler this package owns to mux.
func (h *Handlers) Register(mux *asynq.ServeMux) {
	mux.HandleFunc(TypeSyncIntegration, h.handleSyncIntegration)
}

// handleSyncIntegration claims the request (a request already done or
// failed is assumed to be a redelivery and is skipped; a pending or
// processing one is run), runs the sync, and records the terminal status
// back onto the SyncRequest.
func (h *Handlers) handleSyncIntegration(ctx context.Context, t *asynq.Task) error {
	var payload SyncIntegrationPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal sync:integration payload: %w: %w", err, asynq.SkipRetry)
	}

	req, err := h.requests.GetByID(ctx, payload.SyncRequestID)
	if err != nil {
		return fmt.Errorf("load sync request %s: %w", payload.SyncRequestID, err)
	}
	if req.Status != entity.SyncRequestStatusPending && req.Status != entity.SyncRequestStatusProcessing {
		h.log.Infow("skipping redelivered sync request", "sync_request_id", req.ID, "status", req.Status)
		return nil
	}

	h.log.Infow("worker claimed sync request", "sync_request_id", req.ID, "integration_id", payload.IntegrationID)

	req.Status = entity.SyncRequestStatusProcessing
	if err := h.requests.Update(ctx, req); err != nil {
		h.log.Errorw("failed to mark sync request processing", "sync_request_id", req.ID, "error", err)
	}

	_, runErr := h.runner.SyncIntegration(ctx, payload.IntegrationID)

	if runErr != nil && runErr != entity.ErrAlreadyRunning {
		req.Status = entity.SyncRequestStatusFailed
	} else {
		req.Status = entity.SyncRequestStatusDone
	}
	if err := h.requests.Update(ctx, req); err != nil {
		h.log.Errorw("failed to record sync request outcome", "sync_request_id", req.ID, "error", err)
	}

	// SyncIntegration itself never fails the task: Outcome.OK=false is a
	// recorded, not a retryable, result. Only a payload or SyncRequest load
	// error above propagates to asynq; failed status updates are logged.
	return nil
}
