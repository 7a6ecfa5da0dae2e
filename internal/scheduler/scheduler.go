// Package scheduler implements the Scheduler component (C6): it holds
// one cron entry per enabled Integration and, on fire, hands the
// integration id to the Sync Orchestrator — either in-process (direct
// mode) or via a durable SyncRequest + asynq task (worker mode).
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/google/uuid"

	"github.com/partsform/syncengine/internal/entity"
	"github.com/partsform/syncengine/internal/job"
	"github.com/partsform/syncengine/internal/repository"
	"github.com/partsform/syncengine/internal/sync"
)

// DispatchMode selects how a cron fire reaches the Orchestrator,
// per spec.md §4.6.
type DispatchMode string

const (
	DispatchDirect DispatchMode = "direct"
	DispatchWorker DispatchMode = "worker"
)

// Runner is the direct-mode dispatch target: sync.Orchestrator itself.
type Runner interface {
	SyncIntegration(ctx context.Context, integrationID entity.IntegrationID) (*sync.Outcome, error)
	IsSyncing(integrationID entity.IntegrationID) bool
}

// entry tracks one integration's registered cron job for reschedule/stop.
type entry struct {
	cronEntryID cron.EntryID
	expr        string
}

// Scheduler owns the process-wide cron.Cron instance and dispatches
// fires to either a Runner (direct mode) or a job.Enqueuer (worker mode).
type Scheduler struct {
	mode         DispatchMode
	cron         *cron.Cron
	integrations repository.IntegrationRepository
	syncRequests repository.SyncRequestRepository
	runner       Runner
	enqueuer     *job.Enqueuer
	log          *zap.SugaredLogger

	mu      sync.Mutex
	entries map[entity.IntegrationID]entry
}

// New builds a Scheduler. runner is required for DispatchDirect;
// syncRequests+enqueuer are required for DispatchWorker.
func New(mode DispatchMode, integrations repository.IntegrationRepository, syncRequests repository.SyncRequestRepository, runner Runner, enqueuer *job.Enqueuer, log *zap.SugaredLogger) *Scheduler {
	return &Scheduler{
		mode: mode,
		// Base location is UTC, not the server's local zone: a Schedule
		// with no explicit Timezone runs against spec.md's "defaults to
		// UTC" entity.Schedule.Timezone comment, and a Schedule that does
		// set one overrides it per-entry via the CRON_TZ= prefix
		// translateCron emits.
		cron:         cron.New(cron.WithLocation(time.UTC)),
		integrations: integrations,
		syncRequests: syncRequests,
		runner:       runner,
		enqueuer:     enqueuer,
		log:          log,
		entries:      make(map[entity.IntegrationID]entry),
	}
}

// Start reconciles stale `status==syncing` Integrations left over from an
// unclean shutdown, registers a cron entry for every enabled Integration,
// and starts the cron goroutine. Invalid schedules are logged and
// skipped, per spec.md §4.6 — they never abort boot.
func (s *Scheduler) Start(ctx context.Context) error {
	if err := s.reconcileStale(ctx); err != nil {
		return fmt.Errorf("reconcile stale integrations: %w", err)
	}

	integrations, err := s.integrations.GetEnabled(ctx)
	if err != nil {
		return fmt.Errorf("load enabled integrations: %w", err)
	}
	for _, integration := range integrations {
		if err := s.Schedule(integration); err != nil {
			s.log.Errorw("skipping invalid schedule at boot", "integration_id", integration.ID, "error", err)
		}
	}

	s.cron.Start()
	return nil
}

// Stop halts the cron goroutine, waiting for any in-flight fire to return.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

// reconcileStale resolves any Integration still `status==syncing` left
// over from an unclean shutdown, per spec.md §7: it always becomes
// `active` again (never `error`) so the next cron tick can retry; if the
// interrupted run had made progress, lastSync is stamped `interrupted`
// with a restart message, otherwise the stale error is simply cleared.
func (s *Scheduler) reconcileStale(ctx context.Context) error {
	stale, err := s.integrations.GetStale(ctx)
	if err != nil {
		return err
	}
	for _, integration := range stale {
		s.log.Warnw("reconciling stale syncing integration at boot", "integration_id", integration.ID)
		integration.Status = entity.IntegrationStatusActive
		if integration.LastSync != nil && integration.LastSync.Processed > 0 {
			integration.LastSync.Status = entity.LastSyncStatusInterrupted
			integration.LastSync.Error = "Sync interrupted by server restart"
		} else if integration.LastSync != nil {
			integration.LastSync.Error = ""
		}
		integration.UpdatedAt = entity.Now()
		if err := s.integrations.Update(ctx, integration); err != nil {
			return fmt.Errorf("reconcile integration %s: %w", integration.ID, err)
		}
	}
	return nil
}

// Schedule registers (or re-registers) integration's cron entry,
// translating its Schedule into a cron expression first so a bad
// schedule never partially replaces a working one.
func (s *Scheduler) Schedule(integration *entity.Integration) error {
	expr, err := translateCron(integration.Schedule)
	if err != nil {
		return fmt.Errorf("translate schedule for %s: %w", integration.ID, err)
	}

	id := integration.ID
	cronEntryID, err := s.cron.AddFunc(expr, func() { s.fire(id) })
	if err != nil {
		return fmt.Errorf("register cron entry for %s: %w", id, err)
	}

	s.mu.Lock()
	if old, ok := s.entries[id]; ok {
		s.cron.Remove(old.cronEntryID)
	}
	s.entries[id] = entry{cronEntryID: cronEntryID, expr: expr}
	s.mu.Unlock()

	s.log.Infow("scheduled integration", "integration_id", id, "cron", expr, "mode", s.mode)
	return nil
}

// Reschedule re-translates and atomically swaps id's cron entry: the new
// entry is added before the old one is removed, so there is no tick
// during which the integration has no registered schedule.
func (s *Scheduler) Reschedule(ctx context.Context, id entity.IntegrationID) error {
	integration, err := s.integrations.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("load integration %s: %w", id, err)
	}
	if !integration.Schedule.Enabled {
		s.Stop_(id)
		return nil
	}
	return s.Schedule(integration)
}

// Stop_ removes id's cron entry without touching the Integration record.
// Named with a trailing underscore only to avoid colliding with the
// Scheduler.Stop method above (both are exported admin operations).
func (s *Scheduler) Stop_(id entity.IntegrationID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.entries[id]; ok {
		s.cron.Remove(e.cronEntryID)
		delete(s.entries, id)
		s.log.Infow("stopped schedule", "integration_id", id)
	}
}

// StopAll removes every registered cron entry, leaving the cron
// goroutine itself running (call Stop to halt it entirely).
func (s *Scheduler) StopAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, e := range s.entries {
		s.cron.Remove(e.cronEntryID)
		delete(s.entries, id)
	}
	s.log.Infow("stopped all schedules")
}

// fire is the cron callback: dispatches per s.mode. Errors are logged,
// never returned, since cron.FuncJob has no error channel.
func (s *Scheduler) fire(id entity.IntegrationID) {
	ctx := context.Background()
	switch s.mode {
	case DispatchWorker:
		if err := s.enqueueRequest(ctx, id, "cron"); err != nil {
			s.log.Errorw("cron dispatch failed", "integration_id", id, "error", err)
		}
	default:
		s.dispatchDirect(ctx, id)
	}
}

func (s *Scheduler) dispatchDirect(ctx context.Context, id entity.IntegrationID) {
	if _, err := s.runner.SyncIntegration(ctx, id); err != nil && err != entity.ErrAlreadyRunning {
		s.log.Errorw("direct dispatch failed", "integration_id", id, "error", err)
	}
}

// Trigger dispatches an immediate out-of-band sync for id, the
// control-plane's `POST /integrations/:id/sync` (spec.md §6). It
// returns entity.ErrAlreadyRunning — never a cron-silent no-op — so
// the caller can answer with 409 instead of 202.
func (s *Scheduler) Trigger(ctx context.Context, id entity.IntegrationID) error {
	if s.runner.IsSyncing(id) {
		return entity.ErrAlreadyRunning
	}

	if s.mode == DispatchWorker {
		return s.enqueueRequest(ctx, id, "manual")
	}

	go s.dispatchDirect(context.Background(), id)
	return nil
}

// enqueueRequest inserts a pending SyncRequest (unless one is already
// pending|processing for this integration) and enqueues the
// corresponding asynq task, per spec.md §4.6.
func (s *Scheduler) enqueueRequest(ctx context.Context, id entity.IntegrationID, source string) error {
	existing, err := s.syncRequests.GetPendingOrProcessing(ctx, id)
	if err != nil {
		return fmt.Errorf("check pending sync request: %w", err)
	}
	if existing != nil {
		if source == "manual" {
			return entity.ErrAlreadyRunning
		}
		s.log.Infow("skipping cron fire, sync request already queued", "integration_id", id, "sync_request_id", existing.ID)
		return nil
	}

	req := &entity.SyncRequest{
		ID:            uuid.New(),
		IntegrationID: id,
		Status:        entity.SyncRequestStatusPending,
		CreatedAt:     entity.Now(),
		Source:        source,
	}
	if err := s.syncRequests.Create(ctx, req); err != nil {
		return fmt.Errorf("create sync request: %w", err)
	}

	if err := s.enqueuer.Enqueue(ctx, req.ID, id); err != nil {
		return fmt.Errorf("enqueue sync:integration task: %w", err)
	}
	return nil
}
