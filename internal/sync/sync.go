// Package sync implements the Sync Orchestrator component (C5): the
// single place that drives one integration's full pipeline
// (list -> fan-out(download+parse+write) -> optional reindex),
// mutates Integration.status/lastSync, and publishes progress.
package sync

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/partsform/syncengine/internal/entity"
	"github.com/partsform/syncengine/internal/feed"
	"github.com/partsform/syncengine/internal/parser"
	"github.com/partsform/syncengine/internal/progress"
	"github.com/partsform/syncengine/internal/repository"
	"github.com/partsform/syncengine/internal/search"
	"github.com/partsform/syncengine/internal/store"
)

const (
	minConcurrency     = 2
	maxConcurrency     = 30
	defaultConcurrency = 20
	websiteConcurrency = 6
	maxBackoff         = 30 * time.Second
)

// Options tunes one run of syncIntegration, derived from the
// Integration's Options at call time.
type Options struct {
	Fast           bool // WriteMode: fire-and-forget vs ack'd
	DeferIndexing  bool
	RetryOnFail    bool
	MaxRetries     int
	Concurrency    int
	WebsitePriority bool
	ScratchDir     string
}

// FileOutcome records one file/page's contribution to a run.
type FileOutcome struct {
	Name          string
	Size          *int64
	Processed     int
	Skipped       int
	Inserted      int
	Updated       int
	Status        string // success | failed
	Error         string
	IndexingError string // best-effort inline index failure, never fails the file
}

// Outcome is syncIntegration's return value (spec.md §4.5).
type Outcome struct {
	OK        bool
	Duration  time.Duration
	Inserted  int
	Updated   int
	Processed int
	Skipped   int
	Files     []FileOutcome
	Error     string
	// IndexingError records a best-effort search-mirror failure. It
	// never flips OK to false (spec.md §4.4): the search store is a
	// best-effort mirror, not a correctness requirement of the sync.
	IndexingError string
}

// Orchestrator is the Sync Orchestrator component.
type Orchestrator struct {
	integrations repository.IntegrationRepository
	writer       *store.Writer
	indexer      *search.Indexer
	progress     *progress.Bus
	log          *zap.SugaredLogger

	// fastWrites/deferIndexing are process-wide, not per-integration:
	// deferIndexing is sourced from the environment's deferred-indexing
	// feature flag (spec.md §6 "Environment"); the engine always passes
	// fastWrites=true, so bulk sync is fire-and-forget, never toggled
	// per-run.
	fastWrites    bool
	deferIndexing bool

	// lowParallelism mirrors the deployment's global sync-priority flag
	// (spec.md §6 "sync priority: low|high"); when set, every run is
	// capped to websiteConcurrency regardless of the integration's own
	// Options, the same ceiling WebsitePriority applies per-integration
	// (spec.md §5).
	lowParallelism bool

	mu      sync.Mutex
	running map[entity.IntegrationID]bool
}

// New creates an Orchestrator. fastWrites selects fire-and-forget
// writes; deferIndexing mirrors the deployment's deferred-indexing
// feature flag; pass true/true for the spec's documented default. lowParallelism mirrors the deployment's
// global sync-priority flag (spec.md §6).
func New(integrations repository.IntegrationRepository, writer *store.Writer, indexer *search.Indexer, bus *progress.Bus, log *zap.SugaredLogger, fastWrites, deferIndexing, lowParallelism bool) *Orchestrator {
	return &Orchestrator{
		integrations:   integrations,
		writer:         writer,
		indexer:        indexer,
		progress:       bus,
		log:            log,
		fastWrites:     fastWrites,
		deferIndexing:  deferIndexing,
		lowParallelism: lowParallelism,
		running:        make(map[entity.IntegrationID]bool),
	}
}

// tryAcquire marks integrationID as running, returning false if it
// already is (spec.md §4.5 "AlreadyRunning").
func (o *Orchestrator) tryAcquire(integrationID entity.IntegrationID) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.running[integrationID] {
		return false
	}
	o.running[integrationID] = true
	return true
}

func (o *Orchestrator) release(integrationID entity.IntegrationID) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.running, integrationID)
}

func (o *Orchestrator) resolveOptions(integration *entity.Integration) Options {
	concurrency := integration.Options.Concurrency
	if integration.Options.WebsitePriority {
		concurrency = websiteConcurrency
	}
	if concurrency < minConcurrency {
		concurrency = defaultConcurrency
	}
	if concurrency > maxConcurrency {
		concurrency = maxConcurrency
	}
	// A deployment-wide low-priority flag is a hard ceiling: it overrides
	// whatever the integration asked for, the same way WebsitePriority
	// overrides it per-integration.
	if o.lowParallelism && concurrency > websiteConcurrency {
		concurrency = websiteConcurrency
	}

	return Options{
		Fast:            o.fastWrites,
		DeferIndexing:   o.deferIndexing,
		RetryOnFail:     integration.Options.RetryOnFail,
		MaxRetries:      integration.Options.MaxRetries,
		Concurrency:     concurrency,
		WebsitePriority: integration.Options.WebsitePriority,
		ScratchDir:      os.TempDir(),
	}
}

// SyncIntegration drives the full pipeline for one integration. It is
// the only component permitted to mutate Integration.status/lastSync.
func (o *Orchestrator) SyncIntegration(ctx context.Context, integrationID entity.IntegrationID) (*Outcome, error) {
	if !o.tryAcquire(integrationID) {
		return nil, entity.ErrAlreadyRunning
	}
	defer o.release(integrationID)

	integration, err := o.integrations.GetByID(ctx, integrationID)
	if err != nil {
		return nil, fmt.Errorf("load integration: %w", err)
	}

	opts := o.resolveOptions(integration)
	start := time.Now()

	o.progress.Start(integrationID)
	integration.Status = entity.IntegrationStatusSyncing
	if err := o.integrations.Update(ctx, integration); err != nil {
		o.log.Warnw("failed to mark integration syncing", "integration_id", integrationID, "error", err)
	}

	outcome := o.run(ctx, integration, opts)
	outcome.Duration = time.Since(start)

	o.finalize(ctx, integration, outcome)
	return outcome, nil
}

// indexInline mirrors one just-written batch into the Search Indexer
// when the run isn't deferring indexing to a post-import reindex pass
// (spec.md §4.4/§4.5 inline mode). It is best-effort: a failure here is
// reported but never fails the batch's primary write.
func (o *Orchestrator) indexInline(ctx context.Context, integrationID entity.IntegrationID, opts Options, records []*entity.Part) string {
	if opts.DeferIndexing || len(records) == 0 {
		return ""
	}
	if err := o.indexer.IndexBatch(ctx, records); err != nil {
		o.log.Warnw("inline index batch failed, continuing", "integration_id", integrationID, "error", err)
		return err.Error()
	}
	return ""
}

func (o *Orchestrator) setPhase(id entity.IntegrationID, phase entity.SyncPhase) {
	o.progress.Update(id, func(p *entity.SyncProgress) {
		p.Status = entity.SyncStatusSyncing
		p.Phase = phase
	})
}

func (o *Orchestrator) run(ctx context.Context, integration *entity.Integration, opts Options) *Outcome {
	o.setPhase(integration.ID, entity.PhaseConnecting)

	switch integration.Kind {
	case entity.IntegrationKindFTP:
		return o.runFileBased(ctx, integration, opts)
	case entity.IntegrationKindHTTPAPI, entity.IntegrationKindSpreadsheetFeed:
		return o.runAPIBased(ctx, integration, opts)
	default:
		return &Outcome{Error: "unsupported integration kind"}
	}
}

// runAPIBased drives the pipeline for HTTP-API/SpreadsheetFeed
// integrations, which skip the scratch-file + CSV parser path and
// instead stream already field-mapped records straight from the feed
// (spec.md §4.1 fetchAllRecords).
func (o *Orchestrator) runAPIBased(ctx context.Context, integration *entity.Integration, opts Options) *Outcome {
	fetcher, err := feed.NewFetcher(integration)
	if err != nil {
		return &Outcome{Error: err.Error()}
	}

	o.setPhase(integration.ID, entity.PhaseListing)

	if !integration.Options.DeltaSync {
		o.setPhase(integration.ID, entity.PhaseCleaning)
		if _, err := o.writer.DeleteByIntegration(ctx, integration.ID); err != nil {
			return &Outcome{Error: fmt.Sprintf("clean before sync: %v", err)}
		}
		if err := o.indexer.DeleteByIntegration(ctx, integration.ID); err != nil {
			o.log.Warnw("search cleanup failed, continuing", "integration_id", integration.ID, "error", err)
		}
	}

	o.setPhase(integration.ID, entity.PhaseProcessing)

	writeMode := store.WriteModeFast
	if !opts.Fast {
		writeMode = store.WriteModeAck
	}

	outcome := &Outcome{}
	const maxErrors = 100

	fetchErr := fetcher.FetchAllRecords(ctx,
		func(fetched int) {
			o.progress.Update(integration.ID, func(p *entity.SyncProgress) { p.RecordsTotal = fetched })
		},
		func(batch []feed.RawRecord) error {
			parts := make([]*entity.Part, 0, len(batch))
			for _, raw := range batch {
				part, validationErr := parser.FromRawRecord(raw, integration.ID, integration.Name)
				if validationErr != "" {
					outcome.Skipped++
					if len(outcome.Files) < maxErrors {
						outcome.Files = append(outcome.Files, FileOutcome{Name: "record", Status: "skipped", Error: validationErr})
					}
					continue
				}
				parts = append(parts, part)
			}

			batchResult, err := o.writer.UpsertBatch(ctx, parts, writeMode)
			outcome.Inserted += batchResult.Inserted
			outcome.Updated += batchResult.Updated
			outcome.Processed += len(parts)

			o.progress.Update(integration.ID, func(p *entity.SyncProgress) {
				p.RecordsProcessed += len(parts)
				p.RecordsInserted += batchResult.Inserted
				p.RecordsUpdated += batchResult.Updated
			})
			if err != nil {
				return err
			}
			if ie := o.indexInline(ctx, integration.ID, opts, parts); ie != "" {
				outcome.IndexingError = ie
			}
			return nil
		},
	)
	if fetchErr != nil {
		outcome.Error = fetchErr.Error()
		return outcome
	}

	if !opts.DeferIndexing || outcome.Inserted == 0 {
		outcome.OK = true
		return outcome
	}

	o.setPhase(integration.ID, entity.PhaseIndexing)
	if err := o.indexer.PrepareForBulk(ctx); err != nil {
		o.log.Warnw("prepare for bulk failed, continuing", "integration_id", integration.ID, "error", err)
	}
	reindexErr := o.indexer.ReindexIntegration(ctx, integration.ID, nil)
	if err := o.indexer.Finalize(ctx); err != nil {
		o.log.Warnw("finalize index settings failed", "integration_id", integration.ID, "error", err)
	}
	if reindexErr != nil {
		outcome.IndexingError = reindexErr.Error()
	}

	outcome.OK = true
	return outcome
}

func (o *Orchestrator) runFileBased(ctx context.Context, integration *entity.Integration, opts Options) *Outcome {
	client, err := feed.NewClient(integration)
	if err != nil {
		return &Outcome{Error: err.Error()}
	}

	o.setPhase(integration.ID, entity.PhaseListing)
	refs, err := client.List(ctx)
	if err != nil {
		return &Outcome{Error: err.Error()}
	}
	if len(refs) == 0 {
		return &Outcome{OK: true}
	}

	o.progress.Update(integration.ID, func(p *entity.SyncProgress) { p.FilesTotal = len(refs) })

	if !integration.Options.DeltaSync {
		o.setPhase(integration.ID, entity.PhaseCleaning)
		if _, err := o.writer.DeleteByIntegration(ctx, integration.ID); err != nil {
			return &Outcome{Error: fmt.Sprintf("clean before sync: %v", err)}
		}
		if err := o.indexer.DeleteByIntegration(ctx, integration.ID); err != nil {
			o.log.Warnw("search cleanup failed, continuing", "integration_id", integration.ID, "error", err)
		}
	}

	o.setPhase(integration.ID, entity.PhaseProcessing)
	outcome := o.processFiles(ctx, integration, client, refs, opts)

	if !opts.DeferIndexing || outcome.Inserted == 0 {
		outcome.OK = outcome.Error == ""
		return outcome
	}

	o.setPhase(integration.ID, entity.PhaseIndexing)
	if err := o.indexer.PrepareForBulk(ctx); err != nil {
		o.log.Warnw("prepare for bulk failed, continuing", "integration_id", integration.ID, "error", err)
	}
	reindexErr := o.indexer.ReindexIntegration(ctx, integration.ID, func(indexed int) {
		o.progress.Update(integration.ID, func(p *entity.SyncProgress) { p.Message = fmt.Sprintf("indexed %d", indexed) })
	})
	if err := o.indexer.Finalize(ctx); err != nil {
		o.log.Warnw("finalize index settings failed", "integration_id", integration.ID, "error", err)
	}
	if reindexErr != nil {
		// Best-effort mirror: indexing errors don't fail the sync
		// (spec.md §4.4), but are recorded on the outcome.
		outcome.IndexingError = reindexErr.Error()
	}

	outcome.OK = outcome.Error == ""
	return outcome
}

// processFiles fans files out across a bounded worker pool, each file
// getting its own feed connection, scratch file, and parse loop.
func (o *Orchestrator) processFiles(ctx context.Context, integration *entity.Integration, client feed.Client, refs []feed.FileRef, opts Options) *Outcome {
	sem := make(chan struct{}, opts.Concurrency)
	var wg sync.WaitGroup
	var mu sync.Mutex
	outcome := &Outcome{}

	writeMode := store.WriteModeFast
	if !opts.Fast {
		writeMode = store.WriteModeAck
	}

	p := parser.New()

	for _, ref := range refs {
		ref := ref
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()

			fileOutcome := o.processOneFile(ctx, integration, client, ref, p, writeMode, opts)

			mu.Lock()
			outcome.Files = append(outcome.Files, fileOutcome)
			outcome.Processed += fileOutcome.Processed
			outcome.Skipped += fileOutcome.Skipped
			outcome.Inserted += fileOutcome.Inserted
			outcome.Updated += fileOutcome.Updated
			if fileOutcome.IndexingError != "" {
				outcome.IndexingError = fileOutcome.IndexingError
			}
			mu.Unlock()

			o.progress.Update(integration.ID, func(prog *entity.SyncProgress) {
				prog.FilesProcessed++
				prog.RecordsProcessed += fileOutcome.Processed
				if fileOutcome.Status == "failed" {
					prog.Errors = append(prog.Errors, fileOutcome.Error)
				}
				prog.CurrentFile = ref.Name
			})

			if opts.WebsitePriority {
				time.Sleep(100 * time.Millisecond) // yield between batches for lower-priority feeds
			}
		}()
	}
	wg.Wait()

	return outcome
}

func (o *Orchestrator) processOneFile(ctx context.Context, integration *entity.Integration, client feed.Client, ref feed.FileRef, p *parser.Parser, mode store.WriteMode, opts Options) FileOutcome {
	scratchPath, err := client.DownloadToScratch(ctx, ref, opts.ScratchDir)
	if err != nil {
		return o.retryableFileFailure(ctx, integration, client, ref, p, mode, opts, err)
	}
	defer os.Remove(scratchPath) //nolint:errcheck

	columnMapping := integration.FTP.ColumnMapping
	var inserted, updated int
	var indexingError string
	result, err := p.ParseFile(scratchPath, columnMapping, integration.ID, integration.Name, func(records []*entity.Part) error {
		batchResult, err := o.writer.UpsertBatch(ctx, records, mode)
		inserted += batchResult.Inserted
		updated += batchResult.Updated
		if err != nil {
			return err
		}
		if ie := o.indexInline(ctx, integration.ID, opts, records); ie != "" {
			indexingError = ie
		}
		return nil
	})
	if err != nil {
		return o.retryableFileFailure(ctx, integration, client, ref, p, mode, opts, err)
	}

	o.progress.Update(integration.ID, func(prog *entity.SyncProgress) {
		prog.RecordsInserted += inserted
		prog.RecordsUpdated += updated
	})

	size := ref.Size
	return FileOutcome{
		Name:          ref.Name,
		Size:          &size,
		Processed:     result.RecordsValid,
		Skipped:       result.RecordsSkipped,
		Inserted:      inserted,
		Updated:       updated,
		Status:        "success",
		IndexingError: indexingError,
	}
}

// retryableFileFailure retries a single file's download+parse+write up
// to opts.MaxRetries with exponential backoff capped at 30s, only when
// options.retryOnFail is set; one file's failure never aborts siblings
// (spec.md §4.5).
func (o *Orchestrator) retryableFileFailure(ctx context.Context, integration *entity.Integration, client feed.Client, ref feed.FileRef, p *parser.Parser, mode store.WriteMode, opts Options, cause error) FileOutcome {
	if !opts.RetryOnFail || opts.MaxRetries <= 0 {
		return FileOutcome{Name: ref.Name, Status: "failed", Error: cause.Error()}
	}

	policy := backoff.NewExponentialBackOff()
	policy.MaxInterval = maxBackoff
	bounded := backoff.WithMaxRetries(policy, uint64(opts.MaxRetries))

	var last FileOutcome
	attempt := func() error {
		scratchPath, err := client.DownloadToScratch(ctx, ref, opts.ScratchDir)
		if err != nil {
			last = FileOutcome{Name: ref.Name, Status: "failed", Error: err.Error()}
			return err
		}
		defer os.Remove(scratchPath) //nolint:errcheck

		var inserted, updated int
		var indexingError string
		result, err := p.ParseFile(scratchPath, integration.FTP.ColumnMapping, integration.ID, integration.Name, func(records []*entity.Part) error {
			batchResult, err := o.writer.UpsertBatch(ctx, records, mode)
			inserted += batchResult.Inserted
			updated += batchResult.Updated
			if err != nil {
				return err
			}
			if ie := o.indexInline(ctx, integration.ID, opts, records); ie != "" {
				indexingError = ie
			}
			return nil
		})
		if err != nil {
			last = FileOutcome{Name: ref.Name, Status: "failed", Error: err.Error()}
			return err
		}

		size := ref.Size
		last = FileOutcome{Name: ref.Name, Size: &size, Processed: result.RecordsValid, Skipped: result.RecordsSkipped, Inserted: inserted, Updated: updated, Status: "success", IndexingError: indexingError}
		return nil
	}

	if err := backoff.Retry(attempt, backoff.WithContext(bounded, ctx)); err != nil {
		return last
	}
	return last
}

// finalize records the run's outcome onto Integration.status/lastSync
// and the Progress Bus's terminal entry (spec.md §4.5).
func (o *Orchestrator) finalize(ctx context.Context, integration *entity.Integration, outcome *Outcome) {
	now := entity.Now()

	files := make([]entity.LastSyncFileResult, 0, len(outcome.Files))
	for _, f := range outcome.Files {
		recordCount := f.Processed
		files = append(files, entity.LastSyncFileResult{
			Name:        f.Name,
			Size:        f.Size,
			RecordCount: &recordCount,
			Status:      f.Status,
			Error:       f.Error,
		})
	}

	lastSync := &entity.LastSync{
		Date:          now,
		DurationMs:    outcome.Duration.Milliseconds(),
		Processed:     outcome.Processed,
		Inserted:      outcome.Inserted,
		Updated:       outcome.Updated,
		Skipped:       outcome.Skipped,
		IndexingError: outcome.IndexingError,
		Files:         files,
	}

	if outcome.IndexingError != "" {
		o.log.Warnw("search index mirror failed, primary store unaffected", "integration_id", integration.ID, "error", outcome.IndexingError)
	}

	applyRunErrorPolicy(integration, outcome)

	if outcome.OK {
		lastSync.Status = entity.LastSyncStatusSuccess
		integration.Status = entity.IntegrationStatusActive
		integration.Stats.SuccessfulSyncs++
	} else {
		lastSync.Status = entity.LastSyncStatusFailed
		lastSync.Error = outcome.Error
		integration.Status = entity.IntegrationStatusError
		integration.Stats.FailedSyncs++
	}
	integration.Stats.TotalSyncs++
	integration.Stats.TotalRecords += int64(outcome.Processed)
	integration.Stats.LastSyncRecords = int64(outcome.Processed)
	integration.LastSync = lastSync
	integration.UpdatedAt = now

	if err := o.integrations.Update(ctx, integration); err != nil {
		o.log.Errorw("failed to persist sync outcome", "integration_id", integration.ID, "error", err)
	}

	o.progress.Update(integration.ID, func(p *entity.SyncProgress) {
		if outcome.OK {
			p.Status = entity.SyncStatusCompleted
			p.Phase = entity.PhaseDone
		} else {
			p.Status = entity.SyncStatusError
			p.Phase = entity.PhaseFailed
			p.Message = outcome.Error
		}
		p.RecordsTotal = outcome.Processed + outcome.Skipped
	})
}

// applyRunErrorPolicy decides whether any per-file failures flip an
// otherwise-successful run to overall failure, per the Integration's
// RunErrorPolicy (spec.md §9 Open Questions; see DESIGN.md).
func applyRunErrorPolicy(integration *entity.Integration, outcome *Outcome) {
	if outcome.Error != "" {
		outcome.OK = false
		return
	}

	anyFileFailed := false
	for _, f := range outcome.Files {
		if f.Status == "failed" {
			anyFileFailed = true
			break
		}
	}
	if !anyFileFailed {
		outcome.OK = true
		return
	}

	switch integration.Options.RunErrorPolicy {
	case entity.RunErrorPolicyErrorOnAnyFailure:
		outcome.OK = false
		outcome.Error = "one or more files failed to sync"
	default: // RunErrorPolicySuccessWithErrors, and the zero value
		outcome.OK = true
	}
}

// IsSyncing reports whether integrationID currently has an in-flight run.
func (o *Orchestrator) IsSyncing(integrationID entity.IntegrationID) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.running[integrationID]
}
