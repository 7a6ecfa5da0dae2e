// Package store implements the Store Writer component (C3): batch
// upsert/delete of canonical Part records against the primary store,
// with a fast (fire-and-forget) and ack'd write mode and a single
// retry on a failed batch before surfacing the failure to the
// Orchestrator.
package store

import (
	"context"
	"fmt"

	"github.com/cenkalti/backoff/v4"

	"github.com/partsform/syncengine/internal/entity"
	"github.com/partsform/syncengine/internal/repository"
)

// WriteMode controls whether UpsertBatch waits for the underlying
// store to acknowledge the write.
type WriteMode int

const (
	// WriteModeAck waits for the write to commit before returning.
	WriteModeAck WriteMode = iota
	// WriteModeFast is fire-and-forget; the Orchestrator compensates
	// with a deferred reindex (spec.md §4.3).
	WriteModeFast
)

// Writer is the Store Writer component.
type Writer struct {
	parts repository.PartRepository
}

// New creates a Writer over a PartRepository.
func New(parts repository.PartRepository) *Writer {
	return &Writer{parts: parts}
}

// BatchResult is the outcome of one UpsertBatch call.
type BatchResult struct {
	Inserted int
	Updated  int
	Failed   int
}

// UpsertBatch writes records keyed by (integrationId, partNumber,
// supplier), retrying the whole batch once on a transient repository
// error before surfacing it to the caller.
func (w *Writer) UpsertBatch(ctx context.Context, records []*entity.Part, mode WriteMode) (BatchResult, error) {
	if len(records) == 0 {
		return BatchResult{}, nil
	}

	var result BatchResult
	op := func() error {
		inserted, updated, failed, err := w.parts.UpsertBatch(ctx, records, mode == WriteModeAck)
		result = BatchResult{Inserted: inserted, Updated: updated, Failed: failed}
		return err
	}

	policy := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 1)
	if err := backoff.Retry(op, backoff.WithContext(policy, ctx)); err != nil {
		return result, fmt.Errorf("upsert batch: %w", err)
	}
	return result, nil
}

// DeleteByIntegration removes every Part owned by integrationID, used
// before a clean full sync and on Integration deletion.
func (w *Writer) DeleteByIntegration(ctx context.Context, integrationID entity.IntegrationID) (int64, error) {
	n, err := w.parts.DeleteByIntegration(ctx, integrationID)
	if err != nil {
		return 0, fmt.Errorf("delete by integration: %w", err)
	}
	return n, nil
}

// GetByIntegration returns every Part for integrationID, used by the
// Search Indexer's deferred/full reindex.
func (w *Writer) GetByIntegration(ctx context.Context, integrationID entity.IntegrationID) ([]*entity.Part, error) {
	parts, err := w.parts.GetByIntegration(ctx, integrationID)
	if err != nil {
		return nil, fmt.Errorf("get by integration: %w", err)
	}
	return parts, nil
}

// Search serves the search-read contract's primary-store fallback
// (spec.md §6), used when the Search Indexer reports it holds no
// documents yet.
func (w *Writer) Search(ctx context.Context, filter repository.PartFilter) ([]*entity.Part, int64, error) {
	parts, total, err := w.parts.Search(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("search: %w", err)
	}
	return parts, total, nil
}

// CountByIntegration reports how many Parts a given Integration owns.
func (w *Writer) CountByIntegration(ctx context.Context, integrationID entity.IntegrationID) (int64, error) {
	n, err := w.parts.CountByIntegration(ctx, integrationID)
	if err != nil {
		return 0, fmt.Errorf("count by integration: %w", err)
	}
	return n, nil
}
