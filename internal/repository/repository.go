// Package repository defines the storage contracts the sync engine
// depends on: the primary document store (Integration/Part/SyncRequest)
// and is implemented by internal/repository/postgres (production) and
// internal/repository/memory (tests).
package repository

import (
	"context"

	"github.com/partsform/syncengine/internal/entity"
)

// IntegrationRepository persists Integration configuration and its
// embedded lastSync/stats. It never touches Parts.
type IntegrationRepository interface {
	Create(ctx context.Context, integration *entity.Integration) error
	GetByID(ctx context.Context, id entity.IntegrationID) (*entity.Integration, error)
	GetAll(ctx context.Context) ([]*entity.Integration, error)
	GetEnabled(ctx context.Context) ([]*entity.Integration, error)
	GetStale(ctx context.Context) ([]*entity.Integration, error) // status == syncing, for restart recovery
	Update(ctx context.Context, integration *entity.Integration) error
	Delete(ctx context.Context, id entity.IntegrationID) error
	Count(ctx context.Context) (int64, error)
}

// PartRepository is the primary store's Store Writer contract (C3).
type PartRepository interface {
	// UpsertBatch inserts or replaces Parts keyed by (integrationId,
	// partNumber, supplier). ack controls whether the write is
	// acknowledged synchronously or fire-and-forget.
	UpsertBatch(ctx context.Context, parts []*entity.Part, ack bool) (inserted, updated, failed int, err error)
	DeleteByIntegration(ctx context.Context, integrationID entity.IntegrationID) (int64, error)
	GetByIntegration(ctx context.Context, integrationID entity.IntegrationID) ([]*entity.Part, error)
	CountByIntegration(ctx context.Context, integrationID entity.IntegrationID) (int64, error)
	Get(ctx context.Context, key entity.PartKey) (*entity.Part, error)
	// Search serves the search-read contract's primary-store fallback
	// (spec.md §6 "degraded mode", when the search store has no
	// documents yet).
	Search(ctx context.Context, filter PartFilter) (parts []*entity.Part, total int64, err error)
}

// PartFilter is the primary store's degraded-mode search filter,
// mirroring the search-read contract's filter set.
type PartFilter struct {
	Query    string
	Brand    string
	Supplier string
	MinPrice *int64
	MaxPrice *int64
	InStock  *bool
	Sort     string // "field:asc" | "field:desc", field one of brand|supplier|quantity|price
	Page     int
	Limit    int
}

// SyncRequestRepository backs the durable queue used in worker mode
// (spec.md §4.6 "worker" dispatch mode).
type SyncRequestRepository interface {
	Create(ctx context.Context, req *entity.SyncRequest) error
	GetByID(ctx context.Context, id entity.SyncRequestID) (*entity.SyncRequest, error)
	GetPendingOrProcessing(ctx context.Context, integrationID entity.IntegrationID) (*entity.SyncRequest, error)
	// ClaimNextPending atomically transitions one pending request to
	// processing and returns it, or (nil, nil) if the queue is empty.
	ClaimNextPending(ctx context.Context) (*entity.SyncRequest, error)
	Update(ctx context.Context, req *entity.SyncRequest) error
	Count(ctx context.Context) (int64, error)
}

// NotFoundError represents a record not found error.
type NotFoundError struct {
	ResourceType string
	ResourceID   string
}

func (e *NotFoundError) Error() string {
	return "not found: " + e.ResourceType + " " + e.ResourceID
}

// IsNotFound checks if an error is a NotFoundError.
func IsNotFound(err error) bool {
	_, ok := err.(*NotFoundError)
	return ok
}

// ValidationError represents a validation error raised by a repository.
type ValidationError struct {
	Message string
	Field   string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return e.Field + ": " + e.Message
	}
	return e.Message
}
