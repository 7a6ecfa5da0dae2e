package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/partsform/syncengine/internal/entity"
	"github.com/partsform/syncengine/internal/repository"
)

// SyncRequestRepository is an in-memory repository.SyncRequestRepository.
type SyncRequestRepository struct {
	mu       sync.Mutex
	requests map[entity.SyncRequestID]*entity.SyncRequest
}

// NewSyncRequestRepository creates an empty SyncRequestRepository.
func NewSyncRequestRepository() *SyncRequestRepository {
	return &SyncRequestRepository{requests: make(map[entity.SyncRequestID]*entity.SyncRequest)}
}

func (r *SyncRequestRepository) Create(ctx context.Context, req *entity.SyncRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if req.ID == uuid.Nil {
		req.ID = uuid.New()
	}
	cp := *req
	r.requests[req.ID] = &cp
	return nil
}

func (r *SyncRequestRepository) GetByID(ctx context.Context, id entity.SyncRequestID) (*entity.SyncRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	req, ok := r.requests[id]
	if !ok {
		return nil, &repository.NotFoundError{ResourceType: "SyncRequest", ResourceID: id.String()}
	}
	cp := *req
	return &cp, nil
}

func (r *SyncRequestRepository) GetPendingOrProcessing(ctx context.Context, integrationID entity.IntegrationID) (*entity.SyncRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var candidates []*entity.SyncRequest
	for _, req := range r.requests {
		if req.IntegrationID == integrationID &&
			(req.Status == entity.SyncRequestStatusPending || req.Status == entity.SyncRequestStatusProcessing) {
			candidates = append(candidates, req)
		}
	}
	if len(candidates) == 0 {
		return nil, nil
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].CreatedAt.After(candidates[j].CreatedAt) })
	cp := *candidates[0]
	return &cp, nil
}

// ClaimNextPending takes the mutex for the whole check-then-set so two
// concurrent callers never claim the same request, mirroring the
// postgres implementation's SKIP LOCKED semantics without a database.
func (r *SyncRequestRepository) ClaimNextPending(ctx context.Context) (*entity.SyncRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var oldest *entity.SyncRequest
	for _, req := range r.requests {
		if req.Status != entity.SyncRequestStatusPending {
			continue
		}
		if oldest == nil || req.CreatedAt.Before(oldest.CreatedAt) {
			oldest = req
		}
	}
	if oldest == nil {
		return nil, nil
	}
	oldest.Status = entity.SyncRequestStatusProcessing
	cp := *oldest
	return &cp, nil
}

func (r *SyncRequestRepository) Update(ctx context.Context, req *entity.SyncRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.requests[req.ID]; !ok {
		return &repository.NotFoundError{ResourceType: "SyncRequest", ResourceID: req.ID.String()}
	}
	cp := *req
	r.requests[req.ID] = &cp
	return nil
}

func (r *SyncRequestRepository) Count(ctx context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int64(len(r.requests)), nil
}
