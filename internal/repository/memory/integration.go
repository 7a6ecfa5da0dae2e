// Package memory provides in-memory repository implementations used by
// tests: each repository guards its own map with a mutex, mirroring the
// production postgres package's interfaces without a database.
package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/partsform/syncengine/internal/entity"
	"github.com/partsform/syncengine/internal/repository"
)

// IntegrationRepository is an in-memory repository.IntegrationRepository.
type IntegrationRepository struct {
	mu           sync.RWMutex
	integrations map[entity.IntegrationID]*entity.Integration
}

// NewIntegrationRepository creates an empty IntegrationRepository.
func NewIntegrationRepository() *IntegrationRepository {
	return &IntegrationRepository{
		integrations: make(map[entity.IntegrationID]*entity.Integration),
	}
}

func (r *IntegrationRepository) Create(ctx context.Context, integration *entity.Integration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if integration.ID == uuid.Nil {
		integration.ID = uuid.New()
	}
	cp := *integration
	r.integrations[integration.ID] = &cp
	return nil
}

func (r *IntegrationRepository) GetByID(ctx context.Context, id entity.IntegrationID) (*entity.Integration, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	integration, ok := r.integrations[id]
	if !ok {
		return nil, &repository.NotFoundError{ResourceType: "Integration", ResourceID: id.String()}
	}
	cp := *integration
	return &cp, nil
}

func (r *IntegrationRepository) GetAll(ctx context.Context) ([]*entity.Integration, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*entity.Integration, 0, len(r.integrations))
	for _, integration := range r.integrations {
		cp := *integration
		out = append(out, &cp)
	}
	return out, nil
}

func (r *IntegrationRepository) GetEnabled(ctx context.Context) ([]*entity.Integration, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*entity.Integration
	for _, integration := range r.integrations {
		if integration.Schedule.Enabled {
			cp := *integration
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *IntegrationRepository) GetStale(ctx context.Context) ([]*entity.Integration, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*entity.Integration
	for _, integration := range r.integrations {
		if integration.Status == entity.IntegrationStatusSyncing {
			cp := *integration
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *IntegrationRepository) Update(ctx context.Context, integration *entity.Integration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.integrations[integration.ID]; !ok {
		return &repository.NotFoundError{ResourceType: "Integration", ResourceID: integration.ID.String()}
	}
	cp := *integration
	r.integrations[integration.ID] = &cp
	return nil
}

func (r *IntegrationRepository) Delete(ctx context.Context, id entity.IntegrationID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.integrations[id]; !ok {
		return &repository.NotFoundError{ResourceType: "Integration", ResourceID: id.String()}
	}
	delete(r.integrations, id)
	return nil
}

func (r *IntegrationRepository) Count(ctx context.Context) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return int64(len(r.integrations)), nil
}
