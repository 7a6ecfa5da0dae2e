package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/partsform/syncengine/internal/entity"
	"github.com/partsform/syncengine/internal/repository"
)

// PartRepository is an in-memory repository.PartRepository.
type PartRepository struct {
	mu    sync.RWMutex
	parts map[entity.PartKey]*entity.Part
}

// NewPartRepository creates an empty PartRepository.
func NewPartRepository() *PartRepository {
	return &PartRepository{parts: make(map[entity.PartKey]*entity.Part)}
}

func (r *PartRepository) UpsertBatch(ctx context.Context, parts []*entity.Part, ack bool) (inserted, updated, failed int, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range parts {
		key := p.Key()
		cp := *p
		if _, exists := r.parts[key]; exists {
			updated++
		} else {
			inserted++
		}
		r.parts[key] = &cp
	}
	return inserted, updated, failed, nil
}

func (r *PartRepository) DeleteByIntegration(ctx context.Context, integrationID entity.IntegrationID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for key, p := range r.parts {
		if p.IntegrationID == integrationID {
			delete(r.parts, key)
			n++
		}
	}
	return n, nil
}

func (r *PartRepository) GetByIntegration(ctx context.Context, integrationID entity.IntegrationID) ([]*entity.Part, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*entity.Part
	for _, p := range r.parts {
		if p.IntegrationID == integrationID {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *PartRepository) CountByIntegration(ctx context.Context, integrationID entity.IntegrationID) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var n int64
	for _, p := range r.parts {
		if p.IntegrationID == integrationID {
			n++
		}
	}
	return n, nil
}

func (r *PartRepository) Get(ctx context.Context, key entity.PartKey) (*entity.Part, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.parts[key]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

// Search linearly scans and filters, used only as the test/dev-mode
// stand-in for the degraded-mode fallback Postgres serves in production.
func (r *PartRepository) Search(ctx context.Context, filter repository.PartFilter) ([]*entity.Part, int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var matched []*entity.Part
	for _, p := range r.parts {
		if !matches(p, filter) {
			continue
		}
		cp := *p
		matched = append(matched, &cp)
	}

	sortParts(matched, filter.Sort)

	total := int64(len(matched))
	page := filter.Page
	if page < 1 {
		page = 1
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	start := (page - 1) * limit
	if start >= len(matched) {
		return nil, total, nil
	}
	end := start + limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[start:end], total, nil
}

func matches(p *entity.Part, filter repository.PartFilter) bool {
	if filter.Query != "" {
		q := strings.ToLower(filter.Query)
		if !strings.Contains(strings.ToLower(p.PartNumber), q) &&
			!strings.Contains(strings.ToLower(p.Description), q) &&
			!strings.Contains(strings.ToLower(p.Brand), q) &&
			!strings.Contains(strings.ToLower(p.Category), q) {
			return false
		}
	}
	if filter.Brand != "" && p.Brand != filter.Brand {
		return false
	}
	if filter.Supplier != "" && p.Supplier != filter.Supplier {
		return false
	}
	if filter.MinPrice != nil && (p.Price == nil || p.Price.MinorUnits < *filter.MinPrice) {
		return false
	}
	if filter.MaxPrice != nil && (p.Price == nil || p.Price.MinorUnits > *filter.MaxPrice) {
		return false
	}
	if filter.InStock != nil {
		inStock := p.Quantity > 0
		if inStock != *filter.InStock {
			return false
		}
	}
	return true
}

func sortParts(parts []*entity.Part, sortSpec string) {
	field, order, ok := strings.Cut(sortSpec, ":")
	if !ok {
		field = sortSpec
		order = "asc"
	}
	less := func(i, j int) bool { return parts[i].PartNumber < parts[j].PartNumber }
	switch field {
	case "brand":
		less = func(i, j int) bool { return parts[i].Brand < parts[j].Brand }
	case "supplier":
		less = func(i, j int) bool { return parts[i].Supplier < parts[j].Supplier }
	case "quantity":
		less = func(i, j int) bool { return parts[i].Quantity < parts[j].Quantity }
	case "price":
		less = func(i, j int) bool { return priceOf(parts[i]) < priceOf(parts[j]) }
	}
	sort.SliceStable(parts, func(i, j int) bool {
		if order == "desc" {
			return less(j, i)
		}
		return less(i, j)
	})
}

func priceOf(p *entity.Part) int64 {
	if p.Price == nil {
		return 0
	}
	return p.Price.MinorUnits
}
