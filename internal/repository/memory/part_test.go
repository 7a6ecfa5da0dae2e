package memory

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/partsform/syncengine/internal/entity"
	"github.com/partsform/syncengine/internal/repository"
)

func newPart(integrationID entity.IntegrationID, partNumber, brand, supplier string, minorUnits int64, qty int) *entity.Part {
	return &entity.Part{
		IntegrationID: integrationID,
		PartNumber:    partNumber,
		Description:   "widget " + partNumber,
		Brand:         brand,
		Supplier:      supplier,
		Price:         &entity.Price{MinorUnits: minorUnits, Currency: "USD"},
		Quantity:      qty,
	}
}

func TestPartRepositoryUpsertBatchInsertsThenUpdates(t *testing.T) {
	repo := NewPartRepository()
	integrationID := uuid.New()
	ctx := context.Background()

	part := newPart(integrationID, "ABC-1", "Acme", "SupplierA", 1000, 5)
	inserted, updated, failed, err := repo.UpsertBatch(ctx, []*entity.Part{part}, true)
	require.NoError(t, err)
	assert.Equal(t, 1, inserted)
	assert.Equal(t, 0, updated)
	assert.Equal(t, 0, failed)

	part.Quantity = 9
	inserted, updated, failed, err = repo.UpsertBatch(ctx, []*entity.Part{part}, true)
	require.NoError(t, err)
	assert.Equal(t, 0, inserted)
	assert.Equal(t, 1, updated)
	assert.Equal(t, 0, failed)

	got, err := repo.Get(ctx, part.Key())
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 9, got.Quantity)
}

func TestPartRepositoryDeleteByIntegration(t *testing.T) {
	repo := NewPartRepository()
	ctx := context.Background()
	integrationID := uuid.New()
	other := uuid.New()

	_, _, _, err := repo.UpsertBatch(ctx, []*entity.Part{
		newPart(integrationID, "A-1", "Acme", "S1", 100, 1),
		newPart(integrationID, "A-2", "Acme", "S1", 200, 1),
		newPart(other, "B-1", "Other", "S2", 300, 1),
	}, true)
	require.NoError(t, err)

	n, err := repo.DeleteByIntegration(ctx, integrationID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	remaining, err := repo.GetByIntegration(ctx, integrationID)
	require.NoError(t, err)
	assert.Empty(t, remaining)

	others, err := repo.GetByIntegration(ctx, other)
	require.NoError(t, err)
	assert.Len(t, others, 1)
}

func TestPartRepositoryCountByIntegration(t *testing.T) {
	repo := NewPartRepository()
	ctx := context.Background()
	integrationID := uuid.New()

	_, _, _, err := repo.UpsertBatch(ctx, []*entity.Part{
		newPart(integrationID, "A-1", "Acme", "S1", 100, 1),
		newPart(integrationID, "A-2", "Acme", "S1", 200, 1),
	}, true)
	require.NoError(t, err)

	count, err := repo.CountByIntegration(ctx, integrationID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

func TestPartRepositoryGetMissingReturnsNil(t *testing.T) {
	repo := NewPartRepository()
	got, err := repo.Get(context.Background(), entity.PartKey{PartNumber: "nope"})
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestPartRepositorySearchFiltersAndPaginates(t *testing.T) {
	repo := NewPartRepository()
	ctx := context.Background()
	integrationID := uuid.New()

	_, _, _, err := repo.UpsertBatch(ctx, []*entity.Part{
		newPart(integrationID, "BRK-100", "Acme", "SupplierA", 500, 10),
		newPart(integrationID, "BRK-200", "Acme", "SupplierB", 1500, 0),
		newPart(integrationID, "FLT-300", "Zenith", "SupplierA", 2500, 3),
	}, true)
	require.NoError(t, err)

	results, total, err := repo.Search(ctx, repository.PartFilter{Brand: "Acme", Page: 1, Limit: 20})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, results, 2)

	inStock := true
	results, total, err = repo.Search(ctx, repository.PartFilter{Brand: "Acme", InStock: &inStock, Page: 1, Limit: 20})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, results, 1)
	assert.Equal(t, "BRK-100", results[0].PartNumber)

	min := int64(1000)
	results, total, err = repo.Search(ctx, repository.PartFilter{MinPrice: &min, Page: 1, Limit: 20, Sort: "price:desc"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	require.Len(t, results, 2)
	assert.Equal(t, "FLT-300", results[0].PartNumber)

	results, total, err = repo.Search(ctx, repository.PartFilter{Query: "zenith", Page: 1, Limit: 20})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, results, 1)
	assert.Equal(t, "FLT-300", results[0].PartNumber)

	results, total, err = repo.Search(ctx, repository.PartFilter{Page: 2, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Len(t, results, 1)
}

func TestPartRepositorySearchPageBeyondResultsIsEmpty(t *testing.T) {
	repo := NewPartRepository()
	ctx := context.Background()
	integrationID := uuid.New()
	_, _, _, err := repo.UpsertBatch(ctx, []*entity.Part{
		newPart(integrationID, "A-1", "Acme", "S1", 100, 1),
	}, true)
	require.NoError(t, err)

	results, total, err := repo.Search(ctx, repository.PartFilter{Page: 5, Limit: 20})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Empty(t, results)
}
