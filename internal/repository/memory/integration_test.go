package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/partsform/syncengine/internal/entity"
	"github.com/partsform/syncengine/internal/repository"
)

func newIntegration(enabled bool, status entity.IntegrationStatus) *entity.Integration {
	return &entity.Integration{
		Name:     "Acme Parts Feed",
		Kind:     entity.IntegrationKindFTP,
		Schedule: entity.Schedule{Enabled: enabled, Frequency: entity.FrequencyDaily},
		Status:   status,
	}
}

func TestIntegrationRepositoryCreateAssignsID(t *testing.T) {
	repo := NewIntegrationRepository()
	integration := newIntegration(true, entity.IntegrationStatusActive)

	require.NoError(t, repo.Create(context.Background(), integration))
	assert.NotEqual(t, entity.IntegrationID{}, integration.ID)

	fetched, err := repo.GetByID(context.Background(), integration.ID)
	require.NoError(t, err)
	assert.Equal(t, integration.Name, fetched.Name)
}

func TestIntegrationRepositoryGetByIDNotFound(t *testing.T) {
	repo := NewIntegrationRepository()
	_, err := repo.GetByID(context.Background(), entity.IntegrationID{})
	require.Error(t, err)
	assert.True(t, repository.IsNotFound(err))
}

func TestIntegrationRepositoryGetEnabledFiltersDisabled(t *testing.T) {
	repo := NewIntegrationRepository()
	ctx := context.Background()

	enabled := newIntegration(true, entity.IntegrationStatusActive)
	disabled := newIntegration(false, entity.IntegrationStatusActive)
	require.NoError(t, repo.Create(ctx, enabled))
	require.NoError(t, repo.Create(ctx, disabled))

	got, err := repo.GetEnabled(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, enabled.ID, got[0].ID)
}

func TestIntegrationRepositoryGetStaleFiltersByStatus(t *testing.T) {
	repo := NewIntegrationRepository()
	ctx := context.Background()

	stale := newIntegration(true, entity.IntegrationStatusSyncing)
	active := newIntegration(true, entity.IntegrationStatusActive)
	require.NoError(t, repo.Create(ctx, stale))
	require.NoError(t, repo.Create(ctx, active))

	got, err := repo.GetStale(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, stale.ID, got[0].ID)
}

func TestIntegrationRepositoryUpdateNotFound(t *testing.T) {
	repo := NewIntegrationRepository()
	err := repo.Update(context.Background(), newIntegration(true, entity.IntegrationStatusActive))
	require.Error(t, err)
	assert.True(t, repository.IsNotFound(err))
}

func TestIntegrationRepositoryDeleteRemoves(t *testing.T) {
	repo := NewIntegrationRepository()
	ctx := context.Background()
	integration := newIntegration(true, entity.IntegrationStatusActive)
	require.NoError(t, repo.Create(ctx, integration))

	require.NoError(t, repo.Delete(ctx, integration.ID))

	_, err := repo.GetByID(ctx, integration.ID)
	assert.True(t, repository.IsNotFound(err))

	err = repo.Delete(ctx, integration.ID)
	assert.True(t, repository.IsNotFound(err))
}

func TestIntegrationRepositoryCount(t *testing.T) {
	repo := NewIntegrationRepository()
	ctx := context.Background()
	require.NoError(t, repo.Create(ctx, newIntegration(true, entity.IntegrationStatusActive)))
	require.NoError(t, repo.Create(ctx, newIntegration(false, entity.IntegrationStatusActive)))

	count, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}
