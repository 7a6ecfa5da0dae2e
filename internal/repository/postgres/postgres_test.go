// Package postgres provides PostgreSQL repository implementations with
// integration tests run against a containerized database.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	_ "github.com/lib/pq"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/partsform/syncengine/internal/entity"
	"github.com/partsform/syncengine/internal/repository"
)

// postgresTestHelper provisions a throwaway Postgres container per test.
type postgresTestHelper struct {
	db        *sql.DB
	container testcontainers.Container
	ctx       context.Context
}

func newPostgresTestHelper(ctx context.Context, t *testing.T) *postgresTestHelper {
	req := testcontainers.ContainerRequest{
		Image:        "postgres:15-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
			"POSTGRES_DB":       "syncengine_test",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(30 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err, "start postgres container")

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)

	connStr := fmt.Sprintf("postgres://test:test@%s:%s/syncengine_test?sslmode=disable", host, port.Port())
	db, err := sql.Open("postgres", connStr)
	require.NoError(t, err)
	require.NoError(t, db.PingContext(ctx))
	require.NoError(t, createTestTables(ctx, db))

	return &postgresTestHelper{db: db, container: container, ctx: ctx}
}

func (h *postgresTestHelper) Close(t *testing.T) {
	if err := h.db.Close(); err != nil {
		t.Logf("warning: close db: %v", err)
	}
	if err := h.container.Terminate(h.ctx); err != nil {
		t.Logf("warning: terminate container: %v", err)
	}
}

func createTestTables(ctx context.Context, db *sql.DB) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS integrations (
		id UUID PRIMARY KEY,
		name VARCHAR(255) NOT NULL,
		kind VARCHAR(50) NOT NULL,
		status VARCHAR(50) NOT NULL,
		schedule_enabled BOOLEAN NOT NULL DEFAULT false,
		payload JSONB,
		created_by UUID,
		updated_by UUID,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	);

	CREATE TABLE IF NOT EXISTS parts (
		integration_id UUID NOT NULL REFERENCES integrations(id),
		part_number VARCHAR(255) NOT NULL,
		supplier VARCHAR(255) NOT NULL,
		description TEXT,
		brand VARCHAR(255),
		price_minor_units BIGINT,
		price_currency VARCHAR(3),
		quantity INTEGER NOT NULL DEFAULT 0,
		delivery_days INTEGER,
		weight DOUBLE PRECISION,
		condition VARCHAR(50),
		uom VARCHAR(50),
		category VARCHAR(255),
		subcategory VARCHAR(255),
		origin VARCHAR(255),
		attributes JSONB,
		integration_name VARCHAR(255),
		imported_at TIMESTAMPTZ,
		last_updated TIMESTAMPTZ,
		PRIMARY KEY (integration_id, part_number, supplier)
	);

	CREATE TABLE IF NOT EXISTS sync_requests (
		id UUID PRIMARY KEY,
		integration_id UUID NOT NULL REFERENCES integrations(id),
		status VARCHAR(50) NOT NULL,
		created_at TIMESTAMPTZ NOT NULL,
		source VARCHAR(50) NOT NULL,
		progress JSONB
	);
	`
	_, err := db.ExecContext(ctx, schema)
	return err
}

func newTestIntegration(name string) *entity.Integration {
	now := time.Now().UTC()
	return &entity.Integration{
		Name:      name,
		Kind:      entity.IntegrationKindFTP,
		FTP:       &entity.FTPConfig{Host: "ftp.example.com"},
		Schedule:  entity.Schedule{Enabled: true, Frequency: entity.FrequencyHourly},
		Status:    entity.IntegrationStatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestIntegrationRepositoryCRUD(t *testing.T) {
	ctx := context.Background()
	helper := newPostgresTestHelper(ctx, t)
	defer helper.Close(t)

	repo := NewIntegrationRepository(helper.db)

	integration := newTestIntegration("Acme Parts Feed")
	require.NoError(t, repo.Create(ctx, integration))
	require.NotEmpty(t, integration.ID)

	fetched, err := repo.GetByID(ctx, integration.ID)
	require.NoError(t, err)
	require.Equal(t, "Acme Parts Feed", fetched.Name)
	require.Equal(t, "ftp.example.com", fetched.FTP.Host)

	enabled, err := repo.GetEnabled(ctx)
	require.NoError(t, err)
	require.Len(t, enabled, 1)

	fetched.Name = "Renamed Feed"
	fetched.UpdatedAt = time.Now().UTC()
	require.NoError(t, repo.Update(ctx, fetched))

	updated, err := repo.GetByID(ctx, integration.ID)
	require.NoError(t, err)
	require.Equal(t, "Renamed Feed", updated.Name)

	count, err := repo.Count(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(1), count)

	require.NoError(t, repo.Delete(ctx, integration.ID))
	_, err = repo.GetByID(ctx, integration.ID)
	require.Error(t, err)
	require.True(t, repository.IsNotFound(err))
}

func TestIntegrationRepositoryGetStaleFiltersBySyncingStatus(t *testing.T) {
	ctx := context.Background()
	helper := newPostgresTestHelper(ctx, t)
	defer helper.Close(t)

	repo := NewIntegrationRepository(helper.db)

	stuck := newTestIntegration("Stuck Feed")
	stuck.Status = entity.IntegrationStatusSyncing
	require.NoError(t, repo.Create(ctx, stuck))

	healthy := newTestIntegration("Healthy Feed")
	require.NoError(t, repo.Create(ctx, healthy))

	stale, err := repo.GetStale(ctx)
	require.NoError(t, err)
	require.Len(t, stale, 1)
	require.Equal(t, stuck.ID, stale[0].ID)
}

func TestPartRepositoryUpsertBatchAndSearch(t *testing.T) {
	ctx := context.Background()
	helper := newPostgresTestHelper(ctx, t)
	defer helper.Close(t)

	integrationRepo := NewIntegrationRepository(helper.db)
	integration := newTestIntegration("Acme Parts Feed")
	require.NoError(t, integrationRepo.Create(ctx, integration))

	repo := NewPartRepository(helper.db)

	part := &entity.Part{
		IntegrationID:   integration.ID,
		PartNumber:      "ABC-1",
		Supplier:        "acme-supply",
		Brand:           "Acme",
		Description:     "Widget",
		Price:           &entity.Price{MinorUnits: 1999, Currency: "USD"},
		Quantity:        10,
		IntegrationName: integration.Name,
		ImportedAt:      time.Now().UTC(),
		LastUpdated:     time.Now().UTC(),
	}

	inserted, updated, failed, err := repo.UpsertBatch(ctx, []*entity.Part{part}, true)
	require.NoError(t, err)
	require.Equal(t, 1, inserted)
	require.Equal(t, 0, updated)
	require.Equal(t, 0, failed)

	part.Quantity = 5
	inserted, updated, failed, err = repo.UpsertBatch(ctx, []*entity.Part{part}, true)
	require.NoError(t, err)
	require.Equal(t, 0, inserted)
	require.Equal(t, 1, updated)
	require.Equal(t, 0, failed)

	fetched, err := repo.Get(ctx, part.Key())
	require.NoError(t, err)
	require.NotNil(t, fetched)
	require.Equal(t, 5, fetched.Quantity)

	count, err := repo.CountByIntegration(ctx, integration.ID)
	require.NoError(t, err)
	require.Equal(t, int64(1), count)

	results, total, err := repo.Search(ctx, repository.PartFilter{Brand: "Acme"})
	require.NoError(t, err)
	require.Equal(t, int64(1), total)
	require.Len(t, results, 1)

	deleted, err := repo.DeleteByIntegration(ctx, integration.ID)
	require.NoError(t, err)
	require.Equal(t, int64(1), deleted)
}

func TestSyncRequestRepositoryClaimNextPending(t *testing.T) {
	ctx := context.Background()
	helper := newPostgresTestHelper(ctx, t)
	defer helper.Close(t)

	integrationRepo := NewIntegrationRepository(helper.db)
	integration := newTestIntegration("Acme Parts Feed")
	require.NoError(t, integrationRepo.Create(ctx, integration))

	repo := NewSyncRequestRepository(helper.db)

	req := &entity.SyncRequest{
		IntegrationID: integration.ID,
		Status:        entity.SyncRequestStatusPending,
		CreatedAt:     time.Now().UTC(),
		Source:        "manual",
	}
	require.NoError(t, repo.Create(ctx, req))

	pending, err := repo.GetPendingOrProcessing(ctx, integration.ID)
	require.NoError(t, err)
	require.NotNil(t, pending)
	require.Equal(t, req.ID, pending.ID)

	claimed, err := repo.ClaimNextPending(ctx)
	require.NoError(t, err)
	require.NotNil(t, claimed)
	require.Equal(t, req.ID, claimed.ID)
	require.Equal(t, entity.SyncRequestStatusProcessing, claimed.Status)

	claimed.Status = entity.SyncRequestStatusDone
	require.NoError(t, repo.Update(ctx, claimed))

	fetched, err := repo.GetByID(ctx, req.ID)
	require.NoError(t, err)
	require.Equal(t, entity.SyncRequestStatusDone, fetched.Status)

	count, err := repo.Count(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(1), count)
}
