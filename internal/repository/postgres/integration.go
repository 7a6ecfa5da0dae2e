package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/partsform/syncengine/internal/entity"
	"github.com/partsform/syncengine/internal/repository"
)

// IntegrationRepository implements repository.IntegrationRepository for PostgreSQL.
// Kind-specific config (FTPConfig/APIConfig) and the Schedule/Options/Stats/LastSync
// embeds are stored as JSONB columns; only the fields the engine filters or
// reconciles on (status, schedule_enabled) get their own columns.
type IntegrationRepository struct {
	db *sql.DB
}

// NewIntegrationRepository creates a new IntegrationRepository.
func NewIntegrationRepository(db *sql.DB) *IntegrationRepository {
	return &IntegrationRepository{db: db}
}

type integrationRow struct {
	FTP      *entity.FTPConfig `json:"ftp,omitempty"`
	API      *entity.APIConfig `json:"api,omitempty"`
	Schedule entity.Schedule   `json:"schedule"`
	Options  entity.Options    `json:"options"`
	Stats    entity.Stats      `json:"stats"`
	LastSync *entity.LastSync  `json:"last_sync,omitempty"`
}

func (r *IntegrationRepository) Create(ctx context.Context, integration *entity.Integration) error {
	if integration.ID == uuid.Nil {
		integration.ID = uuid.New()
	}

	payload, err := json.Marshal(integrationRow{
		FTP:      integration.FTP,
		API:      integration.API,
		Schedule: integration.Schedule,
		Options:  integration.Options,
		Stats:    integration.Stats,
		LastSync: integration.LastSync,
	})
	if err != nil {
		return fmt.Errorf("marshal integration payload: %w", err)
	}

	const query = `
		INSERT INTO integrations (
			id, name, kind, status, schedule_enabled, payload,
			created_by, updated_by, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err = r.db.ExecContext(ctx, query,
		integration.ID,
		integration.Name,
		string(integration.Kind),
		string(integration.Status),
		integration.Schedule.Enabled,
		payload,
		integration.CreatedBy,
		integration.UpdatedBy,
		integration.CreatedAt,
		integration.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("create integration: %w", err)
	}
	return nil
}

func scanIntegration(scan func(dest ...interface{}) error) (*entity.Integration, error) {
	integration := &entity.Integration{}
	var kind, status string
	var scheduleEnabled bool
	var payload []byte

	if err := scan(
		&integration.ID,
		&integration.Name,
		&kind,
		&status,
		&scheduleEnabled,
		&payload,
		&integration.CreatedBy,
		&integration.UpdatedBy,
		&integration.CreatedAt,
		&integration.UpdatedAt,
	); err != nil {
		return nil, err
	}

	integration.Kind = entity.IntegrationKind(kind)
	integration.Status = entity.IntegrationStatus(status)

	var row integrationRow
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &row); err != nil {
			return nil, fmt.Errorf("unmarshal integration payload: %w", err)
		}
	}
	integration.FTP = row.FTP
	integration.API = row.API
	integration.Schedule = row.Schedule
	integration.Options = row.Options
	integration.Stats = row.Stats
	integration.LastSync = row.LastSync

	return integration, nil
}

const integrationColumns = `
	SELECT id, name, kind, status, schedule_enabled, payload,
	       created_by, updated_by, created_at, updated_at
	FROM integrations
`

func (r *IntegrationRepository) GetByID(ctx context.Context, id entity.IntegrationID) (*entity.Integration, error) {
	row := r.db.QueryRowContext(ctx, integrationColumns+" WHERE id = $1", id)
	integration, err := scanIntegration(row.Scan)
	if err == sql.ErrNoRows {
		return nil, &repository.NotFoundError{ResourceType: "Integration", ResourceID: id.String()}
	}
	if err != nil {
		return nil, fmt.Errorf("get integration: %w", err)
	}
	return integration, nil
}

func (r *IntegrationRepository) queryAll(ctx context.Context, where string, args ...interface{}) ([]*entity.Integration, error) {
	rows, err := r.db.QueryContext(ctx, integrationColumns+where, args...)
	if err != nil {
		return nil, fmt.Errorf("query integrations: %w", err)
	}
	defer rows.Close()

	var out []*entity.Integration
	for rows.Next() {
		integration, err := scanIntegration(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan integration: %w", err)
		}
		out = append(out, integration)
	}
	return out, rows.Err()
}

func (r *IntegrationRepository) GetAll(ctx context.Context) ([]*entity.Integration, error) {
	return r.queryAll(ctx, " ORDER BY created_at")
}

func (r *IntegrationRepository) GetEnabled(ctx context.Context) ([]*entity.Integration, error) {
	return r.queryAll(ctx, " WHERE schedule_enabled = true ORDER BY created_at")
}

// GetStale returns integrations left in status=syncing, the set that
// must be reconciled on process restart (spec.md §7).
func (r *IntegrationRepository) GetStale(ctx context.Context) ([]*entity.Integration, error) {
	return r.queryAll(ctx, " WHERE status = 'syncing'")
}

func (r *IntegrationRepository) Update(ctx context.Context, integration *entity.Integration) error {
	payload, err := json.Marshal(integrationRow{
		FTP:      integration.FTP,
		API:      integration.API,
		Schedule: integration.Schedule,
		Options:  integration.Options,
		Stats:    integration.Stats,
		LastSync: integration.LastSync,
	})
	if err != nil {
		return fmt.Errorf("marshal integration payload: %w", err)
	}

	const query = `
		UPDATE integrations
		SET name = $1, kind = $2, status = $3, schedule_enabled = $4,
		    payload = $5, updated_by = $6, updated_at = $7
		WHERE id = $8
	`
	_, err = r.db.ExecContext(ctx, query,
		integration.Name,
		string(integration.Kind),
		string(integration.Status),
		integration.Schedule.Enabled,
		payload,
		integration.UpdatedBy,
		integration.UpdatedAt,
		integration.ID,
	)
	if err != nil {
		return fmt.Errorf("update integration: %w", err)
	}
	return nil
}

// Delete removes the Integration row. Cascading deletion of its Parts
// (primary + search store) is the caller's responsibility (spec.md §3
// "Lifecycle"), orchestrated by the service layer, not by the
// repository, since it spans two stores.
func (r *IntegrationRepository) Delete(ctx context.Context, id entity.IntegrationID) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM integrations WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete integration: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete integration: %w", err)
	}
	if n == 0 {
		return &repository.NotFoundError{ResourceType: "Integration", ResourceID: id.String()}
	}
	return nil
}

func (r *IntegrationRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM integrations`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count integrations: %w", err)
	}
	return count, nil
}
