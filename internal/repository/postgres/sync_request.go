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

// SyncRequestRepository implements repository.SyncRequestRepository,
// the durable queue backing worker-mode dispatch (spec.md §4.6).
type SyncRequestRepository struct {
	db *sql.DB
}

// NewSyncRequestRepository creates a new SyncRequestRepository.
func NewSyncRequestRepository(db *sql.DB) *SyncRequestRepository {
	return &SyncRequestRepository{db: db}
}

func (r *SyncRequestRepository) Create(ctx context.Context, req *entity.SyncRequest) error {
	if req.ID == uuid.Nil {
		req.ID = uuid.New()
	}

	progress, err := json.Marshal(req.Progress)
	if err != nil {
		return fmt.Errorf("marshal sync request progress: %w", err)
	}

	const query = `
		INSERT INTO sync_requests (id, integration_id, status, created_at, source, progress)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err = r.db.ExecContext(ctx, query,
		req.ID, req.IntegrationID, string(req.Status), req.CreatedAt, req.Source, progress,
	)
	if err != nil {
		return fmt.Errorf("create sync request: %w", err)
	}
	return nil
}

const syncRequestColumns = `
	SELECT id, integration_id, status, created_at, source, progress
	FROM sync_requests
`

func scanSyncRequest(scan func(dest ...interface{}) error) (*entity.SyncRequest, error) {
	req := &entity.SyncRequest{}
	var status string
	var progress []byte

	if err := scan(&req.ID, &req.IntegrationID, &status, &req.CreatedAt, &req.Source, &progress); err != nil {
		return nil, err
	}
	req.Status = entity.SyncRequestStatus(status)
	if len(progress) > 0 {
		var p entity.SyncProgress
		if err := json.Unmarshal(progress, &p); err != nil {
			return nil, fmt.Errorf("unmarshal sync request progress: %w", err)
		}
		req.Progress = &p
	}
	return req, nil
}

func (r *SyncRequestRepository) GetByID(ctx context.Context, id entity.SyncRequestID) (*entity.SyncRequest, error) {
	row := r.db.QueryRowContext(ctx, syncRequestColumns+" WHERE id = $1", id)
	req, err := scanSyncRequest(row.Scan)
	if err == sql.ErrNoRows {
		return nil, &repository.NotFoundError{ResourceType: "SyncRequest", ResourceID: id.String()}
	}
	if err != nil {
		return nil, fmt.Errorf("get sync request: %w", err)
	}
	return req, nil
}

// GetPendingOrProcessing returns the live request for integrationID, if
// any, so the control plane can reject a second concurrent sync
// (spec.md §4.5 "AlreadyRunning").
func (r *SyncRequestRepository) GetPendingOrProcessing(ctx context.Context, integrationID entity.IntegrationID) (*entity.SyncRequest, error) {
	row := r.db.QueryRowContext(ctx,
		syncRequestColumns+` WHERE integration_id = $1 AND status IN ('pending', 'processing')
		ORDER BY created_at DESC LIMIT 1`,
		integrationID,
	)
	req, err := scanSyncRequest(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get pending or processing sync request: %w", err)
	}
	return req, nil
}

// ClaimNextPending atomically hands one pending request to a worker.
// FOR UPDATE SKIP LOCKED lets several worker processes poll the same
// table without blocking on each other (grounded on the job_queue
// claim pattern, extended with SKIP LOCKED for multi-worker safety).
func (r *SyncRequestRepository) ClaimNextPending(ctx context.Context) (*entity.SyncRequest, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin claim: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	row := tx.QueryRowContext(ctx, `
		SELECT id, integration_id, status, created_at, source, progress
		FROM sync_requests
		WHERE status = 'pending'
		ORDER BY created_at
		FOR UPDATE SKIP LOCKED
		LIMIT 1
	`)
	req, err := scanSyncRequest(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("claim next pending: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `UPDATE sync_requests SET status = 'processing' WHERE id = $1`, req.ID); err != nil {
		return nil, fmt.Errorf("claim next pending: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit claim: %w", err)
	}

	req.Status = entity.SyncRequestStatusProcessing
	return req, nil
}

func (r *SyncRequestRepository) Update(ctx context.Context, req *entity.SyncRequest) error {
	progress, err := json.Marshal(req.Progress)
	if err != nil {
		return fmt.Errorf("marshal sync request progress: %w", err)
	}

	const query = `UPDATE sync_requests SET status = $1, progress = $2 WHERE id = $3`
	res, err := r.db.ExecContext(ctx, query, string(req.Status), progress, req.ID)
	if err != nil {
		return fmt.Errorf("update sync request: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update sync request: %w", err)
	}
	if n == 0 {
		return &repository.NotFoundError{ResourceType: "SyncRequest", ResourceID: req.ID.String()}
	}
	return nil
}

func (r *SyncRequestRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sync_requests`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count sync requests: %w", err)
	}
	return count, nil
}
