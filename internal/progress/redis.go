package progress

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/partsform/syncengine/internal/entity"
)

const keyPrefix = "syncengine:progress:"

// Mirror is anything a Bus can best-effort publish every progress
// update to, for deployments where the Orchestrator runs in a worker
// process separate from the API server holding the in-process Bus.
type Mirror interface {
	Publish(ctx context.Context, p *entity.SyncProgress) error
}

// RedisMirror persists SyncProgress snapshots to Redis with a TTL
// matching the Bus's own retention window. The control-plane progress
// handlers read only the in-process Bus, not this mirror.
type RedisMirror struct {
	client *redis.Client
}

// NewRedisMirror wraps an existing go-redis client (the same one
// backing the asynq broker, per DESIGN.md).
func NewRedisMirror(client *redis.Client) *RedisMirror {
	return &RedisMirror{client: client}
}

func redisKey(id entity.IntegrationID) string {
	return keyPrefix + id.String()
}

// Publish writes p to Redis under its integration id, expiring after
// retention so stale entries self-clean without a sweeper.
func (m *RedisMirror) Publish(ctx context.Context, p *entity.SyncProgress) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal progress for redis mirror: %w", err)
	}
	return m.client.Set(ctx, redisKey(p.IntegrationID), data, retention).Err()
}

// Get reads back a mirrored SyncProgress by integration id. Nothing in
// the engine or the control-plane API calls it.
func (m *RedisMirror) Get(ctx context.Context, id entity.IntegrationID) (*entity.SyncProgress, bool, error) {
	data, err := m.client.Get(ctx, redisKey(id)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read progress from redis mirror: %w", err)
	}
	var p entity.SyncProgress
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, false, fmt.Errorf("unmarshal mirrored progress: %w", err)
	}
	return &p, true, nil
}
