package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kursadbilgin/broadcast-engine/internal/broadcast"
	"github.com/kursadbilgin/broadcast-engine/internal/domain"
	goredis "github.com/redis/go-redis/v9"
)

const (
	statusKeyPrefix   = "broadcast:status:"
	maxCancelAttempts = 3

	// DefaultOrphanTTL bounds entries whose worker died before completion.
	DefaultOrphanTTL = 24 * time.Hour
)

var _ broadcast.StatusRegistry = (*StatusRegistry)(nil)

// StatusRegistry keeps batch status in Redis so every API replica can serve
// polls. Every Put resets the key TTL to orphanTTL: a reused batch id is not
// hit by the eviction scheduled for its previous run, and a processing entry
// left behind by a crashed worker still expires. ScheduleEviction shortens the
// TTL to the retention window once a batch completes.
type StatusRegistry struct {
	client    *goredis.Client
	orphanTTL time.Duration
}

func NewStatusRegistry(client *goredis.Client, orphanTTL time.Duration) (*StatusRegistry, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if orphanTTL <= 0 {
		orphanTTL = DefaultOrphanTTL
	}
	return &StatusRegistry{client: client, orphanTTL: orphanTTL}, nil
}

func (r *StatusRegistry) Put(ctx context.Context, batchID string, status domain.BatchStatus) error {
	payload, err := json.Marshal(status)
	if err != nil {
		return fmt.Errorf("failed to encode batch status: %w", err)
	}

	if err := r.client.Set(ctx, statusKey(batchID), payload, r.orphanTTL).Err(); err != nil {
		return fmt.Errorf("failed to store batch status: %w", err)
	}
	return nil
}

func (r *StatusRegistry) Get(ctx context.Context, batchID string) (domain.BatchStatus, bool, error) {
	payload, err := r.client.Get(ctx, statusKey(batchID)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return domain.BatchStatus{}, false, nil
	}
	if err != nil {
		return domain.BatchStatus{}, false, fmt.Errorf("failed to load batch status: %w", err)
	}

	status, err := decodeStatus(payload)
	if err != nil {
		return domain.BatchStatus{}, false, err
	}
	return status, true, nil
}

func (r *StatusRegistry) ScheduleEviction(ctx context.Context, batchID string, delay time.Duration) error {
	if delay <= 0 {
		delay = broadcast.DefaultStatusRetention
	}
	if err := r.client.Expire(ctx, statusKey(batchID), delay).Err(); err != nil {
		return fmt.Errorf("failed to schedule batch status eviction: %w", err)
	}
	return nil
}

func (r *StatusRegistry) MarkCancelled(ctx context.Context, batchID string) (bool, error) {
	key := statusKey(batchID)
	found := false

	txf := func(tx *goredis.Tx) error {
		payload, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, goredis.Nil) {
			found = false
			return nil
		}
		if err != nil {
			return err
		}

		status, err := decodeStatus(payload)
		if err != nil {
			return err
		}
		status.Status = domain.StatusCancelled

		updated, err := json.Marshal(status)
		if err != nil {
			return fmt.Errorf("failed to encode batch status: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
			pipe.Set(ctx, key, updated, goredis.KeepTTL)
			return nil
		})
		if err == nil {
			found = true
		}
		return err
	}

	for attempt := 0; attempt < maxCancelAttempts; attempt++ {
		err := r.client.Watch(ctx, txf, key)
		if errors.Is(err, goredis.TxFailedErr) {
			continue
		}
		if err != nil {
			return false, fmt.Errorf("failed to mark batch cancelled: %w", err)
		}
		return found, nil
	}
	return false, fmt.Errorf("failed to mark batch cancelled: %w", goredis.TxFailedErr)
}

func statusKey(batchID string) string {
	return statusKeyPrefix + strings.TrimSpace(batchID)
}

func decodeStatus(payload []byte) (domain.BatchStatus, error) {
	var status domain.BatchStatus
	if err := json.Unmarshal(payload, &status); err != nil {
		return domain.BatchStatus{}, fmt.Errorf("failed to decode batch status: %w", err)
	}
	return status, nil
}
