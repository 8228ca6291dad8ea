package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
)

var (
	ErrLockUnavailable = errors.New("lock_unavailable")
	errLockArgs        = errors.New("lock key and ttl are required")
)

// Locker leases purchase keys in Redis so one buyer has at most one purchase of a dataset in flight.
type Locker struct {
	client redis.UniversalClient
}

// NewLocker returns nil for a nil client; a nil *Locker is never handed to callers as a lock.
func NewLocker(client *redis.Client) *Locker {
	if client == nil {
		return nil
	}
	return &Locker{client: client}
}

// PurchaseKey is the lease key for buyer purchasing datasetID.
func PurchaseKey(datasetID int64, buyer string) string {
	return fmt.Sprintf("dataverse:purchase:%d:%s", datasetID, strings.ToLower(strings.TrimSpace(buyer)))
}

// TryLock stores a fresh token under key when the key is free. ok is false while another holder owns it.
func (l *Locker) TryLock(ctx context.Context, key string, ttl time.Duration) (token string, ok bool, err error) {
	if l == nil {
		return "", false, ErrLockUnavailable
	}
	if key == "" || ttl <= 0 {
		return "", false, errLockArgs
	}
	token = uuid.NewString()
	ok, err = l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return "", false, fmt.Errorf("%w: %w", ErrLockUnavailable, err)
	}
	return token, ok, nil
}

// Release drops key only while it still holds token. A lease that expired and was taken over is left alone.
func (l *Locker) Release(ctx context.Context, key, token string) error {
	if l == nil || key == "" || token == "" {
		return nil
	}
	err := l.client.Watch(ctx, func(tx *redis.Tx) error {
		held, err := tx.Get(ctx, key).Result()
		if errors.Is(err, redis.Nil) {
			return nil
		}
		if err != nil {
			return err
		}
		if held != token {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, key)
			return nil
		})
		return err
	}, key)
	if errors.Is(err, redis.TxFailedErr) {
		return nil
	}
	return err
}
