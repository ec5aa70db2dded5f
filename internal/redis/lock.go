package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const driverLockPrefix = "lock:driver:"

// LockStore hands out short lived driver locks so two accepts cannot bind
// the same driver to different rides. The TTL bounds how long a crashed
// accept can keep a driver pinned.
type LockStore struct {
	client *redis.Client
}

// NewLockStore creates a new LockStore.
func NewLockStore(client *redis.Client) *LockStore {
	return &LockStore{client: client}
}

// AcquireDriverLock takes the driver lock for ttl. Returns false when
// another accept already holds it.
func (s *LockStore) AcquireDriverLock(ctx context.Context, driverID string, ttl time.Duration) (bool, error) {
	return s.client.SetNX(ctx, driverLockPrefix+driverID, "1", ttl).Result()
}

// ReleaseDriverLock drops the driver lock after a failed accept. A lock
// held through a successful accept simply expires.
func (s *LockStore) ReleaseDriverLock(ctx context.Context, driverID string) error {
	return s.client.Del(ctx, driverLockPrefix+driverID).Err()
}
