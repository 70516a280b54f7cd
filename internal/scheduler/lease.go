package scheduler

import (
	"context"
	"errors"
	"time"

	redis "github.com/redis/go-redis/v9"
)

const (
	leaseKeyPrefix = "tapcoin:sweep:lease:"
	leaseGrace     = 15 * time.Second
)

// releaseIfHolder deletes the lease only while the caller still holds it.
const releaseIfHolder = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`

var ErrLeaseHolderEmpty = errors.New("lease_holder_empty")

// SweepLease lets one replica sweep at a time. The holder is the run id, so
// the value stored in Redis leads straight to that run's log lines.
type SweepLease interface {
	Acquire(ctx context.Context, job, holder string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, job, holder string) error
}

type redisLease struct {
	client  *redis.Client
	release *redis.Script
}

// NewRedisLease returns nil without a client; the sweep then runs unguarded.
func NewRedisLease(client *redis.Client) SweepLease {
	if client == nil {
		return nil
	}
	return &redisLease{client: client, release: redis.NewScript(releaseIfHolder)}
}

func leaseKey(job string) string {
	return leaseKeyPrefix + job
}

func (l *redisLease) Acquire(ctx context.Context, job, holder string, ttl time.Duration) (bool, error) {
	if holder == "" {
		return false, ErrLeaseHolderEmpty
	}
	return l.client.SetNX(ctx, leaseKey(job), holder, ttl).Result()
}

func (l *redisLease) Release(ctx context.Context, job, holder string) error {
	if holder == "" {
		return nil
	}
	return l.release.Run(ctx, l.client, []string{leaseKey(job)}, holder).Err()
}
