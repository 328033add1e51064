package concurrency

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"

	apperrors "github.com/migueljbento/percenseo/pkg/errors"
)

const defaultLeaseTTL = 2 * time.Hour

var releaseScript = redis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
  return redis.call('DEL', KEYS[1])
end
return 0
`)

// Lease guards a result store location so that only one survey run dials
// against it at a time. The lease expires on its own if the holder dies.
type Lease struct {
	client *redis.Client
	key    string
	owner  string
	ttl    time.Duration
}

// NewLease prepares a lease for location owned by runID. Nothing is taken
// until Acquire.
func NewLease(client *redis.Client, prefix, location string, runID uuid.UUID, ttl time.Duration) *Lease {
	if ttl <= 0 {
		ttl = defaultLeaseTTL
	}
	return &Lease{
		client: client,
		key:    LeaseKey(prefix, location),
		owner:  runID.String(),
		ttl:    ttl,
	}
}

// LeaseKey derives the redis key for a store location. Locations may carry
// credentials, so only a digest ends up in redis.
func LeaseKey(prefix, location string) string {
	sum := sha256.Sum256([]byte(location))
	return prefix + hex.EncodeToString(sum[:12])
}

// Key returns the redis key guarded by the lease.
func (l *Lease) Key() string { return l.key }

// Acquire takes the lease or fails with ErrLeaseHeld.
func (l *Lease) Acquire(ctx context.Context) error {
	ok, err := l.client.SetNX(ctx, l.key, l.owner, l.ttl).Result()
	if err != nil {
		return fmt.Errorf("lease acquire: %w", err)
	}
	if !ok {
		holder, _ := l.client.Get(ctx, l.key).Result()
		return fmt.Errorf("lease acquire %s (holder %s): %w", l.key, holder, apperrors.ErrLeaseHeld)
	}
	return nil
}

// Release drops the lease if this run still owns it.
func (l *Lease) Release(ctx context.Context) error {
	if _, err := releaseScript.Run(ctx, l.client, []string{l.key}, l.owner).Int(); err != nil {
		return fmt.Errorf("lease release: %w", err)
	}
	return nil
}
