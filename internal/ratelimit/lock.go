package ratelimit

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
)

// Deletes KEYS[1] only while it still holds the caller's owner id.
const releaseScript = `
if redis.call("GET", KEYS[1]) ~= ARGV[1] then
  return 0
end
return redis.call("DEL", KEYS[1])
`

// Locker hands out single-holder leases backed by redis keys.
type Locker struct {
	client  *redis.Client
	release *redis.Script
}

// Lease is a held lock. It expires on its own after the ttl passed to
// Acquire.
type Lease struct {
	locker *Locker
	key    string
	owner  string
}

func NewLocker(client *redis.Client) *Locker {
	if client == nil {
		return nil
	}
	return &Locker{client: client, release: redis.NewScript(releaseScript)}
}

func (l *Locker) Enabled() bool {
	return l != nil && l.client != nil
}

// Acquire reports false without error when another owner holds key.
func (l *Locker) Acquire(ctx context.Context, key string, ttl time.Duration) (*Lease, bool, error) {
	switch {
	case !l.Enabled():
		return nil, false, errors.New("locker has no redis client")
	case key == "":
		return nil, false, errors.New("lock key is empty")
	case ttl <= 0:
		return nil, false, errors.New("lock ttl must be positive")
	}

	owner := uuid.NewString()
	ok, err := l.client.SetNX(ctx, key, owner, ttl).Result()
	if err != nil || !ok {
		return nil, false, err
	}
	return &Lease{locker: l, key: key, owner: owner}, true, nil
}

// Release is a no-op on a nil lease or one that already expired and was
// taken by someone else.
func (ls *Lease) Release(ctx context.Context) error {
	if ls == nil {
		return nil
	}
	return ls.locker.release.Run(ctx, ls.locker.client, []string{ls.key}, ls.owner).Err()
}
