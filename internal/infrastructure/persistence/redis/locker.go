package redis

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// PrefixLock is the prefix for job lock keys.
const PrefixLock = "lock:"

// releaseScript deletes the lock only while we still own it.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Locker hands out short-lived exclusive locks so that only one worker
// replica runs a scheduled job at a time.
type Locker struct {
	cache *Cache
}

// NewLocker creates a Locker.
func NewLocker(cache *Cache) *Locker {
	return &Locker{cache: cache}
}

// TryLock acquires name for ttl. ok is false when another owner holds it.
// The returned release func is safe to call after the lock expired.
func (l *Locker) TryLock(ctx context.Context, name string, ttl time.Duration) (release func(context.Context) error, ok bool, err error) {
	if name == "" {
		return nil, false, ErrCacheKeyEmpty
	}
	if ttl <= 0 {
		return nil, false, ErrCacheInvalidTTL
	}

	key := l.cache.Keys().key(PrefixLock + name)
	token := uuid.NewString()

	ok, err = l.cache.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil || !ok {
		return nil, false, err
	}
	return func(ctx context.Context) error {
		return releaseScript.Run(ctx, l.cache.client, []string{key}, token).Err()
	}, true, nil
}
