package redis

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Lock is a short-lived advisory lock keyed on a resource. The unique
// constraint on certification.audit_id is the real guard against duplicate
// records; the lock only prevents concurrent replicas from both paying the
// cost of a create attempt during reconcile stampedes.
type Lock struct {
	client *Client
}

// NewLock returns a lock manager, or nil when Redis is not configured.
func NewLock(client *Client) *Lock {
	if client == nil {
		return nil
	}
	return &Lock{client: client}
}

// Acquire takes the lock for key, returning a release func and whether the
// lock was obtained. A false return means another holder owns it.
func (l *Lock) Acquire(ctx context.Context, key string, ttl time.Duration) (release func(), acquired bool, err error) {
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}
	release = func() {
		// Release only our own token so an expired-and-reacquired lock
		// is not deleted out from under the new holder.
		_ = releaseScript.Run(context.WithoutCancel(ctx), l.client.Client, []string{key}, token).Err()
	}
	return release, true, nil
}

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)
