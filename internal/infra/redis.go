package infra

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// NewRedis creates and validates a go-redis client connection.
func NewRedis(redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}

	rdb := redis.NewClient(opts)

	// Validate connectivity at startup
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		return nil, err
	}

	return rdb, nil
}

// ErrLockHeld means another run currently owns the destination.
var ErrLockHeld = errors.New("infra: destino bloqueado por otra corrida")

// RunLock is a Redis SET-NX lease that serializes pipeline runs against one
// destination path. It is advisory: when Redis is not configured callers run
// unlocked and remain responsible for not racing themselves.
type RunLock struct {
	rdb   *redis.Client
	key   string
	token string
	ttl   time.Duration
}

// NewRunLock builds a lock for the given destination path.
func NewRunLock(rdb *redis.Client, dest string, ttl time.Duration) *RunLock {
	return &RunLock{
		rdb:   rdb,
		key:   "ventasbi:runlock:" + dest,
		token: uuid.NewString(),
		ttl:   ttl,
	}
}

// Acquire takes the lease or returns ErrLockHeld. The TTL bounds how long a
// crashed run can keep the destination blocked.
func (l *RunLock) Acquire(ctx context.Context) error {
	ok, err := l.rdb.SetNX(ctx, l.key, l.token, l.ttl).Result()
	if err != nil {
		return fmt.Errorf("infra: adquirir lock: %w", err)
	}
	if !ok {
		return ErrLockHeld
	}
	return nil
}

// Release drops the lease if this lock still owns it. A lease that expired
// and was re-acquired by another run is left alone.
func (l *RunLock) Release(ctx context.Context) error {
	const script = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0`
	return l.rdb.Eval(ctx, script, []string{l.key}, l.token).Err()
}
