package storage

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

// WriteGuard serialises writers of the lists file. Acquire blocks until the
// caller holds the guard and returns the function that releases it.
type WriteGuard interface {
	Acquire(ctx context.Context) (release func(), err error)
}

// LocalGuard serialises writers inside a single process.
type LocalGuard struct {
	mu sync.Mutex
}

// Acquire locks the guard. The context is not consulted.
func (g *LocalGuard) Acquire(context.Context) (func(), error) {
	g.mu.Lock()
	return g.mu.Unlock, nil
}

// ErrLeaseNotHeld is logged by the release func when the lease expired before
// its holder released it.
var ErrLeaseNotHeld = errors.New("write lease not held")

// releaseScript deletes the lease key only if it still carries our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLease is a WriteGuard shared by every process pointing at the same
// Redis key. The lease expires after ttl so a crashed holder cannot block
// writers forever.
type RedisLease struct {
	client *redis.Client
	key    string
	ttl    time.Duration
	poll   time.Duration
	token  func() string
}

// NewRedisLease creates a lease on key. Non-positive durations fall back to
// a 10s lease polled every 25ms.
func NewRedisLease(client *redis.Client, key string, ttl time.Duration) *RedisLease {
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	return &RedisLease{
		client: client,
		key:    key,
		ttl:    ttl,
		poll:   25 * time.Millisecond,
		token:  uuid.NewString,
	}
}

// Acquire polls SET NX until the lease is taken or ctx is done.
func (l *RedisLease) Acquire(ctx context.Context) (func(), error) {
	token := l.token()
	ticker := time.NewTicker(l.poll)
	defer ticker.Stop()
	for {
		ok, err := l.client.SetNX(ctx, l.key, token, l.ttl).Result()
		if err != nil {
			return nil, err
		}
		if ok {
			return func() { l.release(token) }, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (l *RedisLease) release(token string) {
	n, err := releaseScript.Run(context.Background(), l.client, []string{l.key}, token).Int()
	if err != nil {
		log.WithError(err).WithField("key", l.key).Error("failed to release write lease")
		return
	}
	if n == 0 {
		log.WithError(ErrLeaseNotHeld).WithField("key", l.key).Warn("write lease expired before release")
	}
}
