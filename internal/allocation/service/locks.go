package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
	"github.com/sitewise/rabill/internal/allocation/domain"
)

const (
	itemLockTTL       = 5 * time.Second
	itemLockRetryWait = 25 * time.Millisecond
)

// itemLocker serializes the remaining-percentage read-modify-write per cost
// item so concurrent adds never validate against stale sums.
type itemLocker interface {
	Lock(ctx context.Context, key string) (release func(), err error)
}

const lockReleaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`

// redisItemLocker holds the lock across replicas via SetNX with a fenced
// release, polling until the lock frees or the context ends.
type redisItemLocker struct {
	client *redis.Client
	script *redis.Script
}

func newRedisItemLocker(client *redis.Client) *redisItemLocker {
	if client == nil {
		return nil
	}
	return &redisItemLocker{
		client: client,
		script: redis.NewScript(lockReleaseScript),
	}
}

func (l *redisItemLocker) Lock(ctx context.Context, key string) (func(), error) {
	token := uuid.NewString()
	for {
		ok, err := l.client.SetNX(ctx, key, token, itemLockTTL).Result()
		if err != nil {
			return nil, err
		}
		if ok {
			return func() {
				releaseCtx, cancel := context.WithTimeout(context.Background(), time.Second)
				defer cancel()
				_, _ = l.script.Run(releaseCtx, l.client, []string{key}, token).Result()
			}, nil
		}

		select {
		case <-ctx.Done():
			return nil, domain.ErrLockNotAcquired
		case <-time.After(itemLockRetryWait):
		}
	}
}

// memoryItemLocker is the single-replica fallback: one mutex per key.
type memoryItemLocker struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newMemoryItemLocker() *memoryItemLocker {
	return &memoryItemLocker{locks: make(map[string]*sync.Mutex)}
}

func (l *memoryItemLocker) Lock(ctx context.Context, key string) (func(), error) {
	_ = ctx
	l.mu.Lock()
	m, ok := l.locks[key]
	if !ok {
		m = &sync.Mutex{}
		l.locks[key] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock, nil
}
