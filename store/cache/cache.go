// Package cache wraps the Redis side of the store: the read-through
// value cache, per-project usage counters and the per-user pipeline
// lock. Redis failures on the value cache degrade to misses so the
// database stays the source of truth.
package cache

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/hrygo/memoria/internal/profile"
)

// Counter names tracked per project and per day/month.
const (
	CounterInsertBlobRequest        = "insert_blob_request"
	CounterInsertBlobSuccessRequest = "insert_blob_success_request"
	CounterLLMInputTokens           = "llm_input_tokens"
	CounterLLMOutputTokens          = "llm_output_tokens"
)

const (
	counterExpire      = 14 * 24 * time.Hour
	counterMonthExpire = 30 * counterExpire

	lockTTL        = 128 * time.Second
	lockWait       = 32 * time.Second
	lockRetryDelay = 100 * time.Millisecond
)

type Cache struct {
	rdb      *redis.Client
	instance string
}

// New connects to the Redis instance named by the profile.
func New(p *profile.Profile) (*Cache, error) {
	opt, err := redis.ParseURL(p.RedisURL)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid redis url %q", p.RedisURL)
	}
	return &Cache{rdb: redis.NewClient(opt), instance: p.Instance}, nil
}

func (c *Cache) Ping(ctx context.Context) error {
	return errors.Wrap(c.rdb.Ping(ctx).Err(), "redis ping failed")
}

func (c *Cache) Close() error {
	return c.rdb.Close()
}

// Get returns the cached value for key; the bool reports a hit.
// Redis errors are logged and treated as misses.
func (c *Cache) Get(ctx context.Context, key string) (string, bool) {
	val, err := c.rdb.Get(ctx, key).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			slog.Warn("cache get failed", "key", key, "error", err)
		}
		return "", false
	}
	return val, true
}

// Set stores value under key. A non-positive ttl means no expiry.
func (c *Cache) Set(ctx context.Context, key, value string, ttl time.Duration) {
	if ttl < 0 {
		ttl = 0
	}
	if err := c.rdb.Set(ctx, key, value, ttl).Err(); err != nil {
		slog.Warn("cache set failed", "key", key, "error", err)
	}
}

func (c *Cache) Delete(ctx context.Context, keys ...string) {
	if len(keys) == 0 {
		return
	}
	if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
		slog.Warn("cache delete failed", "keys", keys, "error", err)
	}
}

func (c *Cache) counterKey(projectID, name, period string) string {
	return fmt.Sprintf("memoria_telemetry::%s::%s::%s::%s", c.instance, projectID, name, period)
}

// IncrCounter bumps the daily and monthly usage counters for a project.
// Counter writes are best effort; billing reads tolerate a stale value.
func (c *Cache) IncrCounter(ctx context.Context, projectID, name string, value int64) {
	now := time.Now()
	day := c.counterKey(projectID, name, now.Format("2006-01-02"))
	month := c.counterKey(projectID, name, now.Format("2006-01"))

	pipe := c.rdb.Pipeline()
	pipe.IncrBy(ctx, day, value)
	pipe.IncrBy(ctx, month, value)
	pipe.Expire(ctx, day, counterExpire)
	pipe.Expire(ctx, month, counterMonthExpire)
	if _, err := pipe.Exec(ctx); err != nil {
		slog.Warn("usage counter increment failed", "project_id", projectID, "name", name, "error", err)
	}
}

// GetCounter reads a usage counter. inMonth selects the monthly window
// instead of today's.
func (c *Cache) GetCounter(ctx context.Context, projectID, name string, inMonth bool) (int64, error) {
	period := time.Now().Format("2006-01-02")
	if inMonth {
		period = time.Now().Format("2006-01")
	}
	val, err := c.rdb.Get(ctx, c.counterKey(projectID, name, period)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, errors.Wrap(err, "failed to read usage counter")
	}
	return val, nil
}

// UserLock is a held distributed lock. Release it when the critical
// section ends; the TTL reclaims it if the holder dies.
type UserLock struct {
	rdb   *redis.Client
	key   string
	token string
}

var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// AcquireUserLock serializes pipeline work on one user within a scope.
// It blocks up to 32s for the holder to finish, then fails.
func (c *Cache) AcquireUserLock(ctx context.Context, scope string, userID uuid.UUID) (*UserLock, error) {
	key := fmt.Sprintf("user_lock:%s:%s:%s", c.instance, scope, userID)
	token := uuid.NewString()
	deadline := time.Now().Add(lockWait)
	for {
		ok, err := c.rdb.SetNX(ctx, key, token, lockTTL).Result()
		if err != nil {
			return nil, errors.Wrap(err, "failed to acquire user lock")
		}
		if ok {
			return &UserLock{rdb: c.rdb, key: key, token: token}, nil
		}
		if time.Now().After(deadline) {
			return nil, errors.Errorf("could not acquire lock %s within %s", key, lockWait)
		}
		select {
		case <-ctx.Done():
			return nil, errors.Wrap(ctx.Err(), "canceled while waiting for user lock")
		case <-time.After(lockRetryDelay):
		}
	}
}

// Release drops the lock if we still hold it. Best effort: a lock that
// already expired was released by Redis itself.
func (l *UserLock) Release(ctx context.Context) {
	if l == nil || l.rdb == nil {
		return
	}
	if err := releaseScript.Run(ctx, l.rdb, []string{l.key}, l.token).Err(); err != nil && !errors.Is(err, redis.Nil) {
		slog.Warn("failed to release user lock", "key", l.key, "error", err)
	}
}
