package utils

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/cppla/rewards/services"
)

const (
	defaultStatusTTL = 30 * time.Second
	statusKeyPrefix  = "cache:rewards:status:"
	versionKeyPrefix = "cache:rewards:status:ver:"
	versionKeyLife   = 24 * time.Hour
	cacheOpTimeout   = 2 * time.Second
)

// setIfVersion stores ARGV[2] under KEYS[1] for ARGV[3] ms only while the version counter
// in KEYS[2] still equals ARGV[1].
var setIfVersion = redis.NewScript(`
local v = redis.call('GET', KEYS[2])
if (v or '0') ~= ARGV[1] then
	return 0
end
redis.call('SET', KEYS[1], ARGV[2], 'PX', ARGV[3])
return 1
`)

// RedisStatusCache keeps per-user status snapshots in Redis. Every failure degrades to a
// cache miss.
type RedisStatusCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStatusCache creates a status cache. A nil client yields a cache that never hits.
func NewRedisStatusCache(client *redis.Client, ttl time.Duration) *RedisStatusCache {
	if ttl <= 0 {
		ttl = defaultStatusTTL
	}
	return &RedisStatusCache{client: client, ttl: ttl}
}

func statusKey(userID uint) string {
	return statusKeyPrefix + strconv.FormatUint(uint64(userID), 10)
}

func versionKey(userID uint) string {
	return versionKeyPrefix + strconv.FormatUint(uint64(userID), 10)
}

// Get returns the cached status of userID.
func (c *RedisStatusCache) Get(ctx context.Context, userID uint) (*services.Status, bool) {
	if c.client == nil {
		return nil, false
	}
	ctx, cancel := context.WithTimeout(ctx, cacheOpTimeout)
	defer cancel()
	b, err := c.client.Get(ctx, statusKey(userID)).Bytes()
	if err != nil {
		if Sugar != nil && !errors.Is(err, redis.Nil) {
			Sugar.Debugf("cache get failed user=%d err=%v", userID, err)
		}
		return nil, false
	}
	var st services.Status
	if err := json.Unmarshal(b, &st); err != nil {
		return nil, false
	}
	return &st, true
}

// Version reads the invalidation counter of userID. A missing counter is version 0.
func (c *RedisStatusCache) Version(ctx context.Context, userID uint) (int64, bool) {
	if c.client == nil {
		return 0, false
	}
	ctx, cancel := context.WithTimeout(ctx, cacheOpTimeout)
	defer cancel()
	v, err := c.client.Get(ctx, versionKey(userID)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, true
	}
	if err != nil {
		if Sugar != nil {
			Sugar.Debugf("cache version failed user=%d err=%v", userID, err)
		}
		return 0, false
	}
	return v, true
}

// Set stores st for the shorter of ttl and the cache TTL, unless userID was invalidated
// after version was read.
func (c *RedisStatusCache) Set(ctx context.Context, userID uint, version int64, st *services.Status, ttl time.Duration) {
	if c.client == nil {
		return
	}
	if ttl <= 0 || ttl > c.ttl {
		ttl = c.ttl
	}
	b, err := json.Marshal(st)
	if err != nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, cacheOpTimeout)
	defer cancel()
	err = setIfVersion.Run(ctx, c.client,
		[]string{statusKey(userID), versionKey(userID)},
		strconv.FormatInt(version, 10), b, max(ttl.Milliseconds(), 1)).Err()
	if err != nil && Sugar != nil {
		Sugar.Warnf("cache set failed user=%d err=%v", userID, err)
	}
}

// Invalidate bumps the version of userID and drops its snapshot, so a status computed
// before the mutation can no longer be stored.
func (c *RedisStatusCache) Invalidate(ctx context.Context, userID uint) {
	if c.client == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cacheOpTimeout)
	defer cancel()
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, versionKey(userID))
		pipe.Expire(ctx, versionKey(userID), versionKeyLife)
		pipe.Del(ctx, statusKey(userID))
		return nil
	})
	if err != nil && Sugar != nil {
		Sugar.Warnf("cache invalidate failed user=%d err=%v", userID, err)
	}
}
