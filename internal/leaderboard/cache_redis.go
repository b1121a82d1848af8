package leaderboard

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/robalobadob/dailypuzzle/internal/game"
)

// DefaultTTL bounds how stale a cached leaderboard can get when an
// invalidation is lost.
const DefaultTTL = 30 * time.Second

// RedisCache keeps one hash per game type ("lb:<gameType>"), one field per limit.
type RedisCache struct {
	rdb *redis.Client
	ttl time.Duration
}

var _ Cache = (*RedisCache)(nil)

// NewRedisClient parses a redis:// URL.
func NewRedisClient(url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return redis.NewClient(opt), nil
}

func NewRedisCache(rdb *redis.Client, ttl time.Duration) *RedisCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisCache{rdb: rdb, ttl: ttl}
}

func (c *RedisCache) key(gameType game.Type) string { return "lb:" + string(gameType) }

func (c *RedisCache) Get(ctx context.Context, gameType game.Type, limit int) ([]Entry, bool, error) {
	raw, err := c.rdb.HGet(ctx, c.key(gameType), strconv.Itoa(limit)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var entries []Entry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, false, fmt.Errorf("decode cached leaderboard: %w", err)
	}
	return entries, true, nil
}

// Set stores entries and refreshes the TTL of the game type's hash.
func (c *RedisCache) Set(ctx context.Context, gameType game.Type, limit int, entries []Entry) error {
	raw, err := json.Marshal(entries)
	if err != nil {
		return err
	}
	key := c.key(gameType)
	_, err = c.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HSet(ctx, key, strconv.Itoa(limit), raw)
		p.Expire(ctx, key, c.ttl)
		return nil
	})
	return err
}

func (c *RedisCache) Invalidate(ctx context.Context, gameType game.Type) error {
	return c.rdb.Del(ctx, c.key(gameType)).Err()
}
