package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// inboxGenerationKey is bumped on every new message so cached unread
	// counts for all members go stale at once.
	inboxGenerationKey = "inbox:generation"
)

// RedisStore handles Redis operations for caching and rate limiting.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a new Redis store.
func NewRedisStore(ctx context.Context, redisURL string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opts)

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return &RedisStore{client: client}, nil
}

// NewRedisStoreFromClient wraps an existing client.
func NewRedisStoreFromClient(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// Client exposes the underlying client for the rate limiter. It returns
// nil for a nil store.
func (s *RedisStore) Client() *redis.Client {
	if s == nil {
		return nil
	}
	return s.client
}

// Close closes the Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Ping checks the Redis connection.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// UnreadGeneration identifies the cache epoch a count was computed in. The
// global part moves on every new message, the member part on every read.
type UnreadGeneration struct {
	Global int64
	Member int64
}

func memberGenerationKey(memberID int64) string {
	return fmt.Sprintf("inbox:generation:member:%d", memberID)
}

// unreadCountKey returns the key for a member's cached unread count.
func unreadCountKey(gen UnreadGeneration, memberID int64) string {
	return fmt.Sprintf("unread:%d:%d:%d", gen.Global, gen.Member, memberID)
}

func (s *RedisStore) generation(ctx context.Context, memberID int64) (UnreadGeneration, error) {
	vals, err := s.client.MGet(ctx, inboxGenerationKey, memberGenerationKey(memberID)).Result()
	if err != nil {
		return UnreadGeneration{}, err
	}

	var gen UnreadGeneration
	for i, v := range vals {
		str, ok := v.(string)
		if !ok {
			continue // missing key counts as generation 0
		}
		n, err := strconv.ParseInt(str, 10, 64)
		if err != nil {
			return UnreadGeneration{}, err
		}
		if i == 0 {
			gen.Global = n
		} else {
			gen.Member = n
		}
	}
	return gen, nil
}

// CachedUnreadCount returns the cached unread count for a member along with
// the generation it was looked up in. hit is false on a miss; a count
// computed after a miss must be stored under the returned generation.
func (s *RedisStore) CachedUnreadCount(ctx context.Context, memberID int64) (gen UnreadGeneration, count int, hit bool, err error) {
	gen, err = s.generation(ctx, memberID)
	if err != nil {
		return gen, 0, false, err
	}

	val, err := s.client.Get(ctx, unreadCountKey(gen, memberID)).Result()
	if errors.Is(err, redis.Nil) {
		return gen, 0, false, nil
	}
	if err != nil {
		return gen, 0, false, err
	}

	n, err := strconv.Atoi(val)
	if err != nil {
		return gen, 0, false, nil
	}
	return gen, n, true, nil
}

// CacheUnreadCount stores a member's unread count under gen for ttl. If the
// generation moved while the count was computed, the key is already dead
// and the write is never read back.
func (s *RedisStore) CacheUnreadCount(ctx context.Context, gen UnreadGeneration, memberID int64, count int, ttl time.Duration) error {
	return s.client.Set(ctx, unreadCountKey(gen, memberID), count, ttl).Err()
}

// InvalidateUnreadCount makes one member's cached count stale.
func (s *RedisStore) InvalidateUnreadCount(ctx context.Context, memberID int64) error {
	return s.client.Incr(ctx, memberGenerationKey(memberID)).Err()
}

// InvalidateAllUnreadCounts makes every cached count stale. Old keys
// expire on their own TTL.
func (s *RedisStore) InvalidateAllUnreadCounts(ctx context.Context) error {
	return s.client.Incr(ctx, inboxGenerationKey).Err()
}
