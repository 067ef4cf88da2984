package store

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestRedis(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	s := NewRedisStoreFromClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { s.Close() })
	return s, mr
}

func TestRedisStore_UnreadCacheHitAndMiss(t *testing.T) {
	s, mr := newTestRedis(t)
	ctx := context.Background()

	gen, _, hit, err := s.CachedUnreadCount(ctx, 42)
	if err != nil {
		t.Fatalf("CachedUnreadCount() error = %v", err)
	}
	if hit {
		t.Fatal("empty cache reported a hit")
	}

	if err := s.CacheUnreadCount(ctx, gen, 42, 7, 30*time.Second); err != nil {
		t.Fatalf("CacheUnreadCount() error = %v", err)
	}

	_, count, hit, err := s.CachedUnreadCount(ctx, 42)
	if err != nil || !hit || count != 7 {
		t.Errorf("CachedUnreadCount() = %d, %v, %v; want 7, true, nil", count, hit, err)
	}

	if _, _, hit, _ := s.CachedUnreadCount(ctx, 43); hit {
		t.Error("another member hit member 42's count")
	}

	mr.FastForward(31 * time.Second)
	if _, _, hit, _ := s.CachedUnreadCount(ctx, 42); hit {
		t.Error("count still cached after its TTL")
	}
}

func TestRedisStore_InvalidateUnreadCount(t *testing.T) {
	s, _ := newTestRedis(t)
	ctx := context.Background()

	for _, id := range []int64{1, 2} {
		gen, _, _, _ := s.CachedUnreadCount(ctx, id)
		if err := s.CacheUnreadCount(ctx, gen, id, 3, time.Minute); err != nil {
			t.Fatalf("CacheUnreadCount(%d) error = %v", id, err)
		}
	}

	if err := s.InvalidateUnreadCount(ctx, 1); err != nil {
		t.Fatalf("InvalidateUnreadCount() error = %v", err)
	}
	if _, _, hit, _ := s.CachedUnreadCount(ctx, 1); hit {
		t.Error("member 1 still cached after invalidation")
	}
	if _, _, hit, _ := s.CachedUnreadCount(ctx, 2); !hit {
		t.Error("member 2 lost its count when member 1 was invalidated")
	}

	if err := s.InvalidateAllUnreadCounts(ctx); err != nil {
		t.Fatalf("InvalidateAllUnreadCounts() error = %v", err)
	}
	if _, _, hit, _ := s.CachedUnreadCount(ctx, 2); hit {
		t.Error("member 2 still cached after a generation bump")
	}
}

func TestRedisStore_CountComputedBeforeInvalidationIsNotServed(t *testing.T) {
	tests := []struct {
		name       string
		invalidate func(ctx context.Context, s *RedisStore) error
	}{
		{"new message", func(ctx context.Context, s *RedisStore) error {
			return s.InvalidateAllUnreadCounts(ctx)
		}},
		{"read marker", func(ctx context.Context, s *RedisStore) error {
			return s.InvalidateUnreadCount(ctx, 42)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _ := newTestRedis(t)
			ctx := context.Background()

			// Miss, then the inbox changes while the count is being computed.
			gen, _, _, err := s.CachedUnreadCount(ctx, 42)
			if err != nil {
				t.Fatalf("CachedUnreadCount() error = %v", err)
			}
			if err := tt.invalidate(ctx, s); err != nil {
				t.Fatalf("invalidate error = %v", err)
			}
			if err := s.CacheUnreadCount(ctx, gen, 42, 0, time.Minute); err != nil {
				t.Fatalf("CacheUnreadCount() error = %v", err)
			}

			if _, count, hit, _ := s.CachedUnreadCount(ctx, 42); hit {
				t.Errorf("stale count %d served after invalidation", count)
			}
		})
	}
}
