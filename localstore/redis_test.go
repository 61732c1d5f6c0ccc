package localstore

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newRedisStore(t *testing.T, ttl time.Duration) (*Redis, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return NewRedis(client, ttl), mr
}

func TestRedisPutGetDelete(t *testing.T) {
	store, _ := newRedisStore(t, time.Minute)
	ctx := context.Background()
	key := "boardsync/workspace-preferences/user-1"

	if _, ok, err := store.Get(ctx, key); err != nil || ok {
		t.Fatalf("expected clean miss, ok=%v err=%v", ok, err)
	}

	if err := store.Put(ctx, key, []byte(`{"grouping":"label"}`)); err != nil {
		t.Fatalf("put: %v", err)
	}
	data, ok, err := store.Get(ctx, key)
	if err != nil || !ok {
		t.Fatalf("expected hit, ok=%v err=%v", ok, err)
	}
	if string(data) != `{"grouping":"label"}` {
		t.Fatalf("unexpected value: %s", data)
	}

	if err := store.Delete(ctx, key); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok, _ := store.Get(ctx, key); ok {
		t.Fatal("expected miss after delete")
	}
}

func TestRedisPutAppliesTTL(t *testing.T) {
	store, mr := newRedisStore(t, time.Minute)

	if err := store.Put(context.Background(), "k", []byte("v")); err != nil {
		t.Fatalf("put: %v", err)
	}
	if ttl := mr.TTL("k"); ttl <= 0 || ttl > time.Minute {
		t.Fatalf("unexpected TTL: %v", ttl)
	}
}

func TestRedisZeroTTLKeepsEntry(t *testing.T) {
	store, mr := newRedisStore(t, 0)

	if err := store.Put(context.Background(), "k", []byte("v")); err != nil {
		t.Fatalf("put: %v", err)
	}
	if ttl := mr.TTL("k"); ttl != 0 {
		t.Fatalf("expected persistent entry, TTL=%v", ttl)
	}
}
