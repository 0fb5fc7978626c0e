package session

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func setupTestRedis(t *testing.T, profile string) (*RedisStore, *miniredis.Miniredis) {
	s := miniredis.RunT(t)
	store, err := NewRedisStore("redis://"+s.Addr(), profile)
	if err != nil {
		t.Fatalf("failed to create redis store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store, s
}

func TestNewRedisStore(t *testing.T) {
	store, _ := setupTestRedis(t, "default")
	if err := store.Ping(context.Background()); err != nil {
		t.Errorf("Ping failed: %v", err)
	}
}

func TestNewRedisStoreRejectsBadURL(t *testing.T) {
	if _, err := NewRedisStore("not a url", "default"); err == nil {
		t.Fatal("expected error for malformed url")
	}
}

func TestRedisStoreRoundTrip(t *testing.T) {
	store, s := setupTestRedis(t, "work")
	ctx := context.Background()

	token, err := store.Load(ctx)
	if err != nil || token != "" {
		t.Fatalf("Load() on empty store = %q, %v", token, err)
	}

	if err := store.Save(ctx, "tok-123"); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if got, _ := s.Get("medialib:token:work"); got != "tok-123" {
		t.Fatalf("stored value = %q", got)
	}
	if ttl := s.TTL("medialib:token:work"); ttl != 0 {
		t.Fatalf("token must not expire in redis, ttl = %v", ttl)
	}

	token, err = store.Load(ctx)
	if err != nil || token != "tok-123" {
		t.Fatalf("Load() = %q, %v", token, err)
	}

	if err := store.Clear(ctx); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	if err := store.Clear(ctx); err != nil {
		t.Fatalf("second Clear failed: %v", err)
	}
	token, err = store.Load(ctx)
	if err != nil || token != "" {
		t.Fatalf("Load() after Clear = %q, %v", token, err)
	}
}

func TestRedisStoreProfilesAreIsolated(t *testing.T) {
	s := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	defer client.Close()

	a := NewRedisStoreWithClient(client, "a")
	b := NewRedisStoreWithClient(client, "")
	ctx := context.Background()

	if err := a.Save(ctx, "token-a"); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if got, _ := b.Load(ctx); got != "" {
		t.Fatalf("profile leak: %q", got)
	}
	if !s.Exists("medialib:token:a") {
		t.Fatal("expected key for profile a")
	}
}

func TestRedisStoreLoadFailsWhenServerGone(t *testing.T) {
	store, s := setupTestRedis(t, "default")
	s.Close()

	if _, err := store.Load(context.Background()); err == nil {
		t.Fatal("expected error when redis is down")
	}
}
