package tokens

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/example/room-reservations/internal/testfixtures"
)

func newRedisStoreForTest(t *testing.T, clock *testfixtures.Clock, gen Generator) (*miniredis.Miniredis, *RedisStore) {
	t.Helper()
	m := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: m.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return m, NewRedisStore(client, "test", time.Minute, gen, clock.NowFunc(), nil)
}

func TestRedisStore_IssueAndVerify(t *testing.T) {
	ctx := context.Background()

	t.Run("expires against the injected clock and removes the key", func(t *testing.T) {
		clock := testfixtures.NewClock(time.Time{})
		m, store := newRedisStoreForTest(t, clock, nil)

		token, err := store.Issue(ctx, time.Minute)
		if err != nil {
			t.Fatalf("Issue returned error: %v", err)
		}
		if !store.Verify(ctx, token) {
			t.Fatal("expected freshly issued token to verify")
		}
		if !m.Exists("test:" + token) {
			t.Fatal("expected token key in redis")
		}

		clock.Advance(61 * time.Second)
		if store.Verify(ctx, token) {
			t.Fatal("expected token to be rejected after expiry")
		}
		if m.Exists("test:" + token) {
			t.Fatal("expected expired token key to be deleted")
		}
		if store.Verify(ctx, token) {
			t.Fatal("expected second verify to stay false")
		}
	})

	t.Run("sets a garbage collection ttl on the key", func(t *testing.T) {
		clock := testfixtures.NewClock(time.Time{})
		m, store := newRedisStoreForTest(t, clock, nil)

		token, err := store.Issue(ctx, 2*time.Minute)
		if err != nil {
			t.Fatalf("Issue returned error: %v", err)
		}
		if ttl := m.TTL("test:" + token); ttl != 2*time.Minute+gcGrace {
			t.Fatalf("unexpected ttl %s", ttl)
		}
	})

	t.Run("never overwrites an existing token", func(t *testing.T) {
		clock := testfixtures.NewClock(time.Time{})
		sequence := []string{"taken", "taken", "other"}
		var i int
		_, store := newRedisStoreForTest(t, clock, func() (string, error) {
			value := sequence[i]
			i++
			return value, nil
		})

		if first, err := store.Issue(ctx, 0); err != nil || first != "taken" {
			t.Fatalf("unexpected first token %q (err %v)", first, err)
		}
		if second, err := store.Issue(ctx, 0); err != nil || second != "other" {
			t.Fatalf("expected regenerated token, got %q (err %v)", second, err)
		}
	})

	t.Run("revoke removes the token", func(t *testing.T) {
		clock := testfixtures.NewClock(time.Time{})
		_, store := newRedisStoreForTest(t, clock, nil)

		token, err := store.Issue(ctx, 0)
		if err != nil {
			t.Fatalf("Issue returned error: %v", err)
		}
		if err := store.Revoke(ctx, token); err != nil {
			t.Fatalf("Revoke returned error: %v", err)
		}
		if store.Verify(ctx, token) {
			t.Fatal("expected revoked token to be rejected")
		}
	})

	t.Run("fails closed when redis is unavailable", func(t *testing.T) {
		clock := testfixtures.NewClock(time.Time{})
		m, store := newRedisStoreForTest(t, clock, nil)

		token, err := store.Issue(ctx, 0)
		if err != nil {
			t.Fatalf("Issue returned error: %v", err)
		}
		m.Close()
		if store.Verify(ctx, token) {
			t.Fatal("expected verification to fail closed")
		}
	})
}
