package ratelimit

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/httprate"
	"github.com/redis/go-redis/v9"
)

func newTestCounter(t *testing.T) (*RedisCounter, *miniredis.Miniredis) {
	t.Helper()
	s := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisCounter(client, "test:"), s
}

func TestIncrementAndGet(t *testing.T) {
	c, _ := newTestCounter(t)
	c.Config(10, time.Minute)

	now := time.Now().UTC().Truncate(time.Minute)
	prev := now.Add(-time.Minute)

	if err := c.Increment("10.0.0.1", prev); err != nil {
		t.Fatalf("Increment prev: %v", err)
	}
	if err := c.Increment("10.0.0.1", now); err != nil {
		t.Fatalf("Increment: %v", err)
	}
	if err := c.IncrementBy("10.0.0.1", now, 4); err != nil {
		t.Fatalf("IncrementBy: %v", err)
	}

	curr, previous, err := c.Get("10.0.0.1", now, prev)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if curr != 5 {
		t.Errorf("current = %d, want 5", curr)
	}
	if previous != 1 {
		t.Errorf("previous = %d, want 1", previous)
	}
}

func TestGetMissingKeys(t *testing.T) {
	c, _ := newTestCounter(t)
	now := time.Now()

	curr, prev, err := c.Get("nobody", now, now.Add(-time.Minute))
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if curr != 0 || prev != 0 {
		t.Errorf("got (%d, %d), want (0, 0)", curr, prev)
	}
}

func TestKeysExpire(t *testing.T) {
	c, s := newTestCounter(t)
	c.Config(10, time.Minute)
	now := time.Now().UTC().Truncate(time.Minute)

	if err := c.Increment("10.0.0.1", now); err != nil {
		t.Fatalf("Increment: %v", err)
	}
	key := "test:10.0.0.1:" + strconv.FormatInt(now.Unix(), 10)
	if ttl := s.TTL(key); ttl != 3*time.Minute {
		t.Errorf("ttl = %v, want 3m", ttl)
	}

	s.FastForward(4 * time.Minute)
	if s.Exists(key) {
		t.Error("expected window key to expire")
	}
}

func TestRedisUnavailable(t *testing.T) {
	c, s := newTestCounter(t)
	s.Close()

	if err := c.Increment("10.0.0.1", time.Now()); err == nil {
		t.Error("expected error with redis down")
	}
	if _, _, err := c.Get("10.0.0.1", time.Now(), time.Now()); err == nil {
		t.Error("expected error with redis down")
	}
}

func TestSharedBudgetAcrossLimiters(t *testing.T) {
	s := miniredis.RunT(t)
	newLimited := func() http.Handler {
		client := redis.NewClient(&redis.Options{Addr: s.Addr()})
		t.Cleanup(func() { client.Close() })
		limiter := httprate.Limit(2, time.Minute,
			httprate.WithKeyFuncs(httprate.KeyByIP),
			httprate.WithLimitCounter(NewRedisCounter(client, "test:")),
		)
		return limiter(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))
	}
	// Two instances behind one Redis share the budget.
	a, b := newLimited(), newLimited()

	codes := make([]int, 0, 3)
	for _, h := range []http.Handler{a, b, a} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "192.0.2.10:1234"
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		codes = append(codes, rr.Code)
	}

	if codes[0] != http.StatusOK || codes[1] != http.StatusOK {
		t.Fatalf("first two requests = %v, want 200s", codes[:2])
	}
	if codes[2] != http.StatusTooManyRequests {
		t.Errorf("third request = %d, want 429", codes[2])
	}
}

func TestConnect(t *testing.T) {
	s := miniredis.RunT(t)
	host, port, _ := net.SplitHostPort(s.Addr())
	p, _ := strconv.Atoi(port)

	client, err := Connect(context.Background(), Options{Host: host, Port: p})
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer client.Close()

	s.Close()
	if _, err := Connect(context.Background(), Options{Host: host, Port: p}); err == nil {
		t.Error("expected error connecting to a stopped server")
	}
}
