package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/vacation-rental-marketplace/internal/config"
	"github.com/iliyamo/vacation-rental-marketplace/internal/lib/logger/slogdiscard"
)

// fakeRedis answers commands in-process so the client never dials.  It
// understands EVALSHA (via eval), GET and SETEX.
type fakeRedis struct {
	mu       sync.Mutex
	data     map[string]string
	eval     func() ([]any, error)
	evalKeys []string
	sets     int
}

func newFakeRedis(t *testing.T) (*fakeRedis, *redis.Client) {
	t.Helper()
	f := &fakeRedis{data: make(map[string]string)}
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	rdb.AddHook(f)
	t.Cleanup(func() { _ = rdb.Close() })
	return f, rdb
}

func (f *fakeRedis) DialHook(next redis.DialHook) redis.DialHook { return next }

func (f *fakeRedis) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return next
}

func (f *fakeRedis) ProcessHook(redis.ProcessHook) redis.ProcessHook {
	return func(_ context.Context, cmd redis.Cmder) error {
		f.mu.Lock()
		defer f.mu.Unlock()
		args := cmd.Args()
		switch c := cmd.(type) {
		case *redis.Cmd:
			f.evalKeys = append(f.evalKeys, fmt.Sprint(args[3]))
			vals, err := f.eval()
			if err != nil {
				c.SetErr(err)
				return err
			}
			c.SetVal(vals)
			return nil
		case *redis.StringCmd:
			v, ok := f.data[fmt.Sprint(args[1])]
			if !ok {
				c.SetErr(redis.Nil)
				return redis.Nil
			}
			c.SetVal(v)
			return nil
		case *redis.StatusCmd:
			switch v := args[3].(type) {
			case []byte:
				f.data[fmt.Sprint(args[1])] = string(v)
			default:
				f.data[fmt.Sprint(args[1])] = fmt.Sprint(v)
			}
			f.sets++
			c.SetVal("OK")
			return nil
		}
		err := fmt.Errorf("unexpected command %q", cmd.Name())
		cmd.SetErr(err)
		return err
	}
}

func rateConfig() config.RateLimitConfig {
	return config.RateLimitConfig{
		Enabled:        true,
		Capacity:       5,
		RefillTokens:   1,
		RefillInterval: time.Second,
		TTL:            time.Minute,
		KeyStrategy:    "ip",
		Prefix:         "rl",
	}
}

func TestTokenBucket(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		result    []any
		err       error
		status    int
		remaining string
		retry     string
	}{
		{name: "allowed", result: []any{int64(1), int64(4), int64(0)}, status: http.StatusOK, remaining: "4"},
		{name: "limited", result: []any{int64(0), int64(0), int64(1500)}, status: http.StatusTooManyRequests, remaining: "0", retry: "2"},
		{name: "redis down fails open", err: errors.New("connection refused"), status: http.StatusOK},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			f, rdb := newFakeRedis(t)
			f.eval = func() ([]any, error) { return tc.result, tc.err }

			e := echo.New()
			e.GET("/x", whoami, NewTokenBucket(rateConfig(), rdb, slogdiscard.NewDiscardLogger()))
			rec := serve(e, "")

			assert.Equal(t, tc.status, rec.Code)
			assert.Equal(t, tc.remaining, rec.Header().Get("X-RateLimit-Remaining"))
			assert.Equal(t, tc.retry, rec.Header().Get("Retry-After"))
			if tc.status == http.StatusTooManyRequests {
				assert.JSONEq(t, `{"error":"rate limit exceeded","retryAfter":2}`, rec.Body.String())
			}
			require.Len(t, f.evalKeys, 1)
			assert.True(t, strings.HasPrefix(f.evalKeys[0], "rl:ip:"), f.evalKeys[0])
		})
	}
}

func TestRedisCache_MissThenHit(t *testing.T) {
	t.Parallel()
	f, rdb := newFakeRedis(t)

	calls := 0
	h := func(c echo.Context) error {
		calls++
		return c.JSON(http.StatusOK, echo.Map{"id": c.Param("id"), "calls": calls})
	}
	cfg := config.CacheConfig{Enabled: true, Methods: []string{"GET"}, TTL: time.Minute, Prefix: "cache", MaxBodyBytes: 1 << 20}
	e := echo.New()
	e.GET("/api/properties/:id", h, NewRedisCache(cfg, rdb, slogdiscard.NewDiscardLogger()))

	get := func(path, authz string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		if authz != "" {
			req.Header.Set(echo.HeaderAuthorization, authz)
		}
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		return rec
	}

	first := get("/api/properties/1", "")
	require.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, "MISS", first.Header().Get("X-Cache"))
	assert.Equal(t, 1, f.sets)

	second := get("/api/properties/1", "")
	require.Equal(t, http.StatusOK, second.Code)
	assert.Equal(t, "HIT", second.Header().Get("X-Cache"))
	assert.JSONEq(t, first.Body.String(), second.Body.String())
	assert.Contains(t, second.Header().Get(echo.HeaderContentType), echo.MIMEApplicationJSON)
	assert.Equal(t, 1, calls, "hit is served without the handler")

	other := get("/api/properties/2", "")
	assert.Equal(t, "MISS", other.Header().Get("X-Cache"))
	assert.Equal(t, 2, calls)

	authed := get("/api/properties/1", "Bearer abc")
	assert.Empty(t, authed.Header().Get("X-Cache"))
	assert.Equal(t, 3, calls)
	assert.Equal(t, 2, f.sets, "authenticated responses are never stored")
}

func TestRedisCache_SkipsErrors(t *testing.T) {
	t.Parallel()
	f, rdb := newFakeRedis(t)

	cfg := config.CacheConfig{Enabled: true, Methods: []string{"GET"}, TTL: time.Minute, Prefix: "cache", MaxBodyBytes: 1 << 20}
	e := echo.New()
	e.GET("/x", func(c echo.Context) error {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "property not found"})
	}, NewRedisCache(cfg, rdb, slogdiscard.NewDiscardLogger()))

	for i := 0; i < 2; i++ {
		rec := serve(e, "")
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, "MISS", rec.Header().Get("X-Cache"))
	}
	assert.Zero(t, f.sets)
}
