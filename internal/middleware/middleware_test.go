package middleware

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/vacation-rental-marketplace/internal/config"
	"github.com/iliyamo/vacation-rental-marketplace/internal/lib/logger/slogdiscard"
	"github.com/iliyamo/vacation-rental-marketplace/internal/model"
	"github.com/iliyamo/vacation-rental-marketplace/internal/utils"
)

const secret = "test-secret"

func token(t *testing.T, id uint64, role model.Role) string {
	t.Helper()
	tok, err := utils.NewAccessToken(secret, id, string(role), 5)
	require.NoError(t, err)
	return tok.Token
}

// whoami echoes the identity the middlewares placed in the context.
func whoami(c echo.Context) error {
	id, ok := UserID(c)
	return c.JSON(http.StatusOK, echo.Map{"id": id, "authenticated": ok, "role": Role(c)})
}

func serve(e *echo.Echo, authz string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	if authz != "" {
		req.Header.Set(echo.HeaderAuthorization, authz)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestJWTAuth(t *testing.T) {
	t.Parallel()
	e := echo.New()
	e.GET("/x", whoami, JWTAuth(secret))

	tests := []struct {
		name   string
		authz  string
		status int
		body   string
	}{
		{name: "missing", status: http.StatusUnauthorized, body: "missing bearer token"},
		{name: "not bearer", authz: "Basic abc", status: http.StatusUnauthorized, body: "missing bearer token"},
		{name: "garbage", authz: "Bearer nope", status: http.StatusUnauthorized, body: "invalid token"},
		{name: "valid", authz: "Bearer " + token(t, 7, model.RoleOwner), status: http.StatusOK, body: `"role":"owner"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(e, tt.authz)
			assert.Equal(t, tt.status, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.body)
		})
	}
}

func TestOptionalJWT(t *testing.T) {
	t.Parallel()
	e := echo.New()
	e.GET("/x", whoami, OptionalJWT(secret))

	rec := serve(e, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"authenticated":false`)

	rec = serve(e, "Bearer "+token(t, 9, model.RoleUser))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"id":9`)
	assert.Contains(t, rec.Body.String(), `"authenticated":true`)

	rec = serve(e, "Bearer broken")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireRole(t *testing.T) {
	t.Parallel()
	e := echo.New()
	e.GET("/x", whoami, JWTAuth(secret), RequireRole(model.RoleStaff, model.RoleAdmin))

	assert.Equal(t, http.StatusOK, serve(e, "Bearer "+token(t, 2, model.RoleStaff)).Code)
	assert.Equal(t, http.StatusOK, serve(e, "Bearer "+token(t, 1, model.RoleAdmin)).Code)
	rec := serve(e, "Bearer "+token(t, 4, model.RoleUser))
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.JSONEq(t, `{"error":"forbidden"}`, rec.Body.String())
}

func TestRequestLogger(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	log := slog.New(slog.NewJSONHandler(&buf, nil))

	e := echo.New()
	e.Use(echomw.RequestID(), RequestLogger(log))
	e.GET("/ok", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	e.GET("/boom", func(c echo.Context) error { return echo.NewHTTPError(http.StatusTeapot, "short and stout") })

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ok", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, buf.String(), `"status":200`)
	assert.Contains(t, buf.String(), `"request_id":"`+rec.Header().Get(echo.HeaderXRequestID)+`"`)

	buf.Reset()
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boom", nil))
	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.Contains(t, buf.String(), `"status":418`)
	assert.Contains(t, buf.String(), "request failed")
}

func TestRedisMiddlewaresPassThroughWithoutClient(t *testing.T) {
	t.Parallel()
	log := slogdiscard.NewDiscardLogger()
	e := echo.New()
	e.Use(
		NewTokenBucket(config.RateLimitConfig{Enabled: true, Capacity: 1}, nil, log),
		NewRedisCache(config.CacheConfig{Enabled: true, Methods: []string{"GET"}}, nil, log),
	)
	e.GET("/x", whoami)

	for i := 0; i < 3; i++ {
		rec := serve(e, "")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Empty(t, rec.Header().Get("X-Cache"))
	}
}

func TestPayloadRoundTrip(t *testing.T) {
	t.Parallel()
	hdr := http.Header{"Content-Type": {"application/json"}}
	bs, err := encodePayload(http.StatusOK, hdr, []byte(`{"a":1}`))
	require.NoError(t, err)

	status, got, body, ok := decodePayload(bs)
	require.True(t, ok)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "application/json", got.Get("Content-Type"))
	assert.Equal(t, `{"a":1}`, string(body))

	_, _, _, ok = decodePayload(bs[:5])
	assert.False(t, ok)
	_, _, _, ok = decodePayload(append([]byte{0, 0, 0, 200, 0xff, 0xff, 0, 0}, 'x'))
	assert.False(t, ok)
}

func TestCacheKeyDistinguishesParamsAndQuery(t *testing.T) {
	t.Parallel()
	cfg := config.CacheConfig{Prefix: "cache", KeyStrategy: "route_query"}
	e := echo.New()

	keyFor := func(id, query string) string {
		req := httptest.NewRequest(http.MethodGet, "/api/properties/"+id+query, nil)
		c := e.NewContext(req, httptest.NewRecorder())
		c.SetPath("/api/properties/:id")
		c.SetParamNames("id")
		c.SetParamValues(id)
		return cacheKeyFrom(cfg, c)
	}

	a := keyFor("1", "")
	assert.True(t, strings.HasPrefix(a, "cache:"))
	assert.Equal(t, a, keyFor("1", ""))
	assert.NotEqual(t, a, keyFor("2", ""))
	assert.NotEqual(t, a, keyFor("1", "?location=porto"))

	cfg.KeyStrategy = "route"
	assert.Equal(t, keyFor("1", ""), keyFor("1", "?location=porto"))
}

func TestBuildRateKey(t *testing.T) {
	t.Parallel()
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/api/bookings", nil)
	req.Header.Set(echo.HeaderXRealIP, "10.0.0.1")
	c := e.NewContext(req, httptest.NewRecorder())
	c.SetPath("/api/bookings")

	cfg := config.RateLimitConfig{Prefix: "rl", KeyStrategy: "ip_user_route"}
	assert.Equal(t, "rl:ip:10.0.0.1:user:anon:route:POST /api/bookings", buildRateKey(cfg, c))

	c.Set(ctxUserID, uint64(12))
	cfg.KeyStrategy = "user"
	assert.Equal(t, "rl:user:12", buildRateKey(cfg, c))
}
