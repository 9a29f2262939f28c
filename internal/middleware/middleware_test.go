package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/image-tattoo/internal/config"
	"github.com/iliyamo/image-tattoo/internal/utils"
)

func newRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb
}

func serve(e *echo.Echo, method, target string, hdr map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestJWTAuth(t *testing.T) {
	e := echo.New()
	e.GET("/me", func(c echo.Context) error {
		return c.JSON(http.StatusOK, echo.Map{"user_id": UserID(c), "user_name": UserName(c), "role": Role(c)})
	}, JWTAuth("secret"))

	rec := serve(e, http.MethodGet, "/me", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = serve(e, http.MethodGet, "/me", map[string]string{"Authorization": "Bearer garbage"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	at, err := utils.NewAccessToken("secret", "u-1", "alice", "doctor", 5)
	require.NoError(t, err)
	rec = serve(e, http.MethodGet, "/me", map[string]string{"Authorization": "Bearer " + at.Token})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"user_id":"u-1","user_name":"alice","role":"doctor"}`, rec.Body.String())
}

func TestRequireRole(t *testing.T) {
	e := echo.New()
	ok := func(c echo.Context) error { return c.NoContent(http.StatusNoContent) }
	e.DELETE("/images/:id", ok, JWTAuth("secret"), RequireRole("admin"))

	admin, err := utils.NewAccessToken("secret", "u-1", "root", "admin", 5)
	require.NoError(t, err)
	nurse, err := utils.NewAccessToken("secret", "u-2", "n", "nurse", 5)
	require.NoError(t, err)

	rec := serve(e, http.MethodDelete, "/images/1", map[string]string{"Authorization": "Bearer " + nurse.Token})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec = serve(e, http.MethodDelete, "/images/1", map[string]string{"Authorization": "Bearer " + admin.Token})
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestTokenBucket_BlocksAfterCapacity(t *testing.T) {
	rdb := newRedis(t)
	cfg := config.RateLimitConfig{
		Enabled:        true,
		Capacity:       2,
		RefillTokens:   1,
		RefillInterval: time.Hour,
		TTL:            time.Hour,
		KeyStrategy:    "ip_route",
		Prefix:         "rl",
	}
	e := echo.New()
	e.POST("/login", func(c echo.Context) error { return c.NoContent(http.StatusOK) }, NewTokenBucket(cfg, rdb))

	for i := 0; i < 2; i++ {
		rec := serve(e, http.MethodPost, "/login", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "2", rec.Header().Get("X-RateLimit-Limit"))
	}
	rec := serve(e, http.MethodPost, "/login", nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
}

func TestTokenBucket_Refills(t *testing.T) {
	rdb := newRedis(t)
	cfg := config.RateLimitConfig{Capacity: 1, RefillTokens: 1, RefillInterval: time.Second, TTL: time.Minute}
	ctx := context.Background()
	now := time.Now()

	d, err := takeToken(ctx, rdb, cfg, "k", now)
	require.NoError(t, err)
	assert.True(t, d.allowed)

	d, err = takeToken(ctx, rdb, cfg, "k", now.Add(100*time.Millisecond))
	require.NoError(t, err)
	assert.False(t, d.allowed)
	assert.Equal(t, int64(900), d.retryMs)

	d, err = takeToken(ctx, rdb, cfg, "k", now.Add(1100*time.Millisecond))
	require.NoError(t, err)
	assert.True(t, d.allowed)
}

func TestTokenBucket_DisabledPassesThrough(t *testing.T) {
	e := echo.New()
	e.GET("/", func(c echo.Context) error { return c.NoContent(http.StatusOK) },
		NewTokenBucket(config.RateLimitConfig{Enabled: true, Capacity: 1}, nil))
	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, serve(e, http.MethodGet, "/", nil).Code)
	}
}

func TestBuildRateKey(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/upload", nil)
	req.Header.Set("X-Real-Ip", "10.0.0.1")
	c := e.NewContext(req, httptest.NewRecorder())
	c.SetPath("/upload")

	assert.Equal(t, "rl:ip:10.0.0.1:route:POST /upload", buildRateKey(config.RateLimitConfig{Prefix: "rl", KeyStrategy: "ip_route"}, c))
	assert.Equal(t, "rl:user:anon", buildRateKey(config.RateLimitConfig{Prefix: "rl", KeyStrategy: "user"}, c))
	c.Set(CtxUserID, "u-7")
	assert.Equal(t, "rl:user:u-7", buildRateKey(config.RateLimitConfig{Prefix: "rl", KeyStrategy: "user"}, c))
}

func TestRedisCache_HitThenInvalidate(t *testing.T) {
	rdb := newRedis(t)
	cfg := config.CacheConfig{
		Enabled:      true,
		Methods:      map[string]bool{"GET": true},
		TTL:          time.Minute,
		KeyStrategy:  "route_query",
		Prefix:       "imgcache",
		MaxBodyBytes: 1 << 20,
	}
	calls := 0
	e := echo.New()
	e.GET("/images", func(c echo.Context) error {
		calls++
		return c.JSON(http.StatusOK, echo.Map{"calls": calls})
	}, NewRedisCache(cfg, rdb))

	rec := serve(e, http.MethodGet, "/images", nil)
	assert.Equal(t, "MISS", rec.Header().Get("X-Cache"))
	first := rec.Body.String()

	rec = serve(e, http.MethodGet, "/images", nil)
	assert.Equal(t, "HIT", rec.Header().Get("X-Cache"))
	assert.Equal(t, first, rec.Body.String())
	assert.Equal(t, "application/json", strings.Split(rec.Header().Get(echo.HeaderContentType), ";")[0])
	assert.Equal(t, 1, calls)

	require.NoError(t, InvalidateCache(context.Background(), rdb, cfg.Prefix))
	rec = serve(e, http.MethodGet, "/images", nil)
	assert.Equal(t, "MISS", rec.Header().Get("X-Cache"))
	assert.Equal(t, 2, calls)
}

func TestRedisCache_SkipsErrorsAndOversizedBodies(t *testing.T) {
	rdb := newRedis(t)
	cfg := config.CacheConfig{Enabled: true, Methods: map[string]bool{"GET": true}, TTL: time.Minute, Prefix: "imgcache", MaxBodyBytes: 16}
	e := echo.New()
	e.GET("/big", func(c echo.Context) error {
		return c.String(http.StatusOK, strings.Repeat("x", 64))
	}, NewRedisCache(cfg, rdb))
	e.GET("/fail", func(c echo.Context) error {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "x"})
	}, NewRedisCache(cfg, rdb))

	for i := 0; i < 2; i++ {
		rec := serve(e, http.MethodGet, "/big", nil)
		assert.Equal(t, "MISS", rec.Header().Get("X-Cache"))
		assert.Len(t, rec.Body.String(), 64)
		rec = serve(e, http.MethodGet, "/fail", nil)
		assert.Equal(t, "MISS", rec.Header().Get("X-Cache"))
	}
	keys, err := rdb.Keys(context.Background(), "imgcache:*").Result()
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestInvalidateCache_NilClient(t *testing.T) {
	assert.NoError(t, InvalidateCache(context.Background(), nil, "imgcache"))
}

func TestPayloadRoundTrip(t *testing.T) {
	hdr := http.Header{"Content-Type": {"application/json"}}
	bs, err := encodePayload(http.StatusOK, hdr, []byte(`{"a":1}`))
	require.NoError(t, err)
	status, got, body, ok := decodePayload(bs)
	require.True(t, ok)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, hdr, got)
	assert.Equal(t, `{"a":1}`, string(body))

	_, _, _, ok = decodePayload([]byte{0, 1})
	assert.False(t, ok)
}
