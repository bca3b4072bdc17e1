package middleware

import (
	"crypto/rand"
	"crypto/rsa"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/guesthouse-admin/internal/config"
	"github.com/iliyamo/guesthouse-admin/internal/model"
	"github.com/iliyamo/guesthouse-admin/internal/utils"
)

func newKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	return key
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

func TestJWTAuthAndPermissions(t *testing.T) {
	key := newKey(t)
	tok, err := utils.NewAccessToken(key, "U001", "alice", "Front Desk",
		[]string{model.PermGuestRead, model.PermInOutRead}, time.Minute, time.Now())
	require.NoError(t, err)

	e := echo.New()
	var actor model.Actor
	e.GET("/guests", func(c echo.Context) error {
		actor = ActorFrom(c)
		return c.NoContent(http.StatusOK)
	}, JWTAuth(&key.PublicKey), RequirePermissions(model.PermGuestRead, model.PermInOutRead))
	e.POST("/guests", func(c echo.Context) error { return c.NoContent(http.StatusCreated) },
		JWTAuth(&key.PublicKey), RequirePermissions(model.PermGuestRead, model.PermGuestCreate))

	rec := serve(e, http.MethodGet, "/guests", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = serve(e, http.MethodGet, "/guests", map[string]string{"Authorization": "Bearer not-a-token"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	auth := map[string]string{"Authorization": "Bearer " + tok.Token, "X-Real-IP": "10.0.0.9"}
	rec = serve(e, http.MethodGet, "/guests", auth)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, model.Actor{UserID: "U001", Username: "alice", IP: "10.0.0.9"}, actor)

	// all-of: guest.create is missing
	rec = serve(e, http.MethodPost, "/guests", auth)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestJWTAuth_RejectsOtherKey(t *testing.T) {
	key, other := newKey(t), newKey(t)
	tok, err := utils.NewAccessToken(other, "U001", "alice", "Admin", nil, time.Minute, time.Now())
	require.NoError(t, err)

	e := echo.New()
	e.GET("/me", func(c echo.Context) error { return c.NoContent(http.StatusOK) }, JWTAuth(&key.PublicKey))
	rec := serve(e, http.MethodGet, "/me", map[string]string{"Authorization": "Bearer " + tok.Token})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHasAll(t *testing.T) {
	assert.True(t, HasAll([]string{"a", "b"}))
	assert.True(t, HasAll([]string{"a", "b"}, "b", "a"))
	assert.False(t, HasAll(nil, "a"))
}

func TestRequestID(t *testing.T) {
	e := echo.New()
	e.Use(RequestID())
	e.GET("/", func(c echo.Context) error { return c.NoContent(http.StatusOK) })

	rec := serve(e, http.MethodGet, "/", nil)
	assert.Len(t, rec.Header().Get(echo.HeaderXRequestID), 36)

	rec = serve(e, http.MethodGet, "/", map[string]string{echo.HeaderXRequestID: "abc"})
	assert.Equal(t, "abc", rec.Header().Get(echo.HeaderXRequestID))
}

func rateCfg() config.RateLimitConfig {
	return config.RateLimitConfig{
		Enabled: true, Capacity: 2, RefillTokens: 1, RefillInterval: time.Hour,
		TTL: 2 * time.Hour, KeyStrategy: "ip_route", Prefix: "rl",
	}
}

func TestTokenBucket_Redis(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	e := echo.New()
	e.POST("/auth/login", func(c echo.Context) error { return c.NoContent(http.StatusOK) },
		NewTokenBucket(rateCfg(), rdb, nil))

	hdr := map[string]string{"X-Real-IP": "1.2.3.4"}
	assert.Equal(t, http.StatusOK, serve(e, http.MethodPost, "/auth/login", hdr).Code)
	rec := serve(e, http.MethodPost, "/auth/login", hdr)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))

	rec = serve(e, http.MethodPost, "/auth/login", hdr)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	assert.True(t, mr.Exists("rl:ip:1.2.3.4:route:POST /auth/login"))

	// a different client has its own bucket
	assert.Equal(t, http.StatusOK, serve(e, http.MethodPost, "/auth/login", map[string]string{"X-Real-IP": "5.6.7.8"}).Code)
}

func TestTokenBucket_LocalFallback(t *testing.T) {
	e := echo.New()
	e.POST("/auth/login", func(c echo.Context) error { return c.NoContent(http.StatusOK) },
		NewTokenBucket(rateCfg(), nil, nil))

	hdr := map[string]string{"X-Real-IP": "1.2.3.4"}
	assert.Equal(t, http.StatusOK, serve(e, http.MethodPost, "/auth/login", hdr).Code)
	assert.Equal(t, http.StatusOK, serve(e, http.MethodPost, "/auth/login", hdr).Code)
	assert.Equal(t, http.StatusTooManyRequests, serve(e, http.MethodPost, "/auth/login", hdr).Code)
}

func TestRedisCache(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	cfg := config.CacheConfig{Enabled: true, Methods: map[string]bool{"GET": true}, TTL: time.Minute,
		KeyStrategy: "route_query", Prefix: "cache", MaxBodyBytes: 1 << 20}
	calls := 0
	e := echo.New()
	g := e.Group("/masters", NewRedisCache(cfg, rdb, nil))
	g.GET("/drivers", func(c echo.Context) error {
		calls++
		return c.JSON(http.StatusOK, echo.Map{"calls": calls})
	})
	g.POST("/drivers", func(c echo.Context) error { return c.NoContent(http.StatusCreated) })

	rec := serve(e, http.MethodGet, "/masters/drivers", nil)
	assert.Equal(t, "MISS", rec.Header().Get("X-Cache"))
	rec = serve(e, http.MethodGet, "/masters/drivers", nil)
	assert.Equal(t, "HIT", rec.Header().Get("X-Cache"))
	assert.JSONEq(t, `{"calls":1}`, rec.Body.String())
	assert.Equal(t, 1, calls)

	// a write purges the cached lists
	assert.Equal(t, http.StatusCreated, serve(e, http.MethodPost, "/masters/drivers", nil).Code)
	assert.Empty(t, mr.Keys())
	rec = serve(e, http.MethodGet, "/masters/drivers", nil)
	assert.Equal(t, "MISS", rec.Header().Get("X-Cache"))
	assert.Equal(t, 2, calls)
}

func TestCachePurge_AssignmentWrite(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	cfg := config.CacheConfig{Enabled: true, Methods: map[string]bool{"GET": true}, TTL: time.Minute,
		KeyStrategy: "route_query", Prefix: "cache", MaxBodyBytes: 1 << 20}
	status := "Available"
	e := echo.New()
	e.GET("/masters/vehicles", func(c echo.Context) error {
		return c.JSON(http.StatusOK, echo.Map{"status": status})
	}, NewRedisCache(cfg, rdb, nil))
	purge := NewCachePurge(cfg, rdb, nil)
	e.POST("/assignments/vehicle", func(c echo.Context) error {
		status = "In Use"
		return c.NoContent(http.StatusCreated)
	}, purge)
	e.POST("/assignments/driver", func(c echo.Context) error {
		return c.JSON(http.StatusConflict, echo.Map{"error": "busy"})
	}, purge)

	serve(e, http.MethodGet, "/masters/vehicles", nil)
	rec := serve(e, http.MethodGet, "/masters/vehicles", nil)
	require.Equal(t, "HIT", rec.Header().Get("X-Cache"))

	// a rejected write keeps the cache
	serve(e, http.MethodPost, "/assignments/driver", nil)
	assert.NotEmpty(t, mr.Keys())

	require.Equal(t, http.StatusCreated, serve(e, http.MethodPost, "/assignments/vehicle", nil).Code)
	rec = serve(e, http.MethodGet, "/masters/vehicles", nil)
	assert.Equal(t, "MISS", rec.Header().Get("X-Cache"))
	assert.JSONEq(t, `{"status":"In Use"}`, rec.Body.String())
}

func TestCachePurge_DisabledIsPassthrough(t *testing.T) {
	called := false
	h := NewCachePurge(config.CacheConfig{}, nil, nil)(func(c echo.Context) error {
		called = true
		return nil
	})
	c := echo.New().NewContext(httptest.NewRequest(http.MethodPost, "/", nil), httptest.NewRecorder())
	require.NoError(t, h(c))
	assert.True(t, called)
}

func TestPayloadCodec(t *testing.T) {
	hdr := http.Header{"Content-Type": {"application/json"}}
	bs, err := encodePayload(200, hdr, []byte(`{"a":1}`))
	require.NoError(t, err)
	status, h, body, ok := decodePayload(bs)
	require.True(t, ok)
	assert.Equal(t, 200, status)
	assert.Equal(t, "application/json", h.Get("Content-Type"))
	assert.Equal(t, `{"a":1}`, string(body))

	_, _, _, ok = decodePayload([]byte{1, 2})
	assert.False(t, ok)
}
