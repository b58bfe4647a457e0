package middleware

import (
    "context"
    "net/http"
    "net/http/httptest"
    "testing"
    "time"

    "github.com/labstack/echo/v4"
    "github.com/redis/go-redis/v9"
    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"
    "go.uber.org/zap/zaptest"

    "github.com/iliyamo/unit-inventory/internal/config"
    "github.com/iliyamo/unit-inventory/internal/model"
    "github.com/iliyamo/unit-inventory/internal/utils"
)

const secret = "test-secret"

func protected(t *testing.T, roles ...string) *echo.Echo {
    t.Helper()
    e := echo.New()
    e.GET("/me", func(c echo.Context) error {
        return c.JSON(http.StatusOK, echo.Map{"id": StaffID(c), "role": Role(c), "name": Name(c)})
    }, JWTAuth(secret), RequireRole(roles...))
    return e
}

func get(e *echo.Echo, path, token string) *httptest.ResponseRecorder {
    req := httptest.NewRequest(http.MethodGet, path, nil)
    if token != "" {
        req.Header.Set("Authorization", "Bearer "+token)
    }
    rec := httptest.NewRecorder()
    e.ServeHTTP(rec, req)
    return rec
}

func TestJWTAuthAndRoles(t *testing.T) {
    e := protected(t, model.RoleManager, model.RoleSales)

    rec := get(e, "/me", "")
    assert.Equal(t, http.StatusUnauthorized, rec.Code)

    rec = get(e, "/me", "garbage")
    assert.Equal(t, http.StatusUnauthorized, rec.Code)

    other, err := utils.NewAccessToken("other-secret", 1, model.RoleManager, "Layla", 5)
    require.NoError(t, err)
    rec = get(e, "/me", other.Token)
    assert.Equal(t, http.StatusUnauthorized, rec.Code)

    emp, err := utils.NewAccessToken(secret, 3, model.RoleEmployee, "Nour", 5)
    require.NoError(t, err)
    rec = get(e, "/me", emp.Token)
    assert.Equal(t, http.StatusForbidden, rec.Code)

    sales, err := utils.NewAccessToken(secret, 2, model.RoleSales, "Omar", 5)
    require.NoError(t, err)
    rec = get(e, "/me", sales.Token)
    require.Equal(t, http.StatusOK, rec.Code)
    assert.JSONEq(t, `{"id":2,"role":"SALES","name":"Omar"}`, rec.Body.String())
}

func TestRateKeyStrategies(t *testing.T) {
    e := echo.New()
    req := httptest.NewRequest(http.MethodPost, "/v1/units/abc/actions/sell", nil)
    req.Header.Set(echo.HeaderXRealIP, "10.0.0.7")
    c := e.NewContext(req, httptest.NewRecorder())
    c.SetPath("/v1/units/:id/actions/:action")

    cfg := config.RateLimitConfig{Prefix: "rl", KeyStrategy: "user_route"}
    assert.Equal(t, "rl:user:anon:route:POST /v1/units/:id/actions/:action", buildRateKey(cfg, c))

    c.Set(ctxStaffID, uint64(9))
    cfg.KeyStrategy = "ip"
    assert.Equal(t, "rl:ip:10.0.0.7", buildRateKey(cfg, c))
    cfg.KeyStrategy = "user"
    assert.Equal(t, "rl:user:9", buildRateKey(cfg, c))
    cfg.KeyStrategy = ""
    assert.Equal(t, "rl:ip:10.0.0.7:user:9:route:POST /v1/units/:id/actions/:action", buildRateKey(cfg, c))
}

// unreachable returns a client whose commands fail fast.
func unreachable(t *testing.T) *redis.Client {
    t.Helper()
    rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 100 * time.Millisecond, MaxRetries: -1})
    t.Cleanup(func() { _ = rdb.Close() })
    return rdb
}

func TestTokenBucketFailsOpen(t *testing.T) {
    cfg := config.RateLimitConfig{Enabled: true, Capacity: 1, RefillTokens: 1, RefillInterval: time.Second, TTL: time.Minute, Prefix: "rl"}
    for _, rdb := range []*redis.Client{nil, unreachable(t)} {
        e := echo.New()
        e.GET("/x", func(c echo.Context) error { return c.NoContent(http.StatusNoContent) }, NewTokenBucket(cfg, rdb, zaptest.NewLogger(t)))
        for i := 0; i < 3; i++ {
            assert.Equal(t, http.StatusNoContent, get(e, "/x", "").Code)
        }
    }
}

func TestResponseCacheDisabledPassesThrough(t *testing.T) {
    cfg := config.CacheConfig{Enabled: true, Methods: map[string]bool{"GET": true}, Prefix: "c"}
    var nilCache *ResponseCache
    caches := []*ResponseCache{
        nilCache,
        NewResponseCache(cfg, nil, nil),
        NewResponseCache(cfg, unreachable(t), zaptest.NewLogger(t)),
    }
    for _, rc := range caches {
        calls := 0
        e := echo.New()
        e.GET("/units", func(c echo.Context) error {
            calls++
            return c.JSON(http.StatusOK, echo.Map{"n": calls})
        }, rc.For("units"))
        get(e, "/units", "")
        rec := get(e, "/units", "")
        assert.Equal(t, http.StatusOK, rec.Code)
        assert.Equal(t, 2, calls)
        assert.NotEqual(t, "HIT", rec.Header().Get("X-Cache"))
    }
    assert.NoError(t, nilCache.Invalidate(context.Background(), "units"))
    assert.NoError(t, NewResponseCache(cfg, nil, nil).Invalidate(context.Background(), "units"))
}

func TestCacheKeyChangesWithGeneration(t *testing.T) {
    ents := []string{"units", "stats"}
    a := cacheKey("c", "GET", "/v1/units", "status=sold", ents, []string{"1", "4"})
    b := cacheKey("c", "GET", "/v1/units", "status=sold", ents, []string{"2", "4"})
    q := cacheKey("c", "GET", "/v1/units", "status=available", ents, []string{"1", "4"})
    assert.NotEqual(t, a, b)
    assert.NotEqual(t, a, q)
    assert.Equal(t, a, cacheKey("c", "GET", "/v1/units", "status=sold", ents, []string{"1", "4"}))
}

func TestPayloadRoundTrip(t *testing.T) {
    hdr := http.Header{"Content-Type": {"application/json"}}
    bs, err := encodePayload(http.StatusOK, hdr, []byte(`{"ok":true}`))
    require.NoError(t, err)
    status, got, body, ok := decodePayload(bs)
    require.True(t, ok)
    assert.Equal(t, http.StatusOK, status)
    assert.Equal(t, "application/json", got.Get("Content-Type"))
    assert.Equal(t, `{"ok":true}`, string(body))

    _, _, _, ok = decodePayload([]byte{0, 1})
    assert.False(t, ok)
}

func TestRequestLoggerReportsHandlerErrors(t *testing.T) {
    e := echo.New()
    e.Use(RequestLogger(zaptest.NewLogger(t)))
    e.GET("/boom", func(c echo.Context) error { return echo.NewHTTPError(http.StatusTeapot, "short and stout") })
    rec := get(e, "/boom", "")
    assert.Equal(t, http.StatusTeapot, rec.Code)
}
