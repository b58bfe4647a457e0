package middleware

import (
    "bytes"
    "context"
    "crypto/sha1"
    "encoding/binary"
    "encoding/json"
    "fmt"
    "net/http"
    "strings"
    "time"

    "github.com/labstack/echo/v4"
    "github.com/redis/go-redis/v9"
    "go.uber.org/zap"

    "github.com/iliyamo/unit-inventory/internal/config"
)

// captureWriter captures response body/status while forwarding to the client.
type captureWriter struct {
    http.ResponseWriter
    status int
    buf    bytes.Buffer
    size   int64
    limit  int64
}

func (cw *captureWriter) WriteHeader(code int) { cw.status = code; cw.ResponseWriter.WriteHeader(code) }

func (cw *captureWriter) Write(b []byte) (int, error) {
    if cw.limit <= 0 || cw.size < cw.limit {
        remain := cw.limit - cw.size
        switch {
        case cw.limit <= 0:
            cw.buf.Write(b)
        case int64(len(b)) <= remain:
            cw.buf.Write(b)
        default:
            cw.buf.Write(b[:remain])
        }
    }
    cw.size += int64(len(b))
    return cw.ResponseWriter.Write(b)
}

// truncated reports whether the body exceeded the capture limit.
func (cw *captureWriter) truncated() bool { return cw.limit > 0 && cw.size > cw.limit }

// ResponseCache stores successful GET responses in Redis.  Entries are
// grouped by entity; each entity has a generation counter that is part of
// every key, so Invalidate makes all older entries unreachable at once.
// A nil *ResponseCache, or one without a Redis client, caches nothing.
type ResponseCache struct {
    cfg config.CacheConfig
    rdb *redis.Client
    log *zap.Logger
}

// NewResponseCache returns a cache bound to rdb.  rdb may be nil.
func NewResponseCache(cfg config.CacheConfig, rdb *redis.Client, log *zap.Logger) *ResponseCache {
    if log == nil {
        log = zap.NewNop()
    }
    if cfg.TTL <= 0 {
        cfg.TTL = 30 * time.Second
    }
    return &ResponseCache{cfg: cfg, rdb: rdb, log: log}
}

func (rc *ResponseCache) enabled() bool { return rc != nil && rc.cfg.Enabled && rc.rdb != nil }

func (rc *ResponseCache) genKey(entity string) string { return rc.cfg.Prefix + ":gen:" + entity }

// Invalidate bumps the generation of every entity.
func (rc *ResponseCache) Invalidate(ctx context.Context, entities ...string) error {
    if !rc.enabled() || len(entities) == 0 {
        return nil
    }
    _, err := rc.rdb.Pipelined(ctx, func(p redis.Pipeliner) error {
        for _, e := range entities {
            p.Incr(ctx, rc.genKey(e))
        }
        return nil
    })
    return err
}

// generations reads the current generation of each entity; missing
// counters read as "0".
func (rc *ResponseCache) generations(ctx context.Context, entities []string) ([]string, error) {
    keys := make([]string, len(entities))
    for i, e := range entities {
        keys[i] = rc.genKey(e)
    }
    vals, err := rc.rdb.MGet(ctx, keys...).Result()
    if err != nil {
        return nil, err
    }
    out := make([]string, len(vals))
    for i, v := range vals {
        if s, ok := v.(string); ok {
            out[i] = s
        } else {
            out[i] = "0"
        }
    }
    return out, nil
}

// cacheKey hashes the method, route, query and entity generations.
func cacheKey(prefix, method, route, query string, entities, gens []string) string {
    parts := []string{"method", method, "route", route, "q", query}
    for i, e := range entities {
        parts = append(parts, e, gens[i])
    }
    sum := sha1.Sum([]byte(strings.Join(parts, ":")))
    return fmt.Sprintf("%s:%x", prefix, sum[:])
}

// For returns middleware caching responses that depend on entities.
func (rc *ResponseCache) For(entities ...string) echo.MiddlewareFunc {
    if !rc.enabled() {
        return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
    }
    maxBody := int64(rc.cfg.MaxBodyBytes)

    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            r := c.Request()
            if !rc.cfg.Methods[strings.ToUpper(r.Method)] {
                return next(c)
            }
            ctx := r.Context()
            gens, err := rc.generations(ctx, entities)
            if err != nil {
                rc.log.Debug("cache unavailable", zap.Error(err))
                return next(c)
            }
            key := cacheKey(rc.cfg.Prefix, r.Method, c.Path(), r.URL.RawQuery, entities, gens)

            if bs, err := rc.rdb.Get(ctx, key).Bytes(); err == nil {
                if status, hdr, body, ok := decodePayload(bs); ok {
                    for k, vals := range hdr {
                        if strings.EqualFold(k, "Content-Length") {
                            continue
                        }
                        for _, v := range vals {
                            c.Response().Header().Add(k, v)
                        }
                    }
                    c.Response().Header().Set("X-Cache", "HIT")
                    c.Response().WriteHeader(status)
                    if len(body) > 0 {
                        _, _ = c.Response().Write(body)
                    }
                    return nil
                }
            }

            cw := &captureWriter{ResponseWriter: c.Response().Writer, status: http.StatusOK, limit: maxBody}
            c.Response().Writer = cw
            c.Response().Header().Set("X-Cache", "MISS")

            if err := next(c); err != nil {
                return err
            }
            if cw.status != http.StatusOK || cw.truncated() {
                return nil
            }
            hdr := make(http.Header, len(c.Response().Header()))
            for k, vals := range c.Response().Header() {
                if strings.EqualFold(k, "X-Cache") {
                    continue
                }
                hdr[k] = append([]string(nil), vals...)
            }
            payload, err := encodePayload(cw.status, hdr, cw.buf.Bytes())
            if err != nil {
                return nil
            }
            if err := rc.rdb.SetEx(context.WithoutCancel(ctx), key, payload, rc.cfg.TTL).Err(); err != nil {
                rc.log.Debug("cache store failed", zap.String("key", key), zap.Error(err))
            }
            return nil
        }
    }
}

// encodePayload packs: [4 bytes status][4 bytes headerLen][headerJSON][body]
func encodePayload(status int, header http.Header, body []byte) ([]byte, error) {
    hdrJSON, err := json.Marshal(header)
    if err != nil {
        return nil, err
    }
    out := make([]byte, 8+len(hdrJSON)+len(body))
    binary.BigEndian.PutUint32(out[0:4], uint32(status))
    binary.BigEndian.PutUint32(out[4:8], uint32(len(hdrJSON)))
    copy(out[8:8+len(hdrJSON)], hdrJSON)
    copy(out[8+len(hdrJSON):], body)
    return out, nil
}

func decodePayload(bs []byte) (status int, header http.Header, body []byte, ok bool) {
    if len(bs) < 8 {
        return 0, nil, nil, false
    }
    status = int(binary.BigEndian.Uint32(bs[0:4]))
    hlen := int(binary.BigEndian.Uint32(bs[4:8]))
    if hlen < 0 || 8+hlen > len(bs) {
        return 0, nil, nil, false
    }
    hdr := make(http.Header)
    if hlen > 0 {
        if err := json.Unmarshal(bs[8:8+hlen], &hdr); err != nil {
            return 0, nil, nil, false
        }
    }
    return status, hdr, bs[8+hlen:], true
}
