package middleware

import (
    "bytes"
    "context"
    "crypto/sha1"
    "encoding/json"
    "fmt"
    "net/http"
    "strings"
    "time"

    "github.com/labstack/echo/v4"
    "github.com/redis/go-redis/v9"
    "go.uber.org/zap"

    "github.com/iliyamo/event-seat-reservation/internal/config"
)

// captureWriter captures response body/status while forwarding to the client.
type captureWriter struct {
    http.ResponseWriter
    status    int
    buf       bytes.Buffer
    limit     int
    truncated bool
}

func (cw *captureWriter) WriteHeader(code int) { cw.status = code; cw.ResponseWriter.WriteHeader(code) }
func (cw *captureWriter) Write(b []byte) (int, error) {
    if !cw.truncated {
        if cw.limit > 0 && cw.buf.Len()+len(b) > cw.limit {
            cw.truncated = true
            cw.buf.Reset()
        } else {
            cw.buf.Write(b)
        }
    }
    return cw.ResponseWriter.Write(b)
}

// cachedResponse is the value stored in Redis.
type cachedResponse struct {
    Status int         `json:"status"`
    Header http.Header `json:"header"`
    Body   []byte      `json:"body"`
}

// RedisCache caches successful GET responses in Redis, keyed by route and
// query.  Keys start with "<prefix>:<path>:" so a whole route can be dropped
// with Invalidate.
type RedisCache struct {
    cfg config.CacheConfig
    rdb *redis.Client
    log *zap.Logger
}

// NewRedisCache returns a cache; rdb may be nil, in which case Middleware is
// a pass-through and Invalidate a no-op.
func NewRedisCache(cfg config.CacheConfig, rdb *redis.Client, log *zap.Logger) *RedisCache {
    if cfg.TTL <= 0 { cfg.TTL = 5 * time.Minute }
    if log == nil {
        log = zap.NewNop()
    }
    return &RedisCache{cfg: cfg, rdb: rdb, log: log}
}

func (rc *RedisCache) enabled() bool { return rc.cfg.Enabled && rc.rdb != nil }

func (rc *RedisCache) key(c echo.Context) string {
    sum := sha1.Sum([]byte(c.Request().URL.RawQuery))
    return fmt.Sprintf("%s:%s:%x", rc.cfg.Prefix, c.Request().URL.Path, sum[:])
}

// Middleware serves cached GET responses and stores 200 responses on a miss.
func (rc *RedisCache) Middleware() echo.MiddlewareFunc {
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            if !rc.enabled() || c.Request().Method != http.MethodGet {
                return next(c)
            }
            ctx := c.Request().Context()
            key := rc.key(c)

            if bs, err := rc.rdb.Get(ctx, key).Bytes(); err == nil {
                var cached cachedResponse
                if json.Unmarshal(bs, &cached) == nil {
                    for k, vals := range cached.Header {
                        if strings.EqualFold(k, "Content-Length") { continue }
                        for _, v := range vals {
                            c.Response().Header().Add(k, v)
                        }
                    }
                    c.Response().Header().Set("X-Cache", "HIT")
                    c.Response().WriteHeader(cached.Status)
                    _, _ = c.Response().Write(cached.Body)
                    return nil
                }
            }

            // Miss: capture
            cw := &captureWriter{ResponseWriter: c.Response().Writer, status: http.StatusOK, limit: rc.cfg.MaxBodyBytes}
            c.Response().Writer = cw
            c.Response().Header().Set("X-Cache", "MISS")

            if err := next(c); err != nil {
                return err
            }
            if cw.status != http.StatusOK || cw.truncated {
                return nil
            }
            hdr := c.Response().Header().Clone()
            hdr.Del("X-Cache")
            payload, err := json.Marshal(cachedResponse{Status: cw.status, Header: hdr, Body: cw.buf.Bytes()})
            if err != nil {
                return nil
            }
            if err := rc.rdb.SetEx(context.WithoutCancel(ctx), key, payload, rc.cfg.TTL).Err(); err != nil {
                rc.log.Warn("cache: store failed", zap.String("key", key), zap.Error(err))
            }
            return nil
        }
    }
}

// Invalidate deletes every cached response whose path starts with prefix.
func (rc *RedisCache) Invalidate(ctx context.Context, prefix string) error {
    if rc.rdb == nil {
        return nil
    }
    pattern := rc.cfg.Prefix + ":" + prefix + "*"
    iter := rc.rdb.Scan(ctx, 0, pattern, 100).Iterator()
    var keys []string
    for iter.Next(ctx) {
        keys = append(keys, iter.Val())
    }
    if err := iter.Err(); err != nil {
        return err
    }
    if len(keys) == 0 {
        return nil
    }
    return rc.rdb.Del(ctx, keys...).Err()
}
