package middleware

import (
    "fmt"
    "math"
    "net/http"
    "strconv"
    "strings"
    "sync"
    "time"

    "github.com/labstack/echo/v4"
    "github.com/redis/go-redis/v9"
    "go.uber.org/zap"
    "golang.org/x/time/rate"

    "github.com/iliyamo/event-seat-reservation/internal/config"
)

// KeyFunc derives the rate limit identity of a request.
type KeyFunc func(c echo.Context) string

// ByIP keys requests by client address.
func ByIP(c echo.Context) string {
    ip := c.RealIP()
    if ip == "" {
        return "unknown"
    }
    return ip
}

// BySubject keys requests by authenticated subject, falling back to the IP.
func BySubject(c echo.Context) string {
    if s, ok := Subject(c); ok {
        return "sub:" + s
    }
    return "ip:" + ByIP(c)
}

var limiterScript = redis.NewScript(`
    local key = KEYS[1]
    local now_ms = tonumber(ARGV[1])
    local capacity = tonumber(ARGV[2])
    local refill_tokens = tonumber(ARGV[3])
    local interval_ms = tonumber(ARGV[4])
    local ttl_seconds = tonumber(ARGV[5])

    local state = redis.call('HMGET', key, 'tokens', 'last_refill_ms')
    local tokens = tonumber(state[1])
    local last_refill = tonumber(state[2])

    if tokens == nil or last_refill == nil then
        tokens = capacity
        last_refill = now_ms
    end

    if interval_ms > 0 and refill_tokens > 0 then
        local elapsed = math.max(0, now_ms - last_refill)
        local intervals = math.floor(elapsed / interval_ms)
        if intervals > 0 then
            tokens = math.min(capacity, tokens + (intervals * refill_tokens))
            last_refill = last_refill + (intervals * interval_ms)
        end
    end

    local allowed = 0
    local retry_after_ms = 0
    if tokens > 0 then
        allowed = 1
        tokens = tokens - 1
    else
        local until_next = interval_ms - (now_ms - last_refill)
        if until_next < 0 then until_next = 0 end
        retry_after_ms = until_next
    end

    redis.call('HMSET', key, 'tokens', tokens, 'last_refill_ms', last_refill, 'capacity', capacity)
    redis.call('EXPIRE', key, ttl_seconds)

    return { allowed, tokens, retry_after_ms }
`)

// NewTokenBucket limits requests per key with the given bucket.  The bucket
// state lives in Redis so every instance shares it; with rdb nil, or while
// Redis errors, a per-process limiter with the same shape is used instead.
func NewTokenBucket(cfg config.RateLimitConfig, bucket config.Bucket, name string, key KeyFunc, rdb *redis.Client, log *zap.Logger) echo.MiddlewareFunc {
    if !cfg.Enabled {
        return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
    }
    if log == nil {
        log = zap.NewNop()
    }
    local := newLocalLimiter(bucket, cfg.TTL)

    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            k := strings.Join([]string{cfg.Prefix, name, key(c)}, ":")

            allowed, remaining, retry, err := false, int64(0), time.Duration(0), error(nil)
            if rdb != nil {
                allowed, remaining, retry, err = redisAllow(c, rdb, k, bucket, cfg.TTL)
                if err != nil && cfg.Debug {
                    log.Warn("ratelimit: redis error, using local limiter", zap.String("key", k), zap.Error(err))
                }
            }
            if rdb == nil || err != nil {
                allowed, remaining, retry = local.allow(k)
            }

            c.Response().Header().Set("X-RateLimit-Limit", strconv.Itoa(bucket.Capacity))
            c.Response().Header().Set("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))

            if !allowed {
                secs := int(math.Ceil(retry.Seconds()))
                if secs < 0 { secs = 0 }
                c.Response().Header().Set("Retry-After", strconv.Itoa(secs))
                if cfg.Debug {
                    log.Info("ratelimit: blocked", zap.String("key", k), zap.Duration("retry", retry))
                }
                return c.JSON(http.StatusTooManyRequests, echo.Map{
                    "error":       "too_many_requests",
                    "message":     "rate limit exceeded",
                    "retry_after": secs,
                })
            }
            if cfg.Debug {
                c.Response().Header().Set("X-RateLimit-Key", k)
            }
            return next(c)
        }
    }
}

func redisAllow(c echo.Context, rdb *redis.Client, key string, b config.Bucket, ttl time.Duration) (bool, int64, time.Duration, error) {
    args := []interface{}{
        time.Now().UnixMilli(),
        b.Capacity,
        b.RefillTokens,
        b.RefillInterval.Milliseconds(),
        int64(ttl / time.Second),
    }
    vals, err := limiterScript.Run(c.Request().Context(), rdb, []string{key}, args...).Result()
    if err != nil {
        return false, 0, 0, err
    }
    arr, ok := vals.([]interface{})
    if !ok || len(arr) != 3 {
        return false, 0, 0, fmt.Errorf("unexpected script result %#v", vals)
    }
    allowed := asInt64(arr[0]) == 1
    return allowed, asInt64(arr[1]), time.Duration(asInt64(arr[2])) * time.Millisecond, nil
}

func asInt64(v interface{}) int64 {
    switch t := v.(type) {
    case int64: return t
    case int32: return int64(t)
    case int: return int64(t)
    case float64: return int64(t)
    case string:
        if n, err := strconv.ParseInt(t, 10, 64); err == nil { return n }
    }
    return 0
}

// localLimiter keeps one rate.Limiter per key and forgets keys idle for
// longer than ttl.
type localLimiter struct {
    mu      sync.Mutex
    bucket  config.Bucket
    limit   rate.Limit
    ttl     time.Duration
    entries map[string]*localEntry
    sweep   time.Time
}

type localEntry struct {
    lim  *rate.Limiter
    seen time.Time
}

func newLocalLimiter(b config.Bucket, ttl time.Duration) *localLimiter {
    perToken := b.RefillInterval / time.Duration(b.RefillTokens)
    return &localLimiter{
        bucket:  b,
        limit:   rate.Every(perToken),
        ttl:     ttl,
        entries: make(map[string]*localEntry),
    }
}

func (l *localLimiter) allow(key string) (bool, int64, time.Duration) {
    now := time.Now()
    l.mu.Lock()
    defer l.mu.Unlock()

    if now.Sub(l.sweep) > l.ttl {
        for k, e := range l.entries {
            if now.Sub(e.seen) > l.ttl {
                delete(l.entries, k)
            }
        }
        l.sweep = now
    }
    e, ok := l.entries[key]
    if !ok {
        e = &localEntry{lim: rate.NewLimiter(l.limit, l.bucket.Capacity)}
        l.entries[key] = e
    }
    e.seen = now

    r := e.lim.ReserveN(now, 1)
    if d := r.DelayFrom(now); d > 0 {
        r.CancelAt(now)
        return false, 0, d
    }
    return true, int64(e.lim.TokensAt(now)), 0
}
