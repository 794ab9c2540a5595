package config

import "time"

// Bucket describes one token bucket: Capacity tokens, refilled by
// RefillTokens every RefillInterval.
type Bucket struct {
    Capacity       int
    RefillTokens   int
    RefillInterval time.Duration
}

// RateLimitConfig configures the limiters in front of the login and
// reservation endpoints.  Login is keyed by client IP, reservations by
// ticket.  When Redis is unreachable the limiter falls back to a
// per-process limiter with the same bucket shape.
type RateLimitConfig struct {
    Enabled     bool
    Login       Bucket
    Reserve     Bucket
    TTL         time.Duration
    Prefix      string
    Debug       bool
}

func LoadRateLimitConfig() RateLimitConfig {
    def := RateLimitConfig{
        Enabled: envBool("RATE_LIMIT_ENABLED", true),
        Login: loadBucket("RATE_LIMIT_LOGIN", Bucket{Capacity: 10, RefillTokens: 1, RefillInterval: 6 * time.Second}),
        Reserve: loadBucket("RATE_LIMIT_RESERVE", Bucket{Capacity: 5, RefillTokens: 1, RefillInterval: 2 * time.Second}),
        TTL:         envDur("RATE_LIMIT_TTL", 10*time.Minute),
        Prefix:      envStr("RATE_LIMIT_PREFIX", "rl"),
        Debug:       envBool("RATE_LIMIT_DEBUG", false),
    }
    minTTL := 5 * def.Login.RefillInterval
    if r := 5 * def.Reserve.RefillInterval; r > minTTL { minTTL = r }
    if def.TTL < minTTL { def.TTL = minTTL }
    return def
}

// loadBucket reads <prefix>_CAPACITY, <prefix>_REFILL_TOKENS and
// <prefix>_REFILL_INTERVAL.  <prefix>_REFILL_EVERY is shorthand for one
// token per interval.
func loadBucket(prefix string, d Bucket) Bucket {
    b := Bucket{
        Capacity:       envInt(prefix+"_CAPACITY", d.Capacity),
        RefillTokens:   envInt(prefix+"_REFILL_TOKENS", d.RefillTokens),
        RefillInterval: envDur(prefix+"_REFILL_INTERVAL", d.RefillInterval),
    }
    if every := envDur(prefix+"_REFILL_EVERY", 0); every > 0 {
        b.RefillTokens = 1
        b.RefillInterval = every
    }
    if b.Capacity < 1 { b.Capacity = 1 }
    if b.RefillTokens < 1 { b.RefillTokens = 1 }
    if b.RefillInterval <= 0 { b.RefillInterval = time.Second }
    return b
}
