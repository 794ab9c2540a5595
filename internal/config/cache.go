package config

import "time"

// CacheConfig defines settings for the response cache middleware in front of
// the seat metadata endpoint.  When Enabled is false or no Redis client is
// configured, caching is disabled.  Topology only changes through the admin
// upsert, which invalidates the cache, so the TTL can be long.
type CacheConfig struct {
    Enabled      bool
    TTL          time.Duration
    Prefix       string
    MaxBodyBytes int
}

// LoadCacheConfig reads CACHE_* environment variables.
func LoadCacheConfig() CacheConfig {
    return CacheConfig{
        Enabled:      envBool("CACHE_ENABLED", true),
        TTL:          envDur("CACHE_TTL", time.Hour),
        Prefix:       envStr("CACHE_PREFIX", "cache"),
        MaxBodyBytes: envInt("CACHE_MAX_BODY_BYTES", 4<<20),
    }
}
