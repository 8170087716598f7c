package config

import "time"

// CacheConfig defines settings for the response cache placed on the public
// read routes (nearby listings and leaderboards).  When Enabled is false or
// no Redis client is configured, caching is disabled.  Entries are keyed
// under Prefix so the change feed consumer can purge them all at once when
// a phillboard is placed, edited or deleted.
type CacheConfig struct {
    Enabled      bool
    Methods      map[string]bool // upper-cased HTTP methods eligible for caching
    TTL          time.Duration
    KeyStrategy  string // "route_query" or "uri"
    Prefix       string
    MaxBodyBytes int // larger responses are served but not stored
}

// LoadCacheConfig builds a CacheConfig from CACHE_* variables.  The TTL
// is short because a missed purge only leaves a listing stale until it
// expires.
func LoadCacheConfig() CacheConfig {
    c := CacheConfig{
        Enabled:      envBool("CACHE_ENABLED", true),
        Methods:      envSet("CACHE_METHODS", "GET"),
        TTL:          envDur("CACHE_TTL", 15*time.Second),
        KeyStrategy:  envStr("CACHE_KEY_STRATEGY", "route_query"),
        Prefix:       envStr("CACHE_PREFIX", "phillboard:cache"),
        MaxBodyBytes: envInt("CACHE_MAX_BODY_BYTES", 1<<20),
    }
    if c.TTL <= 0 {
        c.TTL = 15 * time.Second
    }
    return c
}

// PurgePattern is the SCAN match pattern covering every cached response.
func (c CacheConfig) PurgePattern() string {
    return c.Prefix + ":*"
}
