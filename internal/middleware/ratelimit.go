package middleware

import (
    "math"
    "net/http"
    "strconv"
    "strings"
    "time"

    "github.com/labstack/echo/v4"
    "github.com/redis/go-redis/v9"
    "go.uber.org/zap"

    "github.com/iliyamo/phillboard/internal/config"
    "github.com/iliyamo/phillboard/internal/logger"
)

// limiterScript refills and takes one token atomically.  It returns
// {allowed, remaining, retry_after_ms}.
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

    redis.call('HSET', key, 'tokens', tokens, 'last_refill_ms', last_refill)
    redis.call('EXPIRE', key, ttl_seconds)

    return { allowed, tokens, retry_after_ms }
`)

// bucketResult is the decoded reply of limiterScript.
type bucketResult struct {
    Allowed    bool
    Remaining  int64
    RetryAfter time.Duration
}

// parseBucketResult decodes {allowed, remaining, retry_after_ms}.  Lua
// numbers arrive as int64 from go-redis.
func parseBucketResult(v interface{}) (bucketResult, bool) {
    arr, ok := v.([]interface{})
    if !ok || len(arr) != 3 {
        return bucketResult{}, false
    }
    allowed, ok1 := arr[0].(int64)
    remaining, ok2 := arr[1].(int64)
    retryMs, ok3 := arr[2].(int64)
    if !ok1 || !ok2 || !ok3 {
        return bucketResult{}, false
    }
    return bucketResult{
        Allowed:    allowed == 1,
        Remaining:  remaining,
        RetryAfter: time.Duration(retryMs) * time.Millisecond,
    }, true
}

// retryAfterSeconds rounds up so clients never retry too early.
func retryAfterSeconds(d time.Duration) int {
    return int(math.Ceil(max(d, 0).Seconds()))
}

// NewTokenBucket limits paid write routes per caller.  A Redis failure
// lets the request through; charging users is never blocked by the
// limiter being down.
func NewTokenBucket(cfg config.RateLimitConfig, rdb *redis.Client) echo.MiddlewareFunc {
    if !cfg.Enabled || rdb == nil {
        return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
    }
    refillMs := cfg.RefillInterval.Milliseconds()
    ttlSec := int64(cfg.TTL / time.Second)

    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            ctx := c.Request().Context()
            key := buildRateKey(cfg, c)

            reply, err := limiterScript.Run(ctx, rdb, []string{key},
                time.Now().UnixMilli(), cfg.Capacity, cfg.RefillTokens, refillMs, ttlSec).Result()
            if err != nil {
                logger.WarnCtx(ctx, "rate limiter unavailable", zap.String("key", key), zap.Error(err))
                return next(c)
            }
            res, ok := parseBucketResult(reply)
            if !ok {
                logger.WarnCtx(ctx, "unexpected rate limiter reply", zap.String("key", key), zap.Any("reply", reply))
                return next(c)
            }

            h := c.Response().Header()
            h.Set("X-RateLimit-Limit", strconv.Itoa(cfg.Capacity))
            h.Set("X-RateLimit-Remaining", strconv.FormatInt(res.Remaining, 10))
            if res.Allowed {
                return next(c)
            }

            secs := retryAfterSeconds(res.RetryAfter)
            h.Set("Retry-After", strconv.Itoa(secs))
            logger.DebugCtx(ctx, "rate limited", zap.String("key", key), zap.Int("retry_after", secs))
            return c.JSON(http.StatusTooManyRequests, echo.Map{
                "error":       "rate_limited",
                "message":     "too many paid actions, try again in " + strconv.Itoa(secs) + "s",
                "retry_after": secs,
            })
        }
    }
}

// buildRateKey names the bucket for a request.  Strategies are
// "user_route" (default), "user" and "ip"; anonymous callers are always
// keyed by IP so they do not share one bucket.
func buildRateKey(cfg config.RateLimitConfig, c echo.Context) string {
    uid := callerID(c)
    route := c.Request().Method + " " + c.Path()
    strategy := strings.ToLower(cfg.KeyStrategy)
    if uid == "anon" || strategy == "ip" {
        ip := c.RealIP()
        if ip == "" {
            ip = "unknown"
        }
        return cfg.Prefix + ":ip:" + ip
    }
    if strategy == "user" {
        return cfg.Prefix + ":user:" + uid
    }
    return cfg.Prefix + ":user:" + uid + ":route:" + route
}
