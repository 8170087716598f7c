package config

// Redis backs the write-route rate limiter and the public response cache.
// Both degrade to pass-through when no client is available, so a failed
// connection at startup is logged and reported as nil rather than fatal.

import (
    "context"
    "crypto/tls"
    "os"
    "time"

    "github.com/redis/go-redis/v9"
    "go.uber.org/zap"

    "github.com/iliyamo/phillboard/internal/logger"
)

// RedisOptions builds client options from the environment:
//   REDIS_ADDR      host:port (REDIS_HOST and REDIS_PORT together take precedence)
//   REDIS_PASSWORD  optional password
//   REDIS_DB        database number (default 0)
//   REDIS_TLS       enable TLS 1.2+
func RedisOptions() *redis.Options {
    addr := envStr("REDIS_ADDR", "localhost:6379")
    if host, port := os.Getenv("REDIS_HOST"), os.Getenv("REDIS_PORT"); host != "" && port != "" {
        addr = host + ":" + port
    }
    opts := &redis.Options{
        Addr:     addr,
        Password: os.Getenv("REDIS_PASSWORD"),
        DB:       envInt("REDIS_DB", 0),
    }
    if envBool("REDIS_TLS", false) {
        opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
    }
    return opts
}

// NewRedisClient connects with RedisOptions and pings the server.  It
// returns nil when the server is unreachable.
func NewRedisClient(ctx context.Context) *redis.Client {
    opts := RedisOptions()
    client := redis.NewClient(opts)
    pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
    defer cancel()
    if err := client.Ping(pingCtx).Err(); err != nil {
        logger.Warn("redis unavailable; rate limiting and caching disabled",
            zap.String("addr", opts.Addr), zap.Error(err))
        _ = client.Close()
        return nil
    }
    return client
}
