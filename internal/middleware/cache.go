package middleware

import (
    "bytes"
    "context"
    "crypto/sha1"
    "encoding/hex"
    "encoding/json"
    "errors"
    "net/http"
    "strings"
    "time"

    "github.com/labstack/echo/v4"
    "github.com/redis/go-redis/v9"
    "go.uber.org/zap"

    "github.com/iliyamo/phillboard/internal/config"
    "github.com/iliyamo/phillboard/internal/logger"
)

// captureWriter forwards the response to the client and keeps a copy of
// the body while it fits within limit.  size counts every byte written.
type captureWriter struct {
    http.ResponseWriter
    status int
    buf    bytes.Buffer
    size   int64
    limit  int64
}

func (cw *captureWriter) WriteHeader(code int) {
    cw.status = code
    cw.ResponseWriter.WriteHeader(code)
}

func (cw *captureWriter) Write(b []byte) (int, error) {
    if cw.limit <= 0 || cw.size+int64(len(b)) <= cw.limit {
        cw.buf.Write(b)
    }
    cw.size += int64(len(b))
    return cw.ResponseWriter.Write(b)
}

// overflowed reports whether part of the body was not captured.
func (cw *captureWriter) overflowed() bool {
    return cw.limit > 0 && cw.size > cw.limit
}

// cachedResponse is the value stored under a cache key.
type cachedResponse struct {
    Status int         `json:"s"`
    Header http.Header `json:"h"`
    Body   []byte      `json:"b"`
}

func encodePayload(r cachedResponse) ([]byte, error) {
    return json.Marshal(r)
}

func decodePayload(bs []byte) (cachedResponse, bool) {
    var r cachedResponse
    if err := json.Unmarshal(bs, &r); err != nil || r.Status == 0 {
        return cachedResponse{}, false
    }
    return r, true
}

// cacheKeyFrom returns <prefix>:<route>:<sha1 of query>.  The "uri"
// strategy hashes the raw request URI instead, so two routes that share
// a pattern never collide.
func cacheKeyFrom(cfg config.CacheConfig, c echo.Context) string {
    r := c.Request()
    variant := r.URL.RawQuery
    if strings.EqualFold(cfg.KeyStrategy, "uri") {
        variant = r.RequestURI
    }
    sum := sha1.Sum([]byte(variant))
    return cfg.Prefix + ":" + c.Path() + ":" + hex.EncodeToString(sum[:])
}

// serveCached writes a stored response.  Content-Length is recomputed by
// net/http.
func serveCached(c echo.Context, r cachedResponse) {
    h := c.Response().Header()
    for k, vals := range r.Header {
        if strings.EqualFold(k, echo.HeaderContentLength) {
            continue
        }
        for _, v := range vals {
            h.Add(k, v)
        }
    }
    h.Set("X-Cache", "HIT")
    c.Response().WriteHeader(r.Status)
    _, _ = c.Response().Write(r.Body)
}

// NewRedisCache caches successful public reads (nearby listings and
// leaderboards).  Headers are stored with the body so a hit is byte for
// byte identical to the original response.
func NewRedisCache(cfg config.CacheConfig, rdb *redis.Client) echo.MiddlewareFunc {
    if !cfg.Enabled || rdb == nil {
        return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
    }
    ttl := cfg.TTL
    if ttl <= 0 {
        ttl = 15 * time.Second
    }

    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            if !cfg.Methods[c.Request().Method] {
                return next(c)
            }
            key := cacheKeyFrom(cfg, c)

            if bs, err := rdb.Get(c.Request().Context(), key).Bytes(); err == nil {
                if cached, ok := decodePayload(bs); ok {
                    serveCached(c, cached)
                    return nil
                }
            } else if !errors.Is(err, redis.Nil) {
                logger.Warn("response cache read failed", zap.String("key", key), zap.Error(err))
            }

            cw := &captureWriter{ResponseWriter: c.Response().Writer, status: http.StatusOK, limit: int64(cfg.MaxBodyBytes)}
            c.Response().Writer = cw
            c.Response().Header().Set("X-Cache", "MISS")
            if err := next(c); err != nil {
                return err
            }
            if cw.status != http.StatusOK || cw.overflowed() {
                return nil
            }

            hdr := c.Response().Header().Clone()
            hdr.Del("X-Cache")
            payload, err := encodePayload(cachedResponse{Status: cw.status, Header: hdr, Body: cw.buf.Bytes()})
            if err != nil {
                return nil
            }
            // the request context may already be cancelled once the body is written
            storeCtx, cancel := context.WithTimeout(context.Background(), time.Second)
            defer cancel()
            if err := rdb.SetEx(storeCtx, key, payload, ttl).Err(); err != nil {
                logger.Warn("response cache write failed", zap.String("key", key), zap.Error(err))
            }
            return nil
        }
    }
}

// purgeBatch bounds each SCAN page and DEL call.
const purgeBatch = 200

// PurgeResponseCache deletes every cached response under cfg.Prefix and
// returns the number of keys removed.  The change feed consumer calls it
// whenever a phillboard is placed, edited or deleted.
func PurgeResponseCache(ctx context.Context, rdb *redis.Client, cfg config.CacheConfig) (int64, error) {
    if rdb == nil {
        return 0, nil
    }
    var removed int64
    batch := make([]string, 0, purgeBatch)
    flush := func() error {
        if len(batch) == 0 {
            return nil
        }
        n, err := rdb.Del(ctx, batch...).Result()
        removed += n
        batch = batch[:0]
        return err
    }
    iter := rdb.Scan(ctx, 0, cfg.PurgePattern(), purgeBatch).Iterator()
    for iter.Next(ctx) {
        batch = append(batch, iter.Val())
        if len(batch) == purgeBatch {
            if err := flush(); err != nil {
                return removed, err
            }
        }
    }
    if err := iter.Err(); err != nil {
        return removed, err
    }
    return removed, flush()
}
