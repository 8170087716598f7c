package middleware

import (
    "time"

    "github.com/labstack/echo/v4"
    "go.uber.org/zap"
    "go.uber.org/zap/zapcore"

    "github.com/iliyamo/phillboard/internal/logger"
)

// RequestLogger writes one structured line per request through the zap
// logger.  Server errors log at error level, client errors at warn.
func RequestLogger() echo.MiddlewareFunc {
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            start := time.Now()
            err := next(c)
            if err != nil {
                // let echo's error handler write the response so the status is final
                c.Error(err)
            }

            req := c.Request()
            status := c.Response().Status
            fields := []zap.Field{
                zap.String("method", req.Method),
                zap.String("route", c.Path()),
                zap.String("uri", req.RequestURI),
                zap.Int("status", status),
                zap.Duration("latency", time.Since(start)),
                zap.String("ip", c.RealIP()),
                zap.String("user", callerID(c)),
                zap.Int64("bytes_out", c.Response().Size),
            }
            if err != nil {
                fields = append(fields, zap.Error(err))
            }

            level := zapcore.InfoLevel
            switch {
            case status >= 500:
                level = zapcore.ErrorLevel
            case status >= 400:
                level = zapcore.WarnLevel
            }
            if ce := logger.FromContext(req.Context()).Check(level, "http request"); ce != nil {
                ce.Write(fields...)
            }
            return nil
        }
    }
}
