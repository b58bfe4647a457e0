package middleware

import (
    "time"

    "github.com/labstack/echo/v4"
    "go.uber.org/zap"
)

// RequestLogger logs one line per request with status and latency.
// Server errors log at error level, client errors at warn.
func RequestLogger(log *zap.Logger) echo.MiddlewareFunc {
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            start := time.Now()
            err := next(c)
            if err != nil {
                // let echo's error handler set the final status
                c.Error(err)
            }
            res := c.Response()
            fields := []zap.Field{
                zap.String("method", c.Request().Method),
                zap.String("route", c.Path()),
                zap.String("uri", c.Request().RequestURI),
                zap.Int("status", res.Status),
                zap.Int64("bytes", res.Size),
                zap.Duration("latency", time.Since(start)),
                zap.String("ip", c.RealIP()),
            }
            if id := StaffID(c); id != 0 {
                fields = append(fields, zap.Uint64("staff_id", id))
            }
            if rid := res.Header().Get(echo.HeaderXRequestID); rid != "" {
                fields = append(fields, zap.String("request_id", rid))
            }
            switch {
            case res.Status >= 500:
                log.Error("request", append(fields, zap.Error(err))...)
            case res.Status >= 400:
                log.Warn("request", fields...)
            default:
                log.Info("request", fields...)
            }
            return nil
        }
    }
}
