// internal/api/v2/middleware.go
package api

import (
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/tphakala/quotedesk/internal/api/auth"
	"github.com/tphakala/quotedesk/internal/logger"
)

// MetricsMiddleware records request count, latency and response size per
// route template. Unmatched paths are grouped under "unmatched" so that
// scanners cannot explode label cardinality.
func (c *Controller) MetricsMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			start := time.Now()
			err := next(ctx)
			if err != nil {
				// Let echo write the response so the status is known
				ctx.Error(err)
			}

			path := ctx.Path()
			if path == "" {
				path = "unmatched"
			}
			c.metrics.RecordHTTPRequest(
				ctx.Request().Method,
				path,
				ctx.Response().Status,
				time.Since(start).Seconds(),
				ctx.Response().Size,
			)
			return nil
		}
	}
}

// RateLimitMiddleware throttles lock mutations per acting user, falling back
// to the client IP when no user has been resolved.
func (c *Controller) RateLimitMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			if c.limiter == nil {
				return next(ctx)
			}

			key := "ip:" + ctx.RealIP()
			if user, ok := auth.UserFromContext(ctx); ok {
				key = "user:" + user.ID
			}

			allowed, retryAfter := c.limiter.Allow(key)
			if allowed {
				return next(ctx)
			}

			c.metrics.RecordRateLimited(ctx.Path())
			c.log.Warn("rate limit exceeded",
				logger.String("key", key),
				logger.String("path", ctx.Path()),
				logger.Duration("retry_after", retryAfter))

			seconds := int(math.Ceil(retryAfter.Seconds()))
			ctx.Response().Header().Set(echo.HeaderRetryAfter, strconv.Itoa(max(seconds, 1)))
			return ctx.JSON(http.StatusTooManyRequests, map[string]string{
				"error": "too many requests",
			})
		}
	}
}
