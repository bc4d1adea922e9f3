package middleware

import (
	"context"
	"math"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/clipper/clipper-api/internal/api/metrics"
	"github.com/clipper/clipper-api/internal/core/domain"
	"github.com/clipper/clipper-api/internal/core/service"
)

const (
	HeaderRateLimitLimit     = "X-RateLimit-Limit"
	HeaderRateLimitRemaining = "X-RateLimit-Remaining"
	HeaderRetryAfter         = "Retry-After"
)

// Limiter counts requests per client identity and endpoint class.
type Limiter interface {
	CheckAndIncrement(ctx context.Context, identity string, class service.EndpointClass) (service.Decision, error)
}

// RateLimit enforces the class budget keyed by the client address Echo
// resolves through its IPExtractor. Rejected requests never reach the
// handler. A failing counter store lets the request through and logs.
func RateLimit(l Limiter, class service.EndpointClass, log zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ip := c.RealIP()
			d, err := l.CheckAndIncrement(c.Request().Context(), ip, class)
			if err != nil {
				log.Error().Err(err).Str("ip", ip).Str("class", string(class)).Msg("rate limiter unavailable")
				return next(c)
			}
			if d.Limit == 0 {
				return next(c)
			}

			h := c.Response().Header()
			h.Set(HeaderRateLimitLimit, strconv.Itoa(d.Limit))
			h.Set(HeaderRateLimitRemaining, strconv.Itoa(d.Remaining))

			if !d.Allowed {
				h.Set(HeaderRetryAfter, strconv.Itoa(int(math.Ceil(d.RetryAfter.Seconds()))))
				metrics.RateLimitRejectionsTotal.WithLabelValues(string(class)).Inc()
				log.Warn().Str("ip", ip).Str("class", string(class)).Str("path", c.Path()).Msg("rate limit exceeded")
				return domain.ErrRateLimited
			}
			return next(c)
		}
	}
}
