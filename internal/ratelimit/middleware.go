package ratelimit

import (
	"math"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	apperrors "github.com/heartlog/rehab-api/pkg/util/errorutil"
)

// Middleware limits requests per client IP within scope.
func Middleware(limiter Limiter, scope string, limit int, logger *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		key := scope + ":" + c.IP()
		decision := limiter.Allow(c.UserContext(), key, limit)

		c.Set("X-RateLimit-Limit", strconv.Itoa(decision.Limit))
		c.Set("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))
		if decision.Allowed {
			return c.Next()
		}

		retryAfter := int(math.Ceil(time.Until(decision.ResetAt).Seconds()))
		if retryAfter < 1 {
			retryAfter = 1
		}
		c.Set(fiber.HeaderRetryAfter, strconv.Itoa(retryAfter))
		logger.Warn("rate limit exceeded", zap.String("scope", scope), zap.String("ip", c.IP()))
		return apperrors.NewRateLimited("too many requests, try again later")
	}
}
