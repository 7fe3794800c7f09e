package ratelimit

import (
	"math"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/fanzlab/authcore/internal/auth"
	apperrors "github.com/fanzlab/authcore/pkg/util"
)

// Limiter throttles requests with a fixed window per (client IP, user)
// key. Unauthenticated traffic shares the "anonymous" user slot per IP.
type Limiter struct {
	store  Store
	window time.Duration
	max    int64
	logger *zap.Logger
}

// NewLimiter builds a limiter over the given store.
func NewLimiter(store Store, window time.Duration, max int, logger *zap.Logger) *Limiter {
	return &Limiter{store: store, window: window, max: int64(max), logger: logger}
}

// Middleware returns the throttling guard. A store failure fails open:
// throttling is protection, not a correctness gate.
func (l *Limiter) Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		key := clientKey(c)

		count, resetAt, err := l.store.Incr(c.UserContext(), key, l.window)
		if err != nil {
			l.logger.Warn("rate limit store unavailable; allowing request", zap.Error(err))
			return c.Next()
		}

		if count > l.max {
			retryAfter := int(math.Ceil(time.Until(resetAt).Seconds()))
			if retryAfter < 1 {
				retryAfter = 1
			}
			c.Set(fiber.HeaderRetryAfter, strconv.Itoa(retryAfter))
			l.logger.Warn("rate limit exceeded",
				zap.String("key", key),
				zap.Int64("count", count),
			)
			return apperrors.NewRateLimited(retryAfter)
		}

		return c.Next()
	}
}

func clientKey(c *fiber.Ctx) string {
	userID := "anonymous"
	if user, ok := auth.UserFromContext(c); ok {
		userID = user.ID
	}
	return c.IP() + "|" + userID
}
