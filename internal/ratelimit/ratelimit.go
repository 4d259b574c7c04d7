// Package ratelimit builds the per-client upload limiter.
package ratelimit

import (
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"imagehost/internal/config"
)

// New returns a fixed-window limiter allowing cfg.Max requests per cfg.Window for each
// client address. A nil store keeps counters in process memory.
// Rejected requests surface as a *fiber.Error with status 429 so the global error handler
// renders them like every other error.
func New(cfg config.RateLimitConfig, store fiber.Storage) fiber.Handler {
	limit := cfg.Max
	if limit <= 0 {
		limit = 5
	}
	window := cfg.Window
	if window <= 0 {
		window = time.Minute
	}
	msg := fmt.Sprintf("rate limit exceeded: %d per %s", limit, window)

	return limiter.New(limiter.Config{
		Max:        limit,
		Expiration: window,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return fiber.NewError(fiber.StatusTooManyRequests, msg)
		},
		Storage:           store,
		LimiterMiddleware: limiter.FixedWindow{},
	})
}
