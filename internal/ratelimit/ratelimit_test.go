package ratelimit

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"imagehost/internal/config"
)

func newLimitedApp(cfg config.RateLimitConfig) *fiber.App {
	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{"error": err.Error()})
		},
	})
	app.Post("/upload", New(cfg, nil), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusCreated)
	})
	app.Get("/open", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})
	return app
}

func TestNew_RejectsSixthRequestInWindow(t *testing.T) {
	app := newLimitedApp(config.RateLimitConfig{Max: 5, Window: time.Minute})

	for i := 0; i < 5; i++ {
		resp, err := app.Test(httptest.NewRequest(fiber.MethodPost, "/upload", nil))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusCreated, resp.StatusCode, "request %d", i+1)
	}

	resp, err := app.Test(httptest.NewRequest(fiber.MethodPost, "/upload", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusTooManyRequests, resp.StatusCode)

	// Unlimited routes are unaffected.
	resp, err = app.Test(httptest.NewRequest(fiber.MethodGet, "/open", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestNew_WindowResets(t *testing.T) {
	app := newLimitedApp(config.RateLimitConfig{Max: 1, Window: time.Second})

	resp, err := app.Test(httptest.NewRequest(fiber.MethodPost, "/upload", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusCreated, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest(fiber.MethodPost, "/upload", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusTooManyRequests, resp.StatusCode)

	assert.Eventually(t, func() bool {
		resp, err := app.Test(httptest.NewRequest(fiber.MethodPost, "/upload", nil))
		return err == nil && resp.StatusCode == fiber.StatusCreated
	}, 5*time.Second, 250*time.Millisecond)
}

func TestNewRedisStorage_NoAddress(t *testing.T) {
	store, err := NewRedisStorage(context.Background(), config.RateLimitConfig{})
	assert.NoError(t, err)
	assert.Nil(t, store)
}

func TestNewRedisStorage_Unreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	store, err := NewRedisStorage(ctx, config.RateLimitConfig{RedisAddr: "127.0.0.1:1"})
	assert.Error(t, err)
	assert.Nil(t, store)
	assert.Contains(t, err.Error(), "redis ping 127.0.0.1:1")
}

func TestRedisStorage_EmptyKeysAreNoops(t *testing.T) {
	// No round trip happens for empty keys, so an unconnected client is enough.
	s := NewRedisStorageWithClient(nil, "ratelimit:")

	v, err := s.Get("")
	assert.NoError(t, err)
	assert.Nil(t, v)
	assert.NoError(t, s.Set("", []byte("x"), time.Second))
	assert.NoError(t, s.Set("k", nil, time.Second))
	assert.NoError(t, s.Delete(""))
	assert.Equal(t, "ratelimit:1.2.3.4", s.key("1.2.3.4"))
}
