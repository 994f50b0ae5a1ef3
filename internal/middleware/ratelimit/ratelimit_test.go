package ratelimit

import (
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllowExhaustsBurst(t *testing.T) {
	rl := New(3)
	defer rl.Stop()

	assert.True(t, rl.allow("a"))
	assert.True(t, rl.allow("a"))
	assert.True(t, rl.allow("a"))
	assert.False(t, rl.allow("a"), "tokens spent within the window are gone")
}

func TestAllowKeysAreIndependent(t *testing.T) {
	rl := New(1)
	defer rl.Stop()

	assert.True(t, rl.allow("a"))
	assert.False(t, rl.allow("a"))
	assert.True(t, rl.allow("b"), "a throttled client does not affect others")
}

func TestMiddlewareReturns429(t *testing.T) {
	rl := New(1)
	defer rl.Stop()

	app := fiber.New()
	app.Use(rl.Middleware())
	app.Get("/ping", func(c *fiber.Ctx) error { return c.SendString("pong") })

	req := httptest.NewRequest("GET", "/ping", nil)
	req.Header.Set("X-Session-ID", "sess-1")

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp, err = app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusTooManyRequests, resp.StatusCode)

	other := httptest.NewRequest("GET", "/ping", nil)
	other.Header.Set("X-Session-ID", "sess-2")
	resp, err = app.Test(other, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode, "separate sessions get separate buckets")
}
