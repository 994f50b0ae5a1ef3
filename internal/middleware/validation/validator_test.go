package validation

import (
	"bytes"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newGuardedApp(cfg Config) *fiber.App {
	app := fiber.New()
	app.Use(Middleware(cfg))
	app.Post("/api/v1/query", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	app.Post("/api/v1/session", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	return app
}

func postQuery(t *testing.T, app *fiber.App, contentType, body string) int {
	t.Helper()

	req := httptest.NewRequest("POST", "/api/v1/query", bytes.NewBufferString(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp.StatusCode
}

func TestMiddlewareAllowsCleanQuery(t *testing.T) {
	app := newGuardedApp(Config{})

	status := postQuery(t, app, "application/json", `{"query": "When is the exam?"}`)
	assert.Equal(t, fiber.StatusOK, status)
}

func TestMiddlewareRejectsUnsupportedContentType(t *testing.T) {
	app := newGuardedApp(Config{})

	status := postQuery(t, app, "text/xml", `<query>hi</query>`)
	assert.Equal(t, fiber.StatusUnsupportedMediaType, status)
}

func TestMiddlewareRejectsMalformedJSON(t *testing.T) {
	app := newGuardedApp(Config{})

	status := postQuery(t, app, "application/json", `{"query": `)
	assert.Equal(t, fiber.StatusBadRequest, status)
}

func TestMiddlewareRejectsOversizedQuery(t *testing.T) {
	app := newGuardedApp(Config{MaxQueryLength: 32})

	long := strings.Repeat("a", 33)
	status := postQuery(t, app, "application/json", `{"query": "`+long+`"}`)
	assert.Equal(t, fiber.StatusBadRequest, status)
}

func TestMiddlewareRejectsHostileQuery(t *testing.T) {
	app := newGuardedApp(Config{})

	cases := []string{
		`{"query": "<script>alert(1)</script>"}`,
		`{"query": "1; DROP TABLE query_history"}`,
		`{"query": "x UNION SELECT password FROM users"}`,
		`{"query": "<img onerror=steal()>"}`,
	}
	for _, body := range cases {
		status := postQuery(t, app, "application/json", body)
		assert.Equal(t, fiber.StatusBadRequest, status, body)
	}
}

func TestMiddlewareIgnoresNonQueryRoutes(t *testing.T) {
	app := newGuardedApp(Config{})

	req := httptest.NewRequest("POST", "/api/v1/session", bytes.NewBufferString(`{"anything": "<script>"}`))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode, "only query bodies are content-inspected")
}
