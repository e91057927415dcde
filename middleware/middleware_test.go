package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/time/rate"
)

func TestBearerToken(t *testing.T) {
	tests := map[string]string{
		"":               "",
		"Bearer":         "",
		"Bearer ":        "",
		"Basic abc":      "",
		"Bearer abc":     "abc",
		"bearer abc ":    "abc",
		"BEARER  abc":    "abc",
		"Bearerabc.defg": "",
	}
	for header, want := range tests {
		if got := bearerToken(header); got != want {
			t.Errorf("bearerToken(%q) = %q, want %q", header, got, want)
		}
	}
}

func status(t *testing.T, app *fiber.App, req *http.Request) int {
	t.Helper()
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	resp.Body.Close()
	return resp.StatusCode
}

func TestServiceTokenMiddleware(t *testing.T) {
	newApp := func(expected string) *fiber.App {
		app := fiber.New()
		app.Get("/internal", ServiceTokenMiddleware(expected), func(c *fiber.Ctx) error {
			return c.SendString("ok")
		})
		return app
	}

	disabled := newApp("")
	req := httptest.NewRequest(http.MethodGet, "/internal", nil)
	req.Header.Set("Authorization", "Bearer ")
	if got := status(t, disabled, req); got != http.StatusForbidden {
		t.Fatalf("disabled: %d", got)
	}

	app := newApp("s3cret")
	cases := []struct {
		name   string
		header string
		value  string
		want   int
	}{
		{"missing", "", "", http.StatusUnauthorized},
		{"wrong bearer", "Authorization", "Bearer nope", http.StatusUnauthorized},
		{"bearer", "Authorization", "Bearer s3cret", http.StatusOK},
		{"service header", "X-Service-Token", "s3cret", http.StatusOK},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, "/internal", nil)
		if tc.header != "" {
			req.Header.Set(tc.header, tc.value)
		}
		if got := status(t, app, req); got != tc.want {
			t.Errorf("%s: status %d, want %d", tc.name, got, tc.want)
		}
	}
}

func TestRateLimitIsPerUser(t *testing.T) {
	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		if id := c.Get("X-User"); id != "" {
			c.Locals(UserIDKey, id)
		}
		return c.Next()
	})
	// Two per minute gives a burst of one.
	app.Post("/spin", RateLimit(2), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})

	request := func(user string) *http.Request {
		req := httptest.NewRequest(http.MethodPost, "/spin", nil)
		if user != "" {
			req.Header.Set("X-User", user)
		}
		return req
	}

	if got := status(t, app, request("a")); got != http.StatusOK {
		t.Fatalf("first request: %d", got)
	}
	if got := status(t, app, request("a")); got != http.StatusTooManyRequests {
		t.Fatalf("second request: %d", got)
	}
	if got := status(t, app, request("b")); got != http.StatusOK {
		t.Fatalf("other user: %d", got)
	}
	// Anonymous callers share a bucket per IP.
	if got := status(t, app, request("")); got != http.StatusOK {
		t.Fatalf("anonymous: %d", got)
	}
	if got := status(t, app, request("")); got != http.StatusTooManyRequests {
		t.Fatalf("anonymous again: %d", got)
	}
}

func TestLimiterStoreSweepsIdleBucketsPeriodically(t *testing.T) {
	store := &limiterStore{limiters: map[string]*rateLimiter{}, limit: rate.Every(time.Second), burst: 1}
	start := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)

	store.get("a", start)
	store.get("b", start.Add(4*time.Minute))
	if want := start.Add(limiterIdleTTL); !store.nextSweep.Equal(want) {
		t.Fatalf("next sweep = %v, want %v", store.nextSweep, want)
	}

	later := start.Add(limiterIdleTTL + time.Second)
	store.get("b", later)
	if _, ok := store.limiters["a"]; ok {
		t.Fatal("idle bucket survived the sweep")
	}
	if _, ok := store.limiters["b"]; !ok {
		t.Fatal("active bucket was swept")
	}
	if want := later.Add(limiterIdleTTL); !store.nextSweep.Equal(want) {
		t.Fatalf("next sweep = %v, want %v", store.nextSweep, want)
	}

	// Between sweeps, expired buckets are left alone.
	store.limiters["stale"] = &rateLimiter{limiter: rate.NewLimiter(1, 1), expires: start}
	store.get("b", later.Add(time.Minute))
	if _, ok := store.limiters["stale"]; !ok {
		t.Fatal("swept before the interval elapsed")
	}
}
