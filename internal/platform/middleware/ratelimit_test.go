package middleware

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/labstack/echo/v4"
)

func doRequest(e *echo.Echo, ip string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Real-IP", ip)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func newLimitedEcho(cfg RateLimitConfig) *echo.Echo {
	e := echo.New()
	e.Use(RateLimit(cfg))
	e.GET("/", func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})
	return e
}

func TestRateLimitAllowsWithinBudget(t *testing.T) {
	e := newLimitedEcho(RateLimitConfig{WindowMS: 60000, MaxRequests: 5})

	for i := 0; i < 5; i++ {
		if rec := doRequest(e, "1.2.3.4"); rec.Code != http.StatusOK {
			t.Fatalf("request %d: status %d", i, rec.Code)
		}
	}
}

func TestRateLimitRejectsPastBudget(t *testing.T) {
	e := newLimitedEcho(RateLimitConfig{WindowMS: 60000, MaxRequests: 3})

	for i := 0; i < 3; i++ {
		doRequest(e, "1.2.3.4")
	}
	rec := doRequest(e, "1.2.3.4")
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status %d, want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("Retry-After header missing")
	}
	if rec.Header().Get("X-RateLimit-Remaining") != "0" {
		t.Errorf("remaining = %q", rec.Header().Get("X-RateLimit-Remaining"))
	}
}

func TestRateLimitIsPerClient(t *testing.T) {
	e := newLimitedEcho(RateLimitConfig{WindowMS: 60000, MaxRequests: 1})

	if rec := doRequest(e, "1.2.3.4"); rec.Code != http.StatusOK {
		t.Fatalf("first client: %d", rec.Code)
	}
	if rec := doRequest(e, "1.2.3.4"); rec.Code != http.StatusTooManyRequests {
		t.Fatalf("first client second hit: %d", rec.Code)
	}
	// A different client has its own bucket.
	if rec := doRequest(e, "5.6.7.8"); rec.Code != http.StatusOK {
		t.Fatalf("second client: %d", rec.Code)
	}
}

func TestRateLimitZeroConfigUsesDefaults(t *testing.T) {
	e := newLimitedEcho(RateLimitConfig{})

	rec := doRequest(e, "1.2.3.4")
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	want := strconv.Itoa(DefaultRateLimitConfig().MaxRequests)
	if got := rec.Header().Get("X-RateLimit-Limit"); got != want {
		t.Errorf("limit header = %q, want %q", got, want)
	}
}
