package middleware

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
)

func limitedEcho(cfg RateLimitConfig) *echo.Echo {
	e := echo.New()
	e.Use(RateLimit(cfg))
	e.POST("/api/v1/phn/validate", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})
	return e
}

func validate(e *echo.Echo) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/phn/validate", nil))
	return rec
}

func TestRateLimit_BurstThenReject(t *testing.T) {
	e := limitedEcho(RateLimitConfig{RequestsPerSecond: 1, BurstSize: 3})

	for i := 0; i < 3; i++ {
		rec := validate(e)
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200 within burst, got %d", i+1, rec.Code)
		}
		if got := rec.Header().Get("X-RateLimit-Limit"); got != "1" {
			t.Errorf("request %d: expected X-RateLimit-Limit 1, got %q", i+1, got)
		}
	}

	rec := validate(e)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 after burst, got %d", rec.Code)
	}
	if rec.Header().Get("X-RateLimit-Remaining") != "0" {
		t.Errorf("expected X-RateLimit-Remaining 0, got %q", rec.Header().Get("X-RateLimit-Remaining"))
	}
	retry, err := strconv.Atoi(rec.Header().Get("Retry-After"))
	if err != nil || retry < 1 {
		t.Errorf("expected Retry-After >= 1, got %q", rec.Header().Get("Retry-After"))
	}
}

func TestRateLimit_Refills(t *testing.T) {
	e := limitedEcho(RateLimitConfig{RequestsPerSecond: 50, BurstSize: 1})

	if rec := validate(e); rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec := validate(e); rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 with an empty bucket, got %d", rec.Code)
	}
	time.Sleep(60 * time.Millisecond)
	if rec := validate(e); rec.Code != http.StatusOK {
		t.Errorf("expected the bucket to refill, got %d", rec.Code)
	}
}

func TestRateLimit_PerKeyIsolation(t *testing.T) {
	cfg := RateLimitConfig{
		RequestsPerSecond: 1,
		BurstSize:         1,
		KeyFunc: func(c echo.Context) string {
			return c.Request().Header.Get("X-Client")
		},
	}

	e := echo.New()
	handler := RateLimit(cfg)(func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})

	call := func(client string) error {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Client", client)
		return handler(e.NewContext(req, httptest.NewRecorder()))
	}

	if err := call("hg"); err != nil {
		t.Fatalf("hg first request: expected no error, got %v", err)
	}
	if err := call("hg"); err == nil {
		t.Fatal("hg second request: expected rate limit error")
	}
	if err := call("hg-mobile"); err != nil {
		t.Fatalf("hg-mobile first request: expected no error, got %v", err)
	}
}

func TestRateLimit_Skipper(t *testing.T) {
	cfg := RateLimitConfig{
		RequestsPerSecond: 1,
		BurstSize:         1,
		Skipper: func(c echo.Context) bool {
			return c.Request().URL.Path == "/health"
		},
	}

	e := echo.New()
	handler := RateLimit(cfg)(func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})

	for i := 0; i < 5; i++ {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		if err := handler(e.NewContext(req, httptest.NewRecorder())); err != nil {
			t.Fatalf("probe %d: expected skipped path to bypass limit, got %v", i+1, err)
		}
	}
}

func TestRateLimit_DefaultConfig(t *testing.T) {
	cfg := DefaultRateLimitConfig()
	if cfg.RequestsPerSecond != 100 {
		t.Errorf("expected RequestsPerSecond 100, got %f", cfg.RequestsPerSecond)
	}
	if cfg.BurstSize != 200 {
		t.Errorf("expected BurstSize 200, got %d", cfg.BurstSize)
	}
	if cfg.IdleTTL != 10*time.Minute {
		t.Errorf("expected IdleTTL 10m, got %v", cfg.IdleTTL)
	}
}

func TestTokenBucket_RetryAfterWithZeroRate(t *testing.T) {
	b := newTokenBucket(0, 1)
	// Exhaust the single token
	b.allow()
	// With zero refill rate, retryAfter should return 1
	ra := b.retryAfter()
	if ra != 1 {
		t.Errorf("expected retryAfter 1 for zero rate, got %d", ra)
	}
}

func TestRateLimiterStore_BucketPerKey(t *testing.T) {
	store := newRateLimiterStore(RateLimitConfig{RequestsPerSecond: 10, BurstSize: 5})

	hg := store.getBucket("hg")
	if store.getBucket("hg") != hg {
		t.Error("expected the same bucket for a repeated key")
	}
	if store.getBucket("hg-mobile") == hg {
		t.Error("expected a separate bucket per key")
	}
	if store.size() != 2 {
		t.Errorf("expected 2 buckets, got %d", store.size())
	}
}

func TestRateLimiterStore_SweepsIdleBuckets(t *testing.T) {
	store := newRateLimiterStore(RateLimitConfig{RequestsPerSecond: 10, BurstSize: 5, IdleTTL: time.Minute})

	old := store.getBucket("idle")
	old.lastRefill = time.Now().Add(-2 * time.Minute)
	store.lastSweep = time.Now().Add(-2 * time.Minute)

	store.getBucket("fresh")

	if store.size() != 1 {
		t.Errorf("expected idle bucket to be swept, have %d buckets", store.size())
	}
	if store.getBucket("idle") == old {
		t.Error("expected a new bucket for a swept key")
	}
}
