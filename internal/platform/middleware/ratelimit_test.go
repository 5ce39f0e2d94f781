package middleware

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
)

func newLimitedHandler(cfg RateLimitConfig) echo.HandlerFunc {
	return RateLimit(cfg)(func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})
}

func requestFrom(e *echo.Echo, ip string) (echo.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(http.MethodGet, "/providers/top", nil)
	req.RemoteAddr = ip + ":12345"
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func TestRateLimit_RequestsWithinLimit(t *testing.T) {
	e := echo.New()
	handler := newLimitedHandler(RateLimitConfig{RequestsPerMinute: 10, BurstSize: 5})

	for i := 0; i < 5; i++ {
		c, rec := requestFrom(e, "10.0.0.1")
		if err := handler(c); err != nil {
			t.Fatalf("request %d: expected no error, got %v", i+1, err)
		}
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i+1, rec.Code)
		}
		if got := rec.Header().Get("X-RateLimit-Limit"); got != "10" {
			t.Errorf("request %d: expected X-RateLimit-Limit '10', got %q", i+1, got)
		}
	}
}

func TestRateLimit_ExceedsLimit(t *testing.T) {
	e := echo.New()
	handler := newLimitedHandler(RateLimitConfig{RequestsPerMinute: 1, BurstSize: 2})

	for i := 0; i < 2; i++ {
		c, _ := requestFrom(e, "10.0.0.1")
		if err := handler(c); err != nil {
			t.Fatalf("request %d: expected no error, got %v", i+1, err)
		}
	}

	c, rec := requestFrom(e, "10.0.0.1")
	err := handler(c)

	httpErr, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("expected echo.HTTPError, got %T", err)
	}
	if httpErr.Code != http.StatusTooManyRequests {
		t.Errorf("expected 429, got %d", httpErr.Code)
	}

	retryVal, parseErr := strconv.Atoi(rec.Header().Get("Retry-After"))
	if parseErr != nil {
		t.Fatalf("Retry-After header is not a valid integer: %q", rec.Header().Get("Retry-After"))
	}
	// One request per minute refills in about 60 seconds.
	if retryVal < 1 || retryVal > 61 {
		t.Errorf("expected Retry-After in [1,61], got %d", retryVal)
	}
	if rec.Header().Get("X-RateLimit-Remaining") != "0" {
		t.Errorf("expected X-RateLimit-Remaining '0', got %q", rec.Header().Get("X-RateLimit-Remaining"))
	}
}

func TestRateLimit_PerClientIsolation(t *testing.T) {
	e := echo.New()
	handler := newLimitedHandler(RateLimitConfig{RequestsPerMinute: 1, BurstSize: 1})

	c1, _ := requestFrom(e, "10.0.0.1")
	if err := handler(c1); err != nil {
		t.Fatalf("client a first request: expected no error, got %v", err)
	}

	c2, _ := requestFrom(e, "10.0.0.1")
	if err := handler(c2); err == nil {
		t.Fatal("client a second request: expected rate limit error")
	}

	c3, _ := requestFrom(e, "10.0.0.2")
	if err := handler(c3); err != nil {
		t.Fatalf("client b first request: expected no error, got %v", err)
	}
}

func TestRateLimit_Skipper(t *testing.T) {
	e := echo.New()
	handler := newLimitedHandler(RateLimitConfig{
		RequestsPerMinute: 1,
		BurstSize:         1,
		Skipper:           func(echo.Context) bool { return true },
	})

	for i := 0; i < 3; i++ {
		c, _ := requestFrom(e, "10.0.0.1")
		if err := handler(c); err != nil {
			t.Fatalf("request %d: skipped requests must not be limited, got %v", i+1, err)
		}
	}
}

func TestRateLimit_DefaultConfig(t *testing.T) {
	cfg := DefaultRateLimitConfig()
	if cfg.RequestsPerMinute != 10 {
		t.Errorf("expected RequestsPerMinute 10, got %d", cfg.RequestsPerMinute)
	}
	if cfg.BurstSize != 10 {
		t.Errorf("expected BurstSize 10, got %d", cfg.BurstSize)
	}
}

func TestRateLimit_UnsetConfigUsesDefaults(t *testing.T) {
	e := echo.New()
	handler := newLimitedHandler(RateLimitConfig{})

	for i := 0; i < 10; i++ {
		c, rec := requestFrom(e, "10.0.0.9")
		if err := handler(c); err != nil {
			t.Fatalf("request %d: expected no error, got %v", i+1, err)
		}
		if got := rec.Header().Get("X-RateLimit-Limit"); got != "10" {
			t.Errorf("request %d: expected X-RateLimit-Limit '10', got %q", i+1, got)
		}
	}

	c, _ := requestFrom(e, "10.0.0.9")
	if err := handler(c); err == nil {
		t.Error("expected the 11th request to be limited by the default burst")
	}
}

func TestRateLimiterStore_SweepsIdleBuckets(t *testing.T) {
	store := newRateLimiterStore(RateLimitConfig{RequestsPerMinute: 60, BurstSize: 5})
	now := time.Now()
	store.now = func() time.Time { return now }

	idle := store.getBucket("10.0.0.1")
	active := store.getBucket("10.0.0.2")
	idle.lastRefill = now.Add(-time.Hour)
	active.allow()
	if store.size() != 2 {
		t.Fatalf("expected 2 buckets, got %d", store.size())
	}

	// No sweep before the interval has passed.
	store.getBucket("10.0.0.3")
	if store.size() != 3 {
		t.Fatalf("expected 3 buckets before sweep, got %d", store.size())
	}

	now = now.Add(sweepInterval)
	store.getBucket("10.0.0.2")
	if store.size() != 2 {
		t.Errorf("expected idle bucket to be dropped, got %d buckets", store.size())
	}
	if store.getBucket("10.0.0.2") != active {
		t.Error("active bucket must survive the sweep")
	}
}

func TestRateLimiterStore_IdleTTLCoversRefill(t *testing.T) {
	store := newRateLimiterStore(RateLimitConfig{RequestsPerMinute: 1, BurstSize: 20})
	if store.idleTTL != 20*time.Minute {
		t.Errorf("expected idle TTL of 20m, got %s", store.idleTTL)
	}
	store = newRateLimiterStore(DefaultRateLimitConfig())
	if store.idleTTL != minBucketIdle {
		t.Errorf("expected idle TTL of %s, got %s", minBucketIdle, store.idleTTL)
	}
}

func TestTokenBucket_RetryAfterWithZeroRate(t *testing.T) {
	b := newTokenBucket(0, 1)
	b.allow()
	if ra := b.retryAfter(); ra != 1 {
		t.Errorf("expected retryAfter 1 for zero rate, got %d", ra)
	}
}

func TestRateLimiterStore_DoubleCheck(t *testing.T) {
	store := newRateLimiterStore(RateLimitConfig{RequestsPerMinute: 60, BurstSize: 5})

	if store.rate != 1 {
		t.Errorf("expected refill rate 1/s for 60/min, got %f", store.rate)
	}

	b1 := store.getBucket("key1")
	if b1 == nil {
		t.Fatal("expected non-nil bucket")
	}
	if b2 := store.getBucket("key1"); b1 != b2 {
		t.Error("expected same bucket instance for same key")
	}
	if b3 := store.getBucket("key2"); b1 == b3 {
		t.Error("expected different bucket for different key")
	}
}
