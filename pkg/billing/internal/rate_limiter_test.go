package internal

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"
)

// fakeClock lets tests move the limiter's window deterministically.
type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestLimiter(limit int, window time.Duration) (*RateLimiter, *fakeClock) {
	clock := &fakeClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	rl := NewRateLimiter(limit, window)
	rl.now = clock.now
	return rl, clock
}

func TestRateLimiter_AllowsUpToLimitPerWindow(t *testing.T) {
	rl, clock := newTestLimiter(3, time.Minute)

	for i := 0; i < 3; i++ {
		if ok, _ := rl.allow("10.0.0.1"); !ok {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}
	ok, retryAfter := rl.allow("10.0.0.1")
	if ok {
		t.Fatal("4th request should be rejected")
	}
	if retryAfter <= 0 || retryAfter > time.Minute {
		t.Errorf("unexpected retryAfter %v", retryAfter)
	}

	// Other clients are unaffected
	if ok, _ := rl.allow("10.0.0.2"); !ok {
		t.Error("different IP should be allowed")
	}

	clock.advance(time.Minute)
	if ok, _ := rl.allow("10.0.0.1"); !ok {
		t.Error("request after window reset should be allowed")
	}
}

func TestRateLimiter_CleanupRemovesExpiredEntries(t *testing.T) {
	rl, clock := newTestLimiter(10, time.Minute)

	rl.allow("192.168.1.100")
	clock.advance(30 * time.Second)
	rl.allow("192.168.1.200")
	clock.advance(45 * time.Second)

	rl.Cleanup()

	if _, exists := rl.requests["192.168.1.100"]; exists {
		t.Error("expired entry should have been removed")
	}
	if _, exists := rl.requests["192.168.1.200"]; !exists {
		t.Error("active entry should be kept")
	}
}

func TestRateLimiter_CleanupBoundsMapSize(t *testing.T) {
	rl, clock := newTestLimiter(10, time.Minute)

	for i := 0; i < 150; i++ {
		rl.allow("172.16.0." + strconv.Itoa(i))
	}
	clock.advance(2 * time.Minute)

	// Crossing the cleanupEvery threshold sweeps the expired buckets
	for i := 0; i < rl.cleanupEvery; i++ {
		rl.allow("10.0.0.1")
	}

	if len(rl.requests) > 1 {
		t.Errorf("expected expired buckets to be swept, map size %d", len(rl.requests))
	}
}

func TestRateLimiter_Middleware(t *testing.T) {
	rl, _ := newTestLimiter(1, time.Minute)
	handler := rl.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/webhook", http.NoBody)
	req.RemoteAddr = "203.0.113.7:5555"

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("first request: status %d", w.Code)
	}

	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("second request: status %d, want 429", w.Code)
	}
	if w.Header().Get("Retry-After") == "" {
		t.Error("missing Retry-After header")
	}
}

func TestRateLimiter_IgnoresForwardedFor(t *testing.T) {
	rl, _ := newTestLimiter(1, time.Minute)
	handler := rl.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	codes := make([]int, 0, 3)
	for _, xff := range []string{"198.51.100.1", "198.51.100.2", "198.51.100.3"} {
		req := httptest.NewRequest(http.MethodPost, "/webhook", http.NoBody)
		req.RemoteAddr = "203.0.113.7:5555"
		req.Header.Set("X-Forwarded-For", xff)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		codes = append(codes, w.Code)
	}

	want := []int{http.StatusOK, http.StatusTooManyRequests, http.StatusTooManyRequests}
	for i := range want {
		if codes[i] != want[i] {
			t.Fatalf("statuses = %v, want %v: rotating X-Forwarded-For must not reset the limit", codes, want)
		}
	}
}

func TestGetClientIP(t *testing.T) {
	tests := []struct {
		name       string
		xff        string
		remoteAddr string
		want       string
	}{
		{"forwarded header ignored", "198.51.100.1, 10.0.0.1", "10.0.0.1:1234", "10.0.0.1"},
		{"remote with port", "", "203.0.113.9:443", "203.0.113.9"},
		{"remote without port", "", "203.0.113.9", "203.0.113.9"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", http.NoBody)
			req.RemoteAddr = tt.remoteAddr
			if tt.xff != "" {
				req.Header.Set("X-Forwarded-For", tt.xff)
			}
			if got := GetClientIP(req); got != tt.want {
				t.Errorf("GetClientIP() = %q, want %q", got, tt.want)
			}
		})
	}
}
