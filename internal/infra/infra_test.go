package infra

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

// fakeClock drives a RateLimiter without real sleeping.
type fakeClock struct {
	mu    sync.Mutex
	t     time.Time
	slept time.Duration
}

func (c *fakeClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.slept += d
	c.mu.Unlock()
	return nil
}

func newFakeLimiter(limit int) (*RateLimiter, *fakeClock) {
	clk := &fakeClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	rl := NewPerMinute(limit)
	rl.now = clk.now
	rl.sleep = clk.sleep
	return rl, clk
}

// ── RateLimiter ──

func TestRateLimiterFirstNAreImmediate(t *testing.T) {
	for _, n := range []int{1, 5, 30} {
		rl, clk := newFakeLimiter(n)
		for i := 0; i < n; i++ {
			if err := rl.Wait(context.Background()); err != nil {
				t.Fatalf("n=%d Wait #%d: %v", n, i, err)
			}
		}
		if clk.slept != 0 {
			t.Errorf("n=%d: first %d calls slept %v, want 0", n, n, clk.slept)
		}
	}
}

func TestRateLimiterNPlusOneWaitsFullWindow(t *testing.T) {
	for _, n := range []int{1, 3, 30} {
		rl, clk := newFakeLimiter(n)
		start := clk.now()
		for i := 0; i <= n; i++ {
			if err := rl.Wait(context.Background()); err != nil {
				t.Fatalf("Wait: %v", err)
			}
		}
		if elapsed := clk.now().Sub(start); elapsed < time.Minute {
			t.Errorf("n=%d: %d calls took %v, want >= 1m", n, n+1, elapsed)
		}
	}
}

func TestRateLimiterRollingWindow(t *testing.T) {
	rl, clk := newFakeLimiter(2)
	ctx := context.Background()

	_ = rl.Wait(ctx) // t=0
	clk.t = clk.t.Add(30 * time.Second)
	_ = rl.Wait(ctx) // t=30s

	// Third call must wait for the t=0 call to leave the window (t=60s),
	// not for a fixed bucket boundary.
	before := clk.now()
	_ = rl.Wait(ctx)
	if got := clk.now().Sub(before); got != 30*time.Second {
		t.Errorf("third call waited %v, want 30s", got)
	}
}

func TestRateLimiterUsed(t *testing.T) {
	rl, clk := newFakeLimiter(5)
	ctx := context.Background()
	_ = rl.Wait(ctx)
	_ = rl.Wait(ctx)
	if got := rl.Used(); got != 2 {
		t.Errorf("Used: got %d, want 2", got)
	}
	clk.t = clk.t.Add(time.Minute)
	if got := rl.Used(); got != 0 {
		t.Errorf("Used after window: got %d, want 0", got)
	}
}

func TestRateLimiterZeroLimitDoesNotStarve(t *testing.T) {
	rl, _ := newFakeLimiter(0)
	if rl.Limit() != 1 {
		t.Fatalf("Limit: got %d, want 1", rl.Limit())
	}
	for i := 0; i < 3; i++ {
		if err := rl.Wait(context.Background()); err != nil {
			t.Fatalf("Wait: %v", err)
		}
	}
}

func TestRateLimiterCancelled(t *testing.T) {
	rl := NewPerMinute(1)
	if err := rl.Wait(context.Background()); err != nil {
		t.Fatalf("first Wait: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := rl.Wait(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
}

func TestRateLimiterConcurrentWaitersShareWindow(t *testing.T) {
	rl, clk := newFakeLimiter(4)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = rl.Wait(context.Background())
		}()
	}
	wg.Wait()
	if clk.slept < time.Minute {
		t.Errorf("8 calls at 4/min slept %v, want >= 1m", clk.slept)
	}
}

// ── Cache ──

func TestCacheExpiry(t *testing.T) {
	c := NewCache(time.Minute)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return base }

	c.Set("BTC", 1)
	if v, ok := c.Get("BTC"); !ok || v.(int) != 1 {
		t.Fatalf("Get BTC: got %v, %v", v, ok)
	}

	c.now = func() time.Time { return base.Add(2 * time.Minute) }
	if _, ok := c.Get("BTC"); ok {
		t.Error("expected BTC to be expired")
	}

	c.Flush()
	if c.Len() != 0 {
		t.Errorf("Len after Flush: got %d", c.Len())
	}
}

// ── HTTP ──

func TestDoGetSetsHeaders(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Test") != "yes" {
			t.Errorf("X-Test header: got %q", r.Header.Get("X-Test"))
		}
		if r.Header.Get("User-Agent") != UserAgent {
			t.Errorf("User-Agent: got %q", r.Header.Get("User-Agent"))
		}
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	body, status, err := DoGet(context.Background(), srv.URL, map[string]string{"X-Test": "yes"})
	if err != nil {
		t.Fatalf("DoGet: %v", err)
	}
	defer body.Close()
	data, _ := io.ReadAll(body)
	if status != http.StatusOK || string(data) != `{"ok":true}` {
		t.Errorf("got %d %s", status, data)
	}
}

func TestDoGetErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`slow down`))
	}))
	defer srv.Close()

	_, status, err := DoGet(context.Background(), srv.URL, nil)
	var httpErr *ErrHTTP
	if !errors.As(err, &httpErr) {
		t.Fatalf("expected *ErrHTTP, got %T (%v)", err, err)
	}
	if status != http.StatusTooManyRequests || httpErr.StatusCode != http.StatusTooManyRequests {
		t.Errorf("status: got %d / %d", status, httpErr.StatusCode)
	}
	if string(httpErr.Body) != "slow down" {
		t.Errorf("body: got %q", httpErr.Body)
	}
}
