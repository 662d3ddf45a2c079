package server

import (
	"fmt"
	"sync"
	"time"
)

// RateLimitConfig holds per-client limits. Zero values disable a limit.
type RateLimitConfig struct {
	Enabled           bool
	RequestsPerMinute int
	RequestsPerHour   int
	MaxRequestsPerDay int
	MaxDataPerDay     int64 // bytes
}

// RateLimiter enforces fixed-window request limits and daily quotas per
// client key.
type RateLimiter struct {
	mu      sync.Mutex
	cfg     RateLimitConfig
	now     func() time.Time
	clients map[string]*clientUsage
}

type window struct {
	start time.Time
	count int
}

// roll starts a new window when period has elapsed.
func (w *window) roll(now time.Time, period time.Duration) {
	if w.start.IsZero() || now.Sub(w.start) >= period {
		w.start, w.count = now, 0
	}
}

type clientUsage struct {
	minute, hour window
	day          time.Time
	dayRequests  int
	dayBytes     int64
}

// Usage is a snapshot of one client's counters.
type Usage struct {
	RequestsLastMinute int
	RequestsLastHour   int
	RequestsToday      int
	BytesToday         int64
}

// NewRateLimiter creates a limiter for cfg.
func NewRateLimiter(cfg RateLimitConfig) *RateLimiter {
	return &RateLimiter{cfg: cfg, now: time.Now, clients: make(map[string]*clientUsage)}
}

// Allow records one request of size bytes for client, or returns a
// *RateLimitError or *QuotaExceededError without counting it.
func (rl *RateLimiter) Allow(client string, size int64) error {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	u, ok := rl.clients[client]
	if !ok {
		u = &clientUsage{}
		rl.clients[client] = u
	}
	u.minute.roll(now, time.Minute)
	u.hour.roll(now, time.Hour)
	if day := midnight(now); !u.day.Equal(day) {
		u.day, u.dayRequests, u.dayBytes = day, 0, 0
	}

	if err := checkWindow("minute", rl.cfg.RequestsPerMinute, u.minute, time.Minute, now); err != nil {
		return err
	}
	if err := checkWindow("hour", rl.cfg.RequestsPerHour, u.hour, time.Hour, now); err != nil {
		return err
	}
	resets := u.day.AddDate(0, 0, 1)
	if n := rl.cfg.MaxRequestsPerDay; n > 0 && u.dayRequests >= n {
		return &QuotaExceededError{Type: "requests", Limit: int64(n), Used: int64(u.dayRequests), Resets: resets}
	}
	if n := rl.cfg.MaxDataPerDay; n > 0 && u.dayBytes+size > n {
		return &QuotaExceededError{Type: "data", Limit: n, Used: u.dayBytes, Resets: resets}
	}

	u.minute.count++
	u.hour.count++
	u.dayRequests++
	u.dayBytes += size
	return nil
}

// Usage returns the counters recorded for client.
func (rl *RateLimiter) Usage(client string) Usage {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	u, ok := rl.clients[client]
	if !ok {
		return Usage{}
	}
	return Usage{
		RequestsLastMinute: u.minute.count,
		RequestsLastHour:   u.hour.count,
		RequestsToday:      u.dayRequests,
		BytesToday:         u.dayBytes,
	}
}

func checkWindow(kind string, limit int, w window, period time.Duration, now time.Time) error {
	if limit > 0 && w.count >= limit {
		return &RateLimitError{Type: kind, Limit: limit, RetryAfter: period - now.Sub(w.start)}
	}
	return nil
}

func midnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// RateLimitError reports an exceeded request window.
type RateLimitError struct {
	Type       string // "minute" or "hour"
	Limit      int
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded for %s (limit: %d, retry after: %v)", e.Type, e.Limit, e.RetryAfter)
}

// QuotaExceededError reports an exhausted daily quota.
type QuotaExceededError struct {
	Type   string // "requests" or "data"
	Limit  int64
	Used   int64
	Resets time.Time
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("quota exceeded for %s (used: %d, limit: %d, resets: %s)",
		e.Type, e.Used, e.Limit, e.Resets.Format(time.RFC3339))
}
