package webhook

import (
	"sync"
	"time"
)

// rateLimiter is a per-IP token bucket, one per configured endpoint
// class (§4.8: health/status get generous limits, mutating endpoints
// get tighter ones).
type rateLimiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	rate    float64 // tokens per second
	burst   int     // max tokens, also the window's per-minute limit
}

type bucket struct {
	tokens float64
	last   time.Time
}

// newRateLimiter builds a limiter refilling at perMinute/60 tokens per
// second with a burst capacity of perMinute.
func newRateLimiter(perMinute int) *rateLimiter {
	return &rateLimiter{
		buckets: make(map[string]*bucket),
		rate:    float64(perMinute) / 60.0,
		burst:   perMinute,
	}
}

// Allow reports whether ip may proceed, and the current remaining
// tokens (floored) for the X-RateLimit-Remaining header.
func (rl *rateLimiter) Allow(ip string) (bool, int) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	b, exists := rl.buckets[ip]
	if !exists {
		b = &bucket{tokens: float64(rl.burst), last: time.Now()}
		rl.buckets[ip] = b
	}

	now := time.Now()
	elapsed := now.Sub(b.last).Seconds()
	b.last = now

	b.tokens += elapsed * rl.rate
	if b.tokens > float64(rl.burst) {
		b.tokens = float64(rl.burst)
	}

	if b.tokens >= 1 {
		b.tokens--
		return true, int(b.tokens)
	}
	return false, 0
}

// Cleanup evicts buckets untouched for a while, bounding memory use
// under a long-lived process with many distinct source IPs.
func (rl *rateLimiter) Cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	for ip, b := range rl.buckets {
		if now.Sub(b.last) > 10*time.Minute {
			delete(rl.buckets, ip)
		}
	}
}
