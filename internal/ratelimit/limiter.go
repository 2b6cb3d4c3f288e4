package ratelimit

import (
	"sync"
	"time"
)

type KeyType string

const (
	KeyIP     KeyType = "ip"
	KeyIPPath KeyType = "ip_path"
)

// Key builds the bucket key for a client. Unknown key types fall back to
// the client IP.
func Key(kind KeyType, clientIP, path string) string {
	if clientIP == "" {
		return ""
	}
	if kind == KeyIPPath {
		return string(kind) + ":" + clientIP + ":" + path
	}
	return string(KeyIP) + ":" + clientIP
}

// Limiter is a set of token buckets, one per key.
type Limiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
}

type bucket struct {
	tokens float64
	last   time.Time
	burst  float64
	perSec float64
}

func NewLimiter() *Limiter {
	return &Limiter{buckets: make(map[string]*bucket)}
}

// Allow takes one token from the bucket for key. An empty key or a
// non-positive rate or burst disables limiting.
func (l *Limiter) Allow(key string, rps float64, burst int, now time.Time) bool {
	if key == "" || rps <= 0 || burst <= 0 {
		return true
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	b := l.buckets[key]
	if b == nil {
		b = &bucket{tokens: float64(burst), last: now}
		l.buckets[key] = b
	}
	b.configure(rps, float64(burst))
	b.refill(now)
	return b.take()
}

// configure applies a rate change from a config reload without granting
// more than the new burst.
func (b *bucket) configure(rps, burst float64) {
	b.perSec = rps
	b.burst = burst
	b.tokens = min(b.tokens, burst)
}

func (b *bucket) refill(now time.Time) {
	if elapsed := now.Sub(b.last).Seconds(); elapsed > 0 {
		b.tokens = min(b.burst, b.tokens+elapsed*b.perSec)
	}
	b.last = now
}

func (b *bucket) take() bool {
	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}

// Sweep drops buckets idle for longer than maxIdle and returns how many
// remain. A bucket idle that long has refilled, so dropping it changes
// nothing for the client.
func (l *Limiter) Sweep(now time.Time, maxIdle time.Duration) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	for key, b := range l.buckets {
		if now.Sub(b.last) > maxIdle {
			delete(l.buckets, key)
		}
	}
	return len(l.buckets)
}
