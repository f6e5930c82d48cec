package ratelimiter

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// DefaultIdleTTL is how long a client bucket is kept without any request.
const DefaultIdleTTL = 3 * time.Minute

// Limiter enforces a token bucket rate limit per client key.
//
// Every key (typically a client IP) gets its own bucket from
// golang.org/x/time/rate, created on first use:
//  1. Tokens are added to each bucket at requestsPerSecond
//  2. Each request consumes one token from its client's bucket
//  3. A request finding the bucket empty is rejected
//  4. burst bounds how many requests a quiet client may send at once
//
// Buckets of clients that stayed idle longer than the TTL are dropped by Sweep
// (or periodically by Run), so the map does not grow with every client ever
// seen.
//
// Thread safety:
// All methods are safe for concurrent use.
type Limiter struct {
	limit   rate.Limit
	burst   int
	idleTTL time.Duration

	mu      sync.Mutex
	clients map[string]*client

	// now is replaced in tests
	now func() time.Time
}

type client struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// New creates a Limiter granting each key requestsPerSecond with the given
// burst.
//
// Special cases:
//   - requestsPerSecond = 0: No rate limiting, Allow always succeeds
//   - burst = 0: Defaults to requestsPerSecond
//
// Example:
//
//	// 100 req/s per client, bursts of 200
//	limiter := New(100, 200)
func New(requestsPerSecond, burst uint) *Limiter {
	l := &Limiter{
		limit:   rate.Limit(requestsPerSecond),
		burst:   int(burst),
		idleTTL: DefaultIdleTTL,
		clients: make(map[string]*client),
		now:     time.Now,
	}

	if requestsPerSecond == 0 {
		l.limit = rate.Inf
	}
	if l.burst == 0 {
		l.burst = int(requestsPerSecond)
	}

	return l
}

// Unlimited reports whether the limiter lets everything through.
func (l *Limiter) Unlimited() bool {
	return l.limit == rate.Inf
}

// Allow reports whether a request from key may proceed now, consuming one
// token from key's bucket if so.
//
// Thread safety:
// Safe to call concurrently.
func (l *Limiter) Allow(key string) bool {
	if l.Unlimited() {
		return true
	}

	now := l.now()

	l.mu.Lock()
	c, ok := l.clients[key]
	if !ok {
		c = &client{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.clients[key] = c
	}
	c.lastSeen = now
	l.mu.Unlock()

	return c.limiter.AllowN(now, 1)
}

// Sweep drops the buckets of clients idle for longer than the TTL.
//
// Returns the number of buckets removed.
func (l *Limiter) Sweep() int {
	cutoff := l.now().Add(-l.idleTTL)

	l.mu.Lock()
	defer l.mu.Unlock()

	removed := 0
	for key, c := range l.clients {
		if c.lastSeen.Before(cutoff) {
			delete(l.clients, key)
			removed++
		}
	}
	return removed
}

// Run calls Sweep every interval until ctx is cancelled.
func (l *Limiter) Run(ctx context.Context, interval time.Duration) {
	if l.Unlimited() {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.Sweep()
		}
	}
}

// Len returns the number of tracked clients.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.clients)
}
