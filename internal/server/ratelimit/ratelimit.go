// Package ratelimit limits API requests per client with token buckets.
package ratelimit

import (
	"sync"
	"time"
)

// bucket refills continuously at rate tokens per second up to capacity.
type bucket struct {
	capacity float64
	rate     float64
	tokens   float64
	refilled time.Time
	used     time.Time
}

func newBucket(capacity int, rate float64, now time.Time) *bucket {
	return &bucket{capacity: float64(capacity), rate: rate, tokens: float64(capacity), refilled: now, used: now}
}

func (b *bucket) refill(now time.Time) {
	b.tokens = min(b.capacity, b.tokens+now.Sub(b.refilled).Seconds()*b.rate)
	b.refilled = now
}

// take consumes one token if available. full is when the bucket will be
// full again; wait is how long until the next token when none was left.
func (b *bucket) take(now time.Time) (ok bool, remaining int, full time.Time, wait time.Duration) {
	b.refill(now)
	b.used = now
	if b.tokens >= 1 {
		b.tokens--
		ok = true
	} else {
		wait = b.until(1)
	}
	return ok, int(b.tokens), now.Add(b.until(b.capacity)), wait
}

// until returns how long the bucket needs to hold n tokens.
func (b *bucket) until(n float64) time.Duration {
	missing := n - b.tokens
	if missing <= 0 {
		return 0
	}
	return time.Duration(missing / b.rate * float64(time.Second))
}

// Info describes the limit that applied to one request.
type Info struct {
	Allowed    bool
	Limit      int
	Remaining  int
	ResetTime  time.Time
	RetryAfter time.Duration
}

// Config holds rate limiting configuration.
type Config struct {
	Enabled         bool
	DefaultLimit    int
	DefaultWindow   time.Duration
	CleanupInterval time.Duration
	// IdleTTL is how long an unused bucket survives cleanup. Defaults to an hour.
	IdleTTL         time.Duration
	Whitelist       map[string]bool
	Blacklist       map[string]bool
	EndpointConfigs []EndpointConfig
}

// Limiter tracks one bucket per client and endpoint rule.
type Limiter struct {
	config *Config
	now    func() time.Time

	mu      sync.Mutex
	buckets map[string]*bucket

	stop     chan struct{}
	stopOnce sync.Once
}

// NewLimiter creates a limiter. A nil config allows 1000 requests per minute per client.
func NewLimiter(config *Config) *Limiter {
	if config == nil {
		config = &Config{
			Enabled:         true,
			DefaultLimit:    1000,
			DefaultWindow:   time.Minute,
			CleanupInterval: 5 * time.Minute,
		}
	}
	if config.IdleTTL <= 0 {
		config.IdleTTL = time.Hour
	}

	l := &Limiter{
		config:  config,
		now:     time.Now,
		buckets: make(map[string]*bucket),
		stop:    make(chan struct{}),
	}
	if config.Enabled && config.CleanupInterval > 0 {
		go l.cleanupLoop(config.CleanupInterval)
	}
	return l
}

// Allow checks whether clientID may call method on path and consumes a token if so.
func (l *Limiter) Allow(clientID string, path string, method string) (bool, Info) {
	if !l.config.Enabled || l.config.Whitelist[clientID] {
		return true, Info{Allowed: true}
	}
	if l.config.Blacklist[clientID] {
		return false, Info{}
	}

	rule := MatchEndpoint(path, method, l.config.EndpointConfigs)
	key := clientID + "|*"
	if rule == nil {
		rule = &EndpointConfig{Limit: l.config.DefaultLimit, Window: l.config.DefaultWindow}
	} else {
		// every path under a prefix rule shares the rule's bucket
		key = clientID + "|" + rule.Method + " " + rule.Path
	}
	if rule.Limit <= 0 {
		return true, Info{Allowed: true}
	}

	now := l.now()
	l.mu.Lock()
	b, ok := l.buckets[key]
	if !ok {
		burst := rule.Burst
		if burst <= 0 {
			burst = rule.Limit
		}
		b = newBucket(burst, float64(rule.Limit)/rule.Window.Seconds(), now)
		l.buckets[key] = b
	}
	allowed, remaining, full, wait := b.take(now)
	l.mu.Unlock()

	return allowed, Info{
		Allowed:    allowed,
		Limit:      rule.Limit,
		Remaining:  remaining,
		ResetTime:  full,
		RetryAfter: wait,
	}
}

func (l *Limiter) cleanupLoop(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			l.evictIdle()
		case <-l.stop:
			return
		}
	}
}

// evictIdle drops buckets not used within IdleTTL.
func (l *Limiter) evictIdle() int {
	cutoff := l.now().Add(-l.config.IdleTTL)
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for key, b := range l.buckets {
		if b.used.Before(cutoff) {
			delete(l.buckets, key)
			n++
		}
	}
	return n
}

// Stop ends the cleanup goroutine. It is safe to call more than once.
func (l *Limiter) Stop() {
	l.stopOnce.Do(func() { close(l.stop) })
}
