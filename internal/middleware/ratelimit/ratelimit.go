package ratelimit

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"
)

const window = time.Minute

// Limiter allows a fixed number of requests per key in each one-minute
// window. The window opens with the first request for the key.
type Limiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	now     func() time.Time

	limit    int
	idleTTL  time.Duration
	rejected atomic.Int64

	stop     chan struct{}
	stopOnce sync.Once
}

type bucket struct {
	opened time.Time
	seen   time.Time
	count  int
}

type Config struct {
	RequestsPerMinute int
	// CleanupInterval is how often idle buckets are dropped.
	CleanupInterval time.Duration
	// IdleTTL is how long a bucket survives without requests.
	IdleTTL time.Duration
}

func DefaultConfig() Config {
	return Config{
		RequestsPerMinute: 120,
		CleanupInterval:   5 * time.Minute,
		IdleTTL:           10 * time.Minute,
	}
}

// NewLimiter starts a limiter and its cleanup goroutine. Zero config fields
// take their defaults.
func NewLimiter(config Config) *Limiter {
	def := DefaultConfig()
	if config.RequestsPerMinute <= 0 {
		config.RequestsPerMinute = def.RequestsPerMinute
	}
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = def.CleanupInterval
	}
	if config.IdleTTL <= 0 {
		config.IdleTTL = def.IdleTTL
	}

	rl := &Limiter{
		buckets: make(map[string]*bucket),
		now:     time.Now,
		limit:   config.RequestsPerMinute,
		idleTTL: config.IdleTTL,
		stop:    make(chan struct{}),
	}
	go rl.cleanupLoop(config.CleanupInterval)
	return rl
}

// Allow counts a request for key and reports whether it is within the limit.
func (rl *Limiter) Allow(key string) bool {
	ok, _ := rl.take(key)
	return ok
}

// take is Allow that also returns how long until the key's window resets.
func (rl *Limiter) take(key string) (bool, time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	b := rl.buckets[key]
	if b == nil || now.Sub(b.opened) >= window {
		b = &bucket{opened: now}
		rl.buckets[key] = b
	}
	b.seen = now
	b.count++

	if b.count > rl.limit {
		rl.rejected.Add(1)
		return false, b.opened.Add(window).Sub(now)
	}
	return true, 0
}

func (rl *Limiter) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			rl.cleanupStaleEntries()
		case <-rl.stop:
			return
		}
	}
}

// cleanupStaleEntries drops buckets idle for longer than IdleTTL.
func (rl *Limiter) cleanupStaleEntries() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := rl.now().Add(-rl.idleTTL)
	n := 0
	for key, b := range rl.buckets {
		if b.seen.Before(cutoff) {
			delete(rl.buckets, key)
			n++
		}
	}
	return n
}

// Stop ends the cleanup goroutine. Safe to call more than once.
func (rl *Limiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stop) })
}

type Metrics struct {
	Rejected    int64
	ClientCount int64
}

func (rl *Limiter) GetMetrics() Metrics {
	rl.mu.Lock()
	n := len(rl.buckets)
	rl.mu.Unlock()
	return Metrics{Rejected: rl.rejected.Load(), ClientCount: int64(n)}
}

// Middleware rejects requests over the limit with Retry-After set to the
// seconds left in the window. keyFn picks the bucket; onLimit writes the
// body and defaults to a plain 429.
func (rl *Limiter) Middleware(keyFn func(*http.Request) string, onLimit func(http.ResponseWriter, *http.Request)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ok, wait := rl.take(keyFn(r))
			if ok {
				next.ServeHTTP(w, r)
				return
			}
			secs := int(math.Ceil(wait.Seconds()))
			w.Header().Set("Retry-After", strconv.Itoa(max(secs, 1)))
			if onLimit == nil {
				http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
				return
			}
			onLimit(w, r)
		})
	}
}
