// Package ratelimit provides per key token bucket limiting. Buckets live in a
// TTL cache so idle keys are evicted instead of accumulating for the life of
// the process.
package ratelimit

import (
	"sync"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"golang.org/x/time/rate"
)

// Limiter decides whether an operation identified by key may proceed.
type Limiter interface {
	// Allow consumes a token for key. When the bucket is empty it returns
	// false and how long the caller should wait before retrying.
	Allow(key string) (bool, time.Duration)
}

type Config struct {
	// Requests allowed per Window.
	Requests int
	Window   time.Duration
	// IdleTTL is how long a bucket is kept after creation. A bucket refills
	// completely within Window, so any IdleTTL >= Window is lossless.
	// Defaults to Window.
	IdleTTL time.Duration
}

// KeyedLimiter is a Limiter keeping one rate.Limiter per key.
type KeyedLimiter struct {
	mu    sync.Mutex
	cfg   Config
	cache *ttlcache.Cache[string, *rate.Limiter]
	now   func() time.Time
}

var _ Limiter = (*KeyedLimiter)(nil)

func NewKeyedLimiter(cfg Config) *KeyedLimiter {
	if cfg.Requests <= 0 {
		cfg.Requests = 10
	}
	if cfg.Window <= 0 {
		cfg.Window = time.Hour
	}
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = cfg.Window
	}
	cache := ttlcache.New[string, *rate.Limiter](
		ttlcache.WithTTL[string, *rate.Limiter](cfg.IdleTTL),
		ttlcache.WithDisableTouchOnHit[string, *rate.Limiter](),
	)
	go cache.Start()
	return &KeyedLimiter{
		cfg:   cfg,
		cache: cache,
		now:   time.Now,
	}
}

func (l *KeyedLimiter) Allow(key string) (bool, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var limiter *rate.Limiter
	if item := l.cache.Get(key); item != nil {
		limiter = item.Value()
	} else {
		every := rate.Every(l.cfg.Window / time.Duration(l.cfg.Requests))
		limiter = rate.NewLimiter(every, l.cfg.Requests)
		l.cache.Set(key, limiter, ttlcache.DefaultTTL)
	}

	now := l.now()
	r := limiter.ReserveN(now, 1)
	if !r.OK() {
		return false, l.cfg.Window
	}
	if delay := r.DelayFrom(now); delay > 0 {
		r.CancelAt(now)
		return false, delay
	}
	return true, 0
}

// Stop ends the background eviction loop.
func (l *KeyedLimiter) Stop() {
	l.cache.Stop()
}

// Unlimited allows everything. Used when rate limiting is disabled.
type Unlimited struct{}

func (Unlimited) Allow(string) (bool, time.Duration) { return true, 0 }
