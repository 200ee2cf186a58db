package ratelimit

import (
	"context"
	"math"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter is a keyed token bucket. The HTTP feed keys it by host.
type Limiter struct {
	mu  sync.Mutex
	m   map[string]*rate.Limiter
	now func() time.Time
}

func New() *Limiter { return &Limiter{m: make(map[string]*rate.Limiter), now: time.Now} }

func (l *Limiter) get(key string, capacity, refillPerSec float64) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	lim, ok := l.m[key]
	if !ok {
		burst := int(math.Max(1, math.Floor(capacity)))
		lim = rate.NewLimiter(rate.Limit(refillPerSec), burst)
		l.m[key] = lim
	}
	return lim
}

// Allow returns true if one token can be consumed for key.
func (l *Limiter) Allow(key string, capacity, refillPerSec float64) bool {
	return l.get(key, capacity, refillPerSec).AllowN(l.now(), 1)
}

// Wait blocks until a token for key is available or ctx is done.
func (l *Limiter) Wait(ctx context.Context, key string, capacity, refillPerSec float64) error {
	return l.get(key, capacity, refillPerSec).Wait(ctx)
}
