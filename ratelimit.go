package main

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter keeps one token bucket per client IP for the connect paths.
type RateLimiter struct {
	mu    sync.Mutex
	perIP map[string]*ipLimiter
	rps   rate.Limit
	burst int
}

type ipLimiter struct {
	bucket   *rate.Limiter
	lastSeen time.Time
}

func NewRateLimiter(rps float64) *RateLimiter {
	burst := int(rps) * 2
	if burst < 1 {
		burst = 1
	}
	rl := &RateLimiter{
		perIP: make(map[string]*ipLimiter),
		rps:   rate.Limit(rps),
		burst: burst,
	}
	go rl.reap()
	return rl
}

func (rl *RateLimiter) Allow(ip string) bool {
	rl.mu.Lock()
	lim, ok := rl.perIP[ip]
	if !ok {
		lim = &ipLimiter{bucket: rate.NewLimiter(rl.rps, rl.burst)}
		rl.perIP[ip] = lim
	}
	lim.lastSeen = time.Now()
	rl.mu.Unlock()

	return lim.bucket.Allow()
}

// reap drops buckets for addresses not seen in a while.
func (rl *RateLimiter) reap() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		rl.mu.Lock()
		cutoff := time.Now().Add(-10 * time.Minute)
		for ip, lim := range rl.perIP {
			if lim.lastSeen.Before(cutoff) {
				delete(rl.perIP, ip)
			}
		}
		rl.mu.Unlock()
	}
}
