package api

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// ipRateLimiter gives each client IP its own token bucket. Only analyses
// that miss the cache consume tokens; cache hits are free.
type ipRateLimiter struct {
	mu        sync.Mutex
	clients   map[string]*clientLimiter
	perMinute int
	lastPrune time.Time
}

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func newIPRateLimiter(perMinute int) *ipRateLimiter {
	return &ipRateLimiter{
		clients:   make(map[string]*clientLimiter),
		perMinute: perMinute,
		lastPrune: time.Now(),
	}
}

// Allow reports whether the client may run one uncached analysis now.
func (l *ipRateLimiter) Allow(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	if now.Sub(l.lastPrune) > 10*time.Minute {
		l.pruneLocked(now)
	}

	client, ok := l.clients[ip]
	if !ok {
		client = &clientLimiter{
			limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(l.perMinute)), l.perMinute),
		}
		l.clients[ip] = client
	}
	client.lastSeen = now
	return client.limiter.Allow()
}

// pruneLocked drops buckets idle long enough to have fully refilled.
func (l *ipRateLimiter) pruneLocked(now time.Time) {
	for ip, client := range l.clients {
		if now.Sub(client.lastSeen) > 3*time.Minute {
			delete(l.clients, ip)
		}
	}
	l.lastPrune = now
}
