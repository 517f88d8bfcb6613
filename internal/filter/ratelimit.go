package filter

import (
	"container/list"
	"sync"

	"golang.org/x/time/rate"
)

// DefaultTrackedIPs bounds how many distinct client IPs the rate limiter
// keeps a token bucket for; the oldest-used IP is evicted first once the
// bound is hit, so a sustained attack from many distinct source IPs
// cannot grow this map without bound.
const DefaultTrackedIPs = 10000

// RateLimiter is a per-client-IP token bucket: capacity burst_size,
// refill rate requests_per_minute/60 per second, per spec.md §4.D.
// Implemented on golang.org/x/time/rate, whose Limiter is exactly this
// token-bucket semantics.
type RateLimiter struct {
	mu          sync.Mutex
	limiters    map[string]*list.Element // ip -> lru element
	lru         *list.List
	maxTracked  int
	requestsPM  int
	burstSize   int
}

type lruEntry struct {
	ip      string
	limiter *rate.Limiter
}

// NewRateLimiter constructs a limiter with the given per-route quota.
func NewRateLimiter(requestsPerMinute, burstSize int) *RateLimiter {
	return &RateLimiter{
		limiters:   map[string]*list.Element{},
		lru:        list.New(),
		maxTracked: DefaultTrackedIPs,
		requestsPM: requestsPerMinute,
		burstSize:  burstSize,
	}
}

// Allow reports whether a connection attempt from ip may proceed,
// consuming one token if so.
func (r *RateLimiter) Allow(ip string) bool {
	return r.limiterFor(ip).Allow()
}

func (r *RateLimiter) limiterFor(ip string) *rate.Limiter {
	r.mu.Lock()
	defer r.mu.Unlock()

	if el, ok := r.limiters[ip]; ok {
		r.lru.MoveToFront(el)
		return el.Value.(*lruEntry).limiter
	}

	refillPerSecond := rate.Limit(float64(r.requestsPM) / 60.0)
	lim := rate.NewLimiter(refillPerSecond, r.burstSize)
	el := r.lru.PushFront(&lruEntry{ip: ip, limiter: lim})
	r.limiters[ip] = el

	if r.lru.Len() > r.maxTracked {
		oldest := r.lru.Back()
		if oldest != nil {
			r.lru.Remove(oldest)
			delete(r.limiters, oldest.Value.(*lruEntry).ip)
		}
	}

	return lim
}
