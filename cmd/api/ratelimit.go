package main

import (
	"context"
	"net"
	"net/http"
	"net/netip"
	"strings"
	"sync"
	"time"

	"go.uber.org/atomic"
	"golang.org/x/time/rate"
)

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// rateLimiter applies a token bucket per client address.
type rateLimiter struct {
	rps   rate.Limit
	burst int
	ttl   time.Duration
	now   func() time.Time

	trusted []netip.Prefix

	mu       sync.Mutex
	visitors map[string]*visitor
	count    atomic.Int64
}

func newRateLimiter(rps float64, burst int) *rateLimiter {
	return &rateLimiter{
		rps:      rate.Limit(rps),
		burst:    burst,
		ttl:      3 * time.Minute,
		now:      time.Now,
		visitors: make(map[string]*visitor),
	}
}

func (l *rateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !l.allow(l.clientIP(r)) {
			w.Header().Set("Retry-After", "1")
			writeEnvelope(w, http.StatusTooManyRequests, false, "Too many requests, slow down.")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (l *rateLimiter) allow(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	v, exists := l.visitors[ip]
	if !exists {
		v = &visitor{limiter: rate.NewLimiter(l.rps, l.burst)}
		l.visitors[ip] = v
		l.count.Inc()
	}
	v.lastSeen = l.now()
	return v.limiter.Allow()
}

// Visitors reports how many addresses are currently tracked.
func (l *rateLimiter) Visitors() int64 {
	return l.count.Load()
}

// Run evicts idle visitors every minute until ctx is done.
func (l *rateLimiter) Run(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.evict()
		}
	}
}

func (l *rateLimiter) evict() {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().Add(-l.ttl)
	for ip, v := range l.visitors {
		if v.lastSeen.Before(cutoff) {
			delete(l.visitors, ip)
			l.count.Dec()
		}
	}
}

// TrustProxies lets peers inside prefixes speak for the client through
// X-Forwarded-For.
func (l *rateLimiter) TrustProxies(prefixes []netip.Prefix) {
	l.trusted = prefixes
}

// clientIP returns the peer address unless the peer is a trusted proxy. Then
// it walks X-Forwarded-For from the right and returns the first hop that is
// not itself trusted.
func (l *rateLimiter) clientIP(r *http.Request) string {
	peer := remoteHost(r)
	if !l.isTrusted(peer) {
		return peer
	}
	hops := strings.Split(r.Header.Get("X-Forwarded-For"), ",")
	for i := len(hops) - 1; i >= 0; i-- {
		hop := strings.TrimSpace(hops[i])
		if hop == "" {
			continue
		}
		if !l.isTrusted(hop) {
			return hop
		}
	}
	return peer
}

func (l *rateLimiter) isTrusted(ip string) bool {
	if len(l.trusted) == 0 {
		return false
	}
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	for _, p := range l.trusted {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

func remoteHost(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
