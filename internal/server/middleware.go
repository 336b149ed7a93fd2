package server

import (
	"container/list"
	"context"
	"net"
	"net/http"
	"slices"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// corsPolicy answers cross-origin requests to the JSON API, letting
// authoring tools on other origins validate and edit lessons.
type corsPolicy struct {
	origins  []string
	wildcard bool
}

func newCORSPolicy(origins []string) *corsPolicy {
	return &corsPolicy{origins: origins, wildcard: slices.Contains(origins, "*")}
}

func (p *corsPolicy) allowOrigin(origin string) string {
	switch {
	case origin == "":
		return ""
	case p.wildcard:
		return "*"
	case slices.Contains(p.origins, origin):
		return origin
	}
	return ""
}

// wrap returns next unchanged when no origins are configured.
func (p *corsPolicy) wrap(next http.Handler) http.Handler {
	if len(p.origins) == 0 {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if allowed := p.allowOrigin(r.Header.Get("Origin")); allowed != "" {
			h := w.Header()
			h.Set("Access-Control-Allow-Origin", allowed)
			h.Add("Vary", "Origin")
			h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			h.Set("Access-Control-Allow-Headers", "Content-Type, Accept")
			// Exports name their file in Content-Disposition.
			h.Set("Access-Control-Expose-Headers", "Content-Disposition")
			h.Set("Access-Control-Max-Age", "86400")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// contentSecurityPolicy lets lesson media come from any https origin.
// Inline styles carry banner backgrounds and progress bar widths; the
// live reload socket is same-origin.
const contentSecurityPolicy = "default-src 'self'; " +
	"script-src 'self'; " +
	"style-src 'self' 'unsafe-inline'; " +
	"img-src 'self' data: https:; " +
	"media-src 'self' https:; " +
	"font-src 'self' data:; " +
	"connect-src 'self'; " +
	"frame-ancestors 'none'"

func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Frame-Options", "DENY")
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		h.Set("Content-Security-Policy", contentSecurityPolicy)
		next.ServeHTTP(w, r)
	})
}

const (
	limiterIdleTimeout   = 10 * time.Minute
	limiterSweepInterval = 5 * time.Minute
	evictionLogInterval  = 30 * time.Second
)

type clientBucket struct {
	ip       string
	limiter  *rate.Limiter
	lastSeen time.Time
}

// clientLimiter keeps one token bucket per client IP. At most capacity
// clients are tracked; the least recently seen one is dropped to make room.
type clientLimiter struct {
	rps      rate.Limit
	burst    int
	capacity int
	logger   *zap.Logger

	mu      sync.Mutex
	buckets map[string]*list.Element
	recent  *list.List // front is most recently seen

	evicted      int
	lastEvictLog time.Time
}

func newClientLimiter(rps float64, burst, capacity int, logger *zap.Logger) *clientLimiter {
	if logger == nil {
		logger = zap.NewNop()
	}
	if capacity <= 0 {
		capacity = 10000
	}
	return &clientLimiter{
		rps:      rate.Limit(rps),
		burst:    burst,
		capacity: capacity,
		logger:   logger,
		buckets:  make(map[string]*list.Element),
		recent:   list.New(),
	}
}

// allow spends one token from ip's bucket.
func (l *clientLimiter) allow(ip string, now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if elem, ok := l.buckets[ip]; ok {
		l.recent.MoveToFront(elem)
		b := elem.Value.(*clientBucket)
		b.lastSeen = now
		return b.limiter.AllowN(now, 1)
	}

	if l.recent.Len() >= l.capacity {
		l.evictOldest(now)
	}
	b := &clientBucket{ip: ip, limiter: rate.NewLimiter(l.rps, l.burst), lastSeen: now}
	l.buckets[ip] = l.recent.PushFront(b)
	return b.limiter.AllowN(now, 1)
}

func (l *clientLimiter) evictOldest(now time.Time) {
	oldest := l.recent.Back()
	if oldest == nil {
		return
	}
	l.recent.Remove(oldest)
	delete(l.buckets, oldest.Value.(*clientBucket).ip)

	l.evicted++
	if now.Sub(l.lastEvictLog) >= evictionLogInterval {
		l.logger.Info("rate limiter full, dropped least recent clients",
			zap.Int("evicted", l.evicted), zap.Int("capacity", l.capacity))
		l.lastEvictLog = now
		l.evicted = 0
	}
}

// sweep drops clients idle for longer than idle. Recency order follows
// access, not lastSeen, so every entry is checked.
func (l *clientLimiter) sweep(now time.Time, idle time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for e := l.recent.Back(); e != nil; {
		prev := e.Prev()
		if b := e.Value.(*clientBucket); now.Sub(b.lastSeen) > idle {
			l.recent.Remove(e)
			delete(l.buckets, b.ip)
		}
		e = prev
	}
}

func (l *clientLimiter) len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.recent.Len()
}

// run sweeps idle clients until ctx is done. The returned channel is
// closed when the loop exits.
func (l *clientLimiter) run(ctx context.Context) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(limiterSweepInterval)
		defer ticker.Stop()
		for {
			select {
			case now := <-ticker.C:
				l.sweep(now, limiterIdleTimeout)
			case <-ctx.Done():
				return
			}
		}
	}()
	return done
}

func (l *clientLimiter) wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !l.allow(clientIP(r), time.Now()) {
			w.Header().Set("Retry-After", "1")
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// clientIP trusts X-Forwarded-For and X-Real-IP only when the peer is a
// loopback or private address, i.e. a reverse proxy.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	peer := net.ParseIP(host)
	if peer == nil {
		return host
	}
	if peer.IsLoopback() || peer.IsPrivate() {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			first, _, _ := strings.Cut(xff, ",")
			return strings.TrimSpace(first)
		}
		if xri := r.Header.Get("X-Real-IP"); xri != "" {
			return strings.TrimSpace(xri)
		}
	}
	return peer.String()
}
