package main

import (
	"container/list"
	"context"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	limiterCleanupInterval = 5 * time.Minute
	limiterStaleAfter      = 10 * time.Minute
)

// clientLimiter tracks a per-client token bucket and its position in the
// LRU list.
type clientLimiter struct {
	ip       string
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter applies a token-bucket limit per client IP across the API.
// The number of tracked clients is capped: when full, the least recently
// seen client is evicted, and a background loop drops entries that have
// been idle past limiterStaleAfter.
type RateLimiter struct {
	rps        float64
	burst      int
	maxClients int
	cm         *ConfigManager
	logger     *slog.Logger

	mu    sync.Mutex
	items map[string]*list.Element
	order *list.List // front = most recent, back = oldest

	done chan struct{}
}

// NewRateLimiter builds the limiter and starts its cleanup loop. Cancel ctx
// to stop the loop; Done reports when it has exited.
func NewRateLimiter(ctx context.Context, cfg *RateLimitConfig, cm *ConfigManager, logger *slog.Logger) *RateLimiter {
	rl := &RateLimiter{
		rps:        cfg.RPS,
		burst:      cfg.Burst,
		maxClients: cfg.MaxClients,
		cm:         cm,
		logger:     logger,
		items:      make(map[string]*list.Element),
		order:      list.New(),
		done:       make(chan struct{}),
	}
	if rl.maxClients <= 0 {
		rl.maxClients = 1024
	}
	go rl.cleanupLoop(ctx)
	return rl
}

// Done is closed once the cleanup loop has exited.
func (rl *RateLimiter) Done() <-chan struct{} {
	return rl.done
}

func (rl *RateLimiter) cleanupLoop(ctx context.Context) {
	defer close(rl.done)
	ticker := time.NewTicker(limiterCleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			rl.mu.Lock()
			now := time.Now()
			// The LRU order tracks access recency, not lastSeen age, so
			// stale entries may sit anywhere in the list.
			for e := rl.order.Back(); e != nil; {
				lim := e.Value.(*clientLimiter)
				prev := e.Prev()
				if now.Sub(lim.lastSeen) > limiterStaleAfter {
					rl.order.Remove(e)
					delete(rl.items, lim.ip)
				}
				e = prev
			}
			rl.mu.Unlock()
		case <-ctx.Done():
			return
		}
	}
}

// Middleware rejects requests whose client has run out of tokens.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rl.allow(clientIP(r, rl.cm)) {
			w.Header().Set("Retry-After", "1")
			respondWithError(w, http.StatusTooManyRequests, "Rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// allow takes one token from ip's bucket, creating or reviving the bucket
// as needed.
func (rl *RateLimiter) allow(ip string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	elem, exists := rl.items[ip]
	if exists {
		rl.order.MoveToFront(elem)
		elem.Value.(*clientLimiter).lastSeen = time.Now()
	} else {
		if rl.order.Len() >= rl.maxClients {
			if back := rl.order.Back(); back != nil {
				evicted := back.Value.(*clientLimiter)
				rl.order.Remove(back)
				delete(rl.items, evicted.ip)
				rl.logger.Debug("Evicted least-recent client from rate limiter", "ip", evicted.ip)
			}
		}
		elem = rl.order.PushFront(&clientLimiter{
			ip:       ip,
			limiter:  rate.NewLimiter(rate.Limit(rl.rps), rl.burst),
			lastSeen: time.Now(),
		})
		rl.items[ip] = elem
	}
	return elem.Value.(*clientLimiter).limiter.Allow()
}

// clientIP resolves the originating address of r. Forwarding headers are
// honored only when the immediate peer is a loopback, private, or
// configured trusted proxy address, so a remote client cannot pick its own
// identity by sending X-Forwarded-For.
func clientIP(r *http.Request, cm *ConfigManager) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}

	peerIP := net.ParseIP(host)
	trusted := peerIP != nil && (peerIP.IsLoopback() || peerIP.IsPrivate() || cm.IsTrusted(host))
	if trusted {
		// The first entry in X-Forwarded-For is the original client; later
		// entries are the proxies along the way.
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			if parts := strings.SplitN(xff, ",", 2); len(parts) > 0 {
				return strings.TrimSpace(parts[0])
			}
		}
		if xri := r.Header.Get("X-Real-Ip"); xri != "" {
			return strings.TrimSpace(xri)
		}
	}

	if peerIP != nil {
		return peerIP.String()
	}
	return host
}

// setSecurityHeaders hardens the dashboard page response. connect-src
// 'self' covers the same-origin WebSocket dial; the jsdelivr entry is for
// the math renderer the page loads.
func setSecurityHeaders(w http.ResponseWriter) {
	w.Header().Set("X-Frame-Options", "DENY")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
	w.Header().Set("Content-Security-Policy",
		"default-src 'self'; "+
			"script-src 'self' 'unsafe-inline' https://cdn.jsdelivr.net; "+
			"style-src 'self' 'unsafe-inline'; "+
			"font-src 'self' data: https://cdn.jsdelivr.net; "+
			"connect-src 'self'; "+
			"frame-ancestors 'none'")
}
