// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"crypto/subtle"
	"log"
	"net"
	"net/http"
	"runtime/debug"
	"strconv"
	"strings"
	"sync"
	"time"
)

// ============================================================================
// Auth
// ============================================================================

// AuthConfig guards the endpoint.
type AuthConfig struct {
	// Enabled turns the checks on.
	Enabled bool

	// BearerToken is the expected token. With Enabled set and no token,
	// every request is rejected.
	BearerToken string

	// AllowedIPs holds addresses or CIDR ranges. Empty allows any address.
	AllowedIPs []string

	once sync.Once
	nets []*net.IPNet
}

// AuthFromToken enables bearer auth when token is non-empty.
func AuthFromToken(token string) *AuthConfig {
	return &AuthConfig{Enabled: token != "", BearerToken: token}
}

func (c *AuthConfig) allowed(ipStr string) bool {
	if len(c.AllowedIPs) == 0 {
		return true
	}
	c.once.Do(func() {
		c.nets = parseNets(c.AllowedIPs)
	})
	return containsIP(c.nets, ipStr)
}

// parseNets turns addresses and CIDR ranges into networks. Bad entries are
// logged and skipped.
func parseNets(entries []string) []*net.IPNet {
	nets := make([]*net.IPNet, 0, len(entries))
	for _, entry := range entries {
		if strings.Contains(entry, "/") {
			if _, n, err := net.ParseCIDR(entry); err == nil {
				nets = append(nets, n)
				continue
			}
			log.Printf("SERVER_CONFIG: invalid CIDR %q", entry)
			continue
		}
		ip := net.ParseIP(entry)
		if ip == nil {
			log.Printf("SERVER_CONFIG: invalid IP %q", entry)
			continue
		}
		bits := 128
		if ip.To4() != nil {
			bits = 32
		}
		nets = append(nets, &net.IPNet{IP: ip, Mask: net.CIDRMask(bits, bits)})
	}
	return nets
}

func containsIP(nets []*net.IPNet, ipStr string) bool {
	ip := net.ParseIP(ipStr)
	if ip == nil {
		return false
	}
	for _, n := range nets {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}

// AuthMiddleware rejects requests from addresses outside the allowlist and
// requests without the configured bearer token. Failures get 401.
func AuthMiddleware(config *AuthConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if config == nil || !config.Enabled {
				next.ServeHTTP(w, r)
				return
			}

			clientIP := GetClientIP(r)
			reason := ""
			switch header := r.Header.Get("Authorization"); {
			case !config.allowed(clientIP):
				reason = "ip_not_allowed"
			case header == "":
				reason = "missing_auth_header"
			case !strings.HasPrefix(header, "Bearer "):
				reason = "invalid_auth_format"
			case !ValidateBearerToken(strings.TrimPrefix(header, "Bearer "), config.BearerToken):
				reason = "invalid_token"
			}
			if reason != "" {
				log.Printf("AUTH_DENIED | ip=%s path=%s reason=%s", clientIP, r.URL.Path, reason)
				w.Header().Set("WWW-Authenticate", `Bearer realm="medcare"`)
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ValidateBearerToken compares tokens in constant time. Empty tokens never
// match.
func ValidateBearerToken(token, expected string) bool {
	if token == "" || expected == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(token), []byte(expected)) == 1
}

// ============================================================================
// Rate Limiter
// ============================================================================

// RateLimiter is a sliding window limiter keyed by client IP.
type RateLimiter struct {
	mu       sync.Mutex
	requests map[string][]time.Time
	limit    int
	window   time.Duration
	now      func() time.Time
	lastGC   time.Time
}

// NewRateLimiter allows limit requests per window for each IP.
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		requests: make(map[string][]time.Time),
		limit:    limit,
		window:   window,
		now:      time.Now,
	}
}

// DefaultRateLimiter allows 60 requests per minute, enough for a scraper
// polling every few seconds.
func DefaultRateLimiter() *RateLimiter {
	return NewRateLimiter(60, time.Minute)
}

// Allow records a request from ip and reports whether it is within the
// limit, along with how many requests remain in the window.
func (rl *RateLimiter) Allow(ip string) (bool, int) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	start := now.Add(-rl.window)

	if now.Sub(rl.lastGC) >= rl.window {
		for key, ts := range rl.requests {
			if kept := within(ts, start); len(kept) > 0 {
				rl.requests[key] = kept
			} else {
				delete(rl.requests, key)
			}
		}
		rl.lastGC = now
	}

	ts := within(rl.requests[ip], start)
	if len(ts) >= rl.limit {
		rl.requests[ip] = ts
		return false, 0
	}
	rl.requests[ip] = append(ts, now)
	return true, rl.limit - len(ts) - 1
}

func within(ts []time.Time, start time.Time) []time.Time {
	kept := ts[:0]
	for _, t := range ts {
		if t.After(start) {
			kept = append(kept, t)
		}
	}
	return kept
}

// RateLimitMiddleware answers 429 once a client exceeds the limit.
func RateLimitMiddleware(limiter *RateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			clientIP := GetClientIP(r)
			ok, remaining := limiter.Allow(clientIP)

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(limiter.limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
			if !ok {
				w.Header().Set("Retry-After", strconv.Itoa(int(limiter.window.Seconds())))
				log.Printf("RATE_LIMIT_EXCEEDED | ip=%s limit=%d window=%v", clientIP, limiter.limit, limiter.window)
				http.Error(w, "Too Many Requests", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ============================================================================
// Logging, Headers and Recovery
// ============================================================================

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (sw *statusWriter) WriteHeader(code int) {
	sw.status = code
	sw.ResponseWriter.WriteHeader(code)
}

// LoggingMiddleware writes one line per request:
// "GET /metrics | 200 | 0.004s".
func LoggingMiddleware(logger *log.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(sw, r)
			logger.Printf("%s %s | %d | %.3fs", r.Method, r.URL.Path, sw.status, time.Since(start).Seconds())
		})
	}
}

// SecurityHeadersMiddleware marks every response as uncacheable and not
// embeddable.
func SecurityHeadersMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("X-Frame-Options", "DENY")
			h.Set("Content-Security-Policy", "default-src 'none'")
			h.Set("Cache-Control", "no-store")
			h.Set("Referrer-Policy", "no-referrer")
			next.ServeHTTP(w, r)
		})
	}
}

// RecoveryMiddleware turns a handler panic into a 500 and logs the stack.
func RecoveryMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					log.Printf("PANIC_RECOVERED | method=%s path=%s error=%v\n%s",
						r.Method, r.URL.Path, err, debug.Stack())
					http.Error(w, "Internal Server Error", http.StatusInternalServerError)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// Chain composes middlewares so they run in the order given.
func Chain(middlewares ...func(http.Handler) http.Handler) func(http.Handler) http.Handler {
	return func(final http.Handler) http.Handler {
		for i := len(middlewares) - 1; i >= 0; i-- {
			final = middlewares[i](final)
		}
		return final
	}
}

// ============================================================================
// Client IP
// ============================================================================

// trustedProxies may set X-Forwarded-For and X-Real-IP.
var trustedProxies = parseNets([]string{
	"127.0.0.1/32",
	"::1/128",
	"10.0.0.0/8",
	"172.16.0.0/12",
	"192.168.0.0/16",
	"fc00::/7",
})

// GetClientIP returns the caller's address. Forwarding headers are honored
// only when the connection comes from a trusted proxy, and only if they
// hold a valid IP.
func GetClientIP(r *http.Request) string {
	connIP, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		connIP = r.RemoteAddr
	}
	if !containsIP(trustedProxies, connIP) {
		return connIP
	}

	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first := strings.TrimSpace(strings.Split(xff, ",")[0])
		if net.ParseIP(first) != nil {
			return first
		}
	}
	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); net.ParseIP(xri) != nil {
		return xri
	}
	return connIP
}
