package api

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// RateLimitConfig tunes the per-IP HTTP rate limiter.
type RateLimitConfig struct {
	PerMinute       int           // sustained budget per client IP
	Burst           int           // short burst allowance on top of it
	CleanupInterval time.Duration // how often idle IP entries are swept
}

// DefaultRateLimitConfig suits a small public deployment: two requests
// per second sustained with room for page loads.
var DefaultRateLimitConfig = RateLimitConfig{
	PerMinute:       120,
	Burst:           30,
	CleanupInterval: 5 * time.Minute,
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen atomic.Int64 // unix nano
}

// IPRateLimiter applies a token bucket per client IP. Entries for IPs
// that go quiet are swept so the map cannot grow without bound.
type IPRateLimiter struct {
	visitors sync.Map // ip string -> *visitor
	config   RateLimitConfig
	stop     chan struct{}
	stopOnce sync.Once

	total   atomic.Int64
	blocked atomic.Int64
}

// NewIPRateLimiter builds a limiter and starts its sweep loop.
func NewIPRateLimiter(cfg RateLimitConfig) *IPRateLimiter {
	if cfg.PerMinute <= 0 {
		cfg.PerMinute = DefaultRateLimitConfig.PerMinute
	}
	if cfg.Burst <= 0 {
		cfg.Burst = DefaultRateLimitConfig.Burst
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = DefaultRateLimitConfig.CleanupInterval
	}
	rl := &IPRateLimiter{
		config: cfg,
		stop:   make(chan struct{}),
	}
	go rl.sweepLoop()
	return rl
}

// Allow reports whether one more request from ip fits its budget.
func (rl *IPRateLimiter) Allow(ip string) bool {
	rl.total.Add(1)

	v, ok := rl.visitors.Load(ip)
	if !ok {
		fresh := &visitor{
			limiter: rate.NewLimiter(rate.Limit(float64(rl.config.PerMinute)/60.0), rl.config.Burst),
		}
		fresh.lastSeen.Store(time.Now().UnixNano())
		// another goroutine may have raced us in; use whichever won
		v, _ = rl.visitors.LoadOrStore(ip, fresh)
	}
	vis := v.(*visitor)
	vis.lastSeen.Store(time.Now().UnixNano())

	if !vis.limiter.Allow() {
		rl.blocked.Add(1)
		return false
	}
	return true
}

// Stats returns the total and blocked request counts since start.
func (rl *IPRateLimiter) Stats() (total, blocked int64) {
	return rl.total.Load(), rl.blocked.Load()
}

// Stop ends the sweep loop. Safe to call more than once.
func (rl *IPRateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stop) })
}

func (rl *IPRateLimiter) sweepLoop() {
	ticker := time.NewTicker(rl.config.CleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			cutoff := time.Now().Add(-3 * rl.config.CleanupInterval).UnixNano()
			rl.visitors.Range(func(key, value any) bool {
				if value.(*visitor).lastSeen.Load() < cutoff {
					rl.visitors.Delete(key)
				}
				return true
			})
		case <-rl.stop:
			return
		}
	}
}

// Middleware enforces the per-IP budget before the handler chain.
// Must sit in front of CORS so rejected preflights stay cheap.
func (rl *IPRateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := GetClientIP(r)
		if !rl.Allow(ip) {
			RecordConnectionRejected("rate_limit")
			w.Header().Set("Retry-After", "60")
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// GetClientIP extracts the client address, trusting proxy headers in
// the order a reverse proxy in front of us would set them.
func GetClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if i := strings.Index(xff, ","); i >= 0 {
			xff = xff[:i]
		}
		if ip := strings.TrimSpace(xff); ip != "" {
			return ip
		}
	}
	if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
		return realIP
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// ConnLimiter caps concurrent websocket sessions, both in total and
// per client IP. Acquire and Release must pair exactly once per
// accepted connection.
type ConnLimiter struct {
	maxTotal int32
	maxPerIP int32
	total    atomic.Int32
	perIP    sync.Map // ip string -> *atomic.Int32
}

// NewConnLimiter builds a limiter; non-positive caps fall back to
// 500 total and 10 per IP.
func NewConnLimiter(maxTotal, maxPerIP int) *ConnLimiter {
	if maxTotal <= 0 {
		maxTotal = 500
	}
	if maxPerIP <= 0 {
		maxPerIP = 10
	}
	return &ConnLimiter{maxTotal: int32(maxTotal), maxPerIP: int32(maxPerIP)}
}

// Acquire reserves a slot for ip. On refusal it returns the metric
// reason ("ws_total_limit" or "ws_ip_limit").
func (cl *ConnLimiter) Acquire(ip string) (ok bool, reason string) {
	for {
		cur := cl.total.Load()
		if cur >= cl.maxTotal {
			return false, "ws_total_limit"
		}
		if cl.total.CompareAndSwap(cur, cur+1) {
			break
		}
	}

	v, _ := cl.perIP.LoadOrStore(ip, &atomic.Int32{})
	counter := v.(*atomic.Int32)
	for {
		cur := counter.Load()
		if cur >= cl.maxPerIP {
			cl.total.Add(-1)
			return false, "ws_ip_limit"
		}
		if counter.CompareAndSwap(cur, cur+1) {
			return true, ""
		}
	}
}

// Release returns the slot taken by Acquire.
func (cl *ConnLimiter) Release(ip string) {
	cl.total.Add(-1)
	if v, ok := cl.perIP.Load(ip); ok {
		if v.(*atomic.Int32).Add(-1) <= 0 {
			cl.perIP.Delete(ip)
		}
	}
}

// Count returns the number of live reservations.
func (cl *ConnLimiter) Count() int {
	return int(cl.total.Load())
}

// OriginPolicy decides which Origin headers may upgrade to a
// websocket or pass CORS. An entry of "*" admits everything;
// "https://*.example.com" admits any subdomain.
type OriginPolicy struct {
	allowAll bool
	exact    map[string]struct{}
	suffixes []string
}

// NewOriginPolicy compiles the configured origin list. An empty list
// admits only same-origin (requests without an Origin header).
func NewOriginPolicy(origins []string) *OriginPolicy {
	p := &OriginPolicy{exact: make(map[string]struct{})}
	for _, o := range origins {
		o = strings.TrimSpace(o)
		switch {
		case o == "":
		case o == "*":
			p.allowAll = true
		case strings.Contains(o, "*"):
			// "https://*.example.com" -> scheme prefix plus host suffix
			i := strings.Index(o, "*")
			p.suffixes = append(p.suffixes, o[:i]+"\x00"+o[i+1:])
		default:
			p.exact[o] = struct{}{}
		}
	}
	return p
}

// Allow reports whether origin may connect. Browsers omit the header
// on same-origin websocket requests; those are always admitted.
func (p *OriginPolicy) Allow(origin string) bool {
	if origin == "" || p.allowAll {
		return true
	}
	if _, ok := p.exact[origin]; ok {
		return true
	}
	for _, s := range p.suffixes {
		i := strings.Index(s, "\x00")
		prefix, suffix := s[:i], s[i+1:]
		if strings.HasPrefix(origin, prefix) && strings.HasSuffix(origin, suffix) {
			return true
		}
	}
	return false
}
