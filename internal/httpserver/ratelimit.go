package httpserver

import (
	"encoding/json"
	"net"
	"net/http"
	"net/netip"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/fdg312/nutrition-planner/internal/config"
	"github.com/fdg312/nutrition-planner/internal/userctx"
	"golang.org/x/time/rate"
)

// bucketPool держит token bucket на каждого клиента одного класса запросов.
type bucketPool struct {
	mu      sync.Mutex
	buckets map[string]*rate.Limiter
	rps     rate.Limit
	burst   int
	counter atomic.Int64
}

func newBucketPool(rps, burst int) *bucketPool {
	if rps <= 0 {
		return nil
	}
	if burst <= 0 {
		burst = rps
	}
	return &bucketPool{
		buckets: make(map[string]*rate.Limiter),
		rps:     rate.Limit(rps),
		burst:   burst,
	}
}

func (p *bucketPool) allow(client string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	limiter, ok := p.buckets[client]
	if !ok {
		limiter = rate.NewLimiter(p.rps, p.burst)
		p.buckets[client] = limiter
	}

	if p.counter.Add(1)%1000 == 0 {
		// полный бакет = клиент давно молчит
		for key, l := range p.buckets {
			if key != client && l.Tokens() >= float64(p.burst) {
				delete(p.buckets, key)
			}
		}
	}

	return limiter.Allow()
}

// RateLimiter limits requests per client. It runs after auth: signed-in
// users get a bucket per user ID, everyone else a bucket per IP. Search-as-you-type
// requests (GET /v1/items, GET /v1/meals) draw from their own bucket so typing
// does not starve writes.
type RateLimiter struct {
	general *bucketPool
	search  *bucketPool
	trusted []netip.Prefix
}

func NewRateLimiter(cfg *config.Config) *RateLimiter {
	return &RateLimiter{
		general: newBucketPool(cfg.RateLimitRPS, cfg.RateLimitBurst),
		search:  newBucketPool(cfg.SearchRateLimitRPS, cfg.SearchRateLimitBurst),
		trusted: cfg.TrustedProxies,
	}
}

// Wrap is a pass-through when both buckets are disabled.
func (l *RateLimiter) Wrap(next http.Handler) http.Handler {
	if l.general == nil && l.search == nil {
		return next
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		pool := l.general
		class := "api"
		if isSearchRequest(r) {
			pool = l.search
			class = "search"
		}
		if pool == nil {
			next.ServeHTTP(w, r)
			return
		}

		if !pool.allow(l.clientKey(r)) {
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			json.NewEncoder(w).Encode(map[string]interface{}{
				"error": map[string]string{
					"code":    "rate_limited",
					"message": "Too many " + class + " requests",
				},
			})
			return
		}

		next.ServeHTTP(w, r)
	})
}

func isSearchRequest(r *http.Request) bool {
	if r.Method != http.MethodGet {
		return false
	}
	path := strings.TrimSuffix(r.URL.Path, "/")
	return path == "/v1/items" || path == "/v1/meals"
}

// clientKey — user ID для вошедших, иначе IP. Локальный пользователь
// общий для всех анонимных запросов, поэтому он тоже считается по IP.
func (l *RateLimiter) clientKey(r *http.Request) string {
	if userctx.IsAuthenticated(r.Context()) {
		userID, _ := userctx.GetUserID(r.Context())
		return "user:" + userID
	}
	return "ip:" + l.clientIP(r)
}

// clientIP берёт RemoteAddr. X-Forwarded-For читается только если запрос
// пришёл от доверенного прокси: цепочка идёт справа налево до первого
// недоверенного адреса.
func (l *RateLimiter) clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	remote, err := netip.ParseAddr(host)
	if err != nil {
		return host
	}
	remote = remote.Unmap()
	if !l.isTrusted(remote) {
		return remote.String()
	}

	var hops []string
	for _, header := range r.Header.Values("X-Forwarded-For") {
		hops = append(hops, strings.Split(header, ",")...)
	}

	client := remote
	for i := len(hops) - 1; i >= 0; i-- {
		addr, err := netip.ParseAddr(strings.TrimSpace(hops[i]))
		if err != nil {
			break
		}
		client = addr.Unmap()
		if !l.isTrusted(client) {
			break
		}
	}
	return client.String()
}

func (l *RateLimiter) isTrusted(addr netip.Addr) bool {
	for _, prefix := range l.trusted {
		if prefix.Contains(addr) {
			return true
		}
	}
	return false
}
