package httpapi

import (
	"context"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-logr/logr"
	"golang.org/x/time/rate"

	"github.com/MrEthical07/streamauth"
)

type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}

// Logging records method, path, status and duration at V(1).
func Logging(log logr.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
			start := time.Now()
			next.ServeHTTP(sw, r)
			log.V(1).Info("request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", sw.code,
				"duration", time.Since(start).String(),
			)
		})
	}
}

// MaxBodyBytes caps the request body.
func MaxBodyBytes(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			next.ServeHTTP(w, r)
		})
	}
}

// RequestContext attaches the client IP and user agent for the login guard
// and audit records. X-Forwarded-For is honoured only when trustProxy is set.
func RequestContext(trustProxy bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := streamauth.WithClientIP(r.Context(), clientIP(r, trustProxy))
			ctx = streamauth.WithUserAgent(ctx, r.UserAgent())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

type bucket struct {
	lim  *rate.Limiter
	seen time.Time
}

// Throttle is a token bucket per client IP. Idle buckets are dropped after
// ttl by a sweeper that stops when ctx is done.
type Throttle struct {
	mu         sync.Mutex
	buckets    map[string]*bucket
	perSecond  rate.Limit
	burst      int
	ttl        time.Duration
	trustProxy bool
}

func NewThrottle(ctx context.Context, perSecond float64, burst int, trustProxy bool) *Throttle {
	t := &Throttle{
		buckets:    make(map[string]*bucket),
		perSecond:  rate.Limit(perSecond),
		burst:      burst,
		ttl:        5 * time.Minute,
		trustProxy: trustProxy,
	}
	go t.sweep(ctx, time.Minute)
	return t
}

func (t *Throttle) sweep(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			t.mu.Lock()
			for k, b := range t.buckets {
				if now.Sub(b.seen) > t.ttl {
					delete(t.buckets, k)
				}
			}
			t.mu.Unlock()
		}
	}
}

func (t *Throttle) limiter(ip string) *rate.Limiter {
	t.mu.Lock()
	defer t.mu.Unlock()
	b, ok := t.buckets[ip]
	if !ok {
		b = &bucket{lim: rate.NewLimiter(t.perSecond, t.burst)}
		t.buckets[ip] = b
	}
	b.seen = time.Now()
	return b.lim
}

// Middleware rejects requests over the budget with 429 and Retry-After.
func (t *Throttle) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r, t.trustProxy)
		if ip == "" {
			ip = "unknown"
		}
		res := t.limiter(ip).Reserve()
		if delay := res.Delay(); delay > 0 {
			res.Cancel()
			w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(delay.Seconds()))))
			writeError(w, http.StatusTooManyRequests, "rate_limited", "too many requests")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func clientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			first, _, _ := strings.Cut(xff, ",")
			return strings.TrimSpace(first)
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
