package middleware

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/automsp/portal-server-go/internal/audit"
	apperrors "github.com/automsp/portal-server-go/internal/errors"
	"github.com/automsp/portal-server-go/internal/httputil"
)

const (
	ipLimiterCleanupInterval = 5 * time.Minute
	ipLimiterIdleTTL         = time.Hour
)

type ipLimiterEntry struct {
	limiter    *rate.Limiter
	mu         sync.Mutex
	lastAccess time.Time
}

// IPRateLimitMiddleware throttles each client address with a token bucket.
// It expects chi's RealIP middleware to have normalized RemoteAddr.
type IPRateLimitMiddleware struct {
	limiters sync.Map // map[string]*ipLimiterEntry
	rps      rate.Limit
	burst    int
	prefix   string
}

// NewIPRateLimitMiddleware starts a sweeper that drops idle limiters until ctx is done.
func NewIPRateLimitMiddleware(ctx context.Context, rps float64, burst int, prefix string) *IPRateLimitMiddleware {
	m := &IPRateLimitMiddleware{
		rps:    rate.Limit(rps),
		burst:  burst,
		prefix: prefix,
	}
	go m.cleanupStale(ctx, ipLimiterCleanupInterval)
	return m
}

func (m *IPRateLimitMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := audit.ClientIP(r)
		limiter := m.getLimiter(ip)

		if !limiter.Allow() {
			reservation := limiter.Reserve()
			retryAfter := int(math.Ceil(reservation.Delay().Seconds()))
			reservation.Cancel()
			if retryAfter < 1 {
				retryAfter = 1
			}

			log.Debug().Str("ip", ip).Str("scope", m.prefix).Int("retryAfter", retryAfter).Msg("ip rate limit exceeded")
			audit.LogFromRequest(r, audit.Event{
				Type:    audit.EventRateLimitExceed,
				Details: map[string]any{"scope": "ip:" + m.prefix},
			})

			w.Header().Set("Retry-After", fmt.Sprintf("%d", retryAfter))
			httputil.WriteError(w, apperrors.RateLimitExceeded("Too many requests. Please try again later."))
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (m *IPRateLimitMiddleware) getLimiter(ip string) *rate.Limiter {
	now := time.Now()
	if val, ok := m.limiters.Load(ip); ok {
		entry := val.(*ipLimiterEntry)
		entry.mu.Lock()
		entry.lastAccess = now
		entry.mu.Unlock()
		return entry.limiter
	}

	entry := &ipLimiterEntry{limiter: rate.NewLimiter(m.rps, m.burst), lastAccess: now}
	actual, _ := m.limiters.LoadOrStore(ip, entry)
	return actual.(*ipLimiterEntry).limiter
}

func (m *IPRateLimitMiddleware) cleanupStale(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.sweep(time.Now().Add(-ipLimiterIdleTTL))
		}
	}
}

func (m *IPRateLimitMiddleware) sweep(threshold time.Time) {
	m.limiters.Range(func(key, value any) bool {
		entry := value.(*ipLimiterEntry)
		entry.mu.Lock()
		stale := entry.lastAccess.Before(threshold)
		entry.mu.Unlock()
		if stale {
			m.limiters.Delete(key)
		}
		return true
	})
}
