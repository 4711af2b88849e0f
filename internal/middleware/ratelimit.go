package middleware

import (
	"fmt"
	"log"
	"net/http"
	"strconv"

	"github.com/technosupport/hikvision-bridge/internal/ratelimit"
)

// ActionLimiter bounds how often one operator can drive device actions.
type ActionLimiter struct {
	limiter *ratelimit.Limiter
	config  ratelimit.LimitConfig
}

func NewActionLimiter(l *ratelimit.Limiter, c ratelimit.LimitConfig) *ActionLimiter {
	return &ActionLimiter{limiter: l, config: c}
}

func (m *ActionLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ac, ok := GetAuthContext(r.Context())
		if !ok || m.limiter == nil || !m.config.Enabled() {
			next.ServeHTTP(w, r)
			return
		}

		key := fmt.Sprintf("action:%s", ac.Operator)
		decision, err := m.limiter.CheckRateLimit(r.Context(), key, m.config)
		if err != nil {
			// Fail open
			log.Printf("[WARN] RateLimit unavailable, allowing %s: %v", ac.Operator, err)
			next.ServeHTTP(w, r)
			return
		}

		writeRateLimitHeaders(w, decision)
		if !decision.Allowed {
			http.Error(w, "Rate limit exceeded", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeRateLimitHeaders(w http.ResponseWriter, d *ratelimit.Decision) {
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(d.Reset.Unix(), 10))
	if !d.Allowed {
		w.Header().Set("Retry-After", strconv.Itoa(d.RetryAfter))
	}
}
