package middleware

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strconv"

	"github.com/go-redis/redis_rate/v9"
	log "github.com/sirupsen/logrus"

	"example.com/progression/internal/auth"
	"example.com/progression/internal/observability"
)

//go:generate mockgen -source=$GOFILE -destination=rate_limiting_mocks_test.go -package=middleware_test

type RequestRateLimiter interface {
	Allow(ctx context.Context, key string, limit redis_rate.Limit) (*redis_rate.Result, error)
}

// RateLimit throttles each caller to allowedPerMin requests per minute. Authenticated callers are
// keyed by subject, anonymous ones by remote address. Limiter failures let the request through.
func RateLimit(rateLimiter RequestRateLimiter, routerName string, allowedPerMin int, instr *observability.HTTPInstrumentation) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if rateLimiter == nil || allowedPerMin <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			res, err := rateLimiter.Allow(
				r.Context(),
				routerName+":"+callerKey(r),
				redis_rate.PerMinute(allowedPerMin),
			)
			if err != nil {
				log.Warnf("rate limiter %s: %s", routerName, err)
				next.ServeHTTP(w, r)
				return
			}

			if res.Allowed > 0 {
				next.ServeHTTP(w, r)
				return
			}

			if instr != nil {
				instr.CounterRateLimited.WithLabelValues(routerName).Inc()
			}
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Retry-After", strconv.Itoa(int(res.RetryAfter.Seconds())+1))
			w.WriteHeader(http.StatusTooManyRequests)
			_ = json.NewEncoder(w).Encode(map[string]string{
				"type":   "rate_limited",
				"code":   "RATE_LIMITED",
				"detail": "retry after " + res.RetryAfter.String(),
			})
		})
	}
}

func callerKey(r *http.Request) string {
	if claims, ok := auth.FromContext(r.Context()); ok && claims.Subject != "" {
		return "user:" + claims.Subject
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return "ip:" + host
}
