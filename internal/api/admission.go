package api

import (
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/punchamoorthee/transactflow/internal/auth"
	"github.com/punchamoorthee/transactflow/internal/ratelimit"
)

const (
	HeaderRateLimitRemaining  = "X-RateLimit-Remaining"
	HeaderRateLimitRetryAfter = "X-RateLimit-Retry-After-Seconds"
)

var rateLimitRejections = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "transactflow_ratelimit_rejections_total",
	Help: "Requests rejected by admission control, labeled by policy",
}, []string{"policy"})

// AdmissionConfig selects a bucket policy per request.
type AdmissionConfig struct {
	Default     ratelimit.Policy
	Auth        ratelimit.Policy
	AuthPrefix  string
	Unthrottled []string
}

// Admission throttles requests with a token bucket per caller. Authenticated
// callers are keyed by identity, anonymous ones by client address.
func Admission(limiter ratelimit.Limiter, cfg AdmissionConfig, logger *slog.Logger) func(next http.Handler) http.Handler {
	unthrottled := make(map[string]struct{}, len(cfg.Unthrottled))
	for _, p := range cfg.Unthrottled {
		unthrottled[p] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := unthrottled[r.URL.Path]; ok {
				next.ServeHTTP(w, r)
				return
			}

			policy := cfg.Default
			if cfg.AuthPrefix != "" && strings.HasPrefix(r.URL.Path, cfg.AuthPrefix) {
				policy = cfg.Auth
			}
			key := clientKey(r)

			decision, err := limiter.Take(r.Context(), key, policy)
			if err != nil {
				logger.Error("rate limiter unavailable, admitting request",
					slog.String("request_id", RequestIDFrom(r.Context())),
					slog.String("key", key),
					slog.Any("error", err))
				next.ServeHTTP(w, r)
				return
			}

			if decision.Allowed {
				w.Header().Set(HeaderRateLimitRemaining, strconv.FormatInt(decision.Remaining, 10))
				next.ServeHTTP(w, r)
				return
			}

			retry := decision.RetryAfterSeconds()
			rateLimitRejections.WithLabelValues(policy.Name).Inc()
			logger.Warn("rate limit exceeded",
				slog.String("key", key),
				slog.String("path", r.URL.Path),
				slog.String("policy", policy.Name))

			w.Header().Set(HeaderRateLimitRemaining, "0")
			w.Header().Set(HeaderRateLimitRetryAfter, strconv.FormatInt(retry, 10))
			w.Header().Set("Retry-After", strconv.FormatInt(retry, 10))

			resp := newErrorResponse(http.StatusTooManyRequests, "RATE_LIMITED",
				fmt.Sprintf("Rate limit exceeded. Please try again in %d seconds", retry))
			resp.RetryAfterSeconds = &retry
			respondWithJSON(w, http.StatusTooManyRequests, resp)
		})
	}
}

// clientKey is the caller's identity when authenticated, otherwise
// "ip:" plus the X-Forwarded-For value or the peer address.
func clientKey(r *http.Request) string {
	if p := auth.PrincipalFrom(r.Context()); p.Authenticated() {
		return p.Identity
	}
	if fwd := strings.TrimSpace(r.Header.Get("X-Forwarded-For")); fwd != "" {
		return "ip:" + fwd
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return "ip:" + r.RemoteAddr
	}
	return "ip:" + host
}
