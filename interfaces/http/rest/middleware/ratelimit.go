package middleware

import (
	"net"
	"net/http"
	"strconv"

	"vdchat/pkg/errors"
	"vdchat/pkg/ratelimit"

	"go.uber.org/zap"
)

// RateLimit rejects callers over their allowance with 429. Callers are
// keyed by the X-User-ID header when present, otherwise by client IP.
func RateLimit(limiter ratelimit.Limiter, errorHandler *errors.ErrorHandler, logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := callerKey(r)

			allowed, err := limiter.Allow(r.Context(), key)
			if err != nil {
				logger.Warn("Rate limiter error", zap.String("key", key), zap.Error(err))
			}
			if !allowed {
				retryAfter := limiter.Window()
				w.Header().Set("Retry-After", strconv.Itoa(int(retryAfter.Seconds())))
				errorHandler.Handle(w, r, errors.NewRateLimitError(retryAfter))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func callerKey(r *http.Request) string {
	if userID := r.Header.Get("X-User-ID"); userID != "" {
		return "user:" + userID
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return "ip:" + host
}
