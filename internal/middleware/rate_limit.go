package middleware

import (
	"net/http"
	"strconv"
	"time"

	"vdl-backend/internal/domain"
	"vdl-backend/internal/service"
	"vdl-backend/pkg/errors"
	"vdl-backend/pkg/logger"
	"vdl-backend/pkg/metrics"
)

// TrackingRateLimit applies the per-IP tracking limit and sets X-RateLimit-* headers
func TrackingRateLimit(limiter *service.TrackingLimiter, logger *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := ClientIP(r)
			info := limiter.Allow(r.Context(), ip)
			setRateLimitHeaders(w, info)

			if !info.IsAllowed {
				metrics.APIRateLimitHits.WithLabelValues(r.URL.Path).Inc()
				logger.WithFields(map[string]interface{}{
					"request_count": info.RequestCount,
					"path":          r.URL.Path,
				}).Debug("Tracking rate limit exceeded")

				w.Header().Set("Retry-After", strconv.FormatInt(int64(info.TTL.Round(time.Second)/time.Second), 10))
				writeErrorResponse(w, r, errors.NewRateLimitError("Rate limit exceeded. Please try again later."), logger)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// setRateLimitHeaders sets standard rate limit headers
func setRateLimitHeaders(w http.ResponseWriter, info *domain.RateLimitInfo) {
	w.Header().Set("X-RateLimit-Limit", strconv.FormatInt(info.Limit, 10))
	w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(info.Remaining(), 10))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(info.TTL).Unix(), 10))
}
