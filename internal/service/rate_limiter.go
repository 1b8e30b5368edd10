package service

import (
	"context"
	"time"

	"vdl-backend/internal/domain"
	"vdl-backend/pkg/logger"
	"vdl-backend/pkg/redis"
)

// TrackingLimiter is a fixed-window per-IP limit on the tracking endpoints
type TrackingLimiter struct {
	redis  *redis.Client
	limit  int64
	window time.Duration
	logger *logger.Logger
}

// NewTrackingLimiter creates a limiter. A nil client allows everything.
func NewTrackingLimiter(redisClient *redis.Client, limit int, window time.Duration, log *logger.Logger) *TrackingLimiter {
	return &TrackingLimiter{
		redis:  redisClient,
		limit:  int64(limit),
		window: window,
		logger: log.Named("rate_limit"),
	}
}

// Allow counts one request from ip. Redis failures let the request through.
func (l *TrackingLimiter) Allow(ctx context.Context, ip string) *domain.RateLimitInfo {
	info := &domain.RateLimitInfo{Limit: l.limit, TTL: l.window, IsAllowed: true}
	if l.redis == nil {
		return info
	}

	count, ttl, err := l.redis.IncrWithExpire(ctx, l.redis.KeyBuilder.KeyTrackingRateLimit(ip), l.window)
	if err != nil {
		l.logger.WithError(err).Warn("Rate limit check failed, allowing request")
		return info
	}

	info.RequestCount = count
	info.TTL = ttl
	info.IsAllowed = count <= l.limit
	return info
}
