package service

import (
	"context"
	"time"

	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"vdl-backend/internal/domain"
	"vdl-backend/pkg/errors"
	"vdl-backend/pkg/logger"
	"vdl-backend/pkg/metrics"
	"vdl-backend/pkg/redis"
)

// Report names used in metrics and logs
const (
	reportAdStats       = "ad_stats"
	reportAdRevenue     = "ad_revenue"
	reportSessionTotals = "session_totals"
)

// ReportCache is a cache-aside layer for aggregate reports. A nil client
// disables caching.
type ReportCache struct {
	redis  *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewReportCache creates a report cache
func NewReportCache(redisClient *redis.Client, ttl time.Duration, log *logger.Logger) *ReportCache {
	if ttl <= 0 {
		ttl = redis.TTLReport
	}
	return &ReportCache{
		redis:  redisClient,
		ttl:    ttl,
		logger: log.Named("report_cache").Logger,
	}
}

// Enabled reports whether a Redis client is configured
func (c *ReportCache) Enabled() bool {
	return c != nil && c.redis != nil
}

// Invalidate drops every cached report
func (c *ReportCache) Invalidate(ctx context.Context) (int, error) {
	if !c.Enabled() {
		return 0, nil
	}
	return c.redis.DeletePrefix(ctx, c.redis.KeyBuilder.KeyReportPrefix())
}

// cached returns the report stored at key, or runs load and stores its result.
// Redis failures and corrupt entries fall back to load.
func cached[T any](ctx context.Context, c *ReportCache, report, key string, load func(context.Context) (T, error)) (T, error) {
	if !c.Enabled() {
		return load(ctx)
	}

	data, err := c.redis.Get(ctx, key)
	switch {
	case err == nil:
		var value T
		if unmarshalErr := json.Unmarshal([]byte(data), &value); unmarshalErr == nil {
			metrics.RecordReportCache(report, true)
			c.logger.Debug("Report cache hit", zap.String("report", report))
			return value, nil
		} else {
			c.logger.Warn("Report cache corrupted, falling back to database",
				zap.String("report", report),
				zap.Error(unmarshalErr))
		}
	case err != redis.Nil:
		c.logger.Warn("Report cache error, falling back to database",
			zap.String("report", report),
			zap.Error(err))
	}

	metrics.RecordReportCache(report, false)
	value, err := load(ctx)
	if err != nil {
		return value, err
	}

	encoded, err := json.Marshal(value)
	if err != nil {
		c.logger.Error("Failed to marshal report for caching", zap.String("report", report), zap.Error(err))
		return value, nil
	}
	if err := c.redis.Set(ctx, key, string(encoded), c.ttl); err != nil {
		c.logger.Warn("Failed to cache report", zap.String("report", report), zap.Error(err))
	}
	return value, nil
}

// ReportService serves the admin reports, caching aggregates
type ReportService struct {
	ads      *AdLedger
	sessions *SessionLedger
	cache    *ReportCache
}

// NewReportService creates a report service
func NewReportService(ads *AdLedger, sessions *SessionLedger, cache *ReportCache) *ReportService {
	return &ReportService{ads: ads, sessions: sessions, cache: cache}
}

// AdStats returns grouped ad stats
func (s *ReportService) AdStats(ctx context.Context, filter domain.AdStatsFilter) ([]domain.AdStatsRow, error) {
	key := s.key(func(kb *redis.KeyBuilder) string {
		return kb.KeyReportAdStats(filter.Range.String() + "|" + filter.AdType)
	})
	return cached(ctx, s.cache, reportAdStats, key, func(ctx context.Context) ([]domain.AdStatsRow, error) {
		return s.ads.AdStats(ctx, filter)
	})
}

// AdRevenue returns revenue totals for the range
func (s *ReportService) AdRevenue(ctx context.Context, rng *domain.DateRange) (*domain.AdRevenueTotals, error) {
	key := s.key(func(kb *redis.KeyBuilder) string {
		return kb.KeyReportAdRevenue(rng.String())
	})
	return cached(ctx, s.cache, reportAdRevenue, key, func(ctx context.Context) (*domain.AdRevenueTotals, error) {
		return s.ads.TotalAdRevenue(ctx, rng)
	})
}

// SessionTotals returns session aggregates for the range
func (s *ReportService) SessionTotals(ctx context.Context, rng *domain.DateRange) (*domain.SessionTotals, error) {
	key := s.key(func(kb *redis.KeyBuilder) string {
		return kb.KeyReportSessionTotals(rng.String())
	})
	return cached(ctx, s.cache, reportSessionTotals, key, func(ctx context.Context) (*domain.SessionTotals, error) {
		return s.sessions.TotalStats(ctx, rng)
	})
}

// UserSessions lists a user's sessions. Rows are not cached.
func (s *ReportService) UserSessions(ctx context.Context, userID string, rng *domain.DateRange) ([]*domain.SessionAnalytics, error) {
	return s.sessions.UserStats(ctx, userID, rng)
}

// AdBuckets lists raw ad buckets. Rows are not cached.
func (s *ReportService) AdBuckets(ctx context.Context, filter domain.AdBucketFilter) ([]*domain.AdImpression, error) {
	return s.ads.ListBuckets(ctx, filter)
}

// FlushCache drops every cached report
func (s *ReportService) FlushCache(ctx context.Context) (int, error) {
	deleted, err := s.cache.Invalidate(ctx)
	if err != nil {
		return deleted, errors.NewInternalError("Failed to flush report cache", err)
	}
	return deleted, nil
}

func (s *ReportService) key(build func(*redis.KeyBuilder) string) string {
	if !s.cache.Enabled() {
		return ""
	}
	return build(s.cache.redis.KeyBuilder)
}
