package service

import (
	"context"
	stderrors "errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"vdl-backend/internal/domain"
	"vdl-backend/internal/repository"
	"vdl-backend/pkg/errors"
	"vdl-backend/pkg/logger"
	"vdl-backend/pkg/metrics"
)

// AdLedger records ad impressions and clicks into per-day buckets
type AdLedger struct {
	repo   repository.AdImpressionRepository
	logger *logger.Logger
	loc    *time.Location
	now    func() time.Time
}

// NewAdLedger creates an ad ledger. Buckets roll over at midnight in loc.
func NewAdLedger(repo repository.AdImpressionRepository, log *logger.Logger, loc *time.Location, now func() time.Time) *AdLedger {
	if loc == nil {
		loc = time.Local
	}
	if now == nil {
		now = time.Now
	}
	return &AdLedger{
		repo:   repo,
		logger: log.Named("ads"),
		loc:    loc,
		now:    now,
	}
}

// Today returns the current bucket date
func (l *AdLedger) Today() time.Time {
	return domain.DayOf(l.now(), l.loc)
}

// RecordImpression adds one impression to an existing bucket and refreshes
// bucket from the stored row
func (l *AdLedger) RecordImpression(ctx context.Context, bucket *domain.AdImpression) error {
	stored, err := l.repo.Increment(ctx, bucket.ID, 1, 0, decimal.Zero, l.now())
	if err != nil {
		return l.wrapBucketError(err, bucket.ID, "Failed to record impression")
	}
	*bucket = *stored
	metrics.AdImpressionsTotal.WithLabelValues(bucket.AdType, bucket.AdPosition).Inc()
	return nil
}

// RecordClick adds one click and revenueAmount to an existing bucket. An
// unparseable amount leaves the bucket untouched.
func (l *AdLedger) RecordClick(ctx context.Context, bucket *domain.AdImpression, revenueAmount string) error {
	amount, err := domain.ParseAmount(revenueAmount)
	if err != nil {
		return err
	}

	stored, err := l.repo.Increment(ctx, bucket.ID, 0, 1, amount, l.now())
	if err != nil {
		return l.wrapBucketError(err, bucket.ID, "Failed to record click")
	}
	*bucket = *stored
	l.recordClickMetrics(bucket, amount)
	return nil
}

// RecordAdImpression counts an impression in today's bucket for the identity,
// creating the bucket on first use
func (l *AdLedger) RecordAdImpression(ctx context.Context, userID *string, sessionID, adType, adPosition string) (*domain.AdImpression, error) {
	id, err := newAdIdentity(userID, sessionID, adType, adPosition)
	if err != nil {
		return nil, err
	}

	now := l.now()
	bucket, err := l.repo.UpsertImpression(ctx, id, domain.DayOf(now, l.loc), now)
	if err != nil {
		return nil, errors.NewInternalError("Failed to record impression", err)
	}

	metrics.AdImpressionsTotal.WithLabelValues(bucket.AdType, bucket.AdPosition).Inc()
	l.logger.WithFields(map[string]interface{}{
		"bucket_id":   bucket.ID,
		"ad_type":     bucket.AdType,
		"impressions": bucket.Impressions,
	}).Debug("Ad impression recorded")
	return bucket, nil
}

// RecordAdClick counts a click with its revenue in today's bucket. A click
// without an earlier impression creates the bucket with one impression.
func (l *AdLedger) RecordAdClick(ctx context.Context, userID *string, sessionID, adType, adPosition, revenueAmount string) (*domain.AdImpression, error) {
	id, err := newAdIdentity(userID, sessionID, adType, adPosition)
	if err != nil {
		return nil, err
	}
	amount, err := domain.ParseAmount(revenueAmount)
	if err != nil {
		return nil, err
	}

	now := l.now()
	bucket, err := l.repo.UpsertClick(ctx, id, domain.DayOf(now, l.loc), amount, now)
	if err != nil {
		return nil, errors.NewInternalError("Failed to record click", err)
	}

	l.recordClickMetrics(bucket, amount)
	l.logger.WithFields(map[string]interface{}{
		"bucket_id": bucket.ID,
		"ad_type":   bucket.AdType,
		"clicks":    bucket.Clicks,
		"revenue":   bucket.Revenue.String(),
	}).Debug("Ad click recorded")
	return bucket, nil
}

// TodayBucket returns today's bucket for the identity, nil when none exists
func (l *AdLedger) TodayBucket(ctx context.Context, userID *string, sessionID, adType, adPosition string) (*domain.AdImpression, error) {
	id, err := newAdIdentity(userID, sessionID, adType, adPosition)
	if err != nil {
		return nil, err
	}

	bucket, err := l.repo.FindForDay(ctx, id, l.Today())
	if err != nil {
		return nil, errors.NewInternalError("Failed to load ad bucket", err)
	}
	return bucket, nil
}

// CTR is the bucket's click-through rate in percent
func (l *AdLedger) CTR(bucket *domain.AdImpression) float64 {
	return bucket.CTR()
}

// RevenuePerImpression is the bucket's revenue divided by its impressions
func (l *AdLedger) RevenuePerImpression(bucket *domain.AdImpression) decimal.Decimal {
	return bucket.RevenuePerImpression()
}

// AdStats groups buckets by type and position, highest revenue first
func (l *AdLedger) AdStats(ctx context.Context, filter domain.AdStatsFilter) ([]domain.AdStatsRow, error) {
	rows, err := l.repo.Stats(ctx, filter)
	if err != nil {
		return nil, errors.NewInternalError("Failed to load ad stats", err)
	}
	return rows, nil
}

// TotalAdRevenue sums every bucket in range
func (l *AdLedger) TotalAdRevenue(ctx context.Context, rng *domain.DateRange) (*domain.AdRevenueTotals, error) {
	totals, err := l.repo.Totals(ctx, rng)
	if err != nil {
		return nil, errors.NewInternalError("Failed to load ad revenue", err)
	}
	return totals, nil
}

// ListBuckets returns raw buckets, newest first
func (l *AdLedger) ListBuckets(ctx context.Context, filter domain.AdBucketFilter) ([]*domain.AdImpression, error) {
	filter.Limit = repository.ListLimit(filter.Limit)
	buckets, err := l.repo.List(ctx, filter)
	if err != nil {
		return nil, errors.NewInternalError("Failed to list ad buckets", err)
	}
	return buckets, nil
}

func (l *AdLedger) recordClickMetrics(bucket *domain.AdImpression, amount decimal.Decimal) {
	metrics.AdClicksTotal.WithLabelValues(bucket.AdType, bucket.AdPosition).Inc()
	metrics.AdRevenueTotal.WithLabelValues(bucket.AdType).Add(amount.InexactFloat64())
}

func (l *AdLedger) wrapBucketError(err error, bucketID int64, message string) error {
	if stderrors.Is(err, domain.ErrBucketNotFound) {
		return errors.NewNotFoundError("Ad bucket not found")
	}
	l.logger.WithField("bucket_id", bucketID).WithError(err).Error(message)
	return errors.NewInternalError(message, err)
}

func newAdIdentity(userID *string, sessionID, adType, adPosition string) (domain.AdIdentity, error) {
	id := domain.AdIdentity{
		UserID:     normalizeUserID(userID),
		SessionID:  strings.TrimSpace(sessionID),
		AdType:     strings.TrimSpace(adType),
		AdPosition: strings.TrimSpace(adPosition),
	}

	missing := []string{}
	if id.SessionID == "" {
		missing = append(missing, "session_id")
	}
	if id.AdType == "" {
		missing = append(missing, "ad_type")
	}
	if id.AdPosition == "" {
		missing = append(missing, "ad_position")
	}
	if len(missing) > 0 {
		return id, errors.NewValidationError("Missing ad identity fields", map[string]interface{}{
			"missing": missing,
		})
	}
	return id, nil
}

// normalizeUserID treats an empty user ID as anonymous
func normalizeUserID(userID *string) *string {
	if userID == nil || strings.TrimSpace(*userID) == "" {
		return nil
	}
	trimmed := strings.TrimSpace(*userID)
	return &trimmed
}
