package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"vdl-backend/internal/domain"
	"vdl-backend/internal/repository"
)

const adImpressionColumns = `id, user_id, session_id, ad_type, ad_position, bucket_date,
	impressions, clicks, revenue, created_at, updated_at`

type AdImpressionRepo struct {
	db *sql.DB
}

func NewAdImpressionRepository(db *sql.DB) *AdImpressionRepo {
	return &AdImpressionRepo{db: db}
}

func scanAdImpression(row scanner) (*domain.AdImpression, error) {
	var (
		b                    domain.AdImpression
		userID, day          string
		revenue              int64
		createdAt, updatedAt string
	)
	err := row.Scan(
		&b.ID,
		&userID,
		&b.SessionID,
		&b.AdType,
		&b.AdPosition,
		&day,
		&b.Impressions,
		&b.Clicks,
		&revenue,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	b.UserID = repository.UserIDFromStored(userID)
	b.Revenue = revenueFromUnits(revenue)
	if b.BucketDate, err = time.Parse(domain.DayLayout, day); err != nil {
		return nil, fmt.Errorf("invalid bucket date %q: %w", day, err)
	}
	if b.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if b.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *AdImpressionRepo) FindForDay(ctx context.Context, id domain.AdIdentity, day time.Time) (*domain.AdImpression, error) {
	b, err := scanAdImpression(r.db.QueryRowContext(ctx, `
		SELECT `+adImpressionColumns+` FROM ad_impressions
		WHERE user_id = ? AND session_id = ? AND ad_type = ? AND ad_position = ? AND bucket_date = ?`,
		repository.StoredUserID(id.UserID), id.SessionID, id.AdType, id.AdPosition, day.Format(domain.DayLayout),
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get ad bucket: %w", err)
	}
	return b, nil
}

func (r *AdImpressionRepo) UpsertImpression(ctx context.Context, id domain.AdIdentity, day, at time.Time) (*domain.AdImpression, error) {
	ts := formatTime(at)
	b, err := scanAdImpression(r.db.QueryRowContext(ctx, `
		INSERT INTO ad_impressions (
			user_id, session_id, ad_type, ad_position, bucket_date,
			impressions, clicks, revenue, created_at, updated_at
		)
		VALUES (?, ?, ?, ?, ?, 1, 0, 0, ?, ?)
		ON CONFLICT (user_id, session_id, ad_type, ad_position, bucket_date)
		DO UPDATE SET
			impressions = impressions + 1,
			updated_at = excluded.updated_at
		RETURNING `+adImpressionColumns,
		repository.StoredUserID(id.UserID), id.SessionID, id.AdType, id.AdPosition, day.Format(domain.DayLayout), ts, ts,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to upsert ad impression: %w", err)
	}
	return b, nil
}

func (r *AdImpressionRepo) UpsertClick(ctx context.Context, id domain.AdIdentity, day time.Time, amount decimal.Decimal, at time.Time) (*domain.AdImpression, error) {
	ts := formatTime(at)
	b, err := scanAdImpression(r.db.QueryRowContext(ctx, `
		INSERT INTO ad_impressions (
			user_id, session_id, ad_type, ad_position, bucket_date,
			impressions, clicks, revenue, created_at, updated_at
		)
		VALUES (?, ?, ?, ?, ?, 1, 1, ?, ?, ?)
		ON CONFLICT (user_id, session_id, ad_type, ad_position, bucket_date)
		DO UPDATE SET
			clicks = clicks + 1,
			revenue = revenue + excluded.revenue,
			updated_at = excluded.updated_at
		RETURNING `+adImpressionColumns,
		repository.StoredUserID(id.UserID), id.SessionID, id.AdType, id.AdPosition, day.Format(domain.DayLayout),
		revenueToUnits(amount), ts, ts,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to upsert ad click: %w", err)
	}
	return b, nil
}

func (r *AdImpressionRepo) Increment(ctx context.Context, bucketID int64, impressions, clicks int64, revenue decimal.Decimal, at time.Time) (*domain.AdImpression, error) {
	b, err := scanAdImpression(r.db.QueryRowContext(ctx, `
		UPDATE ad_impressions SET
			impressions = impressions + ?,
			clicks = clicks + ?,
			revenue = revenue + ?,
			updated_at = ?
		WHERE id = ?
		RETURNING `+adImpressionColumns,
		impressions, clicks, revenueToUnits(revenue), formatTime(at), bucketID,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrBucketNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update ad bucket: %w", err)
	}
	return b, nil
}

func (r *AdImpressionRepo) Stats(ctx context.Context, filter domain.AdStatsFilter) ([]domain.AdStatsRow, error) {
	var w where
	w.addRange("created_at", filter.Range)
	if filter.AdType != "" {
		w.add("ad_type = ?", filter.AdType)
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT
			ad_type,
			ad_position,
			COALESCE(SUM(impressions), 0),
			COALESCE(SUM(clicks), 0),
			COALESCE(SUM(revenue), 0),
			COALESCE(AVG(CASE WHEN impressions > 0 THEN clicks * 100.0 / impressions ELSE 0 END), 0.0)
		FROM ad_impressions`+w.String()+`
		GROUP BY ad_type, ad_position
		ORDER BY SUM(revenue) DESC, ad_type, ad_position`,
		w.args...,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query ad stats: %w", err)
	}
	defer rows.Close()

	stats := []domain.AdStatsRow{}
	for rows.Next() {
		var (
			row     domain.AdStatsRow
			revenue int64
		)
		if err := rows.Scan(&row.AdType, &row.AdPosition, &row.TotalImpressions, &row.TotalClicks, &revenue, &row.AvgCTR); err != nil {
			return nil, fmt.Errorf("failed to scan ad stats: %w", err)
		}
		row.TotalRevenue = revenueFromUnits(revenue)
		row.AvgCTR = repository.Round2(row.AvgCTR)
		stats = append(stats, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating ad stats: %w", err)
	}
	return stats, nil
}

func (r *AdImpressionRepo) Totals(ctx context.Context, rng *domain.DateRange) (*domain.AdRevenueTotals, error) {
	var w where
	w.addRange("created_at", rng)

	var (
		totals  domain.AdRevenueTotals
		revenue int64
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT
			COALESCE(SUM(revenue), 0),
			COALESCE(SUM(impressions), 0),
			COALESCE(SUM(clicks), 0)
		FROM ad_impressions`+w.String(),
		w.args...,
	).Scan(&revenue, &totals.TotalImpressions, &totals.TotalClicks)
	if err != nil {
		return nil, fmt.Errorf("failed to query ad revenue totals: %w", err)
	}

	totals.TotalRevenue = revenueFromUnits(revenue)
	totals.CTR = domain.ClickThroughRate(totals.TotalClicks, totals.TotalImpressions)
	return &totals, nil
}

func (r *AdImpressionRepo) List(ctx context.Context, filter domain.AdBucketFilter) ([]*domain.AdImpression, error) {
	var w where
	w.addRange("created_at", filter.Range)
	if filter.AdType != "" {
		w.add("ad_type = ?", filter.AdType)
	}
	if filter.SessionID != "" {
		w.add("session_id = ?", filter.SessionID)
	}

	args := append(w.args, repository.ListLimit(filter.Limit))
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+adImpressionColumns+` FROM ad_impressions`+w.String()+
			` ORDER BY created_at DESC, id DESC LIMIT ?`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list ad buckets: %w", err)
	}
	defer rows.Close()

	buckets := []*domain.AdImpression{}
	for rows.Next() {
		b, err := scanAdImpression(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan ad bucket: %w", err)
		}
		buckets = append(buckets, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating ad buckets: %w", err)
	}
	return buckets, nil
}
