package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"vdl-backend/internal/domain"
	"vdl-backend/pkg/database"
)

const adImpressionColumns = `
	id, user_id, session_id, ad_type, ad_position, bucket_date::text,
	impressions, clicks, revenue::text, created_at, updated_at`

type AdImpressionRepo struct {
	db *database.PostgresDB
}

func NewAdImpressionRepository(db *database.PostgresDB) *AdImpressionRepo {
	return &AdImpressionRepo{db: db}
}

func scanAdImpression(row pgx.Row) (*domain.AdImpression, error) {
	var (
		b       domain.AdImpression
		userID  string
		day     string
		revenue string
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
		&b.CreatedAt,
		&b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	b.UserID = UserIDFromStored(userID)
	if b.BucketDate, err = time.Parse(domain.DayLayout, day); err != nil {
		return nil, fmt.Errorf("invalid bucket date %q: %w", day, err)
	}
	if b.Revenue, err = decimal.NewFromString(revenue); err != nil {
		return nil, fmt.Errorf("invalid revenue %q: %w", revenue, err)
	}
	return &b, nil
}

// FindForDay returns the identity's bucket for day
func (r *AdImpressionRepo) FindForDay(ctx context.Context, id domain.AdIdentity, day time.Time) (*domain.AdImpression, error) {
	query := `SELECT ` + adImpressionColumns + ` FROM ad_impressions
		WHERE user_id = $1 AND session_id = $2 AND ad_type = $3 AND ad_position = $4 AND bucket_date = $5::date`

	b, err := scanAdImpression(r.db.Pool.QueryRow(ctx, query,
		StoredUserID(id.UserID), id.SessionID, id.AdType, id.AdPosition, day.Format(domain.DayLayout),
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get ad bucket: %w", err)
	}
	return b, nil
}

// UpsertImpression creates the bucket with one impression or adds one atomically
func (r *AdImpressionRepo) UpsertImpression(ctx context.Context, id domain.AdIdentity, day, at time.Time) (*domain.AdImpression, error) {
	query := `
		INSERT INTO ad_impressions (
			user_id, session_id, ad_type, ad_position, bucket_date,
			impressions, clicks, revenue, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5::date, 1, 0, 0, $6, $6)
		ON CONFLICT (user_id, session_id, ad_type, ad_position, bucket_date)
		DO UPDATE SET
			impressions = ad_impressions.impressions + 1,
			updated_at = EXCLUDED.updated_at
		RETURNING ` + adImpressionColumns

	b, err := scanAdImpression(r.db.Pool.QueryRow(ctx, query,
		StoredUserID(id.UserID), id.SessionID, id.AdType, id.AdPosition, day.Format(domain.DayLayout), at,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to upsert ad impression: %w", err)
	}
	return b, nil
}

// UpsertClick adds a click and revenue, creating the bucket with one impression when absent
func (r *AdImpressionRepo) UpsertClick(ctx context.Context, id domain.AdIdentity, day time.Time, amount decimal.Decimal, at time.Time) (*domain.AdImpression, error) {
	query := `
		INSERT INTO ad_impressions (
			user_id, session_id, ad_type, ad_position, bucket_date,
			impressions, clicks, revenue, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5::date, 1, 1, $6::numeric, $7, $7)
		ON CONFLICT (user_id, session_id, ad_type, ad_position, bucket_date)
		DO UPDATE SET
			clicks = ad_impressions.clicks + 1,
			revenue = ad_impressions.revenue + EXCLUDED.revenue,
			updated_at = EXCLUDED.updated_at
		RETURNING ` + adImpressionColumns

	b, err := scanAdImpression(r.db.Pool.QueryRow(ctx, query,
		StoredUserID(id.UserID), id.SessionID, id.AdType, id.AdPosition, day.Format(domain.DayLayout),
		amount.String(), at,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to upsert ad click: %w", err)
	}
	return b, nil
}

// Increment adds to an existing bucket's counters
func (r *AdImpressionRepo) Increment(ctx context.Context, bucketID int64, impressions, clicks int64, revenue decimal.Decimal, at time.Time) (*domain.AdImpression, error) {
	query := `
		UPDATE ad_impressions SET
			impressions = impressions + $2,
			clicks = clicks + $3,
			revenue = revenue + $4::numeric,
			updated_at = $5
		WHERE id = $1
		RETURNING ` + adImpressionColumns

	b, err := scanAdImpression(r.db.Pool.QueryRow(ctx, query,
		bucketID, impressions, clicks, revenue.String(), at,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrBucketNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update ad bucket: %w", err)
	}
	return b, nil
}

// Stats groups buckets by (ad_type, ad_position), highest revenue first
func (r *AdImpressionRepo) Stats(ctx context.Context, filter domain.AdStatsFilter) ([]domain.AdStatsRow, error) {
	var where whereClause
	where.addRange("created_at", filter.Range)
	if filter.AdType != "" {
		where.add("ad_type = $%d", filter.AdType)
	}

	query := `
		SELECT
			ad_type,
			ad_position,
			COALESCE(SUM(impressions), 0)::bigint,
			COALESCE(SUM(clicks), 0)::bigint,
			COALESCE(SUM(revenue), 0)::text,
			COALESCE(AVG(CASE WHEN impressions > 0 THEN clicks * 100.0 / impressions ELSE 0 END), 0)::float8
		FROM ad_impressions` + where.String() + `
		GROUP BY ad_type, ad_position
		ORDER BY SUM(revenue) DESC, ad_type, ad_position`

	rows, err := r.db.GetReadPool().Query(ctx, query, where.args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query ad stats: %w", err)
	}
	defer rows.Close()

	stats := []domain.AdStatsRow{}
	for rows.Next() {
		var (
			row     domain.AdStatsRow
			revenue string
		)
		if err := rows.Scan(&row.AdType, &row.AdPosition, &row.TotalImpressions, &row.TotalClicks, &revenue, &row.AvgCTR); err != nil {
			return nil, fmt.Errorf("failed to scan ad stats: %w", err)
		}
		if row.TotalRevenue, err = decimal.NewFromString(revenue); err != nil {
			return nil, fmt.Errorf("invalid revenue %q: %w", revenue, err)
		}
		row.AvgCTR = Round2(row.AvgCTR)
		stats = append(stats, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating ad stats: %w", err)
	}

	return stats, nil
}

// Totals sums every bucket in range
func (r *AdImpressionRepo) Totals(ctx context.Context, rng *domain.DateRange) (*domain.AdRevenueTotals, error) {
	var where whereClause
	where.addRange("created_at", rng)

	query := `
		SELECT
			COALESCE(SUM(revenue), 0)::text,
			COALESCE(SUM(impressions), 0)::bigint,
			COALESCE(SUM(clicks), 0)::bigint
		FROM ad_impressions` + where.String()

	var (
		totals  domain.AdRevenueTotals
		revenue string
	)
	err := r.db.GetReadPool().QueryRow(ctx, query, where.args...).Scan(&revenue, &totals.TotalImpressions, &totals.TotalClicks)
	if err != nil {
		return nil, fmt.Errorf("failed to query ad revenue totals: %w", err)
	}
	if totals.TotalRevenue, err = decimal.NewFromString(revenue); err != nil {
		return nil, fmt.Errorf("invalid revenue %q: %w", revenue, err)
	}
	totals.CTR = domain.ClickThroughRate(totals.TotalClicks, totals.TotalImpressions)

	return &totals, nil
}

// List returns raw buckets, newest first
func (r *AdImpressionRepo) List(ctx context.Context, filter domain.AdBucketFilter) ([]*domain.AdImpression, error) {
	var where whereClause
	where.addRange("created_at", filter.Range)
	if filter.AdType != "" {
		where.add("ad_type = $%d", filter.AdType)
	}
	if filter.SessionID != "" {
		where.add("session_id = $%d", filter.SessionID)
	}

	query := `SELECT ` + adImpressionColumns + ` FROM ad_impressions` + where.String() +
		fmt.Sprintf(` ORDER BY created_at DESC, id DESC LIMIT %d`, ListLimit(filter.Limit))

	rows, err := r.db.GetReadPool().Query(ctx, query, where.args...)
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
