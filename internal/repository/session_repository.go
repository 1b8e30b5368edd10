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

const sessionColumns = `
	id, user_id, session_id, ip_address, user_agent, page_views, downloads_count,
	time_spent, revenue_generated::text, created_at, updated_at`

type SessionRepo struct {
	db *database.PostgresDB
}

func NewSessionRepository(db *database.PostgresDB) *SessionRepo {
	return &SessionRepo{db: db}
}

func scanSession(row pgx.Row) (*domain.SessionAnalytics, error) {
	var (
		s       domain.SessionAnalytics
		userID  string
		revenue string
	)
	err := row.Scan(
		&s.ID,
		&userID,
		&s.SessionID,
		&s.IPAddress,
		&s.UserAgent,
		&s.PageViews,
		&s.DownloadsCount,
		&s.TimeSpent,
		&revenue,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	s.UserID = UserIDFromStored(userID)
	if s.RevenueGenerated, err = decimal.NewFromString(revenue); err != nil {
		return nil, fmt.Errorf("invalid revenue %q: %w", revenue, err)
	}
	return &s, nil
}

// FindOrCreate inserts the bucket unless the (user, session) pair already has one
func (r *SessionRepo) FindOrCreate(ctx context.Context, s *domain.SessionAnalytics) (*domain.SessionAnalytics, bool, error) {
	insert := `
		INSERT INTO user_analytics (
			user_id, session_id, ip_address, user_agent, page_views, downloads_count,
			time_spent, revenue_generated, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, 0, 0, 0, 0, $5, $5)
		ON CONFLICT (user_id, session_id) DO NOTHING
		RETURNING ` + sessionColumns

	created, err := scanSession(r.db.Pool.QueryRow(ctx, insert,
		StoredUserID(s.UserID), s.SessionID, s.IPAddress, s.UserAgent, s.CreatedAt,
	))
	if err == nil {
		return created, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, false, fmt.Errorf("failed to create session: %w", err)
	}

	query := `SELECT ` + sessionColumns + ` FROM user_analytics WHERE user_id = $1 AND session_id = $2`
	existing, err := scanSession(r.db.Pool.QueryRow(ctx, query, StoredUserID(s.UserID), s.SessionID))
	if err != nil {
		return nil, false, fmt.Errorf("failed to get session: %w", err)
	}
	return existing, false, nil
}

// Increment adds d to the bucket's counters
func (r *SessionRepo) Increment(ctx context.Context, bucketID int64, d domain.SessionDelta, at time.Time) (*domain.SessionAnalytics, error) {
	query := `
		UPDATE user_analytics SET
			page_views = page_views + $2,
			downloads_count = downloads_count + $3,
			time_spent = time_spent + $4,
			revenue_generated = revenue_generated + $5::numeric,
			updated_at = $6
		WHERE id = $1
		RETURNING ` + sessionColumns

	s, err := scanSession(r.db.Pool.QueryRow(ctx, query,
		bucketID, d.PageViews, d.Downloads, d.TimeSpent, d.Revenue.String(), at,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrBucketNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update session: %w", err)
	}
	return s, nil
}

// FirstBySessionID returns the oldest bucket carrying sessionID
func (r *SessionRepo) FirstBySessionID(ctx context.Context, sessionID string) (*domain.SessionAnalytics, error) {
	query := `SELECT ` + sessionColumns + ` FROM user_analytics
		WHERE session_id = $1 ORDER BY created_at, id LIMIT 1`

	s, err := scanSession(r.db.GetReadPool().QueryRow(ctx, query, sessionID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return s, nil
}

// ListByUser returns the user's buckets, newest first
func (r *SessionRepo) ListByUser(ctx context.Context, userID string, rng *domain.DateRange) ([]*domain.SessionAnalytics, error) {
	var where whereClause
	where.add("user_id = $%d", userID)
	where.addRange("created_at", rng)

	query := `SELECT ` + sessionColumns + ` FROM user_analytics` + where.String() + ` ORDER BY created_at DESC, id DESC`

	rows, err := r.db.GetReadPool().Query(ctx, query, where.args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list user sessions: %w", err)
	}
	defer rows.Close()

	sessions := []*domain.SessionAnalytics{}
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sessions = append(sessions, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sessions: %w", err)
	}

	return sessions, nil
}

// Totals aggregates every bucket in range
func (r *SessionRepo) Totals(ctx context.Context, rng *domain.DateRange) (*domain.SessionTotals, error) {
	var where whereClause
	where.addRange("created_at", rng)

	query := `
		SELECT
			COUNT(*),
			COUNT(DISTINCT NULLIF(user_id, '')),
			COALESCE(SUM(page_views), 0)::bigint,
			COALESCE(SUM(downloads_count), 0)::bigint,
			COALESCE(SUM(time_spent), 0)::bigint,
			COALESCE(SUM(revenue_generated), 0)::text,
			COALESCE(AVG(time_spent), 0)::float8
		FROM user_analytics` + where.String()

	var (
		totals  domain.SessionTotals
		revenue string
	)
	err := r.db.GetReadPool().QueryRow(ctx, query, where.args...).Scan(
		&totals.TotalSessions,
		&totals.UniqueUsers,
		&totals.TotalPageViews,
		&totals.TotalDownloads,
		&totals.TotalTimeSpent,
		&revenue,
		&totals.AvgTimeSpent,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query session totals: %w", err)
	}
	if totals.TotalRevenue, err = decimal.NewFromString(revenue); err != nil {
		return nil, fmt.Errorf("invalid revenue %q: %w", revenue, err)
	}
	totals.AvgTimeSpent = Round2(totals.AvgTimeSpent)

	return &totals, nil
}
