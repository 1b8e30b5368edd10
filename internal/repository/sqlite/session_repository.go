package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"vdl-backend/internal/domain"
	"vdl-backend/internal/repository"
)

const sessionColumns = `id, user_id, session_id, ip_address, user_agent, page_views, downloads_count,
	time_spent, revenue_generated, created_at, updated_at`

type SessionRepo struct {
	db *sql.DB
}

func NewSessionRepository(db *sql.DB) *SessionRepo {
	return &SessionRepo{db: db}
}

func scanSession(row scanner) (*domain.SessionAnalytics, error) {
	var (
		s                    domain.SessionAnalytics
		userID               string
		revenue              int64
		createdAt, updatedAt string
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
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	s.UserID = repository.UserIDFromStored(userID)
	s.RevenueGenerated = revenueFromUnits(revenue)
	if s.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if s.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *SessionRepo) FindOrCreate(ctx context.Context, s *domain.SessionAnalytics) (*domain.SessionAnalytics, bool, error) {
	ts := formatTime(s.CreatedAt)
	created, err := scanSession(r.db.QueryRowContext(ctx, `
		INSERT INTO user_analytics (
			user_id, session_id, ip_address, user_agent, page_views, downloads_count,
			time_spent, revenue_generated, created_at, updated_at
		)
		VALUES (?, ?, ?, ?, 0, 0, 0, 0, ?, ?)
		ON CONFLICT (user_id, session_id) DO NOTHING
		RETURNING `+sessionColumns,
		repository.StoredUserID(s.UserID), s.SessionID, s.IPAddress, s.UserAgent, ts, ts,
	))
	if err == nil {
		return created, true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, false, fmt.Errorf("failed to create session: %w", err)
	}

	existing, err := scanSession(r.db.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM user_analytics WHERE user_id = ? AND session_id = ?`,
		repository.StoredUserID(s.UserID), s.SessionID,
	))
	if err != nil {
		return nil, false, fmt.Errorf("failed to get session: %w", err)
	}
	return existing, false, nil
}

func (r *SessionRepo) Increment(ctx context.Context, bucketID int64, d domain.SessionDelta, at time.Time) (*domain.SessionAnalytics, error) {
	s, err := scanSession(r.db.QueryRowContext(ctx, `
		UPDATE user_analytics SET
			page_views = page_views + ?,
			downloads_count = downloads_count + ?,
			time_spent = time_spent + ?,
			revenue_generated = revenue_generated + ?,
			updated_at = ?
		WHERE id = ?
		RETURNING `+sessionColumns,
		d.PageViews, d.Downloads, d.TimeSpent, revenueToUnits(d.Revenue), formatTime(at), bucketID,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrBucketNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update session: %w", err)
	}
	return s, nil
}

func (r *SessionRepo) FirstBySessionID(ctx context.Context, sessionID string) (*domain.SessionAnalytics, error) {
	s, err := scanSession(r.db.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM user_analytics WHERE session_id = ? ORDER BY created_at, id LIMIT 1`,
		sessionID,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return s, nil
}

func (r *SessionRepo) ListByUser(ctx context.Context, userID string, rng *domain.DateRange) ([]*domain.SessionAnalytics, error) {
	var w where
	w.add("user_id = ?", userID)
	w.addRange("created_at", rng)

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+sessionColumns+` FROM user_analytics`+w.String()+` ORDER BY created_at DESC, id DESC`,
		w.args...,
	)
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

func (r *SessionRepo) Totals(ctx context.Context, rng *domain.DateRange) (*domain.SessionTotals, error) {
	var w where
	w.addRange("created_at", rng)

	var (
		totals  domain.SessionTotals
		revenue int64
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COUNT(DISTINCT NULLIF(user_id, '')),
			COALESCE(SUM(page_views), 0),
			COALESCE(SUM(downloads_count), 0),
			COALESCE(SUM(time_spent), 0),
			COALESCE(SUM(revenue_generated), 0),
			COALESCE(AVG(time_spent), 0.0)
		FROM user_analytics`+w.String(),
		w.args...,
	).Scan(
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

	totals.TotalRevenue = revenueFromUnits(revenue)
	totals.AvgTimeSpent = repository.Round2(totals.AvgTimeSpent)
	return &totals, nil
}
