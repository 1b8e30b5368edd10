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

const userColumns = `id, name, email, referral_code, referred_by, bonus_downloads,
	referral_history, referral_stats, created_at, updated_at`

type UserRepo struct {
	db  *sql.DB
	now func() time.Time
}

func NewUserRepository(db *sql.DB) *UserRepo {
	return &UserRepo{db: db, now: time.Now}
}

type rowQuerier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func scanUser(row scanner) (*domain.User, error) {
	var (
		u                    domain.User
		bonus                sql.NullInt64
		history, stats       *string
		createdAt, updatedAt string
	)
	err := row.Scan(
		&u.ID,
		&u.Name,
		&u.Email,
		&u.ReferralCode,
		&u.ReferredBy,
		&bonus,
		&history,
		&stats,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	if bonus.Valid {
		b := int(bonus.Int64)
		u.BonusDownloads = &b
	}
	if u.ReferralHistory, err = repository.DecodeReferralHistory(history); err != nil {
		return nil, err
	}
	if u.ReferralStats, err = repository.DecodeReferralStats(stats); err != nil {
		return nil, err
	}
	if u.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if u.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &u, nil
}

func getUser(ctx context.Context, q rowQuerier, where string, arg any) (*domain.User, error) {
	user, err := scanUser(q.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE `+where, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return user, err
}

func (r *UserRepo) GetByID(ctx context.Context, id string) (*domain.User, error) {
	user, err := getUser(ctx, r.db, "id = ?", id)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

func (r *UserRepo) GetByReferralCode(ctx context.Context, code string) (*domain.User, error) {
	user, err := getUser(ctx, r.db, "referral_code = ?", code)
	if err != nil {
		return nil, fmt.Errorf("failed to get user by referral code: %w", err)
	}
	return user, nil
}

func (r *UserRepo) Create(ctx context.Context, user *domain.User) error {
	history, err := repository.EncodeReferralHistory(user.ReferralHistory)
	if err != nil {
		return err
	}
	stats, err := repository.EncodeReferralStats(user.ReferralStats)
	if err != nil {
		return err
	}

	if user.CreatedAt.IsZero() {
		user.CreatedAt = r.now()
	}
	user.UpdatedAt = user.CreatedAt

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO users (
			id, name, email, referral_code, referred_by, bonus_downloads,
			referral_history, referral_stats, created_at, updated_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		user.ID,
		user.Name,
		user.Email,
		user.ReferralCode,
		user.ReferredBy,
		user.BonusDownloads,
		history,
		stats,
		formatTime(user.CreatedAt),
		formatTime(user.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

func (r *UserRepo) ListWithoutReferralCode(ctx context.Context) ([]*domain.User, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE referral_code IS NULL ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list users without referral code: %w", err)
	}
	defer rows.Close()

	var users []*domain.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating users: %w", err)
	}
	return users, nil
}

func (r *UserRepo) ReferralCodeExists(ctx context.Context, code string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM users WHERE referral_code = ?)`, code,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check referral code: %w", err)
	}
	return exists, nil
}

func (r *UserRepo) AssignReferralCode(ctx context.Context, user *domain.User) (string, error) {
	history, err := repository.EncodeReferralHistory(user.ReferralHistory)
	if err != nil {
		return "", err
	}
	stats, err := repository.EncodeReferralStats(user.ReferralStats)
	if err != nil {
		return "", err
	}

	var stored string
	err = r.db.QueryRowContext(ctx, `
		UPDATE users SET
			referral_code    = COALESCE(referral_code, ?),
			bonus_downloads  = COALESCE(bonus_downloads, ?),
			referral_history = COALESCE(referral_history, ?),
			referral_stats   = COALESCE(referral_stats, ?),
			updated_at       = ?
		WHERE id = ?
		RETURNING referral_code`,
		user.ReferralCode,
		user.BonusDownloads,
		history,
		stats,
		formatTime(r.now()),
		user.ID,
	).Scan(&stored)
	if errors.Is(err, sql.ErrNoRows) {
		return "", domain.ErrUserNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to assign referral code: %w", err)
	}
	return stored, nil
}

func (r *UserRepo) ApplyReferral(ctx context.Context, referredUserID, code string, bonus int, at time.Time) (*domain.User, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	referrer, err := getUser(ctx, tx, "referral_code = ?", code)
	if err != nil {
		return nil, fmt.Errorf("failed to get referrer: %w", err)
	}
	if referrer == nil {
		return nil, domain.ErrReferralCodeNotFound
	}
	if referrer.ID == referredUserID {
		return nil, domain.ErrSelfReferral
	}

	res, err := tx.ExecContext(ctx,
		`UPDATE users SET referred_by = ?, updated_at = ? WHERE id = ? AND referred_by IS NULL`,
		referrer.ID, formatTime(at), referredUserID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to set referred_by: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return nil, fmt.Errorf("failed to set referred_by: %w", err)
	} else if n == 0 {
		existing, err := getUser(ctx, tx, "id = ?", referredUserID)
		if err != nil {
			return nil, fmt.Errorf("failed to check referred user: %w", err)
		}
		if existing == nil {
			return nil, domain.ErrUserNotFound
		}
		return nil, domain.ErrAlreadyReferred
	}

	referrer.CreditReferral(domain.ReferralHistoryEntry{
		ReferredUserID: referredUserID,
		Code:           code,
		ReferredAt:     at,
	}, bonus)
	referrer.UpdatedAt = at

	history, err := repository.EncodeReferralHistory(referrer.ReferralHistory)
	if err != nil {
		return nil, err
	}
	stats, err := repository.EncodeReferralStats(referrer.ReferralStats)
	if err != nil {
		return nil, err
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE users SET bonus_downloads = ?, referral_history = ?, referral_stats = ?, updated_at = ?
		WHERE id = ?`,
		*referrer.BonusDownloads, history, stats, formatTime(at), referrer.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to credit referrer: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit referral: %w", err)
	}
	return referrer, nil
}
