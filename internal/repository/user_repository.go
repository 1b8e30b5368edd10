package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"vdl-backend/internal/domain"
	"vdl-backend/pkg/database"
)

const userColumns = `
	id, name, email, referral_code, referred_by, bonus_downloads,
	referral_history::text, referral_stats::text, created_at, updated_at`

type UserRepo struct {
	db *database.PostgresDB
}

func NewUserRepository(db *database.PostgresDB) *UserRepo {
	return &UserRepo{db: db}
}

// pgxQuerier is satisfied by both the pool and a transaction
type pgxQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func scanUser(row pgx.Row) (*domain.User, error) {
	var (
		u       domain.User
		bonus   *int32
		history *string
		stats   *string
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
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if bonus != nil {
		b := int(*bonus)
		u.BonusDownloads = &b
	}
	if u.ReferralHistory, err = DecodeReferralHistory(history); err != nil {
		return nil, err
	}
	if u.ReferralStats, err = DecodeReferralStats(stats); err != nil {
		return nil, err
	}
	return &u, nil
}

func getUser(ctx context.Context, q pgxQuerier, where string, arg any) (*domain.User, error) {
	user, err := scanUser(q.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE `+where, arg))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return user, err
}

// GetByID retrieves a user by ID
func (r *UserRepo) GetByID(ctx context.Context, id string) (*domain.User, error) {
	user, err := getUser(ctx, r.db.Pool, "id = $1", id)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// GetByReferralCode retrieves the owner of a referral code
func (r *UserRepo) GetByReferralCode(ctx context.Context, code string) (*domain.User, error) {
	user, err := getUser(ctx, r.db.Pool, "referral_code = $1", code)
	if err != nil {
		return nil, fmt.Errorf("failed to get user by referral code: %w", err)
	}
	return user, nil
}

// Create inserts a user row
func (r *UserRepo) Create(ctx context.Context, user *domain.User) error {
	history, err := EncodeReferralHistory(user.ReferralHistory)
	if err != nil {
		return err
	}
	stats, err := EncodeReferralStats(user.ReferralStats)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO users (
			id, name, email, referral_code, referred_by, bonus_downloads,
			referral_history, referral_stats
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7::jsonb, $8::jsonb)
		RETURNING created_at, updated_at
	`

	err = r.db.Pool.QueryRow(ctx, query,
		user.ID,
		user.Name,
		user.Email,
		user.ReferralCode,
		user.ReferredBy,
		user.BonusDownloads,
		history,
		stats,
	).Scan(&user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// ListWithoutReferralCode returns users whose referral code is unset
func (r *UserRepo) ListWithoutReferralCode(ctx context.Context) ([]*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE referral_code IS NULL ORDER BY created_at, id`

	rows, err := r.db.Pool.Query(ctx, query)
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

// ReferralCodeExists reports whether any user holds code
func (r *UserRepo) ReferralCodeExists(ctx context.Context, code string) (bool, error) {
	var exists bool
	err := r.db.Pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM users WHERE referral_code = $1)`, code,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check referral code: %w", err)
	}
	return exists, nil
}

// AssignReferralCode stores the code and referral defaults. An existing code
// is never overwritten.
func (r *UserRepo) AssignReferralCode(ctx context.Context, user *domain.User) (string, error) {
	history, err := EncodeReferralHistory(user.ReferralHistory)
	if err != nil {
		return "", err
	}
	stats, err := EncodeReferralStats(user.ReferralStats)
	if err != nil {
		return "", err
	}

	query := `
		UPDATE users SET
			referral_code    = COALESCE(referral_code, $2),
			bonus_downloads  = COALESCE(bonus_downloads, $3),
			referral_history = COALESCE(referral_history, $4::jsonb),
			referral_stats   = COALESCE(referral_stats, $5::jsonb),
			updated_at       = NOW()
		WHERE id = $1
		RETURNING referral_code
	`

	var stored string
	err = r.db.Pool.QueryRow(ctx, query,
		user.ID,
		user.ReferralCode,
		user.BonusDownloads,
		history,
		stats,
	).Scan(&stored)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", domain.ErrUserNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to assign referral code: %w", err)
	}
	return stored, nil
}

// ApplyReferral links the referred user to the code owner and credits the owner
func (r *UserRepo) ApplyReferral(ctx context.Context, referredUserID, code string, bonus int, at time.Time) (*domain.User, error) {
	var referrer *domain.User

	err := r.db.WithTx(ctx, func(tx pgx.Tx) error {
		var err error
		referrer, err = getUser(ctx, tx, "referral_code = $1 FOR UPDATE", code)
		if err != nil {
			return fmt.Errorf("failed to lock referrer: %w", err)
		}
		if referrer == nil {
			return domain.ErrReferralCodeNotFound
		}
		if referrer.ID == referredUserID {
			return domain.ErrSelfReferral
		}

		tag, err := tx.Exec(ctx,
			`UPDATE users SET referred_by = $2, updated_at = $3 WHERE id = $1 AND referred_by IS NULL`,
			referredUserID, referrer.ID, at,
		)
		if err != nil {
			return fmt.Errorf("failed to set referred_by: %w", err)
		}
		if tag.RowsAffected() == 0 {
			var exists bool
			if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)`, referredUserID).Scan(&exists); err != nil {
				return fmt.Errorf("failed to check referred user: %w", err)
			}
			if !exists {
				return domain.ErrUserNotFound
			}
			return domain.ErrAlreadyReferred
		}

		referrer.CreditReferral(domain.ReferralHistoryEntry{
			ReferredUserID: referredUserID,
			Code:           code,
			ReferredAt:     at,
		}, bonus)
		referrer.UpdatedAt = at

		history, err := EncodeReferralHistory(referrer.ReferralHistory)
		if err != nil {
			return err
		}
		stats, err := EncodeReferralStats(referrer.ReferralStats)
		if err != nil {
			return err
		}

		_, err = tx.Exec(ctx, `
			UPDATE users SET
				bonus_downloads  = $2,
				referral_history = $3::jsonb,
				referral_stats   = $4::jsonb,
				updated_at       = $5
			WHERE id = $1
		`, referrer.ID, *referrer.BonusDownloads, history, stats, at)
		if err != nil {
			return fmt.Errorf("failed to credit referrer: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return referrer, nil
}
