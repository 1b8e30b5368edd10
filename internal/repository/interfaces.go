package repository

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"vdl-backend/internal/domain"
	"vdl-backend/pkg/database"
)

// UserRepository persists the referral fields of users
type UserRepository interface {
	// GetByID retrieves a user by ID, nil when absent
	GetByID(ctx context.Context, id string) (*domain.User, error)

	// GetByReferralCode retrieves the owner of a code, nil when absent
	GetByReferralCode(ctx context.Context, code string) (*domain.User, error)

	// Create inserts a user row
	Create(ctx context.Context, user *domain.User) error

	// ListWithoutReferralCode returns every user whose code is unset, oldest first
	ListWithoutReferralCode(ctx context.Context) ([]*domain.User, error)

	// ReferralCodeExists reports whether any user holds code
	ReferralCodeExists(ctx context.Context, code string) (bool, error)

	// AssignReferralCode writes the user's code and initialised referral fields.
	// The code column is only written while it is still NULL; the stored code is returned.
	AssignReferralCode(ctx context.Context, user *domain.User) (string, error)

	// ApplyReferral links referredUserID to the owner of code and credits the owner,
	// all in one transaction. Returns the updated referrer.
	ApplyReferral(ctx context.Context, referredUserID, code string, bonus int, at time.Time) (*domain.User, error)
}

// AdImpressionRepository persists day buckets of ad counters
type AdImpressionRepository interface {
	// FindForDay returns the identity's bucket for day, nil when absent
	FindForDay(ctx context.Context, id domain.AdIdentity, day time.Time) (*domain.AdImpression, error)

	// UpsertImpression creates the bucket with one impression or adds one
	UpsertImpression(ctx context.Context, id domain.AdIdentity, day, at time.Time) (*domain.AdImpression, error)

	// UpsertClick adds a click and revenue to the bucket, creating it with one
	// impression and one click when absent
	UpsertClick(ctx context.Context, id domain.AdIdentity, day time.Time, amount decimal.Decimal, at time.Time) (*domain.AdImpression, error)

	// Increment adds to an existing bucket's counters and returns the stored row
	Increment(ctx context.Context, bucketID int64, impressions, clicks int64, revenue decimal.Decimal, at time.Time) (*domain.AdImpression, error)

	// Stats groups buckets by (ad_type, ad_position), highest revenue first
	Stats(ctx context.Context, filter domain.AdStatsFilter) ([]domain.AdStatsRow, error)

	// Totals sums every bucket in range
	Totals(ctx context.Context, rng *domain.DateRange) (*domain.AdRevenueTotals, error)

	// List returns raw buckets, newest first
	List(ctx context.Context, filter domain.AdBucketFilter) ([]*domain.AdImpression, error)
}

// SessionRepository persists per-session analytics
type SessionRepository interface {
	// FindOrCreate returns the (user, session) bucket, inserting s when absent.
	// The bool is true when a row was inserted.
	FindOrCreate(ctx context.Context, s *domain.SessionAnalytics) (*domain.SessionAnalytics, bool, error)

	// Increment adds d to the bucket and returns the stored row
	Increment(ctx context.Context, bucketID int64, d domain.SessionDelta, at time.Time) (*domain.SessionAnalytics, error)

	// FirstBySessionID returns the oldest bucket for sessionID across users, nil when absent
	FirstBySessionID(ctx context.Context, sessionID string) (*domain.SessionAnalytics, error)

	// ListByUser returns the user's buckets, newest first
	ListByUser(ctx context.Context, userID string, rng *domain.DateRange) ([]*domain.SessionAnalytics, error)

	// Totals aggregates every bucket in range
	Totals(ctx context.Context, rng *domain.DateRange) (*domain.SessionTotals, error)
}

// Repositories aggregates all repository interfaces
type Repositories struct {
	User         UserRepository
	AdImpression AdImpressionRepository
	Session      SessionRepository
}

// NewPostgresRepositories wires every Postgres repository
func NewPostgresRepositories(db *database.PostgresDB) *Repositories {
	return &Repositories{
		User:         NewUserRepository(db),
		AdImpression: NewAdImpressionRepository(db),
		Session:      NewSessionRepository(db),
	}
}

var (
	_ UserRepository         = (*UserRepo)(nil)
	_ AdImpressionRepository = (*AdImpressionRepo)(nil)
	_ SessionRepository      = (*SessionRepo)(nil)
)
