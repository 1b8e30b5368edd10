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

const (
	maxIPAddressLength = 64
	maxUserAgentLength = 512
)

// SessionLedger tracks per-session page views, downloads, time and revenue
type SessionLedger struct {
	repo   repository.SessionRepository
	logger *logger.Logger
	now    func() time.Time
}

// NewSessionLedger creates a session ledger
func NewSessionLedger(repo repository.SessionRepository, log *logger.Logger, now func() time.Time) *SessionLedger {
	if now == nil {
		now = time.Now
	}
	return &SessionLedger{
		repo:   repo,
		logger: log.Named("sessions"),
		now:    now,
	}
}

// FindOrCreateSession returns the (user, session) bucket, creating it with zero
// counters when absent. created is true only for the call that inserted it.
func (l *SessionLedger) FindOrCreateSession(ctx context.Context, userID *string, sessionID, ipAddress, userAgent string) (*domain.SessionAnalytics, bool, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, false, errors.NewValidationError("session_id is required", nil)
	}

	now := l.now()
	session, created, err := l.repo.FindOrCreate(ctx, &domain.SessionAnalytics{
		UserID:           normalizeUserID(userID),
		SessionID:        sessionID,
		IPAddress:        truncate(ipAddress, maxIPAddressLength),
		UserAgent:        truncate(userAgent, maxUserAgentLength),
		RevenueGenerated: decimal.Zero,
		CreatedAt:        now,
		UpdatedAt:        now,
	})
	if err != nil {
		return nil, false, errors.NewInternalError("Failed to load session", err)
	}

	if created {
		metrics.SessionsCreatedTotal.Inc()
		l.logger.WithField("session_id", session.SessionID).Debug("Session created")
	}
	return session, created, nil
}

// IncrementPageViews adds one page view
func (l *SessionLedger) IncrementPageViews(ctx context.Context, session *domain.SessionAnalytics) error {
	return l.apply(ctx, session, "pageview", domain.SessionDelta{PageViews: 1})
}

// IncrementDownloads adds one download
func (l *SessionLedger) IncrementDownloads(ctx context.Context, session *domain.SessionAnalytics) error {
	return l.apply(ctx, session, "download", domain.SessionDelta{Downloads: 1})
}

// AddTimeSpent adds seconds of engagement. Negative values are rejected.
func (l *SessionLedger) AddTimeSpent(ctx context.Context, session *domain.SessionAnalytics, seconds int64) error {
	if seconds < 0 {
		return errors.NewValidationError("time spent must not be negative", map[string]interface{}{
			"seconds": seconds,
		})
	}
	return l.apply(ctx, session, "time", domain.SessionDelta{TimeSpent: seconds})
}

// AddRevenue adds a decimal amount. An unparseable amount leaves the session untouched.
func (l *SessionLedger) AddRevenue(ctx context.Context, session *domain.SessionAnalytics, amount string) error {
	parsed, err := domain.ParseAmount(amount)
	if err != nil {
		return err
	}
	return l.apply(ctx, session, "revenue", domain.SessionDelta{Revenue: parsed})
}

func (l *SessionLedger) apply(ctx context.Context, session *domain.SessionAnalytics, event string, d domain.SessionDelta) error {
	stored, err := l.repo.Increment(ctx, session.ID, d, l.now())
	if stderrors.Is(err, domain.ErrBucketNotFound) {
		return errors.NewNotFoundError("Session not found")
	}
	if err != nil {
		l.logger.WithFields(map[string]interface{}{
			"session_id": session.SessionID,
			"event":      event,
		}).WithError(err).Error("Failed to update session")
		return errors.NewInternalError("Failed to update session", err)
	}

	*session = *stored
	metrics.SessionEventsTotal.WithLabelValues(event).Inc()
	return nil
}

// SessionStats returns the oldest bucket carrying sessionID
func (l *SessionLedger) SessionStats(ctx context.Context, sessionID string) (*domain.SessionAnalytics, error) {
	session, err := l.repo.FirstBySessionID(ctx, strings.TrimSpace(sessionID))
	if err != nil {
		return nil, errors.NewInternalError("Failed to load session", err)
	}
	if session == nil {
		return nil, errors.NewNotFoundError("Session not found")
	}
	return session, nil
}

// UserStats returns the user's sessions, newest first
func (l *SessionLedger) UserStats(ctx context.Context, userID string, rng *domain.DateRange) ([]*domain.SessionAnalytics, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, errors.NewValidationError("user_id is required", nil)
	}
	sessions, err := l.repo.ListByUser(ctx, strings.TrimSpace(userID), rng)
	if err != nil {
		return nil, errors.NewInternalError("Failed to load user sessions", err)
	}
	return sessions, nil
}

// TotalStats aggregates every session in range
func (l *SessionLedger) TotalStats(ctx context.Context, rng *domain.DateRange) (*domain.SessionTotals, error) {
	totals, err := l.repo.Totals(ctx, rng)
	if err != nil {
		return nil, errors.NewInternalError("Failed to load session totals", err)
	}
	return totals, nil
}

func truncate(s string, limit int) string {
	s = strings.TrimSpace(s)
	if len(s) <= limit {
		return s
	}
	return s[:limit]
}
