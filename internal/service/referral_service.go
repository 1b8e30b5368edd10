package service

import (
	"context"
	"crypto/rand"
	stderrors "errors"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"

	"vdl-backend/internal/domain"
	"vdl-backend/internal/repository"
	"vdl-backend/pkg/errors"
	"vdl-backend/pkg/logger"
	"vdl-backend/pkg/metrics"
)

var referralCodePattern = regexp.MustCompile(`^[A-Z0-9]{8}$`)

// ReferralService assigns referral codes and redeems them
type ReferralService struct {
	users  repository.UserRepository
	logger *logger.Logger
	bonus  int
	random io.Reader
	now    func() time.Time
}

// ReferralOption customises a ReferralService
type ReferralOption func(*ReferralService)

// WithRandom replaces crypto/rand as the code suffix source
func WithRandom(r io.Reader) ReferralOption {
	return func(s *ReferralService) { s.random = r }
}

// WithReferralClock replaces time.Now
func WithReferralClock(now func() time.Time) ReferralOption {
	return func(s *ReferralService) { s.now = now }
}

// NewReferralService creates a referral service. bonus is the number of
// downloads granted to a referrer per redemption.
func NewReferralService(users repository.UserRepository, log *logger.Logger, bonus int, opts ...ReferralOption) *ReferralService {
	s := &ReferralService{
		users:  users,
		logger: log.Named("referral"),
		bonus:  bonus,
		random: rand.Reader,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// assignCode resolves a code for user, fills unset referral fields and persists.
// The stored code wins if another writer assigned one first. When every
// candidate was taken nothing is written and ErrReferralCodeExhausted is returned.
func (s *ReferralService) assignCode(ctx context.Context, user *domain.User, source string) (string, error) {
	res, err := ResolveUniqueCode(ctx,
		func() (string, error) { return GenerateReferralCode(user.DisplayName(), s.random) },
		s.users.ReferralCodeExists,
	)
	if err != nil {
		return "", fmt.Errorf("failed to resolve referral code: %w", err)
	}

	log := s.logger.WithFields(map[string]interface{}{
		"user_id":       user.ID,
		"referral_code": res.Code,
		"attempts":      res.Attempts,
		"verified":      res.Verified,
	})

	if !res.Verified {
		metrics.RecordReferralCode(source, false)
		log.Warn("Referral code uniqueness could not be verified")
		return "", fmt.Errorf("%d attempts: %w", res.Attempts, ErrReferralCodeExhausted)
	}

	code := res.Code
	user.ReferralCode = &code
	user.InitReferralDefaults()

	stored, err := s.users.AssignReferralCode(ctx, user)
	if err != nil {
		return "", err
	}
	user.ReferralCode = &stored

	metrics.RecordReferralCode(source, true)
	if stored != res.Code {
		log.WithField("stored_code", stored).Info("Referral code already assigned by another writer")
	} else {
		log.Info("Referral code assigned")
	}
	return stored, nil
}

// EnsureReferralCode returns the user's code, assigning one on first use
func (s *ReferralService) EnsureReferralCode(ctx context.Context, userID string) (string, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return "", errors.NewInternalError("Failed to load user", err)
	}
	if user == nil {
		return "", errors.NewNotFoundError("User not found")
	}
	if user.HasReferralCode() {
		return *user.ReferralCode, nil
	}

	code, err := s.assignCode(ctx, user, "request")
	if err != nil {
		if stderrors.Is(err, domain.ErrUserNotFound) {
			return "", errors.NewNotFoundError("User not found")
		}
		return "", errors.NewInternalError("Failed to assign referral code", err)
	}
	return code, nil
}

// RedeemReferral records that referredUserID signed up with code and credits
// the code's owner
func (s *ReferralService) RedeemReferral(ctx context.Context, referredUserID, code string) error {
	normalized := strings.ToUpper(strings.TrimSpace(code))
	if !referralCodePattern.MatchString(normalized) {
		metrics.ReferralRedemptions.WithLabelValues("invalid").Inc()
		return errors.NewValidationError("Invalid referral code format", map[string]interface{}{"code": code})
	}

	referrer, err := s.users.ApplyReferral(ctx, referredUserID, normalized, s.bonus, s.now())
	switch {
	case err == nil:
	case stderrors.Is(err, domain.ErrReferralCodeNotFound):
		metrics.ReferralRedemptions.WithLabelValues("unknown_code").Inc()
		return errors.NewNotFoundError("Referral code not found")
	case stderrors.Is(err, domain.ErrUserNotFound):
		metrics.ReferralRedemptions.WithLabelValues("unknown_user").Inc()
		return errors.NewNotFoundError("User not found")
	case stderrors.Is(err, domain.ErrSelfReferral):
		metrics.ReferralRedemptions.WithLabelValues("self").Inc()
		return errors.NewValidationError("You cannot redeem your own referral code", nil)
	case stderrors.Is(err, domain.ErrAlreadyReferred):
		metrics.ReferralRedemptions.WithLabelValues("already_referred").Inc()
		return errors.NewValidationError("A referral code has already been redeemed for this account", nil)
	default:
		return errors.NewInternalError("Failed to redeem referral code", err)
	}

	metrics.ReferralRedemptions.WithLabelValues("success").Inc()
	s.logger.WithFields(map[string]interface{}{
		"referrer_id":    referrer.ID,
		"referred_id":    referredUserID,
		"total_referred": referrer.ReferralStats.TotalReferred,
	}).Info("Referral redeemed")
	return nil
}

// ReferralSummary returns the user's code, bonus and referral history,
// assigning a code if the user has none yet
func (s *ReferralService) ReferralSummary(ctx context.Context, userID string) (*domain.ReferralSummary, error) {
	if _, err := s.EnsureReferralCode(ctx, userID); err != nil {
		return nil, err
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, errors.NewInternalError("Failed to load user", err)
	}
	if user == nil {
		return nil, errors.NewNotFoundError("User not found")
	}
	user.InitReferralDefaults()

	return &domain.ReferralSummary{
		UserID:         user.ID,
		ReferralCode:   *user.ReferralCode,
		ReferredBy:     user.ReferredBy,
		BonusDownloads: *user.BonusDownloads,
		Stats:          *user.ReferralStats,
		History:        user.ReferralHistory,
	}, nil
}
