package service

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"vdl-backend/internal/repository"
	"vdl-backend/pkg/logger"
)

// BackfillResult summarises one backfill run
type BackfillResult struct {
	Processed int           `json:"processed"`
	Skipped   int           `json:"skipped"` // no unused code found; the run fails, retried next time
	Duration  time.Duration `json:"duration"`
}

// ReferralBackfill assigns codes to every user created before referrals existed
type ReferralBackfill struct {
	users    repository.UserRepository
	referral *ReferralService
	strict   bool
	logger   *logger.Logger
}

// NewReferralBackfill creates the job. In strict mode a user for whom no unused
// code was found stops the run at once; otherwise the remaining users are still
// processed and the run fails at the end.
func NewReferralBackfill(users repository.UserRepository, referral *ReferralService, strict bool, log *logger.Logger) *ReferralBackfill {
	return &ReferralBackfill{
		users:    users,
		referral: referral,
		strict:   strict,
		logger:   log.Named("backfill"),
	}
}

// Run processes every user without a code. Any user left without a code makes
// the run fail.
func (b *ReferralBackfill) Run(ctx context.Context) (BackfillResult, error) {
	start := time.Now()
	var result BackfillResult

	users, err := b.users.ListWithoutReferralCode(ctx)
	if err != nil {
		return result, fmt.Errorf("failed to list users: %w", err)
	}
	b.logger.WithField("users", len(users)).Info("Starting referral backfill")

	for _, user := range users {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		_, err := b.referral.assignCode(ctx, user, "backfill")
		if err != nil && !b.strict && stderrors.Is(err, ErrReferralCodeExhausted) {
			result.Skipped++
			continue
		}
		if err != nil {
			b.logger.WithFields(map[string]interface{}{
				"user_id":   user.ID,
				"processed": result.Processed,
			}).WithError(err).Error("Referral backfill aborted")
			return result, fmt.Errorf("user %s: %w", user.ID, err)
		}
		result.Processed++
	}

	result.Duration = time.Since(start)
	fields := map[string]interface{}{
		"processed": result.Processed,
		"skipped":   result.Skipped,
		"duration":  result.Duration,
	}
	if result.Skipped > 0 {
		b.logger.WithFields(fields).Error("Referral backfill incomplete")
		return result, fmt.Errorf("%d users left without a code: %w", result.Skipped, ErrReferralCodeExhausted)
	}
	b.logger.WithFields(fields).Info("Referral backfill completed")
	return result, nil
}
