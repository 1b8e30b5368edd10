package service

import (
	"context"

	"vdl-backend/internal/domain"
)

// AuthService verifies bearer tokens issued by the account service
type AuthService interface {
	// ValidateToken verifies the signature and expiry and returns the claims
	ValidateToken(ctx context.Context, token string) (*domain.AuthClaims, error)
}

// Services aggregates the services used by the HTTP layer
type Services struct {
	Auth     AuthService
	Referral *ReferralService
	Ads      *AdLedger
	Sessions *SessionLedger
	Reports  *ReportService
	Limiter  *TrackingLimiter
}
