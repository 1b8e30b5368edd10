package handler

import (
	"net/http"

	"vdl-backend/internal/middleware"
	"vdl-backend/internal/service"
	"vdl-backend/pkg/errors"
	"vdl-backend/pkg/logger"
)

// ReferralHandler serves the signed-in user's referral endpoints
type ReferralHandler struct {
	referral *service.ReferralService
	logger   *logger.Logger
}

// NewReferralHandler creates a new referral handler
func NewReferralHandler(referral *service.ReferralService, log *logger.Logger) *ReferralHandler {
	return &ReferralHandler{referral: referral, logger: log}
}

// GetMine handles GET /api/referral/me. A user without a code gets one assigned.
func (h *ReferralHandler) GetMine(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		respondError(w, r, errors.NewAuthenticationError("Authentication required"), h.logger)
		return
	}

	summary, err := h.referral.ReferralSummary(r.Context(), claims.Sub)
	if err != nil {
		respondError(w, r, err, h.logger)
		return
	}
	respondJSON(w, http.StatusOK, summary, h.logger)
}

type redeemRequest struct {
	Code string `json:"code" validate:"required,max=32"`
}

// Redeem handles POST /api/referral/redeem
func (h *ReferralHandler) Redeem(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		respondError(w, r, errors.NewAuthenticationError("Authentication required"), h.logger)
		return
	}

	var req redeemRequest
	if appErr := decodeJSON(r, &req); appErr != nil {
		respondError(w, r, appErr, h.logger)
		return
	}

	if err := h.referral.RedeemReferral(r.Context(), claims.Sub, req.Code); err != nil {
		respondError(w, r, err, h.logger)
		return
	}

	summary, err := h.referral.ReferralSummary(r.Context(), claims.Sub)
	if err != nil {
		respondError(w, r, err, h.logger)
		return
	}
	respondJSON(w, http.StatusOK, summary, h.logger)
}
