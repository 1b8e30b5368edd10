package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"vdl-backend/internal/domain"
	"vdl-backend/internal/middleware"
	"vdl-backend/internal/service"
	"vdl-backend/pkg/errors"
	"vdl-backend/pkg/logger"
)

// TrackingHandler serves the anonymous-friendly ad and session tracking endpoints
type TrackingHandler struct {
	ads      *service.AdLedger
	sessions *service.SessionLedger
	logger   *logger.Logger
}

// NewTrackingHandler creates a new tracking handler
func NewTrackingHandler(ads *service.AdLedger, sessions *service.SessionLedger, log *logger.Logger) *TrackingHandler {
	return &TrackingHandler{ads: ads, sessions: sessions, logger: log}
}

// RegisterRoutes mounts the tracking routes on r
func (h *TrackingHandler) RegisterRoutes(r chi.Router) {
	r.Post("/ads/impression", h.RecordImpression)
	r.Post("/ads/click", h.RecordClick)

	r.Route("/analytics/session", func(r chi.Router) {
		r.Post("/", h.StartSession)
		r.Get("/{sessionId}", h.GetSession)
		r.Post("/{sessionId}/pageview", h.PageView)
		r.Post("/{sessionId}/download", h.Download)
		r.Post("/{sessionId}/time", h.TimeSpent)
		r.Post("/{sessionId}/revenue", h.Revenue)
	})
}

type adEventRequest struct {
	SessionID  string `json:"sessionId" validate:"required,max=255"`
	AdType     string `json:"adType" validate:"required,max=100"`
	AdPosition string `json:"adPosition" validate:"required,max=100"`
	Revenue    amount `json:"revenue"`
}

// AdBucketResponse is a bucket with its derived rates
type AdBucketResponse struct {
	Bucket               *domain.AdImpression `json:"bucket"`
	CTR                  float64              `json:"ctr"`
	RevenuePerImpression decimal.Decimal      `json:"revenue_per_impression"`
}

func (h *TrackingHandler) bucketResponse(bucket *domain.AdImpression) AdBucketResponse {
	return AdBucketResponse{
		Bucket:               bucket,
		CTR:                  h.ads.CTR(bucket),
		RevenuePerImpression: h.ads.RevenuePerImpression(bucket),
	}
}

// RecordImpression handles POST /api/ads/impression
func (h *TrackingHandler) RecordImpression(w http.ResponseWriter, r *http.Request) {
	var req adEventRequest
	if appErr := decodeJSON(r, &req); appErr != nil {
		respondError(w, r, appErr, h.logger)
		return
	}

	bucket, err := h.ads.RecordAdImpression(r.Context(), middleware.UserIDFromContext(r.Context()), req.SessionID, req.AdType, req.AdPosition)
	if err != nil {
		respondError(w, r, err, h.logger)
		return
	}
	respondJSON(w, http.StatusOK, h.bucketResponse(bucket), h.logger)
}

// RecordClick handles POST /api/ads/click. A missing revenue counts as zero.
func (h *TrackingHandler) RecordClick(w http.ResponseWriter, r *http.Request) {
	var req adEventRequest
	if appErr := decodeJSON(r, &req); appErr != nil {
		respondError(w, r, appErr, h.logger)
		return
	}
	revenue := string(req.Revenue)
	if revenue == "" {
		revenue = "0"
	}

	bucket, err := h.ads.RecordAdClick(r.Context(), middleware.UserIDFromContext(r.Context()), req.SessionID, req.AdType, req.AdPosition, revenue)
	if err != nil {
		respondError(w, r, err, h.logger)
		return
	}
	respondJSON(w, http.StatusOK, h.bucketResponse(bucket), h.logger)
}

type startSessionRequest struct {
	SessionID string `json:"sessionId" validate:"required,max=255"`
}

// StartSession handles POST /api/analytics/session. Responds 201 when the
// session was created and 200 when it already existed.
func (h *TrackingHandler) StartSession(w http.ResponseWriter, r *http.Request) {
	var req startSessionRequest
	if appErr := decodeJSON(r, &req); appErr != nil {
		respondError(w, r, appErr, h.logger)
		return
	}

	session, created, err := h.session(r, req.SessionID)
	if err != nil {
		respondError(w, r, err, h.logger)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	respondJSON(w, status, session, h.logger)
}

// GetSession handles GET /api/analytics/session/{sessionId}
func (h *TrackingHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	session, err := h.sessions.SessionStats(r.Context(), chi.URLParam(r, "sessionId"))
	if err != nil {
		respondError(w, r, err, h.logger)
		return
	}
	respondJSON(w, http.StatusOK, session, h.logger)
}

// PageView handles POST /api/analytics/session/{sessionId}/pageview
func (h *TrackingHandler) PageView(w http.ResponseWriter, r *http.Request) {
	h.increment(w, r, func(s *domain.SessionAnalytics) error {
		return h.sessions.IncrementPageViews(r.Context(), s)
	})
}

// Download handles POST /api/analytics/session/{sessionId}/download
func (h *TrackingHandler) Download(w http.ResponseWriter, r *http.Request) {
	h.increment(w, r, func(s *domain.SessionAnalytics) error {
		return h.sessions.IncrementDownloads(r.Context(), s)
	})
}

type timeSpentRequest struct {
	Seconds *int64 `json:"seconds" validate:"required"`
}

// TimeSpent handles POST /api/analytics/session/{sessionId}/time
func (h *TrackingHandler) TimeSpent(w http.ResponseWriter, r *http.Request) {
	var req timeSpentRequest
	if appErr := decodeJSON(r, &req); appErr != nil {
		respondError(w, r, appErr, h.logger)
		return
	}
	h.increment(w, r, func(s *domain.SessionAnalytics) error {
		return h.sessions.AddTimeSpent(r.Context(), s, *req.Seconds)
	})
}

type revenueRequest struct {
	Amount amount `json:"amount" validate:"required"`
}

// Revenue handles POST /api/analytics/session/{sessionId}/revenue
func (h *TrackingHandler) Revenue(w http.ResponseWriter, r *http.Request) {
	var req revenueRequest
	if appErr := decodeJSON(r, &req); appErr != nil {
		respondError(w, r, appErr, h.logger)
		return
	}
	h.increment(w, r, func(s *domain.SessionAnalytics) error {
		return h.sessions.AddRevenue(r.Context(), s, string(req.Amount))
	})
}

func (h *TrackingHandler) increment(w http.ResponseWriter, r *http.Request, apply func(*domain.SessionAnalytics) error) {
	session, _, err := h.session(r, chi.URLParam(r, "sessionId"))
	if err != nil {
		respondError(w, r, err, h.logger)
		return
	}
	if err := apply(session); err != nil {
		respondError(w, r, err, h.logger)
		return
	}
	respondJSON(w, http.StatusOK, session, h.logger)
}

func (h *TrackingHandler) session(r *http.Request, sessionID string) (*domain.SessionAnalytics, bool, error) {
	if len(sessionID) > 255 {
		return nil, false, errors.NewValidationError("sessionId is too long", nil)
	}
	return h.sessions.FindOrCreateSession(r.Context(),
		middleware.UserIDFromContext(r.Context()),
		sessionID,
		middleware.ClientIP(r),
		r.UserAgent(),
	)
}
