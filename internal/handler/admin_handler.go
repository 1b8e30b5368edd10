package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"vdl-backend/internal/domain"
	"vdl-backend/internal/service"
	"vdl-backend/pkg/errors"
	"vdl-backend/pkg/logger"
)

// AdminHandler serves reports. Routes are mounted behind Auth and RequireAdmin.
type AdminHandler struct {
	reports *service.ReportService
	loc     *time.Location
	logger  *logger.Logger
}

// NewAdminHandler creates a new admin handler. Date query parameters are read in loc.
func NewAdminHandler(reports *service.ReportService, loc *time.Location, log *logger.Logger) *AdminHandler {
	return &AdminHandler{reports: reports, loc: loc, logger: log}
}

// RegisterRoutes mounts the report routes on r
func (h *AdminHandler) RegisterRoutes(r chi.Router) {
	r.Get("/ads/stats", h.AdStats)
	r.Get("/ads/revenue", h.AdRevenue)
	r.Get("/ads/buckets", h.AdBuckets)
	r.Get("/analytics/totals", h.SessionTotals)
	r.Get("/analytics/users/{userId}", h.UserSessions)
	r.Delete("/cache", h.FlushCache)
}

func (h *AdminHandler) dateRange(r *http.Request) (*domain.DateRange, error) {
	q := r.URL.Query()
	return domain.ParseDayRange(q.Get("start"), q.Get("end"), h.loc)
}

// AdStats handles GET /api/admin/ads/stats?start&end&adType
func (h *AdminHandler) AdStats(w http.ResponseWriter, r *http.Request) {
	rng, err := h.dateRange(r)
	if err != nil {
		respondError(w, r, err, h.logger)
		return
	}

	rows, err := h.reports.AdStats(r.Context(), domain.AdStatsFilter{Range: rng, AdType: r.URL.Query().Get("adType")})
	if err != nil {
		respondError(w, r, err, h.logger)
		return
	}
	respondJSON(w, http.StatusOK, rows, h.logger)
}

// AdRevenue handles GET /api/admin/ads/revenue?start&end
func (h *AdminHandler) AdRevenue(w http.ResponseWriter, r *http.Request) {
	rng, err := h.dateRange(r)
	if err != nil {
		respondError(w, r, err, h.logger)
		return
	}

	totals, err := h.reports.AdRevenue(r.Context(), rng)
	if err != nil {
		respondError(w, r, err, h.logger)
		return
	}
	respondJSON(w, http.StatusOK, totals, h.logger)
}

// AdBuckets handles GET /api/admin/ads/buckets?start&end&adType&sessionId&limit
func (h *AdminHandler) AdBuckets(w http.ResponseWriter, r *http.Request) {
	rng, err := h.dateRange(r)
	if err != nil {
		respondError(w, r, err, h.logger)
		return
	}

	q := r.URL.Query()
	filter := domain.AdBucketFilter{Range: rng, AdType: q.Get("adType"), SessionID: q.Get("sessionId")}
	if raw := q.Get("limit"); raw != "" {
		limit, convErr := strconv.Atoi(raw)
		if convErr != nil || limit < 1 {
			respondError(w, r, errors.NewValidationError("limit must be a positive integer", map[string]interface{}{"limit": raw}), h.logger)
			return
		}
		filter.Limit = limit
	}

	buckets, err := h.reports.AdBuckets(r.Context(), filter)
	if err != nil {
		respondError(w, r, err, h.logger)
		return
	}
	respondJSON(w, http.StatusOK, buckets, h.logger)
}

// SessionTotals handles GET /api/admin/analytics/totals?start&end
func (h *AdminHandler) SessionTotals(w http.ResponseWriter, r *http.Request) {
	rng, err := h.dateRange(r)
	if err != nil {
		respondError(w, r, err, h.logger)
		return
	}

	totals, err := h.reports.SessionTotals(r.Context(), rng)
	if err != nil {
		respondError(w, r, err, h.logger)
		return
	}
	respondJSON(w, http.StatusOK, totals, h.logger)
}

// UserSessions handles GET /api/admin/analytics/users/{userId}?start&end
func (h *AdminHandler) UserSessions(w http.ResponseWriter, r *http.Request) {
	rng, err := h.dateRange(r)
	if err != nil {
		respondError(w, r, err, h.logger)
		return
	}

	sessions, err := h.reports.UserSessions(r.Context(), chi.URLParam(r, "userId"), rng)
	if err != nil {
		respondError(w, r, err, h.logger)
		return
	}
	respondJSON(w, http.StatusOK, sessions, h.logger)
}

// FlushCache handles DELETE /api/admin/cache
func (h *AdminHandler) FlushCache(w http.ResponseWriter, r *http.Request) {
	deleted, err := h.reports.FlushCache(r.Context())
	if err != nil {
		respondError(w, r, err, h.logger)
		return
	}
	respondJSON(w, http.StatusOK, map[string]int{"deleted": deleted}, h.logger)
}
