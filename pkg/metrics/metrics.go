package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Ad ledger
	AdImpressionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vdl_ad_impressions_total",
			Help: "Total number of recorded ad impressions",
		},
		[]string{"ad_type", "ad_position"},
	)

	AdClicksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vdl_ad_clicks_total",
			Help: "Total number of recorded ad clicks",
		},
		[]string{"ad_type", "ad_position"},
	)

	AdRevenueTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vdl_ad_revenue_total",
			Help: "Ad revenue attributed through recorded clicks",
		},
		[]string{"ad_type"},
	)

	// Session ledger
	SessionsCreatedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "vdl_sessions_created_total",
			Help: "Total number of analytics sessions created",
		},
	)

	SessionEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vdl_session_events_total",
			Help: "Total number of session counter updates",
		},
		[]string{"event"}, // "pageview", "download", "time", "revenue"
	)

	// Referrals
	ReferralCodesAssigned = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vdl_referral_codes_assigned_total",
			Help: "Total number of referral codes assigned",
		},
		[]string{"source", "verified"}, // source: "backfill", "request"
	)

	ReferralRedemptions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vdl_referral_redemptions_total",
			Help: "Referral redemption attempts by outcome",
		},
		[]string{"outcome"},
	)

	// Report cache
	ReportCacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vdl_report_cache_hits_total",
			Help: "Total number of report cache hits",
		},
		[]string{"report"},
	)

	ReportCacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vdl_report_cache_misses_total",
			Help: "Total number of report cache misses",
		},
		[]string{"report"},
	)

	// HTTP
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vdl_api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "vdl_api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
		[]string{"method", "endpoint"},
	)

	APIRateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vdl_api_rate_limit_hits_total",
			Help: "Total number of rate limit rejections",
		},
		[]string{"endpoint"},
	)
)

// RecordAPIRequest records request count and latency
func RecordAPIRequest(method, endpoint string, statusCode int, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(statusCode)).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// RecordReferralCode counts an assigned code. verified is false when the
// uniqueness check gave up after the attempt limit.
func RecordReferralCode(source string, verified bool) {
	ReferralCodesAssigned.WithLabelValues(source, strconv.FormatBool(verified)).Inc()
}

// RecordReportCache counts a cache lookup for the named report
func RecordReportCache(report string, hit bool) {
	if hit {
		ReportCacheHits.WithLabelValues(report).Inc()
		return
	}
	ReportCacheMisses.WithLabelValues(report).Inc()
}
