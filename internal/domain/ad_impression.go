package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// AdIdentity identifies one ad bucket apart from its day
type AdIdentity struct {
	UserID     *string `json:"user_id,omitempty"`
	SessionID  string  `json:"session_id"`
	AdType     string  `json:"ad_type"`
	AdPosition string  `json:"ad_position"`
}

// AdImpression is one day's counters for an identity. At most one exists per
// identity per bucket date.
type AdImpression struct {
	ID          int64           `json:"id"`
	UserID      *string         `json:"user_id,omitempty"`
	SessionID   string          `json:"session_id"`
	AdType      string          `json:"ad_type"`
	AdPosition  string          `json:"ad_position"`
	BucketDate  time.Time       `json:"bucket_date"`
	Impressions int64           `json:"impressions"`
	Clicks      int64           `json:"clicks"`
	Revenue     decimal.Decimal `json:"revenue"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// CTR is clicks per impression as a percentage, two decimals
func (a *AdImpression) CTR() float64 {
	return ClickThroughRate(a.Clicks, a.Impressions)
}

// RevenuePerImpression is revenue divided by impressions, four decimals
func (a *AdImpression) RevenuePerImpression() decimal.Decimal {
	if a.Impressions == 0 {
		return decimal.Zero
	}
	return a.Revenue.Div(decimal.NewFromInt(a.Impressions)).Round(RevenueScale)
}

// ClickThroughRate returns clicks/impressions*100 rounded to 2 places, 0 without impressions
func ClickThroughRate(clicks, impressions int64) float64 {
	if impressions == 0 {
		return 0
	}
	return decimal.NewFromInt(clicks).
		Mul(decimal.NewFromInt(100)).
		Div(decimal.NewFromInt(impressions)).
		Round(2).
		InexactFloat64()
}

// AdStatsFilter narrows ad aggregation queries
type AdStatsFilter struct {
	Range  *DateRange
	AdType string
}

// AdStatsRow is one (ad_type, ad_position) group
type AdStatsRow struct {
	AdType           string          `json:"ad_type"`
	AdPosition       string          `json:"ad_position"`
	TotalImpressions int64           `json:"total_impressions"`
	TotalClicks      int64           `json:"total_clicks"`
	TotalRevenue     decimal.Decimal `json:"total_revenue"`
	AvgCTR           float64         `json:"avg_ctr"`
}

// AdRevenueTotals sums every bucket in range
type AdRevenueTotals struct {
	TotalRevenue     decimal.Decimal `json:"total_revenue"`
	TotalImpressions int64           `json:"total_impressions"`
	TotalClicks      int64           `json:"total_clicks"`
	CTR              float64         `json:"ctr"`
}

// AdBucketFilter selects raw buckets for listing, newest first
type AdBucketFilter struct {
	Range     *DateRange
	AdType    string
	SessionID string
	Limit     int
}
