package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// SessionAnalytics holds per-session counters. One exists per (user, session).
type SessionAnalytics struct {
	ID               int64           `json:"id"`
	UserID           *string         `json:"user_id,omitempty"`
	SessionID        string          `json:"session_id"`
	IPAddress        string          `json:"ip_address,omitempty"`
	UserAgent        string          `json:"user_agent,omitempty"`
	PageViews        int64           `json:"page_views"`
	DownloadsCount   int64           `json:"downloads_count"`
	TimeSpent        int64           `json:"time_spent"` // seconds
	RevenueGenerated decimal.Decimal `json:"revenue_generated"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// SessionDelta is an increment applied atomically to a session's counters
type SessionDelta struct {
	PageViews int64
	Downloads int64
	TimeSpent int64
	Revenue   decimal.Decimal
}

// SessionTotals aggregates every session in range
type SessionTotals struct {
	TotalSessions  int64           `json:"total_sessions"`
	UniqueUsers    int64           `json:"unique_users"`
	TotalPageViews int64           `json:"total_page_views"`
	TotalDownloads int64           `json:"total_downloads"`
	TotalTimeSpent int64           `json:"total_time_spent"`
	TotalRevenue   decimal.Decimal `json:"total_revenue"`
	AvgTimeSpent   float64         `json:"avg_time_spent"`
}
