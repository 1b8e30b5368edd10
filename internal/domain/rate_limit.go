package domain

import "time"

// RateLimitInfo represents rate limiting information
type RateLimitInfo struct {
	Limit        int64         `json:"limit"`
	RequestCount int64         `json:"request_count"`
	TTL          time.Duration `json:"ttl"`
	IsAllowed    bool          `json:"is_allowed"`
}

// Remaining returns how many requests are left in the window
func (r *RateLimitInfo) Remaining() int64 {
	if r.RequestCount >= r.Limit {
		return 0
	}
	return r.Limit - r.RequestCount
}
