package domain

import "time"

// User is the subset of the users table owned by the referral subsystem.
// Nil pointer and nil slice fields are unset in storage.
type User struct {
	ID              string                 `json:"id"`
	Name            *string                `json:"name,omitempty"`
	Email           *string                `json:"email,omitempty"`
	ReferralCode    *string                `json:"referral_code,omitempty"`
	ReferredBy      *string                `json:"referred_by,omitempty"`
	BonusDownloads  *int                   `json:"bonus_downloads,omitempty"`
	ReferralHistory []ReferralHistoryEntry `json:"referral_history,omitempty"`
	ReferralStats   *ReferralStats         `json:"referral_stats,omitempty"`
	CreatedAt       time.Time              `json:"created_at"`
	UpdatedAt       time.Time              `json:"updated_at"`
}

// ReferralHistoryEntry records one user who signed up with a referrer's code
type ReferralHistoryEntry struct {
	ReferredUserID string    `json:"referred_user_id"`
	Code           string    `json:"code"`
	ReferredAt     time.Time `json:"referred_at"`
}

// ReferralStats are the referrer's running totals
type ReferralStats struct {
	TotalReferred       int `json:"total_referred"`
	SuccessfulReferrals int `json:"successful_referrals"`
}

// DisplayName returns the name used to derive a referral code, or "" when unset
func (u *User) DisplayName() string {
	if u.Name == nil {
		return ""
	}
	return *u.Name
}

// HasReferralCode reports whether a code has been assigned
func (u *User) HasReferralCode() bool {
	return u.ReferralCode != nil && *u.ReferralCode != ""
}

// InitReferralDefaults fills unset referral fields with their zero values.
// Fields that are already set are left alone.
func (u *User) InitReferralDefaults() {
	if u.BonusDownloads == nil {
		zero := 0
		u.BonusDownloads = &zero
	}
	if u.ReferralHistory == nil {
		u.ReferralHistory = []ReferralHistoryEntry{}
	}
	if u.ReferralStats == nil {
		u.ReferralStats = &ReferralStats{}
	}
}

// CreditReferral appends a history entry, bumps the totals and grants bonus downloads
func (u *User) CreditReferral(entry ReferralHistoryEntry, bonus int) {
	u.InitReferralDefaults()
	u.ReferralHistory = append(u.ReferralHistory, entry)
	u.ReferralStats.TotalReferred++
	*u.BonusDownloads += bonus
}

// ReferralSummary is what a user sees about their own referrals
type ReferralSummary struct {
	UserID         string                 `json:"user_id"`
	ReferralCode   string                 `json:"referral_code"`
	ReferredBy     *string                `json:"referred_by,omitempty"`
	BonusDownloads int                    `json:"bonus_downloads"`
	Stats          ReferralStats          `json:"stats"`
	History        []ReferralHistoryEntry `json:"history"`
}

// AuthClaims represents verified JWT token claims
type AuthClaims struct {
	Sub     string `json:"sub"`
	Email   string `json:"email"`
	Name    string `json:"name"`
	IsAdmin bool   `json:"is_admin"`
	Iat     int64  `json:"iat"`
	Exp     int64  `json:"exp"`
}
