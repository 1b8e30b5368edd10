package repository

import (
	"fmt"

	"github.com/goccy/go-json"

	"vdl-backend/internal/domain"
)

// StoredUserID maps an optional user ID to its column value. Anonymous rows
// store '' so the unique indexes treat them as one identity.
func StoredUserID(userID *string) string {
	if userID == nil {
		return ""
	}
	return *userID
}

// UserIDFromStored is the inverse of StoredUserID
func UserIDFromStored(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}

// EncodeReferralHistory returns nil for an unset history
func EncodeReferralHistory(history []domain.ReferralHistoryEntry) (*string, error) {
	if history == nil {
		return nil, nil
	}
	b, err := json.Marshal(history)
	if err != nil {
		return nil, fmt.Errorf("failed to encode referral history: %w", err)
	}
	s := string(b)
	return &s, nil
}

// DecodeReferralHistory returns nil for a NULL column
func DecodeReferralHistory(raw *string) ([]domain.ReferralHistoryEntry, error) {
	if raw == nil {
		return nil, nil
	}
	history := []domain.ReferralHistoryEntry{}
	if err := json.Unmarshal([]byte(*raw), &history); err != nil {
		return nil, fmt.Errorf("failed to decode referral history: %w", err)
	}
	return history, nil
}

// EncodeReferralStats returns nil for unset stats
func EncodeReferralStats(stats *domain.ReferralStats) (*string, error) {
	if stats == nil {
		return nil, nil
	}
	b, err := json.Marshal(stats)
	if err != nil {
		return nil, fmt.Errorf("failed to encode referral stats: %w", err)
	}
	s := string(b)
	return &s, nil
}

// DecodeReferralStats returns nil for a NULL column
func DecodeReferralStats(raw *string) (*domain.ReferralStats, error) {
	if raw == nil {
		return nil, nil
	}
	var stats domain.ReferralStats
	if err := json.Unmarshal([]byte(*raw), &stats); err != nil {
		return nil, fmt.Errorf("failed to decode referral stats: %w", err)
	}
	return &stats, nil
}
