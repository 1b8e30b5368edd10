package repository

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vdl-backend/internal/domain"
)

func TestStoredUserID(t *testing.T) {
	assert.Equal(t, "", StoredUserID(nil))
	id := "u-1"
	assert.Equal(t, "u-1", StoredUserID(&id))

	assert.Nil(t, UserIDFromStored(""))
	assert.Equal(t, "u-1", *UserIDFromStored("u-1"))
}

func TestReferralHistoryCodec(t *testing.T) {
	raw, err := EncodeReferralHistory(nil)
	require.NoError(t, err)
	assert.Nil(t, raw, "unset history stays NULL")

	raw, err = EncodeReferralHistory([]domain.ReferralHistoryEntry{})
	require.NoError(t, err)
	require.NotNil(t, raw)
	assert.Equal(t, "[]", *raw)

	at := time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC)
	raw, err = EncodeReferralHistory([]domain.ReferralHistoryEntry{{ReferredUserID: "u-2", Code: "ALI1A2B3", ReferredAt: at}})
	require.NoError(t, err)

	history, err := DecodeReferralHistory(raw)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "u-2", history[0].ReferredUserID)
	assert.True(t, at.Equal(history[0].ReferredAt))

	bad := "{not json"
	_, err = DecodeReferralHistory(&bad)
	assert.Error(t, err)
}

func TestReferralStatsCodec(t *testing.T) {
	raw, err := EncodeReferralStats(&domain.ReferralStats{TotalReferred: 2})
	require.NoError(t, err)
	assert.JSONEq(t, `{"total_referred":2,"successful_referrals":0}`, *raw)

	stats, err := DecodeReferralStats(raw)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalReferred)

	stats, err = DecodeReferralStats(nil)
	require.NoError(t, err)
	assert.Nil(t, stats)
}

func TestWhereClause(t *testing.T) {
	var empty whereClause
	assert.Equal(t, "", empty.String())

	rng := &domain.DateRange{Start: time.Unix(0, 0), End: time.Unix(60, 0)}

	var w whereClause
	w.add("user_id = $%d", "u-1")
	w.addRange("created_at", rng)
	w.add("ad_type = $%d", "banner")

	assert.Equal(t, " WHERE user_id = $1 AND created_at >= $2 AND created_at <= $3 AND ad_type = $4", w.String())
	assert.Equal(t, []any{"u-1", rng.Start, rng.End, "banner"}, w.args)
}

func TestListLimit(t *testing.T) {
	assert.Equal(t, DefaultListLimit, ListLimit(0))
	assert.Equal(t, 10, ListLimit(10))
	assert.Equal(t, MaxListLimit, ListLimit(50000))
}
