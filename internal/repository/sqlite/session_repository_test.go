package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vdl-backend/internal/domain"
)

func newSession(userID *string, sessionID string, at time.Time) *domain.SessionAnalytics {
	return &domain.SessionAnalytics{
		UserID:    userID,
		SessionID: sessionID,
		IPAddress: "203.0.113.7",
		UserAgent: "test-agent",
		CreatedAt: at,
		UpdatedAt: at,
	}
}

func TestSessionRepo_FindOrCreate(t *testing.T) {
	ctx := context.Background()
	repo := NewSessionRepository(newTestDB(t))

	s, created, err := repo.FindOrCreate(ctx, newSession(strPtr("u-1"), "s-1", baseTime))
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "203.0.113.7", s.IPAddress)
	assert.Equal(t, int64(0), s.PageViews)

	again, created, err := repo.FindOrCreate(ctx, newSession(strPtr("u-1"), "s-1", baseTime.Add(time.Hour)))
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, s.ID, again.ID)
	assert.True(t, baseTime.Equal(again.CreatedAt))

	anon, created, err := repo.FindOrCreate(ctx, newSession(nil, "s-1", baseTime))
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotEqual(t, s.ID, anon.ID)
	assert.Nil(t, anon.UserID)
}

func TestSessionRepo_Increment(t *testing.T) {
	ctx := context.Background()
	repo := NewSessionRepository(newTestDB(t))

	s, _, err := repo.FindOrCreate(ctx, newSession(nil, "s-1", baseTime))
	require.NoError(t, err)

	_, err = repo.Increment(ctx, s.ID, domain.SessionDelta{PageViews: 1}, baseTime)
	require.NoError(t, err)
	_, err = repo.Increment(ctx, s.ID, domain.SessionDelta{Downloads: 1, TimeSpent: 90}, baseTime)
	require.NoError(t, err)
	got, err := repo.Increment(ctx, s.ID, domain.SessionDelta{Revenue: decimal.RequireFromString("0.0125")}, baseTime.Add(time.Second))
	require.NoError(t, err)

	assert.Equal(t, int64(1), got.PageViews)
	assert.Equal(t, int64(1), got.DownloadsCount)
	assert.Equal(t, int64(90), got.TimeSpent)
	assert.Equal(t, "0.0125", got.RevenueGenerated.String())
	assert.True(t, baseTime.Add(time.Second).Equal(got.UpdatedAt))

	_, err = repo.Increment(ctx, 9999, domain.SessionDelta{PageViews: 1}, baseTime)
	assert.ErrorIs(t, err, domain.ErrBucketNotFound)
}

func TestSessionRepo_FirstBySessionIDReturnsOldest(t *testing.T) {
	ctx := context.Background()
	repo := NewSessionRepository(newTestDB(t))

	_, _, err := repo.FindOrCreate(ctx, newSession(strPtr("late"), "shared", baseTime.Add(time.Hour)))
	require.NoError(t, err)
	_, _, err = repo.FindOrCreate(ctx, newSession(strPtr("early"), "shared", baseTime))
	require.NoError(t, err)

	got, err := repo.FirstBySessionID(ctx, "shared")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "early", *got.UserID)

	none, err := repo.FirstBySessionID(ctx, "unknown")
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestSessionRepo_ListByUserAndTotals(t *testing.T) {
	ctx := context.Background()
	repo := NewSessionRepository(newTestDB(t))

	seed := []struct {
		user      *string
		session   string
		at        time.Time
		timeSpent int64
		revenue   string
	}{
		{strPtr("u-1"), "s-1", baseTime.AddDate(0, 0, -3), 100, "1.5"},
		{strPtr("u-1"), "s-2", baseTime, 50, "0"},
		{strPtr("u-2"), "s-3", baseTime, 30, "2"},
		{nil, "s-4", baseTime, 20, "0.25"},
	}
	for _, s := range seed {
		b, _, err := repo.FindOrCreate(ctx, newSession(s.user, s.session, s.at))
		require.NoError(t, err)
		_, err = repo.Increment(ctx, b.ID, domain.SessionDelta{
			PageViews: 2,
			Downloads: 1,
			TimeSpent: s.timeSpent,
			Revenue:   decimal.RequireFromString(s.revenue),
		}, s.at)
		require.NoError(t, err)
	}

	list, err := repo.ListByUser(ctx, "u-1", nil)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "s-2", list[0].SessionID, "newest first")
	assert.Equal(t, "s-1", list[1].SessionID)

	rng, err := domain.ParseDayRange("2026-10-18", "2026-10-18", time.UTC)
	require.NoError(t, err)
	recent, err := repo.ListByUser(ctx, "u-1", rng)
	require.NoError(t, err)
	require.Len(t, recent, 1)

	totals, err := repo.Totals(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(4), totals.TotalSessions)
	assert.Equal(t, int64(2), totals.UniqueUsers)
	assert.Equal(t, int64(8), totals.TotalPageViews)
	assert.Equal(t, int64(4), totals.TotalDownloads)
	assert.Equal(t, int64(200), totals.TotalTimeSpent)
	assert.Equal(t, "3.75", totals.TotalRevenue.String())
	assert.Equal(t, float64(50), totals.AvgTimeSpent)

	ranged, err := repo.Totals(ctx, rng)
	require.NoError(t, err)
	assert.Equal(t, int64(3), ranged.TotalSessions)
	assert.Equal(t, float64(33.33), ranged.AvgTimeSpent)
}
