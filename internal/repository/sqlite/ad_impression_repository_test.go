package sqlite

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vdl-backend/internal/domain"
)

var today = time.Date(2026, 10, 18, 0, 0, 0, 0, time.UTC)

func bannerID(userID *string) domain.AdIdentity {
	return domain.AdIdentity{UserID: userID, SessionID: "s-1", AdType: "banner", AdPosition: "top"}
}

func TestAdImpressionRepo_UpsertImpressionOneBucketPerDay(t *testing.T) {
	ctx := context.Background()
	repo := NewAdImpressionRepository(newTestDB(t))

	first, err := repo.UpsertImpression(ctx, bannerID(nil), today, baseTime)
	require.NoError(t, err)
	assert.Equal(t, int64(1), first.Impressions)
	assert.Equal(t, int64(0), first.Clicks)
	assert.Nil(t, first.UserID)
	assert.Equal(t, "2026-10-18", first.BucketDate.Format(domain.DayLayout))

	second, err := repo.UpsertImpression(ctx, bannerID(nil), today, baseTime.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, int64(2), second.Impressions)
	assert.True(t, baseTime.Equal(second.CreatedAt))
	assert.True(t, baseTime.Add(time.Minute).Equal(second.UpdatedAt))

	// A signed-in user and the next day are separate identities
	withUser, err := repo.UpsertImpression(ctx, bannerID(strPtr("u-1")), today, baseTime)
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, withUser.ID)
	assert.Equal(t, "u-1", *withUser.UserID)

	tomorrow, err := repo.UpsertImpression(ctx, bannerID(nil), today.AddDate(0, 0, 1), baseTime.AddDate(0, 0, 1))
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, tomorrow.ID)
	assert.Equal(t, int64(1), tomorrow.Impressions)
}

func TestAdImpressionRepo_ConcurrentImpressionsConverge(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	repo := NewAdImpressionRepository(db)

	const workers = 25
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := repo.UpsertImpression(ctx, bannerID(strPtr("u-1")), today, baseTime)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	var buckets, impressions int64
	require.NoError(t, db.QueryRowContext(ctx,
		`SELECT COUNT(*), SUM(impressions) FROM ad_impressions`).Scan(&buckets, &impressions))
	assert.Equal(t, int64(1), buckets)
	assert.Equal(t, int64(workers), impressions)
}

func TestAdImpressionRepo_UpsertClick(t *testing.T) {
	ctx := context.Background()
	repo := NewAdImpressionRepository(newTestDB(t))

	// Click with no bucket creates one with an impression
	created, err := repo.UpsertClick(ctx, bannerID(nil), today, decimal.RequireFromString("0.25"), baseTime)
	require.NoError(t, err)
	assert.Equal(t, int64(1), created.Impressions)
	assert.Equal(t, int64(1), created.Clicks)
	assert.Equal(t, "0.25", created.Revenue.String())

	updated, err := repo.UpsertClick(ctx, bannerID(nil), today, decimal.RequireFromString("0.1"), baseTime)
	require.NoError(t, err)
	assert.Equal(t, created.ID, updated.ID)
	assert.Equal(t, int64(1), updated.Impressions, "clicks never add impressions to an existing bucket")
	assert.Equal(t, int64(2), updated.Clicks)
	assert.Equal(t, "0.35", updated.Revenue.String())
}

func TestAdImpressionRepo_RevenueSumsAreExact(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	repo := NewAdImpressionRepository(db)

	var (
		bucket *domain.AdImpression
		err    error
	)
	for i := 0; i < 1000; i++ {
		bucket, err = repo.UpsertClick(ctx, bannerID(nil), today, decimal.RequireFromString("0.1"), baseTime)
		require.NoError(t, err)
	}
	assert.Equal(t, "100", bucket.Revenue.String())

	for i := 0; i < 3; i++ {
		bucket, err = repo.Increment(ctx, bucket.ID, 0, 1, decimal.RequireFromString("0.0001"), baseTime)
		require.NoError(t, err)
	}
	assert.Equal(t, "100.0003", bucket.Revenue.String())

	var (
		storedType string
		units      int64
	)
	require.NoError(t, db.QueryRowContext(ctx,
		`SELECT typeof(revenue), revenue FROM ad_impressions WHERE id = ?`, bucket.ID,
	).Scan(&storedType, &units))
	assert.Equal(t, "integer", storedType)
	assert.Equal(t, int64(1000003), units)

	totals, err := repo.Totals(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, "100.0003", totals.TotalRevenue.String())
}

func TestAdImpressionRepo_FindForDayAndIncrement(t *testing.T) {
	ctx := context.Background()
	repo := NewAdImpressionRepository(newTestDB(t))

	missing, err := repo.FindForDay(ctx, bannerID(nil), today)
	require.NoError(t, err)
	assert.Nil(t, missing)

	b, err := repo.UpsertImpression(ctx, bannerID(nil), today, baseTime)
	require.NoError(t, err)

	found, err := repo.FindForDay(ctx, bannerID(nil), today)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, b.ID, found.ID)

	inc, err := repo.Increment(ctx, b.ID, 0, 1, decimal.RequireFromString("10.5"), baseTime)
	require.NoError(t, err)
	assert.Equal(t, int64(1), inc.Impressions)
	assert.Equal(t, int64(1), inc.Clicks)
	assert.True(t, decimal.RequireFromString("10.5").Equal(inc.Revenue))

	_, err = repo.Increment(ctx, 9999, 1, 0, decimal.Zero, baseTime)
	assert.ErrorIs(t, err, domain.ErrBucketNotFound)
}

func seedAdBuckets(t *testing.T, repo *AdImpressionRepo) {
	t.Helper()
	ctx := context.Background()

	rows := []struct {
		id          domain.AdIdentity
		at          time.Time
		impressions int
		clicks      []string
	}{
		{domain.AdIdentity{SessionID: "s-1", AdType: "banner", AdPosition: "top"}, baseTime, 4, []string{"1.00"}},
		{domain.AdIdentity{SessionID: "s-2", AdType: "banner", AdPosition: "top"}, baseTime, 2, []string{"0.50", "0.50"}},
		{domain.AdIdentity{SessionID: "s-1", AdType: "banner", AdPosition: "sidebar"}, baseTime, 10, nil},
		{domain.AdIdentity{SessionID: "s-3", AdType: "video", AdPosition: "preroll"}, baseTime, 1, []string{"5"}},
		{domain.AdIdentity{SessionID: "s-4", AdType: "video", AdPosition: "preroll"}, baseTime.AddDate(0, 0, -10), 1, []string{"100"}},
	}

	for _, r := range rows {
		day := domain.DayOf(r.at, time.UTC)
		for i := 0; i < r.impressions; i++ {
			_, err := repo.UpsertImpression(ctx, r.id, day, r.at)
			require.NoError(t, err)
		}
		for _, amount := range r.clicks {
			_, err := repo.UpsertClick(ctx, r.id, day, decimal.RequireFromString(amount), r.at)
			require.NoError(t, err)
		}
	}
}

func TestAdImpressionRepo_Stats(t *testing.T) {
	ctx := context.Background()
	repo := NewAdImpressionRepository(newTestDB(t))
	seedAdBuckets(t, repo)

	rng, err := domain.ParseDayRange("2026-10-18", "2026-10-18", time.UTC)
	require.NoError(t, err)

	stats, err := repo.Stats(ctx, domain.AdStatsFilter{Range: rng})
	require.NoError(t, err)
	require.Len(t, stats, 3)

	assert.Equal(t, "video", stats[0].AdType)
	assert.Equal(t, "5", stats[0].TotalRevenue.String())
	assert.Equal(t, float64(100), stats[0].AvgCTR)

	assert.Equal(t, "banner", stats[1].AdType)
	assert.Equal(t, "top", stats[1].AdPosition)
	assert.Equal(t, int64(6), stats[1].TotalImpressions)
	assert.Equal(t, int64(3), stats[1].TotalClicks)
	assert.Equal(t, "2", stats[1].TotalRevenue.String())
	// average of 25% and 100%
	assert.Equal(t, 62.5, stats[1].AvgCTR)

	assert.Equal(t, "sidebar", stats[2].AdPosition)
	assert.True(t, stats[2].TotalRevenue.IsZero())
	assert.Equal(t, float64(0), stats[2].AvgCTR)

	all, err := repo.Stats(ctx, domain.AdStatsFilter{AdType: "video"})
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "105", all[0].TotalRevenue.String())
}

func TestAdImpressionRepo_Totals(t *testing.T) {
	ctx := context.Background()
	repo := NewAdImpressionRepository(newTestDB(t))

	empty, err := repo.Totals(ctx, nil)
	require.NoError(t, err)
	assert.True(t, empty.TotalRevenue.IsZero())
	assert.Equal(t, float64(0), empty.CTR)

	seedAdBuckets(t, repo)

	totals, err := repo.Totals(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, "107", totals.TotalRevenue.String())
	assert.Equal(t, int64(18), totals.TotalImpressions)
	assert.Equal(t, int64(5), totals.TotalClicks)
	assert.Equal(t, 27.78, totals.CTR)

	rng, err := domain.ParseDayRange("2026-10-01", "2026-10-10", time.UTC)
	require.NoError(t, err)
	old, err := repo.Totals(ctx, rng)
	require.NoError(t, err)
	assert.Equal(t, "100", old.TotalRevenue.String())
	assert.Equal(t, int64(1), old.TotalImpressions)
}

func TestAdImpressionRepo_List(t *testing.T) {
	ctx := context.Background()
	repo := NewAdImpressionRepository(newTestDB(t))
	seedAdBuckets(t, repo)

	all, err := repo.List(ctx, domain.AdBucketFilter{})
	require.NoError(t, err)
	require.Len(t, all, 5)
	assert.Equal(t, "s-4", all[len(all)-1].SessionID, "oldest bucket last")

	limited, err := repo.List(ctx, domain.AdBucketFilter{AdType: "banner", SessionID: "s-1", Limit: 1})
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, "s-1", limited[0].SessionID)
}
