package service

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vdl-backend/internal/domain"
	"vdl-backend/internal/repository"
	"vdl-backend/pkg/errors"
	"vdl-backend/pkg/logger"
)

func seedUser(t *testing.T, repos *repository.Repositories, u *domain.User) *domain.User {
	t.Helper()
	require.NoError(t, repos.User.Create(context.Background(), u))
	return u
}

func intPtr(i int) *int { return &i }

func TestReferralService_EnsureReferralCode(t *testing.T) {
	ctx := context.Background()
	repos := newTestRepos(t)
	svc := NewReferralService(repos.User, nopLogger(), 5, WithRandom(repeatReader(0xAB)))

	seedUser(t, repos, &domain.User{ID: "u-1", Name: strPtr("Bob"), CreatedAt: testNow})

	code, err := svc.EnsureReferralCode(ctx, "u-1")
	require.NoError(t, err)
	assert.Equal(t, "BOBABABA", code)

	stored, err := repos.User.GetByID(ctx, "u-1")
	require.NoError(t, err)
	require.NotNil(t, stored.ReferralCode)
	assert.Equal(t, "BOBABABA", *stored.ReferralCode)
	require.NotNil(t, stored.BonusDownloads)
	assert.Equal(t, 0, *stored.BonusDownloads)
	assert.Equal(t, []domain.ReferralHistoryEntry{}, stored.ReferralHistory)
	assert.Equal(t, &domain.ReferralStats{}, stored.ReferralStats)

	// Existing codes are returned untouched
	svc.random = repeatReader(0xCD)
	again, err := svc.EnsureReferralCode(ctx, "u-1")
	require.NoError(t, err)
	assert.Equal(t, "BOBABABA", again)
}

func TestReferralService_EnsureReferralCode_Errors(t *testing.T) {
	ctx := context.Background()
	repos := newTestRepos(t)
	svc := NewReferralService(repos.User, nopLogger(), 5, WithRandom(repeatReader(0x11)))

	_, err := svc.EnsureReferralCode(ctx, "missing")
	assert.True(t, errors.IsType(err, errors.ErrorTypeNotFound))

	// Every candidate for "Bob" is taken
	seedUser(t, repos, &domain.User{ID: "holder", ReferralCode: strPtr("BOB11111"), CreatedAt: testNow})
	seedUser(t, repos, &domain.User{ID: "u-2", Name: strPtr("Bobby"), CreatedAt: testNow})

	_, err = svc.EnsureReferralCode(ctx, "u-2")
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeInternal))
	assert.ErrorIs(t, err, ErrReferralCodeExhausted)

	stored, err := repos.User.GetByID(ctx, "u-2")
	require.NoError(t, err)
	assert.Nil(t, stored.ReferralCode)
}

func TestReferralService_RedeemReferral(t *testing.T) {
	ctx := context.Background()
	repos := newTestRepos(t)
	clk := &clock{t: testNow}
	svc := NewReferralService(repos.User, nopLogger(), 5, WithReferralClock(clk.Now))

	seedUser(t, repos, &domain.User{
		ID:             "referrer",
		ReferralCode:   strPtr("ANN12345"),
		BonusDownloads: intPtr(2),
		CreatedAt:      testNow,
	})
	seedUser(t, repos, &domain.User{ID: "newbie", CreatedAt: testNow})

	require.NoError(t, svc.RedeemReferral(ctx, "newbie", "  ann12345 "))

	referrer, err := repos.User.GetByID(ctx, "referrer")
	require.NoError(t, err)
	assert.Equal(t, 7, *referrer.BonusDownloads)
	assert.Equal(t, 1, referrer.ReferralStats.TotalReferred)
	require.Len(t, referrer.ReferralHistory, 1)
	assert.Equal(t, "newbie", referrer.ReferralHistory[0].ReferredUserID)
	assert.Equal(t, "ANN12345", referrer.ReferralHistory[0].Code)
	assert.True(t, testNow.Equal(referrer.ReferralHistory[0].ReferredAt))

	newbie, err := repos.User.GetByID(ctx, "newbie")
	require.NoError(t, err)
	require.NotNil(t, newbie.ReferredBy)
	assert.Equal(t, "referrer", *newbie.ReferredBy)

	tests := []struct {
		name     string
		userID   string
		code     string
		expected errors.ErrorType
	}{
		{"second redemption", "newbie", "ANN12345", errors.ErrorTypeValidation},
		{"own code", "referrer", "ANN12345", errors.ErrorTypeValidation},
		{"unknown code", "newbie", "ZZZ99999", errors.ErrorTypeNotFound},
		{"malformed code", "newbie", "ann-1", errors.ErrorTypeValidation},
		{"unknown user", "ghost", "ANN12345", errors.ErrorTypeNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := svc.RedeemReferral(ctx, tt.userID, tt.code)
			require.Error(t, err)
			assert.True(t, errors.IsType(err, tt.expected), err.Error())
		})
	}

	// Rejected attempts leave the referrer's totals alone
	referrer, err = repos.User.GetByID(ctx, "referrer")
	require.NoError(t, err)
	assert.Equal(t, 1, referrer.ReferralStats.TotalReferred)
	assert.Equal(t, 7, *referrer.BonusDownloads)
}

func TestReferralService_ReferralSummary(t *testing.T) {
	ctx := context.Background()
	repos := newTestRepos(t)
	svc := NewReferralService(repos.User, nopLogger(), 3, WithRandom(repeatReader(0x00)))

	seedUser(t, repos, &domain.User{ID: "u-1", Name: strPtr("Kim"), CreatedAt: testNow})
	seedUser(t, repos, &domain.User{ID: "u-2", CreatedAt: testNow})

	summary, err := svc.ReferralSummary(ctx, "u-1")
	require.NoError(t, err)
	assert.Equal(t, "KIM00000", summary.ReferralCode)
	assert.Equal(t, 0, summary.BonusDownloads)
	assert.Empty(t, summary.History)

	require.NoError(t, svc.RedeemReferral(ctx, "u-2", summary.ReferralCode))

	summary, err = svc.ReferralSummary(ctx, "u-1")
	require.NoError(t, err)
	assert.Equal(t, 3, summary.BonusDownloads)
	assert.Equal(t, 1, summary.Stats.TotalReferred)
	require.Len(t, summary.History, 1)

	_, err = svc.ReferralSummary(ctx, "nobody")
	assert.True(t, errors.IsType(err, errors.ErrorTypeNotFound))
}

func logLines(t *testing.T, buf *bytes.Buffer, message string) []map[string]interface{} {
	t.Helper()
	var lines []map[string]interface{}
	for _, raw := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if raw == "" {
			continue
		}
		var entry map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(raw), &entry))
		if entry["message"] == message {
			lines = append(lines, entry)
		}
	}
	return lines
}

func TestReferralBackfill_Run(t *testing.T) {
	ctx := context.Background()
	repos := newTestRepos(t)

	seedUser(t, repos, &domain.User{ID: "u-1", Name: strPtr("bob"), CreatedAt: testNow})
	seedUser(t, repos, &domain.User{ID: "u-2", Name: strPtr("Al"), CreatedAt: testNow.Add(time.Minute)})
	seedUser(t, repos, &domain.User{ID: "u-3", CreatedAt: testNow.Add(2 * time.Minute)})
	seedUser(t, repos, &domain.User{
		ID:             "u-4",
		Name:           strPtr("Carol"),
		BonusDownloads: intPtr(3),
		CreatedAt:      testNow.Add(3 * time.Minute),
	})
	seedUser(t, repos, &domain.User{
		ID:             "u-5",
		Name:           strPtr("Dee"),
		ReferralCode:   strPtr("DEE00000"),
		BonusDownloads: intPtr(9),
		CreatedAt:      testNow,
	})

	var buf bytes.Buffer
	log := logger.NewWithWriter("info", &buf)
	referral := NewReferralService(repos.User, log, 5, WithRandom(repeatReader(0xAA)))
	job := NewReferralBackfill(repos.User, referral, false, log)

	result, err := job.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, result.Processed)
	assert.Zero(t, result.Skipped)

	expected := map[string]string{
		"u-1": "BOBAAAAA",
		"u-2": "ALAAAAAA",
		"u-3": "USRAAAAA",
		"u-4": "CARAAAAA",
		"u-5": "DEE00000",
	}
	for id, code := range expected {
		user, err := repos.User.GetByID(ctx, id)
		require.NoError(t, err)
		require.NotNil(t, user.ReferralCode, id)
		assert.Equal(t, code, *user.ReferralCode, id)
		require.NotNil(t, user.BonusDownloads, id)
		require.NotNil(t, user.ReferralStats, id)
		assert.NotNil(t, user.ReferralHistory, id)
	}

	carol, err := repos.User.GetByID(ctx, "u-4")
	require.NoError(t, err)
	assert.Equal(t, 3, *carol.BonusDownloads)

	lines := logLines(t, &buf, "Referral code assigned")
	require.Len(t, lines, 4)
	assert.Equal(t, "u-1", lines[0]["user_id"])
	assert.Equal(t, "BOBAAAAA", lines[0]["referral_code"])
	assert.Equal(t, float64(1), lines[0]["attempts"])
	assert.Equal(t, true, lines[0]["verified"])

	// Nothing left to do on a second run
	result, err = job.Run(ctx)
	require.NoError(t, err)
	assert.Zero(t, result.Processed)
}

func TestReferralBackfill_Exhaustion(t *testing.T) {
	setup := func(t *testing.T) *repository.Repositories {
		repos := newTestRepos(t)
		seedUser(t, repos, &domain.User{ID: "holder", ReferralCode: strPtr("BOBAAAAA"), CreatedAt: testNow})
		seedUser(t, repos, &domain.User{ID: "u-1", Name: strPtr("Ann"), CreatedAt: testNow})
		seedUser(t, repos, &domain.User{ID: "u-2", Name: strPtr("Bobby"), CreatedAt: testNow.Add(time.Minute)})
		seedUser(t, repos, &domain.User{ID: "u-3", Name: strPtr("Cy"), CreatedAt: testNow.Add(2 * time.Minute)})
		return repos
	}

	t.Run("lenient finishes the others then fails", func(t *testing.T) {
		ctx := context.Background()
		repos := setup(t)
		var buf bytes.Buffer
		log := logger.NewWithWriter("info", &buf)
		referral := NewReferralService(repos.User, log, 5, WithRandom(repeatReader(0xAA)))

		result, err := NewReferralBackfill(repos.User, referral, false, log).Run(ctx)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrReferralCodeExhausted)
		assert.Equal(t, 2, result.Processed)
		assert.Equal(t, 1, result.Skipped)

		cy, err := repos.User.GetByID(ctx, "u-3")
		require.NoError(t, err)
		require.NotNil(t, cy.ReferralCode)
		assert.Len(t, *cy.ReferralCode, ReferralCodeLength)

		incomplete := logLines(t, &buf, "Referral backfill incomplete")
		require.Len(t, incomplete, 1)
		assert.Equal(t, float64(1), incomplete[0]["skipped"])
		assert.Empty(t, logLines(t, &buf, "Referral backfill completed"))

		bobby, err := repos.User.GetByID(ctx, "u-2")
		require.NoError(t, err)
		assert.Nil(t, bobby.ReferralCode)

		warnings := logLines(t, &buf, "Referral code uniqueness could not be verified")
		require.Len(t, warnings, 1)
		assert.Equal(t, "u-2", warnings[0]["user_id"])
		assert.Equal(t, float64(MaxCodeAttempts), warnings[0]["attempts"])
		assert.Equal(t, false, warnings[0]["verified"])
	})

	t.Run("strict aborts the run", func(t *testing.T) {
		ctx := context.Background()
		repos := setup(t)
		referral := NewReferralService(repos.User, nopLogger(), 5, WithRandom(repeatReader(0xAA)))

		result, err := NewReferralBackfill(repos.User, referral, true, nopLogger()).Run(ctx)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrReferralCodeExhausted)
		assert.Contains(t, err.Error(), "u-2")
		assert.Equal(t, 1, result.Processed)

		cy, err := repos.User.GetByID(ctx, "u-3")
		require.NoError(t, err)
		assert.Nil(t, cy.ReferralCode)
	})

	t.Run("cancelled context", func(t *testing.T) {
		repos := setup(t)
		referral := NewReferralService(repos.User, nopLogger(), 5, WithRandom(repeatReader(0xAA)))

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := NewReferralBackfill(repos.User, referral, false, nopLogger()).Run(ctx)
		assert.ErrorIs(t, err, context.Canceled)
	})
}
