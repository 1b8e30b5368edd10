package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"vdl-backend/internal/repository"
	"vdl-backend/internal/repository/sqlite"
	"vdl-backend/pkg/database"
	"vdl-backend/pkg/logger"
)

var testNow = time.Date(2026, 10, 18, 9, 30, 0, 0, time.UTC)

func newTestRepos(t *testing.T) *repository.Repositories {
	t.Helper()
	ctx := context.Background()

	db, err := database.NewSQLiteDB(ctx, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, sqlite.Migrate(ctx, db.DB))
	return sqlite.NewRepositories(db.DB)
}

// clock is a settable time source
type clock struct{ t time.Time }

func (c *clock) Now() time.Time          { return c.t }
func (c *clock) Advance(d time.Duration) { c.t = c.t.Add(d) }

// repeatReader fills every read with the same byte
type repeatReader byte

func (r repeatReader) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = byte(r)
	}
	return len(p), nil
}

func strPtr(s string) *string { return &s }

func nopLogger() *logger.Logger { return logger.NewNop() }
