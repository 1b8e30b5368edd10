package sqlite

import (
	"context"
	"database/sql"
	"fmt"
)

type table struct {
	name   string
	create []string
}

// tables mirrors repository.PostgresTables with SQLite types. Timestamps are
// fixed-width UTC text so range filters compare correctly as strings.
var tables = []table{
	{
		name: "users",
		create: []string{
			`CREATE TABLE IF NOT EXISTS users (
				id               TEXT PRIMARY KEY,
				name             TEXT,
				email            TEXT,
				referral_code    TEXT UNIQUE,
				referred_by      TEXT,
				bonus_downloads  INTEGER,
				referral_history TEXT,
				referral_stats   TEXT,
				created_at       TEXT NOT NULL,
				updated_at       TEXT NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_users_missing_referral_code
				ON users (created_at) WHERE referral_code IS NULL`,
		},
	},
	{
		name: "ad_impressions",
		create: []string{
			`CREATE TABLE IF NOT EXISTS ad_impressions (
				id          INTEGER PRIMARY KEY AUTOINCREMENT,
				user_id     TEXT NOT NULL DEFAULT '',
				session_id  TEXT NOT NULL,
				ad_type     TEXT NOT NULL,
				ad_position TEXT NOT NULL,
				bucket_date TEXT NOT NULL,
				impressions INTEGER NOT NULL DEFAULT 0,
				clicks      INTEGER NOT NULL DEFAULT 0,
				revenue     INTEGER NOT NULL DEFAULT 0, -- ten-thousandths
				created_at  TEXT NOT NULL,
				updated_at  TEXT NOT NULL
			)`,
			`CREATE UNIQUE INDEX IF NOT EXISTS ux_ad_impressions_bucket
				ON ad_impressions (user_id, session_id, ad_type, ad_position, bucket_date)`,
			`CREATE INDEX IF NOT EXISTS idx_ad_impressions_created_at
				ON ad_impressions (created_at)`,
		},
	},
	{
		name: "user_analytics",
		create: []string{
			`CREATE TABLE IF NOT EXISTS user_analytics (
				id                INTEGER PRIMARY KEY AUTOINCREMENT,
				user_id           TEXT NOT NULL DEFAULT '',
				session_id        TEXT NOT NULL,
				ip_address        TEXT NOT NULL DEFAULT '',
				user_agent        TEXT NOT NULL DEFAULT '',
				page_views        INTEGER NOT NULL DEFAULT 0,
				downloads_count   INTEGER NOT NULL DEFAULT 0,
				time_spent        INTEGER NOT NULL DEFAULT 0,
				revenue_generated INTEGER NOT NULL DEFAULT 0, -- ten-thousandths
				created_at        TEXT NOT NULL,
				updated_at        TEXT NOT NULL
			)`,
			`CREATE UNIQUE INDEX IF NOT EXISTS ux_user_analytics_session
				ON user_analytics (user_id, session_id)`,
			`CREATE INDEX IF NOT EXISTS idx_user_analytics_session_id
				ON user_analytics (session_id, created_at)`,
			`CREATE INDEX IF NOT EXISTS idx_user_analytics_created_at
				ON user_analytics (created_at)`,
		},
	},
}

// Migrate creates all tables and indexes
func Migrate(ctx context.Context, db *sql.DB) error {
	for _, t := range tables {
		for _, stmt := range t.create {
			if _, err := db.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("failed to create %s: %w", t.name, err)
			}
		}
	}
	return nil
}

// Drop removes all tables in reverse creation order
func Drop(ctx context.Context, db *sql.DB) error {
	for i := len(tables) - 1; i >= 0; i-- {
		if _, err := db.ExecContext(ctx, "DROP TABLE IF EXISTS "+tables[i].name); err != nil {
			return fmt.Errorf("failed to drop %s: %w", tables[i].name, err)
		}
	}
	return nil
}
