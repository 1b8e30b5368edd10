package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Table is one managed table and the statements that create it
type Table struct {
	Name   string
	Create []string
}

// PostgresTables lists every table this service owns, in creation order
var PostgresTables = []Table{
	{
		Name: "users",
		Create: []string{
			`CREATE TABLE IF NOT EXISTS users (
				id               TEXT PRIMARY KEY,
				name             TEXT,
				email            TEXT,
				referral_code    TEXT UNIQUE,
				referred_by      TEXT,
				bonus_downloads  INTEGER,
				referral_history JSONB,
				referral_stats   JSONB,
				created_at       TIMESTAMPTZ NOT NULL DEFAULT NOW(),
				updated_at       TIMESTAMPTZ NOT NULL DEFAULT NOW()
			)`,
			`CREATE INDEX IF NOT EXISTS idx_users_missing_referral_code
				ON users (created_at) WHERE referral_code IS NULL`,
		},
	},
	{
		Name: "ad_impressions",
		Create: []string{
			`CREATE TABLE IF NOT EXISTS ad_impressions (
				id          BIGSERIAL PRIMARY KEY,
				user_id     TEXT NOT NULL DEFAULT '',
				session_id  TEXT NOT NULL,
				ad_type     TEXT NOT NULL,
				ad_position TEXT NOT NULL,
				bucket_date DATE NOT NULL,
				impressions BIGINT NOT NULL DEFAULT 0,
				clicks      BIGINT NOT NULL DEFAULT 0,
				revenue     NUMERIC(12,4) NOT NULL DEFAULT 0,
				created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
				updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
			)`,
			`CREATE UNIQUE INDEX IF NOT EXISTS ux_ad_impressions_bucket
				ON ad_impressions (user_id, session_id, ad_type, ad_position, bucket_date)`,
			`CREATE INDEX IF NOT EXISTS idx_ad_impressions_created_at
				ON ad_impressions (created_at)`,
		},
	},
	{
		Name: "user_analytics",
		Create: []string{
			`CREATE TABLE IF NOT EXISTS user_analytics (
				id                BIGSERIAL PRIMARY KEY,
				user_id           TEXT NOT NULL DEFAULT '',
				session_id        TEXT NOT NULL,
				ip_address        TEXT NOT NULL DEFAULT '',
				user_agent        TEXT NOT NULL DEFAULT '',
				page_views        BIGINT NOT NULL DEFAULT 0,
				downloads_count   BIGINT NOT NULL DEFAULT 0,
				time_spent        BIGINT NOT NULL DEFAULT 0,
				revenue_generated NUMERIC(12,4) NOT NULL DEFAULT 0,
				created_at        TIMESTAMPTZ NOT NULL DEFAULT NOW(),
				updated_at        TIMESTAMPTZ NOT NULL DEFAULT NOW()
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

// MigratePostgres creates all tables and indexes
func MigratePostgres(ctx context.Context, pool *pgxpool.Pool) error {
	for _, table := range PostgresTables {
		for _, stmt := range table.Create {
			if _, err := pool.Exec(ctx, stmt); err != nil {
				return fmt.Errorf("failed to create %s: %w", table.Name, err)
			}
		}
	}
	return nil
}

// DropPostgres drops all tables in reverse creation order
func DropPostgres(ctx context.Context, pool *pgxpool.Pool) error {
	for i := len(PostgresTables) - 1; i >= 0; i-- {
		name := PostgresTables[i].Name
		if _, err := pool.Exec(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %s CASCADE", name)); err != nil {
			return fmt.Errorf("failed to drop %s: %w", name, err)
		}
	}
	return nil
}
