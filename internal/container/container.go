package container

import (
	"context"
	"fmt"
	"time"

	"vdl-backend/internal/config"
	"vdl-backend/internal/repository"
	"vdl-backend/internal/repository/sqlite"
	"vdl-backend/internal/service"
	"vdl-backend/internal/service/auth"
	"vdl-backend/pkg/database"
	"vdl-backend/pkg/logger"
	"vdl-backend/pkg/redis"
)

// Container holds all application dependencies
type Container struct {
	Config       *config.Config
	Logger       *logger.Logger
	Postgres     *database.PostgresDB
	SQLite       *database.SQLiteDB
	RedisClient  *redis.Client
	Repositories *repository.Repositories
	Services     *service.Services
	Backfill     *service.ReferralBackfill
}

// Option customises container construction
type Option func(*options)

type options struct {
	now func() time.Time
}

// WithClock replaces time.Now for every ledger
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// New connects the store selected by DATABASE_URL, Redis when configured,
// and wires every service
func New(ctx context.Context, cfg *config.Config, log *logger.Logger, opts ...Option) (*Container, error) {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}

	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	c := &Container{Config: cfg, Logger: log}

	if database.IsSQLiteURL(cfg.DatabaseURL) {
		db, err := database.NewSQLiteDB(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		if err := sqlite.Migrate(ctx, db.DB); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to migrate SQLite database: %w", err)
		}
		c.SQLite = db
		c.Repositories = sqlite.NewRepositories(db.DB)
		log.Info("Using SQLite store")
	} else {
		db, err := database.NewPostgresDB(ctx, cfg.DatabaseURL, cfg.DatabaseReadURL)
		if err != nil {
			return nil, err
		}
		c.Postgres = db
		c.Repositories = repository.NewPostgresRepositories(db)
		log.Info("Using Postgres store")
	}

	// Redis is optional: without it reports are uncached and tracking is not rate limited
	if cfg.RedisURL != "" {
		client, err := redis.NewClient(cfg.RedisURL, cfg.Environment, log.Named("redis").Logger)
		if err != nil {
			log.WithError(err).Warn("Failed to initialize Redis client, proceeding without caching")
		} else {
			c.RedisClient = client
			log.Info("Redis client initialized successfully")
		}
	} else {
		log.Info("Redis URL not configured, proceeding without caching")
	}

	referral := service.NewReferralService(c.Repositories.User, log, cfg.ReferralBonusDownloads)
	ads := service.NewAdLedger(c.Repositories.AdImpression, log, loc, o.now)
	sessions := service.NewSessionLedger(c.Repositories.Session, log, o.now)
	cache := service.NewReportCache(c.RedisClient, cfg.ReportCacheTTL, log)

	c.Services = &service.Services{
		Auth:     auth.NewService(cfg.JWTSecret, log),
		Referral: referral,
		Ads:      ads,
		Sessions: sessions,
		Reports:  service.NewReportService(ads, sessions, cache),
		Limiter:  service.NewTrackingLimiter(c.RedisClient, cfg.TrackingRateLimit, cfg.TrackingRateWindow, log),
	}
	c.Backfill = service.NewReferralBackfill(c.Repositories.User, referral, cfg.ReferralStrictUniqueness, log)

	return c, nil
}

// GetAuthService returns the auth service
func (c *Container) GetAuthService() service.AuthService {
	return c.Services.Auth
}

// GetLogger returns the logger
func (c *Container) GetLogger() *logger.Logger {
	return c.Logger
}

// GetConfig returns the configuration
func (c *Container) GetConfig() *config.Config {
	return c.Config
}

// HasRedis returns true if Redis client is available
func (c *Container) HasRedis() bool {
	return c.RedisClient != nil
}

// Health pings every backing store. Redis failures are reported but are not fatal.
func (c *Container) Health(ctx context.Context) map[string]error {
	checks := map[string]error{}
	switch {
	case c.Postgres != nil:
		checks["database"] = c.Postgres.Health(ctx)
	case c.SQLite != nil:
		checks["database"] = c.SQLite.Health(ctx)
	}
	if c.RedisClient != nil {
		checks["redis"] = c.RedisClient.Health(ctx)
	}
	return checks
}

// Close releases Redis and the database
func (c *Container) Close() error {
	var errs []error
	if c.RedisClient != nil {
		if err := c.RedisClient.Close(); err != nil {
			errs = append(errs, fmt.Errorf("Redis close: %w", err))
		}
	}
	if c.Postgres != nil {
		c.Postgres.Close()
	}
	if c.SQLite != nil {
		if err := c.SQLite.Close(); err != nil {
			errs = append(errs, fmt.Errorf("SQLite close: %w", err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("close completed with %d errors: %v", len(errs), errs)
	}
	return nil
}
