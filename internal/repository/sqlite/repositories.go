package sqlite

import (
	"database/sql"

	"vdl-backend/internal/repository"
)

// NewRepositories wires every SQLite repository over one handle
func NewRepositories(db *sql.DB) *repository.Repositories {
	return &repository.Repositories{
		User:         NewUserRepository(db),
		AdImpression: NewAdImpressionRepository(db),
		Session:      NewSessionRepository(db),
	}
}

var (
	_ repository.UserRepository         = (*UserRepo)(nil)
	_ repository.AdImpressionRepository = (*AdImpressionRepo)(nil)
	_ repository.SessionRepository      = (*SessionRepo)(nil)
)
