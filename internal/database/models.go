// internal/database/models.go
package database

import (
	"github.com/jackc/pgx/v5/pgtype"

	"github-org-mirror/internal/model"
)

type Integration struct {
	ID          int64
	UserID      string
	Provider    string
	AccessToken string
	Profile     model.AccountProfile
	Scopes      []string
	ConnectedAt pgtype.Timestamptz
	LastSyncAt  pgtype.Timestamptz
	IsActive    bool
	CreatedAt   pgtype.Timestamptz
	UpdatedAt   pgtype.Timestamptz
}

type CountIntegrationEntitiesRow struct {
	Organizations int64
	Repositories  int64
	Commits       int64
	PullRequests  int64
	Issues        int64
	Users         int64
}
