// internal/database/integrations.sql.go
package database

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github-org-mirror/internal/model"
)

const integrationColumns = `id, user_id, provider, access_token, profile, scopes, connected_at, last_sync_at, is_active, created_at, updated_at`

func scanIntegration(row pgx.Row) (Integration, error) {
	var i Integration
	err := row.Scan(
		&i.ID,
		&i.UserID,
		&i.Provider,
		&i.AccessToken,
		&i.Profile,
		&i.Scopes,
		&i.ConnectedAt,
		&i.LastSyncAt,
		&i.IsActive,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const upsertIntegration = `-- name: UpsertIntegration :one
INSERT INTO integrations (user_id, provider, access_token, profile, scopes, connected_at, is_active)
VALUES ($1, $2, $3, $4, $5, $6, TRUE)
ON CONFLICT (user_id, provider) DO UPDATE SET
    access_token = EXCLUDED.access_token,
    profile      = EXCLUDED.profile,
    scopes       = EXCLUDED.scopes,
    connected_at = EXCLUDED.connected_at,
    is_active    = TRUE,
    updated_at   = NOW()
RETURNING ` + integrationColumns

type UpsertIntegrationParams struct {
	UserID      string
	Provider    string
	AccessToken string
	Profile     model.AccountProfile
	Scopes      []string
	ConnectedAt pgtype.Timestamptz
}

func (q *Queries) UpsertIntegration(ctx context.Context, arg UpsertIntegrationParams) (Integration, error) {
	row := q.db.QueryRow(ctx, upsertIntegration,
		arg.UserID,
		arg.Provider,
		arg.AccessToken,
		arg.Profile,
		arg.Scopes,
		arg.ConnectedAt,
	)
	return scanIntegration(row)
}

const getActiveIntegration = `-- name: GetActiveIntegration :one
SELECT ` + integrationColumns + `
FROM integrations
WHERE user_id = $1 AND provider = $2 AND is_active
`

type GetActiveIntegrationParams struct {
	UserID   string
	Provider string
}

func (q *Queries) GetActiveIntegration(ctx context.Context, arg GetActiveIntegrationParams) (Integration, error) {
	row := q.db.QueryRow(ctx, getActiveIntegration, arg.UserID, arg.Provider)
	return scanIntegration(row)
}

const listActiveIntegrations = `-- name: ListActiveIntegrations :many
SELECT ` + integrationColumns + `
FROM integrations
WHERE provider = $1 AND is_active
ORDER BY id
`

func (q *Queries) ListActiveIntegrations(ctx context.Context, provider string) ([]Integration, error) {
	rows, err := q.db.Query(ctx, listActiveIntegrations, provider)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Integration
	for rows.Next() {
		i, err := scanIntegration(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const deactivateIntegration = `-- name: DeactivateIntegration :execrows
UPDATE integrations
SET is_active = FALSE, updated_at = NOW()
WHERE user_id = $1 AND provider = $2
`

type DeactivateIntegrationParams struct {
	UserID   string
	Provider string
}

func (q *Queries) DeactivateIntegration(ctx context.Context, arg DeactivateIntegrationParams) (int64, error) {
	result, err := q.db.Exec(ctx, deactivateIntegration, arg.UserID, arg.Provider)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

// last_sync_at never moves backwards, even if two passes finish out of order.
const markIntegrationSynced = `-- name: MarkIntegrationSynced :one
UPDATE integrations
SET last_sync_at = GREATEST(COALESCE(last_sync_at, $2::timestamptz), $2::timestamptz),
    updated_at   = NOW()
WHERE id = $1
RETURNING last_sync_at
`

type MarkIntegrationSyncedParams struct {
	ID       int64
	SyncedAt pgtype.Timestamptz
}

func (q *Queries) MarkIntegrationSynced(ctx context.Context, arg MarkIntegrationSyncedParams) (pgtype.Timestamptz, error) {
	row := q.db.QueryRow(ctx, markIntegrationSynced, arg.ID, arg.SyncedAt)
	var lastSyncAt pgtype.Timestamptz
	err := row.Scan(&lastSyncAt)
	return lastSyncAt, err
}

const countIntegrationEntities = `-- name: CountIntegrationEntities :one
SELECT
    (SELECT COUNT(*) FROM organizations WHERE integration_id = $1) AS organizations,
    (SELECT COUNT(*) FROM repositories  WHERE integration_id = $1) AS repositories,
    (SELECT COUNT(*) FROM commits       WHERE integration_id = $1) AS commits,
    (SELECT COUNT(*) FROM pull_requests WHERE integration_id = $1) AS pull_requests,
    (SELECT COUNT(*) FROM issues        WHERE integration_id = $1) AS issues,
    (SELECT COUNT(*) FROM users         WHERE integration_id = $1) AS users
`

func (q *Queries) CountIntegrationEntities(ctx context.Context, integrationID int64) (CountIntegrationEntitiesRow, error) {
	row := q.db.QueryRow(ctx, countIntegrationEntities, integrationID)
	var i CountIntegrationEntitiesRow
	err := row.Scan(
		&i.Organizations,
		&i.Repositories,
		&i.Commits,
		&i.PullRequests,
		&i.Issues,
		&i.Users,
	)
	return i, err
}
