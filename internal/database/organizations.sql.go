// internal/database/organizations.sql.go
package database

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

const upsertOrganization = `-- name: UpsertOrganization :one
INSERT INTO organizations (
    integration_id, external_id, login, name, description, url, avatar_url, location,
    public_repos, public_members, followers, following, org_created_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
ON CONFLICT (integration_id, external_id) DO UPDATE SET
    login          = EXCLUDED.login,
    name           = EXCLUDED.name,
    description    = EXCLUDED.description,
    url            = EXCLUDED.url,
    avatar_url     = EXCLUDED.avatar_url,
    location       = EXCLUDED.location,
    public_repos   = EXCLUDED.public_repos,
    public_members = COALESCE(EXCLUDED.public_members, organizations.public_members),
    followers      = EXCLUDED.followers,
    following      = EXCLUDED.following,
    org_created_at = EXCLUDED.org_created_at,
    updated_at     = NOW()
RETURNING id
`

type UpsertOrganizationParams struct {
	IntegrationID int64
	ExternalID    int64
	Login         string
	Name          string
	Description   string
	Url           string
	AvatarUrl     string
	Location      string
	PublicRepos   int32
	PublicMembers pgtype.Int4
	Followers     int32
	Following     int32
	OrgCreatedAt  pgtype.Timestamptz
}

func (q *Queries) UpsertOrganization(ctx context.Context, arg UpsertOrganizationParams) (int64, error) {
	row := q.db.QueryRow(ctx, upsertOrganization,
		arg.IntegrationID,
		arg.ExternalID,
		arg.Login,
		arg.Name,
		arg.Description,
		arg.Url,
		arg.AvatarUrl,
		arg.Location,
		arg.PublicRepos,
		arg.PublicMembers,
		arg.Followers,
		arg.Following,
		arg.OrgCreatedAt,
	)
	var id int64
	err := row.Scan(&id)
	return id, err
}

const upsertRepository = `-- name: UpsertRepository :one
INSERT INTO repositories (
    integration_id, external_id, organization_id, name, full_name, description, private,
    html_url, clone_url, default_branch, language, size, stargazers_count, watchers_count,
    forks_count, open_issues_count, repo_created_at, repo_updated_at, pushed_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
ON CONFLICT (integration_id, external_id) DO UPDATE SET
    organization_id   = EXCLUDED.organization_id,
    name              = EXCLUDED.name,
    full_name         = EXCLUDED.full_name,
    description       = EXCLUDED.description,
    private           = EXCLUDED.private,
    html_url          = EXCLUDED.html_url,
    clone_url         = EXCLUDED.clone_url,
    default_branch    = EXCLUDED.default_branch,
    language          = EXCLUDED.language,
    size              = EXCLUDED.size,
    stargazers_count  = EXCLUDED.stargazers_count,
    watchers_count    = EXCLUDED.watchers_count,
    forks_count       = EXCLUDED.forks_count,
    open_issues_count = EXCLUDED.open_issues_count,
    repo_created_at   = EXCLUDED.repo_created_at,
    repo_updated_at   = EXCLUDED.repo_updated_at,
    pushed_at         = EXCLUDED.pushed_at,
    updated_at        = NOW()
RETURNING id
`

type UpsertRepositoryParams struct {
	IntegrationID   int64
	ExternalID      int64
	OrganizationID  pgtype.Int8
	Name            string
	FullName        string
	Description     string
	Private         bool
	HtmlUrl         string
	CloneUrl        string
	DefaultBranch   string
	Language        string
	Size            int32
	StargazersCount int32
	WatchersCount   int32
	ForksCount      int32
	OpenIssuesCount int32
	RepoCreatedAt   pgtype.Timestamptz
	RepoUpdatedAt   pgtype.Timestamptz
	PushedAt        pgtype.Timestamptz
}

func (q *Queries) UpsertRepository(ctx context.Context, arg UpsertRepositoryParams) (int64, error) {
	row := q.db.QueryRow(ctx, upsertRepository,
		arg.IntegrationID,
		arg.ExternalID,
		arg.OrganizationID,
		arg.Name,
		arg.FullName,
		arg.Description,
		arg.Private,
		arg.HtmlUrl,
		arg.CloneUrl,
		arg.DefaultBranch,
		arg.Language,
		arg.Size,
		arg.StargazersCount,
		arg.WatchersCount,
		arg.ForksCount,
		arg.OpenIssuesCount,
		arg.RepoCreatedAt,
		arg.RepoUpdatedAt,
		arg.PushedAt,
	)
	var id int64
	err := row.Scan(&id)
	return id, err
}
