// internal/database/activity.sql.go
package database

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github-org-mirror/internal/model"
)

const upsertPullRequest = `-- name: UpsertPullRequest :exec
INSERT INTO pull_requests (
    integration_id, repository_id, external_id, number, title, body, state, locked, user_login,
    author, assignees, labels, milestone, head, base, merge_commit_sha, html_url,
    pr_created_at, pr_updated_at, closed_at, merged_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)
ON CONFLICT (integration_id, repository_id, external_id) DO UPDATE SET
    number           = EXCLUDED.number,
    title            = EXCLUDED.title,
    body             = EXCLUDED.body,
    state            = EXCLUDED.state,
    locked           = EXCLUDED.locked,
    user_login       = EXCLUDED.user_login,
    author           = EXCLUDED.author,
    assignees        = EXCLUDED.assignees,
    labels           = EXCLUDED.labels,
    milestone        = EXCLUDED.milestone,
    head             = EXCLUDED.head,
    base             = EXCLUDED.base,
    merge_commit_sha = EXCLUDED.merge_commit_sha,
    html_url         = EXCLUDED.html_url,
    pr_created_at    = EXCLUDED.pr_created_at,
    pr_updated_at    = EXCLUDED.pr_updated_at,
    closed_at        = EXCLUDED.closed_at,
    merged_at        = EXCLUDED.merged_at,
    updated_at       = NOW()
`

type UpsertPullRequestParams struct {
	IntegrationID  int64
	RepositoryID   int64
	ExternalID     int64
	Number         int32
	Title          string
	Body           string
	State          string
	Locked         bool
	UserLogin      string
	Author         *model.Actor
	Assignees      []model.Actor
	Labels         []model.Label
	Milestone      *model.Milestone
	Head           *model.GitRef
	Base           *model.GitRef
	MergeCommitSha string
	HtmlUrl        string
	PrCreatedAt    pgtype.Timestamptz
	PrUpdatedAt    pgtype.Timestamptz
	ClosedAt       pgtype.Timestamptz
	MergedAt       pgtype.Timestamptz
}

func (arg UpsertPullRequestParams) values() []interface{} {
	return []interface{}{
		arg.IntegrationID,
		arg.RepositoryID,
		arg.ExternalID,
		arg.Number,
		arg.Title,
		arg.Body,
		arg.State,
		arg.Locked,
		arg.UserLogin,
		arg.Author,
		arg.Assignees,
		arg.Labels,
		arg.Milestone,
		arg.Head,
		arg.Base,
		arg.MergeCommitSha,
		arg.HtmlUrl,
		arg.PrCreatedAt,
		arg.PrUpdatedAt,
		arg.ClosedAt,
		arg.MergedAt,
	}
}

func (q *Queries) UpsertPullRequest(ctx context.Context, arg UpsertPullRequestParams) error {
	_, err := q.db.Exec(ctx, upsertPullRequest, arg.values()...)
	return err
}

func (q *Queries) UpsertPullRequests(ctx context.Context, arg []UpsertPullRequestParams) BatchResults {
	batch := &pgx.Batch{}
	for _, a := range arg {
		batch.Queue(upsertPullRequest, a.values()...)
	}
	return newBatchExecResults(q.db.SendBatch(ctx, batch), len(arg))
}

const upsertIssue = `-- name: UpsertIssue :exec
INSERT INTO issues (
    integration_id, repository_id, external_id, number, title, body, state, locked, user_login,
    author, assignees, labels, milestone, comments, html_url,
    issue_created_at, issue_updated_at, closed_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
ON CONFLICT (integration_id, repository_id, external_id) DO UPDATE SET
    number           = EXCLUDED.number,
    title            = EXCLUDED.title,
    body             = EXCLUDED.body,
    state            = EXCLUDED.state,
    locked           = EXCLUDED.locked,
    user_login       = EXCLUDED.user_login,
    author           = EXCLUDED.author,
    assignees        = EXCLUDED.assignees,
    labels           = EXCLUDED.labels,
    milestone        = EXCLUDED.milestone,
    comments         = EXCLUDED.comments,
    html_url         = EXCLUDED.html_url,
    issue_created_at = EXCLUDED.issue_created_at,
    issue_updated_at = EXCLUDED.issue_updated_at,
    closed_at        = EXCLUDED.closed_at,
    updated_at       = NOW()
`

type UpsertIssueParams struct {
	IntegrationID  int64
	RepositoryID   int64
	ExternalID     int64
	Number         int32
	Title          string
	Body           string
	State          string
	Locked         bool
	UserLogin      string
	Author         *model.Actor
	Assignees      []model.Actor
	Labels         []model.Label
	Milestone      *model.Milestone
	Comments       int32
	HtmlUrl        string
	IssueCreatedAt pgtype.Timestamptz
	IssueUpdatedAt pgtype.Timestamptz
	ClosedAt       pgtype.Timestamptz
}

func (arg UpsertIssueParams) values() []interface{} {
	return []interface{}{
		arg.IntegrationID,
		arg.RepositoryID,
		arg.ExternalID,
		arg.Number,
		arg.Title,
		arg.Body,
		arg.State,
		arg.Locked,
		arg.UserLogin,
		arg.Author,
		arg.Assignees,
		arg.Labels,
		arg.Milestone,
		arg.Comments,
		arg.HtmlUrl,
		arg.IssueCreatedAt,
		arg.IssueUpdatedAt,
		arg.ClosedAt,
	}
}

func (q *Queries) UpsertIssue(ctx context.Context, arg UpsertIssueParams) error {
	_, err := q.db.Exec(ctx, upsertIssue, arg.values()...)
	return err
}

func (q *Queries) UpsertIssues(ctx context.Context, arg []UpsertIssueParams) BatchResults {
	batch := &pgx.Batch{}
	for _, a := range arg {
		batch.Queue(upsertIssue, a.values()...)
	}
	return newBatchExecResults(q.db.SendBatch(ctx, batch), len(arg))
}

const upsertUser = `-- name: UpsertUser :exec
INSERT INTO users (
    integration_id, external_id, organization_id, login, name, email, avatar_url,
    company, location, type, site_admin, html_url
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
ON CONFLICT (integration_id, external_id) DO UPDATE SET
    organization_id = EXCLUDED.organization_id,
    login           = EXCLUDED.login,
    name            = EXCLUDED.name,
    email           = EXCLUDED.email,
    avatar_url      = EXCLUDED.avatar_url,
    company         = EXCLUDED.company,
    location        = EXCLUDED.location,
    type            = EXCLUDED.type,
    site_admin      = EXCLUDED.site_admin,
    html_url        = EXCLUDED.html_url,
    updated_at      = NOW()
`

type UpsertUserParams struct {
	IntegrationID  int64
	ExternalID     int64
	OrganizationID pgtype.Int8
	Login          string
	Name           string
	Email          string
	AvatarUrl      string
	Company        string
	Location       string
	Type           string
	SiteAdmin      bool
	HtmlUrl        string
}

func (arg UpsertUserParams) values() []interface{} {
	return []interface{}{
		arg.IntegrationID,
		arg.ExternalID,
		arg.OrganizationID,
		arg.Login,
		arg.Name,
		arg.Email,
		arg.AvatarUrl,
		arg.Company,
		arg.Location,
		arg.Type,
		arg.SiteAdmin,
		arg.HtmlUrl,
	}
}

func (q *Queries) UpsertUser(ctx context.Context, arg UpsertUserParams) error {
	_, err := q.db.Exec(ctx, upsertUser, arg.values()...)
	return err
}

func (q *Queries) UpsertUsers(ctx context.Context, arg []UpsertUserParams) BatchResults {
	batch := &pgx.Batch{}
	for _, a := range arg {
		batch.Queue(upsertUser, a.values()...)
	}
	return newBatchExecResults(q.db.SendBatch(ctx, batch), len(arg))
}
