// internal/database/querier.go
package database

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

type Querier interface {
	CountIntegrationEntities(ctx context.Context, integrationID int64) (CountIntegrationEntitiesRow, error)
	DeactivateIntegration(ctx context.Context, arg DeactivateIntegrationParams) (int64, error)
	GetActiveIntegration(ctx context.Context, arg GetActiveIntegrationParams) (Integration, error)
	ListActiveIntegrations(ctx context.Context, provider string) ([]Integration, error)
	MarkIntegrationSynced(ctx context.Context, arg MarkIntegrationSyncedParams) (pgtype.Timestamptz, error)
	UpsertCommit(ctx context.Context, arg UpsertCommitParams) error
	UpsertCommits(ctx context.Context, arg []UpsertCommitParams) BatchResults
	UpsertIntegration(ctx context.Context, arg UpsertIntegrationParams) (Integration, error)
	UpsertIssue(ctx context.Context, arg UpsertIssueParams) error
	UpsertIssues(ctx context.Context, arg []UpsertIssueParams) BatchResults
	UpsertOrganization(ctx context.Context, arg UpsertOrganizationParams) (int64, error)
	UpsertPullRequest(ctx context.Context, arg UpsertPullRequestParams) error
	UpsertPullRequests(ctx context.Context, arg []UpsertPullRequestParams) BatchResults
	UpsertRepository(ctx context.Context, arg UpsertRepositoryParams) (int64, error)
	UpsertUser(ctx context.Context, arg UpsertUserParams) error
	UpsertUsers(ctx context.Context, arg []UpsertUserParams) BatchResults
}

var _ Querier = (*Queries)(nil)
