// internal/store/bulk.go
package store

import (
	"context"
	"fmt"

	"github-org-mirror/internal/database"
	custom_errors "github-org-mirror/internal/errors"
)

// ItemFailure is one record a bulk upsert could not write.
type ItemFailure struct {
	Key string
	Err error
}

// BulkResult is the outcome of an unordered bulk upsert. Affected counts written records;
// Failed lists the rest. One bad record never prevents the others from being written.
type BulkResult struct {
	Affected int64
	Failed   []ItemFailure
}

// bulkOps binds the generic bulk path to one entity type.
type bulkOps[T any] struct {
	kind  string
	keyOf func(T) string
	valid func(T) bool
	batch func(context.Context, []T) database.BatchResults
	one   func(context.Context, T) error
}

// upsertMany sends every valid item in one batch. A batch executes as a single implicit
// transaction, so when any statement fails the whole batch is rolled back and each item is
// replayed on its own.
func upsertMany[T any](ctx context.Context, s *Store, ops bulkOps[T], items []T) (BulkResult, error) {
	var res BulkResult
	pending := make([]T, 0, len(items))
	for _, it := range items {
		if !ops.valid(it) {
			res.Failed = append(res.Failed, ItemFailure{
				Key: ops.keyOf(it),
				Err: &custom_errors.InvalidDocumentError{Kind: ops.kind, Key: ops.keyOf(it)},
			})
			continue
		}
		pending = append(pending, it)
	}
	if len(pending) == 0 {
		s.logFailures(ops.kind, res.Failed)
		return res, nil
	}

	var batchErr error
	ops.batch(ctx, pending).Exec(func(_ int, err error) {
		if err != nil && batchErr == nil {
			batchErr = err
		}
	})
	if batchErr == nil {
		res.Affected = int64(len(pending))
		s.logFailures(ops.kind, res.Failed)
		return res, nil
	}
	if err := ctx.Err(); err != nil {
		return res, fmt.Errorf("bulk upsert of %d %s documents: %w", len(pending), ops.kind, err)
	}

	s.logger.Debug("Batch upsert failed, replaying items individually", "kind", ops.kind, "count", len(pending), "error", batchErr)
	for _, it := range pending {
		if err := ops.one(ctx, it); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return res, fmt.Errorf("bulk upsert of %d %s documents: %w", len(pending), ops.kind, ctxErr)
			}
			res.Failed = append(res.Failed, ItemFailure{Key: ops.keyOf(it), Err: err})
			continue
		}
		res.Affected++
	}
	s.logFailures(ops.kind, res.Failed)
	return res, nil
}

func (s *Store) logFailures(kind string, failed []ItemFailure) {
	for _, f := range failed {
		s.logger.Warn("Skipped document in bulk upsert", "kind", kind, "key", f.Key, "error", f.Err)
	}
}

var commitOps = bulkOps[database.UpsertCommitParams]{
	kind: "commit",
	keyOf: func(c database.UpsertCommitParams) string {
		return fmt.Sprintf("(%d, %d, %s)", c.IntegrationID, c.RepositoryID, c.Sha)
	},
	valid: func(c database.UpsertCommitParams) bool {
		return c.IntegrationID != 0 && c.RepositoryID != 0 && c.Sha != ""
	},
}

var pullRequestOps = bulkOps[database.UpsertPullRequestParams]{
	kind: "pull request",
	keyOf: func(p database.UpsertPullRequestParams) string {
		return fmt.Sprintf("(%d, %d, %d)", p.IntegrationID, p.RepositoryID, p.ExternalID)
	},
	valid: func(p database.UpsertPullRequestParams) bool {
		return p.IntegrationID != 0 && p.RepositoryID != 0 && p.ExternalID != 0
	},
}

var issueOps = bulkOps[database.UpsertIssueParams]{
	kind: "issue",
	keyOf: func(i database.UpsertIssueParams) string {
		return fmt.Sprintf("(%d, %d, %d)", i.IntegrationID, i.RepositoryID, i.ExternalID)
	},
	valid: func(i database.UpsertIssueParams) bool {
		return i.IntegrationID != 0 && i.RepositoryID != 0 && i.ExternalID != 0
	},
}

var userOps = bulkOps[database.UpsertUserParams]{
	kind: "user",
	keyOf: func(u database.UpsertUserParams) string {
		return fmt.Sprintf("(%d, %d)", u.IntegrationID, u.ExternalID)
	},
	valid: func(u database.UpsertUserParams) bool {
		return u.IntegrationID != 0 && u.ExternalID != 0 && u.Login != ""
	},
}

// UpsertCommits writes a page of commits keyed by (integration, repository, sha).
func (s *Store) UpsertCommits(ctx context.Context, commits []database.UpsertCommitParams) (BulkResult, error) {
	ops := commitOps
	ops.batch, ops.one = s.q.UpsertCommits, s.q.UpsertCommit
	return upsertMany(ctx, s, ops, commits)
}

func (s *Store) UpsertPullRequests(ctx context.Context, prs []database.UpsertPullRequestParams) (BulkResult, error) {
	ops := pullRequestOps
	ops.batch, ops.one = s.q.UpsertPullRequests, s.q.UpsertPullRequest
	return upsertMany(ctx, s, ops, prs)
}

func (s *Store) UpsertIssues(ctx context.Context, issues []database.UpsertIssueParams) (BulkResult, error) {
	ops := issueOps
	ops.batch, ops.one = s.q.UpsertIssues, s.q.UpsertIssue
	return upsertMany(ctx, s, ops, issues)
}

func (s *Store) UpsertUsers(ctx context.Context, users []database.UpsertUserParams) (BulkResult, error) {
	ops := userOps
	ops.batch, ops.one = s.q.UpsertUsers, s.q.UpsertUser
	return upsertMany(ctx, s, ops, users)
}
