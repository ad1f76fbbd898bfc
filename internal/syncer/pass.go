// internal/syncer/pass.go
package syncer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	gh "github.com/google/go-github/v62/github"

	"github-org-mirror/internal/database"
	"github-org-mirror/internal/github"
	"github-org-mirror/internal/model"
)

type passState string

const (
	stateStarted        passState = "STARTED"
	stateSyncingOrgs    passState = "SYNCING_ORGS"
	stateSyncingRepos   passState = "SYNCING_REPOS"
	stateSyncingCommits passState = "SYNCING_COMMITS"
	stateFinalizing     passState = "FINALIZING"
	stateCompleted      passState = "COMPLETED"
	stateError          passState = "ERROR"
)

// pass is one depth-first traversal of an integration's organizations, repositories and
// commits. A pass runs sequentially and is not reused.
type pass struct {
	id          string
	integration model.Integration
	session     *github.Session
	store       Store
	opts        Options
	mode        model.SyncMode
	since       time.Time
	logger      *slog.Logger

	state passState
	seen  map[naturalKey]struct{}
}

func (p *pass) transition(to passState) {
	if p.state == to {
		return
	}
	p.logger.Debug("Sync state changed", "from", p.state, "to", to)
	p.state = to
}

// run traverses and finalizes. Child failures end up in the report; only a cancelled context
// or a failed high-water mark write ends the pass in ERROR.
func (p *pass) run(ctx context.Context) (model.SyncReport, error) {
	p.transition(stateSyncingOrgs)

	var t tally
	orgs := organizationUnit{integrationID: p.integration.ID}
	for page, err := range orgs.fetch(ctx, p.session) {
		if err != nil {
			if ctx.Err() != nil {
				return p.fail(ctx.Err())
			}
			if errors.Is(err, github.ErrStopPagination) {
				t = t.withSkip("Organizations: not available")
				break
			}
			t = t.withError(fmt.Sprintf("Organizations: %v", err))
			break
		}
		for _, org := range page {
			if !p.firstSighting(orgs.keyOf(org)) {
				continue
			}
			t = t.merge(p.syncOrganization(ctx, org))
			if ctx.Err() != nil {
				return p.fail(ctx.Err())
			}
		}
	}

	p.transition(stateFinalizing)
	at := time.Now().UTC()
	if _, err := p.store.MarkSynced(ctx, p.integration.ID, at); err != nil {
		return p.fail(fmt.Errorf("recording last sync time: %w", err))
	}

	p.transition(stateCompleted)
	report := t.report(p.id, p.mode, at)
	p.logger.Info("Sync pass completed",
		"organizations", report.Organizations,
		"repositories", report.Repositories,
		"commits", report.Commits,
		"pull_requests", report.PullRequests,
		"issues", report.Issues,
		"users", report.Users,
		"errors", len(report.Errors),
		"skipped", len(report.Skipped),
	)
	return report, nil
}

func (p *pass) fail(err error) (model.SyncReport, error) {
	p.transition(stateError)
	p.logger.Error("Sync pass aborted", "error", err)
	return model.SyncReport{}, err
}

// firstSighting reports whether key has not been handled earlier in this pass.
func (p *pass) firstSighting(key naturalKey) bool {
	if _, ok := p.seen[key]; ok {
		return false
	}
	p.seen[key] = struct{}{}
	return true
}

func (p *pass) syncOrganization(ctx context.Context, org *gh.Organization) tally {
	logger := p.logger.With("org", org.GetLogin())
	unit := organizationUnit{integrationID: p.integration.ID}

	stored := unit.mapToStored(org)
	if p.opts.ExtendedEntities {
		// The stored count is kept when it cannot be refreshed.
		members, err := unit.publicMembers(ctx, p.session, org)
		if err != nil {
			logger.Warn("Public member count unavailable", "error", err)
		}
		stored.PublicMembers = members
	}
	if err := p.store.UpsertOrganization(ctx, stored); err != nil {
		logger.Error("Failed to store organization", "error", err)
		return tally{}.withError(fmt.Sprintf("Organization %s: %v", org.GetLogin(), err))
	}
	t := tally{organizations: 1}
	logger.Info("Synced organization")

	p.transition(stateSyncingRepos)
	repos := repositoryUnit{integrationID: p.integration.ID, org: org}
	for page, err := range repos.fetch(ctx, p.session) {
		if err != nil {
			if errors.Is(err, github.ErrStopPagination) {
				logger.Info("Repositories not available", "reason", err.Error())
				t = t.withSkip(fmt.Sprintf("Organization %s: repositories", org.GetLogin()))
				break
			}
			logger.Error("Failed to list repositories", "error", err)
			t = t.withError(fmt.Sprintf("Organization %s: %v", org.GetLogin(), err))
			break
		}
		for _, repo := range page {
			if !p.firstSighting(repos.keyOf(repo)) {
				continue
			}
			t = t.merge(p.syncRepository(ctx, org, repo))
			if ctx.Err() != nil {
				return t
			}
			p.transition(stateSyncingRepos)
		}
	}

	if p.opts.ExtendedEntities {
		members := memberUnit{integrationID: p.integration.ID, org: org}
		out, err := runBulk(ctx, logger, bulkUnit[*gh.User, database.UpsertUserParams]{
			kind:        "member",
			keyOf:       members.keyOf,
			mapToStored: members.mapToStored,
			write:       p.store.UpsertUsers,
		}, members.fetch(ctx, p.session))
		t.users += out.Written
		switch {
		case err != nil:
			t = t.withError(fmt.Sprintf("Organization %s: members: %v", org.GetLogin(), err))
		case out.Skipped:
			t = t.withSkip(fmt.Sprintf("Organization %s: members", org.GetLogin()))
		}
	}
	return t
}

func (p *pass) syncRepository(ctx context.Context, org *gh.Organization, repo *gh.Repository) tally {
	name := fullName(org, repo)
	logger := p.logger.With("repo", name)
	unit := repositoryUnit{integrationID: p.integration.ID, org: org}

	if err := p.store.UpsertRepository(ctx, unit.mapToStored(repo)); err != nil {
		logger.Error("Failed to store repository", "error", err)
		return tally{}.withError(fmt.Sprintf("Repository %s: %v", name, err))
	}
	t := tally{repositories: 1}

	p.transition(stateSyncingCommits)
	owner := ownerOf(org, repo)
	commits := commitUnit{integrationID: p.integration.ID, repo: repo, owner: owner, since: p.since}
	out, err := runBulk(ctx, logger, bulkUnit[*gh.RepositoryCommit, database.UpsertCommitParams]{
		kind:        "commit",
		keyOf:       commits.keyOf,
		mapToStored: commits.mapToStored,
		write:       p.store.UpsertCommits,
		limit:       p.opts.CommitCap,
	}, commits.fetch(ctx, p.session))
	t.commits += out.Written
	switch {
	case err != nil:
		logger.Error("Failed to sync commits", "error", err)
		t = t.withError(fmt.Sprintf("Repository %s: commits: %v", name, err))
	case out.Skipped:
		t = t.withSkip(fmt.Sprintf("Repository %s: commits", name))
	}
	logger.Info("Synced repository", "commits", out.Written, "capped", out.Capped)

	if !p.opts.ExtendedEntities || ctx.Err() != nil {
		return t
	}

	prs := pullRequestUnit{integrationID: p.integration.ID, repo: repo, owner: owner, since: p.since}
	out, err = runBulk(ctx, logger, bulkUnit[*gh.PullRequest, database.UpsertPullRequestParams]{
		kind:        "pull request",
		keyOf:       prs.keyOf,
		mapToStored: prs.mapToStored,
		accept:      prs.accept,
		write:       p.store.UpsertPullRequests,
		limit:       p.opts.CommitCap,
	}, prs.fetch(ctx, p.session))
	t.pullRequests += out.Written
	switch {
	case err != nil:
		t = t.withError(fmt.Sprintf("Repository %s: pull requests: %v", name, err))
	case out.Skipped:
		t = t.withSkip(fmt.Sprintf("Repository %s: pull requests", name))
	}

	issues := issueUnit{integrationID: p.integration.ID, repo: repo, owner: owner, since: p.since}
	out, err = runBulk(ctx, logger, bulkUnit[*gh.Issue, database.UpsertIssueParams]{
		kind:        "issue",
		keyOf:       issues.keyOf,
		mapToStored: issues.mapToStored,
		accept:      issues.accept,
		write:       p.store.UpsertIssues,
		limit:       p.opts.CommitCap,
	}, issues.fetch(ctx, p.session))
	t.issues += out.Written
	switch {
	case err != nil:
		t = t.withError(fmt.Sprintf("Repository %s: issues: %v", name, err))
	case out.Skipped:
		t = t.withSkip(fmt.Sprintf("Repository %s: issues", name))
	}
	return t
}
