// internal/syncer/units.go
package syncer

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"strconv"
	"time"

	gh "github.com/google/go-github/v62/github"
	"github.com/jackc/pgx/v5/pgtype"

	"github-org-mirror/internal/database"
	"github-org-mirror/internal/github"
	"github-org-mirror/internal/model"
	"github-org-mirror/internal/store"
)

const (
	orgPageSize      = 100
	repoPageSize     = 50
	commitPageSize   = 50
	activityPageSize = 50
	memberPageSize   = 50
)

// naturalKey identifies a mirrored document within its integration. Upstream ids are only
// unique per entity kind, so Kind is part of the key. Scope is the parent repository for
// commits, pull requests and issues, and zero otherwise.
type naturalKey struct {
	Kind          string
	IntegrationID int64
	Scope         int64
	ID            string
}

func (k naturalKey) String() string {
	if k.Scope == 0 {
		return fmt.Sprintf("(%d, %s)", k.IntegrationID, k.ID)
	}
	return fmt.Sprintf("(%d, %d, %s)", k.IntegrationID, k.Scope, k.ID)
}

// organizationUnit mirrors user/orgs.
type organizationUnit struct {
	integrationID int64
}

func (u organizationUnit) keyOf(o *gh.Organization) naturalKey {
	return naturalKey{Kind: "organization", IntegrationID: u.integrationID, ID: strconv.FormatInt(o.GetID(), 10)}
}

func (u organizationUnit) mapToStored(o *gh.Organization) database.UpsertOrganizationParams {
	name := o.GetName()
	if name == "" {
		name = o.GetLogin()
	}
	return database.UpsertOrganizationParams{
		IntegrationID: u.integrationID,
		ExternalID:    o.GetID(),
		Login:         o.GetLogin(),
		Name:          name,
		Description:   o.GetDescription(),
		Url:           o.GetURL(),
		AvatarUrl:     o.GetAvatarURL(),
		Location:      o.GetLocation(),
		PublicRepos:   int32(o.GetPublicRepos()),
		Followers:     int32(o.GetFollowers()),
		Following:     int32(o.GetFollowing()),
		OrgCreatedAt:  timestamptz(o.GetCreatedAt().Time),
	}
}

func (u organizationUnit) fetch(ctx context.Context, s *github.Session) iter.Seq2[[]*gh.Organization, error] {
	return s.Organizations(orgPageSize).Pages(ctx)
}

// publicMembers counts the organization's publicized members. The listing is the only
// upstream source of the count.
func (u organizationUnit) publicMembers(ctx context.Context, s *github.Session, o *gh.Organization) (pgtype.Int4, error) {
	var n int32
	for page, err := range s.OrgPublicMembers(o.GetLogin(), orgPageSize).Pages(ctx) {
		if err != nil {
			return pgtype.Int4{}, err
		}
		n += int32(len(page))
	}
	return pgtype.Int4{Int32: n, Valid: true}, nil
}

// repositoryUnit mirrors orgs/{org}/repos for one organization.
type repositoryUnit struct {
	integrationID int64
	org           *gh.Organization
}

func (u repositoryUnit) keyOf(r *gh.Repository) naturalKey {
	return naturalKey{Kind: "repository", IntegrationID: u.integrationID, ID: strconv.FormatInt(r.GetID(), 10)}
}

func (u repositoryUnit) mapToStored(r *gh.Repository) database.UpsertRepositoryParams {
	return database.UpsertRepositoryParams{
		IntegrationID:   u.integrationID,
		ExternalID:      r.GetID(),
		OrganizationID:  pgtype.Int8{Int64: u.org.GetID(), Valid: u.org.GetID() != 0},
		Name:            r.GetName(),
		FullName:        fullName(u.org, r),
		Description:     r.GetDescription(),
		Private:         r.GetPrivate(),
		HtmlUrl:         r.GetHTMLURL(),
		CloneUrl:        r.GetCloneURL(),
		DefaultBranch:   r.GetDefaultBranch(),
		Language:        r.GetLanguage(),
		Size:            int32(r.GetSize()),
		StargazersCount: int32(r.GetStargazersCount()),
		WatchersCount:   int32(r.GetWatchersCount()),
		ForksCount:      int32(r.GetForksCount()),
		OpenIssuesCount: int32(r.GetOpenIssuesCount()),
		RepoCreatedAt:   timestamptz(r.GetCreatedAt().Time),
		RepoUpdatedAt:   timestamptz(r.GetUpdatedAt().Time),
		PushedAt:        timestamptz(r.GetPushedAt().Time),
	}
}

func (u repositoryUnit) fetch(ctx context.Context, s *github.Session) iter.Seq2[[]*gh.Repository, error] {
	return s.OrgRepositories(u.org.GetLogin(), repoPageSize).Pages(ctx)
}

// commitUnit mirrors repos/{owner}/{repo}/commits for one repository.
type commitUnit struct {
	integrationID int64
	repo          *gh.Repository
	owner         string
	since         time.Time
}

func (u commitUnit) keyOf(c *gh.RepositoryCommit) naturalKey {
	return naturalKey{Kind: "commit", IntegrationID: u.integrationID, Scope: u.repo.GetID(), ID: c.GetSHA()}
}

func (u commitUnit) mapToStored(c *gh.RepositoryCommit) database.UpsertCommitParams {
	author := c.GetCommit().GetAuthor()
	committer := c.GetCommit().GetCommitter()
	return database.UpsertCommitParams{
		IntegrationID:  u.integrationID,
		RepositoryID:   u.repo.GetID(),
		Sha:            c.GetSHA(),
		Message:        c.GetCommit().GetMessage(),
		AuthorName:     author.GetName(),
		AuthorEmail:    author.GetEmail(),
		AuthorDate:     timestamptz(author.GetDate().Time),
		CommitterName:  committer.GetName(),
		CommitterEmail: committer.GetEmail(),
		CommitterDate:  timestamptz(committer.GetDate().Time),
		Url:            c.GetURL(),
		HtmlUrl:        c.GetHTMLURL(),
	}
}

func (u commitUnit) fetch(ctx context.Context, s *github.Session) iter.Seq2[[]*gh.RepositoryCommit, error] {
	return s.Commits(u.owner, u.repo.GetName(), u.since, commitPageSize).Pages(ctx)
}

// pullRequestUnit mirrors repos/{owner}/{repo}/pulls. Listings come newest-updated first, so
// in incremental mode the walk ends at the first pull request older than since.
type pullRequestUnit struct {
	integrationID int64
	repo          *gh.Repository
	owner         string
	since         time.Time
}

func (u pullRequestUnit) keyOf(p *gh.PullRequest) naturalKey {
	return naturalKey{Kind: "pull request", IntegrationID: u.integrationID, Scope: u.repo.GetID(), ID: strconv.FormatInt(p.GetID(), 10)}
}

func (u pullRequestUnit) mapToStored(p *gh.PullRequest) database.UpsertPullRequestParams {
	return database.UpsertPullRequestParams{
		IntegrationID:  u.integrationID,
		RepositoryID:   u.repo.GetID(),
		ExternalID:     p.GetID(),
		Number:         int32(p.GetNumber()),
		Title:          p.GetTitle(),
		Body:           p.GetBody(),
		State:          p.GetState(),
		Locked:         p.GetLocked(),
		UserLogin:      p.GetUser().GetLogin(),
		Author:         toActor(p.User),
		Assignees:      toActors(p.Assignees),
		Labels:         toLabels(p.Labels),
		Milestone:      toMilestone(p.Milestone),
		Head:           toGitRef(p.Head),
		Base:           toGitRef(p.Base),
		MergeCommitSha: p.GetMergeCommitSHA(),
		HtmlUrl:        p.GetHTMLURL(),
		PrCreatedAt:    timestamptz(p.GetCreatedAt().Time),
		PrUpdatedAt:    timestamptz(p.GetUpdatedAt().Time),
		ClosedAt:       timestamptz(p.GetClosedAt().Time),
		MergedAt:       timestamptz(p.GetMergedAt().Time),
	}
}

func (u pullRequestUnit) accept(p *gh.PullRequest) (keep, stop bool) {
	if !u.since.IsZero() && p.GetUpdatedAt().Time.Before(u.since) {
		return false, true
	}
	return true, false
}

func (u pullRequestUnit) fetch(ctx context.Context, s *github.Session) iter.Seq2[[]*gh.PullRequest, error] {
	return s.PullRequests(u.owner, u.repo.GetName(), activityPageSize).Pages(ctx)
}

// issueUnit mirrors repos/{owner}/{repo}/issues, dropping the pull requests the endpoint
// also returns.
type issueUnit struct {
	integrationID int64
	repo          *gh.Repository
	owner         string
	since         time.Time
}

func (u issueUnit) keyOf(i *gh.Issue) naturalKey {
	return naturalKey{Kind: "issue", IntegrationID: u.integrationID, Scope: u.repo.GetID(), ID: strconv.FormatInt(i.GetID(), 10)}
}

func (u issueUnit) mapToStored(i *gh.Issue) database.UpsertIssueParams {
	return database.UpsertIssueParams{
		IntegrationID:  u.integrationID,
		RepositoryID:   u.repo.GetID(),
		ExternalID:     i.GetID(),
		Number:         int32(i.GetNumber()),
		Title:          i.GetTitle(),
		Body:           i.GetBody(),
		State:          i.GetState(),
		Locked:         i.GetLocked(),
		UserLogin:      i.GetUser().GetLogin(),
		Author:         toActor(i.User),
		Assignees:      toActors(i.Assignees),
		Labels:         toLabels(i.Labels),
		Milestone:      toMilestone(i.Milestone),
		Comments:       int32(i.GetComments()),
		HtmlUrl:        i.GetHTMLURL(),
		IssueCreatedAt: timestamptz(i.GetCreatedAt().Time),
		IssueUpdatedAt: timestamptz(i.GetUpdatedAt().Time),
		ClosedAt:       timestamptz(i.GetClosedAt().Time),
	}
}

func (u issueUnit) accept(i *gh.Issue) (keep, stop bool) {
	return !i.IsPullRequest(), false
}

func (u issueUnit) fetch(ctx context.Context, s *github.Session) iter.Seq2[[]*gh.Issue, error] {
	return s.Issues(u.owner, u.repo.GetName(), u.since, activityPageSize).Pages(ctx)
}

// memberUnit mirrors orgs/{org}/members into users.
type memberUnit struct {
	integrationID int64
	org           *gh.Organization
}

func (u memberUnit) keyOf(m *gh.User) naturalKey {
	return naturalKey{Kind: "user", IntegrationID: u.integrationID, ID: strconv.FormatInt(m.GetID(), 10)}
}

func (u memberUnit) mapToStored(m *gh.User) database.UpsertUserParams {
	return database.UpsertUserParams{
		IntegrationID:  u.integrationID,
		ExternalID:     m.GetID(),
		OrganizationID: pgtype.Int8{Int64: u.org.GetID(), Valid: u.org.GetID() != 0},
		Login:          m.GetLogin(),
		Name:           m.GetName(),
		Email:          m.GetEmail(),
		AvatarUrl:      m.GetAvatarURL(),
		Company:        m.GetCompany(),
		Location:       m.GetLocation(),
		Type:           m.GetType(),
		SiteAdmin:      m.GetSiteAdmin(),
		HtmlUrl:        m.GetHTMLURL(),
	}
}

func (u memberUnit) fetch(ctx context.Context, s *github.Session) iter.Seq2[[]*gh.User, error] {
	return s.OrgMembers(u.org.GetLogin(), memberPageSize).Pages(ctx)
}

// bulkUnit is a child unit written one page at a time with an unordered bulk upsert.
type bulkUnit[R, D any] struct {
	kind        string
	keyOf       func(R) naturalKey
	mapToStored func(R) D
	// accept filters records; stop ends the walk after the current page is written.
	accept func(R) (keep, stop bool)
	write  func(context.Context, []D) (store.BulkResult, error)
	limit  int
}

// bulkOutcome is what one bulk unit contributed to a pass.
type bulkOutcome struct {
	Written  int
	Skipped  bool
	Capped   bool
	Rejected int
}

// runBulk walks pages sequentially, writing each page before requesting the next. At most
// limit records are submitted. ErrStopPagination ends the walk as a skip, not an error.
func runBulk[R, D any](ctx context.Context, logger *slog.Logger, u bulkUnit[R, D], pages iter.Seq2[[]R, error]) (bulkOutcome, error) {
	var out bulkOutcome
	submitted := 0
	seen := make(map[naturalKey]struct{})

	for items, err := range pages {
		if err != nil {
			if errors.Is(err, github.ErrStopPagination) {
				logger.Info("Skipping resource", "kind", u.kind, "reason", err.Error())
				out.Skipped = true
				return out, nil
			}
			return out, err
		}

		batch := make([]D, 0, len(items))
		stop := false
		for _, raw := range items {
			if u.limit > 0 && submitted+len(batch) >= u.limit {
				out.Capped = true
				stop = true
				break
			}
			if u.accept != nil {
				keep, halt := u.accept(raw)
				if halt {
					stop = true
					break
				}
				if !keep {
					continue
				}
			}
			// Pages can shift while new upstream records arrive; never write a key twice in one walk.
			key := u.keyOf(raw)
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			batch = append(batch, u.mapToStored(raw))
		}

		if len(batch) > 0 {
			res, err := u.write(ctx, batch)
			if err != nil {
				return out, err
			}
			submitted += len(batch)
			out.Written += int(res.Affected)
			out.Rejected += len(res.Failed)
		}
		if u.limit > 0 && submitted >= u.limit {
			out.Capped = true
			stop = true
		}
		if stop {
			break
		}
	}
	if out.Capped {
		logger.Info("Reached per-pass cap", "kind", u.kind, "limit", u.limit)
	}
	return out, nil
}

func fullName(org *gh.Organization, r *gh.Repository) string {
	if r.GetFullName() != "" {
		return r.GetFullName()
	}
	return org.GetLogin() + "/" + r.GetName()
}

func ownerOf(org *gh.Organization, r *gh.Repository) string {
	if login := r.GetOwner().GetLogin(); login != "" {
		return login
	}
	return org.GetLogin()
}

func toActor(u *gh.User) *model.Actor {
	if u == nil {
		return nil
	}
	return &model.Actor{ID: u.GetID(), Login: u.GetLogin(), AvatarURL: u.GetAvatarURL()}
}

func toActors(users []*gh.User) []model.Actor {
	out := make([]model.Actor, 0, len(users))
	for _, u := range users {
		if u != nil {
			out = append(out, *toActor(u))
		}
	}
	return out
}

func toLabels(labels []*gh.Label) []model.Label {
	out := make([]model.Label, 0, len(labels))
	for _, l := range labels {
		if l == nil {
			continue
		}
		out = append(out, model.Label{ID: l.GetID(), Name: l.GetName(), Color: l.GetColor(), Description: l.GetDescription()})
	}
	return out
}

func toMilestone(m *gh.Milestone) *model.Milestone {
	if m == nil {
		return nil
	}
	ms := &model.Milestone{ID: m.GetID(), Number: m.GetNumber(), Title: m.GetTitle(), State: m.GetState()}
	if due := m.GetDueOn().Time; !due.IsZero() {
		ms.DueOn = &due
	}
	return ms
}

func toGitRef(b *gh.PullRequestBranch) *model.GitRef {
	if b == nil {
		return nil
	}
	return &model.GitRef{Ref: b.GetRef(), SHA: b.GetSHA()}
}

func timestamptz(t time.Time) pgtype.Timestamptz {
	if t.IsZero() {
		return pgtype.Timestamptz{}
	}
	return pgtype.Timestamptz{Time: t, Valid: true}
}
