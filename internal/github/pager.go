// internal/github/pager.go
package github

import (
	"context"
	"iter"
	"time"

	"github.com/google/go-github/v62/github"
)

// PageParams addresses one page of a listing. Page is 1-based.
type PageParams struct {
	Page    int
	PerPage int
}

// Page is one page of raw upstream records.
type Page[T any] struct {
	Items   []T
	HasMore bool
}

// Pager lazily walks a paginated listing from page 1. It is restartable by calling Pages
// again but cannot resume mid-listing. Not safe for concurrent use.
type Pager[T any] struct {
	fetch   func(ctx context.Context, p PageParams) (Page[T], error)
	perPage int
	delay   time.Duration
}

// FetchPage fetches a single page.
func (p *Pager[T]) FetchPage(ctx context.Context, params PageParams) (Page[T], error) {
	return p.fetch(ctx, params)
}

// Pages yields each non-empty page in order. Iteration ends after an empty page, a short
// page, or the first error, which is yielded. A delay separates consecutive fetches.
func (p *Pager[T]) Pages(ctx context.Context) iter.Seq2[[]T, error] {
	return func(yield func([]T, error) bool) {
		for page := 1; ; page++ {
			if page > 1 && p.delay > 0 {
				if err := sleepCtx(ctx, p.delay); err != nil {
					yield(nil, err)
					return
				}
			}
			pg, err := p.fetch(ctx, PageParams{Page: page, PerPage: p.perPage})
			if err != nil {
				yield(nil, err)
				return
			}
			if len(pg.Items) == 0 {
				return
			}
			if !yield(pg.Items, nil) {
				return
			}
			if !pg.HasMore {
				return
			}
		}
	}
}

// newPager binds a go-github list call to the session's retry policy.
func newPager[T any](s *Session, resource string, perPage int, list func(ctx context.Context, opts github.ListOptions) ([]T, *github.Response, error)) *Pager[T] {
	return &Pager[T]{
		perPage: perPage,
		delay:   s.client.pageDelay,
		fetch: func(ctx context.Context, params PageParams) (Page[T], error) {
			var (
				items []T
				resp  *github.Response
			)
			err := s.do(ctx, resource, func(ctx context.Context) error {
				var err error
				items, resp, err = list(ctx, github.ListOptions{Page: params.Page, PerPage: params.PerPage})
				return err
			})
			if err != nil {
				return Page[T]{}, err
			}
			// Upstream may cap per_page below what was asked for; its Link header still says whether a next page exists.
			hasMore := len(items) >= params.PerPage || (resp != nil && resp.NextPage != 0)
			s.client.logger.Debug("Fetched page", "resource", resource, "page", params.Page, "count", len(items), "has_more", hasMore)
			return Page[T]{Items: items, HasMore: hasMore}, nil
		},
	}
}

// Organizations lists the organizations of the authenticated user (user/orgs).
func (s *Session) Organizations(perPage int) *Pager[*github.Organization] {
	return newPager(s, "user/orgs", perPage, func(ctx context.Context, opts github.ListOptions) ([]*github.Organization, *github.Response, error) {
		return s.gh.Organizations.List(ctx, "", &opts)
	})
}

// OrgRepositories lists the repositories of an organization (orgs/{org}/repos).
func (s *Session) OrgRepositories(org string, perPage int) *Pager[*github.Repository] {
	return newPager(s, "orgs/"+org+"/repos", perPage, func(ctx context.Context, opts github.ListOptions) ([]*github.Repository, *github.Response, error) {
		return s.gh.Repositories.ListByOrg(ctx, org, &github.RepositoryListByOrgOptions{Type: "all", ListOptions: opts})
	})
}

// Commits lists commits of a repository, newest first. A zero since lists the whole history.
func (s *Session) Commits(owner, repo string, since time.Time, perPage int) *Pager[*github.RepositoryCommit] {
	return newPager(s, "repos/"+owner+"/"+repo+"/commits", perPage, func(ctx context.Context, opts github.ListOptions) ([]*github.RepositoryCommit, *github.Response, error) {
		return s.gh.Repositories.ListCommits(ctx, owner, repo, &github.CommitsListOptions{Since: since, ListOptions: opts})
	})
}

// PullRequests lists pull requests in every state, most recently updated first.
func (s *Session) PullRequests(owner, repo string, perPage int) *Pager[*github.PullRequest] {
	return newPager(s, "repos/"+owner+"/"+repo+"/pulls", perPage, func(ctx context.Context, opts github.ListOptions) ([]*github.PullRequest, *github.Response, error) {
		return s.gh.PullRequests.List(ctx, owner, repo, &github.PullRequestListOptions{
			State:       "all",
			Sort:        "updated",
			Direction:   "desc",
			ListOptions: opts,
		})
	})
}

// Issues lists issues in every state updated at or after since. The upstream endpoint also
// returns pull requests; callers filter them out.
func (s *Session) Issues(owner, repo string, since time.Time, perPage int) *Pager[*github.Issue] {
	return newPager(s, "repos/"+owner+"/"+repo+"/issues", perPage, func(ctx context.Context, opts github.ListOptions) ([]*github.Issue, *github.Response, error) {
		return s.gh.Issues.ListByRepo(ctx, owner, repo, &github.IssueListByRepoOptions{
			State:       "all",
			Since:       since,
			ListOptions: opts,
		})
	})
}

// OrgMembers lists the members of an organization visible to the token.
func (s *Session) OrgMembers(org string, perPage int) *Pager[*github.User] {
	return newPager(s, "orgs/"+org+"/members", perPage, func(ctx context.Context, opts github.ListOptions) ([]*github.User, *github.Response, error) {
		return s.gh.Organizations.ListMembers(ctx, org, &github.ListMembersOptions{ListOptions: opts})
	})
}

// OrgPublicMembers lists the publicized members of an organization.
func (s *Session) OrgPublicMembers(org string, perPage int) *Pager[*github.User] {
	return newPager(s, "orgs/"+org+"/public_members", perPage, func(ctx context.Context, opts github.ListOptions) ([]*github.User, *github.Response, error) {
		return s.gh.Organizations.ListMembers(ctx, org, &github.ListMembersOptions{PublicOnly: true, ListOptions: opts})
	})
}
