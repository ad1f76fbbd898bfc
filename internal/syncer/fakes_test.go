// internal/syncer/fakes_test.go
package syncer

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	gh "github.com/google/go-github/v62/github"

	"github-org-mirror/internal/database"
	custom_errors "github-org-mirror/internal/errors"
	"github-org-mirror/internal/model"
	"github-org-mirror/internal/store"
)

// fakeStore is an in-memory Store keyed exactly like the database unique constraints.
type fakeStore struct {
	mu           sync.Mutex
	integrations map[string]*model.Integration
	orgs         map[naturalKey]database.UpsertOrganizationParams
	repos        map[naturalKey]database.UpsertRepositoryParams
	commits      map[naturalKey]database.UpsertCommitParams
	pullRequests map[naturalKey]database.UpsertPullRequestParams
	issues       map[naturalKey]database.UpsertIssueParams
	users        map[naturalKey]database.UpsertUserParams
	writes       int
	markErr      error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		integrations: make(map[string]*model.Integration),
		orgs:         make(map[naturalKey]database.UpsertOrganizationParams),
		repos:        make(map[naturalKey]database.UpsertRepositoryParams),
		commits:      make(map[naturalKey]database.UpsertCommitParams),
		pullRequests: make(map[naturalKey]database.UpsertPullRequestParams),
		issues:       make(map[naturalKey]database.UpsertIssueParams),
		users:        make(map[naturalKey]database.UpsertUserParams),
	}
}

func (f *fakeStore) addIntegration(userID string, lastSyncAt *time.Time) *model.Integration {
	f.mu.Lock()
	defer f.mu.Unlock()
	in := &model.Integration{
		ID:          int64(len(f.integrations) + 1),
		UserID:      userID,
		Provider:    model.ProviderGitHub,
		AccessToken: "token-" + userID,
		ConnectedAt: time.Now(),
		LastSyncAt:  lastSyncAt,
		IsActive:    true,
	}
	f.integrations[userID] = in
	return in
}

func (f *fakeStore) lastSyncAt(userID string) *time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.integrations[userID].LastSyncAt
}

func (f *fakeStore) writeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.writes
}

func (f *fakeStore) GetActiveIntegration(_ context.Context, userID, provider string) (model.Integration, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	in, ok := f.integrations[userID]
	if !ok || !in.IsActive || in.Provider != provider {
		return model.Integration{}, custom_errors.ErrIntegrationNotFound
	}
	return *in, nil
}

func (f *fakeStore) ListActiveIntegrations(_ context.Context, provider string) ([]model.Integration, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Integration
	for _, in := range f.integrations {
		if in.IsActive && in.Provider == provider {
			out = append(out, *in)
		}
	}
	return out, nil
}

func (f *fakeStore) MarkSynced(_ context.Context, integrationID int64, at time.Time) (time.Time, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.markErr != nil {
		return time.Time{}, f.markErr
	}
	for _, in := range f.integrations {
		if in.ID != integrationID {
			continue
		}
		if in.LastSyncAt == nil || at.After(*in.LastSyncAt) {
			in.LastSyncAt = &at
		}
		return *in.LastSyncAt, nil
	}
	return time.Time{}, custom_errors.ErrIntegrationNotFound
}

func (f *fakeStore) CountEntities(_ context.Context, integrationID int64) (store.EntityCounts, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return store.EntityCounts{
		Organizations: countFor(f.orgs, integrationID),
		Repositories:  countFor(f.repos, integrationID),
		Commits:       countFor(f.commits, integrationID),
		PullRequests:  countFor(f.pullRequests, integrationID),
		Issues:        countFor(f.issues, integrationID),
		Users:         countFor(f.users, integrationID),
	}, nil
}

func countFor[V any](m map[naturalKey]V, integrationID int64) int64 {
	var n int64
	for k := range m {
		if k.IntegrationID == integrationID {
			n++
		}
	}
	return n
}

func (f *fakeStore) UpsertOrganization(_ context.Context, arg database.UpsertOrganizationParams) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writes++
	f.orgs[naturalKey{IntegrationID: arg.IntegrationID, ID: strconv.FormatInt(arg.ExternalID, 10)}] = arg
	return nil
}

func (f *fakeStore) UpsertRepository(_ context.Context, arg database.UpsertRepositoryParams) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writes++
	f.repos[naturalKey{IntegrationID: arg.IntegrationID, ID: strconv.FormatInt(arg.ExternalID, 10)}] = arg
	return nil
}

func (f *fakeStore) UpsertCommits(_ context.Context, commits []database.UpsertCommitParams) (store.BulkResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range commits {
		f.writes++
		f.commits[naturalKey{IntegrationID: c.IntegrationID, Scope: c.RepositoryID, ID: c.Sha}] = c
	}
	return store.BulkResult{Affected: int64(len(commits))}, nil
}

func (f *fakeStore) UpsertPullRequests(_ context.Context, prs []database.UpsertPullRequestParams) (store.BulkResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range prs {
		f.writes++
		f.pullRequests[naturalKey{IntegrationID: p.IntegrationID, Scope: p.RepositoryID, ID: strconv.FormatInt(p.ExternalID, 10)}] = p
	}
	return store.BulkResult{Affected: int64(len(prs))}, nil
}

func (f *fakeStore) UpsertIssues(_ context.Context, issues []database.UpsertIssueParams) (store.BulkResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, i := range issues {
		f.writes++
		f.issues[naturalKey{IntegrationID: i.IntegrationID, Scope: i.RepositoryID, ID: strconv.FormatInt(i.ExternalID, 10)}] = i
	}
	return store.BulkResult{Affected: int64(len(issues))}, nil
}

func (f *fakeStore) UpsertUsers(_ context.Context, users []database.UpsertUserParams) (store.BulkResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range users {
		f.writes++
		f.users[naturalKey{IntegrationID: u.IntegrationID, ID: strconv.FormatInt(u.ExternalID, 10)}] = u
	}
	return store.BulkResult{Affected: int64(len(users))}, nil
}

var _ Store = (*fakeStore)(nil)

// fakeGitHub serves paginated listings from memory. Forced statuses win over data.
type fakeGitHub struct {
	mu       sync.Mutex
	orgs     []*gh.Organization
	repos    map[string][]*gh.Repository
	commits  map[string][]*gh.RepositoryCommit
	pulls    map[string][]*gh.PullRequest
	issues   map[string][]*gh.Issue
	members  map[string][]*gh.User
	public   map[string][]*gh.User
	status   map[string]int
	requests map[string]int
	queries  map[string][]string
	// onOrgs runs before the organization listing is served.
	onOrgs func()
}

func newFakeGitHub(t *testing.T) (*fakeGitHub, *httptest.Server) {
	f := &fakeGitHub{
		repos:    make(map[string][]*gh.Repository),
		commits:  make(map[string][]*gh.RepositoryCommit),
		pulls:    make(map[string][]*gh.PullRequest),
		issues:   make(map[string][]*gh.Issue),
		members:  make(map[string][]*gh.User),
		public:   make(map[string][]*gh.User),
		status:   make(map[string]int),
		requests: make(map[string]int),
		queries:  make(map[string][]string),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /user/orgs", func(w http.ResponseWriter, r *http.Request) {
		if f.onOrgs != nil {
			f.onOrgs()
		}
		writePage(w, r, f.orgs)
	})
	mux.HandleFunc("GET /orgs/{org}/repos", func(w http.ResponseWriter, r *http.Request) {
		writePage(w, r, f.repos[r.PathValue("org")])
	})
	mux.HandleFunc("GET /orgs/{org}/members", func(w http.ResponseWriter, r *http.Request) {
		writePage(w, r, f.members[r.PathValue("org")])
	})
	mux.HandleFunc("GET /orgs/{org}/public_members", func(w http.ResponseWriter, r *http.Request) {
		writePage(w, r, f.public[r.PathValue("org")])
	})
	mux.HandleFunc("GET /repos/{owner}/{repo}/commits", func(w http.ResponseWriter, r *http.Request) {
		writePage(w, r, f.commits[r.PathValue("owner")+"/"+r.PathValue("repo")])
	})
	mux.HandleFunc("GET /repos/{owner}/{repo}/pulls", func(w http.ResponseWriter, r *http.Request) {
		writePage(w, r, f.pulls[r.PathValue("owner")+"/"+r.PathValue("repo")])
	})
	mux.HandleFunc("GET /repos/{owner}/{repo}/issues", func(w http.ResponseWriter, r *http.Request) {
		writePage(w, r, f.issues[r.PathValue("owner")+"/"+r.PathValue("repo")])
	})

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.requests[r.URL.Path]++
		f.queries[r.URL.Path] = append(f.queries[r.URL.Path], r.URL.RawQuery)
		status, forced := f.status[r.URL.Path]
		f.mu.Unlock()
		if forced {
			w.WriteHeader(status)
			fmt.Fprintf(w, `{"message": "%s"}`, http.StatusText(status))
			return
		}
		mux.ServeHTTP(w, r)
	}))
	t.Cleanup(srv.Close)
	return f, srv
}

func (f *fakeGitHub) requestCount(path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[path]
}

func (f *fakeGitHub) totalRequests() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.requests {
		n += c
	}
	return n
}

func (f *fakeGitHub) rawQueries(path string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.queries[path]...)
}

func writePage[T any](w http.ResponseWriter, r *http.Request, items []T) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))
	if perPage < 1 {
		perPage = 30
	}
	start := min((page-1)*perPage, len(items))
	end := min(start+perPage, len(items))
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(append([]T{}, items[start:end]...))
}

func ghOrg(id int64, login string) *gh.Organization {
	return &gh.Organization{ID: gh.Int64(id), Login: gh.String(login)}
}

func ghRepo(id int64, owner, name string) *gh.Repository {
	return &gh.Repository{
		ID:       gh.Int64(id),
		Name:     gh.String(name),
		FullName: gh.String(owner + "/" + name),
		Owner:    &gh.User{Login: gh.String(owner)},
	}
}

func ghCommits(prefix string, n int) []*gh.RepositoryCommit {
	out := make([]*gh.RepositoryCommit, n)
	base := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	for i := range out {
		date := &gh.Timestamp{Time: base.Add(-time.Duration(i) * time.Hour)}
		out[i] = &gh.RepositoryCommit{
			SHA: gh.String(fmt.Sprintf("%s-%04d", prefix, i)),
			Commit: &gh.Commit{
				Message:   gh.String(fmt.Sprintf("commit %d", i)),
				Author:    &gh.CommitAuthor{Name: gh.String("Ada"), Email: gh.String("ada@example.com"), Date: date},
				Committer: &gh.CommitAuthor{Name: gh.String("Ada"), Email: gh.String("ada@example.com"), Date: date},
			},
		}
	}
	return out
}
