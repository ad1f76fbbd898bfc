// internal/query/query_test.go
package query

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	custom_errors "github-org-mirror/internal/errors"
	"github-org-mirror/internal/model"
)

type mockIntegrations struct {
	mock.Mock
}

func (m *mockIntegrations) GetActiveIntegration(ctx context.Context, userID, provider string) (model.Integration, error) {
	args := m.Called(ctx, userID, provider)
	return args.Get(0).(model.Integration), args.Error(1)
}

func mustLookup(t *testing.T, name string) Collection {
	c, err := Lookup(name)
	require.NoError(t, err)
	return c
}

func TestLookup(t *testing.T) {
	for _, name := range []string{"organizations", "repositories", "commits", "pullrequests", "issues", "users"} {
		c, err := Lookup(name)
		require.NoError(t, err, name)
		assert.NotEmpty(t, c.Table)
		assert.NotEmpty(t, c.SearchFields)
		assert.Contains(t, c.Columns, "created_at")
	}

	_, err := Lookup("integrations")
	assert.ErrorIs(t, err, custom_errors.ErrUnknownCollection)
}

func TestBuildList(t *testing.T) {
	t.Run("applies defaults", func(t *testing.T) {
		stmt, err := buildList(mustLookup(t, "commits"), 7, ListParams{})

		require.NoError(t, err)
		assert.Equal(t, "SELECT * FROM commits WHERE integration_id = $1 ORDER BY created_at DESC, id DESC LIMIT $2 OFFSET $3", stmt.sel)
		assert.Equal(t, "SELECT COUNT(*) FROM commits WHERE integration_id = $1", stmt.count)
		assert.Equal(t, []any{int64(7)}, stmt.args)
		assert.Equal(t, 1, stmt.page)
		assert.Equal(t, DefaultLimit, stmt.limit)
		assert.Equal(t, 0, stmt.offset)
	})

	t.Run("clamps the limit and computes the offset", func(t *testing.T) {
		stmt, err := buildList(mustLookup(t, "commits"), 7, ListParams{Page: 3, Limit: 10_000})

		require.NoError(t, err)
		assert.Equal(t, MaxLimit, stmt.limit)
		assert.Equal(t, 2*MaxLimit, stmt.offset)
	})

	t.Run("searches every search field with one escaped pattern", func(t *testing.T) {
		stmt, err := buildList(mustLookup(t, "users"), 1, ListParams{Search: "50%_off"})

		require.NoError(t, err)
		assert.Contains(t, stmt.count, "(login ILIKE $2 OR name ILIKE $2 OR email ILIKE $2 OR company ILIKE $2)")
		assert.Equal(t, []any{int64(1), `%50\%\_off%`}, stmt.args)
	})

	t.Run("searches organizations by location", func(t *testing.T) {
		stmt, err := buildList(mustLookup(t, "organizations"), 1, ListParams{Search: "Lagos"})

		require.NoError(t, err)
		assert.Contains(t, stmt.count, "(login ILIKE $2 OR name ILIKE $2 OR description ILIKE $2 OR location ILIKE $2)")
	})

	t.Run("renders typed filters in a stable order", func(t *testing.T) {
		stmt, err := buildList(mustLookup(t, "repositories"), 1, ListParams{
			SortField: "stargazers_count",
			SortOrder: "ASC",
			Filters: map[string]string{
				"language":          "Go, Rust",
				"private":           "false",
				"pushed_at":         "2024-01-02",
				"open_issues_count": "3",
				"name":              "api",
			},
		})

		require.NoError(t, err)
		assert.Equal(t,
			"SELECT COUNT(*) FROM repositories WHERE integration_id = $1 AND language = ANY($2) AND name ILIKE $3 AND open_issues_count = $4 AND private = $5 AND pushed_at >= $6",
			stmt.count)
		assert.Contains(t, stmt.sel, "ORDER BY stargazers_count ASC, id ASC LIMIT $7 OFFSET $8")
		assert.Equal(t, []any{
			int64(1),
			[]string{"Go", "Rust"},
			"%api%",
			int64(3),
			false,
			time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
		}, stmt.args)
	})

	t.Run("matches a list of numbers", func(t *testing.T) {
		stmt, err := buildList(mustLookup(t, "commits"), 1, ListParams{Filters: map[string]string{"repository_id": "10,11"}})

		require.NoError(t, err)
		assert.Contains(t, stmt.count, "repository_id = ANY($2)")
		assert.Equal(t, []int64{10, 11}, stmt.args[1])
	})

	t.Run("commits have no external id", func(t *testing.T) {
		commits := mustLookup(t, "commits")
		assert.NotContains(t, commits.Columns, "external_id")

		for _, p := range []ListParams{
			{SortField: "external_id"},
			{Filters: map[string]string{"external_id": "5"}},
		} {
			_, err := buildList(commits, 1, p)

			var qErr *custom_errors.InvalidQueryError
			require.ErrorAs(t, err, &qErr)
			assert.Contains(t, qErr.Error(), "external_id")
		}
	})

	t.Run("rejects bad input", func(t *testing.T) {
		cases := map[string]ListParams{
			"unknown sort field":   {SortField: "access_token"},
			"bad sort order":       {SortOrder: "sideways"},
			"unknown filter field": {Filters: map[string]string{"access_token": "x"}},
			"non-numeric number":   {Filters: map[string]string{"size": "big"}},
			"bad time":             {Filters: map[string]string{"pushed_at": "yesterday"}},
			"bad bool":             {Filters: map[string]string{"private": "maybe"}},
		}
		for name, p := range cases {
			t.Run(name, func(t *testing.T) {
				_, err := buildList(mustLookup(t, "repositories"), 1, p)

				var qErr *custom_errors.InvalidQueryError
				assert.ErrorAs(t, err, &qErr)
			})
		}
	})
}

func TestService_List_RequiresIntegration(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	integrations := new(mockIntegrations)
	integrations.On("GetActiveIntegration", mock.Anything, "u1", model.ProviderGitHub).
		Return(model.Integration{}, custom_errors.ErrIntegrationNotFound).Once()
	svc := NewService(nil, integrations, logger)

	_, err := svc.List(context.Background(), "u1", "commits", ListParams{})

	assert.ErrorIs(t, err, custom_errors.ErrIntegrationNotFound)
	integrations.AssertExpectations(t)
}

func TestService_List_UnknownCollection(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	integrations := new(mockIntegrations)
	svc := NewService(nil, integrations, logger)

	_, err := svc.List(context.Background(), "u1", "secrets", ListParams{})

	assert.ErrorIs(t, err, custom_errors.ErrUnknownCollection)
	integrations.AssertNotCalled(t, "GetActiveIntegration", mock.Anything, mock.Anything, mock.Anything)
}

func TestService_Search_RejectsEmptyQuery(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	svc := NewService(nil, new(mockIntegrations), logger)

	_, err := svc.Search(context.Background(), "u1", "  ", 10)

	var qErr *custom_errors.InvalidQueryError
	assert.ErrorAs(t, err, &qErr)
}
