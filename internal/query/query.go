// internal/query/query.go
package query

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"golang.org/x/sync/errgroup"

	"github-org-mirror/internal/database"
	custom_errors "github-org-mirror/internal/errors"
	"github-org-mirror/internal/model"
)

const (
	DefaultLimit = 50
	MaxLimit     = 500
)

// ListParams selects one page of a collection.
type ListParams struct {
	Page      int
	Limit     int
	SortField string
	SortOrder string
	Search    string
	Filters   map[string]string
}

// ListResult is one page of documents plus paging totals.
type ListResult struct {
	Data       []map[string]any `json:"data"`
	Total      int64            `json:"total"`
	Page       int              `json:"page"`
	Limit      int              `json:"limit"`
	TotalPages int              `json:"totalPages"`
}

// IntegrationLookup resolves the integration whose documents a caller may read.
type IntegrationLookup interface {
	GetActiveIntegration(ctx context.Context, userID, provider string) (model.Integration, error)
}

// Service reads mirrored collections on behalf of a user.
type Service struct {
	db           database.DBTX
	integrations IntegrationLookup
	logger       *slog.Logger
}

func NewService(db database.DBTX, integrations IntegrationLookup, logger *slog.Logger) *Service {
	return &Service{db: db, integrations: integrations, logger: logger}
}

// List returns one page of the named collection, scoped to the user's active integration.
func (s *Service) List(ctx context.Context, userID, collection string, p ListParams) (ListResult, error) {
	c, err := Lookup(collection)
	if err != nil {
		return ListResult{}, err
	}
	integration, err := s.integrations.GetActiveIntegration(ctx, userID, model.ProviderGitHub)
	if err != nil {
		return ListResult{}, err
	}
	return s.list(ctx, c, integration.ID, p)
}

func (s *Service) list(ctx context.Context, c Collection, integrationID int64, p ListParams) (ListResult, error) {
	stmt, err := buildList(c, integrationID, p)
	if err != nil {
		return ListResult{}, err
	}

	var total int64
	if err := s.db.QueryRow(ctx, stmt.count, stmt.args...).Scan(&total); err != nil {
		return ListResult{}, fmt.Errorf("counting %s: %w", c.Name, err)
	}

	rows, err := s.db.Query(ctx, stmt.sel, append(stmt.args, stmt.limit, stmt.offset)...)
	if err != nil {
		return ListResult{}, fmt.Errorf("listing %s: %w", c.Name, err)
	}
	data, err := pgx.CollectRows(rows, pgx.RowToMap)
	if err != nil {
		return ListResult{}, fmt.Errorf("reading %s: %w", c.Name, err)
	}
	if data == nil {
		data = []map[string]any{}
	}

	return ListResult{
		Data:       data,
		Total:      total,
		Page:       stmt.page,
		Limit:      stmt.limit,
		TotalPages: int((total + int64(stmt.limit) - 1) / int64(stmt.limit)),
	}, nil
}

// Search looks for q in every collection at once and tags each hit with its collection.
func (s *Service) Search(ctx context.Context, userID, q string, limit int) ([]map[string]any, error) {
	if strings.TrimSpace(q) == "" {
		return nil, &custom_errors.InvalidQueryError{Field: "query", Reason: "must not be empty"}
	}
	integration, err := s.integrations.GetActiveIntegration(ctx, userID, model.ProviderGitHub)
	if err != nil {
		return nil, err
	}

	results := make([][]map[string]any, len(registry))
	g, gctx := errgroup.WithContext(ctx)
	for i, c := range registry {
		g.Go(func() error {
			res, err := s.list(gctx, c, integration.ID, ListParams{Limit: limit, Search: q})
			if err != nil {
				return err
			}
			for _, doc := range res.Data {
				doc["_collection"] = c.Name
			}
			results[i] = res.Data
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := []map[string]any{}
	for _, docs := range results {
		out = append(out, docs...)
	}
	s.logger.Debug("Searched collections", "user_id", userID, "hits", len(out))
	return out, nil
}

type listStatement struct {
	sel    string
	count  string
	args   []any
	page   int
	limit  int
	offset int
}

// buildList renders the count and page queries. Column names only ever come from the
// registry; user input travels as bind parameters. The page query takes limit and offset
// as the two parameters after args.
func buildList(c Collection, integrationID int64, p ListParams) (listStatement, error) {
	page := p.Page
	if page < 1 {
		page = 1
	}
	limit := p.Limit
	if limit < 1 {
		limit = DefaultLimit
	}
	limit = min(limit, MaxLimit)

	sortField := p.SortField
	if sortField == "" {
		sortField = "created_at"
	}
	if _, ok := c.Columns[sortField]; !ok {
		return listStatement{}, &custom_errors.InvalidQueryError{Field: "sortField", Reason: "unknown field " + sortField}
	}
	order := "DESC"
	switch strings.ToLower(p.SortOrder) {
	case "", "desc":
	case "asc":
		order = "ASC"
	default:
		return listStatement{}, &custom_errors.InvalidQueryError{Field: "sortOrder", Reason: "must be asc or desc"}
	}

	args := []any{integrationID}
	where := []string{"integration_id = $1"}
	bind := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}

	if search := strings.TrimSpace(p.Search); search != "" && len(c.SearchFields) > 0 {
		ph := bind("%" + escapeLike(search) + "%")
		ors := make([]string, len(c.SearchFields))
		for i, f := range c.SearchFields {
			ors[i] = f + " ILIKE " + ph
		}
		where = append(where, "("+strings.Join(ors, " OR ")+")")
	}

	for _, field := range sortedKeys(p.Filters) {
		cond, err := filterCondition(c, field, p.Filters[field], bind)
		if err != nil {
			return listStatement{}, err
		}
		where = append(where, cond)
	}

	clause := strings.Join(where, " AND ")
	n := len(args)
	return listStatement{
		sel: fmt.Sprintf("SELECT * FROM %s WHERE %s ORDER BY %s %s, id %s LIMIT $%d OFFSET $%d",
			c.Table, clause, sortField, order, order, n+1, n+2),
		count:  fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s", c.Table, clause),
		args:   args,
		page:   page,
		limit:  limit,
		offset: (page - 1) * limit,
	}, nil
}

func filterCondition(c Collection, field, raw string, bind func(any) string) (string, error) {
	kind, ok := c.Columns[field]
	if !ok {
		return "", &custom_errors.InvalidQueryError{Field: field, Reason: "unknown field"}
	}
	raw = strings.TrimSpace(raw)

	switch kind {
	case KindNumber:
		parts := splitList(raw)
		nums := make([]int64, 0, len(parts))
		for _, part := range parts {
			n, err := strconv.ParseInt(part, 10, 64)
			if err != nil {
				return "", &custom_errors.InvalidQueryError{Field: field, Reason: "expected a number"}
			}
			nums = append(nums, n)
		}
		if len(nums) == 1 {
			return field + " = " + bind(nums[0]), nil
		}
		return field + " = ANY(" + bind(nums) + ")", nil
	case KindTime:
		t, err := parseTime(raw)
		if err != nil {
			return "", &custom_errors.InvalidQueryError{Field: field, Reason: "expected an RFC 3339 time or a date"}
		}
		return field + " >= " + bind(t), nil
	case KindBool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return "", &custom_errors.InvalidQueryError{Field: field, Reason: "expected true or false"}
		}
		return field + " = " + bind(b), nil
	default:
		if parts := splitList(raw); len(parts) > 1 {
			return field + " = ANY(" + bind(parts) + ")", nil
		}
		return field + " ILIKE " + bind("%"+escapeLike(raw)+"%"), nil
	}
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return []string{raw}
	}
	return out
}

func parseTime(raw string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	return time.Parse(time.DateOnly, raw)
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
