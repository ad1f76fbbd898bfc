// internal/query/registry.go
package query

import (
	"fmt"

	custom_errors "github-org-mirror/internal/errors"
)

// Kind decides how a filter value is parsed and compared.
type Kind int

const (
	KindText Kind = iota
	KindNumber
	KindTime
	KindBool
)

func (k Kind) String() string {
	switch k {
	case KindNumber:
		return "number"
	case KindTime:
		return "time"
	case KindBool:
		return "bool"
	default:
		return "text"
	}
}

// Collection is a mirrored table exposed for reading. Columns lists every field that may be
// sorted or filtered on; nothing else reaches the generated SQL.
type Collection struct {
	Name         string
	Label        string
	Table        string
	SearchFields []string
	Columns      map[string]Kind
}

var common = map[string]Kind{
	"id":         KindNumber,
	"created_at": KindTime,
	"updated_at": KindTime,
}

func columns(extra map[string]Kind) map[string]Kind {
	out := make(map[string]Kind, len(common)+len(extra))
	for k, v := range common {
		out[k] = v
	}
	for k, v := range extra {
		out[k] = v
	}
	return out
}

var registry = []Collection{
	{
		Name:         "organizations",
		Label:        "Organizations",
		Table:        "organizations",
		SearchFields: []string{"login", "name", "description", "location"},
		Columns: columns(map[string]Kind{
			"external_id":    KindNumber,
			"login":          KindText,
			"name":           KindText,
			"location":       KindText,
			"public_repos":   KindNumber,
			"public_members": KindNumber,
			"followers":      KindNumber,
			"org_created_at": KindTime,
		}),
	},
	{
		Name:         "repositories",
		Label:        "Repositories",
		Table:        "repositories",
		SearchFields: []string{"name", "full_name", "description", "language"},
		Columns: columns(map[string]Kind{
			"external_id":       KindNumber,
			"organization_id":   KindNumber,
			"name":              KindText,
			"full_name":         KindText,
			"language":          KindText,
			"default_branch":    KindText,
			"private":           KindBool,
			"size":              KindNumber,
			"stargazers_count":  KindNumber,
			"forks_count":       KindNumber,
			"open_issues_count": KindNumber,
			"repo_created_at":   KindTime,
			"repo_updated_at":   KindTime,
			"pushed_at":         KindTime,
		}),
	},
	{
		Name:         "commits",
		Label:        "Commits",
		Table:        "commits",
		SearchFields: []string{"sha", "message", "author_name", "author_email"},
		Columns: columns(map[string]Kind{
			"repository_id":  KindNumber,
			"sha":            KindText,
			"author_name":    KindText,
			"author_email":   KindText,
			"committer_name": KindText,
			"author_date":    KindTime,
			"committer_date": KindTime,
		}),
	},
	{
		Name:         "pullrequests",
		Label:        "Pull Requests",
		Table:        "pull_requests",
		SearchFields: []string{"title", "body", "user_login"},
		Columns: columns(map[string]Kind{
			"external_id":   KindNumber,
			"repository_id": KindNumber,
			"number":        KindNumber,
			"title":         KindText,
			"state":         KindText,
			"locked":        KindBool,
			"user_login":    KindText,
			"pr_created_at": KindTime,
			"pr_updated_at": KindTime,
			"closed_at":     KindTime,
			"merged_at":     KindTime,
		}),
	},
	{
		Name:         "issues",
		Label:        "Issues",
		Table:        "issues",
		SearchFields: []string{"title", "body", "user_login"},
		Columns: columns(map[string]Kind{
			"external_id":      KindNumber,
			"repository_id":    KindNumber,
			"number":           KindNumber,
			"title":            KindText,
			"state":            KindText,
			"locked":           KindBool,
			"user_login":       KindText,
			"comments":         KindNumber,
			"issue_created_at": KindTime,
			"issue_updated_at": KindTime,
			"closed_at":        KindTime,
		}),
	},
	{
		Name:         "users",
		Label:        "Users",
		Table:        "users",
		SearchFields: []string{"login", "name", "email", "company"},
		Columns: columns(map[string]Kind{
			"external_id":     KindNumber,
			"organization_id": KindNumber,
			"login":           KindText,
			"name":            KindText,
			"email":           KindText,
			"company":         KindText,
			"location":        KindText,
			"type":            KindText,
			"site_admin":      KindBool,
		}),
	},
}

// Collections returns the registered collections in display order.
func Collections() []Collection {
	return append([]Collection(nil), registry...)
}

// Lookup resolves a collection by name.
func Lookup(name string) (Collection, error) {
	for _, c := range registry {
		if c.Name == name {
			return c, nil
		}
	}
	return Collection{}, fmt.Errorf("%w: %s", custom_errors.ErrUnknownCollection, name)
}
