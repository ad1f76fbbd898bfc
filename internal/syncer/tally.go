// internal/syncer/tally.go
package syncer

import (
	"time"

	"github-org-mirror/internal/model"
)

// tally is what one unit, organization or repository contributed to a pass. Units return a
// tally and the pass folds them with merge, so there is no shared mutable report.
type tally struct {
	organizations int
	repositories  int
	commits       int
	pullRequests  int
	issues        int
	users         int
	errors        []string
	skipped       []string
}

func (t tally) merge(o tally) tally {
	return tally{
		organizations: t.organizations + o.organizations,
		repositories:  t.repositories + o.repositories,
		commits:       t.commits + o.commits,
		pullRequests:  t.pullRequests + o.pullRequests,
		issues:        t.issues + o.issues,
		users:         t.users + o.users,
		errors:        append(append([]string(nil), t.errors...), o.errors...),
		skipped:       append(append([]string(nil), t.skipped...), o.skipped...),
	}
}

func (t tally) withError(msg string) tally {
	return t.merge(tally{errors: []string{msg}})
}

func (t tally) withSkip(msg string) tally {
	return t.merge(tally{skipped: []string{msg}})
}

func (t tally) report(id string, mode model.SyncMode, at time.Time) model.SyncReport {
	r := model.SyncReport{
		SyncID:        id,
		Mode:          mode,
		Organizations: t.organizations,
		Repositories:  t.repositories,
		Commits:       t.commits,
		PullRequests:  t.pullRequests,
		Issues:        t.issues,
		Users:         t.users,
		Errors:        t.errors,
		Skipped:       t.skipped,
		SyncedAt:      at,
	}
	if r.Errors == nil {
		r.Errors = []string{}
	}
	if r.Skipped == nil {
		r.Skipped = []string{}
	}
	return r
}
