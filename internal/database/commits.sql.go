// internal/database/commits.sql.go
package database

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const upsertCommit = `-- name: UpsertCommit :exec
INSERT INTO commits (
    integration_id, repository_id, sha, message, author_name, author_email, author_date,
    committer_name, committer_email, committer_date, url, html_url
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
ON CONFLICT (integration_id, repository_id, sha) DO UPDATE SET
    message         = EXCLUDED.message,
    author_name     = EXCLUDED.author_name,
    author_email    = EXCLUDED.author_email,
    author_date     = EXCLUDED.author_date,
    committer_name  = EXCLUDED.committer_name,
    committer_email = EXCLUDED.committer_email,
    committer_date  = EXCLUDED.committer_date,
    url             = EXCLUDED.url,
    html_url        = EXCLUDED.html_url,
    updated_at      = NOW()
`

type UpsertCommitParams struct {
	IntegrationID  int64
	RepositoryID   int64
	Sha            string
	Message        string
	AuthorName     string
	AuthorEmail    string
	AuthorDate     pgtype.Timestamptz
	CommitterName  string
	CommitterEmail string
	CommitterDate  pgtype.Timestamptz
	Url            string
	HtmlUrl        string
}

func (arg UpsertCommitParams) values() []interface{} {
	return []interface{}{
		arg.IntegrationID,
		arg.RepositoryID,
		arg.Sha,
		arg.Message,
		arg.AuthorName,
		arg.AuthorEmail,
		arg.AuthorDate,
		arg.CommitterName,
		arg.CommitterEmail,
		arg.CommitterDate,
		arg.Url,
		arg.HtmlUrl,
	}
}

func (q *Queries) UpsertCommit(ctx context.Context, arg UpsertCommitParams) error {
	_, err := q.db.Exec(ctx, upsertCommit, arg.values()...)
	return err
}

// UpsertCommits queues one upsert per commit and sends them in a single round trip.
func (q *Queries) UpsertCommits(ctx context.Context, arg []UpsertCommitParams) BatchResults {
	batch := &pgx.Batch{}
	for _, a := range arg {
		batch.Queue(upsertCommit, a.values()...)
	}
	br := q.db.SendBatch(ctx, batch)
	return newBatchExecResults(br, len(arg))
}
