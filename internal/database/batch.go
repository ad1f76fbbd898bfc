// internal/database/batch.go
package database

import (
	"errors"

	"github.com/jackc/pgx/v5"
)

// ErrBatchAlreadyClosed is reported for every remaining item once a batch has been closed.
var ErrBatchAlreadyClosed = errors.New("batch already closed")

// BatchResults reports the outcome of each statement queued by a :batchexec query.
type BatchResults interface {
	// Exec calls f once per queued item, in queue order, with that item's error.
	Exec(f func(int, error))
	Close() error
}

type batchExecResults struct {
	br     pgx.BatchResults
	tot    int
	closed bool
}

func newBatchExecResults(br pgx.BatchResults, tot int) *batchExecResults {
	return &batchExecResults{br: br, tot: tot}
}

func (b *batchExecResults) Exec(f func(int, error)) {
	defer b.br.Close()
	for t := 0; t < b.tot; t++ {
		if b.closed {
			if f != nil {
				f(t, ErrBatchAlreadyClosed)
			}
			continue
		}
		_, err := b.br.Exec()
		if f != nil {
			f(t, err)
		}
	}
}

func (b *batchExecResults) Close() error {
	b.closed = true
	return b.br.Close()
}
