// internal/github/pager_test.go
package github

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fakePager(perPage int, delay time.Duration, pages [][]int, failAt int) (*Pager[int], *[]PageParams) {
	var calls []PageParams
	return &Pager[int]{
		perPage: perPage,
		delay:   delay,
		fetch: func(ctx context.Context, p PageParams) (Page[int], error) {
			calls = append(calls, p)
			if p.Page == failAt {
				return Page[int]{}, errors.New("boom")
			}
			if p.Page > len(pages) {
				return Page[int]{}, nil
			}
			items := pages[p.Page-1]
			return Page[int]{Items: items, HasMore: len(items) >= p.PerPage}, nil
		},
	}, &calls
}

func TestPager_StopsOnShortPage(t *testing.T) {
	pager, calls := fakePager(2, 0, [][]int{{1, 2}, {3}}, 0)

	var got []int
	for items, err := range pager.Pages(context.Background()) {
		require.NoError(t, err)
		got = append(got, items...)
	}

	assert.Equal(t, []int{1, 2, 3}, got)
	assert.Equal(t, []PageParams{{Page: 1, PerPage: 2}, {Page: 2, PerPage: 2}}, *calls)
}

func TestPager_StopsOnEmptyPage(t *testing.T) {
	pager, calls := fakePager(2, 0, [][]int{{1, 2}}, 0)

	var got []int
	for items, err := range pager.Pages(context.Background()) {
		require.NoError(t, err)
		got = append(got, items...)
	}

	assert.Equal(t, []int{1, 2}, got)
	assert.Len(t, *calls, 2, "a full last page needs one more request to observe the end")
}

func TestPager_YieldsErrorAndStops(t *testing.T) {
	pager, calls := fakePager(1, 0, [][]int{{1}, {2}, {3}}, 2)

	var got []int
	var gotErr error
	for items, err := range pager.Pages(context.Background()) {
		if err != nil {
			gotErr = err
			continue
		}
		got = append(got, items...)
	}

	assert.Equal(t, []int{1}, got)
	assert.EqualError(t, gotErr, "boom")
	assert.Len(t, *calls, 2)
}

func TestPager_DelaysBetweenPages(t *testing.T) {
	pager, _ := fakePager(1, 30*time.Millisecond, [][]int{{1}, {2}, {3}}, 0)

	start := time.Now()
	n := 0
	for _, err := range pager.Pages(context.Background()) {
		require.NoError(t, err)
		n++
	}

	assert.Equal(t, 3, n)
	// Three pages plus the empty terminator: three delays.
	assert.GreaterOrEqual(t, time.Since(start), 90*time.Millisecond)
}

func TestPager_ConsumerCanStopEarly(t *testing.T) {
	pager, calls := fakePager(1, 0, [][]int{{1}, {2}, {3}}, 0)

	for range pager.Pages(context.Background()) {
		break
	}

	assert.Len(t, *calls, 1)
}

func TestPager_CancelledDuringDelay(t *testing.T) {
	pager, _ := fakePager(1, time.Hour, [][]int{{1}, {2}}, 0)
	ctx, cancel := context.WithCancel(context.Background())

	var gotErr error
	for _, err := range pager.Pages(ctx) {
		if err != nil {
			gotErr = err
			continue
		}
		cancel()
	}

	assert.ErrorIs(t, gotErr, context.Canceled)
}
