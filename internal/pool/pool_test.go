package pool_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yonasBSD/freebsd-godate/internal/pool"
)

func TestRunAllSucceed(t *testing.T) {
	reqs := []int{1, 2, 3, 4, 5}
	result, err := pool.Run(context.Background(), pool.Limits{Network: 2}, pool.Network,
		"ctl", nil, reqs,
		func(_ context.Context, control string, req int) (int, error) {
			return req * 2, nil
		}, nil)

	require.NoError(t, err)
	assert.True(t, result.OK())
	assert.ElementsMatch(t, []int{2, 4, 6, 8, 10}, result.Successes)
}

func TestRunPartialFailureDoesNotAbortPeers(t *testing.T) {
	reqs := []int{1, 2, 3, 4}
	result, err := pool.Run(context.Background(), pool.DefaultLimits(), pool.CPU,
		struct{}{}, nil, reqs,
		func(_ context.Context, _ struct{}, req int) (int, error) {
			if req == 3 {
				return 0, errors.New("boom")
			}
			return req, nil
		}, nil)

	require.NoError(t, err)
	assert.Len(t, result.Successes, 3)
	assert.Len(t, result.Failures, 1)
	assert.Equal(t, 3, result.Failures[0].Request)
}

func TestRunEmpty(t *testing.T) {
	result, err := pool.Run[struct{}, int, int](context.Background(), pool.DefaultLimits(), pool.CPU,
		struct{}{}, nil, nil,
		func(_ context.Context, _ struct{}, req int) (int, error) { return req, nil }, nil)
	require.NoError(t, err)
	assert.Empty(t, result.Successes)
	assert.Empty(t, result.Failures)
}

func TestRunProgress(t *testing.T) {
	reqs := []int{1, 2, 3}
	var calls int
	_, err := pool.Run(context.Background(), pool.DefaultLimits(), pool.CPU,
		struct{}{}, nil, reqs,
		func(_ context.Context, _ struct{}, req int) (int, error) { return req, nil },
		func(done, total int) {
			calls++
			assert.Equal(t, 3, total)
		})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestCloneControlPerWorker(t *testing.T) {
	type ctl struct{ n int }
	reqs := []int{1, 2, 3}
	seen := make(chan int, len(reqs))
	_, err := pool.Run(context.Background(), pool.DefaultLimits(), pool.CPU,
		ctl{n: 1},
		func(c ctl) ctl { return ctl{n: c.n + 1} },
		reqs,
		func(_ context.Context, c ctl, req int) (int, error) {
			seen <- c.n
			return req, nil
		}, nil)
	require.NoError(t, err)
	close(seen)
	for n := range seen {
		assert.Equal(t, 2, n)
	}
}
