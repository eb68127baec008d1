package fanout

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAll_PreservesOrder(t *testing.T) {
	items := []int{5, 1, 4, 2, 3}
	out, err := All(context.Background(), items, func(_ context.Context, n int) (int, error) {
		// Later items finish first.
		time.Sleep(time.Duration(n) * time.Millisecond)
		return n * 10, nil
	})
	require.NoError(t, err)
	assert.Equal(t, []int{50, 10, 40, 20, 30}, out)
}

func TestAll_Empty(t *testing.T) {
	out, err := All(context.Background(), nil, func(context.Context, string) (int, error) {
		t.Fatal("fn must not be called")
		return 0, nil
	})
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestAll_FirstErrorCancelsSiblings(t *testing.T) {
	boom := errors.New("boom")
	var cancelled atomic.Int32

	out, err := All(context.Background(), []int{0, 1, 2}, func(ctx context.Context, n int) (int, error) {
		if n == 0 {
			return 0, boom
		}
		select {
		case <-ctx.Done():
			cancelled.Add(1)
			return 0, ctx.Err()
		case <-time.After(5 * time.Second):
			return n, nil
		}
	})
	assert.ErrorIs(t, err, boom)
	assert.Nil(t, out)
	assert.EqualValues(t, 2, cancelled.Load())
}

func TestAllLimit_BoundsConcurrency(t *testing.T) {
	var inFlight, peak atomic.Int32
	items := make([]int, 20)
	_, err := AllLimit(context.Background(), 3, items, func(context.Context, int) (struct{}, error) {
		n := inFlight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(2 * time.Millisecond)
		inFlight.Add(-1)
		return struct{}{}, nil
	})
	require.NoError(t, err)
	assert.LessOrEqual(t, peak.Load(), int32(3))
}

func TestJoin2(t *testing.T) {
	a, b, err := Join2(context.Background(),
		func(context.Context) (string, error) { return "x", nil },
		func(context.Context) (int, error) { return 7, nil },
	)
	require.NoError(t, err)
	assert.Equal(t, "x", a)
	assert.Equal(t, 7, b)

	boom := errors.New("boom")
	a, b, err = Join2(context.Background(),
		func(context.Context) (string, error) { return "x", nil },
		func(context.Context) (int, error) { return 7, boom },
	)
	assert.ErrorIs(t, err, boom)
	assert.Zero(t, a)
	assert.Zero(t, b)
}

func TestJoin3(t *testing.T) {
	a, b, c, err := Join3(context.Background(),
		func(context.Context) (int, error) { return 1, nil },
		func(context.Context) (bool, error) { return true, nil },
		func(context.Context) ([]string, error) { return []string{"z"}, nil },
	)
	require.NoError(t, err)
	assert.Equal(t, 1, a)
	assert.True(t, b)
	assert.Equal(t, []string{"z"}, c)

	boom := errors.New("boom")
	_, _, _, err = Join3(context.Background(),
		func(context.Context) (int, error) { return 0, boom },
		func(ctx context.Context) (bool, error) { <-ctx.Done(); return false, ctx.Err() },
		func(context.Context) ([]string, error) { return nil, nil },
	)
	assert.ErrorIs(t, err, boom)
}
