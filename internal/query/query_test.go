package query

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, opts Options) *Client {
	t.Helper()
	c := NewClient(opts)
	t.Cleanup(c.Close)
	return c
}

func TestFetchCachesValue(t *testing.T) {
	c := newTestClient(t, Options{StaleTime: time.Hour})
	var calls int32

	fn := func(context.Context) (string, error) {
		atomic.AddInt32(&calls, 1)
		return "value", nil
	}

	for i := 0; i < 3; i++ {
		v, err := Fetch(context.Background(), c, "k", fn)
		require.NoError(t, err)
		assert.Equal(t, "value", v)
	}
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
}

func TestFetchDeduplicatesConcurrentCalls(t *testing.T) {
	c := newTestClient(t, Options{StaleTime: time.Hour})
	var calls int32
	release := make(chan struct{})

	fn := func(context.Context) (int, error) {
		atomic.AddInt32(&calls, 1)
		<-release
		return 42, nil
	}

	var wg sync.WaitGroup
	results := make([]int, 5)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, err := Fetch(context.Background(), c, "shared", fn)
			assert.NoError(t, err)
			results[i] = v
		}(i)
	}

	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
	for _, v := range results {
		assert.Equal(t, 42, v)
	}
}

func TestFetchSurvivesFirstCallerCancel(t *testing.T) {
	c := newTestClient(t, Options{StaleTime: time.Hour})
	started := make(chan struct{})
	release := make(chan struct{})

	fn := func(ctx context.Context) (int, error) {
		close(started)
		<-release
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		return 42, nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := Fetch(ctx, c, "shared", fn)
		firstErr <- err
	}()
	<-started

	second := make(chan int, 1)
	go func() {
		v, err := Fetch(context.Background(), c, "shared", fn)
		assert.NoError(t, err)
		second <- v
	}()

	cancel()
	assert.ErrorIs(t, <-firstErr, context.Canceled)

	close(release)
	select {
	case v := <-second:
		assert.Equal(t, 42, v)
	case <-time.After(2 * time.Second):
		t.Fatal("second caller did not get the shared result")
	}

	v, ok := c.Get("shared")
	require.True(t, ok)
	assert.Equal(t, 42, v)
}

func TestInvalidateForcesRefetch(t *testing.T) {
	c := newTestClient(t, Options{StaleTime: time.Hour})
	var calls int32
	fn := func(context.Context) (int32, error) {
		return atomic.AddInt32(&calls, 1), nil
	}

	v, _ := Fetch(context.Background(), c, "fetchIds:null", fn)
	assert.EqualValues(t, 1, v)

	c.Invalidate("fetchIds:null")
	_, ok := c.Get("fetchIds:null")
	assert.False(t, ok)

	v, _ = Fetch(context.Background(), c, "fetchIds:null", fn)
	assert.EqualValues(t, 2, v)
}

func TestInvalidatePrefix(t *testing.T) {
	c := newTestClient(t, Options{})
	c.Set("getUser:1", 1)
	c.Set("getUser:2", 2)
	c.Set("getUsers", 3)

	c.InvalidatePrefix("getUser:")

	_, ok := c.Get("getUser:1")
	assert.False(t, ok)
	_, ok = c.Get("getUser:2")
	assert.False(t, ok)
	_, ok = c.Get("getUsers")
	assert.True(t, ok)
}

func TestSetIfDropsResultAfterInvalidate(t *testing.T) {
	c := newTestClient(t, Options{})

	gen := c.Generation("k")
	c.Invalidate("k")

	assert.False(t, c.SetIf("k", gen, "late"))
	_, ok := c.Get("k")
	assert.False(t, ok)

	assert.True(t, c.SetIf("k", c.Generation("k"), "fresh"))
}

func TestStaleValueServedAndRefreshed(t *testing.T) {
	c := newTestClient(t, Options{StaleTime: time.Millisecond})
	var calls int32
	fn := func(context.Context) (int32, error) {
		return atomic.AddInt32(&calls, 1), nil
	}

	v, _ := Fetch(context.Background(), c, "k", fn)
	assert.EqualValues(t, 1, v)

	time.Sleep(5 * time.Millisecond)

	// Устаревшее значение отдается сразу
	v, _ = Fetch(context.Background(), c, "k", fn)
	assert.EqualValues(t, 1, v)

	require.Eventually(t, func() bool {
		cached, ok := c.Get("k")
		return ok && cached.(int32) == 2
	}, time.Second, 5*time.Millisecond)
}

func TestFetchErrorIsNotCached(t *testing.T) {
	c := newTestClient(t, Options{})
	boom := errors.New("boom")

	_, err := Fetch(context.Background(), c, "k", func(context.Context) (int, error) { return 0, boom })
	assert.ErrorIs(t, err, boom)

	_, ok := c.Get("k")
	assert.False(t, ok)
}

func TestMutationRejectsConcurrentRun(t *testing.T) {
	m := &Mutation{}
	started := make(chan struct{})
	release := make(chan struct{})

	go func() {
		_ = m.Run(context.Background(), func(context.Context) error {
			close(started)
			<-release
			return nil
		})
	}()

	<-started
	assert.True(t, m.IsPending())
	err := m.Run(context.Background(), func(context.Context) error { return nil })
	assert.ErrorIs(t, err, ErrPending)

	close(release)
	require.Eventually(t, func() bool {
		s, _ := m.State()
		return s == Success
	}, time.Second, time.Millisecond)
}

func TestMutationRecordsFailure(t *testing.T) {
	c := newTestClient(t, Options{})
	m := c.Mutation("trash")
	assert.Same(t, m, c.Mutation("trash"))

	boom := errors.New("boom")
	err := m.Run(context.Background(), func(context.Context) error { return boom })
	assert.ErrorIs(t, err, boom)

	s, last := m.State()
	assert.Equal(t, Failed, s)
	assert.Equal(t, "error", s.String())
	assert.ErrorIs(t, last, boom)
}
