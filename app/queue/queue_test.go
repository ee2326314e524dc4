package queue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type interval struct {
	start, end time.Time
}

func waitIdle(t *testing.T, q *Queue) {
	t.Helper()
	require.Eventually(t, func() bool {
		s := q.Stats()
		return !s.Busy && s.Pending == 0
	}, time.Second, time.Millisecond)
}

func TestQueueRunsInOrderWithoutOverlap(t *testing.T) {
	q := New()
	const n = 20

	var mu sync.Mutex
	var order []int
	intervals := make([]interval, n)
	handles := make([]*Handle, n)

	for i := 0; i < n; i++ {
		i := i
		handles[i] = q.Enqueue("unit", func(ctx context.Context) (any, error) {
			start := time.Now()
			time.Sleep(time.Millisecond)
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
			intervals[i] = interval{start: start, end: time.Now()}
			return i, nil
		})
	}

	for i, h := range handles {
		v, err := h.Wait(context.Background())
		require.NoError(t, err)
		assert.Equal(t, i, v)
	}

	for i := 0; i < n; i++ {
		assert.Equal(t, i, order[i])
	}
	for i := 1; i < n; i++ {
		assert.False(t, intervals[i].start.Before(intervals[i-1].end), "unit %d overlapped unit %d", i, i-1)
	}
	waitIdle(t, q)
}

func TestQueueFailureIsolation(t *testing.T) {
	q := New()
	boom := errors.New("boom")

	var mu sync.Mutex
	var ran []int
	record := func(i int) {
		mu.Lock()
		ran = append(ran, i)
		mu.Unlock()
	}

	h0 := q.Enqueue("ok", func(ctx context.Context) (any, error) { record(0); return nil, nil })
	h1 := q.Enqueue("fail", func(ctx context.Context) (any, error) { record(1); return nil, boom })
	h2 := q.Enqueue("panic", func(ctx context.Context) (any, error) { record(2); panic("kaboom") })
	h3 := q.Enqueue("ok", func(ctx context.Context) (any, error) { record(3); return "done", nil })

	_, err := h0.Wait(context.Background())
	assert.NoError(t, err)
	_, err = h1.Wait(context.Background())
	assert.ErrorIs(t, err, boom)
	_, err = h2.Wait(context.Background())
	assert.ErrorContains(t, err, "panicked")
	v, err := h3.Wait(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, "done", v)

	assert.Equal(t, []int{0, 1, 2, 3}, ran)
	waitIdle(t, q)
	s := q.Stats()
	assert.Equal(t, uint64(2), s.Completed)
	assert.Equal(t, uint64(2), s.Failed)
}

func TestQueueEndToEndTraining(t *testing.T) {
	q := New()
	var mu sync.Mutex
	var trained []int
	train := func(digit int) Work {
		return func(ctx context.Context) (any, error) {
			mu.Lock()
			trained = append(trained, digit)
			mu.Unlock()
			return nil, nil
		}
	}

	var handles []*Handle
	for _, d := range []int{1, 2, 3} {
		handles = append(handles, q.Enqueue("train", train(d)))
	}
	for _, h := range handles {
		_, err := h.Wait(context.Background())
		require.NoError(t, err)
	}

	assert.Equal(t, []int{1, 2, 3}, trained)
	waitIdle(t, q)
	s := q.Stats()
	assert.False(t, s.Busy)
	assert.Zero(t, s.Pending)
	assert.Equal(t, uint64(3), s.Completed)
}

func TestDetachedFailureReachesSink(t *testing.T) {
	got := make(chan error, 1)
	var gotLabel string
	q := New(WithErrorSink(func(id uuid.UUID, label string, err error) {
		gotLabel = label
		got <- err
	}))
	boom := errors.New("boom")

	q.Enqueue("fire-and-forget", func(ctx context.Context) (any, error) { return nil, boom }).Detach()

	select {
	case err := <-got:
		assert.ErrorIs(t, err, boom)
		assert.Equal(t, "fire-and-forget", gotLabel)
	case <-time.After(time.Second):
		t.Fatal("detached failure was not reported")
	}
}

func TestDetachedSuccessIsSilent(t *testing.T) {
	called := make(chan struct{}, 1)
	q := New(WithErrorSink(func(uuid.UUID, string, error) { called <- struct{}{} }))

	h := q.Enqueue("ok", func(ctx context.Context) (any, error) { return nil, nil })
	h.Detach()
	<-h.Done()

	select {
	case <-called:
		t.Fatal("sink called for a successful unit")
	case <-time.After(20 * time.Millisecond):
	}
}

func TestWaitGivesUpWithoutCancellingWork(t *testing.T) {
	q := New()
	release := make(chan struct{})
	h := q.Enqueue("slow", func(ctx context.Context) (any, error) {
		<-release
		return "finished", nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := h.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	close(release)
	v, err := h.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "finished", v)
}

func TestTaskTimeout(t *testing.T) {
	q := New(WithTaskTimeout(10 * time.Millisecond))
	h := q.Enqueue("hang", func(ctx context.Context) (any, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	_, err := h.Wait(context.Background())
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestSubmitTyped(t *testing.T) {
	q := New()
	f := Submit(q, "typed", func(ctx context.Context) ([]float64, error) {
		return []float64{0.25, 0.75}, nil
	})
	v, err := f.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []float64{0.25, 0.75}, v)
	assert.NotEqual(t, uuid.Nil, f.ID())
}

func TestCloseDrainsAndRejects(t *testing.T) {
	q := New()
	var ran int
	for i := 0; i < 3; i++ {
		q.Enqueue("unit", func(ctx context.Context) (any, error) {
			time.Sleep(time.Millisecond)
			ran++
			return nil, nil
		})
	}

	require.NoError(t, q.Close(context.Background()))
	assert.Equal(t, 3, ran)

	_, err := q.Enqueue("late", func(ctx context.Context) (any, error) { return nil, nil }).Wait(context.Background())
	assert.ErrorIs(t, err, ErrClosed)
}

func TestCloseDeadlineCancelsRunningWork(t *testing.T) {
	q := New()
	h := q.Enqueue("stuck", func(ctx context.Context) (any, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, q.Close(ctx), context.DeadlineExceeded)

	_, err := h.Wait(context.Background())
	assert.ErrorIs(t, err, context.Canceled)
}
