package queue

import (
	"context"

	"github.com/google/uuid"
)

// Handle tracks one enqueued unit of work.
type Handle struct {
	id     uuid.UUID
	label  string
	queue  *Queue
	done   chan struct{}
	result any
	err    error
}

func newHandle(q *Queue, label string) *Handle {
	return &Handle{id: uuid.New(), label: label, queue: q, done: make(chan struct{})}
}

func (h *Handle) complete(result any, err error) {
	h.result = result
	h.err = err
	close(h.done)
}

func (h *Handle) ID() uuid.UUID {
	return h.id
}

// Done is closed once the unit has finished.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Wait blocks until the unit finishes or ctx is done. Giving up on the wait
// does not remove the unit from the queue.
func (h *Handle) Wait(ctx context.Context) (any, error) {
	select {
	case <-h.done:
		return h.result, h.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Detach gives up ownership of the result. A failure is reported to the queue's error sink.
func (h *Handle) Detach() {
	sink := h.queue.sink
	go func() {
		<-h.done
		if h.err != nil && sink != nil {
			sink(h.id, h.label, h.err)
		}
	}()
}

// Future is a typed view over a Handle.
type Future[T any] struct {
	*Handle
}

// Submit enqueues fn and returns a typed future for its result.
func Submit[T any](q *Queue, label string, fn func(ctx context.Context) (T, error)) *Future[T] {
	h := q.Enqueue(label, func(ctx context.Context) (any, error) {
		v, err := fn(ctx)
		return v, err
	})
	return &Future[T]{Handle: h}
}

func (f *Future[T]) Wait(ctx context.Context) (T, error) {
	var zero T
	v, err := f.Handle.Wait(ctx)
	if err != nil {
		return zero, err
	}
	out, _ := v.(T)
	return out, nil
}
