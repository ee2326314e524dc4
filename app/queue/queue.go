// Package queue runs units of work one at a time, in the order they were enqueued.
package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"GoEvolveAI/app/logging"
)

var ErrClosed = errors.New("queue closed")

// Work is a unit of work. The context is cancelled when the task timeout
// elapses or the queue is abandoned during shutdown.
type Work func(ctx context.Context) (any, error)

// ErrorSink receives failures of detached units.
type ErrorSink func(id uuid.UUID, label string, err error)

type Stats struct {
	Pending   int    `json:"pending"`
	Busy      bool   `json:"busy"`
	Completed uint64 `json:"completed"`
	Failed    uint64 `json:"failed"`
}

type Option func(*Queue)

// WithTaskTimeout bounds every unit of work.
func WithTaskTimeout(d time.Duration) Option {
	return func(q *Queue) { q.taskTimeout = d }
}

func WithErrorSink(sink ErrorSink) Option {
	return func(q *Queue) { q.sink = sink }
}

type Queue struct {
	mu          sync.Mutex
	pending     []*item
	busy        bool
	closed      bool
	idle        chan struct{}
	completed   uint64
	failed      uint64
	taskTimeout time.Duration
	sink        ErrorSink

	ctx    context.Context
	cancel context.CancelFunc
}

type item struct {
	label      string
	work       Work
	enqueuedAt time.Time
	handle     *Handle
}

func New(opts ...Option) *Queue {
	ctx, cancel := context.WithCancel(context.Background())
	q := &Queue{ctx: ctx, cancel: cancel, sink: logSink}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

func logSink(id uuid.UUID, label string, err error) {
	logging.Log("❌ Detached task failed", slog.LevelError, "task", id.String(), "label", label, "error", err)
}

// Enqueue appends work to the queue and returns immediately. Failures are
// delivered only through the returned handle.
func (q *Queue) Enqueue(label string, work Work) *Handle {
	h := newHandle(q, label)

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		h.complete(nil, ErrClosed)
		return h
	}
	q.pending = append(q.pending, &item{label: label, work: work, enqueuedAt: time.Now(), handle: h})
	start := !q.busy
	if start {
		q.busy = true
		q.idle = make(chan struct{})
	}
	q.mu.Unlock()

	logging.Inc(context.Background(), "queue_tasks_total", "label", label)
	if start {
		go q.drain()
	}
	return h
}

// drain runs pending items until the queue is empty, then marks it idle.
func (q *Queue) drain() {
	for {
		q.mu.Lock()
		if len(q.pending) == 0 {
			q.busy = false
			close(q.idle)
			q.mu.Unlock()
			return
		}
		next := q.pending[0]
		q.pending[0] = nil
		q.pending = q.pending[1:]
		q.mu.Unlock()

		result, err := q.run(next)

		q.mu.Lock()
		if err != nil {
			q.failed++
		} else {
			q.completed++
		}
		q.mu.Unlock()

		if err != nil {
			logging.Inc(context.Background(), "queue_tasks_failed", "label", next.label)
		}
		next.handle.complete(result, err)
	}
}

func (q *Queue) run(it *item) (result any, err error) {
	ctx := q.ctx
	if q.taskTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, q.taskTimeout)
		defer cancel()
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task %s panicked: %v", it.label, r)
		}
	}()
	if wait := time.Since(it.enqueuedAt); wait > time.Second {
		logging.Log("⏳ Task waited in queue", slog.LevelDebug, "label", it.label, "wait", wait.String())
	}
	return it.work(ctx)
}

func (q *Queue) Stats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()
	return Stats{
		Pending:   len(q.pending),
		Busy:      q.busy,
		Completed: q.completed,
		Failed:    q.failed,
	}
}

// Close stops accepting work and waits for the pending units to finish. When
// ctx expires first, running work is cancelled and ctx.Err() is returned.
func (q *Queue) Close(ctx context.Context) error {
	q.mu.Lock()
	q.closed = true
	idle := q.idle
	busy := q.busy
	q.mu.Unlock()

	if !busy {
		q.cancel()
		return nil
	}
	select {
	case <-idle:
		q.cancel()
		return nil
	case <-ctx.Done():
		q.cancel()
		return ctx.Err()
	}
}
