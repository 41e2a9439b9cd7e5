// Package queue provides the bounded, multi-producer/multi-consumer handoff
// between the Batcher and the Processor.
package queue

import (
	"context"
	"errors"

	"github.com/borelli28/siembackend/internal/batch"
)

// ErrClosed is returned by Enqueue once the queue has been closed.
var ErrClosed = errors.New("queue: closed")

// Queue is a bounded FIFO of batch.Batch values. Any number of producers may
// call Enqueue and any number of consumers may call Dequeue; each enqueued
// Batch is observed by exactly one consumer. It is backed by a buffered
// channel, so ordering is FIFO per-producer with no total order guaranteed
// across producers.
type Queue struct {
	ch chan batch.Batch
}

// New creates a Queue with the given capacity. A non-positive capacity is
// treated as a capacity of 1 so the type always blocks correctly rather
// than panicking on make.
func New(capacity int) *Queue {
	if capacity <= 0 {
		capacity = 1
	}
	return &Queue{ch: make(chan batch.Batch, capacity)}
}

// Enqueue blocks while the queue is full; use EnqueueContext to bound the
// wait with a context. It implements batch.Sink so a Batcher can push
// directly into a Queue.
func (q *Queue) Enqueue(b batch.Batch) error {
	return q.EnqueueContext(context.Background(), b)
}

// EnqueueContext is Enqueue with cancellation support.
func (q *Queue) EnqueueContext(ctx context.Context, b batch.Batch) (err error) {
	defer func() {
		if recover() != nil {
			err = ErrClosed
		}
	}()
	select {
	case q.ch <- b:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Dequeue blocks while the queue is empty, or until ctx is cancelled. The
// bool return is false (with a zero Batch) when the queue was closed and
// drained, matching the `<-chan` idiom.
func (q *Queue) Dequeue(ctx context.Context) (batch.Batch, bool, error) {
	select {
	case b, ok := <-q.ch:
		if !ok {
			return batch.Batch{}, false, nil
		}
		return b, true, nil
	case <-ctx.Done():
		return batch.Batch{}, false, ctx.Err()
	}
}

// IsEmpty is advisory only: under concurrent use the result may be stale by
// the time the caller acts on it.
func (q *Queue) IsEmpty() bool {
	return len(q.ch) == 0
}

// Len is advisory, same caveat as IsEmpty.
func (q *Queue) Len() int {
	return len(q.ch)
}

// Close signals no further values will be enqueued. Consumers already
// blocked in Dequeue on a closed, empty queue receive (zero, false, nil).
// Closing an already-closed Queue panics, matching close(chan) semantics.
func (q *Queue) Close() {
	close(q.ch)
}
