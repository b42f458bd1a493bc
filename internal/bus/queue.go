package bus

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/rxtech-lab/tickerwatch/pkg/errors"
)

// OverflowPolicy decides what Push does when a queue is at capacity.
type OverflowPolicy string

const (
	// OverflowBlock waits for room, for the queue to close, or for the context to end.
	OverflowBlock OverflowPolicy = "block"
	// OverflowDropOldest discards the oldest queued message to make room.
	OverflowDropOldest OverflowPolicy = "drop_oldest"
	// OverflowReject fails the push with ErrQueueFull.
	OverflowReject OverflowPolicy = "reject"
)

// DefaultQueueCapacity is used when no capacity option is given.
const DefaultQueueCapacity = 64

var (
	ErrQueueFull   = errors.New(errors.ErrCodeQueueFull, "queue full")
	ErrQueueClosed = errors.New(errors.ErrCodeQueueClosed, "queue closed")
)

// IsValid reports whether p is a known policy.
func (p OverflowPolicy) IsValid() bool {
	switch p {
	case OverflowBlock, OverflowDropOldest, OverflowReject:
		return true
	default:
		return false
	}
}

type queueOptions struct {
	capacity int
	policy   OverflowPolicy
	onDrop   func()
}

// QueueOption configures a Queue or a Subscription.
type QueueOption func(*queueOptions)

// WithCapacity sets the number of messages a queue buffers.
func WithCapacity(capacity int) QueueOption {
	return func(o *queueOptions) {
		if capacity > 0 {
			o.capacity = capacity
		}
	}
}

// WithPolicy sets the overflow policy.
func WithPolicy(policy OverflowPolicy) QueueOption {
	return func(o *queueOptions) {
		if policy.IsValid() {
			o.policy = policy
		}
	}
}

// WithOnDrop registers a callback invoked for each message discarded by
// OverflowDropOldest.
func WithOnDrop(fn func()) QueueOption {
	return func(o *queueOptions) {
		o.onDrop = fn
	}
}

// Queue is a bounded FIFO with an explicit overflow policy. It is safe for
// concurrent producers and a single consumer ranging over C.
type Queue[T any] struct {
	ch        chan T
	done      chan struct{}
	policy    OverflowPolicy
	onDrop    func()
	dropped   atomic.Uint64
	mu        sync.RWMutex
	closeOnce sync.Once
}

// NewQueue creates a queue. Without options it holds DefaultQueueCapacity
// messages and blocks producers when full.
func NewQueue[T any](opts ...QueueOption) *Queue[T] {
	o := queueOptions{
		capacity: DefaultQueueCapacity,
		policy:   OverflowBlock,
		onDrop:   nil,
	}
	for _, opt := range opts {
		opt(&o)
	}

	return &Queue[T]{
		ch:     make(chan T, o.capacity),
		done:   make(chan struct{}),
		policy: o.policy,
		onDrop: o.onDrop,
	}
}

// Push enqueues v according to the queue's overflow policy.
func (q *Queue[T]) Push(ctx context.Context, v T) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	select {
	case <-q.done:
		return ErrQueueClosed
	default:
	}

	switch q.policy {
	case OverflowReject:
		select {
		case q.ch <- v:
			return nil
		default:
			return ErrQueueFull
		}
	case OverflowDropOldest:
		for {
			select {
			case q.ch <- v:
				return nil
			default:
			}

			select {
			case <-q.ch:
				q.dropped.Add(1)
				if q.onDrop != nil {
					q.onDrop()
				}
			default:
			}
		}
	default:
		select {
		case q.ch <- v:
			return nil
		case <-q.done:
			return ErrQueueClosed
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// C returns the receive side of the queue. It is closed by Close once the
// buffered messages have been drained.
func (q *Queue[T]) C() <-chan T {
	return q.ch
}

// Len returns the number of buffered messages.
func (q *Queue[T]) Len() int {
	return len(q.ch)
}

// Dropped returns how many messages OverflowDropOldest discarded.
func (q *Queue[T]) Dropped() uint64 {
	return q.dropped.Load()
}

// Close stops accepting messages and closes C. Blocked producers return
// ErrQueueClosed. Safe to call more than once.
func (q *Queue[T]) Close() {
	q.closeOnce.Do(func() {
		close(q.done)
		q.mu.Lock()
		close(q.ch)
		q.mu.Unlock()
	})
}
