// Package bus is the in-process publish/subscribe layer between pipeline
// stages. A Bus is an ordinary value built once at startup and handed to
// every stage; there is no global registry.
package bus

import (
	"context"
	"sync"

	"github.com/rxtech-lab/tickerwatch/pkg/errors"
	"go.uber.org/multierr"
)

var ErrClosed = errors.New(errors.ErrCodeBusClosed, "event bus closed")

// Topic names a stream of messages of type T.
type Topic[T any] struct {
	name string
}

// NewTopic declares a typed topic.
func NewTopic[T any](name string) Topic[T] {
	return Topic[T]{name: name}
}

// Name returns the topic name.
func (t Topic[T]) Name() string {
	return t.name
}

type subscriber interface {
	deliver(ctx context.Context, msg any) error
	close()
}

// Bus delivers every published message to each subscriber registered on the
// topic at publish time. Delivery order across subscribers is unspecified.
type Bus struct {
	mu     sync.RWMutex
	subs   map[string]map[uint64]subscriber
	nextID uint64
	closed bool
}

// New creates an empty bus.
func New() *Bus {
	return &Bus{
		mu:     sync.RWMutex{},
		subs:   make(map[string]map[uint64]subscriber),
		nextID: 0,
		closed: false,
	}
}

// Subscription is one subscriber's bounded inbox on a topic.
type Subscription[T any] struct {
	id    uint64
	topic string
	bus   *Bus
	queue *Queue[T]
}

// Subscribe registers a new subscriber. Messages published before this call
// are not delivered to it.
func Subscribe[T any](b *Bus, topic Topic[T], opts ...QueueOption) (*Subscription[T], error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, errors.Wrapf(errors.ErrCodeBusClosed, nil, "subscribe to %s", topic.name)
	}

	b.nextID++
	sub := &Subscription[T]{
		id:    b.nextID,
		topic: topic.name,
		bus:   b,
		queue: NewQueue[T](opts...),
	}

	if b.subs[topic.name] == nil {
		b.subs[topic.name] = make(map[uint64]subscriber)
	}

	b.subs[topic.name][sub.id] = sub

	return sub, nil
}

// Publish delivers msg to every current subscriber of topic. A failing
// subscriber does not prevent delivery to the others; all failures are
// combined into the returned error. Publishing to a topic nobody listens on
// succeeds.
func Publish[T any](ctx context.Context, b *Bus, topic Topic[T], msg T) error {
	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()

		return errors.Wrapf(errors.ErrCodeBusClosed, nil, "publish to %s", topic.name)
	}

	targets := make([]subscriber, 0, len(b.subs[topic.name]))
	for _, s := range b.subs[topic.name] {
		targets = append(targets, s)
	}
	b.mu.RUnlock()

	var err error
	for _, s := range targets {
		err = multierr.Append(err, s.deliver(ctx, msg))
	}

	if err == nil {
		return nil
	}

	if b.IsClosed() && errors.HasCode(err, errors.ErrCodeQueueClosed) {
		return errors.Wrapf(errors.ErrCodeBusClosed, err, "publish to %s", topic.name)
	}

	return errors.Wrapf(errors.GetCode(err), err, "publish to %s", topic.name)
}

// SubscriberCount returns the number of live subscribers on a topic.
func (b *Bus) SubscriberCount(topic string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return len(b.subs[topic])
}

// IsClosed reports whether Close has been called.
func (b *Bus) IsClosed() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return b.closed
}

// Close closes every subscription. Later publishes fail with ErrClosed.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}

	b.closed = true
	for _, topicSubs := range b.subs {
		for _, s := range topicSubs {
			s.close()
		}
	}

	b.subs = make(map[string]map[uint64]subscriber)
}

// C returns the channel the subscriber reads from.
func (s *Subscription[T]) C() <-chan T {
	return s.queue.C()
}

// Dropped returns how many messages this subscription discarded on overflow.
func (s *Subscription[T]) Dropped() uint64 {
	return s.queue.Dropped()
}

// Topic returns the topic name.
func (s *Subscription[T]) Topic() string {
	return s.topic
}

// Unsubscribe removes the subscription from the bus and closes its channel.
func (s *Subscription[T]) Unsubscribe() {
	s.bus.mu.Lock()
	if topicSubs, ok := s.bus.subs[s.topic]; ok {
		delete(topicSubs, s.id)
	}
	s.bus.mu.Unlock()

	s.queue.Close()
}

func (s *Subscription[T]) deliver(ctx context.Context, msg any) error {
	typed, ok := msg.(T)
	if !ok {
		return errors.Newf(errors.ErrCodeTopicMismatch, "topic %s: unexpected message type %T", s.topic, msg)
	}

	return s.queue.Push(ctx, typed)
}

func (s *Subscription[T]) close() {
	s.queue.Close()
}
