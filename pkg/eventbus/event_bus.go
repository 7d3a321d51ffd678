package eventbus

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/pocotu/oficri-areas/pkg/serrors"
)

// Handler receives one published value. A returned error does not stop delivery
// to the remaining handlers.
type Handler[T any] func(ctx context.Context, v T) error

var ErrNoSubscribers = serrors.NewError("EVENTBUS_NO_SUBSCRIBERS", "no matching subscribers", "")

// Bus is an in-process, synchronous publisher for one value type.
type Bus[T any] struct {
	log *logrus.Logger

	mu     sync.RWMutex
	nextID int
	subs   map[int]Handler[T]
	order  []int
}

func New[T any](log *logrus.Logger) *Bus[T] {
	return &Bus[T]{log: log, subs: make(map[int]Handler[T])}
}

// Subscribe registers h and returns a function that removes it again.
func (b *Bus[T]) Subscribe(h Handler[T]) (unsubscribe func()) {
	if h == nil {
		panic("eventbus: nil handler")
	}
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = h
	b.order = append(b.order, id)
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { b.remove(id) })
	}
}

func (b *Bus[T]) remove(id int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.subs, id)
	for i, v := range b.order {
		if v == id {
			b.order = append(b.order[:i], b.order[i+1:]...)
			return
		}
	}
}

func (b *Bus[T]) SubscribersCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

func (b *Bus[T]) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs = make(map[int]Handler[T])
	b.order = nil
}

// Publish delivers v to every handler in subscription order. Handler panics are
// recovered and reported as errors. Publishing with no subscribers only logs.
func (b *Bus[T]) Publish(ctx context.Context, v T) error {
	err := b.PublishE(ctx, v)
	if errors.Is(err, ErrNoSubscribers) {
		if b.log != nil {
			b.log.Debugf("eventbus.Publish: no subscribers for %T", v)
		}
		return nil
	}
	if err != nil && b.log != nil {
		b.log.WithError(err).Warnf("eventbus.Publish: %T handler failed", v)
	}
	return err
}

// PublishE is Publish without the logging; it returns ErrNoSubscribers when nobody listens.
func (b *Bus[T]) PublishE(ctx context.Context, v T) error {
	b.mu.RLock()
	handlers := make([]Handler[T], 0, len(b.order))
	for _, id := range b.order {
		handlers = append(handlers, b.subs[id])
	}
	b.mu.RUnlock()

	if len(handlers) == 0 {
		return ErrNoSubscribers
	}

	var errs []error
	for i, h := range handlers {
		if err := call(ctx, h, v); err != nil {
			errs = append(errs, fmt.Errorf("handler %d: %w", i, err))
		}
	}
	return errors.Join(errs...)
}

func call[T any](ctx context.Context, h Handler[T], v T) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("eventbus: handler panicked: %v", r)
		}
	}()
	return h(ctx, v)
}
