package notify

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/nikolayk812/storefront-cart/internal/domain"
	"github.com/nikolayk812/storefront-cart/internal/logger"
	"github.com/nikolayk812/storefront-cart/internal/port"
)

// Bus is the per-session publish/subscribe channel. Handlers run synchronously on the publishing
// goroutine; a failing or panicking handler is logged and the rest still run.
type Bus struct {
	mu     sync.RWMutex
	nextID uint64
	cart   map[uint64]func(context.Context, domain.CartChanged)
	avail  map[uint64]func(context.Context, domain.AvailabilityChanged)
	logger *logger.Logger
}

func NewBus(logg *logger.Logger) *Bus {
	if logg == nil {
		logg = logger.Nop()
	}
	return &Bus{
		cart:   make(map[uint64]func(context.Context, domain.CartChanged)),
		avail:  make(map[uint64]func(context.Context, domain.AvailabilityChanged)),
		logger: logg,
	}
}

func (b *Bus) PublishCartChanged(ctx context.Context, event domain.CartChanged) {
	b.mu.RLock()
	handlers := ordered(b.cart)
	b.mu.RUnlock()

	for _, h := range handlers {
		b.dispatch(ctx, string(event.Op), func() { h(ctx, event) })
	}
}

func (b *Bus) PublishAvailabilityChanged(ctx context.Context, event domain.AvailabilityChanged) {
	b.mu.RLock()
	handlers := ordered(b.avail)
	b.mu.RUnlock()

	for _, h := range handlers {
		b.dispatch(ctx, "availability_changed", func() { h(ctx, event) })
	}
}

func (b *Bus) OnCartChanged(fn func(context.Context, domain.CartChanged)) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.nextID
	b.nextID++
	b.cart[id] = fn
	return b.unsubscriber(func() { delete(b.cart, id) })
}

func (b *Bus) OnAvailabilityChanged(fn func(context.Context, domain.AvailabilityChanged)) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.nextID
	b.nextID++
	b.avail[id] = fn
	return b.unsubscriber(func() { delete(b.avail, id) })
}

func (b *Bus) unsubscriber(remove func()) func() {
	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			remove()
		})
	}
}

func (b *Bus) dispatch(ctx context.Context, eventType string, call func()) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error(
				b.logger.WithField(ctx, "event_type", eventType),
				"handler panicked",
				fmt.Errorf("panic: %v", r),
			)
		}
	}()
	call()
}

// ordered returns handlers in subscription order.
func ordered[T any](m map[uint64]T) []T {
	ids := make([]uint64, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	out := make([]T, 0, len(ids))
	for _, id := range ids {
		out = append(out, m[id])
	}
	return out
}

var _ port.Notifier = (*Bus)(nil)
