package repository

import (
	"context"
	"fmt"
	"sync"

	"github.com/nikolayk812/storefront-cart/internal/domain"
	"github.com/nikolayk812/storefront-cart/internal/logger"
	"github.com/nikolayk812/storefront-cart/internal/port"
	"golang.org/x/text/currency"
)

const defaultLineName = "Product"

// cartRepository keeps one session's view of the cart in memory and persists every mutation to
// both `cart` and `cartItems`. A mutation only counts once the store reads it back.
type cartRepository struct {
	store    port.KVStore
	notifier port.Notifier
	currency currency.Unit
	logger   *logger.Logger

	mu   sync.Mutex
	cart domain.Cart

	unsubscribe func()
}

func NewCart(ctx context.Context, store port.KVStore, notifier port.Notifier, cur currency.Unit, logg *logger.Logger) (port.CartRepository, error) {
	if store == nil {
		return nil, fmt.Errorf("store is nil")
	}
	if notifier == nil {
		return nil, fmt.Errorf("notifier is nil")
	}
	if logg == nil {
		logg = logger.Nop()
	}

	r := &cartRepository{
		store:    store,
		notifier: notifier,
		currency: cur,
		logger:   logg,
	}

	if err := r.Reload(ctx); err != nil {
		return nil, fmt.Errorf("r.Reload: %w", err)
	}

	r.unsubscribe = notifier.OnCartChanged(func(ctx context.Context, e domain.CartChanged) {
		if !e.External {
			return
		}
		if err := r.Reload(ctx); err != nil {
			r.logger.WarnErr(ctx, "reload cart after external change", err)
		}
	})

	return r, nil
}

// Close stops reloading on external changes. The cart stays readable and writable.
func (r *cartRepository) Close() {
	r.mu.Lock()
	unsubscribe := r.unsubscribe
	r.unsubscribe = nil
	r.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
}

func (r *cartRepository) Cart() domain.Cart {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.cart.Clone()
}

func (r *cartRepository) Items() []domain.CartLine {
	return r.Cart().Lines
}

func (r *cartRepository) Subtotal() domain.Money {
	return r.Cart().Subtotal(r.currency)
}

func (r *cartRepository) AddItem(ctx context.Context, product domain.Product, qty int) error {
	if product.ID.IsZero() {
		r.logger.Debug(ctx, "add to cart ignored: product has no id")
		return nil
	}

	qty = domain.ClampQuantity(qty)
	key := product.Key()
	event := domain.CartChanged{Op: domain.OpAdd, Key: key, ProductID: product.ID, Quantity: qty}
	return r.mutate(ctx, &event, func(lines []domain.CartLine) ([]domain.CartLine, bool) {
		for i := range lines {
			if lines[i].Key != key {
				continue
			}
			lines[i].Quantity = domain.ClampQuantity(domain.ClampQuantity(lines[i].Quantity) + qty)
			if product.Available != nil {
				lines[i].Available = *product.Available
			}
			return lines, true
		}

		return append(lines, newLine(product, qty, r.currency)), true
	})
}

func (r *cartRepository) SetQuantity(ctx context.Context, key string, qty int) error {
	event := domain.CartChanged{Op: domain.OpSetQuantity, Key: key}
	return r.mutate(ctx, &event, func(lines []domain.CartLine) ([]domain.CartLine, bool) {
		for i := range lines {
			if lines[i].Key == key {
				lines[i].Quantity = domain.ClampQuantity(qty)
				event.ProductID = lines[i].ProductID
				return lines, true
			}
		}
		return lines, false
	})
}

func (r *cartRepository) RemoveItem(ctx context.Context, key string) error {
	event := domain.CartChanged{Op: domain.OpRemove, Key: key}
	return r.mutate(ctx, &event, func(lines []domain.CartLine) ([]domain.CartLine, bool) {
		kept := lines[:0]
		for _, line := range lines {
			if line.Key == key {
				event.ProductID = line.ProductID
				continue
			}
			kept = append(kept, line)
		}
		return kept, len(kept) != len(lines)
	})
}

func (r *cartRepository) Clear(ctx context.Context) error {
	return r.mutate(ctx, &domain.CartChanged{Op: domain.OpClear}, func([]domain.CartLine) ([]domain.CartLine, bool) {
		return []domain.CartLine{}, true
	})
}

func (r *cartRepository) Patch(ctx context.Context, fn port.PatchFunc) error {
	if fn == nil {
		return fmt.Errorf("patch func is nil")
	}
	return r.mutate(ctx, &domain.CartChanged{Op: domain.OpPatch}, fn)
}

// Replace swaps in lines as given, filling in missing keys and clamping quantities.
func (r *cartRepository) Replace(ctx context.Context, lines []domain.CartLine) error {
	next := make([]domain.CartLine, 0, len(lines))
	seen := make(map[string]struct{}, len(lines))
	for _, line := range lines {
		if line.Key == "" {
			line.Key = domain.ComputeKey(line.ProductID, line.Variant.Color, line.Variant.Size)
		}
		if _, dup := seen[line.Key]; dup {
			continue
		}
		seen[line.Key] = struct{}{}
		line.Quantity = domain.ClampQuantity(line.Quantity)
		next = append(next, line)
	}

	return r.mutate(ctx, &domain.CartChanged{Op: domain.OpReplace}, func([]domain.CartLine) ([]domain.CartLine, bool) {
		return next, true
	})
}

// Reload replaces the in-memory cart with what the store holds, without notifying.
func (r *cartRepository) Reload(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	lines, err := r.readLines(ctx)
	if err != nil {
		return fmt.Errorf("r.readLines: %w", err)
	}

	r.cart = domain.Cart{Lines: lines}
	return nil
}

// mutate re-reads storage right before applying fn so writes from other sessions are not lost,
// writes both keys and then verifies them. fn may fill in event; subscribers are notified outside the lock.
func (r *cartRepository) mutate(ctx context.Context, event *domain.CartChanged, fn port.PatchFunc) error {
	r.mu.Lock()

	current, err := r.readLines(ctx)
	if err != nil {
		r.mu.Unlock()
		return fmt.Errorf("%w: r.readLines: %w", domain.ErrCartNotUpdated, err)
	}

	next, changed := fn(cloneLines(current))
	if !changed {
		r.cart = domain.Cart{Lines: current}
		r.mu.Unlock()
		return nil
	}

	if err := r.persist(ctx, next); err != nil {
		r.restore(ctx, current)
		r.mu.Unlock()

		r.logger.WarnErr(r.logger.WithField(ctx, "op", string(event.Op)), "cart write not verified", err)
		return fmt.Errorf("%w: %w", domain.ErrCartNotUpdated, err)
	}
	r.mu.Unlock()

	r.notifier.PublishCartChanged(ctx, *event)
	return nil
}

// persist must be called with r.mu held. On success r.cart holds exactly what was read back.
func (r *cartRepository) persist(ctx context.Context, lines []domain.CartLine) error {
	payload, err := encodeLines(lines)
	if err != nil {
		return fmt.Errorf("encodeLines: %w", err)
	}

	if err := r.store.SetMany(ctx, map[string]string{KeyCart: payload, KeyCartItems: payload}); err != nil {
		return fmt.Errorf("store.SetMany: %w", err)
	}

	for _, key := range []string{KeyCart, KeyCartItems} {
		got, ok, err := r.store.Get(ctx, key)
		if err != nil {
			return fmt.Errorf("store.Get[%s]: %w", key, err)
		}
		if !ok || got != payload {
			return fmt.Errorf("read-back mismatch for %s", key)
		}
	}

	persisted, err := decodeLines(payload, r.currency)
	if err != nil {
		return fmt.Errorf("decodeLines: %w", err)
	}
	r.cart = domain.Cart{Lines: persisted}
	return nil
}

// restore puts the pre-mutation lines back on both keys after a failed write, best effort.
// r.cart keeps the pre-mutation state either way.
func (r *cartRepository) restore(ctx context.Context, previous []domain.CartLine) {
	r.cart = domain.Cart{Lines: previous}

	payload, err := encodeLines(previous)
	if err != nil {
		return
	}
	if err := r.store.SetMany(ctx, map[string]string{KeyCart: payload, KeyCartItems: payload}); err != nil {
		r.logger.Debug(ctx, "restore previous cart failed: "+err.Error())
	}
}

// readLines prefers `cart` and falls back to `cartItems` when `cart` is missing or empty.
// A malformed value reads as an empty cart.
func (r *cartRepository) readLines(ctx context.Context) ([]domain.CartLine, error) {
	var lines []domain.CartLine

	for _, key := range []string{KeyCart, KeyCartItems} {
		raw, ok, err := r.store.Get(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("store.Get[%s]: %w", key, err)
		}
		if !ok {
			continue
		}

		decoded, err := decodeLines(raw, r.currency)
		if err != nil {
			r.logger.WarnErr(r.logger.WithField(ctx, "key", key), "stored cart is malformed", err)
			continue
		}
		if len(decoded) > 0 {
			lines = decoded
			break
		}
	}

	if lines == nil {
		lines = []domain.CartLine{}
	}
	return lines, nil
}

func newLine(product domain.Product, qty int, cur currency.Unit) domain.CartLine {
	name := product.Name
	if name == "" {
		name = defaultLineName
	}

	return domain.CartLine{
		Key:          product.Key(),
		ProductID:    product.ID,
		Name:         name,
		Price:        domain.NewMoney(product.Price, cur),
		Image:        product.PrimaryImage(),
		Quantity:     domain.ClampQuantity(qty),
		MainCategory: product.MainCategory,
		SubCategory:  product.SubCategory,
		Available:    domain.EffectiveAvailability(nil, product.Available),
		Variant:      product.Variant,
	}
}

func cloneLines(lines []domain.CartLine) []domain.CartLine {
	out := make([]domain.CartLine, len(lines))
	copy(out, lines)
	return out
}
