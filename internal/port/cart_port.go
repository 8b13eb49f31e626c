package port

import (
	"context"

	"github.com/nikolayk812/storefront-cart/internal/domain"
)

type CartRepository interface {
	Cart() domain.Cart
	Items() []domain.CartLine
	Subtotal() domain.Money
	AddItem(ctx context.Context, product domain.Product, qty int) error
	SetQuantity(ctx context.Context, key string, qty int) error
	RemoveItem(ctx context.Context, key string) error
	Clear(ctx context.Context) error
	Patch(ctx context.Context, fn PatchFunc) error
	Replace(ctx context.Context, lines []domain.CartLine) error
	Reload(ctx context.Context) error
	// Close releases the subscription to external changes.
	Close()
}

// PatchFunc edits a copy of the current lines and reports whether anything changed.
type PatchFunc func(lines []domain.CartLine) ([]domain.CartLine, bool)
