package availability

import (
	"context"

	"github.com/nikolayk812/storefront-cart/internal/domain"
)

type OverrideReader interface {
	Read(ctx context.Context, productID domain.ProductID, candidates ...domain.ProductID) *bool
}

// Resolver applies override ?? backend ?? true.
type Resolver struct {
	overrides OverrideReader
}

func NewResolver(overrides OverrideReader) *Resolver {
	return &Resolver{overrides: overrides}
}

func (r *Resolver) Product(ctx context.Context, p domain.Product) bool {
	return domain.EffectiveAvailability(r.overrides.Read(ctx, p.ID), p.Available)
}

// Line treats the cached flag of a cart line as the backend value.
func (r *Resolver) Line(ctx context.Context, line domain.CartLine) bool {
	return domain.EffectiveAvailability(r.overrides.Read(ctx, line.ProductID), domain.Bool(line.Available))
}

// Cart returns a copy of cart with every line's flag resolved.
func (r *Resolver) Cart(ctx context.Context, cart domain.Cart) domain.Cart {
	resolved := cart.Clone()
	for i := range resolved.Lines {
		resolved.Lines[i].Available = r.Line(ctx, resolved.Lines[i])
	}
	return resolved
}
