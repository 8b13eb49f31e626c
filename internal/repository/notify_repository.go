package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nikolayk812/storefront-cart/internal/domain"
	"github.com/nikolayk812/storefront-cart/internal/port"
)

// NotifyRequestRepository remembers the products a shopper asked to hear about once back in stock.
type NotifyRequestRepository struct {
	store port.KVStore
}

func NewNotifyRequests(store port.KVStore) *NotifyRequestRepository {
	return &NotifyRequestRepository{store: store}
}

// Add records productID once and reports whether it was new.
func (r *NotifyRequestRepository) Add(ctx context.Context, productID domain.ProductID) (bool, error) {
	if productID.IsZero() {
		return false, domain.ErrMissingProductID
	}

	ids, err := r.List(ctx)
	if err != nil {
		return false, fmt.Errorf("r.List: %w", err)
	}
	for _, id := range ids {
		if id.Equivalent(productID) {
			return false, nil
		}
	}

	stored := make([]string, 0, len(ids)+1)
	for _, id := range ids {
		stored = append(stored, id.String())
	}
	stored = append(stored, productID.String())

	b, err := json.Marshal(stored)
	if err != nil {
		return false, fmt.Errorf("json.Marshal: %w", err)
	}
	if err := r.store.Set(ctx, KeyNotifyRequests, string(b)); err != nil {
		return false, fmt.Errorf("store.Set[%s]: %w", KeyNotifyRequests, err)
	}
	return true, nil
}

func (r *NotifyRequestRepository) Has(ctx context.Context, productID domain.ProductID) (bool, error) {
	ids, err := r.List(ctx)
	if err != nil {
		return false, fmt.Errorf("r.List: %w", err)
	}
	for _, id := range ids {
		if id.Equivalent(productID) {
			return true, nil
		}
	}
	return false, nil
}

// List reads the stored ids; a malformed list reads as empty.
func (r *NotifyRequestRepository) List(ctx context.Context) ([]domain.ProductID, error) {
	raw, ok, err := r.store.Get(ctx, KeyNotifyRequests)
	if err != nil {
		return nil, fmt.Errorf("store.Get[%s]: %w", KeyNotifyRequests, err)
	}
	if !ok || raw == "" {
		return nil, nil
	}

	var ids []domain.ProductID
	if err := json.Unmarshal([]byte(raw), &ids); err != nil {
		return nil, nil
	}

	out := ids[:0]
	for _, id := range ids {
		if !id.IsZero() {
			out = append(out, id)
		}
	}
	return out, nil
}
