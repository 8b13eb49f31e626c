package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/nikolayk812/storefront-cart/internal/domain"
	"github.com/nikolayk812/storefront-cart/internal/port"
)

// SyncStateRepository persists what the sync agent needs across restarts: the server cart id,
// the product to server line mapping and the bearer token.
type SyncStateRepository struct {
	store port.KVStore
}

func NewSyncState(store port.KVStore) *SyncStateRepository {
	return &SyncStateRepository{store: store}
}

func (r *SyncStateRepository) CartID(ctx context.Context) (domain.CartID, error) {
	raw, ok, err := r.store.Get(ctx, KeyCartID)
	if err != nil {
		return "", fmt.Errorf("store.Get[%s]: %w", KeyCartID, err)
	}
	if !ok {
		return "", nil
	}
	return domain.CartID(strings.TrimSpace(raw)), nil
}

func (r *SyncStateRepository) SaveCartID(ctx context.Context, id domain.CartID) error {
	if id.IsZero() {
		return fmt.Errorf("cart id is empty")
	}
	if err := r.store.Set(ctx, KeyCartID, id.String()); err != nil {
		return fmt.Errorf("store.Set[%s]: %w", KeyCartID, err)
	}
	return nil
}

// Token returns the bearer token, preferring `access` over the older `token` key.
func (r *SyncStateRepository) Token(ctx context.Context) (string, error) {
	for _, key := range []string{KeyAccessToken, KeyLegacyToken} {
		raw, ok, err := r.store.Get(ctx, key)
		if err != nil {
			return "", fmt.Errorf("store.Get[%s]: %w", key, err)
		}
		if token := strings.TrimSpace(raw); ok && token != "" {
			return token, nil
		}
	}
	return "", nil
}

func (r *SyncStateRepository) ServerItemID(ctx context.Context, productID domain.ProductID) (string, bool, error) {
	m, err := r.serverMap(ctx)
	if err != nil {
		return "", false, fmt.Errorf("r.serverMap: %w", err)
	}
	id, ok := m[productID.String()]
	if !ok || id.IsZero() {
		return "", false, nil
	}
	return id.String(), true, nil
}

func (r *SyncStateRepository) SaveServerItemID(ctx context.Context, productID domain.ProductID, serverID string) error {
	if productID.IsZero() {
		return domain.ErrMissingProductID
	}

	m, err := r.serverMap(ctx)
	if err != nil {
		return fmt.Errorf("r.serverMap: %w", err)
	}
	m[productID.String()] = domain.ProductID(serverID)

	return r.saveServerMap(ctx, m)
}

func (r *SyncStateRepository) ForgetServerItemID(ctx context.Context, productID domain.ProductID) error {
	m, err := r.serverMap(ctx)
	if err != nil {
		return fmt.Errorf("r.serverMap: %w", err)
	}
	if _, ok := m[productID.String()]; !ok {
		return nil
	}
	delete(m, productID.String())

	return r.saveServerMap(ctx, m)
}

// serverMap reads `cartServerMap`; server ids may have been stored as numbers.
func (r *SyncStateRepository) serverMap(ctx context.Context) (map[string]domain.ProductID, error) {
	m := map[string]domain.ProductID{}

	raw, ok, err := r.store.Get(ctx, KeyCartServerMap)
	if err != nil {
		return nil, fmt.Errorf("store.Get[%s]: %w", KeyCartServerMap, err)
	}
	if !ok || raw == "" {
		return m, nil
	}
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return map[string]domain.ProductID{}, nil
	}
	return m, nil
}

func (r *SyncStateRepository) saveServerMap(ctx context.Context, m map[string]domain.ProductID) error {
	b, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("json.Marshal: %w", err)
	}
	if err := r.store.Set(ctx, KeyCartServerMap, string(b)); err != nil {
		return fmt.Errorf("store.Set[%s]: %w", KeyCartServerMap, err)
	}
	return nil
}
