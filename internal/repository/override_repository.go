package repository

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/nikolayk812/storefront-cart/internal/domain"
	"github.com/nikolayk812/storefront-cart/internal/logger"
	"github.com/nikolayk812/storefront-cart/internal/port"
)

// OverrideRepository holds admin-set availability flags under `availability_override:<productId>`.
// Overrides never expire and win over whatever the backend reports.
type OverrideRepository struct {
	store    port.KVStore
	notifier port.Notifier
	logger   *logger.Logger
}

func NewOverrides(store port.KVStore, notifier port.Notifier, logg *logger.Logger) *OverrideRepository {
	if logg == nil {
		logg = logger.Nop()
	}
	return &OverrideRepository{
		store:    store,
		notifier: notifier,
		logger:   logg,
	}
}

// Read returns the override stored for productID or, failing that, for the first alias in
// candidates that has one. Ids match exactly after trimming. A value that cannot be parsed,
// or a store failure, reads as no override.
func (r *OverrideRepository) Read(ctx context.Context, productID domain.ProductID, candidates ...domain.ProductID) *bool {
	keys, err := r.store.Keys(ctx, OverridePrefix)
	if err != nil {
		r.logger.WarnErr(ctx, "list availability overrides", err)
		return nil
	}
	if len(keys) == 0 {
		return nil
	}

	stored := make(map[string]string, len(keys))
	for _, key := range keys {
		id := strings.TrimSpace(strings.TrimPrefix(key, OverridePrefix))
		if _, ok := stored[id]; !ok && id != "" {
			stored[id] = key
		}
	}

	for _, id := range append([]domain.ProductID{productID}, candidates...) {
		key, ok := stored[id.String()]
		if !ok {
			continue
		}

		raw, found, err := r.store.Get(ctx, key)
		if err != nil {
			r.logger.WarnErr(r.logger.WithField(ctx, "key", key), "read availability override", err)
			return nil
		}
		if !found {
			continue
		}

		v := parseStoredBool(raw)
		if v == nil {
			r.logger.Debug(r.logger.WithField(ctx, "key", key), domain.ErrMalformedOverride.Error())
		}
		return v
	}

	return nil
}

// Write stores the override and announces it to this session's subscribers.
func (r *OverrideRepository) Write(ctx context.Context, productID domain.ProductID, available bool) error {
	if productID.IsZero() {
		return domain.ErrMissingProductID
	}

	key := OverridePrefix + productID.String()
	if err := r.store.Set(ctx, key, strconv.FormatBool(available)); err != nil {
		return fmt.Errorf("store.Set[%s]: %w", key, err)
	}

	r.notifier.PublishAvailabilityChanged(ctx, domain.AvailabilityChanged{ID: productID, Available: available})
	return nil
}
