package port

import (
	"context"

	"github.com/nikolayk812/storefront-cart/internal/domain"
)

type Notifier interface {
	PublishCartChanged(ctx context.Context, event domain.CartChanged)
	PublishAvailabilityChanged(ctx context.Context, event domain.AvailabilityChanged)
	OnCartChanged(fn func(context.Context, domain.CartChanged)) (unsubscribe func())
	OnAvailabilityChanged(fn func(context.Context, domain.AvailabilityChanged)) (unsubscribe func())
}
