package availability

import (
	"context"
	"fmt"

	"github.com/nikolayk812/storefront-cart/internal/domain"
	"github.com/nikolayk812/storefront-cart/internal/logger"
	"github.com/nikolayk812/storefront-cart/internal/port"
)

// Reconciler patches the cached available flag of cart lines whenever an availability change
// is announced, so lines added before an override catch up with it.
type Reconciler struct {
	repo        port.CartRepository
	logger      *logger.Logger
	unsubscribe func()
}

func NewReconciler(repo port.CartRepository, notifier port.Notifier, logg *logger.Logger) *Reconciler {
	if logg == nil {
		logg = logger.Nop()
	}

	r := &Reconciler{
		repo:   repo,
		logger: logg,
	}
	r.unsubscribe = notifier.OnAvailabilityChanged(func(ctx context.Context, e domain.AvailabilityChanged) {
		if err := r.Apply(ctx, e); err != nil {
			r.logger.WarnErr(r.logger.WithField(ctx, "product_id", e.ID.String()), "reconcile availability", err)
		}
	})

	return r
}

// Apply overwrites the flag of every line whose product id is equivalent to e.ID.
// Lines already carrying the flag are left alone; if none change nothing is written.
func (r *Reconciler) Apply(ctx context.Context, e domain.AvailabilityChanged) error {
	if e.ID.IsZero() {
		return nil
	}

	err := r.repo.Patch(ctx, func(lines []domain.CartLine) ([]domain.CartLine, bool) {
		changed := false
		for i := range lines {
			if lines[i].ProductID.Equivalent(e.ID) && lines[i].Available != e.Available {
				lines[i].Available = e.Available
				changed = true
			}
		}
		return lines, changed
	})
	if err != nil {
		return fmt.Errorf("repo.Patch: %w", err)
	}
	return nil
}

func (r *Reconciler) Close() {
	r.unsubscribe()
}
