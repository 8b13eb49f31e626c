package notify

import (
	"context"
	"fmt"

	"github.com/nikolayk812/storefront-cart/internal/domain"
	"github.com/nikolayk812/storefront-cart/internal/logger"
	"github.com/nikolayk812/storefront-cart/internal/port"
)

// Bridge republishes changes written by other sessions as external cart notifications.
type Bridge struct {
	source   port.ChangeSource
	notifier port.Notifier
	watched  func(key string) bool
	logger   *logger.Logger
}

func NewBridge(source port.ChangeSource, notifier port.Notifier, watched func(key string) bool, logg *logger.Logger) *Bridge {
	if logg == nil {
		logg = logger.Nop()
	}
	if watched == nil {
		watched = func(string) bool { return true }
	}
	return &Bridge{
		source:   source,
		notifier: notifier,
		watched:  watched,
		logger:   logg,
	}
}

// Run blocks until ctx is done or the change source closes.
func (b *Bridge) Run(ctx context.Context) error {
	changes, err := b.source.Changes(ctx)
	if err != nil {
		return fmt.Errorf("source.Changes: %w", err)
	}
	for change := range changes {
		if !b.watched(change.Key) {
			continue
		}
		b.logger.Debug(b.logger.WithField(ctx, "storage_key", change.Key), "external storage change")
		b.notifier.PublishCartChanged(ctx, domain.CartChanged{Op: domain.OpExternal, External: true})
	}
	return nil
}
