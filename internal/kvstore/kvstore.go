package kvstore

import (
	"context"
	"fmt"

	"github.com/nikolayk812/storefront-cart/internal/config"
	"github.com/nikolayk812/storefront-cart/internal/port"
)

const defaultNamespace = "storefront"

// Backend hands out sessions sharing one underlying store.
type Backend interface {
	Session() port.SessionStore
	Close() error
}

// changeMessage is the cross-session change signal carried by redis pub/sub and pg_notify.
type changeMessage struct {
	Origin    string   `json:"origin"`
	Namespace string   `json:"namespace"`
	Keys      []string `json:"keys"`
}

func Open(ctx context.Context, cfg *config.Config) (Backend, error) {
	switch cfg.Store.Driver {
	case config.StoreDriverMemory:
		return NewMemory(WithQuota(cfg.Store.QuotaBytes)), nil
	case config.StoreDriverRedis:
		r, err := NewRedis(ctx, cfg.Redis, cfg.Store.Namespace)
		if err != nil {
			return nil, fmt.Errorf("NewRedis: %w", err)
		}
		return r, nil
	case config.StoreDriverPostgres:
		p, err := NewPostgres(ctx, cfg.Postgres.DSN, cfg.Store.Namespace)
		if err != nil {
			return nil, fmt.Errorf("NewPostgres: %w", err)
		}
		if err := p.EnsureSchema(ctx); err != nil {
			_ = p.Close()
			return nil, fmt.Errorf("p.EnsureSchema: %w", err)
		}
		return p, nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}
