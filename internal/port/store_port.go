package port

import "context"

// KVStore is a string key-value store that survives restarts. Nothing is atomic across keys
// except SetMany, and only where the backend supports it.
type KVStore interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	SetMany(ctx context.Context, entries map[string]string) error
	Delete(ctx context.Context, key string) error
	Keys(ctx context.Context, prefix string) ([]string, error)
}

type StoreChange struct {
	Key string
}

// ChangeSource delivers changes written by other sessions of the same store, never the caller's own.
// The channel is closed once ctx is done.
type ChangeSource interface {
	Changes(ctx context.Context) (<-chan StoreChange, error)
}

type SessionStore interface {
	KVStore
	ChangeSource
	Origin() string
}
