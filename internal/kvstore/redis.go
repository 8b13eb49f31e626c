package kvstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/nikolayk812/storefront-cart/internal/config"
	"github.com/nikolayk812/storefront-cart/internal/port"
	"github.com/redis/go-redis/v9"
)

const scanCount = 100

// Redis keeps entries under a namespace prefix and publishes every write on the namespace's
// changes channel.
type Redis struct {
	client    redis.UniversalClient
	namespace string
	origin    string
	owned     bool
}

func NewRedis(ctx context.Context, cfg config.RedisConfig, namespace string) (*Redis, error) {
	opts, err := optionsFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	r := NewRedisWithClient(client, namespace)
	r.owned = true
	return r, nil
}

func NewRedisWithClient(client redis.UniversalClient, namespace string) *Redis {
	if namespace == "" {
		namespace = defaultNamespace
	}
	return &Redis{
		client:    client,
		namespace: namespace,
		origin:    uuid.NewString(),
	}
}

func optionsFromConfig(cfg config.RedisConfig) (*redis.Options, error) {
	if cfg.URL == "" && cfg.Address == "" {
		return nil, errors.New("redis url or address is required")
	}
	var opts *redis.Options
	if cfg.URL != "" {
		parsed, err := redis.ParseURL(cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("parsing redis url: %w", err)
		}
		opts = parsed
	} else {
		opts = &redis.Options{
			Addr:     cfg.Address,
			Password: cfg.Password,
			DB:       cfg.DB,
		}
	}
	if opts.DB == 0 {
		opts.DB = cfg.DB
	}
	if opts.PoolSize == 0 {
		opts.PoolSize = cfg.PoolSize
	}
	if opts.MinIdleConns == 0 {
		opts.MinIdleConns = cfg.MinIdleConns
	}
	if opts.DialTimeout == 0 {
		opts.DialTimeout = cfg.DialTimeout
	}
	if opts.ReadTimeout == 0 {
		opts.ReadTimeout = cfg.ReadTimeout
	}
	if opts.WriteTimeout == 0 {
		opts.WriteTimeout = cfg.WriteTimeout
	}
	return opts, nil
}

func (r *Redis) Session() port.SessionStore {
	return NewRedisWithClient(r.client, r.namespace)
}

func (r *Redis) Origin() string {
	return r.origin
}

func (r *Redis) Close() error {
	if !r.owned {
		return nil
	}
	return r.client.Close()
}

func (r *Redis) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := r.client.Get(ctx, r.key(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("client.Get: %w", err)
	}
	return v, true, nil
}

func (r *Redis) Set(ctx context.Context, key, value string) error {
	return r.SetMany(ctx, map[string]string{key: value})
}

// SetMany writes all entries and the change signal in one MULTI/EXEC.
func (r *Redis) SetMany(ctx context.Context, entries map[string]string) error {
	if len(entries) == 0 {
		return nil
	}
	keys := sortedKeys(entries)
	payload, err := r.changePayload(keys)
	if err != nil {
		return err
	}

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, k := range keys {
			pipe.Set(ctx, r.key(k), entries[k], 0)
		}
		pipe.Publish(ctx, r.channel(), payload)
		return nil
	})
	if err != nil {
		return fmt.Errorf("client.TxPipelined: %w", err)
	}
	return nil
}

func (r *Redis) Delete(ctx context.Context, key string) error {
	payload, err := r.changePayload([]string{key})
	if err != nil {
		return err
	}
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, r.key(key))
		pipe.Publish(ctx, r.channel(), payload)
		return nil
	})
	if err != nil {
		return fmt.Errorf("client.TxPipelined: %w", err)
	}
	return nil
}

func (r *Redis) Keys(ctx context.Context, prefix string) ([]string, error) {
	var (
		cursor uint64
		keys   []string
	)
	match := escapeGlob(r.key(prefix)) + "*"
	for {
		batch, next, err := r.client.Scan(ctx, cursor, match, scanCount).Result()
		if err != nil {
			return nil, fmt.Errorf("client.Scan: %w", err)
		}
		for _, k := range batch {
			keys = append(keys, strings.TrimPrefix(k, r.namespace+":"))
		}
		if next == 0 {
			break
		}
		cursor = next
	}
	return dedupeSorted(keys), nil
}

func (r *Redis) Changes(ctx context.Context) (<-chan port.StoreChange, error) {
	ps := r.client.Subscribe(ctx, r.channel())
	// wait for the subscription to be confirmed so no publish after return is missed
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("ps.Receive: %w", err)
	}

	out := make(chan port.StoreChange, changeBuffer)
	go func() {
		defer close(out)
		defer ps.Close()

		msgs := ps.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case m, ok := <-msgs:
				if !ok {
					return
				}
				var msg changeMessage
				if err := json.Unmarshal([]byte(m.Payload), &msg); err != nil {
					continue
				}
				if msg.Origin == r.origin {
					continue
				}
				for _, k := range msg.Keys {
					select {
					case out <- port.StoreChange{Key: k}:
					case <-ctx.Done():
						return
					}
				}
			}
		}
	}()
	return out, nil
}

func (r *Redis) changePayload(keys []string) (string, error) {
	payload, err := json.Marshal(changeMessage{Origin: r.origin, Namespace: r.namespace, Keys: keys})
	if err != nil {
		return "", fmt.Errorf("json.Marshal: %w", err)
	}
	return string(payload), nil
}

func (r *Redis) key(k string) string {
	return r.namespace + ":" + k
}

func (r *Redis) channel() string {
	return r.namespace + ":changes"
}

func escapeGlob(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`, `[`, `\[`, `]`, `\]`)
	return r.Replace(s)
}

// dedupeSorted sorts keys and drops the duplicates SCAN may return.
func dedupeSorted(keys []string) []string {
	if len(keys) == 0 {
		return nil
	}
	seen := make(map[string]string, len(keys))
	for _, k := range keys {
		seen[k] = k
	}
	return sortedKeys(seen)
}
