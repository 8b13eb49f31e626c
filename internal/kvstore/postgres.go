package kvstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nikolayk812/storefront-cart/internal/migrations"
	"github.com/nikolayk812/storefront-cart/internal/port"
)

const pgChangesChannel = "kv_changes"

// Postgres keeps entries in the kv_entries table and signals writes with LISTEN/NOTIFY.
type Postgres struct {
	pool      *pgxpool.Pool
	namespace string
	origin    string
	owned     bool
}

func NewPostgres(ctx context.Context, dsn, namespace string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("pgxpool.New: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pool.Ping: %w", err)
	}
	p := NewPostgresWithPool(pool, namespace)
	p.owned = true
	return p, nil
}

func NewPostgresWithPool(pool *pgxpool.Pool, namespace string) *Postgres {
	if namespace == "" {
		namespace = defaultNamespace
	}
	return &Postgres{
		pool:      pool,
		namespace: namespace,
		origin:    uuid.NewString(),
	}
}

// EnsureSchema applies the kv_entries migration; it is idempotent.
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	ddl, err := migrations.FS.ReadFile(migrations.KVEntries)
	if err != nil {
		return fmt.Errorf("migrations.ReadFile: %w", err)
	}
	if _, err := p.pool.Exec(ctx, string(ddl)); err != nil {
		return fmt.Errorf("pool.Exec: %w", err)
	}
	return nil
}

// Session returns a sibling handle on the same pool with its own origin.
func (p *Postgres) Session() port.SessionStore {
	return NewPostgresWithPool(p.pool, p.namespace)
}

func (p *Postgres) Origin() string {
	return p.origin
}

func (p *Postgres) Close() error {
	if p.owned {
		p.pool.Close()
	}
	return nil
}

func (p *Postgres) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := p.pool.QueryRow(ctx,
		`SELECT value FROM kv_entries WHERE namespace = $1 AND key = $2`,
		p.namespace, key,
	).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("pool.QueryRow: %w", err)
	}
	return value, true, nil
}

func (p *Postgres) Set(ctx context.Context, key, value string) error {
	return p.SetMany(ctx, map[string]string{key: value})
}

func (p *Postgres) SetMany(ctx context.Context, entries map[string]string) error {
	if len(entries) == 0 {
		return nil
	}
	keys := sortedKeys(entries)

	_, err := withTx(ctx, p.pool, func(tx pgx.Tx) (struct{}, error) {
		for _, k := range keys {
			_, err := tx.Exec(ctx,
				`INSERT INTO kv_entries (namespace, key, value, updated_at)
				 VALUES ($1, $2, $3, now())
				 ON CONFLICT (namespace, key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`,
				p.namespace, k, entries[k],
			)
			if err != nil {
				return struct{}{}, fmt.Errorf("tx.Exec upsert[%s]: %w", k, err)
			}
		}
		return struct{}{}, p.notify(ctx, tx, keys)
	})
	return err
}

func (p *Postgres) Delete(ctx context.Context, key string) error {
	_, err := withTx(ctx, p.pool, func(tx pgx.Tx) (int64, error) {
		tag, err := tx.Exec(ctx,
			`DELETE FROM kv_entries WHERE namespace = $1 AND key = $2`,
			p.namespace, key,
		)
		if err != nil {
			return 0, fmt.Errorf("tx.Exec delete: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return 0, nil
		}
		return tag.RowsAffected(), p.notify(ctx, tx, []string{key})
	})
	return err
}

func (p *Postgres) Keys(ctx context.Context, prefix string) ([]string, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT key FROM kv_entries WHERE namespace = $1 AND key LIKE $2 ESCAPE '\' ORDER BY key`,
		p.namespace, escapeLike(prefix)+"%",
	)
	if err != nil {
		return nil, fmt.Errorf("pool.Query: %w", err)
	}
	keys, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("pgx.CollectRows: %w", err)
	}
	return keys, nil
}

func (p *Postgres) Changes(ctx context.Context) (<-chan port.StoreChange, error) {
	conn, err := p.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("pool.Acquire: %w", err)
	}
	if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{pgChangesChannel}.Sanitize()); err != nil {
		conn.Release()
		return nil, fmt.Errorf("conn.Exec listen: %w", err)
	}

	out := make(chan port.StoreChange, changeBuffer)
	go func() {
		defer close(out)
		defer conn.Release()
		defer func() {
			// the connection goes back to the pool; drop the subscription if it is still usable
			_, _ = conn.Exec(context.WithoutCancel(ctx), "UNLISTEN *")
		}()

		for {
			n, err := conn.Conn().WaitForNotification(ctx)
			if err != nil {
				return
			}
			var msg changeMessage
			if err := json.Unmarshal([]byte(n.Payload), &msg); err != nil {
				continue
			}
			if msg.Origin == p.origin || msg.Namespace != p.namespace {
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
	}()
	return out, nil
}

func (p *Postgres) notify(ctx context.Context, tx pgx.Tx, keys []string) error {
	payload, err := json.Marshal(changeMessage{Origin: p.origin, Namespace: p.namespace, Keys: keys})
	if err != nil {
		return fmt.Errorf("json.Marshal: %w", err)
	}
	if _, err := tx.Exec(ctx, `SELECT pg_notify($1, $2)`, pgChangesChannel, string(payload)); err != nil {
		return fmt.Errorf("tx.Exec pg_notify: %w", err)
	}
	return nil
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

func sortedKeys(entries map[string]string) []string {
	keys := make([]string, 0, len(entries))
	for k := range entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
