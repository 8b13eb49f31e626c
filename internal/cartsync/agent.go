// Package cartsync mirrors the local cart to the server cart, best effort. Local state is
// authoritative: nothing here may fail, block or roll back a cart mutation.
package cartsync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nikolayk812/storefront-cart/internal/backend"
	"github.com/nikolayk812/storefront-cart/internal/domain"
	"github.com/nikolayk812/storefront-cart/internal/logger"
	"github.com/nikolayk812/storefront-cart/internal/metrics"
	"github.com/nikolayk812/storefront-cart/internal/port"
	"golang.org/x/text/currency"
)

const DefaultDebounce = 500 * time.Millisecond

// State is the persisted side of syncing.
type State interface {
	backend.TokenSource
	CartID(ctx context.Context) (domain.CartID, error)
	SaveCartID(ctx context.Context, id domain.CartID) error
	ServerItemID(ctx context.Context, productID domain.ProductID) (string, bool, error)
	SaveServerItemID(ctx context.Context, productID domain.ProductID, serverID string) error
	ForgetServerItemID(ctx context.Context, productID domain.ProductID) error
}

type Options struct {
	Debounce time.Duration
	Currency currency.Unit
	Metrics  *metrics.SyncMetrics
	Logger   *logger.Logger
}

type Agent struct {
	client   *backend.Client
	repo     port.CartRepository
	state    State
	currency currency.Unit
	metrics  *metrics.SyncMetrics
	logger   *logger.Logger

	// idMu keeps concurrent callers from creating two server carts.
	idMu sync.Mutex

	debounce    *debouncer
	unsubscribe func()

	// ctx bounds background work; Close cancels it.
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	bgMu      sync.Mutex
	closed    bool
	closeOnce sync.Once
}

// NewAgent subscribes to cart changes of this session: every local mutation schedules a sync,
// adds and removes are mirrored as server line items.
func NewAgent(client *backend.Client, repo port.CartRepository, notifier port.Notifier, state State, opts Options) *Agent {
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.Logger == nil {
		opts.Logger = logger.Nop()
	}

	ctx, cancel := context.WithCancel(context.Background())
	a := &Agent{
		client:   client,
		repo:     repo,
		state:    state,
		currency: opts.Currency,
		metrics:  opts.Metrics,
		logger:   opts.Logger,
		ctx:      ctx,
		cancel:   cancel,
	}
	a.debounce = newDebouncer(opts.Debounce, &a.wg, func() {
		if err := a.SyncNow(a.ctx); err != nil {
			a.logger.WarnErr(a.ctx, "cart sync", err)
		}
	})
	a.unsubscribe = notifier.OnCartChanged(a.onCartChanged)

	return a
}

func (a *Agent) onCartChanged(_ context.Context, e domain.CartChanged) {
	// external writes are synced by the session that made them; a restore came from the server
	if e.External || e.Op == domain.OpReplace {
		return
	}

	a.Schedule()

	switch e.Op {
	case domain.OpAdd:
		a.goBackground(func(ctx context.Context) {
			a.MirrorAdd(ctx, e.ProductID, e.Quantity)
		})
	case domain.OpRemove:
		a.goBackground(func(ctx context.Context) {
			a.MirrorRemove(ctx, e.ProductID)
		})
	}
}

// Schedule asks for a sync after the debounce quiet period.
func (a *Agent) Schedule() {
	if a.debounce.Trigger() {
		a.metrics.IncCoalesced()
	}
}

// EnsureCartID returns the saved server cart id, creating one on first need. When every create
// endpoint fails a local fallback id is saved instead and the agent stays offline for it.
func (a *Agent) EnsureCartID(ctx context.Context) (domain.CartID, error) {
	a.idMu.Lock()
	defer a.idMu.Unlock()

	id, err := a.state.CartID(ctx)
	if err != nil {
		return "", fmt.Errorf("state.CartID: %w", err)
	}
	if !id.IsZero() {
		return id, nil
	}

	id, err = a.createCart(ctx)
	a.metrics.ObserveAttempt(metrics.OpCreate, err)
	if err != nil {
		id = domain.NewLocalCartID()
		a.logger.WarnErr(a.logger.WithCartID(ctx, id.String()), "server cart unavailable, using local cart id", err)
	}

	if err := a.state.SaveCartID(ctx, id); err != nil {
		return id, fmt.Errorf("state.SaveCartID: %w", err)
	}
	return id, nil
}

func (a *Agent) createCart(ctx context.Context) (domain.CartID, error) {
	var errs []error
	for _, ep := range createEndpoints() {
		resp, err := a.client.Do(ctx, backend.Request{Method: ep.Method, Path: ep.Path})
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if id, ok := extractCartID(resp.Body); ok {
			return id, nil
		}
		errs = append(errs, fmt.Errorf("%s %s: no cart id in response", ep.Method, ep.Path))
	}
	return "", fmt.Errorf("%w: create: %w", domain.ErrRemoteSync, errors.Join(errs...))
}

// SyncNow pushes the cart as it is at send time. Local fallback ids never reach the network.
func (a *Agent) SyncNow(ctx context.Context) error {
	id, err := a.EnsureCartID(ctx)
	if err != nil && id.IsZero() {
		return fmt.Errorf("a.EnsureCartID: %w", err)
	}
	if id.IsLocal() {
		a.metrics.IncLocalSkipped()
		a.logger.Debug(a.logger.WithCartID(ctx, id.String()), "cart sync skipped for local cart id")
		return nil
	}

	payload := newSyncPayload(a.repo.Cart(), a.currency)

	var errs []error
	for _, ep := range updateEndpoints(id.String()) {
		if _, err := a.client.Do(ctx, backend.Request{Method: ep.Method, Path: ep.Path, Body: payload}); err != nil {
			errs = append(errs, err)
			continue
		}
		a.metrics.ObserveAttempt(metrics.OpUpdate, nil)
		return nil
	}

	err = fmt.Errorf("%w: update: %w", domain.ErrRemoteSync, errors.Join(errs...))
	a.metrics.ObserveAttempt(metrics.OpUpdate, err)
	return err
}

// Load fetches the server copy of the saved cart. It reports false when there is nothing to
// load: no saved id, a local fallback id, or no endpoint answering with items.
func (a *Agent) Load(ctx context.Context) ([]domain.CartLine, bool, error) {
	id, err := a.state.CartID(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("state.CartID: %w", err)
	}
	if id.IsZero() {
		return nil, false, nil
	}
	if id.IsLocal() {
		a.metrics.IncLocalSkipped()
		return nil, false, nil
	}

	var errs []error
	for _, ep := range loadEndpoints(id.String()) {
		resp, err := a.client.Do(ctx, backend.Request{Method: ep.Method, Path: ep.Path})
		if err != nil {
			errs = append(errs, err)
			continue
		}
		lines, ok := normalizeItems(resp.Body, a.currency, a.client.ResolveURL)
		if !ok {
			errs = append(errs, fmt.Errorf("%s %s: no items in response", ep.Method, ep.Path))
			continue
		}
		a.metrics.ObserveAttempt(metrics.OpLoad, nil)
		return lines, true, nil
	}

	err = fmt.Errorf("%w: load: %w", domain.ErrRemoteSync, errors.Join(errs...))
	a.metrics.ObserveAttempt(metrics.OpLoad, err)
	return nil, false, err
}

// Restore replaces an empty local cart with the server copy. A non-empty local cart always wins.
// Remote failures are logged; only a failed local write is returned.
func (a *Agent) Restore(ctx context.Context) error {
	if len(a.repo.Items()) > 0 {
		return nil
	}

	lines, ok, err := a.Load(ctx)
	if err != nil {
		a.logger.WarnErr(ctx, "load server cart", err)
		return nil
	}
	if !ok || len(lines) == 0 {
		return nil
	}

	// the cart may have been filled while the request was in flight
	if len(a.repo.Items()) > 0 {
		return nil
	}
	if err := a.repo.Replace(ctx, lines); err != nil {
		return fmt.Errorf("repo.Replace: %w", err)
	}
	return nil
}

// Close cancels a pending sync, stops background work and waits for it.
func (a *Agent) Close() {
	a.closeOnce.Do(func() {
		a.unsubscribe()
		a.debounce.Stop()

		a.bgMu.Lock()
		a.closed = true
		a.bgMu.Unlock()

		a.cancel()
		a.wg.Wait()
	})
}

func (a *Agent) goBackground(fn func(ctx context.Context)) {
	a.bgMu.Lock()
	defer a.bgMu.Unlock()
	if a.closed {
		return
	}

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		fn(a.ctx)
	}()
}

type syncItem struct {
	ID    domain.ProductID `json:"id"`
	Qty   int              `json:"qty"`
	Price json.Number      `json:"price"`
	Name  string           `json:"name"`
	Image string           `json:"image"`
}

type syncPayload struct {
	Items    []syncItem  `json:"items"`
	Subtotal json.Number `json:"subtotal"`
}

func newSyncPayload(cart domain.Cart, cur currency.Unit) syncPayload {
	items := make([]syncItem, 0, len(cart.Lines))
	for _, line := range cart.Lines {
		items = append(items, syncItem{
			ID:    line.ProductID,
			Qty:   domain.ClampQuantity(line.Quantity),
			Price: json.Number(line.Price.Amount.String()),
			Name:  line.Name,
			Image: line.Image,
		})
	}
	return syncPayload{
		Items:    items,
		Subtotal: json.Number(cart.Subtotal(cur).Amount.String()),
	}
}
