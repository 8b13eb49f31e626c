package cartsync

import (
	"context"
	"fmt"
	"net/http"

	"github.com/nikolayk812/storefront-cart/internal/backend"
	"github.com/nikolayk812/storefront-cart/internal/domain"
	"github.com/nikolayk812/storefront-cart/internal/metrics"
)

type serverItemRequest struct {
	ProductID domain.ProductID `json:"product_id"`
	Qty       int              `json:"qty"`
}

// MirrorAdd adds the product to the logged-in user's server cart and remembers the server line id.
// It needs a bearer token and a real cart id; failures are logged.
func (a *Agent) MirrorAdd(ctx context.Context, productID domain.ProductID, qty int) {
	if !a.canMirror(ctx, productID) {
		return
	}

	err := a.mirrorAdd(ctx, productID, domain.ClampQuantity(qty))
	a.metrics.ObserveAttempt(metrics.OpMirror, err)
	if err != nil {
		a.logger.WarnErr(a.logger.WithField(ctx, "product_id", productID.String()), "mirror add to server cart", err)
	}
}

func (a *Agent) mirrorAdd(ctx context.Context, productID domain.ProductID, qty int) error {
	resp, err := a.client.Do(ctx, backend.Request{
		Method: http.MethodPost,
		Path:   serverItemsPath,
		Body:   serverItemRequest{ProductID: productID, Qty: qty},
	})
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrRemoteSync, err)
	}

	serverID, ok := extractServerID(resp.Body)
	if !ok {
		return nil
	}
	if err := a.state.SaveServerItemID(ctx, productID, serverID); err != nil {
		return fmt.Errorf("state.SaveServerItemID: %w", err)
	}
	return nil
}

// MirrorRemove deletes the product's server line, looking it up in the server cart when no id was
// remembered. The mapping is forgotten once no local line of the product is left.
func (a *Agent) MirrorRemove(ctx context.Context, productID domain.ProductID) {
	if !a.canMirror(ctx, productID) {
		return
	}

	err := a.mirrorRemove(ctx, productID)
	a.metrics.ObserveAttempt(metrics.OpMirror, err)
	if err != nil {
		a.logger.WarnErr(a.logger.WithField(ctx, "product_id", productID.String()), "mirror remove from server cart", err)
	}
}

func (a *Agent) mirrorRemove(ctx context.Context, productID domain.ProductID) error {
	serverID, ok, err := a.state.ServerItemID(ctx, productID)
	if err != nil {
		return fmt.Errorf("state.ServerItemID: %w", err)
	}
	if !ok {
		resp, err := a.client.Do(ctx, backend.Request{Method: http.MethodGet, Path: serverCartPath})
		if err != nil {
			return fmt.Errorf("%w: %w", domain.ErrRemoteSync, err)
		}
		serverID, ok = findServerLineID(resp.Body, productID)
		if !ok {
			return nil
		}
	}

	if _, err := a.client.Do(ctx, backend.Request{Method: http.MethodDelete, Path: serverItemRemovePath(serverID)}); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrRemoteSync, err)
	}

	for _, line := range a.repo.Items() {
		if line.ProductID.Equivalent(productID) {
			return nil
		}
	}
	if err := a.state.ForgetServerItemID(ctx, productID); err != nil {
		return fmt.Errorf("state.ForgetServerItemID: %w", err)
	}
	return nil
}

func (a *Agent) canMirror(ctx context.Context, productID domain.ProductID) bool {
	if productID.IsZero() {
		return false
	}

	token, err := a.state.Token(ctx)
	if err != nil || token == "" {
		return false
	}

	id, err := a.state.CartID(ctx)
	if err != nil {
		return false
	}
	if id.IsLocal() {
		a.metrics.IncLocalSkipped()
		return false
	}
	return true
}
