package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/nikolayk812/storefront-cart/internal/domain"
	"github.com/nikolayk812/storefront-cart/internal/logger"
	"github.com/nikolayk812/storefront-cart/internal/port"
)

const eventBuffer = 32

type sseEvent struct {
	name string
	data any
}

type cartChangedEvent struct {
	Op        string `json:"op"`
	Key       string `json:"key,omitempty"`
	ProductID string `json:"product_id,omitempty"`
	External  bool   `json:"external"`
}

type availabilityChangedEvent struct {
	ID        string `json:"id"`
	Available bool   `json:"available"`
}

// events streams change cues to a page so it can re-read the cart. Cues are dropped when the
// client falls behind; the next one triggers the same re-read.
func events(notifier port.Notifier, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		rc := http.NewResponseController(w)

		queue := make(chan sseEvent, eventBuffer)
		enqueue := func(e sseEvent) {
			select {
			case queue <- e:
			default:
				logg.Debug(ctx, "sse client behind, cue dropped")
			}
		}

		unsubCart := notifier.OnCartChanged(func(_ context.Context, e domain.CartChanged) {
			enqueue(sseEvent{name: "cart", data: cartChangedEvent{Op: string(e.Op), Key: e.Key, ProductID: e.ProductID.String(), External: e.External}})
		})
		defer unsubCart()
		unsubAvailability := notifier.OnAvailabilityChanged(func(_ context.Context, e domain.AvailabilityChanged) {
			enqueue(sseEvent{name: "availability", data: availabilityChangedEvent{ID: e.ID.String(), Available: e.Available}})
		})
		defer unsubAvailability()

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.WriteHeader(http.StatusOK)

		if _, err := fmt.Fprint(w, ": connected\n\n"); err != nil {
			return
		}
		if err := rc.Flush(); err != nil {
			logg.WarnErr(ctx, "sse flush unsupported", err)
			return
		}

		for {
			select {
			case <-ctx.Done():
				return
			case e := <-queue:
				payload, err := json.Marshal(e.data)
				if err != nil {
					logg.WarnErr(ctx, "sse encode", err)
					continue
				}
				if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", e.name, payload); err != nil {
					return
				}
				if err := rc.Flush(); err != nil {
					return
				}
			}
		}
	}
}
