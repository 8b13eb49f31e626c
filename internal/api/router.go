package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/nikolayk812/storefront-cart/internal/checkout"
	"github.com/nikolayk812/storefront-cart/internal/domain"
	"github.com/nikolayk812/storefront-cart/internal/logger"
	"github.com/nikolayk812/storefront-cart/internal/port"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type CheckoutService interface {
	View(ctx context.Context) (checkout.View, error)
	OrderLink(ctx context.Context) (string, error)
	NotifyLink(ctx context.Context, key string) (string, bool, error)
}

type OverrideWriter interface {
	Write(ctx context.Context, productID domain.ProductID, available bool) error
}

type ProductCatalog interface {
	List(ctx context.Context) ([]domain.Product, error)
	Get(ctx context.Context, id domain.ProductID) (domain.Product, error)
}

type ProductResolver interface {
	Product(ctx context.Context, p domain.Product) bool
}

// Deps are the collaborators behind the HTTP surface. Catalog and Gatherer may be nil:
// product routes then answer 503 and /metrics is not mounted.
type Deps struct {
	Cart      port.CartRepository
	Checkout  CheckoutService
	Overrides OverrideWriter
	Catalog   ProductCatalog
	Resolver  ProductResolver
	Notifier  port.Notifier
	Gatherer  prometheus.Gatherer
	Logger    *logger.Logger
}

func NewRouter(deps Deps) http.Handler {
	logg := deps.Logger
	if logg == nil {
		logg = logger.Nop()
	}

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(requestIDField(logg))
	r.Use(recoverer(logg))
	r.Use(logging(logg))

	r.Get("/healthz", health())
	if deps.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api", func(r chi.Router) {
		r.Route("/cart", func(r chi.Router) {
			r.Get("/", getCart(deps.Checkout, logg))
			r.Delete("/", clearCart(deps.Cart, deps.Checkout, logg))
			r.Get("/checkout-link", checkoutLink(deps.Checkout, logg))
			r.Post("/items", addItem(deps.Cart, deps.Catalog, deps.Checkout, logg))
			r.Put("/items/{key}", setQuantity(deps.Cart, deps.Checkout, logg))
			r.Delete("/items/{key}", removeItem(deps.Cart, deps.Checkout, logg))
			r.Post("/items/{key}/notify", notifyMe(deps.Checkout, logg))
		})

		r.Get("/products", listProducts(deps.Catalog, deps.Resolver, logg))
		r.Get("/products/{id}", getProduct(deps.Catalog, deps.Resolver, logg))

		r.Put("/admin/products/{id}/availability", setAvailability(deps.Overrides, logg))

		r.Get("/events", events(deps.Notifier, logg))
	})

	return r
}

func requestIDField(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := chimiddleware.GetReqID(r.Context())
			if id == "" {
				next.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r.WithContext(logg.WithField(r.Context(), "request_id", id)))
		})
	}
}

func health() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeSuccess(w, map[string]string{"status": "ok"})
	}
}
