package api

import (
	"context"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
	"github.com/nikolayk812/storefront-cart/internal/checkout"
	"github.com/nikolayk812/storefront-cart/internal/domain"
	"github.com/nikolayk812/storefront-cart/internal/logger"
	"github.com/nikolayk812/storefront-cart/internal/port"
	"github.com/shopspring/decimal"
)

type cartLineResponse struct {
	Key             string           `json:"key"`
	ProductID       string           `json:"product_id"`
	Name            string           `json:"name"`
	Price           string           `json:"price"`
	Image           string           `json:"image,omitempty"`
	Qty             int              `json:"qty"`
	LineTotal       string           `json:"line_total"`
	MainCategory    string           `json:"main_category,omitempty"`
	SubCategory     string           `json:"sub_category,omitempty"`
	Color           string           `json:"color,omitempty"`
	Size            string           `json:"size,omitempty"`
	Available       bool             `json:"available"`
	State           string           `json:"state"`
	NotifyRequested bool             `json:"notify_requested"`
}

type cartResponse struct {
	Items         []cartLineResponse `json:"items"`
	Subtotal      string             `json:"subtotal"`
	Currency      string             `json:"currency"`
	CanCheckout   bool               `json:"can_checkout"`
	AnyOutOfStock bool               `json:"any_out_of_stock"`
}

func newCartResponse(view checkout.View) cartResponse {
	items := make([]cartLineResponse, 0, len(view.Lines))
	for _, lv := range view.Lines {
		line := lv.Line
		items = append(items, cartLineResponse{
			Key:             line.Key,
			ProductID:       line.ProductID.String(),
			Name:            line.Name,
			Price:           line.Price.Amount.StringFixed(2),
			Image:           line.Image,
			Qty:             domain.ClampQuantity(line.Quantity),
			LineTotal:       lv.LineTotal.Amount.StringFixed(2),
			MainCategory:    line.MainCategory,
			SubCategory:     line.SubCategory,
			Color:           line.Variant.Color,
			Size:            line.Variant.Size,
			Available:       line.Available,
			State:           lv.State.String(),
			NotifyRequested: lv.NotifyRequested,
		})
	}

	return cartResponse{
		Items:         items,
		Subtotal:      view.Subtotal.Amount.StringFixed(2),
		Currency:      view.Subtotal.Currency.String(),
		CanCheckout:   view.CanCheckout,
		AnyOutOfStock: view.AnyOutOfStock(),
	}
}

func getCart(svc CheckoutService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeView(r.Context(), svc, logg, w, http.StatusOK)
	}
}

// addItemRequest mirrors what product pages hand to the cart. A missing product_id is accepted
// and ignored; a missing price is filled in from the catalog.
type addItemRequest struct {
	ProductID        domain.ProductID `json:"product_id"`
	Name             string           `json:"name"`
	Price            *decimal.Decimal `json:"price"`
	Image            string           `json:"image"`
	Images           []string         `json:"images"`
	Qty              *quantityInput   `json:"qty"`
	MainCategory     string           `json:"main_category"`
	SubCategory      string           `json:"sub_category"`
	Color            string           `json:"color" validate:"max=64"`
	Size             string           `json:"size" validate:"max=64"`
	Weight           textInput        `json:"weight"`
	Brand            textInput        `json:"brand"`
	ModelName        textInput        `json:"model_name"`
	CottonPercentage *decimal.Decimal `json:"cotton_percentage"`
	Available        *bool            `json:"available"`
}

func (req addItemRequest) product() domain.Product {
	p := domain.Product{
		ID:           req.ProductID,
		Name:         req.Name,
		Image:        req.Image,
		Images:       req.Images,
		MainCategory: req.MainCategory,
		SubCategory:  req.SubCategory,
		Variant: domain.Variant{
			Color:            req.Color,
			Size:             req.Size,
			Weight:           string(req.Weight),
			Brand:            string(req.Brand),
			ModelName:        string(req.ModelName),
			CottonPercentage: req.CottonPercentage,
		},
		Available: req.Available,
	}
	if req.Price != nil {
		p.Price = *req.Price
	}
	return p
}

func (req addItemRequest) qty() int {
	if req.Qty == nil {
		return 1
	}
	return int(*req.Qty)
}

func addItem(repo port.CartRepository, products ProductCatalog, svc CheckoutService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var payload addItemRequest
		if err := decodeJSONBody(r, &payload); err != nil {
			writeError(ctx, logg, w, err)
			return
		}

		product := payload.product()
		if payload.Price == nil && !product.ID.IsZero() && products != nil {
			fetched, err := products.Get(ctx, product.ID)
			if err != nil {
				writeError(ctx, logg, w, err)
				return
			}
			product = mergeProduct(product, fetched)
		}

		if err := repo.AddItem(ctx, product, payload.qty()); err != nil {
			writeError(ctx, logg, w, err)
			return
		}

		writeView(ctx, svc, logg, w, http.StatusOK)
	}
}

// mergeProduct fills what the caller left out from the catalog; the caller's variant wins.
func mergeProduct(given, fetched domain.Product) domain.Product {
	out := fetched
	out.ID = given.ID
	if given.Name != "" {
		out.Name = given.Name
	}
	if given.Image != "" {
		out.Image = given.Image
	}
	if len(given.Images) > 0 {
		out.Images = given.Images
	}
	if given.MainCategory != "" {
		out.MainCategory = given.MainCategory
	}
	if given.SubCategory != "" {
		out.SubCategory = given.SubCategory
	}
	if given.Variant.Color != "" {
		out.Variant.Color = given.Variant.Color
	}
	if given.Variant.Size != "" {
		out.Variant.Size = given.Variant.Size
	}
	if given.Variant.Weight != "" {
		out.Variant.Weight = given.Variant.Weight
	}
	if given.Variant.Brand != "" {
		out.Variant.Brand = given.Variant.Brand
	}
	if given.Variant.ModelName != "" {
		out.Variant.ModelName = given.Variant.ModelName
	}
	if given.Variant.CottonPercentage != nil {
		out.Variant.CottonPercentage = given.Variant.CottonPercentage
	}
	if given.Available != nil {
		out.Available = given.Available
	}
	return out
}

type setQuantityRequest struct {
	Qty *quantityInput `json:"qty" validate:"required"`
}

func setQuantity(repo port.CartRepository, svc CheckoutService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		key, err := lineKey(r)
		if err != nil {
			writeError(ctx, logg, w, err)
			return
		}

		var payload setQuantityRequest
		if err := decodeJSONBody(r, &payload); err != nil {
			writeError(ctx, logg, w, err)
			return
		}

		if err := repo.SetQuantity(ctx, key, int(*payload.Qty)); err != nil {
			writeError(ctx, logg, w, err)
			return
		}

		writeView(ctx, svc, logg, w, http.StatusOK)
	}
}

func removeItem(repo port.CartRepository, svc CheckoutService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		key, err := lineKey(r)
		if err != nil {
			writeError(ctx, logg, w, err)
			return
		}

		if err := repo.RemoveItem(ctx, key); err != nil {
			writeError(ctx, logg, w, err)
			return
		}

		writeView(ctx, svc, logg, w, http.StatusOK)
	}
}

func clearCart(repo port.CartRepository, svc CheckoutService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if err := repo.Clear(ctx); err != nil {
			writeError(ctx, logg, w, err)
			return
		}

		writeView(ctx, svc, logg, w, http.StatusOK)
	}
}

type checkoutLinkResponse struct {
	URL string `json:"url"`
}

func checkoutLink(svc CheckoutService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		link, err := svc.OrderLink(r.Context())
		if err != nil {
			writeError(r.Context(), logg, w, err)
			return
		}
		writeSuccess(w, checkoutLinkResponse{URL: link})
	}
}

type notifyResponse struct {
	URL   string `json:"url"`
	Added bool   `json:"added"`
}

func notifyMe(svc CheckoutService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		key, err := lineKey(r)
		if err != nil {
			writeError(ctx, logg, w, err)
			return
		}

		link, added, err := svc.NotifyLink(ctx, key)
		if err != nil {
			writeError(ctx, logg, w, err)
			return
		}

		status := http.StatusOK
		if added {
			status = http.StatusCreated
		}
		writeSuccessStatus(w, status, notifyResponse{URL: link, Added: added})
	}
}

// lineKey undoes the escaping clients apply to the `|` separators of a line key.
func lineKey(r *http.Request) (string, error) {
	raw := chi.URLParam(r, "key")
	key, err := url.PathUnescape(raw)
	if err != nil {
		return "", validationError("invalid line key", map[string]string{"key": raw}, err)
	}
	return key, nil
}

func writeView(ctx context.Context, svc CheckoutService, logg *logger.Logger, w http.ResponseWriter, status int) {
	view, err := svc.View(ctx)
	if err != nil {
		writeError(ctx, logg, w, err)
		return
	}
	writeSuccessStatus(w, status, newCartResponse(view))
}
