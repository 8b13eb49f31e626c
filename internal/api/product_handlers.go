package api

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
	"github.com/nikolayk812/storefront-cart/internal/domain"
	"github.com/nikolayk812/storefront-cart/internal/logger"
)

var errCatalogUnavailable = errors.New("catalog unavailable")

type productResponse struct {
	ID           string           `json:"id"`
	Name         string           `json:"name"`
	Price        string           `json:"price"`
	Image        string           `json:"image,omitempty"`
	Images       []string         `json:"images,omitempty"`
	MainCategory string           `json:"main_category,omitempty"`
	SubCategory  string           `json:"sub_category,omitempty"`
	Color        string           `json:"color,omitempty"`
	Size         string           `json:"size,omitempty"`
	Brand        string           `json:"brand,omitempty"`
	ModelName    string           `json:"model_name,omitempty"`
	Available    bool             `json:"available"`
	Key          string           `json:"key"`
}

func newProductResponse(p domain.Product, available bool) productResponse {
	return productResponse{
		ID:           p.ID.String(),
		Name:         p.Name,
		Price:        p.Price.StringFixed(2),
		Image:        p.PrimaryImage(),
		Images:       p.Images,
		MainCategory: p.MainCategory,
		SubCategory:  p.SubCategory,
		Color:        p.Variant.Color,
		Size:         p.Variant.Size,
		Brand:        p.Variant.Brand,
		ModelName:    p.Variant.ModelName,
		Available:    available,
		Key:          p.Key(),
	}
}

func listProducts(products ProductCatalog, resolver ProductResolver, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if products == nil || resolver == nil {
			writeUnavailable(w)
			return
		}

		list, err := products.List(ctx)
		if err != nil {
			writeError(ctx, logg, w, err)
			return
		}

		out := make([]productResponse, 0, len(list))
		for _, p := range list {
			out = append(out, newProductResponse(p, resolver.Product(ctx, p)))
		}
		writeSuccess(w, out)
	}
}

func getProduct(products ProductCatalog, resolver ProductResolver, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if products == nil || resolver == nil {
			writeUnavailable(w)
			return
		}

		id, err := productIDParam(r)
		if err != nil {
			writeError(ctx, logg, w, err)
			return
		}

		p, err := products.Get(ctx, id)
		if err != nil {
			writeError(ctx, logg, w, err)
			return
		}
		writeSuccess(w, newProductResponse(p, resolver.Product(ctx, p)))
	}
}

type setAvailabilityRequest struct {
	Available *bool `json:"available" validate:"required"`
}

type availabilityResponse struct {
	ProductID string `json:"product_id"`
	Available bool   `json:"available"`
}

// setAvailability stores an override; carts in every session pick it up through the change signal.
func setAvailability(overrides OverrideWriter, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		id, err := productIDParam(r)
		if err != nil {
			writeError(ctx, logg, w, err)
			return
		}

		var payload setAvailabilityRequest
		if err := decodeJSONBody(r, &payload); err != nil {
			writeError(ctx, logg, w, err)
			return
		}

		if err := overrides.Write(ctx, id, *payload.Available); err != nil {
			writeError(ctx, logg, w, err)
			return
		}

		writeSuccess(w, availabilityResponse{ProductID: id.String(), Available: *payload.Available})
	}
}

func productIDParam(r *http.Request) (domain.ProductID, error) {
	raw := chi.URLParam(r, "id")
	id, err := url.PathUnescape(raw)
	if err != nil {
		return "", validationError("invalid product id", map[string]string{"id": raw}, err)
	}
	return domain.ProductID(id), nil
}

func writeUnavailable(w http.ResponseWriter) {
	writeJSON(w, http.StatusServiceUnavailable, errorEnvelope{Error: apiError{Code: codeInternal, Message: errCatalogUnavailable.Error()}})
}
