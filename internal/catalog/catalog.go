package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/nikolayk812/storefront-cart/internal/backend"
	"github.com/nikolayk812/storefront-cart/internal/domain"
	"github.com/shopspring/decimal"
)

var ErrNotFound = errors.New("product not found")

const (
	productsPath = "/api/products/"
)

type Catalog struct {
	client *backend.Client
}

func New(client *backend.Client) *Catalog {
	return &Catalog{client: client}
}

// List accepts both a bare array and a paginated {"results": [...]} body.
func (c *Catalog) List(ctx context.Context) ([]domain.Product, error) {
	resp, err := c.client.Do(ctx, backend.Request{Method: http.MethodGet, Path: productsPath})
	if err != nil {
		return nil, fmt.Errorf("client.Do: %w", err)
	}

	dtos, err := decodeProductList(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("decodeProductList: %w", err)
	}

	products := make([]domain.Product, 0, len(dtos))
	for _, dto := range dtos {
		p := c.mapProductToDomain(dto)
		if p.ID.IsZero() {
			continue
		}
		products = append(products, p)
	}
	return products, nil
}

func (c *Catalog) Get(ctx context.Context, id domain.ProductID) (domain.Product, error) {
	if id.IsZero() {
		return domain.Product{}, domain.ErrMissingProductID
	}

	resp, err := c.client.Do(ctx, backend.Request{Method: http.MethodGet, Path: productsPath + url.PathEscape(id.String()) + "/"})
	if backend.IsStatus(err, http.StatusNotFound) {
		return domain.Product{}, ErrNotFound
	}
	if err != nil {
		return domain.Product{}, fmt.Errorf("client.Do: %w", err)
	}

	var dto productDTO
	if err := json.Unmarshal(resp.Body, &dto); err != nil {
		return domain.Product{}, fmt.Errorf("json.Unmarshal: %w", err)
	}
	if dto.ID.IsZero() {
		return domain.Product{}, ErrNotFound
	}
	return c.mapProductToDomain(dto), nil
}

func decodeProductList(body []byte) ([]productDTO, error) {
	body = bytes.TrimSpace(body)
	if len(body) > 0 && body[0] == '[' {
		var list []productDTO
		if err := json.Unmarshal(body, &list); err != nil {
			return nil, fmt.Errorf("json.Unmarshal: %w", err)
		}
		return list, nil
	}

	var page struct {
		Results []productDTO `json:"results"`
	}
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, fmt.Errorf("json.Unmarshal: %w", err)
	}
	return page.Results, nil
}

type productDTO struct {
	ID               domain.ProductID `json:"id"`
	Name             text             `json:"name"`
	Price            decimal.Decimal  `json:"price"`
	Image            text             `json:"image"`
	Images           []imageRef       `json:"images"`
	MainCategory     text             `json:"main_category"`
	Category         text             `json:"category"`
	SubCategory      text             `json:"sub_category"`
	Brand            text             `json:"brand"`
	ModelName        text             `json:"model_name"`
	CottonPercentage *decimal.Decimal `json:"cotton_percentage"`
	Color            text             `json:"color"`
	Size             text             `json:"size"`
	Weight           text             `json:"weight"`
	Available        *bool            `json:"available"`
}

func (c *Catalog) mapProductToDomain(dto productDTO) domain.Product {
	mainCategory := string(dto.MainCategory)
	if mainCategory == "" {
		mainCategory = string(dto.Category)
	}

	images := make([]string, 0, len(dto.Images))
	for _, img := range dto.Images {
		if img != "" {
			images = append(images, c.client.ResolveURL(string(img)))
		}
	}

	return domain.Product{
		ID:           dto.ID,
		Name:         string(dto.Name),
		Price:        dto.Price,
		Image:        c.client.ResolveURL(string(dto.Image)),
		Images:       images,
		MainCategory: mainCategory,
		SubCategory:  string(dto.SubCategory),
		Variant: domain.Variant{
			Color:            string(dto.Color),
			Size:             string(dto.Size),
			Weight:           string(dto.Weight),
			Brand:            string(dto.Brand),
			ModelName:        string(dto.ModelName),
			CottonPercentage: dto.CottonPercentage,
		},
		Available: dto.Available,
	}
}

// text accepts strings, numbers and null.
type text string

func (t *text) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*t = ""
		return nil
	}
	if data[0] != '"' {
		*t = text(data)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*t = text(strings.TrimSpace(s))
	return nil
}

// imageRef accepts "url", {"url": ...} and {"image": ...}.
type imageRef string

func (r *imageRef) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*r = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*r = imageRef(s)
		return nil
	}

	var obj struct {
		URL   string `json:"url"`
		Image string `json:"image"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	if obj.URL != "" {
		*r = imageRef(obj.URL)
	} else {
		*r = imageRef(obj.Image)
	}
	return nil
}
