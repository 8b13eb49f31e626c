package cartsync

import (
	"testing"

	"github.com/nikolayk812/storefront-cart/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/currency"
)

func TestExtractCartID(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		wantID domain.CartID
		wantOK bool
	}{
		{name: "cartId: ok", body: `{"cartId": "a1"}`, wantID: "a1", wantOK: true},
		{name: "cart_id number: ok", body: `{"cart_id": 12345678901}`, wantID: "12345678901", wantOK: true},
		{name: "id: ok", body: `{"id": "b2"}`, wantID: "b2", wantOK: true},
		{name: "nested cart: ok", body: `{"cart": {"id": 5}}`, wantID: "5", wantOK: true},
		{name: "nested data: ok", body: `{"data": {"cartId": "d"}}`, wantID: "d", wantOK: true},
		{name: "cartId preferred over id: ok", body: `{"id": 1, "cartId": "c"}`, wantID: "c", wantOK: true},
		{name: "blank id skipped: ok", body: `{"cartId": " ", "id": 3}`, wantID: "3", wantOK: true},
		{name: "no id: error", body: `{"ok": true}`},
		{name: "not json: error", body: `<html>`},
		{name: "array: error", body: `[1]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, ok := extractCartID([]byte(tt.body))
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantID, id)
		})
	}
}

func TestNormalizeItems(t *testing.T) {
	resolve := func(s string) string {
		if s == "" {
			return ""
		}
		return "abs:" + s
	}

	t.Run("bare array: ok", func(t *testing.T) {
		lines, ok := normalizeItems([]byte(`[{"id": "9", "price": 10.5, "qty": 0, "color": "red", "size": "M", "available": false}]`), currency.INR, resolve)
		require.True(t, ok)
		require.Len(t, lines, 1)

		line := lines[0]
		assert.Equal(t, "9|red|M", line.Key)
		assert.Equal(t, 1, line.Quantity)
		assert.Equal(t, "INR 10.50", line.Price.String())
		assert.False(t, line.Available)
		assert.Equal(t, "Product", line.Name)
	})

	t.Run("results with category fallback: ok", func(t *testing.T) {
		lines, ok := normalizeItems([]byte(`{"results": [{"product_id": 3, "category": "kids", "images": ["/m/1.jpg"]}]}`), currency.INR, resolve)
		require.True(t, ok)
		require.Len(t, lines, 1)
		assert.Equal(t, domain.ProductID("3"), lines[0].ProductID)
		assert.Equal(t, "kids", lines[0].MainCategory)
		assert.Equal(t, "abs:/m/1.jpg", lines[0].Image)
		assert.True(t, lines[0].Available)
	})

	t.Run("nested product wins over line id: ok", func(t *testing.T) {
		lines, ok := normalizeItems([]byte(`{"items": [{"id": 900, "product": {"id": 42, "image": "k.jpg"}, "quantity": "3.7"}]}`), currency.INR, nil)
		require.True(t, ok)
		require.Len(t, lines, 1)
		assert.Equal(t, domain.ProductID("42"), lines[0].ProductID)
		assert.Equal(t, 3, lines[0].Quantity)
		assert.Equal(t, "k.jpg", lines[0].Image)
	})

	t.Run("no item list: error", func(t *testing.T) {
		_, ok := normalizeItems([]byte(`{"detail": "nope"}`), currency.INR, nil)
		assert.False(t, ok)
	})
}

func TestFindServerLineID(t *testing.T) {
	body := []byte(`{"items": [
		{"id": "a1", "product": {"id": 7}},
		{"id": 55, "product_id": "42"},
		{"id": 56, "product": 8}
	]}`)

	tests := []struct {
		productID domain.ProductID
		want      string
		wantOK    bool
	}{
		{productID: "7", want: "a1", wantOK: true},
		{productID: "042", want: "55", wantOK: true},
		{productID: "8", want: "56", wantOK: true},
		{productID: "9"},
	}

	for _, tt := range tests {
		t.Run(tt.productID.String(), func(t *testing.T) {
			id, ok := findServerLineID(body, tt.productID)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, id)
		})
	}
}

func TestEndpointCandidates(t *testing.T) {
	assert.Equal(t, []endpoint{
		{"POST", "/api/carts/"},
		{"POST", "/api/cart/"},
		{"POST", "/api/carts"},
		{"POST", "/api/cart"},
	}, createEndpoints())

	update := updateEndpoints("a/b")
	require.NotEmpty(t, update)
	assert.Equal(t, endpoint{"PUT", "/api/carts/a%2Fb"}, update[0])

	for _, ep := range loadEndpoints("c1") {
		assert.Equal(t, "GET", ep.Method)
		assert.Contains(t, ep.Path, "/c1")
	}
	assert.Equal(t, "/api/cart/items/900/remove/", serverItemRemovePath("900"))
}
