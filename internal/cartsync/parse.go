package cartsync

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/nikolayk812/storefront-cart/internal/domain"
	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
)

const defaultLineName = "Product"

// Response shapes seen from the backend, tried in order.
var (
	cartIDPaths = [][]string{
		{"cartId"},
		{"cart_id"},
		{"id"},
		{"cart", "id"},
		{"data", "id"},
		{"data", "cartId"},
	}

	itemListPaths = [][]string{
		{"items"},
		{"cart", "items"},
		{"data", "items"},
		{"cart_items"},
		{"results"},
		{"data"},
	}
)

func decode(body []byte) (any, bool) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, false
	}
	return v, true
}

func extractCartID(body []byte) (domain.CartID, bool) {
	v, ok := decode(body)
	if !ok {
		return "", false
	}
	for _, path := range cartIDPaths {
		if s, ok := scalarString(lookup(v, path...)); ok {
			return domain.CartID(s), true
		}
	}
	return "", false
}

// extractServerID reads the id of a freshly created server line.
func extractServerID(body []byte) (string, bool) {
	v, ok := decode(body)
	if !ok {
		return "", false
	}
	for _, path := range [][]string{{"id"}, {"data", "id"}, {"item", "id"}} {
		if s, ok := scalarString(lookup(v, path...)); ok {
			return s, true
		}
	}
	return "", false
}

func extractItems(body []byte) ([]any, bool) {
	v, ok := decode(body)
	if !ok {
		return nil, false
	}
	if arr, ok := v.([]any); ok {
		return arr, true
	}
	for _, path := range itemListPaths {
		if arr, ok := lookup(v, path...).([]any); ok {
			return arr, true
		}
	}
	return nil, false
}

// normalizeItems turns whatever the load endpoint returned into cart lines. Items without a
// product id are dropped.
func normalizeItems(body []byte, cur currency.Unit, resolveImage func(string) string) ([]domain.CartLine, bool) {
	raw, ok := extractItems(body)
	if !ok {
		return nil, false
	}

	lines := make([]domain.CartLine, 0, len(raw))
	for _, item := range raw {
		line, ok := normalizeItem(item, cur, resolveImage)
		if !ok {
			continue
		}
		lines = append(lines, line)
	}
	return lines, true
}

func normalizeItem(raw any, cur currency.Unit, resolveImage func(string) string) (domain.CartLine, bool) {
	m, ok := raw.(map[string]any)
	if !ok {
		return domain.CartLine{}, false
	}
	product, _ := m["product"].(map[string]any)

	id, ok := firstString(lookup(product, "id"), m["product_id"], m["id"])
	if !ok {
		return domain.CartLine{}, false
	}

	name, ok := firstString(m["name"], lookup(product, "name"))
	if !ok {
		name = defaultLineName
	}

	price := decimal.Zero
	if s, ok := firstString(m["price"], lookup(product, "price")); ok {
		if d, err := decimal.NewFromString(s); err == nil {
			price = d
		}
	}

	qty := 1
	if s, ok := firstString(m["qty"], m["quantity"]); ok {
		qty = domain.ParseQuantity(s)
	}

	image := firstImage(m)
	if image == "" && product != nil {
		image = firstImage(product)
	}
	if resolveImage != nil {
		image = resolveImage(image)
	}

	color, _ := firstString(m["color"], lookup(product, "color"))
	size, _ := firstString(m["size"], lookup(product, "size"))
	mainCategory, _ := firstString(m["main_category"], m["category"], lookup(product, "main_category"))
	subCategory, _ := firstString(m["sub_category"], lookup(product, "sub_category"))

	var available *bool
	if b, ok := m["available"].(bool); ok {
		available = &b
	} else if b, ok := lookup(product, "available").(bool); ok {
		available = &b
	}

	pid := domain.ProductID(id)
	return domain.CartLine{
		Key:          domain.ComputeKey(pid, color, size),
		ProductID:    pid,
		Name:         name,
		Price:        domain.NewMoney(price, cur),
		Image:        image,
		Quantity:     qty,
		MainCategory: mainCategory,
		SubCategory:  subCategory,
		Available:    domain.EffectiveAvailability(nil, available),
		Variant: domain.Variant{
			Color: color,
			Size:  size,
		},
	}, true
}

// findServerLineID looks up the server line holding productID in a GET /api/cart/ body.
func findServerLineID(body []byte, productID domain.ProductID) (string, bool) {
	items, ok := extractItems(body)
	if !ok {
		return "", false
	}
	for _, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		pid, ok := firstString(lookup(m, "product", "id"), m["product_id"], m["product"])
		if !ok || !domain.ProductID(pid).Equivalent(productID) {
			continue
		}
		if id, ok := scalarString(m["id"]); ok {
			return id, true
		}
	}
	return "", false
}

func firstImage(m map[string]any) string {
	for _, key := range []string{"image", "img"} {
		if s, ok := scalarString(m[key]); ok {
			return s
		}
	}
	images, _ := m["images"].([]any)
	for _, img := range images {
		switch v := img.(type) {
		case string:
			if v != "" {
				return v
			}
		case map[string]any:
			if s, ok := firstString(v["url"], v["image"]); ok {
				return s
			}
		}
	}
	return ""
}

func lookup(v any, path ...string) any {
	for _, key := range path {
		m, ok := v.(map[string]any)
		if !ok {
			return nil
		}
		v = m[key]
	}
	return v
}

func firstString(values ...any) (string, bool) {
	for _, v := range values {
		if s, ok := scalarString(v); ok {
			return s, true
		}
	}
	return "", false
}

// scalarString accepts non-blank strings and numbers.
func scalarString(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		s := strings.TrimSpace(t)
		return s, s != ""
	case json.Number:
		return t.String(), true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	}
	return "", false
}
