package domain

import "github.com/shopspring/decimal"

// Product is the product-like shape display components hand to the cart.
// Available carries the backend-declared flag, or an explicit flag from the caller; nil means silent.
type Product struct {
	ID           ProductID
	Name         string
	Price        decimal.Decimal
	Image        string
	Images       []string
	MainCategory string
	SubCategory  string
	Variant      Variant
	Available    *bool
}

func (p Product) Key() string {
	return ComputeKey(p.ID, p.Variant.Color, p.Variant.Size)
}

func (p Product) PrimaryImage() string {
	if p.Image != "" {
		return p.Image
	}
	for _, img := range p.Images {
		if img != "" {
			return img
		}
	}
	return ""
}
