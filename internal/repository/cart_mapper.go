package repository

import (
	"encoding/json"
	"fmt"

	"github.com/nikolayk812/storefront-cart/internal/domain"
	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
)

// storedLine is one element of the persisted `cart` / `cartItems` arrays.
type storedLine struct {
	Key              string           `json:"key"`
	ID               domain.ProductID `json:"id"`
	Name             flexString       `json:"name"`
	Price            flexDecimal      `json:"price"`
	Image            flexString       `json:"image"`
	Qty              flexQuantity     `json:"qty"`
	MainCategory     flexString       `json:"main_category,omitempty"`
	Category         flexString       `json:"category,omitempty"`
	SubCategory      flexString       `json:"sub_category,omitempty"`
	Available        *flexBool        `json:"available,omitempty"`
	Color            flexString       `json:"color,omitempty"`
	Size             flexString       `json:"size,omitempty"`
	Weight           flexString       `json:"weight,omitempty"`
	Brand            flexString       `json:"brand,omitempty"`
	ModelName        flexString       `json:"model_name,omitempty"`
	CottonPercentage *flexDecimal     `json:"cotton_percentage,omitempty"`
}

func mapDomainToStored(line domain.CartLine) storedLine {
	s := storedLine{
		Key:          line.Key,
		ID:           line.ProductID,
		Name:         flexString(line.Name),
		Price:        flexDecimal(line.Price.Amount),
		Image:        flexString(line.Image),
		Qty:          flexQuantity(domain.ClampQuantity(line.Quantity)),
		MainCategory: flexString(line.MainCategory),
		SubCategory:  flexString(line.SubCategory),
		Available:    &flexBool{value: domain.Bool(line.Available)},
		Color:        flexString(line.Variant.Color),
		Size:         flexString(line.Variant.Size),
		Weight:       flexString(line.Variant.Weight),
		Brand:        flexString(line.Variant.Brand),
		ModelName:    flexString(line.Variant.ModelName),
	}
	if line.Variant.CottonPercentage != nil {
		cp := flexDecimal(*line.Variant.CottonPercentage)
		s.CottonPercentage = &cp
	}
	return s
}

func mapStoredToDomain(s storedLine, cur currency.Unit) domain.CartLine {
	var available *bool
	if s.Available != nil {
		available = s.Available.value
	}
	mainCategory := string(s.MainCategory)
	if mainCategory == "" {
		mainCategory = string(s.Category)
	}

	line := domain.CartLine{
		Key:          s.Key,
		ProductID:    s.ID,
		Name:         string(s.Name),
		Price:        domain.NewMoney(decimal.Decimal(s.Price), cur),
		Image:        string(s.Image),
		Quantity:     domain.ClampQuantity(int(s.Qty)),
		MainCategory: mainCategory,
		SubCategory:  string(s.SubCategory),
		Available:    domain.EffectiveAvailability(nil, available),
		Variant: domain.Variant{
			Color:     string(s.Color),
			Size:      string(s.Size),
			Weight:    string(s.Weight),
			Brand:     string(s.Brand),
			ModelName: string(s.ModelName),
		},
	}
	if s.CottonPercentage != nil {
		cp := decimal.Decimal(*s.CottonPercentage)
		line.Variant.CottonPercentage = &cp
	}
	if line.Key == "" {
		line.Key = domain.ComputeKey(line.ProductID, line.Variant.Color, line.Variant.Size)
	}
	return line
}

func encodeLines(lines []domain.CartLine) (string, error) {
	stored := make([]storedLine, 0, len(lines))
	for _, line := range lines {
		stored = append(stored, mapDomainToStored(line))
	}
	b, err := json.Marshal(stored)
	if err != nil {
		return "", fmt.Errorf("json.Marshal: %w", err)
	}
	return string(b), nil
}

// decodeLines skips elements that do not decode and keeps the first line for a duplicated key.
func decodeLines(raw string, cur currency.Unit) ([]domain.CartLine, error) {
	if raw == "" {
		return nil, nil
	}
	var elems []json.RawMessage
	if err := json.Unmarshal([]byte(raw), &elems); err != nil {
		return nil, fmt.Errorf("json.Unmarshal: %w", err)
	}

	lines := make([]domain.CartLine, 0, len(elems))
	seen := make(map[string]struct{}, len(elems))
	for _, elem := range elems {
		var s storedLine
		if err := json.Unmarshal(elem, &s); err != nil {
			continue
		}
		line := mapStoredToDomain(s, cur)
		if _, dup := seen[line.Key]; dup {
			continue
		}
		seen[line.Key] = struct{}{}
		lines = append(lines, line)
	}
	return lines, nil
}
