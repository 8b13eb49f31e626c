package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
)

type Cart struct {
	Lines []CartLine
}

// CartLine caches display fields captured when the product was added; they are never re-fetched.
// Available is a snapshot and may go stale until availability reconciliation patches it.
type CartLine struct {
	Key          string
	ProductID    ProductID
	Name         string
	Price        Money
	Image        string
	Quantity     int
	MainCategory string
	SubCategory  string
	Available    bool
	Variant      Variant
}

type Variant struct {
	Color            string
	Size             string
	Weight           string
	Brand            string
	ModelName        string
	CottonPercentage *decimal.Decimal
}

// ComputeKey identifies a distinct (product, color, size) combination.
func ComputeKey(id ProductID, color, size string) string {
	pid := id.String()
	if pid == "" {
		pid = "noid"
	}
	return fmt.Sprintf("%s|%s|%s", pid, color, size)
}

func (l CartLine) LineTotal() Money {
	return l.Price.Mul(ClampQuantity(l.Quantity))
}

func (c Cart) Find(key string) (CartLine, bool) {
	for _, line := range c.Lines {
		if line.Key == key {
			return line, true
		}
	}
	return CartLine{}, false
}

// Subtotal is derived on every call; cur is used when the cart is empty.
func (c Cart) Subtotal(cur currency.Unit) Money {
	total := ZeroMoney(cur)
	for _, line := range c.Lines {
		total.Amount = total.Amount.Add(line.LineTotal().Amount)
	}
	return total
}

func (c Cart) Clone() Cart {
	if c.Lines == nil {
		return Cart{}
	}
	lines := make([]CartLine, len(c.Lines))
	copy(lines, c.Lines)
	return Cart{Lines: lines}
}

func (c Cart) Len() int {
	return len(c.Lines)
}

// CanCheckout is all-or-nothing: an empty cart or any out-of-stock line blocks it.
func (c Cart) CanCheckout() bool {
	if len(c.Lines) == 0 {
		return false
	}
	for _, line := range c.Lines {
		if StateOf(line.Available) == OutOfStock {
			return false
		}
	}
	return true
}
