package checkout

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/nikolayk812/storefront-cart/internal/config"
	"github.com/nikolayk812/storefront-cart/internal/domain"
	"github.com/nikolayk812/storefront-cart/internal/port"
	"golang.org/x/text/currency"
)

var (
	ErrEmptyCart    = errors.New("cart is empty")
	ErrOutOfStock   = errors.New("cart has out of stock items")
	ErrLineNotFound = errors.New("cart line not found")
)

const whatsAppBaseURL = "https://wa.me/"

type AvailabilityResolver interface {
	Line(ctx context.Context, line domain.CartLine) bool
}

type NotifyRequests interface {
	Add(ctx context.Context, productID domain.ProductID) (bool, error)
	Has(ctx context.Context, productID domain.ProductID) (bool, error)
}

type LineView struct {
	Line            domain.CartLine
	State           domain.LineState
	LineTotal       domain.Money
	NotifyRequested bool
}

type View struct {
	Lines       []LineView
	Subtotal    domain.Money
	CanCheckout bool
}

func (v View) AnyOutOfStock() bool {
	for _, l := range v.Lines {
		if l.State == domain.OutOfStock {
			return true
		}
	}
	return false
}

type Service struct {
	repo         port.CartRepository
	resolver     AvailabilityResolver
	notifies     NotifyRequests
	number       string
	currency     currency.Unit
	resolveImage func(string) string
}

func New(repo port.CartRepository, resolver AvailabilityResolver, notifies NotifyRequests, cfg config.CheckoutConfig, resolveImage func(string) string) *Service {
	if resolveImage == nil {
		resolveImage = func(s string) string { return s }
	}
	return &Service{
		repo:         repo,
		resolver:     resolver,
		notifies:     notifies,
		number:       cfg.WhatsAppNumber,
		currency:     cfg.CurrencyUnit(),
		resolveImage: resolveImage,
	}
}

// View resolves every line's availability at read time, overrides included.
func (s *Service) View(ctx context.Context) (View, error) {
	cart := s.repo.Cart()

	lines := make([]LineView, 0, len(cart.Lines))
	for _, line := range cart.Lines {
		line.Available = s.resolver.Line(ctx, line)
		line.Image = s.resolveImage(line.Image)

		requested, err := s.notifies.Has(ctx, line.ProductID)
		if err != nil {
			return View{}, fmt.Errorf("notifies.Has: %w", err)
		}

		lines = append(lines, LineView{
			Line:            line,
			State:           domain.StateOf(line.Available),
			LineTotal:       line.LineTotal(),
			NotifyRequested: requested,
		})
		cart.Lines[len(lines)-1] = line
	}

	return View{
		Lines:       lines,
		Subtotal:    cart.Subtotal(s.currency),
		CanCheckout: cart.CanCheckout(),
	}, nil
}

// OrderLink composes the WhatsApp order message. Checkout is all-or-nothing.
func (s *Service) OrderLink(ctx context.Context) (string, error) {
	view, err := s.View(ctx)
	if err != nil {
		return "", fmt.Errorf("s.View: %w", err)
	}
	if len(view.Lines) == 0 {
		return "", ErrEmptyCart
	}
	if !view.CanCheckout {
		return "", ErrOutOfStock
	}

	var b strings.Builder
	b.WriteString("🛍️ NEW ORDER REQUEST\n\n")
	for i, lv := range view.Lines {
		line := lv.Line
		name := line.Name
		if name == "" {
			name = "Item"
		}
		fmt.Fprintf(&b, "%d. %s\n   Qty: %d x %s = %s\n", i+1, name, domain.ClampQuantity(line.Quantity),
			s.format(line.Price), s.format(lv.LineTotal))
		if line.Image != "" {
			fmt.Fprintf(&b, "   Image: %s\n", line.Image)
		}
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "Subtotal: %s", s.format(view.Subtotal))

	return s.link(b.String()), nil
}

// NotifyLink records a back-in-stock request for the line's product and returns the WhatsApp
// link asking for it. added is false when the product had already been requested.
func (s *Service) NotifyLink(ctx context.Context, key string) (link string, added bool, err error) {
	line, ok := s.repo.Cart().Find(key)
	if !ok {
		return "", false, ErrLineNotFound
	}

	added, err = s.notifies.Add(ctx, line.ProductID)
	if err != nil {
		return "", false, fmt.Errorf("notifies.Add: %w", err)
	}

	name := line.Name
	if name == "" {
		name = "Unknown"
	}
	msg := fmt.Sprintf("Please notify me when the product is available:\nProduct: %s\nID: %s\nThank you.", name, line.ProductID)
	return s.link(msg), added, nil
}

func (s *Service) link(msg string) string {
	// encodeURIComponent style: spaces as %20
	return whatsAppBaseURL + s.number + "?text=" + strings.ReplaceAll(url.QueryEscape(msg), "+", "%20")
}

func (s *Service) format(m domain.Money) string {
	amount := m.Amount.StringFixed(2)
	if m.Currency == currency.INR {
		return "₹" + amount
	}
	return m.Currency.String() + " " + amount
}
