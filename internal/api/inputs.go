package api

import (
	"bytes"
	"encoding/json"

	"github.com/nikolayk812/storefront-cart/internal/domain"
)

// quantityInput takes whatever a page sends as a quantity: numbers, numeric strings, fractions.
// Anything non-numeric counts as 1.
type quantityInput int

func (q *quantityInput) UnmarshalJSON(data []byte) error {
	raw := string(bytes.TrimSpace(data))
	if len(raw) > 0 && raw[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err == nil {
			raw = s
		}
	}
	*q = quantityInput(domain.ParseQuantity(raw))
	return nil
}

// textInput accepts a string or a bare number, e.g. a weight sent as 200.
type textInput string

func (t *textInput) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case len(data) == 0 || bytes.Equal(data, []byte("null")):
		*t = ""
	case data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*t = textInput(s)
	default:
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return err
		}
		*t = textInput(n.String())
	}
	return nil
}
