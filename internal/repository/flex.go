package repository

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/nikolayk812/storefront-cart/internal/domain"
	"github.com/shopspring/decimal"
)

// The legacy storefront wrote whatever JSON type it had at hand; these decode leniently and
// encode the shape the legacy pages expect.

type flexDecimal decimal.Decimal

func (d flexDecimal) MarshalJSON() ([]byte, error) {
	return []byte(decimal.Decimal(d).String()), nil
}

// UnmarshalJSON falls back to zero for anything that is not a number.
func (d *flexDecimal) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(bytes.TrimSpace(data)), `"`)
	v, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		v = decimal.Zero
	}
	*d = flexDecimal(v)
	return nil
}

type flexQuantity int

func (q *flexQuantity) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(bytes.TrimSpace(data)), `"`)
	*q = flexQuantity(domain.ParseQuantity(s))
	return nil
}

type flexString string

func (s *flexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*s = ""
		return nil
	}
	if data[0] == '"' {
		var v string
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		*s = flexString(v)
		return nil
	}
	*s = flexString(data)
	return nil
}

type flexBool struct {
	value *bool
}

func (b flexBool) MarshalJSON() ([]byte, error) {
	if b.value == nil {
		return []byte("null"), nil
	}
	return json.Marshal(*b.value)
}

func (b *flexBool) UnmarshalJSON(data []byte) error {
	b.value = parseStoredBool(string(data))
	return nil
}

// parseStoredBool accepts a boolean, the strings "true"/"false" (or "1"/"0"), or a JSON-encoded
// boolean, in that order. Anything else is nil.
func parseStoredBool(raw string) *bool {
	s := strings.TrimSpace(raw)
	switch strings.ToLower(s) {
	case "true", "1":
		return domain.Bool(true)
	case "false", "0":
		return domain.Bool(false)
	}

	var decoded any
	if err := json.Unmarshal([]byte(s), &decoded); err != nil {
		return nil
	}
	switch v := decoded.(type) {
	case bool:
		return domain.Bool(v)
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "true", "1":
			return domain.Bool(true)
		case "false", "0":
			return domain.Bool(false)
		}
	case float64:
		switch v {
		case 1:
			return domain.Bool(true)
		case 0:
			return domain.Bool(false)
		}
	}
	return nil
}
