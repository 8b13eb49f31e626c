package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// ProductID is kept as a string because the backend emits ids as numbers in some payloads and as
// strings in others.
type ProductID string

func (id ProductID) String() string {
	return strings.TrimSpace(string(id))
}

func (id ProductID) IsZero() bool {
	return id.String() == ""
}

// Equivalent reports whether two ids name the same product, so 42, "42" and "042" match.
func (id ProductID) Equivalent(other ProductID) bool {
	a, b := id.String(), other.String()
	if a == "" || b == "" {
		return false
	}
	if a == b {
		return true
	}
	ai, aerr := strconv.ParseInt(a, 10, 64)
	bi, berr := strconv.ParseInt(b, 10, 64)
	if aerr == nil && berr == nil {
		return ai == bi
	}
	af, aerr := strconv.ParseFloat(a, 64)
	bf, berr := strconv.ParseFloat(b, 64)
	return aerr == nil && berr == nil && af == bf
}

// MarshalJSON writes canonical integers as JSON numbers to stay readable by the legacy storefront.
func (id ProductID) MarshalJSON() ([]byte, error) {
	s := id.String()
	if s == "" {
		return []byte("null"), nil
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil && strconv.FormatInt(n, 10) == s {
		return []byte(s), nil
	}
	return json.Marshal(s)
}

func (id *ProductID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("product id: %w", err)
		}
		*id = ProductID(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("product id: %w", err)
	}
	*id = ProductID(n.String())
	return nil
}
