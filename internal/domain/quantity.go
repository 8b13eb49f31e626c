package domain

import (
	"math"
	"strconv"
	"strings"
)

func ClampQuantity(qty int) int {
	return max(1, qty)
}

// ParseQuantity treats anything non-numeric as 1.
func ParseQuantity(raw string) int {
	raw = strings.TrimSpace(raw)
	if n, err := strconv.Atoi(raw); err == nil {
		return ClampQuantity(n)
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 1
	}
	if f > math.MaxInt32 {
		return math.MaxInt32
	}
	return ClampQuantity(int(f))
}
