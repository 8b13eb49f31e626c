package repository

import "strings"

// Persisted layout shared with the legacy storefront.
const (
	KeyCart           = "cart"
	KeyCartItems      = "cartItems"
	KeyCartID         = "cartId"
	KeyCartServerMap  = "cartServerMap"
	KeyNotifyRequests = "notify_requests"
	KeyAccessToken    = "access"
	KeyLegacyToken    = "token"

	OverridePrefix = "availability_override:"
)

// WatchedKey reports whether an external write to key should make observers re-read the cart.
func WatchedKey(key string) bool {
	switch key {
	case KeyCart, KeyCartItems, KeyNotifyRequests:
		return true
	}
	return strings.HasPrefix(key, OverridePrefix)
}
