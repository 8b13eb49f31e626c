package cartsync

import (
	"net/http"
	"net/url"
)

// The backend's cart routes are not settled, so every operation tries a short ordered list.

type endpoint struct {
	Method string
	Path   string
}

func createEndpoints() []endpoint {
	return []endpoint{
		{http.MethodPost, "/api/carts/"},
		{http.MethodPost, "/api/cart/"},
		{http.MethodPost, "/api/carts"},
		{http.MethodPost, "/api/cart"},
	}
}

func updateEndpoints(cartID string) []endpoint {
	id := url.PathEscape(cartID)
	return []endpoint{
		{http.MethodPut, "/api/carts/" + id},
		{http.MethodPut, "/api/carts/" + id + "/"},
		{http.MethodPatch, "/api/carts/" + id + "/"},
		{http.MethodPut, "/api/cart/" + id + "/"},
		{http.MethodPut, "/api/cart/" + id},
	}
}

func loadEndpoints(cartID string) []endpoint {
	id := url.PathEscape(cartID)
	return []endpoint{
		{http.MethodGet, "/api/carts/" + id},
		{http.MethodGet, "/api/carts/" + id + "/"},
		{http.MethodGet, "/api/cart/" + id + "/"},
		{http.MethodGet, "/api/cart/" + id},
	}
}

// Server line items of the logged-in user's cart.
const (
	serverItemsPath = "/api/cart/items/"
	serverCartPath  = "/api/cart/"
)

func serverItemRemovePath(serverID string) string {
	return "/api/cart/items/" + url.PathEscape(serverID) + "/remove/"
}
