package domain

import "errors"

var (
	// ErrCartNotUpdated is reported when a cart write could not be verified by reading it back.
	ErrCartNotUpdated    = errors.New("could not update cart")
	ErrMissingProductID  = errors.New("product id is empty")
	ErrMalformedOverride = errors.New("malformed availability override")
	ErrRemoteSync        = errors.New("remote cart sync failed")
)
