package domain

import (
	"strings"

	"github.com/google/uuid"
)

// LocalCartIDPrefix tags ids minted after server cart creation failed.
const LocalCartIDPrefix = "local-"

type CartID string

func NewLocalCartID() CartID {
	return CartID(LocalCartIDPrefix + uuid.NewString())
}

func (id CartID) String() string {
	return string(id)
}

func (id CartID) IsZero() bool {
	return strings.TrimSpace(string(id)) == ""
}

// IsLocal reports a fallback id. A local id is never synced against the server.
func (id CartID) IsLocal() bool {
	return strings.HasPrefix(string(id), LocalCartIDPrefix)
}
