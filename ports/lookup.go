package ports

import (
	"context"

	"github.com/layer-3/siwa/core"
	"github.com/layer-3/siwa/scheme"
)

// AccountLookup resolves the authentication key an account currently stores
type AccountLookup interface {
	AuthenticationKey(ctx context.Context, address core.Address) (scheme.AuthenticationKey, error)
}
