// Package lookup resolves the authentication keys of accounts.
package lookup

import (
	"context"

	"github.com/layer-3/siwa/core"
	"github.com/layer-3/siwa/scheme"
)

// Static serves authentication keys from memory. Accounts without an entry
// are treated as never rotated.
type Static map[core.Address]scheme.AuthenticationKey

// AuthenticationKey returns the configured key or the address itself
func (s Static) AuthenticationKey(_ context.Context, address core.Address) (scheme.AuthenticationKey, error) {
	if key, ok := s[address]; ok {
		return key, nil
	}
	return scheme.AuthenticationKey(address), nil
}
