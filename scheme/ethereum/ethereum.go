// Package ethereum verifies accounts derived from Ethereum wallets.
package ethereum

import (
	"context"
	"errors"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/layer-3/siwa/scheme"
	"github.com/layer-3/siwa/scheme/derived"
)

// DefaultFunction authenticates Ethereum derived accounts on chain.
const DefaultFunction = "0x1::ethereum_derivable_account::authenticate"

const signatureLength = 65

// Family describes Ethereum derived accounts: the identity is a hex address
// and the wallet signs the signing message with personal_sign.
var Family = &derived.Family{
	Tag:              scheme.EthereumDerived,
	DefaultFunction:  DefaultFunction,
	ValidateIdentity: validateIdentity,
	Verify:           verify,
}

// Load installs the family into a registry.
func Load() (scheme.Codec, error) {
	return Family.Codec(), nil
}

// NewPublicKey derives the account key of an Ethereum wallet for a domain.
func NewPublicKey(domain string, address common.Address) (*derived.PublicKey, error) {
	return Family.NewPublicKey(domain, address.Hex(), "")
}

func validateIdentity(identity string) error {
	if !common.IsHexAddress(identity) {
		return errors.New("not a hex address")
	}
	return nil
}

// verify recovers the personal_sign signer and compares it to the identity.
func verify(_ context.Context, identity string, message, sig []byte) (bool, error) {
	if len(sig) != signatureLength || !common.IsHexAddress(identity) {
		return false, nil
	}

	s := make([]byte, signatureLength)
	copy(s, sig)
	if s[crypto.RecoveryIDOffset] >= 27 {
		s[crypto.RecoveryIDOffset] -= 27
	}

	pub, err := crypto.SigToPub(accounts.TextHash(message), s)
	if err != nil {
		return false, nil
	}
	return crypto.PubkeyToAddress(*pub) == common.HexToAddress(identity), nil
}
