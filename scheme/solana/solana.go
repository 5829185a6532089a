// Package solana verifies accounts derived from Solana wallets.
package solana

import (
	"context"
	"crypto/ed25519"
	"fmt"

	aptoscrypto "github.com/aptos-labs/aptos-go-sdk/crypto"
	"github.com/mr-tron/base58"

	"github.com/layer-3/siwa/scheme"
	"github.com/layer-3/siwa/scheme/derived"
)

// DefaultFunction authenticates Solana derived accounts on chain.
const DefaultFunction = "0x1::solana_derivable_account::authenticate"

// Family describes Solana derived accounts: the identity is a base58 ed25519
// public key and the wallet signs the signing message with it.
var Family = &derived.Family{
	Tag:              scheme.SolanaDerived,
	DefaultFunction:  DefaultFunction,
	ValidateIdentity: validateIdentity,
	Verify:           verify,
}

// Load installs the family into a registry:
//
//	scheme.NewRegistry(scheme.WithExtension(scheme.SolanaDerived, solana.Load))
func Load() (scheme.Codec, error) {
	return Family.Codec(), nil
}

// NewPublicKey derives the account key of a Solana wallet for a domain.
func NewPublicKey(domain string, key ed25519.PublicKey) (*derived.PublicKey, error) {
	return Family.NewPublicKey(domain, base58.Encode(key), "")
}

func decodeIdentity(identity string) (*aptoscrypto.Ed25519PublicKey, error) {
	raw, err := base58.Decode(identity)
	if err != nil {
		return nil, err
	}
	if len(raw) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("expected %d byte key, got %d", ed25519.PublicKeySize, len(raw))
	}
	key := &aptoscrypto.Ed25519PublicKey{}
	if err := key.FromBytes(raw); err != nil {
		return nil, err
	}
	return key, nil
}

func validateIdentity(identity string) error {
	_, err := decodeIdentity(identity)
	return err
}

func verify(_ context.Context, identity string, message, sig []byte) (bool, error) {
	key, err := decodeIdentity(identity)
	if err != nil || len(sig) != ed25519.SignatureSize {
		return false, nil
	}
	s := &aptoscrypto.Ed25519Signature{}
	if err := s.FromBytes(sig); err != nil {
		return false, nil
	}
	return key.Verify(message, s), nil
}
