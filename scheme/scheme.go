// Package scheme decodes account public keys and signatures by scheme tag,
// derives their authentication keys and verifies signatures.
package scheme

import (
	"context"
	"fmt"

	aptoscrypto "github.com/aptos-labs/aptos-go-sdk/crypto"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/layer-3/siwa/core"
)

// Scheme is the wallet-reported signing scheme tag.
type Scheme string

const (
	Ed25519         Scheme = "ed25519"
	MultiEd25519    Scheme = "multi_ed25519"
	SingleKey       Scheme = "single_key"
	MultiKey        Scheme = "multi_key"
	SolanaDerived   Scheme = "solana_derived"
	EthereumDerived Scheme = "ethereum_derived"
)

var builtins = []Scheme{Ed25519, MultiEd25519, SingleKey, MultiKey}

var extensions = []Scheme{SolanaDerived, EthereumDerived}

// ParseScheme validates a scheme tag.
func ParseScheme(s string) (Scheme, error) {
	tag := Scheme(s)
	if !tag.Known() {
		return "", fmt.Errorf("%w: %q", core.ErrUnknownScheme, s)
	}
	return tag, nil
}

// Known reports whether s is one of the recognized scheme tags, supported or not.
func (s Scheme) Known() bool {
	return s.builtin() || s.extension()
}

func (s Scheme) builtin() bool {
	for _, b := range builtins {
		if s == b {
			return true
		}
	}
	return false
}

func (s Scheme) extension() bool {
	for _, e := range extensions {
		if s == e {
			return true
		}
	}
	return false
}

// Authentication key scheme identifiers, appended to the key material before hashing.
const (
	authKeyEd25519      = aptoscrypto.Ed25519Scheme
	authKeyMultiEd25519 = aptoscrypto.MultiEd25519Scheme
	authKeySingleKey    = aptoscrypto.SingleKeyScheme
	authKeyMultiKey     = aptoscrypto.MultiKeyScheme
	// AuthKeyDerived is used by derivable abstracted accounts.
	AuthKeyDerived aptoscrypto.DeriveScheme = 0x05
)

// AuthenticationKey is the 32-byte digest an account stores to identify the
// keys allowed to sign for it.
type AuthenticationKey [32]byte

// DeriveAuthKey computes sha3_256(material || id).
func DeriveAuthKey(material []byte, id aptoscrypto.DeriveScheme) AuthenticationKey {
	var k aptoscrypto.AuthenticationKey
	k.FromBytesAndScheme(material, id)
	return AuthenticationKey(k)
}

// Address returns the account address an unrotated account has for this key.
func (k AuthenticationKey) Address() core.Address {
	return core.Address(k)
}

func (k AuthenticationKey) String() string {
	return hexutil.Encode(k[:])
}

// PublicKey is an account public key of some scheme.
type PublicKey interface {
	Scheme() Scheme
	// Bytes returns the serialized form carried on the wire.
	Bytes() []byte
	AuthKey() AuthenticationKey
	// Verify checks sig over message. A signature of another scheme or a
	// malformed one yields false, not an error.
	Verify(ctx context.Context, message []byte, sig Signature) (bool, error)
}

// Signature is a signature of some scheme.
type Signature interface {
	Scheme() Scheme
	Bytes() []byte
}

// Codec decodes the wire forms of one scheme.
type Codec interface {
	DecodePublicKey(b []byte) (PublicKey, error)
	DecodeSignature(b []byte) (Signature, error)
}

// Loader produces the codec of an extension scheme. It is called at most once.
type Loader func() (Codec, error)
