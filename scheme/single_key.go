package scheme

import (
	"context"
	"fmt"

	"github.com/aptos-labs/aptos-go-sdk/bcs"
	aptoscrypto "github.com/aptos-labs/aptos-go-sdk/crypto"
	"github.com/ethereum/go-ethereum/crypto"
	"golang.org/x/crypto/sha3"

	"github.com/layer-3/siwa/core"
)

// KeyVariant selects the algorithm of a single_key public key or signature.
type KeyVariant uint32

const (
	VariantEd25519   KeyVariant = 0
	VariantSecp256k1 KeyVariant = 1
)

const secp256k1SignatureSize = 64

// anyKey is one algorithm-tagged key inside single_key and multi_key.
type anyKey struct {
	variant KeyVariant
	raw     []byte
	ed25519 *aptoscrypto.Ed25519PublicKey
}

func newAnyKey(variant KeyVariant, raw []byte) (anyKey, error) {
	key := anyKey{variant: variant, raw: append([]byte{}, raw...)}
	switch variant {
	case VariantEd25519:
		pk, err := newAptosEd25519Key(raw)
		if err != nil {
			return anyKey{}, err
		}
		key.ed25519 = pk
	case VariantSecp256k1:
		if err := checkSecp256k1Key(raw); err != nil {
			return anyKey{}, err
		}
	default:
		return anyKey{}, fmt.Errorf("%w: single_key variant %d", core.ErrUnsupportedScheme, variant)
	}
	return key, nil
}

func checkSecp256k1Key(raw []byte) error {
	var err error
	switch len(raw) {
	case 33:
		_, err = crypto.DecompressPubkey(raw)
	case 65:
		_, err = crypto.UnmarshalPubkey(raw)
	default:
		err = fmt.Errorf("length %d", len(raw))
	}
	if err != nil {
		return fmt.Errorf("%w: secp256k1 public key: %v", core.ErrInvalidEncoding, err)
	}
	return nil
}

func (k *anyKey) MarshalBCS(ser *bcs.Serializer) {
	ser.Uleb128(uint32(k.variant))
	ser.WriteBytes(k.raw)
}

func (k *anyKey) UnmarshalBCS(des *bcs.Deserializer) {
	variant := KeyVariant(des.Uleb128())
	if des.Error() != nil {
		return
	}
	if variant != VariantEd25519 && variant != VariantSecp256k1 {
		des.SetError(fmt.Errorf("%w: single_key variant %d", core.ErrUnsupportedScheme, variant))
		return
	}
	raw := des.ReadBytes()
	if des.Error() != nil {
		return
	}
	key, err := newAnyKey(variant, raw)
	if err != nil {
		des.SetError(err)
		return
	}
	*k = key
}

func (k *anyKey) verify(message []byte, sig anySignature) bool {
	if sig.variant != k.variant {
		return false
	}
	switch k.variant {
	case VariantEd25519:
		s, err := newAptosEd25519Signature(sig.raw)
		return err == nil && k.ed25519.Verify(message, s)
	case VariantSecp256k1:
		if len(sig.raw) != secp256k1SignatureSize {
			return false
		}
		digest := sha3.Sum256(message)
		return crypto.VerifySignature(k.raw, digest[:], sig.raw)
	}
	return false
}

// anySignature is one algorithm-tagged signature inside single_key and multi_key.
type anySignature struct {
	variant KeyVariant
	raw     []byte
}

func (s *anySignature) MarshalBCS(ser *bcs.Serializer) {
	ser.Uleb128(uint32(s.variant))
	ser.WriteBytes(s.raw)
}

func (s *anySignature) UnmarshalBCS(des *bcs.Deserializer) {
	s.variant = KeyVariant(des.Uleb128())
	s.raw = des.ReadBytes()
}

// SingleKeyPublicKey is an account key of any supported algorithm.
type SingleKeyPublicKey struct {
	key anyKey
}

// NewSingleKeyPublicKey wraps a raw key of the given variant. secp256k1 keys
// may be compressed (33 bytes) or uncompressed (65 bytes).
func NewSingleKeyPublicKey(variant KeyVariant, raw []byte) (*SingleKeyPublicKey, error) {
	key, err := newAnyKey(variant, raw)
	if err != nil {
		return nil, err
	}
	return &SingleKeyPublicKey{key: key}, nil
}

func (k *SingleKeyPublicKey) Scheme() Scheme { return SingleKey }

// Variant returns the key algorithm.
func (k *SingleKeyPublicKey) Variant() KeyVariant { return k.key.variant }

func (k *SingleKeyPublicKey) Bytes() []byte {
	return encodeBCS(&k.key)
}

func (k *SingleKeyPublicKey) AuthKey() AuthenticationKey {
	return DeriveAuthKey(k.Bytes(), authKeySingleKey)
}

func (k *SingleKeyPublicKey) Verify(_ context.Context, message []byte, sig Signature) (bool, error) {
	s, ok := sig.(*SingleKeySignature)
	if !ok {
		return false, nil
	}
	return k.key.verify(message, s.sig), nil
}

// SingleKeySignature is a signature of any supported algorithm.
type SingleKeySignature struct {
	sig anySignature
}

// NewSingleKeySignature wraps a raw signature of the given variant. secp256k1
// signatures are 64 bytes, r followed by s.
func NewSingleKeySignature(variant KeyVariant, raw []byte) *SingleKeySignature {
	return &SingleKeySignature{sig: anySignature{variant: variant, raw: append([]byte{}, raw...)}}
}

func (s *SingleKeySignature) Scheme() Scheme { return SingleKey }

func (s *SingleKeySignature) Bytes() []byte {
	return encodeBCS(&s.sig)
}

type singleKeyCodec struct{}

func (singleKeyCodec) DecodePublicKey(b []byte) (PublicKey, error) {
	out := &SingleKeyPublicKey{}
	if err := decodeBCS(b, &out.key); err != nil {
		return nil, err
	}
	return out, nil
}

func (singleKeyCodec) DecodeSignature(b []byte) (Signature, error) {
	out := &SingleKeySignature{}
	if err := decodeBCS(b, &out.sig); err != nil {
		return nil, err
	}
	return out, nil
}
