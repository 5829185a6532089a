package scheme

import (
	"context"
	"crypto/ed25519"
	"errors"
	"fmt"

	"github.com/aptos-labs/aptos-go-sdk/bcs"
	aptoscrypto "github.com/aptos-labs/aptos-go-sdk/crypto"

	"github.com/layer-3/siwa/core"
)

// Ed25519PublicKey is a single ed25519 account key.
type Ed25519PublicKey struct {
	key *aptoscrypto.Ed25519PublicKey
}

// NewEd25519PublicKey wraps a raw 32-byte ed25519 key.
func NewEd25519PublicKey(key []byte) (*Ed25519PublicKey, error) {
	pk, err := newAptosEd25519Key(key)
	if err != nil {
		return nil, err
	}
	return &Ed25519PublicKey{key: pk}, nil
}

func newAptosEd25519Key(key []byte) (*aptoscrypto.Ed25519PublicKey, error) {
	if len(key) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("%w: ed25519 public key must be %d bytes, got %d", core.ErrInvalidEncoding, ed25519.PublicKeySize, len(key))
	}
	pk := &aptoscrypto.Ed25519PublicKey{}
	if err := pk.FromBytes(append([]byte{}, key...)); err != nil {
		return nil, fmt.Errorf("%w: ed25519 public key: %v", core.ErrInvalidEncoding, err)
	}
	return pk, nil
}

func newAptosEd25519Signature(sig []byte) (*aptoscrypto.Ed25519Signature, error) {
	if len(sig) != ed25519.SignatureSize {
		return nil, fmt.Errorf("%w: ed25519 signature must be %d bytes, got %d", core.ErrInvalidEncoding, ed25519.SignatureSize, len(sig))
	}
	s := &aptoscrypto.Ed25519Signature{}
	if err := s.FromBytes(sig); err != nil {
		return nil, fmt.Errorf("%w: ed25519 signature: %v", core.ErrInvalidEncoding, err)
	}
	return s, nil
}

func (k *Ed25519PublicKey) Scheme() Scheme { return Ed25519 }

// Key returns the raw key.
func (k *Ed25519PublicKey) Key() ed25519.PublicKey { return k.key.Inner }

func (k *Ed25519PublicKey) Bytes() []byte {
	return encodeBCS(k.key)
}

func (k *Ed25519PublicKey) AuthKey() AuthenticationKey {
	return AuthenticationKey(*k.key.AuthKey())
}

func (k *Ed25519PublicKey) Verify(_ context.Context, message []byte, sig Signature) (bool, error) {
	s, ok := sig.(*Ed25519Signature)
	if !ok {
		return false, nil
	}
	return k.key.Verify(message, s.sig), nil
}

// Ed25519Signature is a 64-byte ed25519 signature.
type Ed25519Signature struct {
	sig *aptoscrypto.Ed25519Signature
}

// NewEd25519Signature wraps a raw 64-byte ed25519 signature.
func NewEd25519Signature(sig []byte) (*Ed25519Signature, error) {
	s, err := newAptosEd25519Signature(sig)
	if err != nil {
		return nil, err
	}
	return &Ed25519Signature{sig: s}, nil
}

func (s *Ed25519Signature) Scheme() Scheme { return Ed25519 }

func (s *Ed25519Signature) Bytes() []byte {
	return encodeBCS(s.sig)
}

type ed25519Codec struct{}

func (ed25519Codec) DecodePublicKey(b []byte) (PublicKey, error) {
	pk := &aptoscrypto.Ed25519PublicKey{}
	if err := decodeBCS(b, pk); err != nil {
		return nil, err
	}
	if len(pk.Inner) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("%w: ed25519 public key must be %d bytes, got %d", core.ErrInvalidEncoding, ed25519.PublicKeySize, len(pk.Inner))
	}
	return &Ed25519PublicKey{key: pk}, nil
}

func (ed25519Codec) DecodeSignature(b []byte) (Signature, error) {
	sig := &aptoscrypto.Ed25519Signature{}
	if err := decodeBCS(b, sig); err != nil {
		return nil, err
	}
	return &Ed25519Signature{sig: sig}, nil
}

func encodeBCS(v bcs.Marshaler) []byte {
	var ser bcs.Serializer
	v.MarshalBCS(&ser)
	return ser.ToBytes()
}

// decodeBCS unmarshals v from b, which it must span exactly.
func decodeBCS(b []byte, v bcs.Unmarshaler) error {
	des := bcs.NewDeserializer(b)
	v.UnmarshalBCS(des)
	err := des.Error()
	if err == nil && des.Remaining() > 0 {
		err = fmt.Errorf("%d trailing bytes", des.Remaining())
	}
	switch {
	case err == nil:
		return nil
	case errors.Is(err, core.ErrInvalidEncoding), errors.Is(err, core.ErrUnsupportedScheme):
		return err
	default:
		return fmt.Errorf("%w: %v", core.ErrInvalidEncoding, err)
	}
}
