// Package derived implements accounts derived from an external wallet
// identity and authenticated by an on-chain function. Concrete wallet
// families plug in how identities look and how their signatures verify.
package derived

import (
	"context"
	"fmt"
	"strings"

	"github.com/aptos-labs/aptos-go-sdk/bcs"

	"github.com/layer-3/siwa/core"
	"github.com/layer-3/siwa/scheme"
)

// FunctionInfo names the on-chain authentication function of a derived account.
type FunctionInfo struct {
	Address core.Address
	Module  string
	Name    string
}

// ParseFunction parses an identifier such as
// 0x1::solana_derivable_account::authenticate.
func ParseFunction(s string) (FunctionInfo, error) {
	parts := strings.Split(s, "::")
	if len(parts) != 3 || parts[1] == "" || parts[2] == "" {
		return FunctionInfo{}, fmt.Errorf("%w: function %q", core.ErrInvalidEncoding, s)
	}
	addr, err := core.ParseAddress(parts[0])
	if err != nil {
		return FunctionInfo{}, fmt.Errorf("%w: function %q: %v", core.ErrInvalidEncoding, s, err)
	}
	return FunctionInfo{Address: addr, Module: parts[1], Name: parts[2]}, nil
}

func (f FunctionInfo) String() string {
	return f.Address.String() + "::" + f.Module + "::" + f.Name
}

func (f FunctionInfo) MarshalBCS(ser *bcs.Serializer) {
	ser.FixedBytes(f.Address[:])
	ser.WriteString(f.Module)
	ser.WriteString(f.Name)
}

// Family describes one external wallet family.
type Family struct {
	Tag             scheme.Scheme
	DefaultFunction string
	// ValidateIdentity rejects identities that are not well formed for the family.
	ValidateIdentity func(identity string) error
	// Verify checks a raw signature by identity over message.
	Verify func(ctx context.Context, identity string, message, sig []byte) (bool, error)
}

// PublicKey is a derived account key: the wallet identity, the dapp domain it
// was derived for and the authentication function.
type PublicKey struct {
	Domain   string
	Identity string
	Function FunctionInfo

	function string
	family   *Family
}

// NewPublicKey builds a key of the given family. An empty function selects
// the family default.
func (f *Family) NewPublicKey(domain, identity, function string) (*PublicKey, error) {
	if function == "" {
		function = f.DefaultFunction
	}
	fn, err := ParseFunction(function)
	if err != nil {
		return nil, err
	}
	if f.ValidateIdentity != nil {
		if err := f.ValidateIdentity(identity); err != nil {
			return nil, fmt.Errorf("%w: %s identity: %v", core.ErrInvalidEncoding, f.Tag, err)
		}
	}
	return &PublicKey{Domain: domain, Identity: identity, Function: fn, function: function, family: f}, nil
}

func (k *PublicKey) Scheme() scheme.Scheme { return k.family.Tag }

func (k *PublicKey) Bytes() []byte {
	var w bcs.Serializer
	w.WriteString(k.Domain)
	w.WriteString(k.Identity)
	w.WriteString(k.function)
	return w.ToBytes()
}

// AbstractPublicKey is the identity and domain as the authentication
// function receives them.
func (k *PublicKey) AbstractPublicKey() []byte {
	var w bcs.Serializer
	w.WriteString(k.Identity)
	w.WriteString(k.Domain)
	return w.ToBytes()
}

func (k *PublicKey) AuthKey() scheme.AuthenticationKey {
	var w bcs.Serializer
	k.Function.MarshalBCS(&w)
	w.WriteBytes(k.AbstractPublicKey())
	return scheme.DeriveAuthKey(w.ToBytes(), scheme.AuthKeyDerived)
}

func (k *PublicKey) Verify(ctx context.Context, message []byte, sig scheme.Signature) (bool, error) {
	s, ok := sig.(*Signature)
	if !ok || s.tag != k.family.Tag {
		return false, nil
	}
	return k.family.Verify(ctx, k.Identity, message, s.raw)
}

// Signature is a raw signature produced by an external wallet.
type Signature struct {
	tag scheme.Scheme
	raw []byte
}

// NewSignature wraps a raw wallet signature.
func (f *Family) NewSignature(raw []byte) *Signature {
	return &Signature{tag: f.Tag, raw: append([]byte{}, raw...)}
}

func (s *Signature) Scheme() scheme.Scheme { return s.tag }

// Raw returns the wallet signature without framing.
func (s *Signature) Raw() []byte { return s.raw }

func (s *Signature) Bytes() []byte {
	var w bcs.Serializer
	w.WriteBytes(s.raw)
	return w.ToBytes()
}

// Codec returns the scheme codec of the family.
func (f *Family) Codec() scheme.Codec {
	return codec{family: f}
}

type codec struct {
	family *Family
}

func (c codec) DecodePublicKey(b []byte) (scheme.PublicKey, error) {
	des := bcs.NewDeserializer(b)
	var fields [3]string
	for i := range fields {
		fields[i] = des.ReadString()
	}
	if err := done(des); err != nil {
		return nil, err
	}
	return c.family.NewPublicKey(fields[0], fields[1], fields[2])
}

func (c codec) DecodeSignature(b []byte) (scheme.Signature, error) {
	des := bcs.NewDeserializer(b)
	raw := des.ReadBytes()
	if err := done(des); err != nil {
		return nil, err
	}
	return c.family.NewSignature(raw), nil
}

func done(des *bcs.Deserializer) error {
	err := des.Error()
	if err == nil && des.Remaining() > 0 {
		err = fmt.Errorf("%d trailing bytes", des.Remaining())
	}
	if err != nil {
		return fmt.Errorf("%w: %v", core.ErrInvalidEncoding, err)
	}
	return nil
}
