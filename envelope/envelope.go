// Package envelope converts sign-in outputs to and from the versioned JSON
// envelopes exchanged between wallets, frontends and relying parties.
package envelope

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/layer-3/siwa/core"
	"github.com/layer-3/siwa/scheme"
)

const (
	// Version1 carries the signed message text.
	Version1 = "1"
	// Version2 carries the structured sign-in input.
	Version2 = "2"

	CurrentVersion = Version2
)

// Envelope is the wire form of a sign-in output.
type Envelope struct {
	Version   string            `json:"version"`
	Type      string            `json:"type"`
	Signature string            `json:"signature"`
	PublicKey string            `json:"publicKey"`
	Input     *core.SignInInput `json:"input,omitempty"`
	Message   *string           `json:"message,omitempty"`
}

// Output is a decoded sign-in output.
type Output struct {
	Version   string
	Scheme    scheme.Scheme
	PublicKey scheme.PublicKey
	Signature scheme.Signature
	// Input is set for Version2.
	Input core.SignInInput
	// Message is set for Version1.
	Message string
}

type version struct {
	required []core.Field
	encode   func(out Output, env *Envelope) error
	decode   func(env Envelope, out *Output) error
}

var versions = map[string]version{
	Version1: {
		required: []core.Field{core.FieldDomain, core.FieldAddress, core.FieldVersion, core.FieldChainID},
		encode: func(out Output, env *Envelope) error {
			if out.Message == "" {
				return fmt.Errorf("%w: version %s needs a message", core.ErrInvalidEncoding, Version1)
			}
			env.Message = &out.Message
			return nil
		},
		decode: func(env Envelope, out *Output) error {
			if env.Message == nil {
				return fmt.Errorf("%w: version %s envelope without message", core.ErrInvalidEncoding, Version1)
			}
			out.Message = *env.Message
			return nil
		},
	},
	Version2: {
		required: []core.Field{core.FieldDomain, core.FieldAddress, core.FieldURI, core.FieldVersion, core.FieldChainID},
		encode: func(out Output, env *Envelope) error {
			input := out.Input
			env.Input = &input
			return nil
		},
		decode: func(env Envelope, out *Output) error {
			if env.Input == nil {
				return fmt.Errorf("%w: version %s envelope without input", core.ErrInvalidEncoding, Version2)
			}
			out.Input = env.Input.Normalize()
			return nil
		},
	},
}

// RequiredFields returns the fields a sign-in input must carry under version.
func RequiredFields(v string) ([]core.Field, error) {
	row, ok := versions[v]
	if !ok {
		return nil, fmt.Errorf("%w: %q", core.ErrUnsupportedVersion, v)
	}
	return append([]core.Field{}, row.required...), nil
}

// Codec encodes and decodes envelopes using a scheme registry.
type Codec struct {
	registry *scheme.Registry
}

// NewCodec creates a codec resolving keys and signatures through registry.
func NewCodec(registry *scheme.Registry) *Codec {
	return &Codec{registry: registry}
}

// Encode serializes out under the given version.
func (c *Codec) Encode(out Output, v string) (Envelope, error) {
	row, ok := versions[v]
	if !ok {
		return Envelope{}, fmt.Errorf("%w: %q", core.ErrUnsupportedVersion, v)
	}
	if out.PublicKey == nil || out.Signature == nil {
		return Envelope{}, fmt.Errorf("%w: public key and signature are required", core.ErrInvalidEncoding)
	}

	env := Envelope{
		Version:   v,
		Type:      string(out.PublicKey.Scheme()),
		Signature: EncodeHex(out.Signature.Bytes()),
		PublicKey: EncodeHex(out.PublicKey.Bytes()),
	}
	if err := row.encode(out, &env); err != nil {
		return Envelope{}, err
	}
	return env, nil
}

// Decode parses env. Unknown versions and schemes are errors, never coerced.
func (c *Codec) Decode(env Envelope) (Output, error) {
	row, ok := versions[env.Version]
	if !ok {
		return Output{}, fmt.Errorf("%w: %q", core.ErrUnsupportedVersion, env.Version)
	}

	out, err := c.decodeCommon(env.Type, env.PublicKey, env.Signature)
	if err != nil {
		return Output{}, err
	}
	out.Version = env.Version

	if err := row.decode(env, &out); err != nil {
		return Output{}, err
	}
	return out, nil
}

func (c *Codec) decodeCommon(typ, publicKey, signature string) (Output, error) {
	tag, err := scheme.ParseScheme(typ)
	if err != nil {
		return Output{}, err
	}

	pkBytes, err := DecodeHex(publicKey)
	if err != nil {
		return Output{}, fmt.Errorf("public key: %w", err)
	}
	pk, err := c.registry.DecodePublicKey(tag, pkBytes)
	if err != nil {
		return Output{}, fmt.Errorf("public key: %w", err)
	}

	sigBytes, err := DecodeHex(signature)
	if err != nil {
		return Output{}, fmt.Errorf("signature: %w", err)
	}
	sig, err := c.registry.DecodeSignature(tag, sigBytes)
	if err != nil {
		return Output{}, fmt.Errorf("signature: %w", err)
	}

	return Output{Scheme: tag, PublicKey: pk, Signature: sig}, nil
}

// EncodeHex renders b as lowercase 0x-prefixed hex.
func EncodeHex(b []byte) string {
	return hexutil.Encode(b)
}

// DecodeHex accepts hex with or without the 0x prefix.
func DecodeHex(s string) ([]byte, error) {
	if !strings.HasPrefix(s, "0x") && !strings.HasPrefix(s, "0X") {
		s = "0x" + s
	}
	b, err := hexutil.Decode(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrInvalidEncoding, err)
	}
	return b, nil
}
