package envelope

import (
	"fmt"

	"github.com/layer-3/siwa/core"
	"github.com/layer-3/siwa/scheme"
)

// LegacyVersion1 carries the full message a wallet signed through signMessage.
const (
	LegacyVersion1       = "1"
	CurrentLegacyVersion = LegacyVersion1
)

// LegacyEnvelope is the wire form of a legacy sign-in output.
type LegacyEnvelope struct {
	Version   string `json:"version"`
	Type      string `json:"type"`
	Signature string `json:"signature"`
	PublicKey string `json:"publicKey"`
	Message   string `json:"message"`
}

// LegacyOutput is a decoded legacy sign-in output.
type LegacyOutput struct {
	Version   string
	Scheme    scheme.Scheme
	PublicKey scheme.PublicKey
	Signature scheme.Signature
	// FullMessage is the exact text the wallet signed, including its own
	// framing around the embedded sign-in message.
	FullMessage string
}

var legacyVersions = map[string]struct{}{
	LegacyVersion1: {},
}

// EncodeLegacy serializes out under the given legacy version.
func (c *Codec) EncodeLegacy(out LegacyOutput, v string) (LegacyEnvelope, error) {
	if _, ok := legacyVersions[v]; !ok {
		return LegacyEnvelope{}, fmt.Errorf("%w: legacy %q", core.ErrUnsupportedVersion, v)
	}
	if out.PublicKey == nil || out.Signature == nil {
		return LegacyEnvelope{}, fmt.Errorf("%w: public key and signature are required", core.ErrInvalidEncoding)
	}
	return LegacyEnvelope{
		Version:   v,
		Type:      string(out.PublicKey.Scheme()),
		Signature: EncodeHex(out.Signature.Bytes()),
		PublicKey: EncodeHex(out.PublicKey.Bytes()),
		Message:   out.FullMessage,
	}, nil
}

// DecodeLegacy parses a legacy envelope.
func (c *Codec) DecodeLegacy(env LegacyEnvelope) (LegacyOutput, error) {
	if _, ok := legacyVersions[env.Version]; !ok {
		return LegacyOutput{}, fmt.Errorf("%w: legacy %q", core.ErrUnsupportedVersion, env.Version)
	}

	out, err := c.decodeCommon(env.Type, env.PublicKey, env.Signature)
	if err != nil {
		return LegacyOutput{}, err
	}
	return LegacyOutput{
		Version:     env.Version,
		Scheme:      out.Scheme,
		PublicKey:   out.PublicKey,
		Signature:   out.Signature,
		FullMessage: env.Message,
	}, nil
}
