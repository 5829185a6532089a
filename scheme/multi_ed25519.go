package scheme

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"fmt"

	"github.com/aptos-labs/aptos-go-sdk/bcs"
	aptoscrypto "github.com/aptos-labs/aptos-go-sdk/crypto"

	"github.com/layer-3/siwa/core"
)

const (
	maxMultiSigners = 32
	bitmapLength    = 4
)

// MultiEd25519PublicKey is a k-of-n set of ed25519 keys.
type MultiEd25519PublicKey struct {
	keys      []*aptoscrypto.Ed25519PublicKey
	threshold uint8
}

// NewMultiEd25519PublicKey builds a threshold key. At least threshold of the
// keys must sign.
func NewMultiEd25519PublicKey(keys []ed25519.PublicKey, threshold uint8) (*MultiEd25519PublicKey, error) {
	if len(keys) == 0 || len(keys) > maxMultiSigners {
		return nil, fmt.Errorf("%w: multi_ed25519 needs 1 to %d keys, got %d", core.ErrInvalidEncoding, maxMultiSigners, len(keys))
	}
	if threshold == 0 || int(threshold) > len(keys) {
		return nil, fmt.Errorf("%w: multi_ed25519 threshold %d out of range", core.ErrInvalidEncoding, threshold)
	}
	out := &MultiEd25519PublicKey{threshold: threshold}
	for _, k := range keys {
		pk, err := newAptosEd25519Key(k)
		if err != nil {
			return nil, err
		}
		out.keys = append(out.keys, pk)
	}
	return out, nil
}

func (k *MultiEd25519PublicKey) Scheme() Scheme { return MultiEd25519 }

// Threshold returns the number of signatures required.
func (k *MultiEd25519PublicKey) Threshold() uint8 { return k.threshold }

func (k *MultiEd25519PublicKey) raw() []byte {
	var buf bytes.Buffer
	for _, key := range k.keys {
		buf.Write(key.Inner)
	}
	buf.WriteByte(k.threshold)
	return buf.Bytes()
}

func (k *MultiEd25519PublicKey) Bytes() []byte {
	var ser bcs.Serializer
	ser.WriteBytes(k.raw())
	return ser.ToBytes()
}

func (k *MultiEd25519PublicKey) AuthKey() AuthenticationKey {
	return DeriveAuthKey(k.raw(), authKeyMultiEd25519)
}

func (k *MultiEd25519PublicKey) Verify(_ context.Context, message []byte, sig Signature) (bool, error) {
	s, ok := sig.(*MultiEd25519Signature)
	if !ok {
		return false, nil
	}
	signers := bitmapIndices(s.bitmap[:])
	if len(signers) < int(k.threshold) || len(signers) != len(s.sigs) {
		return false, nil
	}
	for i, idx := range signers {
		if idx >= len(k.keys) || !k.keys[idx].Verify(message, s.sigs[i]) {
			return false, nil
		}
	}
	return true, nil
}

// MultiEd25519Signature holds one ed25519 signature per signer set in the bitmap.
type MultiEd25519Signature struct {
	sigs   []*aptoscrypto.Ed25519Signature
	bitmap [bitmapLength]byte
}

// NewMultiEd25519Signature pairs sigs with the key indices that produced
// them. signers must be strictly ascending.
func NewMultiEd25519Signature(sigs [][]byte, signers []int) (*MultiEd25519Signature, error) {
	if len(sigs) != len(signers) {
		return nil, fmt.Errorf("%w: %d signatures for %d signers", core.ErrInvalidEncoding, len(sigs), len(signers))
	}
	bitmap, err := newBitmap(signers)
	if err != nil {
		return nil, err
	}
	out := &MultiEd25519Signature{}
	copy(out.bitmap[:], bitmap)
	for _, s := range sigs {
		sig, err := newAptosEd25519Signature(s)
		if err != nil {
			return nil, err
		}
		out.sigs = append(out.sigs, sig)
	}
	return out, nil
}

func (s *MultiEd25519Signature) Scheme() Scheme { return MultiEd25519 }

func (s *MultiEd25519Signature) Bytes() []byte {
	var buf bytes.Buffer
	for _, sig := range s.sigs {
		buf.Write(sig.Inner[:])
	}
	buf.Write(s.bitmap[:])

	var ser bcs.Serializer
	ser.WriteBytes(buf.Bytes())
	return ser.ToBytes()
}

type multiEd25519Codec struct{}

func (multiEd25519Codec) DecodePublicKey(b []byte) (PublicKey, error) {
	raw, err := decodeBytes(b)
	if err != nil {
		return nil, err
	}
	if len(raw) < ed25519.PublicKeySize+1 || (len(raw)-1)%ed25519.PublicKeySize != 0 {
		return nil, fmt.Errorf("%w: multi_ed25519 public key has invalid length %d", core.ErrInvalidEncoding, len(raw))
	}
	n := (len(raw) - 1) / ed25519.PublicKeySize
	keys := make([]ed25519.PublicKey, n)
	for i := range keys {
		keys[i] = raw[i*ed25519.PublicKeySize : (i+1)*ed25519.PublicKeySize]
	}
	return NewMultiEd25519PublicKey(keys, raw[len(raw)-1])
}

func (multiEd25519Codec) DecodeSignature(b []byte) (Signature, error) {
	raw, err := decodeBytes(b)
	if err != nil {
		return nil, err
	}
	if len(raw) < bitmapLength || (len(raw)-bitmapLength)%ed25519.SignatureSize != 0 {
		return nil, fmt.Errorf("%w: multi_ed25519 signature has invalid length %d", core.ErrInvalidEncoding, len(raw))
	}
	n := (len(raw) - bitmapLength) / ed25519.SignatureSize
	out := &MultiEd25519Signature{sigs: make([]*aptoscrypto.Ed25519Signature, n)}
	for i := range out.sigs {
		if out.sigs[i], err = newAptosEd25519Signature(raw[i*ed25519.SignatureSize : (i+1)*ed25519.SignatureSize]); err != nil {
			return nil, err
		}
	}
	copy(out.bitmap[:], raw[len(raw)-bitmapLength:])
	return out, nil
}

// bitmapIndices lists the set bits of a signer bitmap, most significant bit
// of the first byte being index 0.
func bitmapIndices(bitmap []byte) []int {
	var out []int
	for i := 0; i < len(bitmap)*8; i++ {
		if bitmap[i/8]&(128>>(i%8)) != 0 {
			out = append(out, i)
		}
	}
	return out
}

func newBitmap(signers []int) ([]byte, error) {
	bitmap := make([]byte, bitmapLength)
	last := -1
	for _, idx := range signers {
		if idx <= last || idx >= maxMultiSigners {
			return nil, fmt.Errorf("%w: invalid signer index %d", core.ErrInvalidEncoding, idx)
		}
		bitmap[idx/8] |= 128 >> (idx % 8)
		last = idx
	}
	return bitmap, nil
}

// decodeBytes reads a single length-prefixed byte sequence that must span b.
func decodeBytes(b []byte) ([]byte, error) {
	des := bcs.NewDeserializer(b)
	raw := des.ReadBytes()
	err := des.Error()
	if err == nil && des.Remaining() > 0 {
		err = fmt.Errorf("%d trailing bytes", des.Remaining())
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrInvalidEncoding, err)
	}
	return raw, nil
}
