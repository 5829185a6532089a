package scheme

import (
	"context"
	"fmt"

	"github.com/aptos-labs/aptos-go-sdk/bcs"

	"github.com/layer-3/siwa/core"
)

// MultiKeyPublicKey is a k-of-n set of keys of any supported algorithm.
type MultiKeyPublicKey struct {
	keys     []anyKey
	required uint8
}

// NewMultiKeyPublicKey builds a threshold key from single keys.
func NewMultiKeyPublicKey(keys []*SingleKeyPublicKey, required uint8) (*MultiKeyPublicKey, error) {
	if len(keys) == 0 || len(keys) > maxMultiSigners {
		return nil, fmt.Errorf("%w: multi_key needs 1 to %d keys, got %d", core.ErrInvalidEncoding, maxMultiSigners, len(keys))
	}
	if required == 0 || int(required) > len(keys) {
		return nil, fmt.Errorf("%w: multi_key requires %d of %d signatures", core.ErrInvalidEncoding, required, len(keys))
	}
	out := &MultiKeyPublicKey{required: required}
	for _, k := range keys {
		out.keys = append(out.keys, k.key)
	}
	return out, nil
}

func (k *MultiKeyPublicKey) Scheme() Scheme { return MultiKey }

// SignaturesRequired returns the number of signatures required.
func (k *MultiKeyPublicKey) SignaturesRequired() uint8 { return k.required }

func (k *MultiKeyPublicKey) MarshalBCS(ser *bcs.Serializer) {
	ser.Uleb128(uint32(len(k.keys)))
	for i := range k.keys {
		k.keys[i].MarshalBCS(ser)
	}
	ser.U8(k.required)
}

func (k *MultiKeyPublicKey) UnmarshalBCS(des *bcs.Deserializer) {
	n := des.Uleb128()
	if des.Error() != nil {
		return
	}
	if n == 0 || n > maxMultiSigners {
		des.SetError(fmt.Errorf("%w: multi_key needs 1 to %d keys, got %d", core.ErrInvalidEncoding, maxMultiSigners, n))
		return
	}
	k.keys = make([]anyKey, n)
	for i := range k.keys {
		k.keys[i].UnmarshalBCS(des)
		if des.Error() != nil {
			return
		}
	}
	k.required = des.U8()
	if des.Error() != nil {
		return
	}
	if k.required == 0 || int(k.required) > len(k.keys) {
		des.SetError(fmt.Errorf("%w: multi_key requires %d of %d signatures", core.ErrInvalidEncoding, k.required, len(k.keys)))
	}
}

func (k *MultiKeyPublicKey) Bytes() []byte {
	return encodeBCS(k)
}

func (k *MultiKeyPublicKey) AuthKey() AuthenticationKey {
	return DeriveAuthKey(k.Bytes(), authKeyMultiKey)
}

func (k *MultiKeyPublicKey) Verify(_ context.Context, message []byte, sig Signature) (bool, error) {
	s, ok := sig.(*MultiKeySignature)
	if !ok {
		return false, nil
	}
	signers := bitmapIndices(s.bitmap)
	if len(signers) < int(k.required) || len(signers) != len(s.sigs) {
		return false, nil
	}
	for i, idx := range signers {
		if idx >= len(k.keys) || !k.keys[idx].verify(message, s.sigs[i]) {
			return false, nil
		}
	}
	return true, nil
}

// MultiKeySignature holds one signature per signer set in the bitmap.
type MultiKeySignature struct {
	sigs   []anySignature
	bitmap []byte
}

// NewMultiKeySignature pairs sigs with the key indices that produced them.
// signers must be strictly ascending.
func NewMultiKeySignature(sigs []*SingleKeySignature, signers []int) (*MultiKeySignature, error) {
	if len(sigs) != len(signers) {
		return nil, fmt.Errorf("%w: %d signatures for %d signers", core.ErrInvalidEncoding, len(sigs), len(signers))
	}
	bitmap, err := newBitmap(signers)
	if err != nil {
		return nil, err
	}
	out := &MultiKeySignature{bitmap: bitmap}
	for _, s := range sigs {
		out.sigs = append(out.sigs, s.sig)
	}
	return out, nil
}

func (s *MultiKeySignature) Scheme() Scheme { return MultiKey }

func (s *MultiKeySignature) MarshalBCS(ser *bcs.Serializer) {
	ser.Uleb128(uint32(len(s.sigs)))
	for i := range s.sigs {
		s.sigs[i].MarshalBCS(ser)
	}
	ser.WriteBytes(s.bitmap)
}

func (s *MultiKeySignature) UnmarshalBCS(des *bcs.Deserializer) {
	n := des.Uleb128()
	if des.Error() != nil {
		return
	}
	if n > maxMultiSigners {
		des.SetError(fmt.Errorf("%w: multi_key signature has %d entries", core.ErrInvalidEncoding, n))
		return
	}
	s.sigs = make([]anySignature, n)
	for i := range s.sigs {
		s.sigs[i].UnmarshalBCS(des)
	}
	s.bitmap = des.ReadBytes()
	if des.Error() == nil && len(s.bitmap) > bitmapLength {
		des.SetError(fmt.Errorf("%w: multi_key bitmap has %d bytes", core.ErrInvalidEncoding, len(s.bitmap)))
	}
}

func (s *MultiKeySignature) Bytes() []byte {
	return encodeBCS(s)
}

type multiKeyCodec struct{}

func (multiKeyCodec) DecodePublicKey(b []byte) (PublicKey, error) {
	out := &MultiKeyPublicKey{}
	if err := decodeBCS(b, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (multiKeyCodec) DecodeSignature(b []byte) (Signature, error) {
	out := &MultiKeySignature{}
	if err := decodeBCS(b, out); err != nil {
		return nil, err
	}
	return out, nil
}
