package scheme

import (
	"context"
	"crypto/ed25519"
	"testing"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/sha3"
)

// Account used by the TypeScript SDK test suite, with the encodings and
// authentication keys that SDK produces for it.
const (
	fixtureSeed    = "0x7f8f21eadca4a5d29591dc55582cca1b7263e9ff150b577a9d8c423ecd857631"
	fixturePub     = "0x2ba68d90f800d3dca64a24afeed403a826a91fc998d585ccd0bf50dd47c02ac6"
	fixtureAddress = "0x983bb18e768a1f736b6f0011a65833243fa7e3bf908b7f9535b1049d8307f328"

	fixtureSingleKey     = "0x00202ba68d90f800d3dca64a24afeed403a826a91fc998d585ccd0bf50dd47c02ac6"
	fixtureSingleKeyAuth = "0x577bca4c363130c75621a8d4f76059568a61218c1fe0b5e27e7add1b003d871d"

	fixtureMultiEd25519Auth = "0x8e4aedb8f33579ddb49c1546b78daee8634078e0221ee05fcdd44fdb927f26f4"

	fixtureMultiKey     = "0x0200202ba68d90f800d3dca64a24afeed403a826a91fc998d585ccd0bf50dd47c02ac600202ba68d90f800d3dca64a24afeed403a826a91fc998d585ccd0bf50dd47c02ac601"
	fixtureMultiKeyAuth = "0xa7b36394e2050a43f2b9854d2e86cfd1bd682b33a8b6dc4cfb390cb4939668d3"

	// ed25519 signature of sha3_256("SIGN_IN_WITH_APTOS::") || "hello" by the fixture account.
	fixtureSignature = "0x5d3eaa86e91bd537c5b52cc32a526b0580782f1fbb6361595731da08013924515a260b139a9246bced8f28e5f8d8aa6b552bd447c7ebdf427ad25da0f0d6f300"
)

func fixtureKey(t *testing.T) (ed25519.PublicKey, ed25519.PrivateKey) {
	t.Helper()
	priv := ed25519.NewKeyFromSeed(hexutil.MustDecode(fixtureSeed))
	pub := priv.Public().(ed25519.PublicKey)
	require.Equal(t, fixturePub, hexutil.Encode(pub))
	return pub, priv
}

func fixtureMessage() []byte {
	prefix := sha3.Sum256([]byte("SIGN_IN_WITH_APTOS::"))
	return append(prefix[:], "hello"...)
}

func TestKnownAnswer_Ed25519(t *testing.T) {
	pub, priv := fixtureKey(t)
	reg := NewRegistry()

	key, err := NewEd25519PublicKey(pub)
	require.NoError(t, err)
	assert.Equal(t, "0x20"+fixturePub[2:], hexutil.Encode(key.Bytes()))
	assert.Equal(t, fixtureAddress, key.AuthKey().String())
	assert.Equal(t, fixtureAddress, key.AuthKey().Address().String())

	decoded, err := reg.DecodePublicKey(Ed25519, key.Bytes())
	require.NoError(t, err)
	assert.Equal(t, fixtureAddress, decoded.AuthKey().String())

	assert.Equal(t, fixtureSignature, hexutil.Encode(ed25519.Sign(priv, fixtureMessage())))

	sig, err := reg.DecodeSignature(Ed25519, hexutil.MustDecode("0x40"+fixtureSignature[2:]))
	require.NoError(t, err)
	ok, err := reg.Verify(context.Background(), decoded, sig, fixtureMessage())
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = reg.Verify(context.Background(), decoded, sig, []byte("hello"))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestKnownAnswer_SingleKey(t *testing.T) {
	pub, _ := fixtureKey(t)

	key, err := NewSingleKeyPublicKey(VariantEd25519, pub)
	require.NoError(t, err)
	assert.Equal(t, fixtureSingleKey, hexutil.Encode(key.Bytes()))
	assert.Equal(t, fixtureSingleKeyAuth, key.AuthKey().String())

	decoded, err := NewRegistry().DecodePublicKey(SingleKey, hexutil.MustDecode(fixtureSingleKey))
	require.NoError(t, err)
	assert.Equal(t, fixtureSingleKeyAuth, decoded.AuthKey().String())

	sig := NewSingleKeySignature(VariantEd25519, hexutil.MustDecode(fixtureSignature))
	assert.Equal(t, "0x0040"+fixtureSignature[2:], hexutil.Encode(sig.Bytes()))

	ok, err := NewRegistry().Verify(context.Background(), decoded, sig, fixtureMessage())
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestKnownAnswer_MultiEd25519(t *testing.T) {
	pub, _ := fixtureKey(t)

	key, err := NewMultiEd25519PublicKey([]ed25519.PublicKey{pub, pub}, 1)
	require.NoError(t, err)
	assert.Equal(t, "0x41"+fixturePub[2:]+fixturePub[2:]+"01", hexutil.Encode(key.Bytes()))
	assert.Equal(t, fixtureMultiEd25519Auth, key.AuthKey().String())

	sig, err := NewMultiEd25519Signature([][]byte{hexutil.MustDecode(fixtureSignature)}, []int{1})
	require.NoError(t, err)
	assert.Equal(t, "0x44"+fixtureSignature[2:]+"40000000", hexutil.Encode(sig.Bytes()))

	ok, err := key.Verify(context.Background(), fixtureMessage(), sig)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestKnownAnswer_MultiKey(t *testing.T) {
	pub, _ := fixtureKey(t)
	single, err := NewSingleKeyPublicKey(VariantEd25519, pub)
	require.NoError(t, err)

	key, err := NewMultiKeyPublicKey([]*SingleKeyPublicKey{single, single}, 1)
	require.NoError(t, err)
	assert.Equal(t, fixtureMultiKey, hexutil.Encode(key.Bytes()))
	assert.Equal(t, fixtureMultiKeyAuth, key.AuthKey().String())

	sig, err := NewMultiKeySignature([]*SingleKeySignature{
		NewSingleKeySignature(VariantEd25519, hexutil.MustDecode(fixtureSignature)),
	}, []int{0})
	require.NoError(t, err)
	assert.Equal(t, "0x010040"+fixtureSignature[2:]+"0480000000", hexutil.Encode(sig.Bytes()))

	reg := NewRegistry()
	decoded, err := reg.DecodeSignature(MultiKey, sig.Bytes())
	require.NoError(t, err)
	pk, err := reg.DecodePublicKey(MultiKey, hexutil.MustDecode(fixtureMultiKey))
	require.NoError(t, err)

	ok, err := reg.Verify(context.Background(), pk, decoded, fixtureMessage())
	require.NoError(t, err)
	assert.True(t, ok)
}
