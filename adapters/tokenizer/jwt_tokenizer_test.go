package tokenizer

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/layer-3/siwa/core"
)

func newTokenizer(t *testing.T) *JWTTokenizer {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	return &JWTTokenizer{signKey: key}
}

func TestChallengeRoundTrip(t *testing.T) {
	tok := newTokenizer(t)
	now := time.Now().Truncate(time.Second)

	challenge := &core.Challenge{
		ID: "c1",
		Input: core.SignInInput{
			Domain:    "example.com",
			Address:   "0x1",
			Version:   "1",
			ChainID:   "aptos:mainnet",
			Nonce:     core.String("abc"),
			Resources: []string{},
		},
		Legacy:    true,
		IssuedAt:  now,
		ExpiresAt: now.Add(5 * time.Minute),
	}

	token, err := tok.ChallengeToToken(challenge)
	require.NoError(t, err)

	got, err := tok.TokenToChallenge(token)
	require.NoError(t, err)
	assert.Equal(t, challenge.ID, got.ID)
	assert.Equal(t, challenge.Input, got.Input)
	assert.True(t, got.Legacy)
	assert.True(t, challenge.ExpiresAt.Equal(got.ExpiresAt))
}

func TestChallenge_Expired(t *testing.T) {
	tok := newTokenizer(t)
	past := time.Now().Add(-time.Hour)

	token, err := tok.ChallengeToToken(&core.Challenge{ID: "c1", IssuedAt: past, ExpiresAt: past.Add(time.Minute)})
	require.NoError(t, err)

	_, err = tok.TokenToChallenge(token)
	assert.ErrorIs(t, err, core.ErrTokenExpired)
}

func TestAudienceSeparation(t *testing.T) {
	tok := newTokenizer(t)
	now := time.Now()
	session := &core.Session{
		ID:            "s1",
		Address:       "0x1",
		IssuedAt:      now,
		AccessExpiry:  now.Add(time.Minute),
		RefreshExpiry: now.Add(time.Hour),
		RefreshID:     "r1",
	}

	access, err := tok.SessionToAccessToken(session)
	require.NoError(t, err)
	refresh, err := tok.SessionToRefreshToken(session)
	require.NoError(t, err)

	got, err := tok.AccessTokenToSession(access)
	require.NoError(t, err)
	assert.Equal(t, "s1", got.ID)
	assert.Equal(t, "r1", got.RefreshID)
	assert.Equal(t, "0x1", got.Address)

	fromRefresh, err := tok.RefreshTokenToSession(refresh)
	require.NoError(t, err)
	assert.Equal(t, "r1", fromRefresh.RefreshID)

	_, err = tok.AccessTokenToSession(refresh)
	assert.ErrorIs(t, err, core.ErrInvalidToken)
	_, err = tok.TokenToChallenge(access)
	assert.ErrorIs(t, err, core.ErrInvalidToken)
}

func TestForeignKeyRejected(t *testing.T) {
	now := time.Now()
	token, err := newTokenizer(t).SessionToAccessToken(&core.Session{ID: "s1", IssuedAt: now, AccessExpiry: now.Add(time.Minute)})
	require.NoError(t, err)

	_, err = newTokenizer(t).AccessTokenToSession(token)
	assert.ErrorIs(t, err, core.ErrInvalidToken)
}

func TestNewJWTTokenizerFromPEM(t *testing.T) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	der, err := x509.MarshalECPrivateKey(key)
	require.NoError(t, err)

	tok, err := NewJWTTokenizerFromPEM(pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: der}))
	require.NoError(t, err)
	assert.NotNil(t, tok)

	_, err = NewJWTTokenizerFromPEM([]byte("nope"))
	assert.Error(t, err)
}
