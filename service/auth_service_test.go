package service

import (
	"context"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rand"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/layer-3/siwa"
	"github.com/layer-3/siwa/adapters/lookup"
	"github.com/layer-3/siwa/adapters/store"
	"github.com/layer-3/siwa/adapters/tokenizer"
	"github.com/layer-3/siwa/core"
	"github.com/layer-3/siwa/envelope"
	"github.com/layer-3/siwa/message"
	"github.com/layer-3/siwa/scheme"
)

type recordingPublisher struct {
	mu      sync.Mutex
	signIns []string
	logouts []string
	err     error
}

func (p *recordingPublisher) PublishSignIn(_ context.Context, address string, _ string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.signIns = append(p.signIns, address)
	return p.err
}

func (p *recordingPublisher) PublishLogout(_ context.Context, address string, _ string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.logouts = append(p.logouts, address)
	return p.err
}

type fixture struct {
	svc   *AuthService
	codec *envelope.Codec
	pub   *recordingPublisher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	registry := scheme.NewRegistry()
	codec := envelope.NewCodec(registry)
	pub := &recordingPublisher{}

	svc := NewAuthService(
		siwa.NewVerifier(registry, lookup.Static{}),
		codec,
		tokenizer.NewJWTTokenizer(key),
		store.NewMemoryStore(),
		pub,
		Config{
			Domain:    "example.com",
			URI:       "https://example.com",
			Statement: "Sign in to Example",
			ChainID:   "aptos:mainnet",
		},
	)
	return &fixture{svc: svc, codec: codec, pub: pub}
}

type wallet struct {
	priv ed25519.PrivateKey
	pk   *scheme.Ed25519PublicKey
}

func newWallet(t *testing.T) *wallet {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	pk, err := scheme.NewEd25519PublicKey(pub)
	require.NoError(t, err)
	return &wallet{priv: priv, pk: pk}
}

func (w *wallet) address() string {
	return w.pk.AuthKey().Address().String()
}

func (w *wallet) sign(t *testing.T, data []byte) scheme.Signature {
	t.Helper()
	sig, err := scheme.NewEd25519Signature(ed25519.Sign(w.priv, data))
	require.NoError(t, err)
	return sig
}

// signIn completes the challenge the way a wallet standard wallet does,
// filling in its own address when the challenge left it open.
func (w *wallet) signIn(t *testing.T, f *fixture, input core.SignInInput) envelope.Envelope {
	t.Helper()
	if input.Address == "" {
		input.Address = w.address()
	}
	env, err := f.codec.Encode(envelope.Output{
		PublicKey: w.pk,
		Signature: w.sign(t, message.SigningMessage(message.Create(input))),
		Input:     input,
	}, envelope.CurrentVersion)
	require.NoError(t, err)
	return env
}

func (w *wallet) legacySignIn(t *testing.T, f *fixture, input core.SignInInput) envelope.LegacyEnvelope {
	t.Helper()
	full := "APTOS\nmessage: " + message.CreateLegacy(input) + "\nnonce: " + *input.Nonce
	env, err := f.codec.EncodeLegacy(envelope.LegacyOutput{
		PublicKey:   w.pk,
		Signature:   w.sign(t, []byte(full)),
		FullMessage: full,
	}, envelope.CurrentLegacyVersion)
	require.NoError(t, err)
	return env
}

func TestCreateChallenge(t *testing.T) {
	f := newFixture(t)
	w := newWallet(t)

	token, input, err := f.svc.CreateChallenge(context.Background(), ChallengeRequest{Address: w.address()})
	require.NoError(t, err)
	assert.NotEmpty(t, token)

	assert.Equal(t, "example.com", input.Domain)
	assert.Equal(t, w.address(), input.Address)
	assert.Equal(t, "1", input.Version)
	assert.Equal(t, "aptos:mainnet", input.ChainID)
	require.NotNil(t, input.Nonce)
	assert.Len(t, *input.Nonce, 16)
	require.NotNil(t, input.IssuedAt)
	require.NotNil(t, input.ExpirationTime)

	_, other, err := f.svc.CreateChallenge(context.Background(), ChallengeRequest{})
	require.NoError(t, err)
	assert.NotEqual(t, *input.Nonce, *other.Nonce)
	assert.Empty(t, other.Address)
}

func TestCreateChallenge_Errors(t *testing.T) {
	f := newFixture(t)

	_, _, err := f.svc.CreateChallenge(context.Background(), ChallengeRequest{Legacy: true})
	assert.ErrorIs(t, err, core.ErrInvalidChallenge)

	_, _, err = f.svc.CreateChallenge(context.Background(), ChallengeRequest{Address: "0xnothex"})
	assert.ErrorIs(t, err, core.ErrInvalidAddress)
}

func TestSignIn(t *testing.T) {
	f := newFixture(t)
	w := newWallet(t)
	ctx := context.Background()

	token, input, err := f.svc.CreateChallenge(ctx, ChallengeRequest{})
	require.NoError(t, err)

	access, refresh, err := f.svc.SignIn(ctx, token, w.signIn(t, f, input))
	require.NoError(t, err)
	assert.NotEmpty(t, refresh)

	session, err := f.svc.ValidateAccessToken(ctx, access)
	require.NoError(t, err)
	assert.Equal(t, w.address(), session.Address)
	assert.Equal(t, []string{w.address()}, f.pub.signIns)
}

func TestSignIn_Replay(t *testing.T) {
	f := newFixture(t)
	w := newWallet(t)
	ctx := context.Background()

	token, input, err := f.svc.CreateChallenge(ctx, ChallengeRequest{Address: w.address()})
	require.NoError(t, err)
	env := w.signIn(t, f, input)

	_, _, err = f.svc.SignIn(ctx, token, env)
	require.NoError(t, err)

	_, _, err = f.svc.SignIn(ctx, token, env)
	assert.ErrorIs(t, err, core.ErrChallengeConsumed)
}

func TestSignIn_Rejected(t *testing.T) {
	f := newFixture(t)
	w := newWallet(t)
	ctx := context.Background()

	token, input, err := f.svc.CreateChallenge(ctx, ChallengeRequest{})
	require.NoError(t, err)

	// Signed for a different site and nonce.
	input.Domain = "evil.example"
	input.Nonce = core.String("reused")

	_, _, err = f.svc.SignIn(ctx, token, w.signIn(t, f, input))
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrVerificationFailed)

	var verr *VerificationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, []core.ErrorCode{core.ErrCodeNonceMismatch, core.ErrCodeDomainMismatch}, verr.Codes)
	assert.Empty(t, f.pub.signIns)
}

func TestSignIn_WrongAccount(t *testing.T) {
	f := newFixture(t)
	w := newWallet(t)
	other := newWallet(t)
	ctx := context.Background()

	token, input, err := f.svc.CreateChallenge(ctx, ChallengeRequest{Address: other.address()})
	require.NoError(t, err)

	_, _, err = f.svc.SignIn(ctx, token, w.signIn(t, f, input))
	var verr *VerificationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, []core.ErrorCode{core.ErrCodeInvalidAuthKey}, verr.Codes)
}

func TestSignIn_InvalidChallenge(t *testing.T) {
	f := newFixture(t)
	w := newWallet(t)
	ctx := context.Background()

	_, input, err := f.svc.CreateChallenge(ctx, ChallengeRequest{})
	require.NoError(t, err)

	_, _, err = f.svc.SignIn(ctx, "not-a-token", w.signIn(t, f, input))
	assert.ErrorIs(t, err, core.ErrInvalidChallenge)

	legacyToken, _, err := f.svc.CreateChallenge(ctx, ChallengeRequest{Address: w.address(), Legacy: true})
	require.NoError(t, err)
	_, _, err = f.svc.SignIn(ctx, legacyToken, w.signIn(t, f, input))
	assert.ErrorIs(t, err, core.ErrInvalidChallenge)
}

func TestSignIn_MalformedEnvelope(t *testing.T) {
	f := newFixture(t)
	w := newWallet(t)
	ctx := context.Background()

	token, input, err := f.svc.CreateChallenge(ctx, ChallengeRequest{})
	require.NoError(t, err)

	env := w.signIn(t, f, input)
	env.Version = "999"
	_, _, err = f.svc.SignIn(ctx, token, env)
	assert.ErrorIs(t, err, core.ErrUnsupportedVersion)

	env = w.signIn(t, f, input)
	env.Type = "rsa"
	_, _, err = f.svc.SignIn(ctx, token, env)
	assert.ErrorIs(t, err, core.ErrUnknownScheme)
}

func TestLegacySignIn(t *testing.T) {
	f := newFixture(t)
	w := newWallet(t)
	ctx := context.Background()

	token, input, err := f.svc.CreateChallenge(ctx, ChallengeRequest{Address: w.address(), Legacy: true})
	require.NoError(t, err)

	access, _, err := f.svc.LegacySignIn(ctx, token, w.legacySignIn(t, f, input))
	require.NoError(t, err)

	session, err := f.svc.ValidateAccessToken(ctx, access)
	require.NoError(t, err)
	assert.Equal(t, w.address(), session.Address)

	// A legacy token cannot be redeemed twice either.
	_, _, err = f.svc.LegacySignIn(ctx, token, w.legacySignIn(t, f, input))
	assert.ErrorIs(t, err, core.ErrChallengeConsumed)
}

func TestLegacySignIn_AlteredMessage(t *testing.T) {
	f := newFixture(t)
	w := newWallet(t)
	ctx := context.Background()

	token, input, err := f.svc.CreateChallenge(ctx, ChallengeRequest{Address: w.address(), Legacy: true})
	require.NoError(t, err)

	input.Nonce = core.String("other")
	_, _, err = f.svc.LegacySignIn(ctx, token, w.legacySignIn(t, f, input))

	var verr *VerificationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, []core.ErrorCode{core.ErrCodeInvalidFullMessage}, verr.Codes)
}

func TestRefresh(t *testing.T) {
	f := newFixture(t)
	w := newWallet(t)
	ctx := context.Background()

	token, input, err := f.svc.CreateChallenge(ctx, ChallengeRequest{})
	require.NoError(t, err)
	_, refresh, err := f.svc.SignIn(ctx, token, w.signIn(t, f, input))
	require.NoError(t, err)

	access, newRefresh, err := f.svc.Refresh(ctx, refresh)
	require.NoError(t, err)
	assert.NotEqual(t, refresh, newRefresh)

	session, err := f.svc.ValidateAccessToken(ctx, access)
	require.NoError(t, err)
	assert.Equal(t, w.address(), session.Address)

	_, _, err = f.svc.Refresh(ctx, refresh)
	assert.ErrorIs(t, err, core.ErrTokenInvalidated)
}

func TestLogout(t *testing.T) {
	f := newFixture(t)
	w := newWallet(t)
	ctx := context.Background()

	token, input, err := f.svc.CreateChallenge(ctx, ChallengeRequest{})
	require.NoError(t, err)
	access, refresh, err := f.svc.SignIn(ctx, token, w.signIn(t, f, input))
	require.NoError(t, err)

	require.NoError(t, f.svc.Logout(ctx, refresh))
	assert.Equal(t, []string{w.address()}, f.pub.logouts)

	_, err = f.svc.ValidateAccessToken(ctx, access)
	assert.ErrorIs(t, err, core.ErrTokenInvalidated)

	_, _, err = f.svc.Refresh(ctx, refresh)
	assert.ErrorIs(t, err, core.ErrTokenInvalidated)
}

func TestLogout_PublishFailureIsNotFatal(t *testing.T) {
	f := newFixture(t)
	w := newWallet(t)
	ctx := context.Background()

	token, input, err := f.svc.CreateChallenge(ctx, ChallengeRequest{})
	require.NoError(t, err)
	_, refresh, err := f.svc.SignIn(ctx, token, w.signIn(t, f, input))
	require.NoError(t, err)

	f.pub.err = errors.New("broker down")
	assert.NoError(t, f.svc.Logout(ctx, refresh))
}

func TestValidateAccessToken_Invalid(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.ValidateAccessToken(context.Background(), "garbage")
	assert.ErrorIs(t, err, core.ErrInvalidToken)
}
