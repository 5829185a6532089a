// Package siwa verifies Sign in with Aptos attempts: the wallet signature over
// the sign-in message, the binding between the signing key and the account,
// and the agreement of the signed fields with what the relying party issued.
package siwa

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/layer-3/siwa/core"
	"github.com/layer-3/siwa/envelope"
	"github.com/layer-3/siwa/message"
	"github.com/layer-3/siwa/ports"
	"github.com/layer-3/siwa/scheme"
)

// Verifier checks sign-in outputs against expected inputs. It holds no
// per-request state and is safe for concurrent use.
type Verifier struct {
	registry *scheme.Registry
	lookup   ports.AccountLookup
	now      func() time.Time
	excluded []string
	logger   *zap.Logger
}

// Option configures a Verifier.
type Option func(*Verifier)

// WithClock replaces the clock used for expiration and not-before checks.
func WithClock(now func() time.Time) Option {
	return func(v *Verifier) {
		v.now = now
	}
}

// WithExcludedResources ignores resources starting with any of the prefixes
// when comparing resource lists.
func WithExcludedResources(prefixes ...string) Option {
	return func(v *Verifier) {
		v.excluded = append(v.excluded, prefixes...)
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(v *Verifier) {
		v.logger = logger
	}
}

// NewVerifier creates a verifier resolving schemes through registry and
// account authentication keys through lookup.
func NewVerifier(registry *scheme.Registry, lookup ports.AccountLookup, opts ...Option) *Verifier {
	v := &Verifier{
		registry: registry,
		lookup:   lookup,
		now:      time.Now,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// SignInOutput is what a wallet returns for a sign-in request.
type SignInOutput struct {
	Type      scheme.Scheme
	PublicKey scheme.PublicKey
	Signature scheme.Signature
	Input     core.SignInInput
	// Message, when set, is the exact text the wallet signed. Otherwise the
	// text is rendered from Input.
	Message string
}

// VerifySignature checks that the signature covers the sign-in message of
// output.Input under the key's scheme.
func (v *Verifier) VerifySignature(ctx context.Context, output SignInOutput) core.Result {
	if output.PublicKey == nil || output.PublicKey.Scheme() != output.Type || !v.registry.Supported(output.Type) {
		return core.Reject(core.ErrCodeInvalidPublicKey)
	}

	text := output.Message
	if text == "" {
		text = message.Create(output.Input)
	}

	ok, err := v.registry.Verify(ctx, output.PublicKey, output.Signature, message.SigningMessage(text))
	if err != nil {
		v.logger.Debug("signature verification failed", zap.String("scheme", string(output.Type)), zap.Error(err))
	}
	if !ok {
		return core.Reject(core.ErrCodeInvalidSignature)
	}
	return core.Valid{Data: output.Input}
}

// MessageParams groups the inputs of VerifyMessage.
type MessageParams struct {
	// Expected is what the relying party issued.
	Expected core.SignInInput
	// Actual is what the wallet signed.
	Actual    core.SignInInput
	PublicKey scheme.PublicKey
}

// VerifyMessage checks that the signing key controls Actual.Address and that
// the signed fields agree with the issued ones and are currently valid. The
// returned error is reserved for account lookup failures.
func (v *Verifier) VerifyMessage(ctx context.Context, params MessageParams) (core.Result, error) {
	if params.PublicKey == nil {
		return core.Reject(core.ErrCodeInvalidPublicKey), nil
	}

	bound, err := v.keyControlsAccount(ctx, params.PublicKey, params.Actual.Address)
	if err != nil {
		return nil, err
	}
	if !bound {
		return core.Reject(core.ErrCodeInvalidAuthKey), nil
	}

	expected := params.Expected.Normalize()
	actual := params.Actual.Normalize()

	errs := compareFields(expected, actual)
	errs = append(errs, v.compareResources(expected.Resources, actual.Resources)...)
	errs = append(errs, v.checkTimes(expected)...)

	if len(errs) > 0 {
		return core.Invalid{Errors: errs}, nil
	}
	return core.Valid{Data: params.Actual}, nil
}

// keyControlsAccount compares the account's stored authentication key with
// the one derived from pk.
func (v *Verifier) keyControlsAccount(ctx context.Context, pk scheme.PublicKey, address string) (bool, error) {
	addr, err := core.ParseAddress(address)
	if err != nil {
		return false, nil
	}

	stored, err := v.lookup.AuthenticationKey(ctx, addr)
	if err != nil {
		if errors.Is(err, core.ErrAccountLookup) {
			return false, err
		}
		return false, fmt.Errorf("%w: %s: %v", core.ErrAccountLookup, addr, err)
	}

	if stored != pk.AuthKey() {
		v.logger.Debug("authentication key mismatch",
			zap.String("address", addr.String()),
			zap.String("stored", stored.String()),
			zap.String("derived", pk.AuthKey().String()))
		return false, nil
	}
	return true, nil
}

func compareFields(expected, actual core.SignInInput) []core.ErrorCode {
	var errs []core.ErrorCode

	// Required fields are compared only when the relying party set them.
	required := func(f core.Field, want, got string) {
		if want != "" && want != got {
			errs = append(errs, f.Mismatch())
		}
	}
	// Optional fields must match in presence and value.
	optional := func(f core.Field, want, got *string) {
		if (want == nil) != (got == nil) || (want != nil && *want != *got) {
			errs = append(errs, f.Mismatch())
		}
	}

	required(core.FieldAddress, expected.Address, actual.Address)
	optional(core.FieldStatement, expected.Statement, actual.Statement)
	required(core.FieldURI, deref(expected.URI), deref(actual.URI))
	required(core.FieldVersion, expected.Version, actual.Version)
	required(core.FieldChainID, expected.ChainID, actual.ChainID)
	optional(core.FieldNonce, expected.Nonce, actual.Nonce)
	optional(core.FieldIssuedAt, expected.IssuedAt, actual.IssuedAt)
	optional(core.FieldExpirationTime, expected.ExpirationTime, actual.ExpirationTime)
	optional(core.FieldNotBefore, expected.NotBefore, actual.NotBefore)
	optional(core.FieldRequestID, expected.RequestID, actual.RequestID)
	required(core.FieldDomain, expected.Domain, actual.Domain)

	return errs
}

func (v *Verifier) compareResources(expected, actual []string) []core.ErrorCode {
	switch {
	case expected != nil && actual == nil:
		return []core.ErrorCode{core.ErrCodeResourcesMissing}
	case expected == nil && actual != nil:
		return []core.ErrorCode{core.ErrCodeResourcesUnexpected}
	case expected == nil:
		return nil
	}

	want, got := v.filterResources(expected), v.filterResources(actual)
	if len(want) != len(got) {
		return []core.ErrorCode{core.ErrCodeResourcesMismatch}
	}
	for i := range want {
		if want[i] != got[i] {
			return []core.ErrorCode{core.ErrCodeResourcesMismatch}
		}
	}
	return nil
}

func (v *Verifier) filterResources(resources []string) []string {
	if len(v.excluded) == 0 {
		return resources
	}
	out := make([]string, 0, len(resources))
next:
	for _, r := range resources {
		for _, prefix := range v.excluded {
			if strings.HasPrefix(r, prefix) {
				continue next
			}
		}
		out = append(out, r)
	}
	return out
}

// checkTimes applies the validity window the relying party issued. It fails
// closed: a timestamp that cannot be parsed counts as expired or not yet valid.
func (v *Verifier) checkTimes(expected core.SignInInput) []core.ErrorCode {
	var errs []core.ErrorCode
	now := v.now()

	if expected.ExpirationTime != nil {
		exp, err := time.Parse(time.RFC3339, *expected.ExpirationTime)
		if err != nil || !now.Before(exp) {
			errs = append(errs, core.ErrCodeExpired)
		}
	}
	if expected.NotBefore != nil {
		nbf, err := time.Parse(time.RFC3339, *expected.NotBefore)
		if err != nil || now.Before(nbf) {
			errs = append(errs, core.ErrCodeNotYetValid)
		}
	}
	return errs
}

// VerifySignIn runs the full check of a decoded envelope against the input
// the relying party issued. Version 1 messages are parsed first and must carry
// the version's required fields.
func (v *Verifier) VerifySignIn(ctx context.Context, expected core.SignInInput, output envelope.Output) (core.Result, error) {
	required, err := envelope.RequiredFields(output.Version)
	if err != nil {
		return nil, err
	}

	signIn := SignInOutput{Type: output.Scheme, PublicKey: output.PublicKey, Signature: output.Signature}

	switch output.Version {
	case envelope.Version1:
		parsed := message.Parse(output.Message)
		valid, ok := parsed.(core.Valid)
		if !ok {
			return parsed, nil
		}
		signIn.Input = valid.Data
		signIn.Message = output.Message
	default:
		signIn.Input = output.Input
	}

	if errs := signIn.Input.MissingFields(required...); len(errs) > 0 {
		return core.Invalid{Errors: errs}, nil
	}

	if result := v.VerifySignature(ctx, signIn); !core.IsValid(result) {
		return result, nil
	}

	return v.VerifyMessage(ctx, MessageParams{
		Expected:  expected,
		Actual:    signIn.Input,
		PublicKey: signIn.PublicKey,
	})
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
