package siwa

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/layer-3/siwa/core"
	"github.com/layer-3/siwa/envelope"
	"github.com/layer-3/siwa/message"
)

// VerifyLegacySignIn checks a sign-in performed through a wallet's generic
// signMessage call. The wallet wraps the legacy message in its own framing, so
// the legacy message must appear somewhere in the full message, and the
// signature covers the full message bytes as-is.
func (v *Verifier) VerifyLegacySignIn(ctx context.Context, input core.SignInInput, output envelope.LegacyOutput) (core.Result, error) {
	if !strings.Contains(output.FullMessage, message.CreateLegacy(input)) {
		return core.Reject(core.ErrCodeInvalidFullMessage), nil
	}

	if output.PublicKey == nil {
		return core.Reject(core.ErrCodeInvalidPublicKey), nil
	}

	bound, err := v.keyControlsAccount(ctx, output.PublicKey, input.Address)
	if err != nil {
		return nil, err
	}
	if !bound {
		return core.Reject(core.ErrCodeInvalidAuthKey), nil
	}

	ok, err := v.registry.Verify(ctx, output.PublicKey, output.Signature, []byte(output.FullMessage))
	if err != nil {
		v.logger.Debug("legacy signature verification failed", zap.String("scheme", string(output.Scheme)), zap.Error(err))
	}
	if !ok {
		return core.Reject(core.ErrCodeInvalidSignature), nil
	}
	return core.Valid{Data: input}, nil
}
