package ports

import (
	"context"
	"time"
)

// Store interface for token invalidation and nonce replay protection
type Store interface {
	InvalidateToken(ctx context.Context, tokenID string, expiry time.Duration) error
	IsTokenInvalidated(ctx context.Context, tokenID string) (bool, error)

	// ConsumeNonce marks a challenge nonce as used. It returns false if the
	// nonce was consumed before.
	ConsumeNonce(ctx context.Context, nonce string, expiry time.Duration) (bool, error)
}
