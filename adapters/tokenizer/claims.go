package tokenizer

import (
	"github.com/golang-jwt/jwt/v5"

	"github.com/layer-3/siwa/core"
)

// ChallengeClaims carry the sign-in input the wallet is asked to sign
type ChallengeClaims struct {
	jwt.RegisteredClaims
	Input  core.SignInInput `json:"input"`
	Legacy bool             `json:"legacy,omitempty"`
}

// AccessClaims combines standard claims with access-specific ones
type AccessClaims struct {
	jwt.RegisteredClaims
	RefreshID string `json:"rid"` // ID of the refresh token
}

// RefreshClaims are just the standard claims for refresh tokens
type RefreshClaims struct {
	jwt.RegisteredClaims
}
