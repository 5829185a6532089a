package core

import "errors"

var (
	ErrUnknownScheme      = errors.New("unknown signing scheme")
	ErrUnsupportedScheme  = errors.New("unsupported signing scheme")
	ErrUnsupportedVersion = errors.New("unsupported serialization version")
	ErrInvalidEncoding    = errors.New("invalid encoding")
	ErrInvalidAddress     = errors.New("invalid account address")
	ErrAccountLookup      = errors.New("account lookup failed")

	ErrTokenExpired       = errors.New("token has expired")
	ErrTokenInvalidated   = errors.New("token has been invalidated")
	ErrInvalidToken       = errors.New("invalid token")
	ErrInvalidChallenge   = errors.New("invalid challenge")
	ErrChallengeConsumed  = errors.New("challenge has already been used")
	ErrVerificationFailed = errors.New("sign-in verification failed")
)
