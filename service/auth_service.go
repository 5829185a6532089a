package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/layer-3/siwa"
	"github.com/layer-3/siwa/core"
	"github.com/layer-3/siwa/envelope"
	"github.com/layer-3/siwa/ports"
)

// Config holds the fields the service puts into every challenge and the
// lifetimes of the tokens it issues
type Config struct {
	Domain    string
	URI       string
	Statement string
	ChainID   string

	ChallengeTTL time.Duration
	AccessTTL    time.Duration
	RefreshTTL   time.Duration
}

// DefaultConfig returns the token lifetimes used when none are configured
func DefaultConfig() Config {
	return Config{
		ChallengeTTL: 5 * time.Minute,
		AccessTTL:    5 * time.Minute,
		RefreshTTL:   5 * 24 * time.Hour, // 5 days
	}
}

// VerificationError is returned when a sign-in attempt is rejected. Codes
// lists every reason.
type VerificationError struct {
	Codes []core.ErrorCode
}

func (e *VerificationError) Error() string {
	return fmt.Sprintf("%v: %s", core.ErrVerificationFailed, core.Invalid{Errors: e.Codes}.Error())
}

func (e *VerificationError) Unwrap() error {
	return core.ErrVerificationFailed
}

// AuthService handles authentication business logic
type AuthService struct {
	verifier  *siwa.Verifier
	codec     *envelope.Codec
	tokenizer ports.Tokenizer
	store     ports.Store
	eventPub  ports.EventPublisher
	logger    *zap.Logger
	now       func() time.Time

	cfg Config
}

// Option configures an AuthService
type Option func(*AuthService)

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(s *AuthService) {
		s.logger = logger
	}
}

// WithClock replaces the service clock
func WithClock(now func() time.Time) Option {
	return func(s *AuthService) {
		s.now = now
	}
}

// NewAuthService creates a new authentication service
func NewAuthService(
	verifier *siwa.Verifier,
	codec *envelope.Codec,
	tokenizer ports.Tokenizer,
	store ports.Store,
	eventPub ports.EventPublisher,
	cfg Config,
	opts ...Option,
) *AuthService {
	defaults := DefaultConfig()
	if cfg.ChallengeTTL <= 0 {
		cfg.ChallengeTTL = defaults.ChallengeTTL
	}
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = defaults.AccessTTL
	}
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = defaults.RefreshTTL
	}

	s := &AuthService{
		verifier:  verifier,
		codec:     codec,
		tokenizer: tokenizer,
		store:     store,
		eventPub:  eventPub,
		logger:    zap.NewNop(),
		now:       time.Now,
		cfg:       cfg,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ChallengeRequest asks for a sign-in challenge
type ChallengeRequest struct {
	// Address is optional for wallet standard sign-in and required for the
	// legacy flow, which embeds it in the signed message.
	Address string
	Legacy  bool
}

// CreateChallenge generates a new sign-in challenge. The token carries the
// issued input and must be presented back on sign-in.
func (s *AuthService) CreateChallenge(ctx context.Context, req ChallengeRequest) (string, core.SignInInput, error) {
	if req.Legacy && req.Address == "" {
		return "", core.SignInInput{}, fmt.Errorf("%w: legacy challenges require an address", core.ErrInvalidChallenge)
	}
	if req.Address != "" {
		if _, err := core.ParseAddress(req.Address); err != nil {
			return "", core.SignInInput{}, err
		}
	}

	nonce, err := core.GenerateNonce()
	if err != nil {
		return "", core.SignInInput{}, fmt.Errorf("failed to generate nonce: %w", err)
	}

	now := s.now().UTC().Truncate(time.Second)
	expires := now.Add(s.cfg.ChallengeTTL)

	input := core.SignInInput{
		Domain:         s.cfg.Domain,
		Address:        req.Address,
		URI:            optional(s.cfg.URI),
		Statement:      optional(s.cfg.Statement),
		Version:        "1",
		ChainID:        s.cfg.ChainID,
		Nonce:          &nonce,
		IssuedAt:       core.String(now.Format(time.RFC3339)),
		ExpirationTime: core.String(expires.Format(time.RFC3339)),
	}

	challenge := &core.Challenge{
		ID:        uuid.New().String(),
		Input:     input,
		Legacy:    req.Legacy,
		IssuedAt:  now,
		ExpiresAt: expires,
	}

	token, err := s.tokenizer.ChallengeToToken(challenge)
	if err != nil {
		return "", core.SignInInput{}, fmt.Errorf("failed to create token: %w", err)
	}

	s.logger.Debug("challenge issued",
		zap.String("challenge_id", challenge.ID),
		zap.String("address", req.Address),
		zap.Bool("legacy", req.Legacy))

	return token, input, nil
}

// SignIn verifies a wallet standard sign-in output against its challenge and
// opens a session
func (s *AuthService) SignIn(ctx context.Context, challengeToken string, env envelope.Envelope) (string, string, error) {
	challenge, err := s.challenge(challengeToken, false)
	if err != nil {
		return "", "", err
	}

	output, err := s.codec.Decode(env)
	if err != nil {
		return "", "", fmt.Errorf("invalid sign-in output: %w", err)
	}

	result, err := s.verifier.VerifySignIn(ctx, challenge.Input, output)
	if err != nil {
		return "", "", fmt.Errorf("sign-in verification error: %w", err)
	}

	return s.complete(ctx, challenge, result)
}

// LegacySignIn verifies a sign-in performed through signMessage and opens a
// session
func (s *AuthService) LegacySignIn(ctx context.Context, challengeToken string, env envelope.LegacyEnvelope) (string, string, error) {
	challenge, err := s.challenge(challengeToken, true)
	if err != nil {
		return "", "", err
	}

	output, err := s.codec.DecodeLegacy(env)
	if err != nil {
		return "", "", fmt.Errorf("invalid sign-in output: %w", err)
	}

	result, err := s.verifier.VerifyLegacySignIn(ctx, challenge.Input, output)
	if err != nil {
		return "", "", fmt.Errorf("sign-in verification error: %w", err)
	}

	return s.complete(ctx, challenge, result)
}

func (s *AuthService) challenge(token string, legacy bool) (*core.Challenge, error) {
	challenge, err := s.tokenizer.TokenToChallenge(token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrInvalidChallenge, err)
	}
	if challenge.Legacy != legacy {
		return nil, fmt.Errorf("%w: challenge was issued for another sign-in flow", core.ErrInvalidChallenge)
	}
	return challenge, nil
}

// complete consumes the challenge nonce and issues tokens for a verified result
func (s *AuthService) complete(ctx context.Context, challenge *core.Challenge, result core.Result) (string, string, error) {
	var input core.SignInInput
	switch r := result.(type) {
	case core.Valid:
		input = r.Data
	case core.Invalid:
		s.logger.Info("sign-in rejected",
			zap.String("challenge_id", challenge.ID),
			zap.Strings("errors", codes(r.Errors)))
		return "", "", &VerificationError{Codes: r.Errors}
	default:
		return "", "", core.ErrVerificationFailed
	}

	address, err := core.ParseAddress(input.Address)
	if err != nil {
		return "", "", err
	}

	nonce := challenge.ID
	if challenge.Input.Nonce != nil {
		nonce = *challenge.Input.Nonce
	}
	fresh, err := s.store.ConsumeNonce(ctx, nonce, challenge.ExpiresAt.Sub(s.now())+time.Minute)
	if err != nil {
		return "", "", fmt.Errorf("failed to consume nonce: %w", err)
	}
	if !fresh {
		return "", "", core.ErrChallengeConsumed
	}

	session := s.newSession(address.String())
	access, refresh, err := s.issue(session)
	if err != nil {
		return "", "", err
	}

	if err := s.eventPub.PublishSignIn(ctx, session.Address, session.ID); err != nil {
		s.logger.Warn("failed to publish sign-in event", zap.String("address", session.Address), zap.Error(err))
	}
	s.logger.Info("signed in", zap.String("address", session.Address), zap.String("session_id", session.ID))

	return access, refresh, nil
}

func (s *AuthService) newSession(address string) *core.Session {
	now := s.now()
	return &core.Session{
		ID:            uuid.New().String(),
		Address:       address,
		IssuedAt:      now,
		RefreshExpiry: now.Add(s.cfg.RefreshTTL),
		AccessExpiry:  now.Add(s.cfg.AccessTTL),
		RefreshID:     uuid.New().String(),
	}
}

func (s *AuthService) issue(session *core.Session) (string, string, error) {
	accessToken, err := s.tokenizer.SessionToAccessToken(session)
	if err != nil {
		return "", "", fmt.Errorf("failed to create access token: %w", err)
	}

	refreshToken, err := s.tokenizer.SessionToRefreshToken(session)
	if err != nil {
		return "", "", fmt.Errorf("failed to create refresh token: %w", err)
	}

	return accessToken, refreshToken, nil
}

// Refresh rotates the refresh token and issues new access and refresh tokens
func (s *AuthService) Refresh(ctx context.Context, refreshTokenStr string) (string, string, error) {
	session, err := s.tokenizer.RefreshTokenToSession(refreshTokenStr)
	if err != nil {
		return "", "", fmt.Errorf("invalid refresh token: %w", err)
	}

	if s.now().After(session.RefreshExpiry) {
		return "", "", core.ErrTokenExpired
	}

	invalidated, err := s.store.IsTokenInvalidated(ctx, session.RefreshID)
	if err != nil {
		return "", "", fmt.Errorf("failed to check token invalidation: %w", err)
	}
	if invalidated {
		s.logger.Warn("invalidated refresh token presented", zap.String("address", session.Address))
		return "", "", core.ErrTokenInvalidated
	}

	// The old refresh token stays invalid for the rest of its lifetime
	remainingTime := session.RefreshExpiry.Sub(s.now())
	if err := s.store.InvalidateToken(ctx, session.RefreshID, remainingTime); err != nil {
		return "", "", fmt.Errorf("failed to invalidate old token: %w", err)
	}

	return s.issue(s.newSession(session.Address))
}

// Logout invalidates a refresh token
func (s *AuthService) Logout(ctx context.Context, refreshTokenStr string) error {
	session, err := s.tokenizer.RefreshTokenToSession(refreshTokenStr)
	if err != nil && !errors.Is(err, core.ErrTokenExpired) {
		return fmt.Errorf("invalid refresh token: %w", err)
	}
	if session == nil {
		// Expired refresh tokens are already unusable
		return nil
	}

	remainingTime := session.RefreshExpiry.Sub(s.now())
	if remainingTime <= 0 {
		remainingTime = time.Hour
	}

	if err := s.store.InvalidateToken(ctx, session.RefreshID, remainingTime); err != nil {
		return fmt.Errorf("failed to invalidate token: %w", err)
	}

	// The token is already invalidated in the store; a failed notification
	// does not fail the logout.
	if err := s.eventPub.PublishLogout(ctx, session.Address, session.RefreshID); err != nil {
		s.logger.Warn("failed to publish logout event", zap.String("address", session.Address), zap.Error(err))
	}

	return nil
}

// ValidateAccessToken returns the session of a live access token
func (s *AuthService) ValidateAccessToken(ctx context.Context, accessToken string) (*core.Session, error) {
	session, err := s.tokenizer.AccessTokenToSession(accessToken)
	if err != nil {
		return nil, fmt.Errorf("invalid access token: %w", err)
	}

	if s.now().After(session.AccessExpiry) {
		return nil, core.ErrTokenExpired
	}

	// Access tokens die with the refresh token they were issued with
	if session.RefreshID != "" {
		invalidated, err := s.store.IsTokenInvalidated(ctx, session.RefreshID)
		if err != nil {
			return nil, fmt.Errorf("failed to check token invalidation: %w", err)
		}
		if invalidated {
			return nil, core.ErrTokenInvalidated
		}
	}

	return session, nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func codes(errs []core.ErrorCode) []string {
	out := make([]string, len(errs))
	for i, c := range errs {
		out[i] = string(c)
	}
	return out
}

// AccessTTL returns the lifetime of issued access tokens
func (s *AuthService) AccessTTL() time.Duration {
	return s.cfg.AccessTTL
}
