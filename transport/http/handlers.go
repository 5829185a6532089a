package http

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/layer-3/siwa/core"
	"github.com/layer-3/siwa/envelope"
	"github.com/layer-3/siwa/message"
	"github.com/layer-3/siwa/service"
)

// AuthHandlers contains HTTP handlers for auth endpoints
type AuthHandlers struct {
	authService *service.AuthService
}

// NewAuthHandlers creates new auth handlers
func NewAuthHandlers(authService *service.AuthService) *AuthHandlers {
	return &AuthHandlers{
		authService: authService,
	}
}

// Challenge issues a challenge for wallet standard sign-in. The address is
// optional; the wallet fills in its own when absent.
func (h *AuthHandlers) Challenge(c *gin.Context) {
	var req struct {
		Address string `json:"address"`
	}

	// An empty body asks for a challenge without an address
	if !bindJSON(c, &req, true) {
		return
	}

	h.challenge(c, service.ChallengeRequest{Address: req.Address})
}

// LegacyChallenge issues a challenge for the signMessage flow
func (h *AuthHandlers) LegacyChallenge(c *gin.Context) {
	var req struct {
		Address string `json:"address" binding:"required"`
	}

	if !bindJSON(c, &req, false) {
		return
	}

	h.challenge(c, service.ChallengeRequest{Address: req.Address, Legacy: true})
}

func (h *AuthHandlers) challenge(c *gin.Context, req service.ChallengeRequest) {
	token, input, err := h.authService.CreateChallenge(c.Request.Context(), req)
	if err != nil {
		if errors.Is(err, core.ErrInvalidAddress) || errors.Is(err, core.ErrInvalidChallenge) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid address"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create challenge"})
		return
	}

	text := message.Create(input)
	if req.Legacy {
		text = message.CreateLegacy(input)
	}

	c.JSON(http.StatusOK, gin.H{
		"token":   token,
		"input":   input,
		"message": text,
	})
}

// Login handles wallet standard sign-in
func (h *AuthHandlers) Login(c *gin.Context) {
	var req struct {
		ChallengeToken string            `json:"challenge_token" binding:"required"`
		Output         envelope.Envelope `json:"output"`
	}

	if !bindJSON(c, &req, false) {
		return
	}

	accessToken, refreshToken, err := h.authService.SignIn(c.Request.Context(), req.ChallengeToken, req.Output)
	if err != nil {
		h.loginFailed(c, err)
		return
	}
	h.tokens(c, accessToken, refreshToken)
}

// LegacyLogin handles sign-in through signMessage
func (h *AuthHandlers) LegacyLogin(c *gin.Context) {
	var req struct {
		ChallengeToken string                  `json:"challenge_token" binding:"required"`
		Output         envelope.LegacyEnvelope `json:"output"`
	}

	if !bindJSON(c, &req, false) {
		return
	}

	accessToken, refreshToken, err := h.authService.LegacySignIn(c.Request.Context(), req.ChallengeToken, req.Output)
	if err != nil {
		h.loginFailed(c, err)
		return
	}
	h.tokens(c, accessToken, refreshToken)
}

func (h *AuthHandlers) loginFailed(c *gin.Context, err error) {
	var verr *service.VerificationError
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Sign-in verification failed", "codes": verr.Codes})
	case errors.Is(err, core.ErrChallengeConsumed):
		c.JSON(http.StatusConflict, gin.H{"error": "Challenge already used"})
	case errors.Is(err, core.ErrTokenExpired):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Challenge token expired"})
	case errors.Is(err, core.ErrInvalidChallenge):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid challenge token"})
	case errors.Is(err, core.ErrUnsupportedVersion),
		errors.Is(err, core.ErrUnknownScheme),
		errors.Is(err, core.ErrUnsupportedScheme),
		errors.Is(err, core.ErrInvalidEncoding):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid sign-in output"})
	case errors.Is(err, core.ErrAccountLookup):
		c.JSON(http.StatusBadGateway, gin.H{"error": "Account lookup failed"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Authentication failed"})
	}
}

func (h *AuthHandlers) tokens(c *gin.Context, accessToken, refreshToken string) {
	c.JSON(http.StatusOK, gin.H{
		"access_token":  accessToken,
		"refresh_token": refreshToken,
		"token_type":    "Bearer",
		"expires_in":    int(h.authService.AccessTTL().Seconds()),
	})
}

// Refresh handles token refresh
func (h *AuthHandlers) Refresh(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refresh_token" binding:"required"`
	}

	if !bindJSON(c, &req, false) {
		return
	}

	accessToken, refreshToken, err := h.authService.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		switch {
		case errors.Is(err, core.ErrTokenExpired):
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Refresh token expired"})
		case errors.Is(err, core.ErrTokenInvalidated):
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Refresh token has been invalidated"})
		case errors.Is(err, core.ErrInvalidToken):
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid refresh token"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to refresh tokens"})
		}
		return
	}

	h.tokens(c, accessToken, refreshToken)
}

// Logout handles session logout
func (h *AuthHandlers) Logout(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refresh_token" binding:"required"`
	}

	if !bindJSON(c, &req, false) {
		return
	}

	if err := h.authService.Logout(c.Request.Context(), req.RefreshToken); err != nil {
		if errors.Is(err, core.ErrInvalidToken) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid refresh token"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to logout"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Logged out"})
}

// Me returns information about the authenticated user
func (h *AuthHandlers) Me(c *gin.Context) {
	address, exists := c.Get(contextAddressKey)
	if !exists {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "User not found in context"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"address": address,
	})
}

// Authorize reports that the bearer token is valid; the middleware has
// already checked it.
func (h *AuthHandlers) Authorize(c *gin.Context) {
	address, exists := c.Get(contextAddressKey)
	if !exists {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "User not found in context"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"authorized": true,
		"address":    address,
	})
}

// bindJSON decodes the request body into obj and answers the request itself
// when that fails. allowEmpty accepts a missing body.
func bindJSON(c *gin.Context, obj any, allowEmpty bool) bool {
	err := c.ShouldBindJSON(obj)
	if err == nil || (allowEmpty && errors.Is(err, io.EOF)) {
		return true
	}

	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "Request body too large"})
		return false
	}
	c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
	return false
}
