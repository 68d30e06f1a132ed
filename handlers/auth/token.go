package auth

import (
	"github.com/gofiber/fiber/v2"
	authutil "github.com/sahilchouksey/coursehub-api/utils/auth"
	"github.com/sahilchouksey/coursehub-api/utils/middleware"
	"github.com/sahilchouksey/coursehub-api/utils/response"
)

// RefreshRequest represents a token refresh request
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// RefreshToken handles token refresh
func (h *AuthHandler) RefreshToken(c *fiber.Ctx) error {
	var req RefreshRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	if req.RefreshToken == "" {
		return response.BadRequest(c, "Refresh token is required")
	}

	// Validate refresh token
	claims, err := h.jwtManager.ValidateToken(req.RefreshToken)
	if err != nil {
		return response.Unauthorized(c, "Invalid or expired refresh token")
	}

	// Check if it's a refresh token
	if claims.TokenType != authutil.TokenTypeRefresh {
		return response.Unauthorized(c, "Invalid token type")
	}

	// Check if token is blacklisted
	isRevoked, err := h.blacklistService.IsTokenRevoked(c.Context(), claims.ID)
	if err != nil {
		return response.InternalServerError(c, "Failed to check token status")
	}
	if isRevoked {
		return response.Unauthorized(c, "Token has been revoked")
	}

	// Load user to get current token version
	user, err := h.users.FindUser(c.Context(), claims.UserID)
	if err != nil {
		return response.Unauthorized(c, "User not found")
	}
	if !user.Active {
		return response.Unauthorized(c, "Account is deactivated")
	}

	// Check token version
	if user.TokenVersion != claims.TokenVersion {
		return response.Unauthorized(c, "Token has been invalidated")
	}

	tokens, err := h.jwtManager.IssuePair(authutil.Principal{
		UserID:       user.ID,
		Subject:      claims.Subject,
		Role:         user.Role,
		TokenVersion: user.TokenVersion,
	})
	if err != nil {
		return response.InternalServerError(c, "Failed to generate tokens")
	}

	// Rotate: the presented refresh token cannot be used again
	if err := h.blacklistService.RevokeClaims(c.Context(), claims, "token_refresh"); err != nil {
		return response.InternalServerError(c, "Failed to rotate refresh token")
	}

	return response.Success(c, tokens)
}

// Logout handles user logout by blacklisting the access token
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	claims, ok := middleware.GetClaims(c)
	if !ok {
		return response.Unauthorized(c, "Not authenticated")
	}

	if err := h.blacklistService.RevokeClaims(c.Context(), claims, "logout"); err != nil {
		return response.InternalServerError(c, "Failed to logout")
	}

	return response.SuccessWithMessage(c, "Successfully logged out", nil)
}
