package middleware

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/sahilchouksey/coursehub-api/model"
	"github.com/sahilchouksey/coursehub-api/utils/auth"
	"github.com/sahilchouksey/coursehub-api/utils/response"
	"gorm.io/gorm"
)

var (
	errMissingToken    = errors.New("Missing authorization token")
	errBadFormat       = errors.New("Invalid authorization format")
	errTokenExpired    = errors.New("Token has expired")
	errTokenInvalid    = errors.New("Invalid token")
	errTokenType       = errors.New("Invalid token type")
	errTokenRevoked    = errors.New("Token has been revoked")
	errTokenOutdated   = errors.New("Token has been invalidated")
	errUserNotFound    = errors.New("User not found")
	errUserDeactivated = errors.New("Account is deactivated")
)

// AuthMiddleware handles JWT authentication
type AuthMiddleware struct {
	jwtManager       *auth.JWTManager
	blacklistService *auth.BlacklistService
	db               *gorm.DB
}

// NewAuthMiddleware creates a new auth middleware
func NewAuthMiddleware(jwtManager *auth.JWTManager, db *gorm.DB) *AuthMiddleware {
	return &AuthMiddleware{
		jwtManager:       jwtManager,
		blacklistService: auth.NewBlacklistService(db),
		db:               db,
	}
}

// authenticate resolves the bearer token into claims and the active user behind it.
// The returned error is either one of the client facing errors above or an internal one.
func (m *AuthMiddleware) authenticate(c *fiber.Ctx) (*auth.Claims, *model.User, error) {
	authHeader := c.Get("Authorization")
	if authHeader == "" {
		return nil, nil, errMissingToken
	}

	// Extract token from "Bearer <token>"
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return nil, nil, errBadFormat
	}

	claims, err := m.jwtManager.ValidateToken(parts[1])
	if err != nil {
		if errors.Is(err, auth.ErrExpiredToken) {
			return nil, nil, errTokenExpired
		}
		return nil, nil, errTokenInvalid
	}

	if claims.TokenType != auth.TokenTypeAccess {
		return nil, nil, errTokenType
	}

	isRevoked, err := m.blacklistService.IsTokenRevoked(c.Context(), claims.ID)
	if err != nil {
		return nil, nil, err
	}
	if isRevoked {
		return nil, nil, errTokenRevoked
	}

	var user model.User
	if err := m.db.WithContext(c.Context()).First(&user, claims.UserID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, errUserNotFound
		}
		return nil, nil, err
	}

	if user.TokenVersion != claims.TokenVersion {
		return nil, nil, errTokenOutdated
	}
	if !user.Active {
		return nil, nil, errUserDeactivated
	}

	return claims, &user, nil
}

func isClientAuthError(err error) bool {
	switch err {
	case errMissingToken, errBadFormat, errTokenExpired, errTokenInvalid,
		errTokenType, errTokenRevoked, errTokenOutdated, errUserNotFound, errUserDeactivated:
		return true
	}
	return false
}

func setPrincipal(c *fiber.Ctx, claims *auth.Claims, user *model.User) {
	c.Locals("user_id", claims.UserID)
	c.Locals("user_role", user.Role)
	c.Locals("claims", claims)
	c.Locals("user", user)
	c.Locals("token_jti", claims.ID)
}

// Required is middleware that requires a valid JWT token
func (m *AuthMiddleware) Required() fiber.Handler {
	return func(c *fiber.Ctx) error {
		claims, user, err := m.authenticate(c)
		if err != nil {
			if isClientAuthError(err) {
				return response.Unauthorized(c, err.Error())
			}
			return response.InternalServerError(c, "Failed to check token status")
		}

		setPrincipal(c, claims, user)
		return c.Next()
	}
}

// Optional is middleware that allows requests with or without a token
func (m *AuthMiddleware) Optional() fiber.Handler {
	return func(c *fiber.Ctx) error {
		claims, user, err := m.authenticate(c)
		if err == nil {
			setPrincipal(c, claims, user)
		}
		return c.Next()
	}
}

// RequireRole is middleware that requires specific user role
func (m *AuthMiddleware) RequireRole(roles ...string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		role, ok := GetUserRole(c)
		if !ok {
			return response.Forbidden(c, "Access denied")
		}

		for _, r := range roles {
			if role == r {
				return c.Next()
			}
		}

		return response.Forbidden(c, "Insufficient permissions")
	}
}

// RequireAdmin validates the token inline and checks for an admin role
func (m *AuthMiddleware) RequireAdmin() fiber.Handler {
	return func(c *fiber.Ctx) error {
		claims, user, err := m.authenticate(c)
		if err != nil {
			if isClientAuthError(err) {
				return response.Unauthorized(c, err.Error())
			}
			return response.InternalServerError(c, "Failed to check token status")
		}

		if !user.IsAdmin() {
			return response.Forbidden(c, "Admin access required")
		}

		setPrincipal(c, claims, user)
		return c.Next()
	}
}

// GetUserID extracts user ID from context
func GetUserID(c *fiber.Ctx) (uint, bool) {
	userID := c.Locals("user_id")
	if userID == nil {
		return 0, false
	}
	id, ok := userID.(uint)
	return id, ok
}

// GetUserRole extracts user role from context
func GetUserRole(c *fiber.Ctx) (string, bool) {
	role := c.Locals("user_role")
	if role == nil {
		return "", false
	}
	r, ok := role.(string)
	return r, ok
}

// GetUser extracts full user object from context
func GetUser(c *fiber.Ctx) (*model.User, bool) {
	user := c.Locals("user")
	if user == nil {
		return nil, false
	}
	u, ok := user.(*model.User)
	return u, ok
}

// IsAdmin reports whether the authenticated principal is an admin
func IsAdmin(c *fiber.Ctx) bool {
	user, ok := GetUser(c)
	return ok && user.IsAdmin()
}

// GetClaims extracts full claims from context
func GetClaims(c *fiber.Ctx) (*auth.Claims, bool) {
	claims := c.Locals("claims")
	if claims == nil {
		return nil, false
	}
	claimsData, ok := claims.(*auth.Claims)
	return claimsData, ok
}

// GetTokenJTI extracts the token JTI from context
func GetTokenJTI(c *fiber.Ctx) (string, bool) {
	jti := c.Locals("token_jti")
	if jti == nil {
		return "", false
	}
	j, ok := jti.(string)
	return j, ok
}
