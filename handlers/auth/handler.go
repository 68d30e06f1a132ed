package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sahilchouksey/coursehub-api/model"
	authutil "github.com/sahilchouksey/coursehub-api/utils/auth"
	"github.com/sahilchouksey/coursehub-api/utils/middleware"
	"github.com/sahilchouksey/coursehub-api/utils/response"
)

// loginWindow is how long a login stays fresh before a new OTP is asked for
const loginWindow = 24 * time.Hour

// UserStore loads and updates accounts
type UserStore interface {
	FindUser(ctx context.Context, id uint) (*model.User, error)
	FindByPhone(ctx context.Context, phone string) (*model.User, error)
	FindAdminByEmail(ctx context.Context, email string) (*model.User, error)
	Create(ctx context.Context, user *model.User) error
	Save(ctx context.Context, user *model.User) error
	CompleteLogin(ctx context.Context, user *model.User, fingerprint string, at time.Time) error
}

// OTPChallenger issues and checks login codes
type OTPChallenger interface {
	Issue(ctx context.Context, user *model.User, purpose, fingerprint string) (*model.OTPChallenge, error)
	Verify(ctx context.Context, token, code string) (*model.OTPChallenge, error)
	Resend(ctx context.Context, token string) (*model.OTPChallenge, error)
}

// TokenRevoker blacklists token ids
type TokenRevoker interface {
	RevokeClaims(ctx context.Context, claims *authutil.Claims, reason string) error
	IsTokenRevoked(ctx context.Context, jti string) (bool, error)
}

// AuthHandler handles authentication-related requests
type AuthHandler struct {
	users                UserStore
	otp                  OTPChallenger
	jwtManager           *authutil.JWTManager
	blacklistService     TokenRevoker
	bruteForceProtection *middleware.BruteForceProtection
	now                  func() time.Time
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(users UserStore, otp OTPChallenger, jwtManager *authutil.JWTManager, blacklist TokenRevoker, bruteForceProtection *middleware.BruteForceProtection) *AuthHandler {
	return &AuthHandler{
		users:                users,
		otp:                  otp,
		jwtManager:           jwtManager,
		blacklistService:     blacklist,
		bruteForceProtection: bruteForceProtection,
		now:                  time.Now,
	}
}

// UserResponse represents user data in responses
type UserResponse struct {
	ID         uint       `json:"id"`
	Name       string     `json:"name"`
	Email      string     `json:"email"`
	Phone      string     `json:"phone,omitempty"`
	City       string     `json:"city"`
	State      string     `json:"state"`
	Country    string     `json:"country"`
	Role       string     `json:"role"`
	IsVerified bool       `json:"is_verified"`
	LastLogin  *time.Time `json:"last_login_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// NewUserResponse maps a user to its public shape
func NewUserResponse(user *model.User) UserResponse {
	return UserResponse{
		ID:         user.ID,
		Name:       user.Name,
		Email:      user.Email,
		Phone:      user.PhoneNumber(),
		City:       user.City,
		State:      user.State,
		Country:    user.Country,
		Role:       user.Role,
		IsVerified: user.IsVerified,
		LastLogin:  user.LastLoginAt,
		CreatedAt:  user.CreatedAt,
		UpdatedAt:  user.UpdatedAt,
	}
}

// LoginResponse represents a successful login response
type LoginResponse struct {
	User UserResponse `json:"user"`
	authutil.TokenPair
}

// OTPRequiredResponse tells the client to collect a code
type OTPRequiredResponse struct {
	VerificationToken string `json:"verification_token"`
	IsOTPRequired     bool   `json:"is_otp_required"`
}

// completeLogin records the login and issues a token pair
func (h *AuthHandler) completeLogin(c *fiber.Ctx, user *model.User, fingerprint, message string) error {
	if err := h.users.CompleteLogin(c.Context(), user, fingerprint, h.now()); err != nil {
		return response.InternalServerError(c, "Failed to record login")
	}

	subject := user.Email
	if !user.IsAdmin() {
		subject = user.PhoneNumber()
	}
	tokens, err := h.jwtManager.IssuePair(authutil.Principal{
		UserID:       user.ID,
		Subject:      subject,
		Role:         user.Role,
		TokenVersion: user.TokenVersion,
	})
	if err != nil {
		return response.InternalServerError(c, "Failed to generate tokens")
	}

	h.bruteForceProtection.RecordSuccessfulAttempt(c.Context(), c.IP())
	return response.SuccessWithMessage(c, message, LoginResponse{
		User:      NewUserResponse(user),
		TokenPair: *tokens,
	})
}

// deviceFingerprint hashes the user agent, client IP and the browser
// fingerprint sent by the client
func deviceFingerprint(c *fiber.Ctx, browser string) string {
	sum := sha256.Sum256([]byte(c.Get(fiber.HeaderUserAgent) + "|" + c.IP() + "|" + browser))
	return hex.EncodeToString(sum[:])
}
