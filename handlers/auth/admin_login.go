package auth

import (
	"errors"
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/sahilchouksey/coursehub-api/model"
	"github.com/sahilchouksey/coursehub-api/repository"
	authutil "github.com/sahilchouksey/coursehub-api/utils/auth"
	"github.com/sahilchouksey/coursehub-api/utils/response"
)

// AdminLoginRequest represents an admin login request
type AdminLoginRequest struct {
	Email              string `json:"email"`
	Password           string `json:"password"`
	BrowserFingerprint string `json:"browser_fingerprint"`
}

// AdminLogin checks the password and asks for an emailed code on untrusted
// devices or after a day without login
func (h *AuthHandler) AdminLogin(c *fiber.Ctx) error {
	var req AdminLoginRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	if req.Email == "" || req.Password == "" {
		return response.BadRequest(c, "Email and password are required")
	}

	ip := c.IP()

	user, err := h.users.FindAdminByEmail(c.Context(), req.Email)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			return response.InternalServerError(c, "Failed to load account")
		}
		// Record failed attempt even if user not found
		_ = h.bruteForceProtection.RecordFailedAttempt(c.Context(), ip)
		return response.Unauthorized(c, "Invalid email or password")
	}

	// Verify password
	if err := authutil.VerifyPassword(user.PasswordHash, req.Password); err != nil {
		_ = h.bruteForceProtection.RecordFailedAttempt(c.Context(), ip)
		return response.Unauthorized(c, "Invalid email or password")
	}

	if !user.Active {
		return response.Forbidden(c, "Account is deactivated")
	}

	fingerprint := deviceFingerprint(c, req.BrowserFingerprint)
	if user.TrustsDevice(fingerprint) && !user.LoginExpired(h.now(), loginWindow) {
		return h.completeLogin(c, user, fingerprint, "Login successful")
	}

	challenge, err := h.otp.Issue(c.Context(), user, model.OTPPurposeAdminLogin, fingerprint)
	if err != nil {
		log.Printf("[OTP] failed to issue admin code for %d: %v", user.ID, err)
		return response.InternalServerError(c, "Failed to send OTP. Please try again later.")
	}

	return response.SuccessWithMessage(c, "OTP has been sent to your email", OTPRequiredResponse{
		VerificationToken: challenge.VerificationToken,
		IsOTPRequired:     true,
	})
}

// AdminVerifyOTP completes an admin login and trusts the device
func (h *AuthHandler) AdminVerifyOTP(c *fiber.Ctx) error {
	return h.verifyOTP(c, model.OTPPurposeAdminLogin)
}
