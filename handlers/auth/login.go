package auth

import (
	"errors"
	"log"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/sahilchouksey/coursehub-api/model"
	"github.com/sahilchouksey/coursehub-api/repository"
	"github.com/sahilchouksey/coursehub-api/services"
	"github.com/sahilchouksey/coursehub-api/utils/response"
)

const smsFailedMessage = "Send OTP issue. Please try again later."

// UserLoginRequest represents a learner login request
type UserLoginRequest struct {
	Phone              string `json:"phone"`
	BrowserFingerprint string `json:"browser_fingerprint"`
}

// VerifyOTPRequest carries the code for a pending challenge
type VerifyOTPRequest struct {
	VerificationToken string `json:"verification_token"`
	OTP               string `json:"otp"`
}

// UserLogin signs a learner in by phone number. New numbers get an account.
// A code is sent by SMS when the account is unverified, the device is new or
// the last login is older than a day.
func (h *AuthHandler) UserLogin(c *fiber.Ctx) error {
	var req UserLoginRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	phone := strings.TrimSpace(req.Phone)
	if msg := phoneError(phone); msg != "" {
		return response.BadRequest(c, msg)
	}

	user, err := h.users.FindByPhone(c.Context(), phone)
	switch {
	case err == nil:
		if !user.Active {
			return response.Forbidden(c, "Account is deactivated")
		}
	case errors.Is(err, repository.ErrNotFound):
		user = &model.User{Phone: &phone, Role: model.RoleStudent, Active: true}
		if err := h.users.Create(c.Context(), user); err != nil {
			if errors.Is(err, repository.ErrDuplicateUser) {
				return response.Conflict(c, "Please try again")
			}
			return response.InternalServerError(c, "Failed to create account")
		}
	default:
		return response.InternalServerError(c, "Failed to load account")
	}

	fingerprint := deviceFingerprint(c, req.BrowserFingerprint)
	if user.IsVerified && user.TrustsDevice(fingerprint) && !user.LoginExpired(h.now(), loginWindow) {
		return h.completeLogin(c, user, fingerprint, "Login successful")
	}

	challenge, err := h.otp.Issue(c.Context(), user, model.OTPPurposeUserLogin, fingerprint)
	if err != nil {
		log.Printf("[OTP] failed to issue code for user %d: %v", user.ID, err)
		return response.InternalServerError(c, smsFailedMessage)
	}

	return response.SuccessWithMessage(c, "OTP has been sent to your phone number", OTPRequiredResponse{
		VerificationToken: challenge.VerificationToken,
		IsOTPRequired:     true,
	})
}

// UserVerifyOTP completes a learner login
func (h *AuthHandler) UserVerifyOTP(c *fiber.Ctx) error {
	return h.verifyOTP(c, model.OTPPurposeUserLogin)
}

func (h *AuthHandler) verifyOTP(c *fiber.Ctx, purpose string) error {
	var req VerifyOTPRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if req.VerificationToken == "" || req.OTP == "" {
		return response.BadRequest(c, "Verification token and OTP are required")
	}

	challenge, err := h.otp.Verify(c.Context(), req.VerificationToken, strings.TrimSpace(req.OTP))
	if err != nil {
		return h.otpError(c, err)
	}
	if challenge.Purpose != purpose {
		return response.BadRequest(c, "Invalid verification token")
	}

	user, err := h.users.FindUser(c.Context(), challenge.UserID)
	if err != nil {
		return response.Unauthorized(c, "User not found")
	}
	if !user.Active {
		return response.Forbidden(c, "Account is deactivated")
	}
	return h.completeLogin(c, user, challenge.Fingerprint, "Login successful")
}

// ResendOTP sends a fresh code for a pending challenge
func (h *AuthHandler) ResendOTP(c *fiber.Ctx) error {
	var req VerifyOTPRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	challenge, err := h.otp.Resend(c.Context(), req.VerificationToken)
	if err != nil {
		return h.otpError(c, err)
	}

	message := "OTP has been sent to your phone number"
	if challenge.Purpose == model.OTPPurposeAdminLogin {
		message = "OTP has been sent to your email"
	}
	return response.SuccessWithMessage(c, message, OTPRequiredResponse{
		VerificationToken: challenge.VerificationToken,
		IsOTPRequired:     true,
	})
}

func (h *AuthHandler) otpError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, services.ErrInvalidOTP):
		_ = h.bruteForceProtection.RecordFailedAttempt(c.Context(), c.IP())
		return response.BadRequest(c, "Invalid OTP")
	case errors.Is(err, services.ErrInvalidVerificationToken):
		return response.BadRequest(c, "Invalid verification token")
	case errors.Is(err, services.ErrOTPExpired):
		return response.BadRequest(c, "OTP has expired")
	case errors.Is(err, services.ErrTooManyOTPAttempts):
		return response.TooManyRequests(c, "Too many invalid attempts. Please login again.")
	case errors.Is(err, services.ErrOTPResendTooSoon):
		return response.TooManyRequests(c, "Please wait a minute before requesting another OTP")
	case errors.Is(err, services.ErrSMSFailed):
		return response.InternalServerError(c, smsFailedMessage)
	default:
		log.Printf("[OTP] verification failed: %v", err)
		return response.InternalServerError(c, "Failed to verify OTP")
	}
}

func phoneError(phone string) string {
	switch {
	case phone == "":
		return "Phone Number is required"
	case strings.Trim(phone, "0123456789") != "":
		return "Please enter digits only."
	case len(phone) < 7 || len(phone) > 14:
		return "Phone number must be between 7 and 14 digits."
	}
	return ""
}
