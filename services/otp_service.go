package services

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log"
	"math/big"
	"time"

	"github.com/sahilchouksey/coursehub-api/model"
	"github.com/sahilchouksey/coursehub-api/repository"
	"github.com/sahilchouksey/coursehub-api/utils/crypto"
	"golang.org/x/crypto/bcrypt"
)

const (
	OTPDigits         = 4
	OTPExpiry         = 5 * time.Minute
	OTPResendExpiry   = 15 * time.Minute
	OTPMaxAttempts    = 5
	OTPResendInterval = 60 * time.Second
)

var (
	ErrInvalidVerificationToken = errors.New("invalid verification token")
	ErrInvalidOTP               = errors.New("invalid otp")
	ErrOTPExpired               = errors.New("otp expired")
	ErrTooManyOTPAttempts       = errors.New("too many invalid otp attempts")
	ErrOTPResendTooSoon         = errors.New("otp resend requested too soon")
)

// OTPStore persists login challenges
type OTPStore interface {
	CreateChallenge(ctx context.Context, challenge *model.OTPChallenge) error
	FindChallenge(ctx context.Context, token string) (*model.OTPChallenge, error)
	RecordAttempt(ctx context.Context, id uint) error
	Consume(ctx context.Context, id uint, at time.Time) (bool, error)
	Reissue(ctx context.Context, id uint, codeHash string, expiresAt time.Time) error
}

// Throttle sets a key only when it is absent, backed by Redis
type Throttle interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) (bool, error)
}

// PhoneSender delivers codes by SMS
type PhoneSender interface {
	SendOTP(ctx context.Context, phone, code string) error
}

// OTPService issues and checks one-time login codes. Learners receive them
// by SMS, admins by email.
type OTPService struct {
	store    OTPStore
	sms      PhoneSender
	mailer   Mailer
	throttle Throttle // optional
	now      func() time.Time
}

// NewOTPService creates a new OTP service
func NewOTPService(store OTPStore, sms PhoneSender, mailer Mailer, throttle Throttle) *OTPService {
	return &OTPService{
		store:    store,
		sms:      sms,
		mailer:   mailer,
		throttle: throttle,
		now:      time.Now,
	}
}

// Issue creates a challenge for the user and delivers its code
func (s *OTPService) Issue(ctx context.Context, user *model.User, purpose, fingerprint string) (*model.OTPChallenge, error) {
	code, hash, err := newCode()
	if err != nil {
		return nil, err
	}
	token, err := crypto.RandomHex(16)
	if err != nil {
		return nil, err
	}

	challenge := &model.OTPChallenge{
		UserID:            user.ID,
		Purpose:           purpose,
		CodeHash:          hash,
		VerificationToken: token,
		Fingerprint:       fingerprint,
		ExpiresAt:         s.now().Add(OTPExpiry),
	}
	if err := s.store.CreateChallenge(ctx, challenge); err != nil {
		return nil, fmt.Errorf("failed to save challenge: %w", err)
	}
	challenge.User = *user

	if err := s.deliver(ctx, user, purpose, code, OTPExpiry); err != nil {
		return nil, err
	}
	return challenge, nil
}

// Verify checks a code against its challenge and consumes the challenge
func (s *OTPService) Verify(ctx context.Context, token, code string) (*model.OTPChallenge, error) {
	challenge, err := s.pending(ctx, token)
	if err != nil {
		return nil, err
	}
	if s.now().After(challenge.ExpiresAt) {
		return nil, ErrOTPExpired
	}
	if challenge.Attempts >= OTPMaxAttempts {
		return nil, ErrTooManyOTPAttempts
	}

	if bcrypt.CompareHashAndPassword([]byte(challenge.CodeHash), []byte(code)) != nil {
		if err := s.store.RecordAttempt(ctx, challenge.ID); err != nil {
			log.Printf("[OTP] failed to record attempt on challenge %d: %v", challenge.ID, err)
		}
		return nil, ErrInvalidOTP
	}

	ok, err := s.store.Consume(ctx, challenge.ID, s.now())
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrInvalidVerificationToken
	}
	return challenge, nil
}

// Resend issues a fresh code for a pending challenge, at most once a minute
func (s *OTPService) Resend(ctx context.Context, token string) (*model.OTPChallenge, error) {
	challenge, err := s.pending(ctx, token)
	if err != nil {
		return nil, err
	}

	if s.throttle != nil {
		ok, err := s.throttle.SetNX(ctx, "otp:resend:"+token, 1, OTPResendInterval)
		if err != nil {
			log.Printf("[OTP] resend throttle unavailable: %v", err)
		} else if !ok {
			return nil, ErrOTPResendTooSoon
		}
	}

	code, hash, err := newCode()
	if err != nil {
		return nil, err
	}
	expiresAt := s.now().Add(OTPResendExpiry)
	if err := s.store.Reissue(ctx, challenge.ID, hash, expiresAt); err != nil {
		return nil, fmt.Errorf("failed to reissue challenge: %w", err)
	}
	challenge.CodeHash = hash
	challenge.ExpiresAt = expiresAt
	challenge.Attempts = 0

	if err := s.deliver(ctx, &challenge.User, challenge.Purpose, code, OTPResendExpiry); err != nil {
		return nil, err
	}
	return challenge, nil
}

func (s *OTPService) pending(ctx context.Context, token string) (*model.OTPChallenge, error) {
	if token == "" {
		return nil, ErrInvalidVerificationToken
	}
	challenge, err := s.store.FindChallenge(ctx, token)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidVerificationToken
		}
		return nil, err
	}
	if challenge.IsConsumed() {
		return nil, ErrInvalidVerificationToken
	}
	return challenge, nil
}

func (s *OTPService) deliver(ctx context.Context, user *model.User, purpose, code string, ttl time.Duration) error {
	if purpose == model.OTPPurposeAdminLogin {
		return s.mailer.Send(ctx, EmailMessage{
			To:       []string{user.Email},
			Subject:  "Your admin login code",
			Template: "emails/otp",
			Data: map[string]interface{}{
				"Name":    user.Name,
				"Code":    code,
				"Minutes": int(ttl.Minutes()),
			},
		})
	}
	return s.sms.SendOTP(ctx, user.PhoneNumber(), code)
}

// newCode returns a random 4 digit code and its bcrypt hash
func newCode() (string, string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(9000))
	if err != nil {
		return "", "", err
	}
	code := fmt.Sprintf("%0*d", OTPDigits, n.Int64()+1000)
	hash, err := bcrypt.GenerateFromPassword([]byte(code), bcrypt.DefaultCost)
	if err != nil {
		return "", "", err
	}
	return code, string(hash), nil
}
