package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/sahilchouksey/coursehub-api/model"
	"github.com/sahilchouksey/coursehub-api/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memOTP struct {
	mu         sync.Mutex
	challenges map[string]*model.OTPChallenge
}

func (m *memOTP) CreateChallenge(_ context.Context, c *model.OTPChallenge) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c.ID = uint(len(m.challenges) + 1)
	m.challenges[c.VerificationToken] = c
	return nil
}

func (m *memOTP) FindChallenge(_ context.Context, token string) (*model.OTPChallenge, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.challenges[token]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *memOTP) byID(id uint) *model.OTPChallenge {
	for _, c := range m.challenges {
		if c.ID == id {
			return c
		}
	}
	return nil
}

func (m *memOTP) RecordAttempt(_ context.Context, id uint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byID(id).Attempts++
	return nil
}

func (m *memOTP) Consume(_ context.Context, id uint, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := m.byID(id)
	if c.ConsumedAt != nil {
		return false, nil
	}
	c.ConsumedAt = &at
	return true, nil
}

func (m *memOTP) Reissue(_ context.Context, id uint, hash string, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := m.byID(id)
	c.CodeHash = hash
	c.ExpiresAt = expiresAt
	c.Attempts = 0
	return nil
}

type fakeSMS struct {
	phone string
	codes []string
	err   error
}

func (f *fakeSMS) SendOTP(_ context.Context, phone, code string) error {
	if f.err != nil {
		return f.err
	}
	f.phone = phone
	f.codes = append(f.codes, code)
	return nil
}

func (f *fakeSMS) last() string { return f.codes[len(f.codes)-1] }

type memThrottle struct{ keys map[string]bool }

func (m *memThrottle) SetNX(_ context.Context, key string, _ interface{}, _ time.Duration) (bool, error) {
	if m.keys[key] {
		return false, nil
	}
	m.keys[key] = true
	return true, nil
}

func newOTPFixture() (*memOTP, *fakeSMS, *fakeMailer, *OTPService) {
	store := &memOTP{challenges: map[string]*model.OTPChallenge{}}
	sms := &fakeSMS{}
	mailer := &fakeMailer{}
	svc := NewOTPService(store, sms, mailer, &memThrottle{keys: map[string]bool{}})
	svc.now = func() time.Time { return fixedNow }
	return store, sms, mailer, svc
}

func learner() *model.User {
	phone := "9876543210"
	return &model.User{ID: 7, Name: "Asha", Phone: &phone, Role: model.RoleStudent}
}

func TestOTP_IssueAndVerifyLearner(t *testing.T) {
	_, sms, mailer, svc := newOTPFixture()
	ctx := context.Background()

	challenge, err := svc.Issue(ctx, learner(), model.OTPPurposeUserLogin, "fp")
	require.NoError(t, err)
	assert.Len(t, challenge.VerificationToken, 32)
	assert.Equal(t, fixedNow.Add(OTPExpiry), challenge.ExpiresAt)
	require.Len(t, sms.codes, 1)
	assert.Len(t, sms.last(), OTPDigits)
	assert.Equal(t, "9876543210", sms.phone)
	assert.Empty(t, mailer.sent)

	verified, err := svc.Verify(ctx, challenge.VerificationToken, sms.last())
	require.NoError(t, err)
	assert.Equal(t, uint(7), verified.UserID)
	assert.Equal(t, "fp", verified.Fingerprint)

	_, err = svc.Verify(ctx, challenge.VerificationToken, sms.last())
	assert.ErrorIs(t, err, ErrInvalidVerificationToken, "a code is only good once")
}

func TestOTP_AdminCodeGoesByEmail(t *testing.T) {
	_, sms, mailer, svc := newOTPFixture()
	admin := &model.User{ID: 1, Name: "Ops", Email: "ops@example.com", Role: model.RoleAdmin}

	_, err := svc.Issue(context.Background(), admin, model.OTPPurposeAdminLogin, "")
	require.NoError(t, err)
	assert.Empty(t, sms.codes)
	require.Len(t, mailer.sent, 1)
	assert.Equal(t, []string{"ops@example.com"}, mailer.sent[0].To)
	assert.Equal(t, "emails/otp", mailer.sent[0].Template)
	data, ok := mailer.sent[0].Data.(map[string]interface{})
	require.True(t, ok)
	assert.Len(t, data["Code"], OTPDigits)
}

func TestOTP_WrongCodesLockTheChallenge(t *testing.T) {
	store, sms, _, svc := newOTPFixture()
	ctx := context.Background()

	challenge, err := svc.Issue(ctx, learner(), model.OTPPurposeUserLogin, "fp")
	require.NoError(t, err)
	wrong := "0000"
	if sms.last() == wrong {
		wrong = "0001"
	}

	for i := 0; i < OTPMaxAttempts; i++ {
		_, err := svc.Verify(ctx, challenge.VerificationToken, wrong)
		assert.ErrorIs(t, err, ErrInvalidOTP)
	}
	assert.Equal(t, OTPMaxAttempts, store.challenges[challenge.VerificationToken].Attempts)

	_, err = svc.Verify(ctx, challenge.VerificationToken, sms.last())
	assert.ErrorIs(t, err, ErrTooManyOTPAttempts)
}

func TestOTP_Expiry(t *testing.T) {
	_, sms, _, svc := newOTPFixture()
	ctx := context.Background()

	challenge, err := svc.Issue(ctx, learner(), model.OTPPurposeUserLogin, "fp")
	require.NoError(t, err)

	svc.now = func() time.Time { return fixedNow.Add(OTPExpiry + time.Second) }
	_, err = svc.Verify(ctx, challenge.VerificationToken, sms.last())
	assert.ErrorIs(t, err, ErrOTPExpired)

	_, err = svc.Verify(ctx, "unknown", sms.last())
	assert.ErrorIs(t, err, ErrInvalidVerificationToken)
}

func TestOTP_ResendReplacesCodeAndIsThrottled(t *testing.T) {
	_, sms, _, svc := newOTPFixture()
	ctx := context.Background()

	challenge, err := svc.Issue(ctx, learner(), model.OTPPurposeUserLogin, "fp")
	require.NoError(t, err)
	first := sms.last()

	resent, err := svc.Resend(ctx, challenge.VerificationToken)
	require.NoError(t, err)
	assert.Equal(t, fixedNow.Add(OTPResendExpiry), resent.ExpiresAt)
	require.Len(t, sms.codes, 2)

	_, err = svc.Resend(ctx, challenge.VerificationToken)
	assert.ErrorIs(t, err, ErrOTPResendTooSoon)

	if first != sms.last() {
		_, err = svc.Verify(ctx, challenge.VerificationToken, first)
		assert.ErrorIs(t, err, ErrInvalidOTP)
	}
	_, err = svc.Verify(ctx, challenge.VerificationToken, sms.last())
	assert.NoError(t, err)
}

func TestOTP_SMSFailureSurfaces(t *testing.T) {
	_, sms, _, svc := newOTPFixture()
	sms.err = ErrSMSFailed

	_, err := svc.Issue(context.Background(), learner(), model.OTPPurposeUserLogin, "fp")
	assert.ErrorIs(t, err, ErrSMSFailed)
}
