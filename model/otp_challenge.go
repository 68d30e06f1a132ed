package model

import (
	"time"

	"gorm.io/gorm"
)

// OTP challenge purposes
const (
	OTPPurposeAdminLogin = "admin_login"
	OTPPurposeUserLogin  = "user_login"
)

// OTPChallenge stores a pending one-time password for a login attempt
type OTPChallenge struct {
	ID                uint           `gorm:"primaryKey" json:"id"`
	UserID            uint           `gorm:"index;not null" json:"user_id"`
	Purpose           string         `gorm:"type:varchar(30);not null" json:"purpose"`
	CodeHash          string         `gorm:"not null" json:"-"`
	VerificationToken string         `gorm:"uniqueIndex;not null;type:varchar(100)" json:"verification_token"`
	Fingerprint       string         `gorm:"type:varchar(128)" json:"-"`
	Attempts          int            `gorm:"default:0" json:"-"`
	ExpiresAt         time.Time      `gorm:"index;not null" json:"expires_at"`
	ConsumedAt        *time.Time     `json:"consumed_at,omitempty"`
	CreatedAt         time.Time      `json:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at"`
	DeletedAt         gorm.DeletedAt `gorm:"index" json:"-"`

	// Relationships
	User User `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"user,omitempty"`
}

// TableName specifies the table name for OTPChallenge
func (OTPChallenge) TableName() string {
	return "otp_challenges"
}

// IsExpired checks if the challenge has expired
func (o *OTPChallenge) IsExpired() bool {
	return time.Now().After(o.ExpiresAt)
}

// IsConsumed checks if the challenge was already used
func (o *OTPChallenge) IsConsumed() bool {
	return o.ConsumedAt != nil
}

// MarkConsumed marks the challenge as used
func (o *OTPChallenge) MarkConsumed() {
	now := time.Now()
	o.ConsumedAt = &now
}
