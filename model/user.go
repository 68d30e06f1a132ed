package model

import (
	"slices"
	"time"

	"github.com/lib/pq"
	"gorm.io/gorm"
)

const (
	RoleStudent    = "student"
	RoleAdmin      = "admin"
	RoleSuperAdmin = "super_admin"
)

// User represents both learners (phone + OTP login) and admins (email + password + OTP)
type User struct {
	ID           uint           `gorm:"primaryKey" json:"id"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
	Name         string         `gorm:"type:varchar(255)" json:"name"`
	Email        string         `gorm:"type:varchar(255);index" json:"email"`
	Phone        *string        `gorm:"type:varchar(20);uniqueIndex" json:"phone,omitempty"`
	City         string         `gorm:"type:varchar(100)" json:"city"`
	State        string         `gorm:"type:varchar(100)" json:"state"`
	Country      string         `gorm:"type:varchar(100)" json:"country"`
	PasswordHash string         `json:"-"` // Never expose password in JSON
	Role         string         `gorm:"type:varchar(20);default:'student';index" json:"role"`
	Active       bool           `gorm:"default:true" json:"active"`
	IsVerified   bool           `gorm:"default:false" json:"is_verified"`
	LastLoginAt  *time.Time     `json:"last_login_at,omitempty"`
	// Fingerprints (user agent + ip hash) that completed an OTP challenge
	TrustedDevices pq.StringArray `gorm:"type:text[]" json:"-"`
	TokenVersion   int            `gorm:"default:0" json:"-"` // Increment to invalidate all user tokens

	// Relationships
	Enrollments    []Enrollment        `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"enrollments,omitempty"`
	Purchases      []CoursePurchase    `gorm:"foreignKey:UserID" json:"-"`
	AdminAuditLog  []AdminAuditLog     `gorm:"foreignKey:AdminID;constraint:OnDelete:CASCADE" json:"-"`
	TokenBlacklist []JWTTokenBlacklist `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
}

// TableName specifies the table name for User
func (User) TableName() string {
	return "users"
}

// IsAdmin reports whether the user can access admin routes
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin || u.Role == RoleSuperAdmin
}

// PhoneNumber returns the phone or an empty string
func (u *User) PhoneNumber() string {
	if u.Phone == nil {
		return ""
	}
	return *u.Phone
}

// TrustsDevice reports whether the fingerprint already passed an OTP challenge
func (u *User) TrustsDevice(fingerprint string) bool {
	return fingerprint != "" && slices.Contains(u.TrustedDevices, fingerprint)
}

// TrustDevice remembers a fingerprint, keeping the 10 most recent
func (u *User) TrustDevice(fingerprint string) {
	if fingerprint == "" || u.TrustsDevice(fingerprint) {
		return
	}
	u.TrustedDevices = append(u.TrustedDevices, fingerprint)
	if len(u.TrustedDevices) > 10 {
		u.TrustedDevices = u.TrustedDevices[len(u.TrustedDevices)-10:]
	}
}

// LoginExpired reports whether the last successful login is older than window
func (u *User) LoginExpired(now time.Time, window time.Duration) bool {
	return u.LastLoginAt == nil || now.Sub(*u.LastLoginAt) > window
}
