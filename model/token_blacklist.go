package model

import (
	"time"
)

// JWTTokenBlacklist stores revoked token ids (JTI) until their natural expiry
type JWTTokenBlacklist struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	JTI       string    `gorm:"column:token;uniqueIndex;not null;type:varchar(64)" json:"jti"`
	UserID    uint      `gorm:"index" json:"user_id"`
	TokenType string    `gorm:"type:varchar(10)" json:"token_type"` // access, refresh
	Reason    string    `gorm:"type:varchar(100)" json:"reason"`    // logout, refresh_rotation, password_change
	ExpiresAt time.Time `gorm:"index;not null" json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName specifies the table name for JWTTokenBlacklist
func (JWTTokenBlacklist) TableName() string {
	return "jwt_token_blacklist"
}
