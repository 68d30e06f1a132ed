package model

import (
	"time"

	"gorm.io/datatypes"
)

// AdminAuditLog records admin actions on orders, refunds and the catalog
type AdminAuditLog struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	AdminID     uint           `gorm:"not null;index" json:"admin_id"`
	Action      string         `gorm:"type:varchar(100);not null;index" json:"action"` // e.g. "refund_initiate", "course_delete"
	Resource    string         `gorm:"type:varchar(100)" json:"resource"`              // e.g. "purchases", "courses"
	ResourceID  string         `gorm:"type:varchar(100)" json:"resource_id"`
	Request     datatypes.JSON `gorm:"type:jsonb" json:"request"`
	StatusCode  int            `json:"status_code"`
	IPAddress   string         `gorm:"type:varchar(45)" json:"ip_address"`
	UserAgent   string         `gorm:"type:text" json:"user_agent"`
	Description string         `gorm:"type:text" json:"description"`
	CreatedAt   time.Time      `json:"created_at"`

	// Relationships
	Admin User `gorm:"foreignKey:AdminID;constraint:OnDelete:CASCADE" json:"admin,omitempty"`
}

// TableName specifies the table name for AdminAuditLog
func (AdminAuditLog) TableName() string {
	return "admin_audit_logs"
}
