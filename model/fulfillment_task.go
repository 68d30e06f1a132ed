package model

import (
	"time"

	"gorm.io/datatypes"
)

// Fulfillment task kinds
const (
	TaskPurchaseConfirmation = "purchase_confirmation"
	TaskRefundNotice         = "refund_notice"
	TaskRefundFailureNotice  = "refund_failure_notice"
)

// Fulfillment task statuses
const (
	TaskStatusPending = "pending"
	TaskStatusDone    = "done"
	TaskStatusFailed  = "failed"
)

// FulfillmentTask is an outbox entry for side effects that leave the process
// (invoice rendering, emails, archive uploads). Written in the same transaction
// as the record that triggered it and retried by the cron manager.
type FulfillmentTask struct {
	ID            uint           `gorm:"primaryKey" json:"id"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	PurchaseID    uint           `gorm:"index" json:"purchase_id"`
	Kind          string         `gorm:"type:varchar(50);not null" json:"kind"`
	Status        string         `gorm:"type:varchar(20);not null;default:'pending';index:idx_task_due" json:"status"`
	Attempts      int            `gorm:"default:0" json:"attempts"`
	LastError     string         `gorm:"type:text" json:"last_error,omitempty"`
	NextAttemptAt time.Time      `gorm:"not null;index:idx_task_due" json:"next_attempt_at"`
	Payload       datatypes.JSON `gorm:"type:jsonb" json:"payload"`
}

// TableName specifies the table name for FulfillmentTask
func (FulfillmentTask) TableName() string {
	return "fulfillment_tasks"
}

// NotificationPayload is the JSON payload carried by notification tasks
type NotificationPayload struct {
	AdminOnly    bool   `json:"admin_only,omitempty"`
	RefundAmount string `json:"refund_amount,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`
}
