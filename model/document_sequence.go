package model

import (
	"fmt"
	"time"
)

// DocumentSequence is a counter per numbering scope, e.g. "COS-202610"
type DocumentSequence struct {
	Scope     string    `gorm:"primaryKey;type:varchar(50)" json:"scope"`
	Value     int64     `gorm:"not null;default:0" json:"value"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName specifies the table name for DocumentSequence
func (DocumentSequence) TableName() string {
	return "document_sequences"
}

// FormatSequence appends the counter, zero padded to two digits, to the scope
func FormatSequence(scope string, value int64) string {
	return fmt.Sprintf("%s%02d", scope, value)
}
