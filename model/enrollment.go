package model

import (
	"time"
)

// Enrollment grants a user access to a course once payment succeeds
type Enrollment struct {
	ID                    uint      `gorm:"primaryKey" json:"id"`
	CreatedAt             time.Time `json:"created_at"`
	UpdatedAt             time.Time `json:"updated_at"`
	UserID                uint      `gorm:"not null;uniqueIndex:idx_enrollment_user_course" json:"user_id"`
	CourseID              uint      `gorm:"not null;uniqueIndex:idx_enrollment_user_course;index" json:"course_id"`
	EnrolledAt            time.Time `gorm:"not null" json:"enrolled_at"`
	PercentageCompleted   float64   `gorm:"default:0" json:"percentage_completed"`
	CompletedCourseStatus bool      `gorm:"default:false" json:"completed_course_status"`
	Active                bool      `gorm:"default:true" json:"active"`

	// Relationships
	User   User   `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	Course Course `gorm:"foreignKey:CourseID;constraint:OnDelete:CASCADE" json:"course,omitempty"`
}

// TableName specifies the table name for Enrollment
func (Enrollment) TableName() string {
	return "enrollments"
}

// VideoProgress tracks how far a learner got through one video
type VideoProgress struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_progress_user_video;index:idx_progress_user_course" json:"user_id"`
	VideoID   uint      `gorm:"not null;uniqueIndex:idx_progress_user_video" json:"video_id"`
	CourseID  uint      `gorm:"not null;index:idx_progress_user_course" json:"course_id"`
	Progress  float64   `gorm:"not null;default:0" json:"progress"`
	Completed bool      `gorm:"default:false" json:"completed"`
}

// TableName specifies the table name for VideoProgress
func (VideoProgress) TableName() string {
	return "video_progress"
}

// Certificate is issued once per completed (user, course)
type Certificate struct {
	ID                uint      `gorm:"primaryKey" json:"id"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
	UserID            uint      `gorm:"not null;uniqueIndex:idx_certificate_user_course" json:"user_id"`
	CourseID          uint      `gorm:"not null;uniqueIndex:idx_certificate_user_course" json:"course_id"`
	CourseName        string    `gorm:"type:varchar(255)" json:"course_name"`
	UserName          string    `gorm:"type:varchar(255)" json:"user_name"`
	CertificateNumber string    `gorm:"type:varchar(50);uniqueIndex;not null" json:"certificate_number"`
	DateIssued        time.Time `gorm:"not null" json:"date_issued"`
	FileURL           string    `gorm:"type:text" json:"file_url,omitempty"`
}

// TableName specifies the table name for Certificate
func (Certificate) TableName() string {
	return "certificates"
}
