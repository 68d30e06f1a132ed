package model

import (
	"time"

	"github.com/lib/pq"
	"gorm.io/gorm"
)

// Video types
const (
	VideoTypeVideo    = "video"
	VideoTypeDocument = "document"
)

// Video is a lesson resource of a course chapter: a DASH video or a document
type Video struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
	CourseID    uint           `gorm:"not null;index" json:"course_id"`
	Chapter     int            `gorm:"not null;default:1;index" json:"chapter"`
	Title       string         `gorm:"type:varchar(50);not null" json:"title"`
	Description string         `gorm:"type:varchar(500)" json:"description"`
	Type        string         `gorm:"type:varchar(20);not null;default:'video'" json:"type"`
	Demo        bool           `gorm:"default:false" json:"demo"`
	Thumbnail   string         `gorm:"type:text" json:"thumbnail"`
	VideoFile   string         `gorm:"type:text" json:"videofile"`
	VideoURL    string         `gorm:"type:text" json:"video_url"` // DASH manifest
	PDF         string         `gorm:"type:text" json:"pdf"`
	PPT         string         `gorm:"type:text" json:"ppt"`
	Doc         string         `gorm:"type:text" json:"doc"`
	Tags        pq.StringArray `gorm:"type:text[]" json:"tags"`
	Order       int            `gorm:"column:sort_order;default:0;index" json:"order"`
	Active      bool           `gorm:"default:true" json:"active"`

	// Relationships
	Course Course `gorm:"foreignKey:CourseID;constraint:OnDelete:CASCADE" json:"course,omitempty"`
}

// TableName specifies the table name for Video
func (Video) TableName() string {
	return "videos"
}

// Tag labels videos for filtering
type Tag struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
	Name      string         `gorm:"type:varchar(100);uniqueIndex;not null" json:"name"`
	Active    bool           `gorm:"default:true" json:"active"`
}

// TableName specifies the table name for Tag
func (Tag) TableName() string {
	return "tags"
}
