package model

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Course types decide the certificate template and completion rule
const (
	CourseTypePercentage    = "percentage"
	CourseTypeTimeIntervals = "timeIntervals"
)

// Chapter is an entry of the course outline, stored inline as JSON
type Chapter struct {
	Number int    `json:"number" validate:"required,min=1"`
	Name   string `json:"name" validate:"required,max=255"`
}

// Course represents a purchasable course
type Course struct {
	ID               uint                        `gorm:"primaryKey" json:"id"`
	CreatedAt        time.Time                   `json:"created_at"`
	UpdatedAt        time.Time                   `json:"updated_at"`
	DeletedAt        gorm.DeletedAt              `gorm:"index" json:"-"`
	Name             string                      `gorm:"column:cname;type:varchar(255);not null;index" json:"cname"`
	TotalVideo       int                         `gorm:"not null;default:1" json:"total_video"`
	Learn            string                      `gorm:"type:text" json:"learn"`
	Hours            string                      `gorm:"type:varchar(10)" json:"hours"` // HH:mm
	Author           string                      `gorm:"type:varchar(255);index" json:"author"`
	ShortDescription string                      `gorm:"type:text" json:"short_description"`
	LongDescription  string                      `gorm:"type:text" json:"long_description"`
	Language         string                      `gorm:"type:varchar(50);index" json:"language"`
	Price            float64                     `gorm:"not null;default:0" json:"price"`
	DiscountPrice    float64                     `gorm:"default:0" json:"dprice"`
	CourseGST        float64                     `gorm:"column:course_gst;default:0" json:"course_gst"`
	CourseType       string                      `gorm:"type:varchar(50);index" json:"course_type"`
	Percentage       float64                     `gorm:"default:100" json:"percentage"` // completion threshold
	StartTime        string                      `gorm:"type:varchar(20)" json:"start_time"`
	EndTime          string                      `gorm:"type:varchar(20)" json:"end_time"`
	Thumbnail        string                      `gorm:"type:text" json:"thumbnail"`
	Sequence         int                         `gorm:"default:0" json:"sequence"`
	Active           bool                        `gorm:"default:true;index" json:"active"`
	Chapters         datatypes.JSONSlice[Chapter] `gorm:"type:jsonb" json:"chapters"`

	// Relationships
	Videos      []Video      `gorm:"foreignKey:CourseID" json:"videos,omitempty"`
	Enrollments []Enrollment `gorm:"foreignKey:CourseID" json:"-"`
}

// TableName specifies the table name for Course
func (Course) TableName() string {
	return "courses"
}

// HasChapter reports whether the chapter number exists in the outline
func (c *Course) HasChapter(number int) bool {
	for _, ch := range c.Chapters {
		if ch.Number == number {
			return true
		}
	}
	return false
}

// SellingPrice is the discounted price when one is set
func (c *Course) SellingPrice() float64 {
	if c.DiscountPrice > 0 && c.DiscountPrice < c.Price {
		return c.DiscountPrice
	}
	return c.Price
}
