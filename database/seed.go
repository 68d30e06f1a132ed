package database

import (
	"fmt"
	"log"
	"os"

	"github.com/sahilchouksey/coursehub-api/model"
	"github.com/sahilchouksey/coursehub-api/utils/auth"
	"gorm.io/gorm"
)

// Seeder handles database seeding operations
type Seeder struct {
	db *gorm.DB
}

// NewSeeder creates a new seeder instance
func NewSeeder(db *gorm.DB) *Seeder {
	return &Seeder{db: db}
}

// SeedAll runs all seed functions
func (s *Seeder) SeedAll() error {
	log.Println("🌱 Starting database seeding...")

	if err := s.SeedAdminUser(); err != nil {
		return fmt.Errorf("failed to seed admin user: %w", err)
	}

	if err := s.SeedTags(); err != nil {
		return fmt.Errorf("failed to seed tags: %w", err)
	}

	if err := s.SeedCourses(); err != nil {
		return fmt.Errorf("failed to seed courses: %w", err)
	}

	log.Println("✅ Database seeding completed successfully!")
	return nil
}

// SeedAdminUser creates the default admin user
func (s *Seeder) SeedAdminUser() error {
	var count int64
	if err := s.db.Model(&model.User{}).Where("role IN ?", []string{model.RoleAdmin, model.RoleSuperAdmin}).Count(&count).Error; err != nil {
		return err
	}

	if count > 0 {
		log.Println("⏭️  Admin user already exists, skipping...")
		return nil
	}

	adminEmail := os.Getenv("ADMIN_EMAIL")
	adminPassword := os.Getenv("ADMIN_PASSWORD")

	if adminEmail == "" || adminPassword == "" {
		log.Println("⚠️  ADMIN_EMAIL and ADMIN_PASSWORD environment variables not set, skipping admin user creation")
		return nil
	}

	passwordHash, err := auth.HashPassword(adminPassword)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	admin := &model.User{
		Email:        adminEmail,
		PasswordHash: passwordHash,
		Name:         "System Administrator",
		Role:         model.RoleSuperAdmin,
		Active:       true,
		IsVerified:   true,
	}

	if err := s.db.Create(admin).Error; err != nil {
		return err
	}

	log.Printf("✅ Created admin user: %s\n", admin.Email)
	return nil
}

// SeedTags creates the default video tags
func (s *Seeder) SeedTags() error {
	var count int64
	if err := s.db.Model(&model.Tag{}).Count(&count).Error; err != nil {
		return err
	}

	if count > 0 {
		log.Println("⏭️  Tags already exist, skipping...")
		return nil
	}

	tags := []model.Tag{
		{Name: "Introduction", Active: true},
		{Name: "Theory", Active: true},
		{Name: "Practical", Active: true},
		{Name: "Case Study", Active: true},
		{Name: "Revision", Active: true},
	}

	if err := s.db.Create(&tags).Error; err != nil {
		return err
	}

	log.Printf("✅ Created %d tags\n", len(tags))
	return nil
}

// SeedCourses creates two sample courses, one per completion rule
func (s *Seeder) SeedCourses() error {
	var count int64
	if err := s.db.Model(&model.Course{}).Count(&count).Error; err != nil {
		return err
	}

	if count > 0 {
		log.Println("⏭️  Courses already exist, skipping...")
		return nil
	}

	courses := []model.Course{
		{
			Name:             "Foundations of Financial Accounting",
			TotalVideo:       12,
			Learn:            "Journal entries, ledgers, trial balance and final accounts",
			Hours:            "08:30",
			Author:           "CA Meera Shah",
			ShortDescription: "Bookkeeping from first principles",
			LongDescription:  "A guided walk through double entry bookkeeping with worked examples.",
			Language:         "English",
			Price:            4999,
			DiscountPrice:    3999,
			CourseGST:        18,
			CourseType:       model.CourseTypePercentage,
			Percentage:       80,
			Active:           true,
			Sequence:         1,
			Chapters: []model.Chapter{
				{Number: 1, Name: "Basics"},
				{Number: 2, Name: "Ledgers"},
				{Number: 3, Name: "Final Accounts"},
			},
		},
		{
			Name:             "GST Live Workshop",
			TotalVideo:       4,
			Learn:            "Registration, returns and input tax credit",
			Hours:            "06:00",
			Author:           "CA Rohan Desai",
			ShortDescription: "Weekend workshop on GST compliance",
			LongDescription:  "Live sessions with recordings for registered participants.",
			Language:         "Hindi",
			Price:            1999,
			CourseGST:        18,
			CourseType:       model.CourseTypeTimeIntervals,
			Percentage:       100,
			StartTime:        "10:00",
			EndTime:          "13:00",
			Active:           true,
			Sequence:         2,
			Chapters: []model.Chapter{
				{Number: 1, Name: "Day 1"},
				{Number: 2, Name: "Day 2"},
			},
		},
	}

	if err := s.db.Create(&courses).Error; err != nil {
		return err
	}

	log.Printf("✅ Created %d courses\n", len(courses))
	return nil
}

// RunSeeds executes every seeder
func RunSeeds(db *gorm.DB) error {
	seeder := NewSeeder(db)
	return seeder.SeedAll()
}
